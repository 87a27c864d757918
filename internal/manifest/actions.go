package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"appkeeper/internal/api"

	"github.com/BurntSushi/toml"
)

// Action files an app may ship, in lookup order.
const (
	ActionsTOML = "actions.toml"
	ActionsJSON = "actions.json"
)

// Action is an operator-triggered command declared by an app.
type Action struct {
	ID                  string        `json:"id"`
	Name                string        `json:"name,omitempty"`
	Description         LocalizedText `json:"description,omitempty"`
	Command             string        `json:"command"`
	User                string        `json:"user,omitempty"`
	Cwd                 string        `json:"cwd,omitempty"`
	AcceptedReturnCodes []int         `json:"accepted_return_codes,omitempty"`
	Arguments           []Question    `json:"arguments,omitempty"`
}

// Accepts reports whether code counts as a success. Only 0 does unless the
// action lists its accepted codes.
func (a Action) Accepts(code int) bool {
	if len(a.AcceptedReturnCodes) == 0 {
		return code == 0
	}
	for _, c := range a.AcceptedReturnCodes {
		if c == code {
			return true
		}
	}
	return false
}

// LoadActions reads the actions of the package stored in dir. actions.toml
// wins over actions.json; no file at all yields no actions.
func LoadActions(dir string) ([]Action, error) {
	data, err := os.ReadFile(filepath.Join(dir, ActionsTOML))
	switch {
	case err == nil:
		return parseActions(data, ActionsTOML, tomlActions)
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("failed to read %s: %w", ActionsTOML, err)
	}

	data, err = os.ReadFile(filepath.Join(dir, ActionsJSON))
	switch {
	case err == nil:
		return parseActions(data, ActionsJSON, func(b []byte) (interface{}, error) {
			var list []interface{}
			err := json.Unmarshal(b, &list)
			return list, err
		})
	case errors.Is(err, os.ErrNotExist):
		return nil, nil
	default:
		return nil, fmt.Errorf("failed to read %s: %w", ActionsJSON, err)
	}
}

func parseActions(data []byte, name string, decode func([]byte) (interface{}, error)) ([]Action, error) {
	canonical, err := decode(data)
	if err != nil {
		return nil, api.NewValidationError(api.KeyActionsMalformed, "%s: %v", name, err)
	}
	b, err := json.Marshal(canonical)
	if err != nil {
		return nil, api.NewValidationError(api.KeyActionsMalformed, "%s: %v", name, err)
	}
	var actions []Action
	if err := json.Unmarshal(b, &actions); err != nil {
		return nil, api.NewValidationError(api.KeyActionsMalformed, "%s: %v", name, err)
	}
	for i, a := range actions {
		if a.ID == "" || a.Command == "" {
			return nil, api.NewValidationError(api.KeyActionsMalformed, "%s: action %d needs an id and a command", name, i)
		}
	}
	return actions, nil
}

// tomlActions turns [<id>] tables, and their [<id>.arguments.<name>]
// sub-tables, into a list in document order.
func tomlActions(data []byte) (interface{}, error) {
	var raw map[string]interface{}
	md, err := toml.Decode(string(data), &raw)
	if err != nil {
		return nil, err
	}

	var ids []string
	argOrder := make(map[string][]string)
	seen := make(map[string]bool)
	for _, key := range md.Keys() {
		switch {
		case len(key) == 1:
			ids = append(ids, key[0])
		case len(key) == 3 && key[1] == "arguments":
			id := key[0] + "." + key[2]
			if !seen[id] {
				seen[id] = true
				argOrder[key[0]] = append(argOrder[key[0]], key[2])
			}
		}
	}

	list := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		table, ok := raw[id].(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%s is not a table", id)
		}
		action := make(map[string]interface{}, len(table)+1)
		for k, v := range table {
			action[k] = v
		}
		action["id"] = id

		args, _ := table["arguments"].(map[string]interface{})
		questions := make([]interface{}, 0, len(args))
		for _, name := range argOrder[id] {
			q, ok := args[name].(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("%s.arguments.%s is not a table", id, name)
			}
			copied := make(map[string]interface{}, len(q)+1)
			for k, v := range q {
				copied[k] = v
			}
			copied["name"] = name
			questions = append(questions, copied)
		}
		action["arguments"] = questions
		list = append(list, action)
	}
	return list, nil
}
