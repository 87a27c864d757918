package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"

	"appkeeper/internal/api"

	"github.com/BurntSushi/toml"
)

// Variant names an on-disk manifest schema.
type Variant string

const (
	VariantTOML Variant = "toml"
	VariantJSON Variant = "json"
)

// parser folds one file variant into the canonical map shape.
type parser interface {
	fileName() string
	parse(data []byte) (map[string]interface{}, error)
}

// parsers in lookup order: manifest.toml wins over manifest.json.
var parsers = map[Variant]parser{
	VariantTOML: tomlParser{},
	VariantJSON: jsonParser{},
}

var lookupOrder = []Variant{VariantTOML, VariantJSON}

// FileNames lists the manifest files a package may carry.
func FileNames() []string {
	names := make([]string, 0, len(lookupOrder))
	for _, v := range lookupOrder {
		names = append(names, parsers[v].fileName())
	}
	return names
}

// Load reads and normalizes the manifest found in dir.
func Load(dir string) (*Manifest, error) {
	return LoadFS(os.DirFS(dir), ".")
}

// LoadFS reads and normalizes the manifest found in dir inside fsys.
func LoadFS(fsys fs.FS, dir string) (*Manifest, error) {
	for _, variant := range lookupOrder {
		p := parsers[variant]
		data, err := fs.ReadFile(fsys, path.Join(dir, p.fileName()))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to read %s: %w", p.fileName(), err)
		}
		return Normalize(data, variant)
	}
	return nil, api.NewValidationError(api.KeyManifestMissing,
		"there doesn't seem to be any manifest file in %s", dir)
}

// Normalize turns raw manifest content of the given variant into a Manifest
// and fills the default install prompts.
func Normalize(raw []byte, variant Variant) (*Manifest, error) {
	p, ok := parsers[variant]
	if !ok {
		return nil, fmt.Errorf("unknown manifest variant %q", variant)
	}
	canonical, err := p.parse(raw)
	if err != nil {
		return nil, api.NewValidationError(api.KeyManifestMalformed, "%s: %v", p.fileName(), err)
	}
	if err := validateShape(canonical); err != nil {
		return nil, api.NewValidationError(api.KeyManifestMalformed, "%s: %v", p.fileName(), err)
	}

	data, err := json.Marshal(canonical)
	if err != nil {
		return nil, api.NewValidationError(api.KeyManifestMalformed, "%s: %v", p.fileName(), err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, api.NewValidationError(api.KeyManifestMalformed, "%s: %v", p.fileName(), err)
	}

	ApplyDefaultPrompts(m.Arguments)
	return &m, nil
}

type jsonParser struct{}

func (jsonParser) fileName() string { return "manifest.json" }

func (jsonParser) parse(data []byte) (map[string]interface{}, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, errors.New("manifest is empty")
	}
	return raw, nil
}

type tomlParser struct{}

func (tomlParser) fileName() string { return "manifest.toml" }

// parse flattens [arguments.<script>.<name>] tables into ordered lists,
// tagging each question with its name. Table order is taken from the
// document since Go maps are unordered.
func (tomlParser) parse(data []byte) (map[string]interface{}, error) {
	var raw map[string]interface{}
	md, err := toml.Decode(string(data), &raw)
	if err != nil {
		return nil, err
	}

	args, ok := raw["arguments"].(map[string]interface{})
	if !ok {
		return raw, nil
	}

	order := make(map[string][]string)
	seen := make(map[string]bool)
	for _, key := range md.Keys() {
		if len(key) < 3 || key[0] != "arguments" {
			continue
		}
		id := key[1] + "." + key[2]
		if !seen[id] {
			seen[id] = true
			order[key[1]] = append(order[key[1]], key[2])
		}
	}

	flattened := make(map[string]interface{}, len(args))
	for script, value := range args {
		questions, ok := value.(map[string]interface{})
		if !ok {
			// already a list
			flattened[script] = value
			continue
		}
		list := make([]interface{}, 0, len(questions))
		for _, name := range order[script] {
			q, ok := questions[name].(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("arguments.%s.%s is not a table", script, name)
			}
			copied := make(map[string]interface{}, len(q)+1)
			for k, v := range q {
				copied[k] = v
			}
			copied["name"] = name
			list = append(list, copied)
		}
		flattened[script] = list
	}
	raw["arguments"] = flattened
	return raw, nil
}
