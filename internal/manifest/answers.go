package manifest

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"appkeeper/internal/api"
	"appkeeper/internal/webpath"
)

// Answer is the value given to one question.
type Answer struct {
	Name  string
	Type  string
	Value string
}

// Redacted reports whether the value must be kept out of logs.
func (a Answer) Redacted() bool {
	return a.Type == TypePassword
}

// Answers keeps question order.
type Answers []Answer

// Get returns the answer to name.
func (a Answers) Get(name string) (string, bool) {
	for _, ans := range a {
		if ans.Name == name {
			return ans.Value, true
		}
	}
	return "", false
}

// Map returns the answers keyed by question name.
func (a Answers) Map() map[string]string {
	m := make(map[string]string, len(a))
	for _, ans := range a {
		m[ans.Name] = ans.Value
	}
	return m
}

// ParseArgs decodes "name=value&other=value" as passed on the command line.
func ParseArgs(s string) (map[string]string, error) {
	values, err := url.ParseQuery(s)
	if err != nil {
		return nil, api.NewValidationError(api.KeyArgumentInvalid, "cannot parse arguments %q: %v", s, err)
	}
	args := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			args[k] = v[0]
		}
	}
	return args, nil
}

// AnswerQuestions matches provided values against questions, applying
// defaults and normalizing values by type. Optional questions without a
// value are left out.
func AnswerQuestions(questions []Question, provided map[string]string) (Answers, error) {
	answers := make(Answers, 0, len(questions))
	for _, q := range questions {
		raw, ok := provided[q.Name]
		if !ok || raw == "" {
			if q.Default != nil {
				raw = defaultString(q.Default)
				ok = true
			}
		}
		if !ok || raw == "" {
			if q.Optional {
				continue
			}
			// booleans without default are false
			if q.Type == TypeBoolean {
				raw = "0"
			} else {
				return nil, api.NewValidationError(api.KeyArgumentRequired, "argument '%s' is required", q.Name)
			}
		}

		value, err := normalizeAnswer(q, raw)
		if err != nil {
			return nil, err
		}
		answers = append(answers, Answer{Name: q.Name, Type: q.Type, Value: value})
	}
	return answers, nil
}

func normalizeAnswer(q Question, raw string) (string, error) {
	switch q.Type {
	case TypeDomain:
		raw = webpath.NormalizeDomain(raw)
	case TypePath:
		raw = webpath.NormalizePath(raw)
	case TypeBoolean:
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case "1", "yes", "y", "true", "t", "on":
			raw = "1"
		case "0", "no", "n", "false", "f", "off":
			raw = "0"
		default:
			return "", api.NewValidationError(api.KeyArgumentInvalid,
				"pick a valid value for the argument '%s': %q is not a boolean", q.Name, raw)
		}
	case TypeNumber:
		if _, err := strconv.Atoi(strings.TrimSpace(raw)); err != nil {
			return "", api.NewValidationError(api.KeyArgumentInvalid,
				"pick a valid value for the argument '%s': %q is not a number", q.Name, raw)
		}
		raw = strings.TrimSpace(raw)
	}

	if len(q.Choices) > 0 {
		valid := false
		for _, c := range q.Choices {
			if c == raw {
				valid = true
				break
			}
		}
		if !valid {
			return "", api.NewValidationError(api.KeyArgumentInvalid,
				"use one of these choices '%s' for the argument '%s'", strings.Join(q.Choices, ", "), q.Name)
		}
	}
	return raw, nil
}

func defaultString(v interface{}) string {
	switch d := v.(type) {
	case bool:
		if d {
			return "1"
		}
		return "0"
	case float64:
		return strconv.FormatFloat(d, 'f', -1, 64)
	case string:
		return d
	default:
		return fmt.Sprint(d)
	}
}

// CountQuestions returns how many questions have the given type.
func CountQuestions(questions []Question, qtype string) int {
	n := 0
	for _, q := range questions {
		if q.Type == qtype {
			n++
		}
	}
	return n
}
