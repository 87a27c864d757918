package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const schemaURL = "appkeeper://manifest.schema.json"

// manifestSchema describes the canonical shape both file variants are
// folded into before decoding.
const manifestSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["id"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "name": {"type": "string"},
    "version": {"type": "string"},
    "description": {"type": ["object", "string"]},
    "multi_instance": {"type": "boolean"},
    "packaging_format": {"type": "integer"},
    "services": {"type": "array", "items": {"type": "string"}},
    "requirements": {"type": "object", "additionalProperties": {"type": "string"}},
    "arguments": {
      "type": "object",
      "additionalProperties": {"type": "array", "items": {"$ref": "#/$defs/question"}}
    }
  },
  "$defs": {
    "question": {
      "type": "object",
      "required": ["name"],
      "properties": {
        "name": {"type": "string", "pattern": "^[A-Za-z0-9_]+$"},
        "type": {"type": "string"},
        "ask": {"type": ["object", "string"]},
        "help": {"type": ["object", "string"]},
        "optional": {"type": "boolean"},
        "choices": {"type": "array", "items": {"type": "string"}}
      }
    }
  }
}`

var (
	compileOnce    sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

func schema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader([]byte(manifestSchema)))
		if err != nil {
			compileErr = fmt.Errorf("failed to unmarshal manifest schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, doc); err != nil {
			compileErr = fmt.Errorf("failed to add manifest schema: %w", err)
			return
		}
		compiledSchema, compileErr = compiler.Compile(schemaURL)
	})
	return compiledSchema, compileErr
}

// validateShape checks raw against the schema. raw is round-tripped through
// JSON so values decoded from TOML validate the same way.
func validateShape(raw map[string]interface{}) error {
	sch, err := schema()
	if err != nil {
		return err
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return err
	}
	return sch.Validate(inst)
}
