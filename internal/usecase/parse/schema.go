package parse

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const valueRecordSchema = `{
  "type": "object",
  "required": ["section"],
  "properties": {
    "section": {"type": "string", "minLength": 1},
    "value": {"not": {"type": "object"}},
    "confidence": {"type": ["number", "string", "null"]},
    "page": {"type": ["integer", "null"]}
  }
}`

const sectionRecordSchema = `{
  "type": "object",
  "required": ["title"],
  "properties": {
    "title": {"type": "string", "minLength": 1},
    "level": {"type": ["integer", "null"], "minimum": 0},
    "type": {"type": ["string", "null"]},
    "page": {"type": ["integer", "null"]}
  }
}`

var (
	schemasOnce   sync.Once
	valueSchema   *jsonschema.Schema
	sectionSchema *jsonschema.Schema
	schemasErr    error
)

func compileSchema(name, src string) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(src)); err != nil {
		return nil, fmt.Errorf("add schema %s: %w", name, err)
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return schema, nil
}

func schemas() (values, sections *jsonschema.Schema, err error) {
	schemasOnce.Do(func() {
		valueSchema, schemasErr = compileSchema("value_record.json", valueRecordSchema)
		if schemasErr != nil {
			return
		}
		sectionSchema, schemasErr = compileSchema("section_record.json", sectionRecordSchema)
	})
	return valueSchema, sectionSchema, schemasErr
}

// validateRecord checks one raw record against schema.
func validateRecord(schema *jsonschema.Schema, rec json.RawMessage) error {
	var v any
	if err := json.Unmarshal(rec, &v); err != nil {
		return fmt.Errorf("unmarshal record: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("record does not match schema: %w", err)
	}
	return nil
}
