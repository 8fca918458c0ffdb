package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Validator checks raw JSON documents against one compiled schema.
type Validator struct {
	name   string
	schema *jsonschema.Schema
}

// Compile builds a Validator from a schema expressed as a generic map.
func Compile(name string, schemaMap map[string]any) (*Validator, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	url := name + ".json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	s, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Validator{name: name, schema: s}, nil
}

// MustCompile is Compile for package-level schemas.
func MustCompile(name string, schemaMap map[string]any) *Validator {
	v, err := Compile(name, schemaMap)
	if err != nil {
		panic(err)
	}
	return v
}

// Validate reports whether data is JSON matching the schema.
func (v *Validator) Validate(data []byte) error {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%s: unmarshal: %w", v.name, err)
	}
	if err := v.schema.Validate(doc); err != nil {
		return fmt.Errorf("%s: json does not match schema: %w", v.name, err)
	}
	return nil
}
