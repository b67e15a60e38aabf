package genui

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrSchemaRejected means strict mode refused the whole response.
var ErrSchemaRejected = errors.New("model output rejected by strict schema")

const strictSchemaURL = "https://uiforge.local/schemas/ui-schema.json"

// StrictValidator checks raw model output against a JSON Schema derived from
// the registry. Any violation rejects the response instead of pruning it.
type StrictValidator struct {
	schema *jsonschema.Schema
}

// NewStrictValidator compiles the registry schema.
func NewStrictValidator() (*StrictValidator, error) {
	doc, err := StrictSchemaJSON()
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(strictSchemaURL, bytes.NewReader(doc)); err != nil {
		return nil, fmt.Errorf("load strict schema: %w", err)
	}
	schema, err := c.Compile(strictSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile strict schema: %w", err)
	}
	return &StrictValidator{schema: schema}, nil
}

// Validate checks a value decoded by DecodeModelOutput.
func (v *StrictValidator) Validate(raw any) error {
	if err := v.schema.Validate(raw); err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaRejected, err)
	}
	return nil
}

// StrictSchemaJSON returns the JSON Schema document for the vocabulary.
func StrictSchemaJSON() ([]byte, error) {
	defs := map[string]any{}
	catalog := Catalog()
	refs := make([]any, 0, len(catalog))

	for _, spec := range catalog {
		props := map[string]any{}
		for _, p := range spec.Props {
			switch p.Kind {
			case KindString:
				props[p.Name] = map[string]any{"type": "string"}
			case KindEnum:
				props[p.Name] = map[string]any{"enum": p.Enum}
			case KindStringList:
				props[p.Name] = map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
			}
		}
		fields := map[string]any{
			"type": map[string]any{"const": string(spec.Type)},
			"props": map[string]any{
				"type":                 "object",
				"properties":           props,
				"additionalProperties": false,
			},
		}
		if spec.Children {
			fields["children"] = map[string]any{"type": "array", "items": map[string]any{"$ref": "#/$defs/node"}}
		}
		name := strings.ToLower(string(spec.Type))
		defs[name] = map[string]any{
			"type":                 "object",
			"required":             []string{"type"},
			"properties":           fields,
			"additionalProperties": false,
		}
		refs = append(refs, map[string]any{"$ref": "#/$defs/" + name})
	}
	defs["node"] = map[string]any{"oneOf": refs}

	doc := map[string]any{
		"type":     "object",
		"required": []string{"components"},
		"properties": map[string]any{
			"layout":     map[string]any{"type": "string"},
			"changes":    map[string]any{"type": "string"},
			"components": map[string]any{"type": "array", "items": map[string]any{"$ref": "#/$defs/node"}},
		},
		"additionalProperties": false,
		"$defs":                defs,
	}
	return json.Marshal(doc)
}
