package parsley

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Validator is the compiled structural contract for one generation cycle.
// The same document is used twice: its JSON form is sent to the provider as
// the expected output shape, and the compiled form validates the response
// locally before normalization.
type Validator struct {
	doc      map[string]any
	compiled *jsonschema.Schema
}

// Compile translates a SchemaDefinition into a strict validator.
//
// Leniency rules: fields and columns with an empty name are skipped, an
// array field without an item type defaults to string items, and an object
// field without children compiles to an empty-object validator. An empty
// field list still yields a valid (trivial) validator. Duplicate sibling
// names are last-write-wins here; the pre-flight guard owns rejection.
// Optional JSON fields and all CSV columns also accept null, since models
// emit explicit nulls for values absent from the document and the
// normalizers render those as empty cells.
func Compile(def SchemaDefinition) (*Validator, error) {
	var doc map[string]any
	switch def.Format {
	case FormatJSON:
		item := objectSchemaDoc(def.Fields)
		if def.JSONType == JSONArray {
			doc = map[string]any{"type": "array", "items": item}
		} else {
			doc = item
		}
	case FormatCSV:
		doc = map[string]any{"type": "array", "items": columnSchemaDoc(def.Columns)}
	default:
		return nil, fmt.Errorf("compile: unknown format %q", def.Format)
	}
	return compileDoc(doc)
}

func compileDoc(doc map[string]any) (*Validator, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("compile: marshal schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	c.AssertFormat = true
	if err := c.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("compile: add schema: %w", err)
	}
	compiled, err := c.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}
	return &Validator{doc: doc, compiled: compiled}, nil
}

// Document returns the JSON Schema document backing this validator.
func (v *Validator) Document() map[string]any { return v.doc }

// DocumentJSON returns the schema document as marshaled JSON.
func (v *Validator) DocumentJSON() []byte {
	b, _ := json.Marshal(v.doc)
	return b
}

// Validate decodes raw JSON and checks it against the compiled schema,
// returning the decoded value.
func (v *Validator) Validate(raw []byte) (any, error) {
	var val any
	if err := json.Unmarshal(raw, &val); err != nil {
		return nil, fmt.Errorf("validate: unmarshal response: %w", err)
	}
	if err := v.compiled.Validate(val); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}
	return val, nil
}

func objectSchemaDoc(fields []Field) map[string]any {
	props := map[string]any{}
	var required []string
	for _, f := range fields {
		if f.Name == "" {
			continue
		}
		props[f.Name] = fieldSchemaDoc(f, !f.Required)
		if f.Required {
			required = append(required, f.Name)
		}
	}
	doc := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		doc["required"] = required
	}
	return doc
}

func fieldSchemaDoc(f Field, nullable bool) map[string]any {
	switch f.Type {
	case FieldString:
		return map[string]any{"type": schemaType("string", nullable)}
	case FieldNumber:
		return map[string]any{"type": schemaType("number", nullable)}
	case FieldBoolean:
		return map[string]any{"type": schemaType("boolean", nullable)}
	case FieldDate:
		// format assertions only apply to string values, so a null slot
		// passes the format check on its own
		return map[string]any{"type": schemaType("string", nullable), "format": "date-time"}
	case FieldArray:
		item := "string"
		switch f.ArrayItemType {
		case FieldNumber:
			item = "number"
		case FieldBoolean:
			item = "boolean"
		}
		return map[string]any{"type": schemaType("array", nullable), "items": map[string]any{"type": item}}
	case FieldObject:
		doc := objectSchemaDoc(f.Children)
		doc["type"] = schemaType("object", nullable)
		return doc
	default:
		// unknown types accept anything, matching the editor's tolerance
		return map[string]any{}
	}
}

func schemaType(name string, nullable bool) any {
	if nullable {
		return []string{name, "null"}
	}
	return name
}

func columnSchemaDoc(columns []Column) map[string]any {
	props := map[string]any{}
	var required []string
	for _, c := range columns {
		if c.Name == "" {
			continue
		}
		// every column tolerates null regardless of required: required
		// enforces key presence, and null cells stringify to ""
		props[c.Name] = fieldSchemaDoc(Field{Type: c.Type}, true)
		if c.Required {
			required = append(required, c.Name)
		}
	}
	doc := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		doc["required"] = required
	}
	return doc
}

// SchemaGenValidator returns the contract for a schema-generation run: the
// model's output is itself a schema description, so the validator here is
// the fixed meta-shape ({fields: [...]} or {columns: [...]}) rather than a
// compiled user schema.
func SchemaGenValidator(format OutputFormat) (*Validator, error) {
	typeEnum := []any{"string", "number", "boolean", "date", "array", "object"}
	itemEnum := []any{"string", "number", "boolean"}
	switch format {
	case FormatJSON:
		field := map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name":          map[string]any{"type": "string"},
				"type":          map[string]any{"type": "string", "enum": typeEnum},
				"required":      map[string]any{"type": "boolean"},
				"description":   map[string]any{"type": "string"},
				"arrayItemType": map[string]any{"type": "string", "enum": itemEnum},
				// children stay loosely typed; strict recursion trips some
				// providers' schema translators
				"children": map[string]any{"type": "array"},
			},
			"required": []string{"name", "type", "required"},
		}
		return compileDoc(maybeArrayWrapped(map[string]any{
			"type": "object",
			"properties": map[string]any{
				"fields": map[string]any{"type": "array", "items": field},
			},
			"required": []string{"fields"},
		}))
	case FormatCSV:
		column := map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name":        map[string]any{"type": "string"},
				"type":        map[string]any{"type": "string", "enum": []any{"string", "number", "boolean", "date"}},
				"required":    map[string]any{"type": "boolean"},
				"description": map[string]any{"type": "string"},
			},
			"required": []string{"name", "type", "required"},
		}
		return compileDoc(maybeArrayWrapped(map[string]any{
			"type": "object",
			"properties": map[string]any{
				"columns": map[string]any{"type": "array", "items": column},
			},
			"required": []string{"columns"},
		}))
	default:
		return nil, fmt.Errorf("compile: unknown format %q", format)
	}
}

// maybeArrayWrapped also accepts the schema description wrapped in a
// one-element array, which some models emit; decoding unwraps it.
func maybeArrayWrapped(doc map[string]any) map[string]any {
	return map[string]any{
		"anyOf": []any{
			doc,
			map[string]any{"type": "array", "minItems": 1, "maxItems": 1, "items": doc},
		},
	}
}
