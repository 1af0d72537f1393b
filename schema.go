package parsley

import (
	"fmt"
)

// OutputFormat selects the overall shape of an extraction result.
type OutputFormat string

const (
	FormatJSON OutputFormat = "json"
	FormatCSV  OutputFormat = "csv"
)

// JSONType narrows the JSON format to a single nested object or an array of
// repeating objects.
type JSONType string

const (
	JSONObject JSONType = "object"
	JSONArray  JSONType = "array"
)

// FieldType is the declared type of a schema field or CSV column.
type FieldType string

const (
	FieldString  FieldType = "string"
	FieldNumber  FieldType = "number"
	FieldBoolean FieldType = "boolean"
	FieldDate    FieldType = "date"
	FieldArray   FieldType = "array"
	FieldObject  FieldType = "object"
)

// Field is one node of a JSON schema definition. Fields of type object own
// their children; the tree has no cycles and no sharing.
type Field struct {
	Name          string    `json:"name"`
	Type          FieldType `json:"type"`
	Required      bool      `json:"required"`
	Description   string    `json:"description,omitempty"`
	ArrayItemType FieldType `json:"arrayItemType,omitempty"` // meaningful only when Type == FieldArray
	Children      []Field   `json:"children,omitempty"`      // meaningful only when Type == FieldObject
}

// Column is one flat CSV column. CSV output maps to tabular rows, so there
// is no nesting and no array/object column type.
type Column struct {
	Name        string    `json:"name"`
	Type        FieldType `json:"type"`
	Required    bool      `json:"required"`
	Description string    `json:"description,omitempty"`
}

// SchemaDefinition is the user- or model-authored extraction contract. It is
// a tagged union over Format: JSON definitions carry JSONType and Fields,
// CSV definitions carry Columns.
type SchemaDefinition struct {
	Format   OutputFormat `json:"format"`
	JSONType JSONType     `json:"jsonType,omitempty"`
	Fields   []Field      `json:"fields,omitempty"`
	Columns  []Column     `json:"columns,omitempty"`
}

var fieldTypes = map[FieldType]bool{
	FieldString:  true,
	FieldNumber:  true,
	FieldBoolean: true,
	FieldDate:    true,
	FieldArray:   true,
	FieldObject:  true,
}

var columnTypes = map[FieldType]bool{
	FieldString:  true,
	FieldNumber:  true,
	FieldBoolean: true,
	FieldDate:    true,
}

// Validate checks structural well-formedness: a known format, known field and
// column types, and JSON/CSV variants carrying the right branch of the union.
// Duplicate names are legal here; they are rejected separately by the
// pre-flight guard (see DuplicateNames).
func (d SchemaDefinition) Validate() error {
	switch d.Format {
	case FormatJSON:
		if d.JSONType != JSONObject && d.JSONType != JSONArray && d.JSONType != "" {
			return fmt.Errorf("schema: unknown jsonType %q", d.JSONType)
		}
		return validateFields(d.Fields, "")
	case FormatCSV:
		for _, c := range d.Columns {
			if c.Name != "" && !columnTypes[c.Type] {
				return fmt.Errorf("schema: column %q has unknown type %q", c.Name, c.Type)
			}
		}
		return nil
	default:
		return fmt.Errorf("schema: unknown format %q", d.Format)
	}
}

func validateFields(fields []Field, path string) error {
	for _, f := range fields {
		if f.Name == "" {
			continue // partially edited schemas are tolerated
		}
		name := f.Name
		if path != "" {
			name = path + "." + f.Name
		}
		if !fieldTypes[f.Type] {
			return fmt.Errorf("schema: field %q has unknown type %q", name, f.Type)
		}
		if f.Type == FieldArray && f.ArrayItemType != "" {
			switch f.ArrayItemType {
			case FieldString, FieldNumber, FieldBoolean:
			default:
				return fmt.Errorf("schema: field %q has unknown array item type %q", name, f.ArrayItemType)
			}
		}
		if f.Type == FieldObject {
			if err := validateFields(f.Children, name); err != nil {
				return err
			}
		}
	}
	return nil
}

// DuplicateNames reports names that occur more than once among siblings,
// in first-seen order, each name reported once. For JSON schemas every
// nesting level is checked independently; for CSV the column list is
// checked. Extraction refuses to run while duplicates exist, since the
// output shape would be ambiguous.
func (d SchemaDefinition) DuplicateNames() []string {
	switch d.Format {
	case FormatCSV:
		names := make([]string, 0, len(d.Columns))
		for _, c := range d.Columns {
			names = append(names, c.Name)
		}
		return duplicatesIn(names)
	default:
		return duplicateFieldNames(d.Fields)
	}
}

func duplicateFieldNames(fields []Field) []string {
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Name)
	}
	dups := duplicatesIn(names)
	for _, f := range fields {
		if f.Type == FieldObject {
			dups = append(dups, duplicateFieldNames(f.Children)...)
		}
	}
	return dups
}

func duplicatesIn(names []string) []string {
	seen := map[string]int{}
	var dups []string
	for _, n := range names {
		if n == "" {
			continue
		}
		seen[n]++
		if seen[n] == 2 {
			dups = append(dups, n)
		}
	}
	return dups
}

// DefaultJSONSchema returns the invoice-style starter definition the schema
// editor seeds new JSON sessions with.
func DefaultJSONSchema() SchemaDefinition {
	return SchemaDefinition{
		Format:   FormatJSON,
		JSONType: JSONObject,
		Fields: []Field{
			{Name: "documentType", Type: FieldString, Required: true, Description: "Kind of document, e.g. invoice or receipt"},
			{Name: "documentNumber", Type: FieldString, Required: false},
			{Name: "issueDate", Type: FieldDate, Required: false},
			{Name: "vendor", Type: FieldObject, Required: false, Children: []Field{
				{Name: "name", Type: FieldString, Required: true},
				{Name: "address", Type: FieldString, Required: false},
			}},
			{Name: "totalAmount", Type: FieldNumber, Required: false},
			{Name: "currency", Type: FieldString, Required: false},
		},
	}
}

// DefaultCSVSchema returns the line-item starter definition for CSV sessions.
func DefaultCSVSchema() SchemaDefinition {
	return SchemaDefinition{
		Format: FormatCSV,
		Columns: []Column{
			{Name: "description", Type: FieldString, Required: true},
			{Name: "quantity", Type: FieldNumber, Required: false},
			{Name: "unitPrice", Type: FieldNumber, Required: false},
			{Name: "amount", Type: FieldNumber, Required: true},
			{Name: "date", Type: FieldDate, Required: false},
		},
	}
}
