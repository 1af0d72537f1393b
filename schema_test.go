package parsley

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaValidate(t *testing.T) {
	t.Run("valid JSON object schema", func(t *testing.T) {
		def := SchemaDefinition{
			Format:   FormatJSON,
			JSONType: JSONObject,
			Fields: []Field{
				{Name: "vendor", Type: FieldString, Required: true},
				{Name: "total", Type: FieldNumber},
			},
		}
		assert.NoError(t, def.Validate())
	})

	t.Run("valid CSV schema", func(t *testing.T) {
		def := SchemaDefinition{
			Format: FormatCSV,
			Columns: []Column{
				{Name: "date", Type: FieldDate, Required: true},
				{Name: "amount", Type: FieldNumber},
			},
		}
		assert.NoError(t, def.Validate())
	})

	t.Run("rejects unknown format", func(t *testing.T) {
		def := SchemaDefinition{Format: "xml"}
		assert.Error(t, def.Validate())
	})

	t.Run("rejects array and object column types", func(t *testing.T) {
		def := SchemaDefinition{
			Format:  FormatCSV,
			Columns: []Column{{Name: "items", Type: FieldArray}},
		}
		assert.Error(t, def.Validate())
	})

	t.Run("rejects bad nested field type", func(t *testing.T) {
		def := SchemaDefinition{
			Format:   FormatJSON,
			JSONType: JSONObject,
			Fields: []Field{
				{Name: "vendor", Type: FieldObject, Children: []Field{
					{Name: "id", Type: "uuid"},
				}},
			},
		}
		assert.Error(t, def.Validate())
	})
}

func TestDuplicateNames(t *testing.T) {
	t.Run("unique names report nothing", func(t *testing.T) {
		def := SchemaDefinition{
			Format:   FormatJSON,
			JSONType: JSONObject,
			Fields: []Field{
				{Name: "a", Type: FieldString},
				{Name: "b", Type: FieldString},
			},
		}
		assert.Empty(t, def.DuplicateNames())
	})

	t.Run("each duplicate reported once", func(t *testing.T) {
		def := SchemaDefinition{
			Format:   FormatJSON,
			JSONType: JSONObject,
			Fields: []Field{
				{Name: "a", Type: FieldString},
				{Name: "a", Type: FieldNumber},
				{Name: "b", Type: FieldString},
				{Name: "a", Type: FieldBoolean},
			},
		}
		assert.Equal(t, []string{"a"}, def.DuplicateNames())
	})

	t.Run("nested siblings checked per level", func(t *testing.T) {
		def := SchemaDefinition{
			Format:   FormatJSON,
			JSONType: JSONObject,
			Fields: []Field{
				{Name: "vendor", Type: FieldObject, Children: []Field{
					{Name: "name", Type: FieldString},
					{Name: "name", Type: FieldString},
				}},
				{Name: "total", Type: FieldNumber},
			},
		}
		assert.Equal(t, []string{"name"}, def.DuplicateNames())
	})

	t.Run("same name on different levels is fine", func(t *testing.T) {
		def := SchemaDefinition{
			Format:   FormatJSON,
			JSONType: JSONObject,
			Fields: []Field{
				{Name: "name", Type: FieldString},
				{Name: "vendor", Type: FieldObject, Children: []Field{
					{Name: "name", Type: FieldString},
				}},
			},
		}
		assert.Empty(t, def.DuplicateNames())
	})

	t.Run("duplicate CSV columns", func(t *testing.T) {
		def := SchemaDefinition{
			Format: FormatCSV,
			Columns: []Column{
				{Name: "amount", Type: FieldNumber},
				{Name: "amount", Type: FieldNumber},
			},
		}
		assert.Equal(t, []string{"amount"}, def.DuplicateNames())
	})
}

func TestDefaultSchemas(t *testing.T) {
	jsonDef := DefaultJSONSchema()
	require.NoError(t, jsonDef.Validate())
	assert.Equal(t, FormatJSON, jsonDef.Format)
	assert.NotEmpty(t, jsonDef.Fields)
	assert.Empty(t, jsonDef.DuplicateNames())

	csvDef := DefaultCSVSchema()
	require.NoError(t, csvDef.Validate())
	assert.Equal(t, FormatCSV, csvDef.Format)
	assert.NotEmpty(t, csvDef.Columns)
	assert.Empty(t, csvDef.DuplicateNames())
}
