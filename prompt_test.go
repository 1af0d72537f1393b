package parsley

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaGenerationPrompt(t *testing.T) {
	p, err := NewPromptBuilder()
	require.NoError(t, err)

	t.Run("json object shape", func(t *testing.T) {
		prompt, err := p.SchemaGenerationPrompt(FormatJSON, SchemaGenerationContext{JSONType: JSONObject})
		require.NoError(t, err)
		assert.Contains(t, prompt, "fields")
		assert.NotContains(t, strings.ToLower(prompt), "repeating")
	})

	t.Run("json array shape", func(t *testing.T) {
		prompt, err := p.SchemaGenerationPrompt(FormatJSON, SchemaGenerationContext{JSONType: JSONArray})
		require.NoError(t, err)
		assert.Contains(t, strings.ToUpper(prompt), "ONE ITEM")
		assert.Contains(t, strings.ToLower(prompt), "repeating")
	})

	t.Run("csv shape", func(t *testing.T) {
		prompt, err := p.SchemaGenerationPrompt(FormatCSV, SchemaGenerationContext{})
		require.NoError(t, err)
		assert.Contains(t, prompt, "columns")
	})

	t.Run("document context section", func(t *testing.T) {
		prompt, err := p.SchemaGenerationPrompt(FormatJSON, SchemaGenerationContext{
			Filename: "invoice-march.pdf",
			MimeType: "application/pdf",
			JSONType: JSONObject,
		})
		require.NoError(t, err)
		assert.Contains(t, prompt, `"invoice-march.pdf"`)
		assert.Contains(t, prompt, "application/pdf")
		assert.Contains(t, prompt, "Document Context")
	})

	t.Run("no context section without metadata", func(t *testing.T) {
		prompt, err := p.SchemaGenerationPrompt(FormatJSON, SchemaGenerationContext{JSONType: JSONObject})
		require.NoError(t, err)
		assert.NotContains(t, prompt, "Document Context")
	})
}

func TestParsePrompt(t *testing.T) {
	t.Run("object instruction has no array wording", func(t *testing.T) {
		prompt := ParsePrompt(FormatJSON, "", JSONObject)
		assert.Contains(t, prompt, "nested JSON")
		assert.NotContains(t, strings.ToLower(prompt), "array")
	})

	t.Run("array instruction demands every match", func(t *testing.T) {
		prompt := ParsePrompt(FormatJSON, "", JSONArray)
		assert.Contains(t, prompt, "ALL matching objects")
		assert.Contains(t, strings.ToLower(prompt), "array")
	})

	t.Run("csv instruction asks for flat records", func(t *testing.T) {
		prompt := ParsePrompt(FormatCSV, "", "")
		assert.Contains(t, prompt, "flat array of records")
	})

	t.Run("custom prompt is appended", func(t *testing.T) {
		prompt := ParsePrompt(FormatJSON, "Dates in ISO format.", JSONObject)
		assert.True(t, strings.HasPrefix(prompt, parseJSONObjectPrompt))
		assert.True(t, strings.HasSuffix(prompt, "Additional instructions: Dates in ISO format."))
	})
}
