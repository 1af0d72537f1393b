package parsley

import (
	"embed"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/tyler-sommer/stick"
)

//go:embed prompts/*.twig
var promptFS embed.FS

// SchemaGenerationContext carries best-effort document hints for schema
// generation. Absent hints never degrade prompt validity.
type SchemaGenerationContext struct {
	Filename string
	MimeType string
	JSONType JSONType
}

// PromptBuilder renders the natural-language instructions for both pipeline
// operations. Schema-generation prompts live in embedded twig templates,
// one per output shape.
type PromptBuilder struct {
	env       *stick.Env
	templates map[string]string
}

// NewPromptBuilder loads every embedded template.
func NewPromptBuilder() (*PromptBuilder, error) {
	p := &PromptBuilder{
		env:       stick.New(nil),
		templates: make(map[string]string),
	}
	err := fs.WalkDir(promptFS, "prompts", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".twig") {
			return nil
		}
		content, readErr := fs.ReadFile(promptFS, path)
		if readErr != nil {
			return fmt.Errorf("read %s: %w", path, readErr)
		}
		tag := strings.TrimSuffix(filepath.Base(path), ".twig")
		p.templates[tag] = string(content)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// SchemaGenerationPrompt selects the instruction template by output shape
// and renders it with the document-context section.
func (p *PromptBuilder) SchemaGenerationPrompt(format OutputFormat, genCtx SchemaGenerationContext) (string, error) {
	tag := "schema-csv"
	if format == FormatJSON {
		if genCtx.JSONType == JSONArray {
			tag = "schema-json-array"
		} else {
			tag = "schema-json-object"
		}
	}
	tpl, ok := p.templates[tag]
	if !ok {
		return "", fmt.Errorf("template %q not found", tag)
	}
	var out strings.Builder
	vars := map[string]stick.Value{
		"context": contextSection(genCtx),
	}
	if err := p.env.Execute(tpl, &out, vars); err != nil {
		return "", fmt.Errorf("execute %q: %w", tag, err)
	}
	return out.String(), nil
}

func contextSection(genCtx SchemaGenerationContext) string {
	if genCtx.Filename == "" && genCtx.MimeType == "" {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\n## Document Context")
	if genCtx.Filename != "" {
		fmt.Fprintf(&b, "\n\nDocument filename: %q", genCtx.Filename)
	}
	if genCtx.MimeType != "" {
		fmt.Fprintf(&b, "\nDocument type: %s", genCtx.MimeType)
	}
	b.WriteString("\n\nUse the filename and document content to infer:\n" +
		"- What type of document this is (invoice, receipt, contract, form, report, etc.)\n" +
		"- Why someone would upload this document (what business need it serves)\n" +
		"- What kind of data extraction would be most valuable\n" +
		"- Common patterns and fields for this document type")
	return b.String()
}

const (
	parseJSONObjectPrompt = "Extract the structured data from the document(s) as nested JSON matching the provided schema."
	parseJSONArrayPrompt  = "Extract ALL matching objects from the document(s) as an array. Each object in the array should match the provided schema. Look for repeating patterns or multiple instances of similar objects in the document and extract each one as a separate element."
	parseCSVPrompt        = "Extract the data from the document(s) as a flat array of records suitable for CSV export. Each record should match the provided column schema."
)

// ParsePrompt builds the extraction instruction. The base shape contract
// always comes first; a user-supplied custom instruction is only ever
// appended, so it cannot redirect the model away from schema conformance.
func ParsePrompt(format OutputFormat, customPrompt string, jsonType JSONType) string {
	var base string
	switch {
	case format == FormatJSON && jsonType == JSONArray:
		base = parseJSONArrayPrompt
	case format == FormatJSON:
		base = parseJSONObjectPrompt
	default:
		base = parseCSVPrompt
	}
	if customPrompt == "" {
		return base
	}
	return base + "\n\nAdditional instructions: " + customPrompt
}
