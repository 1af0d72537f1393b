package parsley

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// Pipeline runs the schema-driven extraction flow: assemble payload, invoke
// the model once, normalize the result. Each run is sequential and
// non-reentrant; runs for independent sessions may execute concurrently
// because a run's inputs are immutable for its lifetime and nothing is
// shared between runs.
type Pipeline struct {
	prompts  *PromptBuilder
	invokers InvokerFactory
	log      *slog.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithLogger lets the caller supply their own logger.
func WithLogger(log *slog.Logger) PipelineOption {
	return func(p *Pipeline) { p.log = log }
}

// WithInvokerFactory replaces the provider wiring; tests inject canned
// invokers through this.
func WithInvokerFactory(f InvokerFactory) PipelineOption {
	return func(p *Pipeline) { p.invokers = f }
}

// NewPipeline builds a pipeline with the default provider wiring and
// slog.Default() logging.
func NewPipeline(opts ...PipelineOption) (*Pipeline, error) {
	prompts, err := NewPromptBuilder()
	if err != nil {
		return nil, fmt.Errorf("pipeline: load prompts: %w", err)
	}
	p := &Pipeline{prompts: prompts, invokers: NewInvoker, log: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// GenerateSchemaRequest describes one schema-generation run.
type GenerateSchemaRequest struct {
	Config       ModelConfig
	DocumentData []string // base64 data URLs, one per page image or one per whole file
	Format       OutputFormat
	JSONType     JSONType // JSON only; defaults to object
	Filename     string
	MimeType     string
}

// ParseRequest describes one data-extraction run.
type ParseRequest struct {
	Config       ModelConfig
	DocumentData []string
	MimeType     string
	Schema       SchemaDefinition
	CustomPrompt string
	Filename     string
}

// GenerateSchema asks the model to propose a SchemaDefinition for the
// document. There is no user contract yet; the contract here is the fixed
// meta-shape of a schema description.
func (p *Pipeline) GenerateSchema(ctx context.Context, req GenerateSchemaRequest) (SchemaDefinition, error) {
	jsonType := req.JSONType
	if req.Format == FormatJSON && jsonType == "" {
		jsonType = JSONObject
	}
	p.log.Debug("schema generation started", "format", req.Format, "json_type", jsonType, "provider", req.Config.Provider)

	prompt, err := p.prompts.SchemaGenerationPrompt(req.Format, SchemaGenerationContext{
		Filename: req.Filename,
		MimeType: req.MimeType,
		JSONType: jsonType,
	})
	if err != nil {
		return SchemaDefinition{}, fmt.Errorf("build prompt: %w", err)
	}
	contract, err := SchemaGenValidator(req.Format)
	if err != nil {
		return SchemaDefinition{}, err
	}

	result, err := p.run(ctx, req.Config, prompt, req.DocumentData, req.MimeType, req.Filename, contract)
	if err != nil {
		return SchemaDefinition{}, err
	}
	return decodeSchemaResponse(result.Raw, req.Format, jsonType)
}

// ParseDocument extracts structured data matching the schema. Duplicate
// field or column names refuse the run before any model call is made; an
// extraction against an ambiguous shape would only waste provider spend.
func (p *Pipeline) ParseDocument(ctx context.Context, req ParseRequest) (GenerationOutput, error) {
	if dups := req.Schema.DuplicateNames(); len(dups) > 0 {
		return GenerationOutput{}, NewError(KindValidation,
			"duplicate field names in schema: %s", strings.Join(dups, ", "))
	}
	p.log.Debug("extraction started", "format", req.Schema.Format, "provider", req.Config.Provider)

	prompt := ParsePrompt(req.Schema.Format, req.CustomPrompt, req.Schema.JSONType)
	contract, err := Compile(req.Schema)
	if err != nil {
		return GenerationOutput{}, WrapError(KindValidation, err, "compile schema: %v", err)
	}

	result, err := p.run(ctx, req.Config, prompt, req.DocumentData, req.MimeType, req.Filename, contract)
	if err != nil {
		return GenerationOutput{}, err
	}

	switch req.Schema.Format {
	case FormatCSV:
		return NormalizeCSV(result)
	default:
		return NormalizeJSON(result, req.Schema.JSONType), nil
	}
}

// run executes the shared stage sequence for one pipeline run:
// assembling-payload → invoking-model. Normalization is format-specific and
// stays with the caller. Stages execute strictly in order and are never
// retried; errors from any stage are terminal for the run.
func (p *Pipeline) run(ctx context.Context, cfg ModelConfig, prompt string, documentData []string, mimeType, filename string, contract *Validator) (*StructuredResult, error) {
	content, err := Assemble(prompt, documentData, mimeType, cfg.Provider, filename)
	if err != nil {
		return nil, WrapError(KindDocument, err, "assemble payload: %v", err)
	}
	p.log.Debug("payload assembled", "parts", len(content))

	inv, model, err := p.invokers(ctx, cfg, p.log)
	if err != nil {
		return nil, err
	}
	return Invoke(ctx, inv, model, content, contract, p.log)
}

// decodeSchemaResponse turns the model's schema description into a
// SchemaDefinition. Some models wrap the response in a one-element array;
// the first element is used, mirroring the array-coercion leniency on the
// extraction side.
func decodeSchemaResponse(raw []byte, format OutputFormat, jsonType JSONType) (SchemaDefinition, error) {
	raw = unwrapFirstElement(raw)
	switch format {
	case FormatJSON:
		var resp struct {
			Fields []Field `json:"fields"`
		}
		if err := json.Unmarshal(raw, &resp); err != nil {
			return SchemaDefinition{}, WrapError(KindAPI, err, "decode generated schema: %v", err)
		}
		return SchemaDefinition{Format: FormatJSON, JSONType: jsonType, Fields: resp.Fields}, nil
	case FormatCSV:
		var resp struct {
			Columns []Column `json:"columns"`
		}
		if err := json.Unmarshal(raw, &resp); err != nil {
			return SchemaDefinition{}, WrapError(KindAPI, err, "decode generated schema: %v", err)
		}
		return SchemaDefinition{Format: FormatCSV, Columns: resp.Columns}, nil
	default:
		return SchemaDefinition{}, NewError(KindValidation, "unknown format %q", format)
	}
}

func unwrapFirstElement(raw []byte) []byte {
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err == nil && len(arr) > 0 {
		return arr[0]
	}
	return raw
}
