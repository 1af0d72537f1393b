// Package parsley turns documents into structured data. A caller uploads a
// PDF or image, authors (or auto-generates) an output schema, and parsley
// asks a multimodal model for data conforming to that schema.
//
// The package is organised around a small pipeline:
//
//	SchemaDefinition ──Compile──▶ Validator ─┐
//	PromptBuilder ──────────────▶ prompt ────┼──▶ Invoke ──▶ Normalize ──▶ GenerationOutput
//	Assemble(document bytes) ───▶ []*Part ───┘
//
// The same pipeline runs twice per session: once to generate a schema from
// the document (the contract is then the model's own output), and once to
// extract data against the compiled user schema.
//
// Basic usage:
//
//	p, err := parsley.NewPipeline()
//	if err != nil { ... }
//	out, err := p.ParseDocument(ctx, parsley.ParseRequest{
//		Config:       parsley.ModelConfig{Provider: parsley.ProviderGoogle, ModelID: "gemini-2.0-flash", APIKey: key},
//		DocumentData: []string{dataURL},
//		MimeType:     "application/pdf",
//		Schema:       schema,
//	})
//
// Providers are pluggable through the Invoker interface; Google (via the
// GenAI SDK) and OpenRouter (via its OpenAI-compatible HTTP API) ship with
// the package.
package parsley
