package parsley

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/genai"
)

// GoogleInvoker issues structured-generation calls through the Gemini API.
type GoogleInvoker struct {
	client *genai.Client
	log    *slog.Logger
}

// NewGoogleInvoker creates a Gemini-backed invoker for the given API key.
func NewGoogleInvoker(ctx context.Context, apiKey string, log *slog.Logger) (*GoogleInvoker, error) {
	if log == nil {
		log = slog.Default()
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Backend: genai.BackendGeminiAPI,
		APIKey:  apiKey,
	})
	if err != nil {
		return nil, WrapError(KindAPI, err, "create Google client: %v", err)
	}
	return &GoogleInvoker{client: client, log: log}, nil
}

// Generate implements Invoker. The contract's JSON Schema document is
// appended to the prompt text and the response is forced to JSON; local
// validation against the compiled contract happens in Invoke.
func (g *GoogleInvoker) Generate(ctx context.Context, model string, content []*Part, contract *Validator) ([]byte, error) {
	if g.client == nil {
		return nil, fmt.Errorf("client not initialized")
	}

	var parts []*genai.Part
	for _, part := range content {
		switch part.Type {
		case "text":
			parts = append(parts, genai.NewPartFromText(part.Text))
		case "image", "file":
			// Gemini consumes both page images and whole PDFs as inline bytes
			parts = append(parts, genai.NewPartFromBytes(part.Data, part.MimeType))
		}
	}
	if contract != nil {
		parts = append(parts, genai.NewPartFromText(
			"The response must be a single JSON value conforming to this JSON Schema:\n"+string(contract.DocumentJSON())))
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("no valid content provided")
	}

	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}

	g.log.Debug("generating content", "model", model, "parts", len(parts))
	resp, err := g.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}

	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates in response")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return nil, fmt.Errorf("no parts in candidate content")
	}
	text := candidate.Content.Parts[0].Text
	if text == "" {
		return nil, fmt.Errorf("no text in first part of response")
	}
	g.log.Debug("generated content", "response_length", len(text))
	return []byte(text), nil
}
