package parsley

import (
	"context"
	"log/slog"
)

// ScriptedInvoker returns a canned response and records what it was asked,
// so pipeline behavior can be tested without a real client.
type ScriptedInvoker struct {
	Response []byte
	Err      error

	Calls        int
	LastModel    string
	LastParts    []*Part
	LastContract *Validator
}

func (s *ScriptedInvoker) Generate(ctx context.Context, model string, parts []*Part, contract *Validator) ([]byte, error) {
	s.Calls++
	s.LastModel = model
	s.LastParts = parts
	s.LastContract = contract
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Response, nil
}

// NewPipelineForTesting wires a pipeline to the given invoker so no real
// provider client is needed.
func NewPipelineForTesting(inv Invoker) (*Pipeline, error) {
	return NewPipeline(
		WithLogger(slog.Default()),
		WithInvokerFactory(func(ctx context.Context, cfg ModelConfig, log *slog.Logger) (Invoker, string, error) {
			model := cfg.ModelID
			if model == "" {
				model = demoModelID
			}
			return inv, model, nil
		}),
	)
}
