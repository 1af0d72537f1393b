package parsley

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ModelConfig identifies the backend for one pipeline run. For the demo
// provider APIKey is the server-held OpenRouter key and ModelID is ignored.
type ModelConfig struct {
	Provider Provider
	ModelID  string
	APIKey   string
}

// demoModelID is the pinned model for demo traffic.
const demoModelID = "google/gemini-2.5-flash-lite"

// Invoker issues a single structured-generation request and returns the raw
// model text. Implementations receive the validation contract so they can
// declare the expected output shape to the provider.
type Invoker interface {
	Generate(ctx context.Context, model string, parts []*Part, contract *Validator) ([]byte, error)
}

// InvokerFactory builds a provider-specific Invoker. It must fail fast on
// missing credentials or model IDs.
type InvokerFactory func(ctx context.Context, cfg ModelConfig, log *slog.Logger) (Invoker, string, error)

// NewInvoker is the default factory. It returns the invoker together with
// the resolved model ID.
func NewInvoker(ctx context.Context, cfg ModelConfig, log *slog.Logger) (Invoker, string, error) {
	if cfg.APIKey == "" {
		return nil, "", WrapError(KindAPI, ErrMissingAPIKey, "%s for the %s provider", ErrMissingAPIKey, cfg.Provider)
	}
	switch cfg.Provider {
	case ProviderGoogle:
		if cfg.ModelID == "" {
			return nil, "", WrapError(KindAPI, ErrMissingModelID, "%s for the Google provider", ErrMissingModelID)
		}
		inv, err := NewGoogleInvoker(ctx, cfg.APIKey, log)
		return inv, cfg.ModelID, err
	case ProviderOpenRouter:
		if cfg.ModelID == "" {
			return nil, "", WrapError(KindAPI, ErrMissingModelID, "%s for the OpenRouter provider", ErrMissingModelID)
		}
		return NewOpenRouterInvoker(cfg.APIKey, log), cfg.ModelID, nil
	case ProviderDemo:
		return NewOpenRouterInvoker(cfg.APIKey, log), demoModelID, nil
	default:
		return nil, "", NewError(KindValidation, "unknown provider %q", cfg.Provider)
	}
}

// StructuredResult is a model response asserted to conform to a Validator.
// Raw keeps the sanitized response text; normalizers use it to recover
// details JSON decoding discards, such as object key order.
type StructuredResult struct {
	Value any
	Raw   []byte
}

// Invoke issues exactly one structured-generation call: the content becomes
// a single user message annotated with the contract, the response is
// sanitized and validated, and failures are translated into the error
// taxonomy. There is no retry loop here; a caller retries by re-running the
// whole pipeline.
func Invoke(ctx context.Context, inv Invoker, model string, content []*Part, contract *Validator, log *slog.Logger) (*StructuredResult, error) {
	if log == nil {
		log = slog.Default()
	}
	log.Debug("invoking model", "model", model, "parts", len(content))

	raw, err := inv.Generate(ctx, model, content, contract)
	if err != nil {
		if enriched := EnrichSchemaMismatch(err); enriched != err {
			return nil, enriched
		}
		return nil, classifyProviderError(err)
	}
	raw = SanitizeJSONResponse(raw)
	log.Debug("model responded", "bytes", len(raw), "preview", preview(string(raw), 200))

	val, err := contract.Validate(raw)
	if err != nil {
		return nil, EnrichSchemaMismatch(err)
	}
	return &StructuredResult{Value: val, Raw: raw}, nil
}

// EnrichSchemaMismatch upgrades schema/validation failures into a
// user-actionable message. The original error text is preserved verbatim so
// the enriched message is a strict superset of the diagnostic context; all
// other errors pass through unchanged.
func EnrichSchemaMismatch(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	lower := strings.ToLower(msg)
	if !strings.Contains(lower, "schema") && !strings.Contains(lower, "validation") {
		return err
	}
	return &Error{
		Kind: KindValidation,
		Message: fmt.Sprintf("Schema validation failed: The AI response did not match the expected schema. This might happen if:\n"+
			"- The document doesn't contain data matching your schema\n"+
			"- Date formats don't match the expected format\n"+
			"- Required fields are missing\n\n"+
			"Original error: %s", msg),
		Err: err,
	}
}

func classifyProviderError(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	if KindOf(err) == KindNetwork {
		return WrapError(KindNetwork, err, "provider request failed: %v", err)
	}
	return WrapError(KindAPI, err, "provider call failed: %v", err)
}
