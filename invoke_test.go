package parsley

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInvokerFailsFast(t *testing.T) {
	ctx := context.Background()

	t.Run("missing api key", func(t *testing.T) {
		_, _, err := NewInvoker(ctx, ModelConfig{Provider: ProviderOpenRouter, ModelID: "some/model"}, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMissingAPIKey)
	})

	t.Run("missing model id", func(t *testing.T) {
		_, _, err := NewInvoker(ctx, ModelConfig{Provider: ProviderOpenRouter, APIKey: "sk-test"}, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMissingModelID)
	})

	t.Run("demo pins the model", func(t *testing.T) {
		inv, model, err := NewInvoker(ctx, ModelConfig{Provider: ProviderDemo, APIKey: "sk-test"}, nil)
		require.NoError(t, err)
		assert.NotNil(t, inv)
		assert.Equal(t, demoModelID, model)
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, _, err := NewInvoker(ctx, ModelConfig{Provider: "azure", APIKey: "k", ModelID: "m"}, nil)
		require.Error(t, err)
		assert.Equal(t, KindValidation, KindOf(err))
	})
}

func TestInvokeValidatesResponse(t *testing.T) {
	contract := mustCompile(t, SchemaDefinition{
		Format:   FormatJSON,
		JSONType: JSONObject,
		Fields:   []Field{{Name: "vendor", Type: FieldString, Required: true}},
	})
	parts := []*Part{NewTextPart("extract")}

	t.Run("valid response", func(t *testing.T) {
		inv := &ScriptedInvoker{Response: []byte("```json\n{\"vendor\":\"Acme\"}\n```")}
		res, err := Invoke(context.Background(), inv, "m", parts, contract, nil)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"vendor": "Acme"}, res.Value)
		assert.JSONEq(t, `{"vendor":"Acme"}`, string(res.Raw), "fences are stripped before validation")
	})

	t.Run("mismatching response enriched", func(t *testing.T) {
		inv := &ScriptedInvoker{Response: []byte(`{"total":3}`)}
		_, err := Invoke(context.Background(), inv, "m", parts, contract, nil)
		require.Error(t, err)
		assert.Equal(t, KindValidation, KindOf(err))
		assert.Contains(t, err.Error(), "did not match the expected schema")
	})
}

func TestEnrichSchemaMismatch(t *testing.T) {
	t.Run("schema errors gain guidance and keep the original text", func(t *testing.T) {
		orig := errors.New("schema validation failed: field amount: expected number")
		err := EnrichSchemaMismatch(orig)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "The AI response did not match the expected schema")
		assert.Contains(t, err.Error(), orig.Error())
		assert.ErrorIs(t, err, orig)
	})

	t.Run("unrelated errors pass through untouched", func(t *testing.T) {
		orig := errors.New("connection refused")
		assert.Same(t, orig, EnrichSchemaMismatch(orig))
	})

	t.Run("nil passes through", func(t *testing.T) {
		assert.NoError(t, EnrichSchemaMismatch(nil))
	})
}

func TestInvokeClassifiesProviderErrors(t *testing.T) {
	contract := mustCompile(t, SchemaDefinition{Format: FormatJSON, JSONType: JSONObject})
	parts := []*Part{NewTextPart("extract")}

	t.Run("tagged errors keep their kind", func(t *testing.T) {
		inv := &ScriptedInvoker{Err: NewError(KindRateLimit, "too many requests")}
		_, err := Invoke(context.Background(), inv, "m", parts, contract, nil)
		require.Error(t, err)
		assert.Equal(t, KindRateLimit, KindOf(err))
	})

	t.Run("provider schema complaints are enriched", func(t *testing.T) {
		inv := &ScriptedInvoker{Err: errors.New("schema validation failed: field x")}
		_, err := Invoke(context.Background(), inv, "m", parts, contract, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "did not match the expected schema")
		assert.Contains(t, err.Error(), "schema validation failed: field x")
	})

	t.Run("untagged errors become api errors", func(t *testing.T) {
		inv := &ScriptedInvoker{Err: errors.New("upstream returned 500")}
		_, err := Invoke(context.Background(), inv, "m", parts, contract, nil)
		require.Error(t, err)
		assert.Equal(t, KindAPI, KindOf(err))
	})
}
