package parsley

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelCatalogGoogle(t *testing.T) {
	var fetches atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		assert.Equal(t, "sk-google", r.URL.Query().Get("key"))
		w.Write([]byte(`{"models":[
			{"name":"models/gemini-2.5-pro","displayName":"Gemini 2.5 Pro","supportedGenerationMethods":["generateContent"]},
			{"name":"models/embedding-001","displayName":"Embedding","supportedGenerationMethods":["embedContent"]},
			{"name":"tunedModels/custom","displayName":"Custom","supportedGenerationMethods":["generateContent"]},
			{"name":"models/gemini-2.5-flash","displayName":"Gemini 2.5 Flash","supportedGenerationMethods":["generateContent"]}
		]}`))
	}))
	defer srv.Close()

	c := NewModelCatalog(WithCatalogEndpoints(srv.URL, ""))
	models, err := c.Models(context.Background(), ProviderGoogle, "sk-google")
	require.NoError(t, err)

	require.Len(t, models, 2, "only generateContent models/ entries survive")
	assert.Equal(t, "gemini-2.5-flash", models[0].ID)
	assert.Equal(t, "gemini-2.5-pro", models[1].ID)
	assert.Equal(t, int32(1), fetches.Load())
}

func TestModelCatalogOpenRouter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-or", r.Header.Get("Authorization"))
		w.Write([]byte(`{"data":[
			{"id":"zeta/vision","name":"Zeta Vision","architecture":{"input_modalities":["text","image"]},"pricing":{"prompt":"0.1","completion":"0.2"}},
			{"id":"text-only/model","name":"Text Only","architecture":{"input_modalities":["text"]}},
			{"id":"anthropic/claude-sonnet-4","name":"Claude Sonnet 4","architecture":{"input_modalities":["text","image"]}},
			{"id":"google/gemini-2.5-flash","name":"Gemini 2.5 Flash","architecture":{"input_modalities":["text","image"]}}
		]}`))
	}))
	defer srv.Close()

	c := NewModelCatalog(WithCatalogEndpoints("", srv.URL))
	models, err := c.Models(context.Background(), ProviderOpenRouter, "sk-or")
	require.NoError(t, err)

	require.Len(t, models, 3, "text-only models are dropped")
	assert.Equal(t, "anthropic/claude-sonnet-4", models[0].ID, "well-known families sort first")
	assert.Equal(t, "google/gemini-2.5-flash", models[1].ID)
	assert.Equal(t, "zeta/vision", models[2].ID)
	assert.Equal(t, "0.1", models[2].PromptPrice)
}

func TestModelCatalogTTL(t *testing.T) {
	var fetches atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		w.Write([]byte(`{"models":[{"name":"models/gemini-2.5-pro","displayName":"Gemini 2.5 Pro","supportedGenerationMethods":["generateContent"]}]}`))
	}))
	defer srv.Close()

	now := time.Now()
	c := NewModelCatalog(
		WithCatalogEndpoints(srv.URL, ""),
		WithCatalogTTL(5*time.Minute),
		WithCatalogClock(func() time.Time { return now }),
	)
	ctx := context.Background()

	_, err := c.Models(ctx, ProviderGoogle, "key-a")
	require.NoError(t, err)
	_, err = c.Models(ctx, ProviderGoogle, "key-a")
	require.NoError(t, err)
	assert.Equal(t, int32(1), fetches.Load(), "second call within the TTL hits the cache")

	_, err = c.Models(ctx, ProviderGoogle, "key-b")
	require.NoError(t, err)
	assert.Equal(t, int32(2), fetches.Load(), "a different key is a different cache entry")

	now = now.Add(5*time.Minute + time.Second)
	_, err = c.Models(ctx, ProviderGoogle, "key-a")
	require.NoError(t, err)
	assert.Equal(t, int32(3), fetches.Load(), "expired entries are refetched")
}

func TestModelCatalogErrors(t *testing.T) {
	t.Run("missing key", func(t *testing.T) {
		c := NewModelCatalog()
		_, err := c.Models(context.Background(), ProviderGoogle, "")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMissingAPIKey)
	})

	t.Run("upstream failure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", http.StatusUnauthorized)
		}))
		defer srv.Close()

		c := NewModelCatalog(WithCatalogEndpoints(srv.URL, ""))
		_, err := c.Models(context.Background(), ProviderGoogle, "bad-key")
		require.Error(t, err)
		assert.Equal(t, KindAPI, KindOf(err))
	})
}
