package parsley

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"
)

const googleModelsURL = "https://generativelanguage.googleapis.com/v1beta/models"

// ModelInfo describes one selectable model.
type ModelInfo struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	InputModalities []string `json:"inputModalities,omitempty"`
	PromptPrice     string   `json:"promptPrice,omitempty"`
	CompletionPrice string   `json:"completionPrice,omitempty"`
}

// ModelCatalog is a read-through cache over provider model listings, keyed
// by provider and API key. Entries expire after a fixed TTL and are never
// explicitly invalidated. The clock is injected so expiry is testable
// without wall-clock sleeps; the catalog is owned by the composition root,
// not a package-level singleton. Stale or duplicate fetches under races are
// acceptable: this is a convenience path, not a correctness-critical one.
type ModelCatalog struct {
	ttl           time.Duration
	now           func() time.Time
	client        *http.Client
	googleURL     string
	openRouterURL string
	log           *slog.Logger

	mu      sync.Mutex
	entries map[string]catalogEntry
}

type catalogEntry struct {
	models  []ModelInfo
	fetched time.Time
}

// CatalogOption configures a ModelCatalog.
type CatalogOption func(*ModelCatalog)

// WithCatalogTTL overrides the default five-minute entry lifetime.
func WithCatalogTTL(ttl time.Duration) CatalogOption {
	return func(c *ModelCatalog) { c.ttl = ttl }
}

// WithCatalogClock injects the time source.
func WithCatalogClock(now func() time.Time) CatalogOption {
	return func(c *ModelCatalog) { c.now = now }
}

// WithCatalogHTTPClient replaces the default HTTP client.
func WithCatalogHTTPClient(client *http.Client) CatalogOption {
	return func(c *ModelCatalog) { c.client = client }
}

// WithCatalogEndpoints points the catalog at alternate provider URLs, used
// by tests.
func WithCatalogEndpoints(googleURL, openRouterURL string) CatalogOption {
	return func(c *ModelCatalog) {
		if googleURL != "" {
			c.googleURL = googleURL
		}
		if openRouterURL != "" {
			c.openRouterURL = openRouterURL
		}
	}
}

// WithCatalogLogger lets the caller supply their own logger.
func WithCatalogLogger(log *slog.Logger) CatalogOption {
	return func(c *ModelCatalog) { c.log = log }
}

// NewModelCatalog builds a catalog with a five-minute TTL and the wall
// clock.
func NewModelCatalog(opts ...CatalogOption) *ModelCatalog {
	c := &ModelCatalog{
		ttl:           5 * time.Minute,
		now:           time.Now,
		client:        &http.Client{Timeout: 30 * time.Second},
		googleURL:     googleModelsURL,
		openRouterURL: openRouterBaseURL + "/models",
		log:           slog.Default(),
		entries:       map[string]catalogEntry{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Models returns the model list for a provider, fetching on a cold or
// expired entry and serving the cache otherwise.
func (c *ModelCatalog) Models(ctx context.Context, provider Provider, apiKey string) ([]ModelInfo, error) {
	if apiKey == "" {
		return nil, WrapError(KindAPI, ErrMissingAPIKey, "%s for the %s provider", ErrMissingAPIKey, provider)
	}
	key := cacheKey(provider, apiKey)

	c.mu.Lock()
	entry, ok := c.entries[key]
	c.mu.Unlock()
	if ok && c.now().Sub(entry.fetched) < c.ttl {
		return entry.models, nil
	}

	var models []ModelInfo
	var err error
	switch provider {
	case ProviderGoogle:
		models, err = c.fetchGoogleModels(ctx, apiKey)
	case ProviderOpenRouter, ProviderDemo:
		models, err = c.fetchOpenRouterModels(ctx, apiKey)
	default:
		return nil, NewError(KindValidation, "unknown provider %q", provider)
	}
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = catalogEntry{models: models, fetched: c.now()}
	c.mu.Unlock()
	c.log.Debug("model catalog refreshed", "provider", provider, "models", len(models))
	return models, nil
}

func cacheKey(provider Provider, apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return string(provider) + ":" + hex.EncodeToString(sum[:8])
}

func (c *ModelCatalog) fetchGoogleModels(ctx context.Context, apiKey string) ([]ModelInfo, error) {
	u := c.googleURL + "?key=" + url.QueryEscape(apiKey)
	raw, err := c.get(ctx, u, nil)
	if err != nil {
		return nil, WrapError(KindAPI, err, "failed to fetch models from the Google API: %v", err)
	}

	var resp struct {
		Models []struct {
			Name                       string   `json:"name"`
			DisplayName                string   `json:"displayName"`
			SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
		} `json:"models"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, WrapError(KindAPI, err, "invalid response format from the Google API: %v", err)
	}

	var models []ModelInfo
	for _, m := range resp.Models {
		if !strings.HasPrefix(m.Name, "models/") || !contains(m.SupportedGenerationMethods, "generateContent") {
			continue
		}
		id := strings.TrimPrefix(m.Name, "models/")
		name := m.DisplayName
		if name == "" {
			name = id
		}
		models = append(models, ModelInfo{ID: id, Name: name})
	}
	sort.Slice(models, func(i, j int) bool { return models[i].Name < models[j].Name })
	return models, nil
}

func (c *ModelCatalog) fetchOpenRouterModels(ctx context.Context, apiKey string) ([]ModelInfo, error) {
	headers := map[string]string{"Authorization": "Bearer " + apiKey}
	raw, err := c.get(ctx, c.openRouterURL, headers)
	if err != nil {
		return nil, WrapError(KindAPI, err, "failed to fetch models from OpenRouter: %v", err)
	}

	var resp struct {
		Data []struct {
			ID           string `json:"id"`
			Name         string `json:"name"`
			Architecture struct {
				InputModalities []string `json:"input_modalities"`
			} `json:"architecture"`
			Pricing struct {
				Prompt     string `json:"prompt"`
				Completion string `json:"completion"`
			} `json:"pricing"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, WrapError(KindAPI, err, "invalid response format from OpenRouter: %v", err)
	}

	var models []ModelInfo
	for _, m := range resp.Data {
		if !contains(m.Architecture.InputModalities, "image") {
			continue
		}
		models = append(models, ModelInfo{
			ID:              m.ID,
			Name:            m.Name,
			InputModalities: m.Architecture.InputModalities,
			PromptPrice:     m.Pricing.Prompt,
			CompletionPrice: m.Pricing.Completion,
		})
	}
	// claude/google/gpt models first, then alphabetical within each group
	sort.SliceStable(models, func(i, j int) bool {
		pi, pj := priorityModel(models[i]), priorityModel(models[j])
		if pi != pj {
			return pi
		}
		return strings.ToLower(models[i].Name) < strings.ToLower(models[j].Name)
	})
	return models, nil
}

func priorityModel(m ModelInfo) bool {
	name := strings.ToLower(m.Name)
	id := strings.ToLower(m.ID)
	return strings.Contains(name, "claude") ||
		strings.Contains(name, "google") || strings.Contains(id, "google") ||
		strings.Contains(name, "gpt") || strings.Contains(id, "openai")
}

func (c *ModelCatalog) get(ctx context.Context, u string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("non-2xx status: %d", resp.StatusCode)
	}
	return raw, nil
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
