package parsley

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Settings holds per-user defaults for the extraction workflow: which
// provider and model to use and the last schema the user worked with.
// API keys live here too; the store writes with owner-only permissions.
type Settings struct {
	Provider         Provider          `json:"provider"`
	GoogleAPIKey     string            `json:"googleApiKey,omitempty"`
	GoogleModel      string            `json:"googleModel,omitempty"`
	OpenRouterAPIKey string            `json:"openRouterApiKey,omitempty"`
	OpenRouterModel  string            `json:"openRouterModel,omitempty"`
	OutputFormat     OutputFormat      `json:"outputFormat"`
	JSONType         JSONType          `json:"jsonType"`
	CustomPrompt     string            `json:"customPrompt,omitempty"`
	LastSchema       *SchemaDefinition `json:"lastSchema,omitempty"`
}

// DefaultSettings mirrors a fresh installation: demo provider, JSON object
// output.
func DefaultSettings() Settings {
	return Settings{
		Provider:     ProviderDemo,
		OutputFormat: FormatJSON,
		JSONType:     JSONObject,
	}
}

// Validate rejects settings that the pipeline could not act on.
func (s Settings) Validate() error {
	switch s.Provider {
	case ProviderGoogle, ProviderOpenRouter, ProviderDemo:
	default:
		return NewError(KindValidation, "unknown provider %q", s.Provider)
	}
	switch s.OutputFormat {
	case FormatJSON, FormatCSV:
	default:
		return NewError(KindValidation, "unknown output format %q", s.OutputFormat)
	}
	if s.OutputFormat == FormatJSON {
		switch s.JSONType {
		case JSONObject, JSONArray:
		default:
			return NewError(KindValidation, "unknown JSON type %q", s.JSONType)
		}
	}
	if s.LastSchema != nil {
		if err := s.LastSchema.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ModelConfigFor resolves the provider-specific key and model into a
// ModelConfig ready for the pipeline.
func (s Settings) ModelConfigFor(provider Provider) ModelConfig {
	cfg := ModelConfig{Provider: provider}
	switch provider {
	case ProviderGoogle:
		cfg.APIKey = s.GoogleAPIKey
		cfg.ModelID = s.GoogleModel
	case ProviderOpenRouter:
		cfg.APIKey = s.OpenRouterAPIKey
		cfg.ModelID = s.OpenRouterModel
	}
	return cfg
}

// SettingsStore persists Settings as JSON at a fixed path. Reads of a
// missing file return defaults; writes go through a temp file and rename so
// a crash never leaves a half-written settings file behind.
type SettingsStore struct {
	path string
	mu   sync.Mutex
}

// NewSettingsStore stores settings at path.
func NewSettingsStore(path string) *SettingsStore {
	return &SettingsStore{path: path}
}

// DefaultSettingsPath places the settings file under the user config dir.
func DefaultSettingsPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(dir, "parsley", "settings.json"), nil
}

// Load reads the stored settings, returning defaults when nothing has been
// saved yet.
func (st *SettingsStore) Load() (Settings, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	raw, err := os.ReadFile(st.path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}
	var s Settings
	if err := json.Unmarshal(raw, &s); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	return s, nil
}

// Save validates and atomically writes the settings file.
func (st *SettingsStore) Save(s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(st.path), 0o700); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	raw, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	tmp := st.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmp, st.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}
