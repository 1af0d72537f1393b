package server

import (
	"net/http"

	"github.com/bgwastu/parsley"
)

// handleModels lists the selectable models for a provider. The caller's key
// travels in the X-Api-Key header so it never lands in access logs.
func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	var provider parsley.Provider
	switch r.URL.Query().Get("provider") {
	case "google":
		provider = parsley.ProviderGoogle
	case "openrouter":
		provider = parsley.ProviderOpenRouter
	default:
		writeError(w, parsley.NewError(parsley.KindValidation, "provider must be 'google' or 'openrouter'"))
		return
	}

	apiKey := r.Header.Get("X-Api-Key")
	if apiKey == "" {
		writeError(w, parsley.NewError(parsley.KindValidation, "X-Api-Key header is required"))
		return
	}

	models, err := s.catalog.Models(r.Context(), provider, apiKey)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": models})
}
