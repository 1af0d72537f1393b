// Package server exposes the extraction pipeline over HTTP. The surface
// mirrors what the web client consumes: multipart parse endpoints, a model
// catalog, and export rendering.
package server

import (
	"log/slog"
	"net/http"

	"github.com/bgwastu/parsley"
	"github.com/bgwastu/parsley/internal/config"
)

// Server holds the wired application components behind the HTTP handlers.
type Server struct {
	cfg     *config.Config
	pipe    *parsley.Pipeline
	catalog *parsley.ModelCatalog
	decrypt parsley.Decryptor
	raster  parsley.Rasterizer
	limiter *clientLimiter
	log     *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithDecryptor supplies the PDF decryption collaborator. Without one,
// password-protected PDFs are rejected as unsupported.
func WithDecryptor(d parsley.Decryptor) Option {
	return func(s *Server) { s.decrypt = d }
}

// WithRasterizer supplies the PDF page renderer. When set, PDF uploads for
// providers without native file support are converted to page images before
// they enter the pipeline; without one they travel as-is.
func WithRasterizer(ra parsley.Rasterizer) Option {
	return func(s *Server) { s.raster = ra }
}

// New wires a Server from its components.
func New(cfg *config.Config, pipe *parsley.Pipeline, catalog *parsley.ModelCatalog, log *slog.Logger, opts ...Option) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		cfg:     cfg,
		pipe:    pipe,
		catalog: catalog,
		limiter: newClientLimiter(cfg.RateLimit),
		log:     log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/parse", s.rateLimited(s.handleParse, false))
	mux.HandleFunc("POST /api/demo-parse", s.rateLimited(s.handleDemoParse, true))
	mux.HandleFunc("GET /api/models", s.handleModels)
	mux.HandleFunc("POST /api/export", s.handleExport)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
