package proxy

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/sowankispassah/khasigpt-sub005/internal/adapter"
	"github.com/sowankispassah/khasigpt-sub005/internal/adapter/anthropic"
	"github.com/sowankispassah/khasigpt-sub005/internal/adapter/openai"
	"github.com/sowankispassah/khasigpt-sub005/internal/config"
	apierrors "github.com/sowankispassah/khasigpt-sub005/internal/errors"
)

// Server is the generation HTTP server.
type Server struct {
	httpServer *http.Server
}

// New constructs a Server from the given config and generator.
func New(cfg *config.Config, gen adapter.Generator) *Server {
	h := NewHandler(gen, Defaults{
		Stores:         cfg.Stores,
		MetadataFilter: cfg.MetadataFilter,
		ForwardHeaders: cfg.ForwardHeaders,
	})

	router := mux.NewRouter()
	router.HandleFunc("/v1/generate", h.Generate).Methods(http.MethodPost)
	router.HandleFunc("/v1/stream", h.Stream).Methods(http.MethodPost)
	router.Handle("/v1/chat/completions", openai.NewHandler(gen, openai.Options{
		Model:          cfg.Model,
		Stores:         cfg.Stores,
		MetadataFilter: cfg.MetadataFilter,
		ForwardHeaders: cfg.ForwardHeaders,
	})).Methods(http.MethodPost)
	router.Handle("/v1/messages", anthropic.NewHandler(gen, anthropic.Options{
		Model:          cfg.Model,
		Stores:         cfg.Stores,
		MetadataFilter: cfg.MetadataFilter,
		ForwardHeaders: cfg.ForwardHeaders,
	})).Methods(http.MethodPost)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}).Methods(http.MethodGet)
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apierrors.WriteJSONError(w, http.StatusNotFound, "no route for "+r.URL.Path)
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apierrors.WriteJSONError(w, http.StatusMethodNotAllowed, r.Method+" not allowed on "+r.URL.Path)
	})

	var handler http.Handler = router
	handler = loggingMiddleware(handler)
	handler = requestIDMiddleware(handler)
	handler = recoveryMiddleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.ListenAddr,
			Handler:      handler,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: cfg.RequestTimeout + 10*time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Start begins listening and blocks until the server is stopped.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Handler returns the underlying http.Handler (for use in tests with httptest.NewServer).
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
