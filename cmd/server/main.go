package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/volcengine/veadk-go/apps"
	"github.com/volcengine/veadk-go/apps/a2a_app"
	"google.golang.org/adk/agent"

	"github.com/sowankispassah/khasigpt-sub005/internal/a2a"
	"github.com/sowankispassah/khasigpt-sub005/internal/adapter/gemini"
	"github.com/sowankispassah/khasigpt-sub005/internal/config"
	"github.com/sowankispassah/khasigpt-sub005/internal/httputil"
	"github.com/sowankispassah/khasigpt-sub005/internal/proxy"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(2)
	}

	slog.Info("starting khasigpt generation server",
		"listen", cfg.ListenAddr,
		"base_url", cfg.GeminiBaseURL,
		"model", cfg.Model,
		"stores", len(cfg.Stores),
		"config_file", cfg.ConfigFile,
		"a2a_enabled", cfg.A2AEnabled,
	)
	if cfg.GeminiAPIKey == "" {
		slog.Warn("no server API key configured; callers must send X-Goog-Api-Key")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := gemini.NewClient(cfg.GeminiBaseURL, cfg.RequestTimeout, cfg.GeminiProxyURL)
	gen := gemini.NewGenerator(client, gemini.Options{
		Model:         cfg.Model,
		APIKey:        cfg.GeminiAPIKey,
		MediaAckText:  cfg.MediaAckText,
		AllowedStores: cfg.AllowedStores,
	})

	// Always start the HTTP server.
	srv := proxy.New(cfg, gen)
	proxyErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			proxyErr <- err
		}
	}()

	// Optionally start the A2A server.
	a2aErr := make(chan error, 1)
	if cfg.A2AEnabled {
		genAgent, err := a2a.New(a2a.AgentConfig{
			Name:           cfg.AgentName,
			Description:    cfg.AgentDesc,
			Generator:      gen,
			Stores:         cfg.Stores,
			MetadataFilter: cfg.MetadataFilter,
		})
		if err != nil {
			slog.Error("failed to create A2A agent", "error", err)
			os.Exit(1)
		}

		slog.Info("starting A2A server", "port", cfg.A2APort, "agent_name", cfg.AgentName)

		// Wrap the standard A2A app to inject an HTTP middleware that extracts
		// the caller's key and stores it in the request context before the
		// JSON-RPC handler sees the request.
		inner := a2a_app.NewAgentkitA2AServerApp(
			apps.DefaultApiConfig().SetPort(cfg.A2APort),
		)
		wrapped := &authMiddlewareApp{BasicApp: inner}

		go func() {
			if err := wrapped.Run(ctx, &apps.RunConfig{
				AgentLoader: agent.NewSingleLoader(genAgent),
			}); err != nil {
				a2aErr <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
		slog.Info("shutting down...")
		shutCtx, cancel := context.WithTimeout(context.Background(), 30*cfg.RequestTimeout/120)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	case err := <-proxyErr:
		slog.Error("http server error", "error", err)
		os.Exit(1)
	case err := <-a2aErr:
		slog.Error("A2A server error", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped")
}

// authMiddlewareApp wraps a BasicApp and installs an HTTP middleware on the
// Gorilla mux router that extracts the caller's API key from every incoming
// request and injects it into the request context via a2a.ContextWithAPIKey.
type authMiddlewareApp struct {
	apps.BasicApp
}

// Run overrides the embedded Run so that apps.Run receives `w` as the app
// argument. Without this, apps.Run would invoke SetupRouters on the inner app
// and the middleware would never be registered.
func (w *authMiddlewareApp) Run(ctx context.Context, config *apps.RunConfig) error {
	return apps.Run(ctx, config, w)
}

func (w *authMiddlewareApp) SetupRouters(router *mux.Router, config *apps.RunConfig) error {
	if err := w.BasicApp.SetupRouters(router, config); err != nil {
		return err
	}
	router.Use(apiKeyMiddleware)
	return nil
}

// apiKeyMiddleware is a Gorilla mux middleware that reads X-Goog-Api-Key, or
// "Authorization: Bearer <token>" as a fallback, into the request context.
func apiKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if key := httputil.ExtractAPIKey(r); key != "" {
			r = r.WithContext(a2a.ContextWithAPIKey(r.Context(), key))
		}
		next.ServeHTTP(w, r)
	})
}
