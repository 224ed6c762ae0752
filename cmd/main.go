package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dlystyr/fantasypl-mcp/internal/adapters/http/api"
	"github.com/dlystyr/fantasypl-mcp/internal/adapters/http/swagger"
	"github.com/dlystyr/fantasypl-mcp/internal/adapters/mcpserver"
	service "github.com/dlystyr/fantasypl-mcp/internal/app"
	"github.com/dlystyr/fantasypl-mcp/internal/config"
	"github.com/dlystyr/fantasypl-mcp/pkg/logger"
	"github.com/dlystyr/fantasypl-mcp/pkg/metrics"
)

// Set at build time with -ldflags "-X main.version=...".
var version = "dev"

const (
	idleTimeout           = 60 * time.Second
	readHeaderTimeout     = 5 * time.Second
	systemMetricsInterval = 10 * time.Second
)

func main() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// Use fmt for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(logger.WithLevel(cfg.Log.Level), logger.WithFormat(cfg.Log.Format)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "server exited", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	log := logger.Get()

	hub := api.NewHub(api.WithAllowedOrigins(cfg.HTTP.CORSOrigins...), api.WithHubLogger(log.Named("ws-hub")))
	defer hub.Close()

	app, err := service.Build(ctx, cfg,
		service.WithEpochListeners(hub),
		service.WithAppLogger(log))
	if err != nil {
		return err
	}
	app.Start(ctx)
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := app.Stop(stopCtx); err != nil {
			log.Error(stopCtx, "app stop failed", logger.Error(err))
		}
	}()

	go startSystemMetricsUpdater(ctx)

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           newHandler(cfg, app.Service, hub),
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server",
			logger.String("addr", cfg.HTTP.Addr),
			logger.Bool("mcp", cfg.MCP.Enabled),
			logger.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}
	log.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

// newHandler mounts the REST API, the docs and, when enabled, the MCP endpoint.
func newHandler(cfg *config.Config, svc *service.Service, hub *api.Hub) http.Handler {
	docs := swagger.Handler()
	opts := []api.Option{
		api.WithHub(hub),
		api.WithCORSOrigins(cfg.HTTP.CORSOrigins...),
		api.WithMount(swagger.DocsPath, docs),
		api.WithMount(swagger.OpenAPIPath, docs),
	}
	if cfg.MCP.Enabled {
		tools := mcpserver.New(svc,
			mcpserver.WithAPIKey(cfg.MCP.APIKey, cfg.MCP.AuthHeader),
			mcpserver.WithVersion(version))
		opts = append(opts, api.WithMount(cfg.MCP.Path, tools.Handler()))
	}
	return api.NewServer(svc, opts...).Handler()
}

// startSystemMetricsUpdater refreshes runtime gauges until ctx ends.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.UpdateSystemStats()
		}
	}
}
