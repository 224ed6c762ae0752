// Command fplsync runs one sync against the configured store and prints the
// report as JSON. It exits non-zero when the run does not commit.
package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	jsoniter "github.com/json-iterator/go"

	service "github.com/dlystyr/fantasypl-mcp/internal/app"
	"github.com/dlystyr/fantasypl-mcp/internal/config"
	"github.com/dlystyr/fantasypl-mcp/internal/domain/ingest"
	"github.com/dlystyr/fantasypl-mcp/pkg/logger"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary //nolint:gochecknoglobals // codec

func main() {
	timeout := flag.Duration("timeout", 0, "run timeout (default from sync.run_timeout)")
	quiet := flag.Bool("quiet", false, "only log errors")
	flag.Parse()

	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(2)
	}
	level := cfg.Log.Level
	if *quiet {
		level = "error"
	}
	// logs go to stderr so stdout carries only the report
	if err := logger.Init(logger.WithLevel(level), logger.WithFormat(cfg.Log.Format), logger.WithWriter(os.Stderr)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()

	report, err := syncOnce(ctx, cfg, *timeout)
	if err != nil && report.RunID == "" {
		logger.Get().Error(ctx, "sync could not run", logger.Error(err))
		os.Exit(2)
	}
	if werr := writeReport(os.Stdout, report); werr != nil {
		logger.Get().Error(ctx, "write report", logger.Error(werr))
	}
	if !report.Committed {
		os.Exit(1)
	}
}

// syncOnce builds the app without scheduling and runs the pipeline once.
func syncOnce(ctx context.Context, cfg *config.Config, timeout time.Duration, opts ...service.BuildOption) (ingest.Report, error) {
	cfg.Schedule.Enabled = false
	cfg.Sync.RunOnStart = false
	if timeout <= 0 {
		timeout = cfg.Sync.RunTimeout
	}

	app, err := service.Build(ctx, cfg, opts...)
	if err != nil {
		return ingest.Report{}, err
	}
	defer func() { _ = app.Stop(context.WithoutCancel(ctx)) }()

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return app.Pipeline.Sync(runCtx)
}

func writeReport(w io.Writer, report ingest.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
