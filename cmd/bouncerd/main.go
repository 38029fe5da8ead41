// Bouncerd serves the bouncer rewrite API.
//
// The daemon exposes POST /api/sanitize and GET /api/health over HTTP, or the
// same service as MCP tools over stdio with the mcp subcommand.
//
// Configuration is read from ~/.config/bouncer/config.yaml (or -config) and
// BOUNCER_* environment variables. See internal/config for details.
//
// Usage:
//
//	# Start the HTTP server
//	bouncerd
//
//	# Serve MCP tools on stdin/stdout
//	bouncerd mcp
//
//	# Configure via environment
//	BOUNCER_SERVER_HTTP_PORT=8080 OPENAI_API_KEY=sk-... bouncerd
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/bouncer/internal/config"
	httpserver "github.com/fyrsmithlabs/bouncer/internal/http"
	"github.com/fyrsmithlabs/bouncer/internal/logging"
	"github.com/fyrsmithlabs/bouncer/internal/mcp"
	"github.com/fyrsmithlabs/bouncer/internal/sanitize"
	"github.com/fyrsmithlabs/bouncer/internal/telemetry"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default ~/.config/bouncer/config.yaml)")
	flag.Parse()
	args := flag.Args()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch {
	case len(args) == 0:
		err = run(ctx, *configPath)
	case args[0] == "version":
		printVersion(os.Stdout)
		return
	case args[0] == "mcp":
		err = runMCP(ctx, *configPath)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
		fmt.Fprintf(os.Stderr, "\nUsage:\n")
		fmt.Fprintf(os.Stderr, "  bouncerd [-config path]       Start the HTTP server\n")
		fmt.Fprintf(os.Stderr, "  bouncerd [-config path] mcp   Serve MCP tools over stdio\n")
		fmt.Fprintf(os.Stderr, "  bouncerd version              Show version information\n")
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "bouncerd: %v\n", err)
		os.Exit(1)
	}
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "bouncerd by Fyrsmith Labs\n")
	fmt.Fprintf(w, "Version:    %s\n", version)
	fmt.Fprintf(w, "Commit:     %s\n", gitCommit)
	fmt.Fprintf(w, "Build Date: %s\n", buildDate)
}

// app holds what both run modes share.
type app struct {
	cfg    *config.Config
	tel    *telemetry.Telemetry
	logger *logging.Logger
	svc    *sanitize.Service
}

// setup loads config and builds telemetry, logging, and the service.
// stderrLogs keeps stdout free for a protocol stream.
func setup(ctx context.Context, configPath string, stderrLogs bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	tel, err := telemetry.New(ctx, telemetry.FromSettings(cfg.Observability, version))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	logCfg := logging.FromSettings(cfg.Logging)
	logCfg.Output.Stderr = stderrLogs
	logger, err := logging.NewLogger(logCfg, tel.LoggerProvider())
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if h := tel.Health(); h.Degraded {
		logger.Warn(ctx, "telemetry degraded", zap.Strings("reasons", h.Reasons))
	}

	svc, err := sanitize.FromConfig(ctx, cfg, logger)
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, fmt.Errorf("failed to initialize sanitize service: %w", err)
	}

	return &app{cfg: cfg, tel: tel, logger: logger, svc: svc}, nil
}

// close releases resources in reverse order of setup.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout.Duration())
	defer cancel()

	if err := a.svc.Close(); err != nil {
		a.logger.Warn(ctx, "failed to close sanitize service", zap.Error(err))
	}
	if err := a.tel.Shutdown(ctx); err != nil {
		a.logger.Warn(ctx, "failed to shut down telemetry", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// run serves HTTP until ctx is canceled, then shuts down gracefully.
func run(ctx context.Context, configPath string) error {
	a, err := setup(ctx, configPath, false)
	if err != nil {
		return err
	}
	defer a.close()

	var prom *httpserver.PromMetrics
	if a.cfg.Server.MetricsEnabled {
		prom = httpserver.NewPromMetrics()
	}

	srv, err := httpserver.NewServer(a.svc, a.logger, &httpserver.Config{
		Host:        a.cfg.Server.Host,
		Port:        a.cfg.Server.Port,
		Environment: a.cfg.Server.Environment,
		CORSOrigins: a.cfg.Server.CORSOrigins,
	}, prom)
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	a.logger.Info(ctx, "starting bouncerd",
		zap.String("version", version),
		zap.String("addr", srv.Addr()),
		zap.Bool("service_configured", a.svc.Configured()),
		zap.String("provider", a.svc.ProviderName()),
		zap.Bool("metrics_endpoint", prom != nil),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout.Duration())
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	a.logger.Info(ctx, "server shutdown complete")
	return nil
}

// runMCP serves MCP tools on stdio until ctx is canceled or stdin closes.
func runMCP(ctx context.Context, configPath string) error {
	a, err := setup(ctx, configPath, true)
	if err != nil {
		return err
	}
	defer a.close()

	srv, err := mcp.NewServer(&mcp.Config{
		Name:    "bouncer",
		Version: version,
		Logger:  a.logger,
	}, a.svc)
	if err != nil {
		return fmt.Errorf("failed to create mcp server: %w", err)
	}

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
