// CLAUDE:SUMMARY CLI entry point for rivalwatch: one-shot monitor/digest runs, periodic watch, HTTP read API and MCP stdio server.
// Command rivalwatch tracks the web presence of competitors.
//
// Usage:
//
//	rivalwatch [-config file] [-db path] [-log-level level] <command> [flags]
//
// Commands:
//
//	monitor            detect website changes and analyse them
//	digest             summarise new feed articles
//	run                digest then monitor
//	watch -every 1h    run repeatedly
//	serve -addr :8080  HTTP read API (optionally with -every)
//	mcp                MCP server on stdio
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/rivalwatch/analysis"
	"github.com/hazyhaar/rivalwatch/dbopen"
	"github.com/hazyhaar/rivalwatch/veille"
)

const version = "1.0.0"

func main() {
	configPath := flag.String("config", "config/competitors.yaml", "path to the competitors file (YAML or JSON)")
	dbPath := flag.String("db", "", "SQLite database path (overrides storage.db)")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Usage = usage
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *dbPath, flag.Arg(0), flag.Args()[1:]); err != nil {
		logger.Error("rivalwatch: fatal", "error", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: rivalwatch [-config file] [-db path] [-log-level level] monitor|digest|run|watch|serve|mcp [flags]")
	flag.PrintDefaults()
}

func run(ctx context.Context, logger *slog.Logger, configPath, dbPath, command string, args []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("rivalwatch: .env not loaded", "error", err)
	}

	cfg, err := loadConfig(logger, configPath)
	if err != nil {
		return err
	}
	if dbPath != "" {
		cfg.Storage.DB = dbPath
	}

	db, err := dbopen.Open(cfg.Storage.DB, dbopen.WithMkdirAll())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	svc, err := newService(ctx, logger, db, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	switch command {
	case "monitor":
		return printJSON(svc.MonitorWebsites(ctx))
	case "digest":
		return printJSON(svc.DigestFeeds(ctx))
	case "run":
		return printJSON(svc.RunAll(ctx))
	case "watch":
		return runWatch(ctx, logger, svc, args)
	case "serve":
		return runServe(ctx, logger, svc, args)
	case "mcp":
		return runMCP(ctx, svc)
	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

// loadConfig reads the competitors file, falling back to the built-in
// configuration when it does not exist.
func loadConfig(logger *slog.Logger, path string) (*veille.Config, error) {
	cfg, err := veille.LoadConfig(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn("rivalwatch: config not found, using default configuration", "path", path)
		return veille.DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newService(ctx context.Context, logger *slog.Logger, db *sql.DB, cfg *veille.Config) (*veille.Service, error) {
	providers := analysis.ProvidersFromEnv(os.Getenv, cfg.Analysis.Models)
	backends := analysis.NewBackends(ctx, providers, logger)
	analyzer := analysis.New(backends,
		analysis.WithTimeout(cfg.Analysis.Timeout),
		analysis.WithLogger(logger),
	)
	logger.Info("rivalwatch: analysis chain", "providers", analyzer.Providers())

	svc, err := veille.New(db, cfg, analyzer, logger)
	if err != nil {
		return nil, fmt.Errorf("veille service: %w", err)
	}
	return svc, nil
}

func runWatch(ctx context.Context, logger *slog.Logger, svc *veille.Service, args []string) error {
	fset := flag.NewFlagSet("watch", flag.ContinueOnError)
	every := fset.Duration("every", time.Hour, "interval between runs")
	runs := fset.Int("runs", 0, "stop after this many runs (0 = until interrupted)")
	if err := fset.Parse(args); err != nil {
		return err
	}
	logger.Info("rivalwatch: watching", "every", every.String())
	n := svc.Watch(ctx, *every, *runs)
	logger.Info("rivalwatch: watch stopped", "runs", n)
	return nil
}

// startWatch runs the watch loop in the background. The returned function
// cancels it and blocks until the loop has returned, so the caller can
// close the database afterwards.
func startWatch(ctx context.Context, logger *slog.Logger, svc *veille.Service, every time.Duration) func() int {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan int, 1)
	logger.Info("rivalwatch: watching", "every", every.String())
	go func() { done <- svc.Watch(ctx, every, 0) }()

	var runs int
	var once sync.Once
	return func() int {
		once.Do(func() {
			cancel()
			runs = <-done
			logger.Info("rivalwatch: watch stopped", "runs", runs)
		})
		return runs
	}
}

func runServe(ctx context.Context, logger *slog.Logger, svc *veille.Service, args []string) error {
	fset := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fset.String("addr", ":8080", "listen address")
	every := fset.Duration("every", 0, "also run monitoring at this interval (0 = read-only)")
	if err := fset.Parse(args); err != nil {
		return err
	}

	if *every > 0 {
		stopWatch := startWatch(ctx, logger, svc, *every)
		defer stopWatch()
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           svc.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("rivalwatch: server starting", "addr", *addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("rivalwatch: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("rivalwatch: server stopped")
	return nil
}

func runMCP(ctx context.Context, svc *veille.Service) error {
	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "rivalwatch",
		Version: version,
	}, nil)
	svc.RegisterMCP(srv)
	return srv.Run(ctx, &mcp.StdioTransport{})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
