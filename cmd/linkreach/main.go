// Command linkreach is the connection-request automation daemon. It drives
// a logged-in browser session over CDP, enforces daily/weekly send quotas
// with warmup and business-hours gating, keeps a dedup ledger of contacted
// profiles, and exposes a local control API. Run data is optionally mirrored
// to a companion dashboard.
//
// Usage:
//
//	linkreach -config linkreach.yaml
//	linkreach -listen 127.0.0.1:8844 -db linkreach.db
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/linkreach/api"
	"github.com/hazyhaar/linkreach/autopilot"
	"github.com/hazyhaar/linkreach/browser"
	"github.com/hazyhaar/linkreach/dashsync"
	"github.com/hazyhaar/linkreach/processor"
	"github.com/hazyhaar/linkreach/quota"
	"github.com/hazyhaar/linkreach/store"
)

func main() {
	configPath := flag.String("config", "", "path to linkreach.yaml config file")
	listen := flag.String("listen", "", "control API listen address (overrides config)")
	dbPath := flag.String("db", "", "sqlite database path (overrides config)")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
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

	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Error("linkreach: config", "error", err)
		os.Exit(1)
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *dbPath != "" {
		cfg.DB = *dbPath
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, cfg); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("linkreach: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, cfg config) error {
	st, err := store.Open(cfg.DB, store.WithMkdirAll())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	eng := quota.New(st)

	mgr := browser.NewManager(browser.Config{
		RemoteURL:   cfg.Browser.Remote,
		Headless:    cfg.Browser.Headless,
		UserDataDir: cfg.Browser.ProfileDir,
		Logger:      logger,
	})
	if _, err := mgr.Start(); err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	defer mgr.Close()

	sess := browser.NewSession(mgr, logger)
	defer sess.Close()
	surf := browser.NewSurface(sess, logger)

	dash := dashsync.NewClient(dashsync.Config{
		BaseURL: cfg.Dashboard.URL,
		APIKey:  os.Getenv(cfg.Dashboard.APIKeyEnv),
		Queue:   dashsync.NewQueue(st),
		Logger:  logger,
	})
	if !dash.Enabled() {
		logger.Info("linkreach: dashboard sync disabled (no API key)")
	}

	// The processor reports into the runtime's mailbox; the runtime is the
	// only component that mutates run state.
	var rt *autopilot.Runtime
	proc := processor.New(processor.Config{
		Surface: surf,
		Gate:    eng,
		Store:   st,
		Emit:    func(ev processor.Event) { rt.HandleProcessorEvent(ev) },
		Logger:  logger,
	})
	rt = autopilot.NewRuntime(autopilot.Config{
		Store:     st,
		Quota:     eng,
		Processor: proc,
		Attach:    sess.EnsureReady,
		Sync:      dash,
		Logger:    logger,
	})

	httpSrv := &http.Server{
		Addr:    cfg.Listen,
		Handler: api.NewServer(st, eng, rt, dash, logger).Router(),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return rt.Run(ctx)
	})
	g.Go(func() error {
		logger.Info("linkreach: control API listening", "addr", cfg.Listen)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("control API: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
