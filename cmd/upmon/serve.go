package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hamed0406/upmon/internal/aggregate"
	"github.com/hamed0406/upmon/internal/cache"
	"github.com/hamed0406/upmon/internal/config"
	"github.com/hamed0406/upmon/internal/httpapi"
	"github.com/hamed0406/upmon/internal/logging"
	"github.com/hamed0406/upmon/internal/notify"
	"github.com/hamed0406/upmon/internal/probe"
	"github.com/hamed0406/upmon/internal/repo"
	"github.com/hamed0406/upmon/internal/repo/memory"
	"github.com/hamed0406/upmon/internal/repo/postgres"
	"github.com/hamed0406/upmon/internal/repo/sqlite"
	"github.com/hamed0406/upmon/internal/scheduler"
	"github.com/hamed0406/upmon/internal/sink"
)

func loadConfig() config.Config {
	cfg := config.FromEnv()
	if monitorsPath != "" {
		cfg.MonitorsPath = monitorsPath
	}
	return cfg
}

func openStore(ctx context.Context, cfg config.Config, log *zap.Logger) (repo.Store, error) {
	switch cfg.DatabaseDriver {
	case config.DriverPostgres:
		return postgres.New(ctx, cfg.DatabaseURL, cfg.DBMaxConns, log)
	case config.DriverSQLite:
		return sqlite.New(ctx, cfg.DatabaseURL, cfg.DBMaxConns, log)
	case config.DriverMemory:
		log.Warn("store_memory", zap.String("reason", "DATABASE_URL empty; history is lost on restart"))
		return memory.New(), nil
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.DatabaseDriver)
}

func retention(cfg config.Config, f *config.File) time.Duration {
	if cfg.RetentionDays >= 0 {
		return time.Duration(cfg.RetentionDays) * 24 * time.Hour
	}
	return f.Retention()
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid environment: %w", err)
	}

	logger, err := logging.NewLogger(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	file, err := config.LoadMonitors(cfg.MonitorsPath)
	if err != nil {
		return err
	}
	specs, err := file.Resolve()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("store_close_failed", zap.Error(err))
		}
	}()

	live := cache.Load(cfg.CachePath, logger)
	rec := &sink.Sink{
		History:      store,
		Status:       store,
		Cache:        live,
		Logger:       logger,
		WriteTimeout: cfg.WriteTimeout,
	}
	sched := &scheduler.Scheduler{
		Logger:         logger,
		Checker:        probe.NewHTTPChecker(cfg.HTTPClientTimeout),
		Sink:           rec,
		Monitors:       specs,
		DNSDiagnostics: cfg.DNSDiagnostics,
	}
	pruner := &scheduler.Pruner{
		Logger:    logger,
		History:   store,
		Retention: retention(cfg, file),
		Period:    cfg.PruneInterval,
	}
	api := httpapi.NewServer(logger, store, &aggregate.Engine{Store: store}, live, httpapi.Options{
		APIKeys:        cfg.APIKeys,
		AllowedOrigins: cfg.AllowedOrigins,
		PublicRPM:      cfg.PublicRPM,
		PublicBurst:    cfg.PublicBurst,
	})
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.WriteTimeout + 5*time.Second,
	}

	// the flusher outlives the scheduler so its final save sees the last results
	flushCtx, stopFlush := context.WithCancel(context.Background())
	flushed := make(chan struct{})
	go func() {
		defer close(flushed)
		live.RunFlusher(flushCtx, cfg.CachePath, cfg.CacheFlushInterval, logger)
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sched.Run(gctx)
		return nil
	})
	g.Go(func() error {
		pruner.Run(gctx)
		return nil
	})
	notifiers := notify.Multi{notify.Log{Logger: logger}}
	if slack := notify.NewSlack(cfg.SlackWebhookURL); slack != nil {
		notifiers = append(notifiers, slack)
	} else {
		logger.Info("slack_disabled", zap.String("reason", "SLACK_WEBHOOK_URL empty"))
	}
	al := scheduler.NewAlerter(store, store, notifiers, logger, scheduler.AlerterConfig{
		AlertOnRecovery: cfg.AlertOnRecovery,
		Cooldown:        cfg.AlertCooldown,
		PollInterval:    cfg.AlertPollInterval,
	})
	g.Go(func() error {
		if err := al.Run(gctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("api_listen", zap.String("addr", cfg.Addr), zap.Int("monitors", len(specs)))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
		defer cancel()
		logger.Info("shutdown_started")
		return srv.Shutdown(sctx)
	})

	runErr := g.Wait()

	stopFlush()
	select {
	case <-flushed:
	case <-time.After(cfg.ShutdownGrace):
		logger.Warn("cache_final_flush_timeout")
	}
	logger.Info("shutdown_complete")
	return runErr
}
