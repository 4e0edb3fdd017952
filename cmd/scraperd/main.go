// Package main wires together the AutoRia scraper service: one scrape
// on startup, then daily scrape and dump jobs on a fixed-timezone
// schedule, plus a small ops HTTP server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/vhrabko/autoria-scraper/internal/config"
	"github.com/vhrabko/autoria-scraper/internal/dump"
	"github.com/vhrabko/autoria-scraper/internal/logging"
	"github.com/vhrabko/autoria-scraper/internal/scrape"
	"github.com/vhrabko/autoria-scraper/internal/storage/postgres"
	"github.com/vhrabko/autoria-scraper/internal/telemetry"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := postgres.NewCarStore(ctx, postgres.Config{
		DSN:      cfg.DB.DSN,
		MaxConns: cfg.DB.MaxConns,
	}, logger.Named("store"))
	if err != nil {
		logger.Fatal("store init failed", zap.Error(err))
	}
	defer store.Close()
	if err := store.EnsureSchema(ctx); err != nil {
		logger.Fatal("schema init failed", zap.Error(err))
	}

	client := scrape.NewClient(scrape.ClientConfig{
		MaxConcurrent: cfg.Scrape.MaxConcurrent,
		Delay:         cfg.Delay(),
		Timeout:       cfg.Timeout(),
		UserAgent:     cfg.HTTP.UserAgent,
	}, logger.Named("client"))

	scraper := scrape.New(scrape.Config{
		BaseURL:   cfg.Site.BaseURL,
		SearchURL: cfg.Site.SearchURL,
		MaxPages:  cfg.Scrape.MaxPages,
	}, client, store, logger.Named("scraper"))

	dumper := dump.New(dump.Config{
		DSN:  cfg.DB.DSN,
		Dir:  cfg.Dump.Dir,
		Keep: cfg.Dump.Keep,
	}, logger.Named("dump"))

	runScrape := func() {
		count, err := scraper.Run(ctx)
		if err != nil {
			logger.Error("scrape run failed", zap.Error(err))
			return
		}
		logger.Info("scrape run finished", zap.Int("saved", count))
	}
	runDump := func() {
		path, err := dumper.Create(ctx)
		if err != nil {
			logger.Error("dump failed", zap.Error(err))
			return
		}
		logger.Info("dump job finished", zap.String("path", path))
		if _, err := dumper.Cleanup(); err != nil {
			logger.Warn("dump cleanup failed", zap.Error(err))
		}
	}

	// Initial scrape at startup, like the scheduled runs, non-fatal.
	runScrape()

	loc, err := time.LoadLocation(cfg.Schedule.Timezone)
	if err != nil {
		logger.Fatal("load timezone failed", zap.Error(err))
	}
	sched := cron.New(cron.WithLocation(loc))
	if _, err := sched.AddFunc(cronSpec(cfg.Schedule.ScrapeTime), runScrape); err != nil {
		logger.Fatal("schedule scrape job failed", zap.Error(err))
	}
	if _, err := sched.AddFunc(cronSpec(cfg.Schedule.DumpTime), runDump); err != nil {
		logger.Fatal("schedule dump job failed", zap.Error(err))
	}
	sched.Start()
	logger.Info("jobs scheduled",
		zap.String("scrape_at", cfg.Schedule.ScrapeTime),
		zap.String("dump_at", cfg.Schedule.DumpTime),
		zap.String("timezone", cfg.Schedule.Timezone),
	)

	router := chi.NewRouter()
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Method(http.MethodGet, "/metrics", telemetry.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("ops server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ops server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	<-sched.Stop().Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("ops server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// cronSpec converts a validated "HH:MM" clock time into a daily cron
// expression.
func cronSpec(clock string) string {
	hour, minute, _ := config.ParseClock(clock)
	return fmt.Sprintf("%d %d * * *", minute, hour)
}
