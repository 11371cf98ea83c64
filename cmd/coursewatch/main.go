// Command coursewatch runs the course-catalog scrape service: the cached
// catalog API, the subscribe endpoint, and the enrollment watcher.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/coursewatch/api"
	"github.com/hazyhaar/coursewatch/cache"
	"github.com/hazyhaar/coursewatch/catalog"
	"github.com/hazyhaar/coursewatch/config"
	"github.com/hazyhaar/coursewatch/dbopen"
	"github.com/hazyhaar/coursewatch/notify"
	"github.com/hazyhaar/coursewatch/scrape"
	"github.com/hazyhaar/coursewatch/subs"
	"github.com/hazyhaar/coursewatch/watcher"
)

func main() {
	cfgPath := flag.String("config", env("COURSEWATCH_CONFIG", "coursewatch.yaml"), "path to YAML config")
	flag.Parse()

	cfg, err := config.LoadFile(*cfgPath)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := dbopen.Open(filepath.Join(cfg.DataDir, "coursewatch.db"),
		dbopen.WithMkdirAll(), dbopen.WithSchema(subs.Schema))
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	registry := subs.NewStore(db)

	scraper := scrape.New(scrape.Config{
		Bin:            cfg.Timetable.BrowserBin,
		EntryURL:       cfg.Timetable.EntryURL,
		Term:           cfg.Timetable.Term,
		StepTimeout:    cfg.Timetable.StepTimeout,
		ResultsTimeout: cfg.Timetable.ResultsTimeout,
		Logger:         logger,
	})

	catalogCache := cache.New(cfg.Cache.TTL,
		func(ctx context.Context, _ string) ([]catalog.Offering, error) {
			html, err := scraper.FetchCatalog(ctx)
			if err != nil {
				return nil, err
			}
			return catalog.Extract(html)
		},
		cache.WithLogger(logger),
		cache.WithBaseContext(ctx),
	)

	mailer := notify.NewMailer(notify.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})

	w := watcher.New(registry, scraper, mailer, watcher.Config{
		Interval:        cfg.Watcher.Interval,
		MaxConcurrent:   cfg.Watcher.MaxConcurrent,
		ExpireUnmatched: cfg.Watcher.ExpireUnmatched,
		Logger:          logger,
	})

	watcherDone := make(chan struct{})
	go func() {
		defer close(watcherDone)
		w.Run(ctx)
	}()

	r := chi.NewRouter()
	api.NewServer(catalogCache, registry, logger).Routes(r)

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("coursewatch listening", "addr", cfg.Listen,
		"term", cfg.Timetable.Term, "cache_ttl", cfg.Cache.TTL,
		"watch_interval", cfg.Watcher.Interval)

	serveErr := srv.ListenAndServe()
	if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		logger.Error("http server", "error", serveErr)
	}
	cancel()

	// Cancellation also tears down any in-flight browser session.
	<-watcherDone
	if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		os.Exit(1)
	}
	logger.Info("coursewatch stopped")
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
