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
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/text/language"

	"github.com/eventdesk/roster/internal/badge"
	"github.com/eventdesk/roster/internal/delivery"
	platformauth "github.com/eventdesk/roster/internal/platform/auth"
	"github.com/eventdesk/roster/internal/platform/env"
	"github.com/eventdesk/roster/internal/platform/logging"
	"github.com/eventdesk/roster/internal/platform/metrics"
	"github.com/eventdesk/roster/internal/roster"
	"github.com/eventdesk/roster/internal/roster/view"
	"github.com/eventdesk/roster/internal/rosterclient"
	"github.com/eventdesk/roster/internal/tasks"
)

type config struct {
	AuthorityURL   string        `env:"AUTHORITY_URL" envDefault:"http://localhost:8090"`
	JWTSecret      string        `env:"JWT_SECRET" envDefault:"dev-insecure-change-me"`
	RequestTimeout time.Duration `env:"EXPORT_REQUEST_TIMEOUT" envDefault:"30s"`
	Dir            string        `env:"EXPORT_DIR" envDefault:"badges"`
	Filter         string        `env:"EXPORT_FILTER" envDefault:"all"`
	Order          string        `env:"EXPORT_ORDER" envDefault:"oldest"`
	Locale         string        `env:"ROSTER_LOCALE" envDefault:"en"`
	Concurrency    int           `env:"EXPORT_CONCURRENCY" envDefault:"4"`
	MetricsAddr    string        `env:"EXPORT_METRICS_ADDR"`
}

func main() {
	logger := logging.Setup("badge-export")
	if err := run(logger, os.Args[1:]); err != nil {
		logger.Error("badge export failed", "err", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, args []string) error {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return err
	}

	fs := flag.NewFlagSet("badge-export", flag.ContinueOnError)
	fs.StringVar(&cfg.Dir, "dir", cfg.Dir, "directory receiving the badges")
	fs.StringVar(&cfg.Filter, "filter", cfg.Filter, "all, checkedIn or notCheckedIn")
	fs.StringVar(&cfg.Order, "order", cfg.Order, "oldest, newest, name_asc or name_desc")
	fs.IntVar(&cfg.Concurrency, "concurrency", cfg.Concurrency, "parallel downloads")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if cfg.Concurrency <= 0 {
		return errors.New("concurrency must be > 0")
	}
	locale, err := language.Parse(cfg.Locale)
	if err != nil {
		return fmt.Errorf("parse locale %q: %w", cfg.Locale, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		go runMetricsServer(logger, cfg.MetricsAddr)
	}

	tokens := platformauth.NewManager(cfg.JWTSecret, time.Hour)
	client, err := rosterclient.New(cfg.AuthorityURL, &http.Client{Timeout: cfg.RequestTimeout}, tokens.TokenSource("badge-export", "admin"))
	if err != nil {
		return err
	}
	store := roster.NewStore(client)
	store.Logger = logger
	defer store.Close()

	if err := store.Load(ctx); err != nil {
		return fmt.Errorf("%s: %w", roster.Message(roster.OpList, err), err)
	}
	state := view.State{Filter: view.ParseFilter(cfg.Filter), Order: view.ParseOrder(cfg.Order)}
	entries := view.NewProjector(locale).Project(store.Snapshot().Participants, state)
	logger.Info("exporting badges", "count", len(entries), "dir", cfg.Dir, "filter", state.Filter, "order", state.Order)

	dl := &badge.Downloader{Source: client, Tracker: tasks.New("badge_export"), Logger: logger}
	result := exportBadges(ctx, dl, entries, delivery.DirSink{Dir: cfg.Dir}, cfg.Concurrency)
	logger.Info("badge export complete", "delivered", result.Delivered, "failed", result.Failed)
	if result.Failed > 0 {
		return fmt.Errorf("%d of %d badges failed", result.Failed, len(entries))
	}
	return nil
}

type exportResult struct {
	Delivered int
	Failed    int
}

// exportBadges downloads one badge per entry, at most concurrency at a
// time. Files are prefixed with the entry's position so participants with
// the same name do not overwrite each other.
func exportBadges(ctx context.Context, dl *badge.Downloader, entries []roster.Participant, sink delivery.Sink, concurrency int) exportResult {
	var (
		delivered atomic.Int64
		failed    atomic.Int64
		wg        sync.WaitGroup
	)
	sem := make(chan struct{}, concurrency)

	for i, p := range entries {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if ctx.Err() != nil {
				failed.Add(1)
				return
			}
			if _, err := dl.Download(ctx, p.ID, numberedSink{Sink: sink, N: i + 1}); err != nil {
				failed.Add(1)
				return
			}
			delivered.Add(1)
		}()
	}
	wg.Wait()
	return exportResult{Delivered: int(delivered.Load()), Failed: int(failed.Load())}
}

type numberedSink struct {
	delivery.Sink
	N int
}

func (s numberedSink) Deliver(data []byte, filename string) error {
	return s.Sink.Deliver(data, fmt.Sprintf("%03d-%s", s.N, filename))
}

func runMetricsServer(logger *slog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.DefaultHandler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.Info("badge export metrics endpoint listening", "addr", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Warn("badge export metrics server failed", "err", err)
	}
}
