package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/nats-io/nats.go"

	"github.com/eventdesk/roster/internal/app/authority"
	platformauth "github.com/eventdesk/roster/internal/platform/auth"
	"github.com/eventdesk/roster/internal/platform/dbpool"
	"github.com/eventdesk/roster/internal/platform/env"
	"github.com/eventdesk/roster/internal/platform/logging"
	"github.com/eventdesk/roster/internal/platform/metrics"
	"github.com/eventdesk/roster/internal/platform/natsutil"
)

type config struct {
	Addr            string        `env:"AUTHORITY_ADDR" envDefault:":8090"`
	Storage         string        `env:"AUTHORITY_STORAGE" envDefault:"postgres"`
	JWTSecret       string        `env:"JWT_SECRET" envDefault:"dev-insecure-change-me"`
	NATSURL         string        `env:"NATS_URL"`
	NATSTimeout     time.Duration `env:"NATS_CONNECT_TIMEOUT" envDefault:"20s"`
	DBTimeout       time.Duration `env:"DB_CONNECT_TIMEOUT" envDefault:"30s"`
	BadgeTitle      string        `env:"BADGE_TITLE" envDefault:"EVENT BADGE"`
	TimeZone        string        `env:"ROSTER_TIMEZONE" envDefault:"Asia/Dubai"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	DB              dbpool.Config
}

func main() {
	logger := logging.Setup("roster-authority")
	if err := run(logger); err != nil {
		logger.Error("roster-authority stopped", "err", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return err
	}
	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return fmt.Errorf("load time zone %q: %w", cfg.TimeZone, err)
	}

	var repo authority.Repository
	switch cfg.Storage {
	case "memory":
		repo = authority.NewMemoryRepository()
		logger.Warn("using in-memory storage; participants are lost on restart")
	case "postgres":
		pool, err := dbpool.NewWithRetry(runCtx, cfg.DB, cfg.DBTimeout)
		if err != nil {
			return err
		}
		defer pool.Close()
		repo = authority.NewPostgresRepository(pool)
	default:
		return fmt.Errorf("unknown AUTHORITY_STORAGE %q", cfg.Storage)
	}
	if err := repo.EnsureSchema(runCtx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	var (
		publish authority.PublishFunc
		conn    *nats.Conn
	)
	if cfg.NATSURL != "" {
		client, err := natsutil.ConnectJetStreamWithRetry(runCtx, cfg.NATSURL, "roster-authority", cfg.NATSTimeout)
		if err != nil {
			return err
		}
		defer client.Close()
		publish = natsutil.JetStreamPublisher{JS: client.JS}.Publish
		conn = client.Conn
	}

	service := authority.NewService(repo, authority.NewPDFRenderer(cfg.BadgeTitle, loc), publish)
	service.Logger = logger
	handler := authority.NewHandler(service, platformauth.NewManager(cfg.JWTSecret, time.Hour))

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := checkReadiness(r.Context(), repo, conn); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", metrics.DefaultHandler())
	mux.Handle("/", handler.Router())

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("roster authority listening", "addr", cfg.Addr, "storage", cfg.Storage, "events", cfg.NATSURL != "")
	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-runCtx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", "err", err)
	}
	return nil
}

func checkReadiness(ctx context.Context, repo authority.Repository, conn *nats.Conn) error {
	if conn != nil && conn.Status() != nats.CONNECTED {
		return fmt.Errorf("nats is not connected: %s", conn.Status().String())
	}
	checkCtx, cancel := context.WithTimeout(ctx, 1500*time.Millisecond)
	defer cancel()
	if err := repo.Ping(checkCtx); err != nil {
		return fmt.Errorf("storage ping failed: %w", err)
	}
	return nil
}
