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

	"github.com/nats-io/nats.go"

	"github.com/eventdesk/roster/internal/app/audit"
	"github.com/eventdesk/roster/internal/messaging"
	"github.com/eventdesk/roster/internal/platform/dbpool"
	"github.com/eventdesk/roster/internal/platform/env"
	"github.com/eventdesk/roster/internal/platform/logging"
	"github.com/eventdesk/roster/internal/platform/metrics"
	"github.com/eventdesk/roster/internal/platform/natsutil"
)

const consumerName = "roster-audit"

type config struct {
	Addr            string        `env:"AUDIT_ADDR" envDefault:":8091"`
	NATSURL         string        `env:"NATS_URL" envDefault:"nats://localhost:4222"`
	NATSTimeout     time.Duration `env:"NATS_CONNECT_TIMEOUT" envDefault:"20s"`
	DBTimeout       time.Duration `env:"DB_CONNECT_TIMEOUT" envDefault:"30s"`
	InsertTimeout   time.Duration `env:"AUDIT_INSERT_TIMEOUT" envDefault:"3s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	DB              dbpool.Config
}

func main() {
	logger := logging.Setup("roster-audit")
	if err := run(logger); err != nil {
		logger.Error("roster-audit stopped", "err", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return err
	}

	pool, err := dbpool.NewWithRetry(ctx, cfg.DB, cfg.DBTimeout)
	if err != nil {
		return err
	}
	defer pool.Close()

	repository := audit.NewEventRepository(pool)
	if err := repository.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	service := audit.NewService(repository)

	client, err := natsutil.ConnectJetStreamWithRetry(ctx, cfg.NATSURL, consumerName, cfg.NATSTimeout)
	if err != nil {
		return err
	}
	defer client.Close()

	sub, err := client.SubscribeDurable(messaging.EventSubjects, consumerName, func(msg *nats.Msg) {
		var streamSeq uint64
		if meta, metaErr := msg.Metadata(); metaErr == nil {
			streamSeq = meta.Sequence.Stream
		}

		insertCtx, cancel := context.WithTimeout(ctx, cfg.InsertTimeout)
		defer cancel()
		if err := service.Handle(insertCtx, msg.Data, streamSeq); err != nil {
			if errors.Is(err, audit.ErrInvalidEventPayload) || errors.Is(err, audit.ErrUnsupportedEventType) {
				logger.Warn("discarding event", "subject", msg.Subject, "err", err)
				_ = msg.Term()
				return
			}
			logger.Error("event persistence failed", "subject", msg.Subject, "err", err)
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", messaging.EventSubjects, err)
	}
	defer func() { _ = sub.Drain() }()
	logger.Info("audit consumer listening", "subject", sub.Subject, "durable", consumerName)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if client.Conn.Status() != nats.CONNECTED {
			http.Error(w, "nats is not connected", http.StatusServiceUnavailable)
			return
		}
		pingCtx, cancel := context.WithTimeout(r.Context(), 1500*time.Millisecond)
		defer cancel()
		if err := repository.Ping(pingCtx); err != nil {
			http.Error(w, "postgres ping failed", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", metrics.DefaultHandler())
	mux.Handle("/", audit.NewHandler(service).Router())

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", "err", err)
	}
	return nil
}
