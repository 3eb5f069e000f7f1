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

	"golang.org/x/text/language"

	"github.com/eventdesk/roster/internal/app/console"
	"github.com/eventdesk/roster/internal/messaging"
	platformauth "github.com/eventdesk/roster/internal/platform/auth"
	"github.com/eventdesk/roster/internal/platform/env"
	"github.com/eventdesk/roster/internal/platform/logging"
	"github.com/eventdesk/roster/internal/platform/natsutil"
	"github.com/eventdesk/roster/internal/roster"
	"github.com/eventdesk/roster/internal/roster/view"
	"github.com/eventdesk/roster/internal/rosterclient"
)

type config struct {
	Addr              string        `env:"CONSOLE_ADDR" envDefault:":8080"`
	AuthorityURL      string        `env:"AUTHORITY_URL" envDefault:"http://localhost:8090"`
	AuthorityTimeout  time.Duration `env:"AUTHORITY_TIMEOUT" envDefault:"15s"`
	JWTSecret         string        `env:"JWT_SECRET" envDefault:"dev-insecure-change-me"`
	TimeZone          string        `env:"ROSTER_TIMEZONE" envDefault:"Asia/Dubai"`
	Locale            string        `env:"ROSTER_LOCALE" envDefault:"en"`
	AdminUser         string        `env:"ADMIN_USER" envDefault:"admin"`
	AdminPasswordHash string        `env:"ADMIN_PASSWORD_HASH"`
	NATSURL           string        `env:"NATS_URL"`
	NATSTimeout       time.Duration `env:"NATS_CONNECT_TIMEOUT" envDefault:"20s"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

func main() {
	logger := logging.Setup("roster-console")
	if err := run(logger); err != nil {
		logger.Error("roster-console stopped", "err", err)
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
	locale, err := language.Parse(cfg.Locale)
	if err != nil {
		return fmt.Errorf("parse locale %q: %w", cfg.Locale, err)
	}

	tokens := platformauth.NewManager(cfg.JWTSecret, time.Hour)
	client, err := rosterclient.New(cfg.AuthorityURL, &http.Client{Timeout: cfg.AuthorityTimeout}, tokens.TokenSource("roster-console", "admin"))
	if err != nil {
		return err
	}

	store := roster.NewStore(client)
	store.Logger = logger
	defer store.Close()

	controller := console.NewController(store, client, view.NewProjector(locale), loc)
	controller.Logger = logger
	controller.Downloads.Logger = logger

	// The first load failing is not fatal; the dashboard retries on refresh.
	loadCtx, cancelLoad := context.WithTimeout(runCtx, cfg.AuthorityTimeout)
	if err := controller.Refresh(loadCtx); err != nil {
		logger.Warn("initial roster load failed", "err", err)
	}
	cancelLoad()

	if cfg.NATSURL != "" {
		nc, err := natsutil.ConnectJetStreamWithRetry(runCtx, cfg.NATSURL, "roster-console", cfg.NATSTimeout)
		if err != nil {
			return err
		}
		defer nc.Close()

		refresher := console.NewLiveRefresh(store)
		refresher.Logger = logger
		defer refresher.Stop()
		sub, err := nc.Subscribe(messaging.EventSubjects, refresher.HandleEvent)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", messaging.EventSubjects, err)
		}
		defer func() { _ = sub.Unsubscribe() }()
		logger.Info("live refresh enabled", "subject", messaging.EventSubjects)
	}

	handler := console.NewHandler(controller, console.BasicAuth{
		Username:     cfg.AdminUser,
		PasswordHash: []byte(cfg.AdminPasswordHash),
	})
	if cfg.AdminPasswordHash == "" {
		logger.Warn("ADMIN_PASSWORD_HASH is empty; dashboard is unauthenticated")
	}
	handler.Ready = func(context.Context) error {
		if !store.Loaded() {
			return errors.New("roster not loaded")
		}
		return nil
	}

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      45 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("roster console listening", "addr", cfg.Addr, "authority", cfg.AuthorityURL)
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
