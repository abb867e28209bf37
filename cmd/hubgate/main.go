package main

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hubgate/hubgate/pkg/api"
	"github.com/hubgate/hubgate/pkg/auth"
	"github.com/hubgate/hubgate/pkg/config"
	"github.com/hubgate/hubgate/pkg/github"
	"github.com/hubgate/hubgate/pkg/observability"
	"github.com/hubgate/hubgate/pkg/session"
	"github.com/hubgate/hubgate/pkg/storage"
	"github.com/hubgate/hubgate/pkg/vault"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, nil).WithError(err).Error("invalid configuration")
		os.Exit(1)
	}

	log := observability.NewLogger(cfg.Observability.LogLevel, nil)
	metrics := observability.NewMetrics(nil)
	audit := auth.NewAuditLogger(log)

	provider := github.NewClient(github.Config{
		ClientID:     cfg.GitHub.ClientID,
		ClientSecret: cfg.GitHub.ClientSecret,
		RedirectURL:  cfg.GitHub.RedirectURL,
		Scopes:       cfg.GitHub.Scopes,
		AuthURL:      cfg.GitHub.AuthURL,
		TokenURL:     cfg.GitHub.TokenURL,
		APIBase:      cfg.GitHub.APIBase,
	}, metrics)

	params := auth.StrategyParams{
		Mode:                  cfg.Auth.Mode,
		SingleUserAuthEnabled: cfg.Auth.SingleUserAuthEnabled,
		AllowedIdentity:       cfg.Auth.AllowedIdentity,
		AdminIdentity:         cfg.Auth.AdminIdentity,
		DefaultProviderToken:  cfg.Auth.DefaultProviderToken,
		TokenTTL:              cfg.Auth.TokenTTL,
		Provider:              provider,
		Audit:                 audit,
		Metrics:               metrics,
	}

	if cfg.AuthRequired() {
		tokens, err := session.NewService([]byte(cfg.Auth.SigningKey))
		if err != nil {
			log.WithError(err).Error("failed to initialize token service")
			os.Exit(1)
		}
		params.Tokens = tokens
	}

	var db *sql.DB
	var users auth.UserStore
	if cfg.Auth.Mode == auth.ModeMultiUser {
		sealer, err := vault.New([]byte(cfg.Auth.EncryptionKey))
		if err != nil {
			log.WithError(err).Error("failed to initialize credential vault")
			os.Exit(1)
		}
		params.Vault = sealer

		db, err = storage.Open(cfg.Storage.Driver, cfg.Storage.DSN())
		if err != nil {
			log.WithError(err).Error("failed to open storage")
			os.Exit(1)
		}
		defer db.Close()

		if err := storage.Migrate(context.Background(), db, cfg.Storage.Driver); err != nil {
			log.WithError(err).Error("failed to run migrations")
			os.Exit(1)
		}

		if cfg.Storage.Driver == storage.DriverPostgres {
			users = storage.NewPostgresUserStore(db, metrics)
		} else {
			users = storage.NewSQLiteUserStore(db, metrics)
		}
		params.Users = users
	}

	strategy, err := auth.SelectStrategy(params)
	if err != nil {
		log.WithError(err).Error("failed to select auth strategy")
		os.Exit(1)
	}
	guard := auth.NewGuard(strategy, users)

	log.WithFields(map[string]interface{}{
		"mode":     cfg.Auth.Mode,
		"strategy": strategy.Name(),
		"storage":  cfg.Storage.Driver,
	}).Info("hubgate configured")

	server := api.NewServer(api.Params{
		Config:   cfg,
		Logger:   log,
		Metrics:  metrics,
		Guard:    guard,
		Users:    users,
		Audit:    audit,
		Provider: provider,
		DB:       db,
	})

	addr := net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("hubgate listening")
		errCh <- httpServer.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.WithField("signal", sig.String()).Info("shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("server failed")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
		os.Exit(1)
	}
	log.Info("hubgate stopped")
}
