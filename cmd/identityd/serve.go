// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GlobalCart Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/globalcart/identity/internal/auth"
	authpg "github.com/globalcart/identity/internal/auth/postgres"
	"github.com/globalcart/identity/internal/config"
	"github.com/globalcart/identity/internal/httpapi"
	"github.com/globalcart/identity/internal/logging"
	"github.com/globalcart/identity/internal/mail"
	"github.com/globalcart/identity/internal/observability"
	"github.com/globalcart/identity/internal/store"
)

const shutdownTimeout = 5 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the identity HTTP server",
		Long: `Start the identity server: the JSON API for registration, login,
sessions, password lifecycle, and role administration, plus the
metrics and health endpoints.`,
		RunE: runServe,
	}

	cmd.Flags().String("addr", "", "API listen address")
	cmd.Flags().String("metrics-addr", "", "metrics/health HTTP address (empty = config default)")
	cmd.Flags().String("database-url", "", "PostgreSQL connection string")
	cmd.Flags().Duration("session-ttl", 0, "session token lifetime")
	cmd.Flags().Duration("reset-ttl", 0, "reset token lifetime")
	cmd.Flags().String("log-format", "", "log format (json or text)")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database URL is required (config file or DATABASE_URL)")
	}
	if cfg.Session.Secret == "" {
		return oops.Code("CONFIG_INVALID").Errorf("session secret is required (config file or SESSION_SECRET)")
	}

	logging.SetDefault("identityd", version, cfg.Log.Format)

	slog.Info("starting identity server",
		"addr", cfg.Server.Addr,
		"log_format", cfg.Log.Format,
	)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	pool, err := store.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer pool.Close()

	slog.Info("connected to database")

	users := authpg.NewUserRepository(pool)

	tokens, err := auth.NewSessionTokens([]byte(cfg.Session.Secret), cfg.Session.TTL)
	if err != nil {
		return err
	}
	hasher := auth.NewArgon2idHasher()

	authSvc, err := auth.NewService(users, tokens, hasher)
	if err != nil {
		return err
	}

	var notifier auth.Notifier
	if cfg.SMTP.Host != "" {
		notifier, err = mail.NewMailer(mail.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			From:     cfg.SMTP.From,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
		})
		if err != nil {
			return err
		}
	} else {
		slog.Warn("smtp host not configured, reset tokens will be logged instead of mailed")
		notifier = logNotifier{}
	}

	resets, err := auth.NewPasswordResetService(users, tokens, hasher, notifier, cfg.Reset.TTL)
	if err != nil {
		return err
	}

	admin, err := auth.NewAdminService(users)
	if err != nil {
		return err
	}

	// Start observability server if configured
	var obsServer *observability.Server
	var metrics *observability.Metrics
	if cfg.Server.MetricsAddr != "" {
		obsServer = observability.NewServer(cfg.Server.MetricsAddr, func() bool {
			pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
			defer pingCancel()
			return pool.Ping(pingCtx) == nil
		})
		obsErrChan, obsErr := obsServer.Start()
		if obsErr != nil {
			return oops.With("operation", "start observability server").Wrap(obsErr)
		}
		metrics = obsServer.Metrics()
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
	}

	handler, err := httpapi.NewHandler(authSvc, resets, admin, metrics, slog.Default())
	if err != nil {
		return err
	}

	apiServer, err := httpapi.NewServer(cfg.Server.Addr, handler.Routes())
	if err != nil {
		return err
	}
	apiErrChan, err := apiServer.Start()
	if err != nil {
		return oops.With("operation", "start api server").Wrap(err)
	}
	go monitorServerErrors(ctx, cancel, apiErrChan, "api")

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("Identity server started")
	slog.Info("identity server ready", "addr", apiServer.Addr())

	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down")
	}

	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		slog.Warn("error stopping api server", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			slog.Warn("error stopping observability server", "error", err)
		}
	}

	slog.Info("shutdown complete")
	return nil
}

// monitorServerErrors cancels the run context when a server reports an error.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			// Channel closed, server stopped gracefully
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
		// Context cancelled, exit monitoring
	}
}

// logNotifier logs reset notifications instead of delivering them. Used when
// no SMTP relay is configured, for development setups.
type logNotifier struct{}

func (logNotifier) Send(ctx context.Context, to, subject, body string) error {
	slog.InfoContext(ctx, "reset notification", "to", to, "subject", subject, "body", body)
	return nil
}
