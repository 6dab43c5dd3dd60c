// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GlobalCart Contributors

package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/globalcart/identity/internal/auth"
	authpg "github.com/globalcart/identity/internal/auth/postgres"
	"github.com/globalcart/identity/internal/config"
	"github.com/globalcart/identity/internal/store"
)

// Default timeout for the create-admin command.
const defaultCreateAdminTimeout = 30 * time.Second

// createAdminConfig holds configuration for the create-admin command.
type createAdminConfig struct {
	name     string
	email    string
	password string
	timeout  time.Duration
}

// NewCreateAdminCmd creates the create-admin subcommand.
func NewCreateAdminCmd() *cobra.Command {
	cfg := &createAdminConfig{}

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create (or promote) an administrator account",
		Long: `Creates an administrator account for bootstrapping a fresh deployment.
This command is idempotent - if the email is already registered, the
existing account is promoted to administrator instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreateAdmin(cmd, args, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.name, "name", "Administrator", "display name for the account")
	cmd.Flags().StringVar(&cfg.email, "email", "", "email address for the account (required)")
	cmd.Flags().StringVar(&cfg.password, "password", "", "password (defaults to ADMIN_PASSWORD environment variable)")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", defaultCreateAdminTimeout, "timeout for database operations (e.g., 30s, 1m)")
	//nolint:errcheck // flag is registered above
	cmd.MarkFlagRequired("email")

	return cmd
}

func runCreateAdmin(cmd *cobra.Command, _ []string, cfg *createAdminConfig) error {
	appCfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}
	if appCfg.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database URL is required (config file or DATABASE_URL)")
	}

	password := cfg.password
	if password == "" {
		password = os.Getenv("ADMIN_PASSWORD")
	}
	if password == "" {
		return oops.Code("CONFIG_INVALID").Errorf("password is required (--password or ADMIN_PASSWORD)")
	}
	if err := auth.ValidatePassword(password); err != nil {
		return err
	}

	// Use cmd.Context() to respect SIGINT/SIGTERM signals
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.timeout)
	defer cancel()

	cmd.Println("Connecting to database...")
	pool, err := store.NewPool(ctx, appCfg.Database.URL)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer pool.Close()

	users := authpg.NewUserRepository(pool)
	hasher := auth.NewArgon2idHasher()

	hash, err := hasher.Hash(password)
	if err != nil {
		return oops.Code("ADMIN_CREATE_FAILED").With("operation", "hash password").Wrap(err)
	}

	user, err := auth.NewUser(cfg.name, cfg.email, hash)
	if err != nil {
		return err
	}
	user.Role = auth.RoleAdmin

	if err := users.Create(ctx, user); err != nil {
		if !errors.Is(err, auth.ErrEmailTaken) {
			return oops.Code("ADMIN_CREATE_FAILED").With("operation", "create admin").Wrap(err)
		}

		// Already registered: promote the existing account instead
		email, normErr := auth.NormalizeEmail(cfg.email)
		if normErr != nil {
			return normErr
		}
		existing, getErr := users.GetByEmail(ctx, email, false)
		if getErr != nil {
			return oops.Code("ADMIN_CREATE_FAILED").With("operation", "look up existing account").Wrap(getErr)
		}
		if existing.Role == auth.RoleAdmin {
			cmd.Printf("Account %s is already an administrator\n", existing.Email)
			return nil
		}
		if err := users.UpdateRole(ctx, existing.ID, auth.RoleAdmin); err != nil {
			return oops.Code("ADMIN_CREATE_FAILED").With("operation", "promote existing account").Wrap(err)
		}
		cmd.Printf("Promoted existing account %s to administrator\n", existing.Email)
		return nil
	}

	cmd.Printf("Created administrator %s (%s)\n", user.Name, user.Email)
	return nil
}
