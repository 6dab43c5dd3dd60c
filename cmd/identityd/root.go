// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GlobalCart Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the identityd CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "identityd",
		Short: "identityd - GlobalCart identity and access service",
		Long: `identityd manages GlobalCart accounts: registration, login,
session verification, password lifecycle, and role administration.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	// Add subcommands
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewCreateAdminCmd())

	return cmd
}
