// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Oryen Contributors

package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/oryen/oryen/internal/config"
	"github.com/oryen/oryen/internal/logging"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the oryen CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "oryen",
		Short: "Oryen - document-gated sign-in and registration",
		Long: `Oryen routes a user from launch to an authenticated session.
A CPF or CNPJ decides whether the user signs in or registers, and a
step-by-step flow collects the rest against an identity directory.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSeedCmd())
	cmd.AddCommand(NewCheckCmd())
	cmd.AddCommand(NewSchemaCmd())

	return cmd
}

// loadConfig resolves the configuration for cmd, honoring its flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(configFile, cmd.Flags())
}

// newLogger writes to the command's error stream so the interactive
// session keeps stdout to itself.
func newLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	return logging.SetDefault("oryen", version, cfg.Log.Format, cmd.ErrOrStderr())
}
