// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Oryen Contributors

package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/oryen/oryen/internal/config"
	"github.com/oryen/oryen/internal/identity/seed"
)

// Default timeout for seed command.
const defaultSeedTimeout = 30 * time.Second

// seedConfig holds configuration for the seed command.
type seedConfig struct {
	timeout time.Duration
	dryRun  bool
}

// NewSeedCmd creates the seed subcommand.
func NewSeedCmd() *cobra.Command {
	cfg := &seedConfig{}

	cmd := &cobra.Command{
		Use:   "seed <file>",
		Short: "Load accounts from a YAML seed file",
		Long: `Validates a YAML seed file against the seed schema and loads its
accounts into the configured provider. Accounts whose email is already
registered are skipped, so the command can be run repeatedly.

Use --dry-run in CI to validate a file without a database:
  oryen seed --dry-run accounts.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd, args[0], cfg)
		},
	}

	cmd.Flags().DurationVar(&cfg.timeout, "timeout", defaultSeedTimeout, "timeout for provider operations (e.g., 30s, 1m)")
	cmd.Flags().BoolVar(&cfg.dryRun, "dry-run", false, "validate the file without loading it")

	return cmd
}

func runSeed(cmd *cobra.Command, path string, sc *seedConfig) error {
	if sc.dryRun {
		entries, err := seed.ReadFile(path, time.Now())
		if err != nil {
			return err
		}
		cmd.Printf("%s: %d accounts valid\n", path, len(entries))
		return nil
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cfg)
	if cfg.Provider == config.ProviderMemory {
		logger.Warn("the memory provider does not persist seeded accounts")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), sc.timeout)
	defer cancel()

	prov, err := openProvider(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer prov.close()

	n, err := loadSeedFile(ctx, prov, path)
	if err != nil {
		return err
	}
	cmd.Printf("Seeded %d accounts into %s\n", n, prov.name)
	return nil
}
