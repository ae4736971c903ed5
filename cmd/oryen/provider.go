// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Oryen Contributors

package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/oryen/oryen/internal/config"
	"github.com/oryen/oryen/internal/identity"
	"github.com/oryen/oryen/internal/identity/memory"
	"github.com/oryen/oryen/internal/identity/postgres"
	"github.com/oryen/oryen/internal/identity/seed"
)

// provider is an opened identity directory with its seeding and shutdown.
type provider struct {
	name  string
	dir   identity.Directory
	seed  func(ctx context.Context, entries []seed.Entry) (int, error)
	close func()
}

func openProvider(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*provider, error) {
	switch cfg.Provider {
	case config.ProviderPostgres:
		dir, err := postgres.Open(ctx, cfg.Database.URL,
			postgres.WithLogger(logger),
			postgres.WithRetry(uint64(cfg.Lookup.Retries), 50*time.Millisecond), //nolint:gosec // validated non-negative
		)
		if err != nil {
			return nil, err
		}
		return &provider{name: cfg.Provider, dir: dir, seed: dir.Seed, close: dir.Close}, nil
	case config.ProviderMemory:
		dir := memory.New(memory.WithLogger(logger))
		return &provider{
			name: cfg.Provider,
			dir:  dir,
			seed: func(ctx context.Context, entries []seed.Entry) (int, error) {
				if err := dir.Seed(ctx, entries); err != nil {
					return 0, err
				}
				return len(entries), nil
			},
			close: dir.Close,
		}, nil
	default:
		return nil, oops.Code("CONFIG_INVALID").With("key", "provider").Errorf("unknown provider %q", cfg.Provider)
	}
}

// loadSeedFile reads path and loads its accounts into p.
func loadSeedFile(ctx context.Context, p *provider, path string) (int, error) {
	entries, err := seed.ReadFile(path, time.Now())
	if err != nil {
		return 0, err
	}
	n, err := p.seed(ctx, entries)
	if err != nil {
		return n, oops.Code("SEED_FAILED").With("path", path).With("provider", p.name).Wrap(err)
	}
	return n, nil
}
