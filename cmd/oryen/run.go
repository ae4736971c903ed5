// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Oryen Contributors

package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/oryen/oryen/internal/observability"
	"github.com/oryen/oryen/internal/session"
	"github.com/oryen/oryen/internal/xdg"
	"github.com/oryen/oryen/pkg/errutil"
)

// onboardingMarker is created in the data directory once onboarding is seen.
const onboardingMarker = "onboarding-seen"

const shutdownTimeout = 5 * time.Second

// NewRunCmd creates the run subcommand.
func NewRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start an interactive session",
		Long: `Start an interactive session on the configured identity provider.
The session walks through splash, onboarding, kind selection and document
entry, then signs in or registers. Type 'help' at the prompt.`,
		RunE: runSession,
	}
}

func runSession(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	prov, err := openProvider(ctx, cfg, logger)
	if err != nil {
		return oops.Code("PROVIDER_OPEN_FAILED").With("provider", cfg.Provider).Wrap(err)
	}
	defer prov.close()

	if cfg.Seed.File != "" {
		n, err := loadSeedFile(ctx, prov, cfg.Seed.File)
		if err != nil {
			return err
		}
		logger.Info("seed loaded", "path", cfg.Seed.File, "accounts", n)
	}

	opts := []session.Option{
		session.WithLogger(logger),
		session.WithOnboardingSeen(cfg.Onboarding.Skip || onboardingSeen()),
	}
	routed := func(session.Route) {}
	if cfg.Metrics.Addr != "" {
		srv := observability.NewServer(cfg.Metrics.Addr, nil)
		errCh, err := srv.Start()
		if err != nil {
			return err
		}
		go func() {
			for serveErr := range errCh {
				errutil.LogError(logger, "observability server failed", serveErr)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			if err := srv.Stop(shutdownCtx); err != nil {
				errutil.LogWarn(logger, "observability shutdown failed", err)
			}
		}()
		opts = append(opts, session.WithObserver(srv.Metrics()))
		routed = func(r session.Route) { observability.RecordRoute(r.String()) }
	}

	ctrl, err := session.NewController(prov.dir, opts...)
	if err != nil {
		return err
	}
	if err := ctrl.Start(ctx); err != nil {
		return err
	}
	defer ctrl.Close()

	r := &repl{
		ctrl:      ctrl,
		out:       cmd.OutOrStdout(),
		timeout:   cfg.Lookup.Timeout,
		routed:    routed,
		onboarded: func() { markOnboardingSeen(logger) },
	}
	return r.run(ctx, cmd.InOrStdin())
}

func onboardingMarkerPath() (string, error) {
	dir, err := xdg.DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, onboardingMarker), nil
}

func onboardingSeen() bool {
	path, err := onboardingMarkerPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

func markOnboardingSeen(logger *slog.Logger) {
	path, err := onboardingMarkerPath()
	if err == nil {
		err = xdg.EnsureDir(filepath.Dir(path))
	}
	if err == nil {
		err = os.WriteFile(path, nil, 0o600)
	}
	if err != nil && !errors.Is(err, fs.ErrExist) {
		errutil.LogWarn(logger, "could not record onboarding", err)
	}
}
