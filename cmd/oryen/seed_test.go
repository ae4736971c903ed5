// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Oryen Contributors

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oryen/oryen/pkg/errutil"
)

func TestSeedDryRun(t *testing.T) {
	out, err := execute(t, "seed", "--dry-run", seedFixture)
	require.NoError(t, err)
	assert.Contains(t, out, "2 accounts valid")
}

func TestSeedDryRunRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("accounts:\n  - kind: robot\n"), 0o600))

	_, err := execute(t, "seed", "--dry-run", path)
	errutil.AssertErrorCode(t, err, "SEED_INVALID")
}

func TestSeedMemoryProvider(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("DATABASE_URL", "")

	out, err := execute(t, "seed", "--provider", "memory", "--log-format", "json", seedFixture)
	require.NoError(t, err)
	assert.Contains(t, out, "Seeded 2 accounts into memory")
}

func TestSeedRequiresFile(t *testing.T) {
	_, err := execute(t, "seed")
	require.Error(t, err)
}
