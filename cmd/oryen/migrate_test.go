// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Oryen Contributors

package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oryen/oryen/pkg/errutil"
)

type fakeMigrator struct {
	version uint
	dirty   bool
	calls   []string
	upErr   error
	closed  bool
}

func (f *fakeMigrator) Up() error {
	f.calls = append(f.calls, "up")
	if f.upErr != nil {
		return f.upErr
	}
	f.version = 2
	return nil
}

func (f *fakeMigrator) Down() error {
	f.calls = append(f.calls, "down")
	f.version = 0
	return nil
}

func (f *fakeMigrator) Version() (uint, bool, error) { return f.version, f.dirty, nil }

func (f *fakeMigrator) Force(v int) error {
	f.calls = append(f.calls, "force")
	f.version, f.dirty = uint(v), false //nolint:gosec // test input
	return nil
}

func (f *fakeMigrator) Pending() ([]uint, error) {
	var out []uint
	for _, v := range []uint{1, 2} {
		if v > f.version {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *fakeMigrator) Close() error {
	f.closed = true
	return nil
}

func useFakeMigrator(t *testing.T, f *fakeMigrator) *string {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("DATABASE_URL", "")
	var gotURL string
	orig := newMigrator
	newMigrator = func(url string) (migrator, error) {
		gotURL = url
		return f, nil
	}
	t.Cleanup(func() { newMigrator = orig })
	return &gotURL
}

func TestMigrateUp(t *testing.T) {
	f := &fakeMigrator{}
	url := useFakeMigrator(t, f)

	out, err := execute(t, "migrate", "up", "--database-url", "postgres://u@localhost/oryen")
	require.NoError(t, err)
	assert.Equal(t, "postgres://u@localhost/oryen", *url)
	assert.Equal(t, []string{"up"}, f.calls)
	assert.Contains(t, out, "Schema version: 2")
	assert.True(t, f.closed)
}

func TestMigrateStatus(t *testing.T) {
	f := &fakeMigrator{version: 1}
	useFakeMigrator(t, f)
	t.Setenv("DATABASE_URL", "postgres://env@localhost/oryen")

	out, err := execute(t, "migrate", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Schema version: 1")
	assert.Contains(t, out, "pending: 000002_sessions")

	f.version = 2
	out, err = execute(t, "migrate", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "No pending migrations")
}

func TestMigrateDownAndForce(t *testing.T) {
	f := &fakeMigrator{version: 2, dirty: true}
	useFakeMigrator(t, f)
	t.Setenv("DATABASE_URL", "postgres://env@localhost/oryen")

	out, err := execute(t, "migrate", "force", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Schema version: 1")

	out, err = execute(t, "migrate", "down")
	require.NoError(t, err)
	assert.Contains(t, out, "All migrations rolled back")
	assert.Equal(t, []string{"force", "down"}, f.calls)
}

func TestMigrateErrors(t *testing.T) {
	t.Run("database url required", func(t *testing.T) {
		useFakeMigrator(t, &fakeMigrator{})
		_, err := execute(t, "migrate", "up")
		errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
	})

	t.Run("force needs a number", func(t *testing.T) {
		useFakeMigrator(t, &fakeMigrator{})
		t.Setenv("DATABASE_URL", "postgres://env@localhost/oryen")
		_, err := execute(t, "migrate", "force", "latest")
		errutil.AssertErrorCode(t, err, "MIGRATION_INVALID_VERSION")
	})

	t.Run("up failure is returned", func(t *testing.T) {
		f := &fakeMigrator{upErr: errors.New("boom")}
		useFakeMigrator(t, f)
		t.Setenv("DATABASE_URL", "postgres://env@localhost/oryen")
		_, err := execute(t, "migrate", "up")
		require.Error(t, err)
		assert.True(t, f.closed)
	})
}
