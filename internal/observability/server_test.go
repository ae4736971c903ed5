// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Oryen Contributors

package observability

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oryen/oryen/internal/flow"
	"github.com/oryen/oryen/internal/identity"
	"github.com/oryen/oryen/pkg/errutil"
)

func startServer(t *testing.T, ready ReadinessChecker) *Server {
	t.Helper()
	server := NewServer("127.0.0.1:0", ready)
	_, err := server.Start()
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Stop(ctx)
	})
	return server
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url) //nolint:noctx // test helper
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestMetricsEndpoint(t *testing.T) {
	server := startServer(t, nil)

	m := server.Metrics()
	m.ObserveTransition(flow.ModeRegistration, identity.Organization, flow.StepDetails, flow.Advanced)
	m.ObserveCall(flow.OpDocumentExists, flow.ResultOK, 20*time.Millisecond)
	RecordRoute("registration")

	code, body := get(t, "http://"+server.Addr()+"/metrics")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "go_")
	assert.Contains(t, body, "process_")
	assert.Contains(t, body,
		`oryen_flow_transitions_total{kind="organization",mode="registration",step="details",transition="advanced"} 1`)
	assert.Contains(t, body, `oryen_directory_calls_total{op="document_exists",result="ok"} 1`)
	assert.Contains(t, body, "oryen_directory_call_duration_seconds_bucket")
	assert.Contains(t, body, `oryen_session_routes_total{route="registration"}`)
}

func TestMetricsCountCompletions(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveTransition(flow.ModeLogin, identity.Individual, flow.StepLoginPassword, flow.Invalid)
	m.ObserveTransition(flow.ModeLogin, identity.Individual, flow.StepLoginPassword, flow.Completed)
	m.ObserveCall(flow.OpSignIn, identity.InvalidCredentialsError.String(), time.Second)

	assert.InDelta(t, 1, testutil.ToFloat64(m.Completions.WithLabelValues("login", "individual")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(
		m.Calls.WithLabelValues(flow.OpSignIn, identity.InvalidCredentialsError.String())), 0)
	assert.Equal(t, 2, testutil.CollectAndCount(m.Transitions))
}

func TestHealthProbes(t *testing.T) {
	tests := []struct {
		name     string
		ready    ReadinessChecker
		path     string
		wantCode int
		wantBody string
	}{
		{"liveness", nil, "/healthz/liveness", http.StatusOK, "ok"},
		{"ready", func() bool { return true }, "/healthz/readiness", http.StatusOK, "ok"},
		{"not ready", func() bool { return false }, "/healthz/readiness", http.StatusServiceUnavailable, "not ready"},
		{"nil checker is ready", nil, "/healthz/readiness", http.StatusOK, "ok"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := startServer(t, tt.ready)
			code, body := get(t, "http://"+server.Addr()+tt.path)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantBody, strings.TrimSpace(body))
		})
	}
}

func TestServerLifecycle(t *testing.T) {
	t.Run("double start fails", func(t *testing.T) {
		server := startServer(t, nil)
		_, err := server.Start()
		errutil.AssertErrorCode(t, err, "OBSERVABILITY_ALREADY_RUNNING")
	})

	t.Run("stop without start is a no-op", func(t *testing.T) {
		require.NoError(t, NewServer("127.0.0.1:0", nil).Stop(context.Background()))
	})

	t.Run("serve errors reach the channel", func(t *testing.T) {
		server := NewServer("127.0.0.1:0", nil)
		errCh, err := server.Start()
		require.NoError(t, err)
		defer func() { _ = server.Stop(context.Background()) }()

		_ = server.listener.Close()
		select {
		case serveErr := <-errCh:
			assert.Error(t, serveErr)
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for serve error")
		}
	})

	t.Run("channel closes on shutdown", func(t *testing.T) {
		server := NewServer("127.0.0.1:0", nil)
		errCh, err := server.Start()
		require.NoError(t, err)
		require.NoError(t, server.Stop(context.Background()))

		select {
		case err, ok := <-errCh:
			if ok {
				assert.NoError(t, err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for channel to close")
		}
	})
}
