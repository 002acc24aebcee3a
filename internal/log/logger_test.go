// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	Reset()
	Configure(Config{Level: "debug", Output: &buf, Service: "test", Version: "v0"})
	t.Cleanup(func() {
		Reset()
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	})
	return &buf
}

func lastLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.NotEmpty(t, lines)
	var m map[string]any
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &m))
	return m
}

func TestConfigure_AttachesServiceAndVersion(t *testing.T) {
	buf := captureLogs(t)

	l := WithComponent("synth")
	l.Info().Str(FieldEvent, "synth.started").Msg("hello")

	entry := lastLine(t, buf)
	assert.Equal(t, "test", entry["service"])
	assert.Equal(t, "v0", entry["version"])
	assert.Equal(t, "synth", entry[FieldComponent])
	assert.Equal(t, "synth.started", entry[FieldEvent])
}

func TestSetLevel(t *testing.T) {
	captureLogs(t)

	assert.True(t, SetLevel("warn"))
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
	assert.False(t, SetLevel("loud"))
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
}

func TestWithContext_AddsCorrelationFields(t *testing.T) {
	buf := captureLogs(t)

	ctx := ContextWithRequestID(context.Background(), "req-1")
	ctx = ContextWithJobID(ctx, "job-9")
	l := WithComponentFromContext(ctx, "jobs")
	l.Info().Msg("x")

	entry := lastLine(t, buf)
	assert.Equal(t, "req-1", entry[FieldRequestID])
	assert.Equal(t, "job-9", entry[FieldJobID])
}

func TestContextIDs(t *testing.T) {
	//nolint:staticcheck // nil context is handled explicitly
	ctx := ContextWithRequestID(nil, "abc")
	assert.Equal(t, "abc", RequestIDFromContext(ctx))
	assert.Empty(t, JobIDFromContext(ctx))
	assert.Empty(t, RequestIDFromContext(context.Background()))
}

func TestMiddleware_LogsStatus(t *testing.T) {
	buf := captureLogs(t)

	h := Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short"))
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/videos", nil)
	req = req.WithContext(ContextWithRequestID(req.Context(), "rid"))
	h.ServeHTTP(httptest.NewRecorder(), req)

	entry := lastLine(t, buf)
	assert.Equal(t, "request.handled", entry[FieldEvent])
	assert.Equal(t, float64(http.StatusTeapot), entry[FieldStatus])
	assert.Equal(t, float64(5), entry[FieldBytes])
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "rid", entry[FieldRequestID])
}
