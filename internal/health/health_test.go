package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/reelforge/internal/config"
)

type staticChecker struct {
	name   string
	result CheckResult
}

func (s staticChecker) Name() string                      { return s.name }
func (s staticChecker) Check(context.Context) CheckResult { return s.result }

func TestHealthIsAlwaysOK(t *testing.T) {
	m := NewManager("v1")
	m.RegisterChecker(staticChecker{"db", CheckResult{Status: StatusUnhealthy}})

	rec := httptest.NewRecorder()
	m.ServeHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Empty(t, resp.Checks)
	assert.Equal(t, "v1", resp.Version)

	rec = httptest.NewRecorder()
	m.ServeHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz?verbose=true", nil))
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, StatusUnhealthy, resp.Status)
	assert.Contains(t, resp.Checks, "db")
}

func TestReadiness(t *testing.T) {
	tests := []struct {
		name     string
		results  []Status
		wantCode int
		want     Status
	}{
		{"no checkers", nil, http.StatusOK, StatusHealthy},
		{"all healthy", []Status{StatusHealthy, StatusHealthy}, http.StatusOK, StatusHealthy},
		{"degraded stays ready", []Status{StatusHealthy, StatusDegraded}, http.StatusOK, StatusDegraded},
		{"unhealthy", []Status{StatusDegraded, StatusUnhealthy}, http.StatusServiceUnavailable, StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager("")
			for i, s := range tt.results {
				m.RegisterChecker(staticChecker{name: string(rune('a' + i)), result: CheckResult{Status: s}})
			}
			rec := httptest.NewRecorder()
			m.ServeReady(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			assert.Equal(t, tt.wantCode, rec.Code)

			var resp ReadinessResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tt.want, resp.Status)
			assert.Equal(t, tt.wantCode == http.StatusOK, resp.Ready)
		})
	}
}

func TestBinaryChecker(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "fake-ffmpeg")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755))

	assert.Equal(t, StatusHealthy, NewBinaryChecker("ffmpeg", bin).Check(context.Background()).Status)
	res := NewBinaryChecker("ffmpeg", filepath.Join(dir, "missing")).Check(context.Background())
	assert.Equal(t, StatusUnhealthy, res.Status)
	assert.NotEmpty(t, res.Error)
}

func TestDirChecker(t *testing.T) {
	ok := t.TempDir()
	missing := filepath.Join(t.TempDir(), "gone")

	c := NewDirChecker("roots", func() []string { return []string{ok} })
	assert.Equal(t, StatusHealthy, c.Check(context.Background()).Status)

	c = NewDirChecker("roots", func() []string { return []string{ok, missing} })
	assert.Equal(t, StatusDegraded, c.Check(context.Background()).Status)

	c = NewDirChecker("roots", func() []string { return []string{missing, ok} })
	assert.Equal(t, StatusUnhealthy, c.Check(context.Background()).Status)
}

func TestPingChecker(t *testing.T) {
	assert.Equal(t, StatusHealthy, NewPingChecker("db", func(context.Context) error { return nil }).Check(context.Background()).Status)
	res := NewPingChecker("db", func(context.Context) error { return errors.New("closed") }).Check(context.Background())
	assert.Equal(t, StatusUnhealthy, res.Status)
	assert.Equal(t, "closed", res.Error)
}

func TestPerformStartupChecks(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "ffmpeg")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755))

	cfg := config.Defaults()
	cfg.DataDir = filepath.Join(dir, "data")
	cfg.FFmpeg.Bin = bin
	cfg.FFmpeg.FFprobeBin = filepath.Join(dir, "ffprobe-missing")

	require.NoError(t, PerformStartupChecks(cfg))
	assert.DirExists(t, cfg.OutputDir())
	assert.DirExists(t, filepath.Join(cfg.TmpDir(), "audio"))
	assert.DirExists(t, filepath.Join(cfg.TmpDir(), "images"))

	cfg.FFmpeg.Bin = filepath.Join(dir, "nope")
	assert.Error(t, PerformStartupChecks(cfg))
}
