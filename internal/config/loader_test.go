// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ManuGH/reelforge/internal/validate"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("REELFORGE_DATA_DIR", t.TempDir())
	cfg, err := NewLoader("", "v1.2.3").Load()
	require.NoError(t, err)

	assert.Equal(t, "v1.2.3", cfg.Version)
	assert.Equal(t, ":8080", cfg.Server.Listen)
	assert.Equal(t, 10*time.Minute, cfg.FFmpeg.Timeout)
	assert.Equal(t, 1, cfg.Jobs.Workers)
	assert.Equal(t, BackendMemory, cfg.Jobs.Backend)
	assert.Equal(t, "ffprobe", cfg.FFmpeg.FFprobeBin)
	assert.True(t, filepath.IsAbs(cfg.DataDir))
	assert.Equal(t, filepath.Join(cfg.DataDir, "output", "videos"), cfg.AssetRoots()[0])
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
data_dir: `+dir+`
server:
  listen: "127.0.0.1:9000"
storage:
  roots: ["/srv/media", "/mnt/archive"]
ffmpeg:
  timeout: 5m
  stall_timeout: 45s
jobs:
  workers: 2
  backend: badger
log:
  level: debug
`)
	t.Setenv("REELFORGE_JOBS_WORKERS", "3")
	t.Setenv("REELFORGE_LOG_LEVEL", "warn")

	cfg, err := NewLoader(path, "dev").Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Listen)
	assert.Equal(t, 5*time.Minute, cfg.FFmpeg.Timeout)
	assert.Equal(t, 45*time.Second, cfg.FFmpeg.StallTimeout)
	assert.Equal(t, 5*time.Second, cfg.FFmpeg.KillGrace, "unset keys keep defaults")
	assert.Equal(t, BackendBadger, cfg.Jobs.Backend)
	assert.Equal(t, 3, cfg.Jobs.Workers, "env wins over file")
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, []string{cfg.OutputDir(), "/srv/media", "/mnt/archive"}, cfg.AssetRoots())
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "jobs:\n  wokers: 2\n")
	_, err := NewLoader(path, "").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "strict config parse error")
}

func TestLoadRejectsMultipleDocuments(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "log:\n  level: info\n---\nlog:\n  level: debug\n")
	_, err := NewLoader(path, "").Load()
	assert.Error(t, err)
}

func TestLoadRejectsNonYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))
	_, err := NewLoader(path, "").Load()
	assert.Error(t, err)
}

func TestLoadEmptyFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("REELFORGE_DATA_DIR", dir)
	path := writeConfig(t, dir, "")
	cfg, err := NewLoader(path, "").Load()
	require.NoError(t, err)
	assert.Equal(t, Defaults().Server.Listen, cfg.Server.Listen)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		field string
	}{
		{"workers zero", map[string]string{"REELFORGE_JOBS_WORKERS": "0"}, "jobs.workers"},
		{"unknown backend", map[string]string{"REELFORGE_JOBS_BACKEND": "etcd"}, "jobs.backend"},
		{"bad level", map[string]string{"REELFORGE_LOG_LEVEL": "loud"}, "log.level"},
		{"bad listen", map[string]string{"REELFORGE_LISTEN": "8080"}, "server.listen"},
		{"zero timeout", map[string]string{"REELFORGE_FFMPEG_TIMEOUT": "0s"}, "ffmpeg.timeout"},
		{"telemetry exporter", map[string]string{"REELFORGE_TELEMETRY_ENABLED": "true", "REELFORGE_OTEL_EXPORTER": "zipkin"}, "telemetry.exporter"},
		{"redis without addr", map[string]string{"REELFORGE_JOBS_BACKEND": "redis", "REELFORGE_REDIS_ADDR": " "}, "jobs.redis.addr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("REELFORGE_DATA_DIR", t.TempDir())
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := NewLoader("", "").Load()
			require.Error(t, err)

			var verr validate.ValidationError
			require.True(t, errors.As(err, &verr))
			var fields []string
			for _, e := range verr.Errors() {
				fields = append(fields, e.Field)
			}
			assert.Contains(t, fields, tt.field)
		})
	}
}

func TestInvalidEnvFallsBackToDefault(t *testing.T) {
	t.Setenv("REELFORGE_DATA_DIR", t.TempDir())
	t.Setenv("REELFORGE_JOBS_QUEUE_SIZE", "many")
	t.Setenv("REELFORGE_FFMPEG_KILL_GRACE", "soon")
	cfg, err := NewLoader("", "").Load()
	require.NoError(t, err)
	assert.Equal(t, Defaults().Jobs.QueueSize, cfg.Jobs.QueueSize)
	assert.Equal(t, Defaults().FFmpeg.KillGrace, cfg.FFmpeg.KillGrace)
}

func TestParseList(t *testing.T) {
	t.Setenv("REELFORGE_TEST_LIST", " /a, ,/b ,")
	assert.Equal(t, []string{"/a", "/b"}, ParseList("REELFORGE_TEST_LIST", nil))
	assert.Equal(t, []string{"x"}, ParseList("REELFORGE_TEST_UNSET", []string{"x"}))
}

func TestDumpRedactsSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.Jobs.Redis.Password = "hunter2"
	out, err := Dump(cfg)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "hunter2")

	var round AppConfig
	require.NoError(t, yaml.Unmarshal(out, &round))
	assert.Equal(t, cfg.FFmpeg.Timeout, round.FFmpeg.Timeout)
	assert.Equal(t, cfg.Server.Listen, round.Server.Listen)
}

func TestResolveFFprobeBin(t *testing.T) {
	dir := t.TempDir()
	ffmpeg := filepath.Join(dir, "ffmpeg")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ffprobe"), []byte{}, 0o755))

	assert.Equal(t, "/opt/ffprobe", ResolveFFprobeBin("/opt/ffprobe", ffmpeg))
	assert.Equal(t, filepath.Join(dir, "ffprobe"), ResolveFFprobeBin("", ffmpeg))
	assert.Equal(t, "ffprobe", ResolveFFprobeBin("", "ffmpeg"))
	assert.Equal(t, "ffprobe", ResolveFFprobeBin("", filepath.Join(t.TempDir(), "ffmpeg")))
}
