// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/reelforge/internal/config"
	"github.com/ManuGH/reelforge/internal/jobs"
)

func testConfig(t *testing.T) config.AppConfig {
	t.Helper()
	cfg := config.Defaults()
	cfg.DataDir = t.TempDir()
	cfg.FFmpeg.FFprobeBin = "ffprobe"
	return cfg
}

func TestOpenJobStore(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	cases := map[string]func(*config.AppConfig){
		"memory": func(c *config.AppConfig) { c.Jobs.Backend = config.BackendMemory },
		"badger": func(c *config.AppConfig) { c.Jobs.Backend = config.BackendBadger },
		"redis": func(c *config.AppConfig) {
			c.Jobs.Backend = config.BackendRedis
			c.Jobs.Redis.Addr = mr.Addr()
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := testConfig(t)
			mutate(&cfg)
			store, err := openJobStore(ctx, cfg)
			require.NoError(t, err)
			defer func() { require.NoError(t, store.Close()) }()

			now := time.Now().UTC()
			require.NoError(t, store.Create(ctx, jobs.Job{
				ID: "job-1", Kind: jobs.KindSynthesis, Status: jobs.StatusQueued, CreatedAt: now, UpdatedAt: now,
			}))
			got, err := store.Get(ctx, "job-1")
			require.NoError(t, err)
			assert.Equal(t, jobs.StatusQueued, got.Status)
		})
	}

	cfg := testConfig(t)
	cfg.Jobs.Backend = "etcd"
	_, err := openJobStore(ctx, cfg)
	require.Error(t, err)
}

func TestBuildComponents_ServesAPI(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(cfg.OutputDir(), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.OutputDir(), "a.mp4"), []byte("x"), 0o600))

	extra := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(extra, "b.mp4"), []byte("y"), 0o600))

	rt, err := buildComponents(context.Background(), cfg, "test")
	require.NoError(t, err)
	t.Cleanup(rt.closeAll)

	list := func() string {
		rr := httptest.NewRecorder()
		rt.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/videos", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		return rr.Body.String()
	}
	assert.Contains(t, list(), `"a.mp4"`)
	assert.NotContains(t, list(), `"b.mp4"`)

	reloaded := cfg
	reloaded.Storage.Roots = []string{extra}
	reloaded.Log.Level = "debug"
	for _, apply := range rt.reloaders() {
		apply(reloaded)
	}
	assert.Contains(t, list(), `"b.mp4"`)

	rr := httptest.NewRecorder()
	rt.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestConfigCLI_Dump(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"data_dir: "+dir+"\njobs:\n  backend: redis\n  redis:\n    addr: localhost:6379\n    password: hunter2\n"), 0o600))

	var stdout, stderr bytes.Buffer
	code := configCLI([]string{"dump", "--file", path}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "backend: redis")
	assert.NotContains(t, stdout.String(), "hunter2")
}

func TestConfigCLI_Validate(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("no_such_key: 1\n"), 0o600))

	var stdout, stderr bytes.Buffer
	assert.Equal(t, 1, configCLI([]string{"validate", "-f", bad}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), bad)

	stderr.Reset()
	assert.Equal(t, 2, configCLI([]string{"explode"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "Unknown subcommand")
}
