// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ManuGH/reelforge/internal/config"
	"github.com/ManuGH/reelforge/internal/log"
)

func TestApp_RunRequiresManager(t *testing.T) {
	app := NewApp(log.WithComponent("test"), nil, nil)
	require.ErrorIs(t, app.Run(context.Background()), ErrMissingManager)
}

func TestApp_ReloadAppliesConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data_dir: "+dir+"\nlog:\n  level: info\n"), 0o600))

	loader := config.NewLoader(path, "test")
	cfg, err := loader.Load()
	require.NoError(t, err)
	holder := config.NewConfigHolder(cfg, loader)

	mgr, err := NewManager(testServerConfig(), Deps{Logger: log.WithComponent("test"), APIHandler: okHandler()})
	require.NoError(t, err)

	levels := make(chan string, 4)
	app := NewApp(log.WithComponent("test"), mgr, holder, func(c config.AppConfig) {
		levels <- c.Log.Level
	})
	app.reloadSignal = nil

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()
	waitForAddr(t, mgr)

	require.NoError(t, os.WriteFile(path, []byte("data_dir: "+dir+"\nlog:\n  level: debug\n"), 0o600))
	require.NoError(t, holder.Reload(context.Background()))

	select {
	case lvl := <-levels:
		require.Equal(t, "debug", lvl)
	case <-time.After(3 * time.Second):
		t.Fatal("reloader was not called")
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
}
