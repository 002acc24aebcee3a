// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAcquireLock_Exclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".reelforge.lock")

	first, err := AcquireLock(path)
	require.NoError(t, err)
	require.Equal(t, path, first.Path())

	_, err = AcquireLock(path)
	require.ErrorIs(t, err, ErrAlreadyRunning)

	require.NoError(t, first.Release())

	again, err := AcquireLock(path)
	require.NoError(t, err)
	require.NoError(t, again.Release())
}
