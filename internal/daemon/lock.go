// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"fmt"

	"github.com/gofrs/flock"
)

// Lock holds the single-instance lock of a data directory.
type Lock struct {
	fl *flock.Flock
}

// AcquireLock takes the lock file at path without blocking. Two daemons on
// one data dir would race on scratch files and the job store.
func AcquireLock(path string) (*Lock, error) {
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRunning, path)
	}
	return &Lock{fl: fl}, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.fl.Path() }

// Release unlocks the lock file.
func (l *Lock) Release() error {
	return l.fl.Unlock()
}
