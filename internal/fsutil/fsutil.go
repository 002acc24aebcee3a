// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package fsutil holds filesystem helpers shared by the media packages.
package fsutil

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"
)

// ErrEmptyFile is returned by NonEmptyFile for zero-byte outputs.
var ErrEmptyFile = errors.New("file is empty")

// EnsureDirsAttempts bounds how often EnsureDirs retries a transient error.
const EnsureDirsAttempts = 3

var ensureBackoff = 50 * time.Millisecond

// EnsureDirs creates every directory in dirs (mkdir -p). Transient errors
// (EINTR, EAGAIN, EBUSY) are retried a bounded number of times.
func EnsureDirs(perm os.FileMode, dirs ...string) error {
	for _, dir := range dirs {
		var err error
		for attempt := 1; attempt <= EnsureDirsAttempts; attempt++ {
			if err = os.MkdirAll(dir, perm); err == nil || !isTransient(err) {
				break
			}
			time.Sleep(ensureBackoff * time.Duration(attempt))
		}
		if err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

func isTransient(err error) bool {
	return errors.Is(err, syscall.EINTR) ||
		errors.Is(err, syscall.EAGAIN) ||
		errors.Is(err, syscall.EBUSY)
}

// NonEmptyFile returns nil when path is a regular file with at least one byte.
func NonEmptyFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("not a regular file: %s", path)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyFile, path)
	}
	return nil
}

// Writable reports whether a file can be created in dir.
func Writable(dir string) error {
	f, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}
