// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package procgroup starts encoder subprocesses in their own process group
// and tears the whole group down on cancellation.
package procgroup

import (
	"errors"
	"syscall"
)

// errNoProcess reports a group that has already been reaped.
var errNoProcess = syscall.ESRCH

func isGone(err error) bool {
	return errors.Is(err, errNoProcess) || (err != nil && err.Error() == "os: process already finished")
}
