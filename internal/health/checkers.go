package health

import (
	"context"

	"github.com/ManuGH/reelforge/internal/fsutil"
	"github.com/ManuGH/reelforge/internal/media/ffmpeg"
)

// BinaryChecker reports whether an executable resolves.
type BinaryChecker struct {
	name   string
	binary string
}

func NewBinaryChecker(name, binary string) *BinaryChecker {
	return &BinaryChecker{name: name, binary: binary}
}

func (c *BinaryChecker) Name() string { return c.name }

func (c *BinaryChecker) Check(context.Context) CheckResult {
	path, err := ffmpeg.LookPath(c.binary)
	if err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error(), Message: c.binary}
	}
	return CheckResult{Status: StatusHealthy, Message: path}
}

// DirChecker reports whether files can be created in every listed directory.
// The first directory is required; the others only degrade the status.
type DirChecker struct {
	name string
	dirs func() []string
}

// NewDirChecker takes a func so hot-reloaded roots are checked.
func NewDirChecker(name string, dirs func() []string) *DirChecker {
	return &DirChecker{name: name, dirs: dirs}
}

func (c *DirChecker) Name() string { return c.name }

func (c *DirChecker) Check(context.Context) CheckResult {
	dirs := c.dirs()
	for i, dir := range dirs {
		if err := fsutil.Writable(dir); err != nil {
			status := StatusDegraded
			if i == 0 {
				status = StatusUnhealthy
			}
			return CheckResult{Status: status, Error: err.Error(), Message: dir}
		}
	}
	return CheckResult{Status: StatusHealthy}
}

// PingChecker wraps a ping func, e.g. a database or redis ping.
type PingChecker struct {
	name string
	ping func(ctx context.Context) error
}

func NewPingChecker(name string, ping func(ctx context.Context) error) *PingChecker {
	return &PingChecker{name: name, ping: ping}
}

func (c *PingChecker) Name() string { return c.name }

func (c *PingChecker) Check(ctx context.Context) CheckResult {
	if err := c.ping(ctx); err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy}
}
