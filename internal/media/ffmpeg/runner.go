// Package ffmpeg wraps the external encoder and prober binaries.
//
// Every invocation runs in its own process group under a deadline and a
// progress watchdog; on cancellation the whole group is terminated.
package ffmpeg

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"time"

	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/reelforge/internal/log"
	"github.com/ManuGH/reelforge/internal/fsutil"
	"github.com/ManuGH/reelforge/internal/metrics"
	"github.com/ManuGH/reelforge/internal/procgroup"
)

// Command is one encoder invocation.
type Command struct {
	// Stage labels the invocation in logs, metrics and errors.
	Stage string
	// Args are passed after the global supervision flags.
	Args []string
	// Output, when set, must exist with non-zero size after a zero exit.
	// It is removed when the invocation fails.
	Output string
}

// Runner runs encoder commands synchronously.
type Runner interface {
	Run(ctx context.Context, cmd Command) error
}

// Config controls supervision of encoder processes.
type Config struct {
	Binary       string
	Timeout      time.Duration // hard deadline per invocation; 0 disables
	KillGrace    time.Duration // SIGTERM to SIGKILL escalation
	StartupGrace time.Duration // no stall checks before this
	StallTimeout time.Duration // 0 disables stall detection
	Tick         time.Duration
	StderrLines  int
}

// DefaultConfig returns the supervision defaults.
func DefaultConfig() Config {
	return Config{
		Binary:       "ffmpeg",
		Timeout:      10 * time.Minute,
		KillGrace:    5 * time.Second,
		StartupGrace: 30 * time.Second,
		StallTimeout: 2 * time.Minute,
		Tick:         time.Second,
		StderrLines:  100,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Binary == "" {
		c.Binary = d.Binary
	}
	if c.KillGrace <= 0 {
		c.KillGrace = d.KillGrace
	}
	if c.Tick <= 0 {
		c.Tick = d.Tick
	}
	if c.StderrLines <= 0 {
		c.StderrLines = d.StderrLines
	}
	return c
}

// Executor is the process-backed Runner.
type Executor struct {
	cfg    Config
	logger zerolog.Logger
}

var _ Runner = (*Executor)(nil)

// NewExecutor returns an Executor for cfg.
func NewExecutor(cfg Config, logger zerolog.Logger) *Executor {
	return &Executor{cfg: cfg.withDefaults(), logger: logger}
}

// Binary returns the configured encoder binary.
func (e *Executor) Binary() string { return e.cfg.Binary }

// Run executes cmd and blocks until the encoder exits or is killed.
func (e *Executor) Run(ctx context.Context, c Command) (err error) {
	start := time.Now()
	stage := c.Stage
	if stage == "" {
		stage = "encode"
	}
	logger := xglog.WithContext(ctx, e.logger).With().Str(xglog.FieldStage, stage).Logger()

	defer func() {
		metrics.ObserveEncode(stage, outcome(err), time.Since(start).Seconds())
		if err != nil && c.Output != "" {
			_ = os.Remove(c.Output)
		}
	}()

	runCtx := ctx
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	args := append([]string{"-nostdin", "-hide_banner", "-y", "-progress", "pipe:1"}, c.Args...)
	// #nosec G204 -- binary comes from config, args are built internally
	cmd := exec.Command(e.cfg.Binary, args...)
	procgroup.Set(cmd)
	cmd.WaitDelay = e.cfg.KillGrace

	ring := NewRingBuffer(e.cfg.StderrLines)
	stderr := &lineWriter{fn: ring.Add}
	cmd.Stderr = stderr

	progressCh := make(chan Progress, 16)
	parser := &progressParser{emit: func(p Progress) {
		select {
		case progressCh <- p:
		default:
		}
	}}
	cmd.Stdout = &lineWriter{fn: parser.line}

	if err := runCtx.Err(); err != nil {
		return &EncodingFailure{Stage: stage, ExitCode: -1, Err: err}
	}
	if err := cmd.Start(); err != nil {
		return &EncodingFailure{Stage: stage, ExitCode: -1, Err: err}
	}
	logger.Debug().
		Str(xglog.FieldEvent, "ffmpeg.started").
		Int("pid", cmd.Process.Pid).
		Strs("args", args).
		Msg("encoder started")

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	cause, waitErr := e.supervise(runCtx, cmd, waitCh, progressCh, logger)
	stderr.flush()
	diag := ring.GetAll()

	switch cause {
	case causeCanceled:
		logger.Info().Str(xglog.FieldEvent, "ffmpeg.canceled").Msg("encoder canceled")
		return &EncodingFailure{Stage: stage, ExitCode: -1, Stderr: diag, Err: context.Cause(ctx)}
	case causeDeadline:
		logger.Warn().Str(xglog.FieldEvent, "ffmpeg.timeout").Dur("limit", e.cfg.Timeout).Msg("encoder deadline exceeded")
		return &EncodingTimeout{Stage: stage, Limit: e.cfg.Timeout, Stderr: diag}
	case causeStalled:
		return &EncodingTimeout{Stage: stage, Limit: e.cfg.StallTimeout, Stalled: true, Stderr: diag}
	}

	if waitErr != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			code = exitErr.ExitCode()
		}
		logger.Error().
			Str(xglog.FieldEvent, "ffmpeg.failed").
			Int(xglog.FieldExitCode, code).
			Str("stderr_tail", lastLine(diag)).
			Msg("encoder exited with error")
		return &EncodingFailure{Stage: stage, ExitCode: code, Stderr: diag, Err: waitErr}
	}

	if c.Output != "" {
		if err := fsutil.NonEmptyFile(c.Output); err != nil {
			return &EncodingFailure{Stage: stage, ExitCode: 0, Stderr: diag, Err: err}
		}
	}

	logger.Debug().
		Str(xglog.FieldEvent, "ffmpeg.completed").
		Int64(xglog.FieldDuration, time.Since(start).Milliseconds()).
		Msg("encoder completed")
	return nil
}

type stopCause int

const (
	causeNone stopCause = iota
	causeCanceled
	causeDeadline
	causeStalled
)

// supervise waits for the process while watching the context and progress.
func (e *Executor) supervise(
	ctx context.Context,
	cmd *exec.Cmd,
	waitCh <-chan error,
	progressCh <-chan Progress,
	logger zerolog.Logger,
) (stopCause, error) {
	start := time.Now()
	lastProgressAt := start
	var last Progress

	ticker := time.NewTicker(e.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case err := <-waitCh:
			return causeNone, err

		case <-ctx.Done():
			err := procgroup.Terminate(cmd, waitCh, e.cfg.KillGrace)
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return causeDeadline, err
			}
			return causeCanceled, err

		case p := <-progressCh:
			if p.hasAdvanced(last) {
				last = p
				lastProgressAt = time.Now()
			}

		case <-ticker.C:
			if e.cfg.StallTimeout <= 0 || time.Since(start) < e.cfg.StartupGrace {
				continue
			}
			if time.Since(lastProgressAt) > e.cfg.StallTimeout {
				logger.Error().
					Str(xglog.FieldEvent, "ffmpeg.stalled").
					Dur("since_progress", time.Since(lastProgressAt)).
					Int64("last_out_time_us", last.OutTimeUs).
					Int64("last_total_size", last.TotalSize).
					Str("last_speed", last.Speed).
					Msg("encoder stalled - killing process group")
				err := procgroup.Terminate(cmd, waitCh, e.cfg.KillGrace)
				return causeStalled, err
			}
		}
	}
}

func outcome(err error) string {
	var timeout *EncodingTimeout
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &timeout) && timeout.Stalled:
		return "stalled"
	case errors.As(err, &timeout):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "failed"
	}
}

// LookPath resolves binary on PATH or as a path.
func LookPath(binary string) (string, error) {
	return exec.LookPath(binary)
}
