package ffmpeg

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// EncodingFailure is returned when the encoder exits non-zero, cannot be
// started, is cancelled, or does not leave a usable output file.
type EncodingFailure struct {
	Stage    string
	ExitCode int // -1 when the process never exited normally
	Stderr   []string
	Err      error
}

func (e *EncodingFailure) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "encoding failed (%s", e.Stage)
	if e.ExitCode >= 0 {
		fmt.Fprintf(&b, ", exit %d", e.ExitCode)
	}
	b.WriteString(")")
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if tail := lastLine(e.Stderr); tail != "" {
		b.WriteString(": ")
		b.WriteString(tail)
	}
	return b.String()
}

func (e *EncodingFailure) Unwrap() error { return e.Err }

// EncodingTimeout is returned when the encoder exceeded its deadline or
// stopped making progress and was killed.
type EncodingTimeout struct {
	Stage   string
	Limit   time.Duration
	Stalled bool
	Stderr  []string
}

func (e *EncodingTimeout) Error() string {
	if e.Stalled {
		return fmt.Sprintf("encoding stalled (%s): no progress for %s", e.Stage, e.Limit)
	}
	return fmt.Sprintf("encoding timed out (%s) after %s", e.Stage, e.Limit)
}

func (e *EncodingTimeout) Unwrap() error { return context.DeadlineExceeded }

func lastLine(lines []string) string {
	for i := len(lines) - 1; i >= 0; i-- {
		if s := strings.TrimSpace(lines[i]); s != "" {
			return s
		}
	}
	return ""
}
