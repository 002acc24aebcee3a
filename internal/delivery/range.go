// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package delivery

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrInvalidRange covers malformed and unsatisfiable ranges.
	ErrInvalidRange = errors.New("invalid range")
	// ErrMultiRange is returned for requests naming more than one range.
	ErrMultiRange = errors.New("multi-range not supported")
)

// Range is an inclusive byte span [Start, End].
type Range struct {
	Start int64
	End   int64
}

// Length is the number of bytes in the span.
func (r Range) Length() int64 { return r.End - r.Start + 1 }

// ParseRange parses a single "bytes=" range against a resource of size bytes.
// An end beyond the resource is clamped; a start at or beyond it is rejected.
func ParseRange(header string, size int64) (Range, error) {
	const prefix = "bytes="
	if !strings.HasPrefix(header, prefix) {
		return Range{}, ErrInvalidRange
	}

	spec := strings.TrimPrefix(header, prefix)
	if strings.Contains(spec, ",") {
		return Range{}, ErrMultiRange
	}

	startStr, endStr, ok := strings.Cut(spec, "-")
	if !ok {
		return Range{}, ErrInvalidRange
	}
	startStr, endStr = strings.TrimSpace(startStr), strings.TrimSpace(endStr)

	if size <= 0 {
		return Range{}, ErrInvalidRange
	}

	if startStr == "" {
		// Suffix range: bytes=-500 (last 500 bytes)
		n, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || n <= 0 {
			return Range{}, ErrInvalidRange
		}
		n = min(n, size)
		return Range{Start: size - n, End: size - 1}, nil
	}

	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 || start >= size {
		return Range{}, ErrInvalidRange
	}
	if endStr == "" {
		return Range{Start: start, End: size - 1}, nil
	}

	end, err := strconv.ParseInt(endStr, 10, 64)
	if err != nil || end < start {
		return Range{}, ErrInvalidRange
	}
	return Range{Start: start, End: min(end, size-1)}, nil
}

// FormatContentRange formats the Content-Range header of a 206 response.
func FormatContentRange(r Range, size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, size)
}

// FormatUnsatisfiedRange formats the Content-Range header of a 416 response.
func FormatUnsatisfiedRange(size int64) string {
	return fmt.Sprintf("bytes */%d", size)
}
