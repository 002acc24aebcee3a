// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package delivery streams media files over HTTP with single byte-range support.
package delivery

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	xglog "github.com/ManuGH/reelforge/internal/log"
	"github.com/ManuGH/reelforge/internal/metrics"
)

// CacheControl marks published media as immutable for a day.
const CacheControl = "public, max-age=86400, immutable"

// RevalidateCacheControl is for files that can be replaced under the same name.
const RevalidateCacheControl = "no-cache"

// Options tune a single response.
type Options struct {
	// Attachment forces a download instead of inline playback.
	Attachment bool
	// Filename overrides the name used in Content-Disposition.
	Filename string
	// CacheControl replaces the default immutable policy when set.
	CacheControl string
}

// ErrNotRegular is returned for directories and other non-file paths.
var ErrNotRegular = errors.New("not a regular file")

// Serve writes the file at path to w, honouring a single Range header.
// It returns an error only when the file cannot be opened or stat'ed, in
// which case nothing has been written and the caller owns the response.
func Serve(w http.ResponseWriter, r *http.Request, path string, opts Options) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s", ErrNotRegular, path)
	}

	size := info.Size()
	name := opts.Filename
	if name == "" {
		name = filepath.Base(path)
	}
	etag := fmt.Sprintf(`W/"%x-%x"`, info.ModTime().UnixNano(), size)

	h := w.Header()
	h.Set("Content-Type", ContentTypeFor(name))
	h.Set("Accept-Ranges", "bytes")
	if opts.CacheControl != "" {
		h.Set("Cache-Control", opts.CacheControl)
	} else {
		h.Set("Cache-Control", CacheControl)
	}
	h.Set("ETag", etag)
	h.Set("Last-Modified", info.ModTime().UTC().Format(http.TimeFormat))
	disposition := "inline"
	if opts.Attachment {
		disposition = "attachment"
	}
	h.Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": name}))

	logger := xglog.WithComponentFromContext(r.Context(), "delivery")

	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.WriteHeader(http.StatusNotModified)
		metrics.ObserveDelivery(http.StatusNotModified, 0)
		return nil
	}

	rangeHeader := r.Header.Get("Range")
	if rangeHeader == "" {
		h.Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodHead {
			metrics.ObserveDelivery(http.StatusOK, 0)
			return nil
		}
		n, err := io.Copy(w, f)
		metrics.ObserveDelivery(http.StatusOK, n)
		if err != nil {
			logger.Debug().Err(err).Str(xglog.FieldPath, path).Int64(xglog.FieldBytes, n).Msg("client went away during full response")
		}
		return nil
	}

	rng, err := ParseRange(rangeHeader, size)
	if err != nil {
		logger.Debug().Err(err).
			Str(xglog.FieldEvent, "delivery.range_rejected").
			Str(xglog.FieldRange, rangeHeader).
			Int64("size", size).
			Msg("unsatisfiable range")
		h.Del("Content-Disposition")
		h.Del("ETag")
		h.Set("Content-Range", FormatUnsatisfiedRange(size))
		h.Set("Content-Length", "0")
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		metrics.ObserveDelivery(http.StatusRequestedRangeNotSatisfiable, 0)
		return nil
	}

	h.Set("Content-Range", FormatContentRange(rng, size))
	h.Set("Content-Length", strconv.FormatInt(rng.Length(), 10))

	// Seek before committing the status so a failure can still become a 500.
	if _, err := f.Seek(rng.Start, io.SeekStart); err != nil {
		h.Del("Content-Range")
		h.Del("Content-Length")
		return fmt.Errorf("seek %s: %w", path, err)
	}
	w.WriteHeader(http.StatusPartialContent)
	if r.Method == http.MethodHead {
		metrics.ObserveDelivery(http.StatusPartialContent, 0)
		return nil
	}
	n, err := io.CopyN(w, f, rng.Length())
	metrics.ObserveDelivery(http.StatusPartialContent, n)
	if err != nil {
		logger.Debug().Err(err).Str(xglog.FieldPath, path).Int64(xglog.FieldBytes, n).Msg("client went away during range response")
	}
	return nil
}
