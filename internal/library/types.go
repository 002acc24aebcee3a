// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package library finds media assets across the configured storage roots and
// describes them (metadata, thumbnails).
package library

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrAssetNotFound is returned when no root holds the requested name.
	ErrAssetNotFound = errors.New("asset not found")
	// ErrInvalidName is returned for names that are not a plain file name.
	ErrInvalidName = errors.New("invalid asset name")
	// ErrThumbnailOutOfRange is returned when the offset is past the end of the source.
	ErrThumbnailOutOfRange = errors.New("thumbnail offset beyond source duration")
	// ErrThumbnailFailed wraps encoder errors from thumbnail extraction.
	ErrThumbnailFailed = errors.New("thumbnail extraction failed")
)

// Asset is a media file located under one of the storage roots.
type Asset struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"` // relative to Root
	Root      string    `json:"-"`
	AbsPath   string    `json:"-"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
}

// InspectionFailed reports a file the prober could not describe. It is
// non-fatal: callers degrade to missing metadata.
type InspectionFailed struct {
	Path string
	Err  error
}

func (e *InspectionFailed) Error() string {
	return fmt.Sprintf("inspection failed for %s: %v", e.Path, e.Err)
}

func (e *InspectionFailed) Unwrap() error { return e.Err }

// MediaExtensions are the file types listed as assets.
var MediaExtensions = map[string]bool{
	".mp4":  true,
	".webm": true,
	".ogg":  true,
	".mov":  true,
}
