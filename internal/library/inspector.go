// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package library

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/reelforge/internal/cache"
	"github.com/ManuGH/reelforge/internal/fsutil"
	xglog "github.com/ManuGH/reelforge/internal/log"
	"github.com/ManuGH/reelforge/internal/media/ffmpeg"
	"github.com/ManuGH/reelforge/internal/metrics"
)

const (
	thumbDir = "thumbs"
	// DefaultThumbnailOffset is where thumbnails are taken unless asked otherwise.
	DefaultThumbnailOffset = time.Second
)

// Prober describes a media file.
type Prober interface {
	Probe(ctx context.Context, path string) (ffmpeg.Metadata, error)
}

// Inspector derives metadata and thumbnails for assets. Metadata is cached in
// memory and, when a store is configured, in SQLite.
type Inspector struct {
	prober Prober
	runner ffmpeg.Runner
	store  *MetadataStore
	cache  cache.Cache[ffmpeg.Metadata]
	ttl    time.Duration
	logger zerolog.Logger
}

// NewInspector wires an Inspector. store may be nil.
func NewInspector(prober Prober, runner ffmpeg.Runner, store *MetadataStore, ttl time.Duration, logger zerolog.Logger) *Inspector {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Inspector{
		prober: prober,
		runner: runner,
		store:  store,
		cache:  cache.NewMemory[ffmpeg.Metadata](ttl),
		ttl:    ttl,
		logger: logger,
	}
}

// Close releases the cache janitor.
func (i *Inspector) Close() {
	i.cache.Close()
}

// Inspect returns the metadata of path. Any failure is an *InspectionFailed.
func (i *Inspector) Inspect(ctx context.Context, path string) (ffmpeg.Metadata, error) {
	info, err := os.Stat(path)
	if err != nil {
		metrics.InspectCache.WithLabelValues("error").Inc()
		return ffmpeg.Metadata{}, &InspectionFailed{Path: path, Err: err}
	}
	key := fmt.Sprintf("%s|%d|%d", path, info.Size(), info.ModTime().UnixNano())

	if md, ok := i.cache.Get(key); ok {
		metrics.InspectCache.WithLabelValues("memory").Inc()
		return md, nil
	}

	if i.store != nil {
		md, ok, err := i.store.Get(ctx, key)
		if err != nil {
			i.logger.Warn().Err(err).Str(xglog.FieldPath, path).Msg("metadata store lookup failed")
		} else if ok {
			metrics.InspectCache.WithLabelValues("store").Inc()
			i.cache.Set(key, md, i.ttl)
			return md, nil
		}
	}

	md, err := i.prober.Probe(ctx, path)
	if err != nil {
		metrics.InspectCache.WithLabelValues("error").Inc()
		logger := xglog.WithContext(ctx, i.logger)
		logger.Warn().Err(err).
			Str(xglog.FieldEvent, "inspect.failed").
			Str(xglog.FieldPath, path).
			Msg("metadata probe failed")
		return ffmpeg.Metadata{}, &InspectionFailed{Path: path, Err: err}
	}
	metrics.InspectCache.WithLabelValues("probe").Inc()

	i.cache.Set(key, md, i.ttl)
	if i.store != nil {
		if err := i.store.Put(ctx, key, path, md); err != nil {
			i.logger.Warn().Err(err).Str(xglog.FieldPath, path).Msg("metadata store write failed")
		}
	}
	return md, nil
}

// Forget drops persisted metadata for a deleted path.
func (i *Inspector) Forget(ctx context.Context, path string) {
	if i.store == nil {
		return
	}
	if err := i.store.DeletePath(ctx, path); err != nil {
		i.logger.Warn().Err(err).Str(xglog.FieldPath, path).Msg("metadata store delete failed")
	}
}

// GenerateThumbnail extracts one JPEG frame at offset at into
// <dir>/thumbs/<base>_<ms>.jpg and returns its path. An existing thumbnail
// is reused.
func (i *Inspector) GenerateThumbnail(ctx context.Context, path string, at time.Duration) (string, error) {
	if at < 0 {
		return "", fmt.Errorf("%w: negative offset %s", ErrThumbnailOutOfRange, at)
	}

	md, err := i.Inspect(ctx, path)
	var failed *InspectionFailed
	switch {
	case err == nil:
		if md.Duration > 0 && at.Seconds() >= md.Duration {
			return "", fmt.Errorf("%w: %s >= %.3fs", ErrThumbnailOutOfRange, at, md.Duration)
		}
	case errors.As(err, &failed) && errors.Is(failed.Err, os.ErrNotExist):
		return "", fmt.Errorf("%w: %s", ErrAssetNotFound, filepath.Base(path))
	}
	// Unknown duration: let the encoder decide; no frame means no output.

	dir := filepath.Join(filepath.Dir(path), thumbDir)
	name := fmt.Sprintf("%s%d.jpg", thumbPrefix(filepath.Base(path)), at.Milliseconds())
	out := filepath.Join(dir, name)
	if fsutil.NonEmptyFile(out) == nil {
		return out, nil
	}
	if err := fsutil.EnsureDirs(0o755, dir); err != nil {
		return "", fmt.Errorf("%w: %w", ErrThumbnailFailed, err)
	}

	partial := filepath.Join(dir, "."+name+".partial.jpg")
	if err := i.runner.Run(ctx, ffmpeg.Command{
		Stage:  "thumbnail",
		Args:   thumbnailArgs(path, at, partial),
		Output: partial,
	}); err != nil {
		if md.Duration == 0 && errors.Is(err, os.ErrNotExist) {
			// no frame at that offset
			return "", fmt.Errorf("%w: %w", ErrThumbnailOutOfRange, err)
		}
		return "", fmt.Errorf("%w: %w", ErrThumbnailFailed, err)
	}
	if err := os.Rename(partial, out); err != nil {
		_ = os.Remove(partial)
		return "", fmt.Errorf("%w: %w", ErrThumbnailFailed, err)
	}
	return out, nil
}

func thumbPrefix(assetName string) string {
	return strings.TrimSuffix(assetName, filepath.Ext(assetName)) + "_"
}

func thumbnailArgs(src string, at time.Duration, out string) []string {
	return []string{
		"-ss", fmt.Sprintf("%.3f", at.Seconds()),
		"-i", src,
		"-frames:v", "1",
		"-q:v", "3",
		"-f", "image2",
		"-update", "1",
		out,
	}
}
