// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"fmt"
	"path/filepath"

	"github.com/ManuGH/reelforge/internal/config"
	"github.com/ManuGH/reelforge/internal/fsutil"
	"github.com/ManuGH/reelforge/internal/log"
	"github.com/ManuGH/reelforge/internal/media/ffmpeg"
)

// PerformStartupChecks creates the data directory layout and verifies the
// encoder is resolvable before the server starts. A missing ffprobe only
// warns; metadata inspection then reports failures per request.
func PerformStartupChecks(cfg config.AppConfig) error {
	logger := log.WithComponent("startup-check")

	dirs := []string{
		cfg.DataDir,
		filepath.Join(cfg.TmpDir(), "audio"),
		filepath.Join(cfg.TmpDir(), "images"),
		cfg.OutputDir(),
	}
	if err := fsutil.EnsureDirs(0o755, dirs...); err != nil {
		return fmt.Errorf("data directory layout: %w", err)
	}
	if err := fsutil.Writable(cfg.OutputDir()); err != nil {
		return fmt.Errorf("output directory is not writable: %s: %w", cfg.OutputDir(), err)
	}

	if _, err := ffmpeg.LookPath(cfg.FFmpeg.Bin); err != nil {
		return fmt.Errorf("ffmpeg not found (%s): %w", cfg.FFmpeg.Bin, err)
	}
	if _, err := ffmpeg.LookPath(cfg.FFmpeg.FFprobeBin); err != nil {
		logger.Warn().Err(err).Str("binary", cfg.FFmpeg.FFprobeBin).Msg("ffprobe not found, metadata inspection will fail")
	}

	for _, root := range cfg.Storage.Roots {
		if err := fsutil.Writable(root); err != nil {
			logger.Warn().Err(err).Str(log.FieldRoot, root).Msg("storage root not writable")
		}
	}

	logger.Info().Str(log.FieldEvent, "startup.checks_passed").Msg("startup checks passed")
	return nil
}
