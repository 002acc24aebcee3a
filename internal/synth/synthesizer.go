// Package synth produces demonstration videos from text: a placeholder tone,
// a sequence of solid-colour stills, and a muxed H.264/AAC MP4.
package synth

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/reelforge/internal/fsutil"
	xglog "github.com/ManuGH/reelforge/internal/log"
	"github.com/ManuGH/reelforge/internal/media/ffmpeg"
	"github.com/ManuGH/reelforge/internal/telemetry"
)

const dirPerm = 0o755

// Layout is the on-disk tree under the data directory.
type Layout struct {
	AudioScratch string // tmp/audio
	ImageScratch string // tmp/images
	Output       string // output/videos
}

// NewLayout returns the standard layout rooted at dataDir.
func NewLayout(dataDir string) Layout {
	return Layout{
		AudioScratch: filepath.Join(dataDir, "tmp", "audio"),
		ImageScratch: filepath.Join(dataDir, "tmp", "images"),
		Output:       filepath.Join(dataDir, "output", "videos"),
	}
}

// ProgressFunc receives human-readable progress messages.
type ProgressFunc func(msg string)

// Synthesizer builds demo videos through an encoder Runner.
type Synthesizer struct {
	runner ffmpeg.Runner
	layout Layout
	logger zerolog.Logger
	tracer trace.Tracer
	newID  func() string
}

// New returns a Synthesizer writing into layout.
func New(runner ffmpeg.Runner, layout Layout, logger zerolog.Logger) *Synthesizer {
	return &Synthesizer{
		runner: runner,
		layout: layout,
		logger: logger,
		tracer: telemetry.Tracer("reelforge/synth"),
		newID:  func() string { return uuid.NewString() },
	}
}

// Layout returns the directories the synthesizer writes to.
func (s *Synthesizer) Layout() Layout { return s.layout }

// SynthesizeDemoVideo renders text into a video and returns its path.
func (s *Synthesizer) SynthesizeDemoVideo(ctx context.Context, text string) (string, error) {
	return s.Synthesize(ctx, text, nil)
}

// Synthesize is SynthesizeDemoVideo with progress reporting.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, report ProgressFunc) (path string, err error) {
	if report == nil {
		report = func(string) {}
	}
	plan := NewPlan(text)
	id := s.newID()

	ctx, span := s.tracer.Start(ctx, "synth.SynthesizeDemoVideo",
		trace.WithAttributes(telemetry.SynthAttributes(len([]rune(text)), plan.AudioSeconds, len(plan.Frames))...))
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	logger := xglog.WithContext(ctx, s.logger)
	start := time.Now()

	audioDir := filepath.Join(s.layout.AudioScratch, id)
	imageDir := filepath.Join(s.layout.ImageScratch, id)
	if err := fsutil.EnsureDirs(dirPerm, s.layout.Output, audioDir, imageDir); err != nil {
		return "", fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	defer func() {
		// scratch never outlives the call
		_ = os.RemoveAll(audioDir)
		_ = os.RemoveAll(imageDir)
	}()

	report(fmt.Sprintf("synthesizing %.1fs of audio", plan.AudioSeconds))
	audio := filepath.Join(audioDir, "audio.m4a")
	if err := s.runner.Run(ctx, ffmpeg.Command{
		Stage:  "audio",
		Args:   audioArgs(plan.AudioSeconds, audio),
		Output: audio,
	}); err != nil {
		return "", fmt.Errorf("%w: %w", ErrAudioSynthesisFailed, err)
	}

	frames := make([]string, len(plan.Frames))
	for i, color := range plan.Frames {
		report(fmt.Sprintf("generating image %d/%d", i+1, len(plan.Frames)))
		frame := filepath.Join(imageDir, fmt.Sprintf("frame_%02d.jpg", i))
		if err := s.runner.Run(ctx, ffmpeg.Command{
			Stage:  "image",
			Args:   frameArgs(color, frame),
			Output: frame,
		}); err != nil {
			return "", fmt.Errorf("%w: frame %d: %w", ErrImageSynthesisFailed, i, err)
		}
		frames[i] = frame
	}

	report("composing video")
	manifest := filepath.Join(imageDir, "concat.txt")
	if err := renameio.WriteFile(manifest, []byte(ConcatManifest(frames, plan.FrameSeconds())), 0o644); err != nil {
		return "", fmt.Errorf("%w: write manifest: %w", ErrCompositionFailed, err)
	}

	name := "demo_" + id + ".mp4"
	final := filepath.Join(s.layout.Output, name)
	partial := filepath.Join(s.layout.Output, "."+name+".partial")
	if err := s.runner.Run(ctx, ffmpeg.Command{
		Stage:  "mux",
		Args:   muxArgs(manifest, audio, partial),
		Output: partial,
	}); err != nil {
		_ = os.Remove(partial)
		return "", fmt.Errorf("%w: %w", ErrCompositionFailed, err)
	}
	if err := fsutil.NonEmptyFile(partial); err != nil {
		_ = os.Remove(partial)
		return "", fmt.Errorf("%w: %w", ErrCompositionFailed, err)
	}
	if err := os.Rename(partial, final); err != nil {
		_ = os.Remove(partial)
		return "", fmt.Errorf("%w: publish: %w", ErrCompositionFailed, err)
	}

	span.SetAttributes(attribute.String(telemetry.MediaPathKey, final))
	logger.Info().
		Str(xglog.FieldEvent, "synth.completed").
		Str(xglog.FieldAsset, name).
		Int(xglog.FieldFrames, len(frames)).
		Float64("audio_seconds", plan.AudioSeconds).
		Int64(xglog.FieldDuration, time.Since(start).Milliseconds()).
		Msg("demo video synthesized")
	return final, nil
}
