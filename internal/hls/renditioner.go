package hls

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/renameio/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/reelforge/internal/fsutil"
	xglog "github.com/ManuGH/reelforge/internal/log"
	"github.com/ManuGH/reelforge/internal/media/ffmpeg"
	"github.com/ManuGH/reelforge/internal/metrics"
	"github.com/ManuGH/reelforge/internal/telemetry"
)

// MasterName is the published master playlist file name.
const MasterName = "master.m3u8"

var (
	// ErrLadderFailed wraps encoder failures of a ladder build.
	ErrLadderFailed = errors.New("rendition ladder build failed")
	// ErrIncompleteLadder is returned when a variant playlist references a
	// segment that is missing, or the playlist is not a finished VOD playlist.
	ErrIncompleteLadder = errors.New("rendition ladder incomplete")
)

// Prober reports whether the source carries audio.
type Prober interface {
	Probe(ctx context.Context, path string) (ffmpeg.Metadata, error)
}

// Renditioner builds ladders next to their source video.
type Renditioner struct {
	runner ffmpeg.Runner
	prober Prober
	ladder Ladder
	logger zerolog.Logger
	tracer trace.Tracer
}

// NewRenditioner returns a Renditioner for the default ladder. prober may be
// nil, in which case sources are assumed to carry audio.
func NewRenditioner(runner ffmpeg.Runner, prober Prober, logger zerolog.Logger) *Renditioner {
	return &Renditioner{
		runner: runner,
		prober: prober,
		ladder: DefaultLadder,
		logger: logger,
		tracer: telemetry.Tracer("reelforge/hls"),
	}
}

// OutputDir is the directory the ladder of source is published to.
func OutputDir(source string) string {
	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	return filepath.Join(filepath.Dir(source), base+"_hls")
}

// BuildLadder transcodes source into every variant and returns the path of
// the published master playlist. The build happens in a hidden staging
// directory; the master is written only after every segment referenced by
// every variant playlist is verified on disk, and the staging directory then
// replaces <base>_hls in one rename. On failure nothing is published.
func (r *Renditioner) BuildLadder(ctx context.Context, source string) (master string, err error) {
	ctx, span := r.tracer.Start(ctx, "hls.BuildLadder",
		trace.WithAttributes(
			attribute.String(telemetry.MediaPathKey, source),
			attribute.Int(telemetry.LadderVariantsKey, len(r.ladder)),
		))
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
		result := "ok"
		if err != nil {
			result = "failed"
		}
		metrics.LadderBuilds.WithLabelValues(result).Inc()
	}()

	logger := xglog.WithContext(ctx, r.logger).With().Str(xglog.FieldAsset, filepath.Base(source)).Logger()
	start := time.Now()

	if err := fsutil.NonEmptyFile(source); err != nil {
		return "", fmt.Errorf("%w: source: %w", ErrLadderFailed, err)
	}

	withAudio := true
	if r.prober != nil {
		md, err := r.prober.Probe(ctx, source)
		if err != nil {
			logger.Warn().Err(err).Msg("source probe failed, assuming audio track")
		} else {
			withAudio = md.AudioCodec != ""
		}
	}

	final := OutputDir(source)
	stage := filepath.Join(filepath.Dir(source), "."+filepath.Base(final)+".partial-"+uuid.NewString())
	dirs := []string{stage}
	for _, v := range r.ladder {
		dirs = append(dirs, filepath.Join(stage, v.Name))
	}
	if err := fsutil.EnsureDirs(0o755, dirs...); err != nil {
		return "", fmt.Errorf("%w: staging: %w", ErrLadderFailed, err)
	}
	defer func() {
		if err != nil {
			_ = os.RemoveAll(stage)
		}
	}()

	if err := r.runner.Run(ctx, ffmpeg.Command{
		Stage: "ladder",
		Args:  r.ladder.args(source, stage, withAudio),
	}); err != nil {
		return "", fmt.Errorf("%w: %w", ErrLadderFailed, err)
	}

	if err := r.verify(stage); err != nil {
		logger.Error().Err(err).Str(xglog.FieldEvent, "ladder.incomplete").Msg("ladder verification failed")
		return "", err
	}

	if err := renameio.WriteFile(filepath.Join(stage, MasterName), []byte(RenderMaster(r.ladder, withAudio)), 0o644); err != nil {
		return "", fmt.Errorf("%w: write master: %w", ErrLadderFailed, err)
	}

	if err := publish(stage, final); err != nil {
		return "", fmt.Errorf("%w: publish: %w", ErrLadderFailed, err)
	}

	logger.Info().
		Str(xglog.FieldEvent, "ladder.published").
		Str(xglog.FieldPath, final).
		Bool("audio", withAudio).
		Int64(xglog.FieldDuration, time.Since(start).Milliseconds()).
		Msg("rendition ladder published")
	return filepath.Join(final, MasterName), nil
}

// verify checks every variant playlist is a finished VOD playlist whose
// segments all exist with content.
func (r *Renditioner) verify(stage string) error {
	for _, v := range r.ladder {
		dir := filepath.Join(stage, v.Name)
		data, err := os.ReadFile(filepath.Join(dir, "index.m3u8"))
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrIncompleteLadder, v.Name, err)
		}
		pl, err := ParseMediaPlaylist(string(data))
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrIncompleteLadder, v.Name, err)
		}
		if !pl.Ended || !pl.IsVOD || len(pl.Segments) == 0 {
			return fmt.Errorf("%w: %s: playlist not finished", ErrIncompleteLadder, v.Name)
		}
		for _, seg := range pl.Segments {
			path, err := fsutil.ConfineRelPath(dir, seg.URI)
			if err != nil {
				return fmt.Errorf("%w: %s: %w", ErrIncompleteLadder, v.Name, err)
			}
			if err := fsutil.NonEmptyFile(path); err != nil {
				return fmt.Errorf("%w: %s: %w", ErrIncompleteLadder, v.Name, err)
			}
		}
	}
	return nil
}

// publish moves stage to final, replacing an existing ladder.
func publish(stage, final string) error {
	var old string
	if _, err := os.Stat(final); err == nil {
		old = filepath.Join(filepath.Dir(final), "."+filepath.Base(final)+".old-"+uuid.NewString())
		if err := os.Rename(final, old); err != nil {
			return err
		}
	}
	if err := os.Rename(stage, final); err != nil {
		if old != "" {
			_ = os.Rename(old, final)
		}
		return err
	}
	if old != "" {
		_ = os.RemoveAll(old)
	}
	return nil
}
