package hls

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/reelforge/internal/media/ffmpeg"
)

// ladderRunner emulates the encoder by writing variant playlists and segments
// into the staging directory named by -hls_segment_filename.
type ladderRunner struct {
	segments    int
	skipSegment string // variant whose last segment is not written
	unfinished  bool
	err         error
	calls       int
	stage       string
}

func (f *ladderRunner) Run(ctx context.Context, c ffmpeg.Command) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	var pattern string
	for i, a := range c.Args {
		if a == "-hls_segment_filename" {
			pattern = c.Args[i+1]
		}
	}
	if pattern == "" {
		return errors.New("no segment pattern")
	}
	f.stage = filepath.Dir(filepath.Dir(pattern))
	for _, v := range DefaultLadder {
		dir := filepath.Join(f.stage, v.Name)
		var b strings.Builder
		b.WriteString("#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-TARGETDURATION:4\n#EXT-X-PLAYLIST-TYPE:VOD\n")
		for i := 0; i < f.segments; i++ {
			name := fmt.Sprintf("seg_%05d.ts", i)
			fmt.Fprintf(&b, "#EXTINF:4.000000,\n%s\n", name)
			if v.Name == f.skipSegment && i == f.segments-1 {
				continue
			}
			if err := os.WriteFile(filepath.Join(dir, name), []byte("ts"), 0o644); err != nil {
				return err
			}
		}
		if !f.unfinished {
			b.WriteString("#EXT-X-ENDLIST\n")
		}
		if err := os.WriteFile(filepath.Join(dir, "index.m3u8"), []byte(b.String()), 0o644); err != nil {
			return err
		}
	}
	return nil
}

type stubProber struct {
	md  ffmpeg.Metadata
	err error
}

func (s stubProber) Probe(context.Context, string) (ffmpeg.Metadata, error) { return s.md, s.err }

func writeSource(t *testing.T) string {
	t.Helper()
	src := filepath.Join(t.TempDir(), "demo_1.mp4")
	require.NoError(t, os.WriteFile(src, []byte("mp4"), 0o644))
	return src
}

func hiddenEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var out []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			out = append(out, e.Name())
		}
	}
	return out
}

func TestBuildLadderPublishes(t *testing.T) {
	src := writeSource(t)
	runner := &ladderRunner{segments: 2}
	r := NewRenditioner(runner, stubProber{md: ffmpeg.Metadata{AudioCodec: "aac"}}, zerolog.Nop())

	master, err := r.BuildLadder(context.Background(), src)
	require.NoError(t, err)

	dir := filepath.Join(filepath.Dir(src), "demo_1_hls")
	assert.Equal(t, filepath.Join(dir, MasterName), master)

	data, err := os.ReadFile(master)
	require.NoError(t, err)
	assert.Equal(t, RenderMaster(DefaultLadder, true), string(data))

	for _, v := range DefaultLadder {
		assert.FileExists(t, filepath.Join(dir, v.Name, "index.m3u8"))
		assert.FileExists(t, filepath.Join(dir, v.Name, "seg_00001.ts"))
	}
	assert.Empty(t, hiddenEntries(t, filepath.Dir(src)))
	assert.NoDirExists(t, runner.stage)
}

func TestBuildLadderVideoOnlySource(t *testing.T) {
	src := writeSource(t)
	r := NewRenditioner(&ladderRunner{segments: 1}, stubProber{md: ffmpeg.Metadata{VideoCodec: "h264"}}, zerolog.Nop())

	master, err := r.BuildLadder(context.Background(), src)
	require.NoError(t, err)
	data, err := os.ReadFile(master)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "mp4a")
}

func TestBuildLadderProbeFailureAssumesAudio(t *testing.T) {
	src := writeSource(t)
	r := NewRenditioner(&ladderRunner{segments: 1}, stubProber{err: errors.New("probe")}, zerolog.Nop())

	master, err := r.BuildLadder(context.Background(), src)
	require.NoError(t, err)
	data, err := os.ReadFile(master)
	require.NoError(t, err)
	assert.Contains(t, string(data), "mp4a")
}

func TestBuildLadderReplacesExisting(t *testing.T) {
	src := writeSource(t)
	dir := OutputDir(src)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stale.txt"), []byte("x"), 0o644))

	r := NewRenditioner(&ladderRunner{segments: 1}, nil, zerolog.Nop())
	_, err := r.BuildLadder(context.Background(), src)
	require.NoError(t, err)

	assert.NoFileExists(t, filepath.Join(dir, "stale.txt"))
	assert.FileExists(t, filepath.Join(dir, MasterName))
	assert.Empty(t, hiddenEntries(t, filepath.Dir(src)))
}

func TestBuildLadderFailures(t *testing.T) {
	tests := []struct {
		name    string
		runner  *ladderRunner
		wantErr error
	}{
		{
			name:    "encoder failure",
			runner:  &ladderRunner{err: &ffmpeg.EncodingFailure{Stage: "ladder", ExitCode: 1}},
			wantErr: ErrLadderFailed,
		},
		{
			name:    "missing segment",
			runner:  &ladderRunner{segments: 2, skipSegment: "480p"},
			wantErr: ErrIncompleteLadder,
		},
		{
			name:    "unfinished playlist",
			runner:  &ladderRunner{segments: 2, unfinished: true},
			wantErr: ErrIncompleteLadder,
		},
		{
			name:    "no segments",
			runner:  &ladderRunner{segments: 0},
			wantErr: ErrIncompleteLadder,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := writeSource(t)
			r := NewRenditioner(tt.runner, nil, zerolog.Nop())

			master, err := r.BuildLadder(context.Background(), src)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, master)
			assert.NoDirExists(t, OutputDir(src))
			assert.Empty(t, hiddenEntries(t, filepath.Dir(src)))
		})
	}
}

func TestBuildLadderEncoderTimeoutIsDeadline(t *testing.T) {
	src := writeSource(t)
	r := NewRenditioner(&ladderRunner{err: &ffmpeg.EncodingTimeout{Stage: "ladder"}}, nil, zerolog.Nop())

	_, err := r.BuildLadder(context.Background(), src)
	var timeout *ffmpeg.EncodingTimeout
	assert.ErrorAs(t, err, &timeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBuildLadderMissingSource(t *testing.T) {
	runner := &ladderRunner{segments: 1}
	r := NewRenditioner(runner, nil, zerolog.Nop())

	_, err := r.BuildLadder(context.Background(), filepath.Join(t.TempDir(), "nope.mp4"))
	assert.ErrorIs(t, err, ErrLadderFailed)
	assert.Zero(t, runner.calls)
}

func TestOutputDir(t *testing.T) {
	assert.Equal(t, filepath.Join("/srv", "clip_hls"), OutputDir("/srv/clip.mp4"))
	assert.Equal(t, filepath.Join("/srv", "a.b_hls"), OutputDir("/srv/a.b.webm"))
}
