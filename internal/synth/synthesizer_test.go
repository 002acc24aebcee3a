package synth

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/reelforge/internal/media/ffmpeg"
)

type fakeRunner struct {
	mu        sync.Mutex
	stages    []string
	manifest  string
	failStage string
	failAt    int // zero-based occurrence of failStage
	seen      map[string]int
}

func (f *fakeRunner) Run(ctx context.Context, c ffmpeg.Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen == nil {
		f.seen = map[string]int{}
	}
	f.stages = append(f.stages, c.Stage)
	n := f.seen[c.Stage]
	f.seen[c.Stage]++

	if err := ctx.Err(); err != nil {
		return &ffmpeg.EncodingFailure{Stage: c.Stage, ExitCode: -1, Err: err}
	}
	if c.Stage == "mux" {
		for i, a := range c.Args {
			if a == "-i" {
				data, err := os.ReadFile(c.Args[i+1])
				if err != nil {
					return err
				}
				f.manifest = string(data)
				break
			}
		}
	}
	if c.Stage == f.failStage && n == f.failAt {
		return &ffmpeg.EncodingFailure{Stage: c.Stage, ExitCode: 1, Stderr: []string{"boom"}}
	}
	return os.WriteFile(c.Output, []byte("media"), 0o644)
}

func newTestSynth(t *testing.T, r ffmpeg.Runner) (*Synthesizer, Layout) {
	t.Helper()
	layout := NewLayout(t.TempDir())
	return New(r, layout, zerolog.Nop()), layout
}

func assertNoScratch(t *testing.T, layout Layout) {
	t.Helper()
	for _, dir := range []string{layout.AudioScratch, layout.ImageScratch} {
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries, "scratch left behind in %s", dir)
	}
}

func outputs(t *testing.T, layout Layout) []string {
	t.Helper()
	entries, err := os.ReadDir(layout.Output)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestSynthesize_Success(t *testing.T) {
	r := &fakeRunner{}
	s, layout := newTestSynth(t, r)

	var messages []string
	path, err := s.Synthesize(context.Background(), strings.Repeat("A", 250), func(m string) {
		messages = append(messages, m)
	})
	require.NoError(t, err)

	assert.Equal(t, layout.Output, filepath.Dir(path))
	assert.True(t, strings.HasPrefix(filepath.Base(path), "demo_"))
	assert.Equal(t, ".mp4", filepath.Ext(path))
	assert.FileExists(t, path)
	assert.Equal(t, []string{filepath.Base(path)}, outputs(t, layout))

	assert.Equal(t, []string{"audio", "image", "image", "image", "mux"}, r.stages)
	assert.Equal(t, 4, strings.Count(r.manifest, "file '"), "three frames plus the repeated last one")
	assert.Equal(t, 3, strings.Count(r.manifest, "duration 4.167\n"), "12.5s of audio over three frames")
	assert.Contains(t, messages, "generating image 3/3")

	assertNoScratch(t, layout)
}

func TestSynthesize_UniqueOutputs(t *testing.T) {
	s, layout := newTestSynth(t, &fakeRunner{})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.SynthesizeDemoVideo(context.Background(), "hello")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Len(t, outputs(t, layout), 4)
}

func TestSynthesize_Failures(t *testing.T) {
	tests := []struct {
		name      string
		failStage string
		failAt    int
		want      error
	}{
		{"audio", "audio", 0, ErrAudioSynthesisFailed},
		{"second image", "image", 1, ErrImageSynthesisFailed},
		{"mux", "mux", 0, ErrCompositionFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, layout := newTestSynth(t, &fakeRunner{failStage: tt.failStage, failAt: tt.failAt})

			path, err := s.SynthesizeDemoVideo(context.Background(), "text")
			require.ErrorIs(t, err, tt.want)
			assert.Empty(t, path)

			var failure *ffmpeg.EncodingFailure
			require.ErrorAs(t, err, &failure)
			assert.Equal(t, tt.failStage, failure.Stage)

			assert.Empty(t, outputs(t, layout), "no partial output may remain")
			assertNoScratch(t, layout)
		})
	}
}

func TestSynthesize_StorageUnavailable(t *testing.T) {
	base := t.TempDir()
	blocker := filepath.Join(base, "data")
	require.NoError(t, os.WriteFile(blocker, []byte("not a dir"), 0o644))

	r := &fakeRunner{}
	s := New(r, NewLayout(blocker), zerolog.Nop())

	_, err := s.SynthesizeDemoVideo(context.Background(), "text")
	require.ErrorIs(t, err, ErrStorageUnavailable)
	assert.Empty(t, r.stages, "encoder must not run without storage")
}

func TestSynthesize_Canceled(t *testing.T) {
	s, layout := newTestSynth(t, &fakeRunner{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.SynthesizeDemoVideo(ctx, "text")
	require.ErrorIs(t, err, ErrAudioSynthesisFailed)
	assert.ErrorIs(t, err, context.Canceled)
	assertNoScratch(t, layout)
}

func TestSynthesize_RealEncoder(t *testing.T) {
	if testing.Short() {
		t.Skip("encoder integration test")
	}
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not on PATH")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not on PATH")
	}

	cfg := ffmpeg.DefaultConfig()
	cfg.Timeout = 2 * time.Minute
	s, _ := newTestSynth(t, ffmpeg.NewExecutor(cfg, zerolog.Nop()))

	path, err := s.SynthesizeDemoVideo(context.Background(), strings.Repeat("A", 250))
	require.NoError(t, err)

	md, err := ffmpeg.NewProber("", time.Minute).Probe(context.Background(), path)
	require.NoError(t, err)
	assert.InDelta(t, 12.5, md.Duration, 1.0)
	assert.Equal(t, FrameWidth, md.Width)
	assert.Equal(t, FrameHeight, md.Height)
}
