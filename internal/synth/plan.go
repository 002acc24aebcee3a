package synth

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

const (
	minAudioSeconds = 3.0
	maxAudioSeconds = 30.0
	charsPerSecond  = 20.0

	minFrames     = 3
	maxFrames     = 8
	charsPerFrame = 100

	FrameWidth  = 1280
	FrameHeight = 720
)

// Palette is cycled by frame index.
var Palette = []string{
	"0x1E3A8A", // indigo
	"0x0F766E", // teal
	"0xB45309", // amber
	"0x7C2D12", // rust
	"0x4C1D95", // violet
	"0x166534", // green
}

// Plan is the derived shape of one synthesized video.
type Plan struct {
	AudioSeconds float64
	Frames       []string // colour per frame
}

// NewPlan derives the plan for text. Length counts runes.
func NewPlan(text string) Plan {
	n := utf8.RuneCountInString(text)
	count := ImageCount(n)
	frames := make([]string, count)
	for i := range frames {
		frames[i] = Palette[i%len(Palette)]
	}
	return Plan{AudioSeconds: AudioDuration(n), Frames: frames}
}

// FrameSeconds is how long each still is shown so the stills together cover
// the audio. Rounded up to the millisecond; -shortest trims the excess.
func (p Plan) FrameSeconds() float64 {
	if len(p.Frames) == 0 {
		return 0
	}
	return math.Ceil(p.AudioSeconds/float64(len(p.Frames))*1000) / 1000
}

// AudioDuration is clamp(n/20, 3, 30) seconds.
func AudioDuration(n int) float64 {
	return min(max(float64(n)/charsPerSecond, minAudioSeconds), maxAudioSeconds)
}

// ImageCount is clamp(ceil(n/100), 3, 8).
func ImageCount(n int) int {
	c := (n + charsPerFrame - 1) / charsPerFrame
	return min(max(c, minFrames), maxFrames)
}

// ConcatManifest renders the concat demuxer input for frames, each shown for
// seconds. The last frame is listed twice, the second time without a
// duration, so the demuxer holds it until the audio ends instead of cutting it.
func ConcatManifest(frames []string, seconds float64) string {
	var b strings.Builder
	b.WriteString("ffconcat version 1.0\n")
	for _, f := range frames {
		fmt.Fprintf(&b, "file '%s'\nduration %s\n", escapeConcatPath(f), formatSeconds(seconds))
	}
	if len(frames) > 0 {
		fmt.Fprintf(&b, "file '%s'\n", escapeConcatPath(frames[len(frames)-1]))
	}
	return b.String()
}

// escapeConcatPath quotes a path for a single-quoted concat directive.
func escapeConcatPath(p string) string {
	return strings.ReplaceAll(p, "'", `'\''`)
}
