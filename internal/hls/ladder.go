// Package hls builds multi-bitrate HLS rendition ladders for stored videos.
package hls

import (
	"fmt"
	"strings"
)

// SegmentSeconds is the target segment duration of every variant.
const SegmentSeconds = 4

// Variant is one rung of the ladder. Bitrates are in kbit/s.
type Variant struct {
	Name         string
	Height       int
	VideoBitrate int
	AudioBitrate int
}

// Width is the 16:9 width for Height, rounded to an even number.
func (v Variant) Width() int {
	w := v.Height * 16 / 9
	return w + w%2
}

// MaxRate caps momentary video bitrate at 107% of the target.
func (v Variant) MaxRate() int { return v.VideoBitrate * 107 / 100 }

// BufSize is 1.5x the target bitrate.
func (v Variant) BufSize() int { return v.VideoBitrate * 3 / 2 }

// Bandwidth is the peak bits per second advertised in the master playlist.
func (v Variant) Bandwidth() int { return (v.MaxRate() + v.AudioBitrate) * 1000 }

// Ladder is an ordered set of variants, highest quality first.
type Ladder []Variant

// DefaultLadder is the 720p/480p/360p ladder.
var DefaultLadder = Ladder{
	{Name: "720p", Height: 720, VideoBitrate: 2800, AudioBitrate: 128},
	{Name: "480p", Height: 480, VideoBitrate: 1400, AudioBitrate: 96},
	{Name: "360p", Height: 360, VideoBitrate: 800, AudioBitrate: 48},
}

// filterGraph splits the decoded video once and scales every branch.
func (l Ladder) filterGraph() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[0:v]split=%d", len(l))
	for i := range l {
		fmt.Fprintf(&b, "[v%d]", i)
	}
	for i, v := range l {
		fmt.Fprintf(&b, ";[v%d]scale=-2:%d[v%dout]", i, v.Height, i)
	}
	return b.String()
}

// streamMap is the -var_stream_map value; names become variant directories.
func (l Ladder) streamMap(withAudio bool) string {
	parts := make([]string, len(l))
	for i, v := range l {
		if withAudio {
			parts[i] = fmt.Sprintf("v:%d,a:%d,name:%s", i, i, v.Name)
		} else {
			parts[i] = fmt.Sprintf("v:%d,name:%s", i, v.Name)
		}
	}
	return strings.Join(parts, " ")
}

// args renders the single encoder invocation producing every variant into stageDir.
func (l Ladder) args(source, stageDir string, withAudio bool) []string {
	args := []string{
		"-i", source,
		"-filter_complex", l.filterGraph(),
	}
	for i := range l {
		args = append(args, "-map", fmt.Sprintf("[v%dout]", i))
		if withAudio {
			args = append(args, "-map", "0:a:0")
		}
	}
	gop := fmt.Sprint(SegmentSeconds * 25)
	args = append(args,
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-profile:v", "main",
		"-pix_fmt", "yuv420p",
		"-r", "25",
		"-g", gop,
		"-keyint_min", gop,
		"-sc_threshold", "0",
	)
	for i, v := range l {
		args = append(args,
			fmt.Sprintf("-b:v:%d", i), fmt.Sprintf("%dk", v.VideoBitrate),
			fmt.Sprintf("-maxrate:v:%d", i), fmt.Sprintf("%dk", v.MaxRate()),
			fmt.Sprintf("-bufsize:v:%d", i), fmt.Sprintf("%dk", v.BufSize()),
		)
	}
	if withAudio {
		args = append(args, "-c:a", "aac", "-ac", "2")
		for i, v := range l {
			args = append(args, fmt.Sprintf("-b:a:%d", i), fmt.Sprintf("%dk", v.AudioBitrate))
		}
	}
	args = append(args,
		"-f", "hls",
		"-hls_time", fmt.Sprint(SegmentSeconds),
		"-hls_playlist_type", "vod",
		"-hls_list_size", "0",
		"-hls_flags", "independent_segments",
		"-hls_segment_type", "mpegts",
		"-hls_segment_filename", stageDir+"/%v/seg_%05d.ts",
		"-var_stream_map", l.streamMap(withAudio),
		stageDir+"/%v/index.m3u8",
	)
	return args
}
