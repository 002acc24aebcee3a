package synth

import (
	"fmt"
	"strconv"
)

const toneHz = 440

func audioArgs(seconds float64, out string) []string {
	return []string{
		"-f", "lavfi",
		"-i", fmt.Sprintf("sine=frequency=%d:sample_rate=44100:duration=%s", toneHz, formatSeconds(seconds)),
		"-c:a", "aac",
		"-b:a", "128k",
		out,
	}
}

func frameArgs(color, out string) []string {
	return []string{
		"-f", "lavfi",
		"-i", fmt.Sprintf("color=c=%s:s=%dx%d:d=1", color, FrameWidth, FrameHeight),
		"-frames:v", "1",
		"-q:v", "2",
		out,
	}
}

func muxArgs(manifest, audio, out string) []string {
	return []string{
		"-f", "concat",
		"-safe", "0",
		"-i", manifest,
		"-i", audio,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-pix_fmt", "yuv420p",
		"-r", "25",
		"-c:a", "aac",
		"-b:a", "128k",
		"-shortest",
		"-movflags", "+faststart",
		"-f", "mp4",
		out,
	}
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', -1, 64)
}
