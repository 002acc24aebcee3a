package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/ManuGH/reelforge/internal/procgroup"
)

// ErrNoStreams is returned when the prober finds no audio or video stream.
var ErrNoStreams = errors.New("no playable streams")

// Metadata is the technical description of a media file.
type Metadata struct {
	Duration   float64 `json:"duration"` // seconds
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Bitrate    int64   `json:"bitrate"` // bits per second
	Format     string  `json:"format"`
	VideoCodec string  `json:"videoCodec,omitempty"`
	AudioCodec string  `json:"audioCodec,omitempty"`
}

// Prober runs ffprobe.
type Prober struct {
	Binary  string
	Timeout time.Duration
}

// NewProber returns a Prober for binary; an empty binary means "ffprobe".
func NewProber(binary string, timeout time.Duration) *Prober {
	if binary == "" {
		binary = "ffprobe"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Prober{Binary: binary, Timeout: timeout}
}

// Probe inspects path and returns its metadata.
func (p *Prober) Probe(ctx context.Context, path string) (Metadata, error) {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	// #nosec G204 -- binary from config, path is confined by the caller
	cmd := exec.CommandContext(ctx, p.Binary,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	procgroup.Set(cmd)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 4096 {
			msg = msg[:4096] + "..."
		}
		if ctx.Err() != nil {
			return Metadata{}, fmt.Errorf("ffprobe: %w", ctx.Err())
		}
		return Metadata{}, fmt.Errorf("ffprobe failed: %w (stderr: %s)", err, msg)
	}
	return ParseProbe(out)
}

type probeData struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Width     int    `json:"width,omitempty"`
		Height    int    `json:"height,omitempty"`
		Duration  string `json:"duration,omitempty"`
		BitRate   string `json:"bit_rate,omitempty"`
	} `json:"streams"`
	Format struct {
		Duration   string `json:"duration"`
		BitRate    string `json:"bit_rate"`
		FormatName string `json:"format_name"`
	} `json:"format"`
}

// ParseProbe decodes ffprobe JSON output.
func ParseProbe(out []byte) (Metadata, error) {
	var data probeData
	if err := json.Unmarshal(out, &data); err != nil {
		return Metadata{}, fmt.Errorf("decode ffprobe output: %w", err)
	}

	var md Metadata
	playable := false
	for _, s := range data.Streams {
		switch s.CodecType {
		case "video":
			if md.VideoCodec != "" || s.CodecName == "" {
				continue
			}
			playable = true
			md.VideoCodec = s.CodecName
			md.Width = s.Width
			md.Height = s.Height
			if md.Duration == 0 {
				md.Duration = parseFloat(s.Duration)
			}
		case "audio":
			if md.AudioCodec != "" || s.CodecName == "" {
				continue
			}
			playable = true
			md.AudioCodec = s.CodecName
		}
	}
	if !playable {
		return Metadata{}, ErrNoStreams
	}

	if d := parseFloat(data.Format.Duration); d > 0 {
		md.Duration = d
	}
	md.Bitrate, _ = strconv.ParseInt(data.Format.BitRate, 10, 64)
	md.Format = canonicalFormat(data.Format.FormatName)
	return md, nil
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// canonicalFormat picks one token from ffprobe's comma-separated list.
func canonicalFormat(name string) string {
	first := ""
	for _, part := range strings.Split(name, ",") {
		t := strings.TrimSpace(part)
		switch t {
		case "mpegts":
			return "ts"
		case "mp4":
			return "mp4"
		case "hls":
			return "hls"
		}
		if first == "" {
			first = t
		}
	}
	return first
}
