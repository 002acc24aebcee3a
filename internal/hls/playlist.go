package hls

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Segment is one media segment of a variant playlist.
type Segment struct {
	URI      string
	Duration time.Duration
}

// MediaPlaylist is the parsed form of a variant playlist.
type MediaPlaylist struct {
	TargetDuration int
	Segments       []Segment
	IsVOD          bool // #EXT-X-PLAYLIST-TYPE:VOD
	Ended          bool // #EXT-X-ENDLIST
}

// TotalDuration sums the segment durations.
func (p MediaPlaylist) TotalDuration() time.Duration {
	var d time.Duration
	for _, s := range p.Segments {
		d += s.Duration
	}
	return d
}

// ParseMediaPlaylist parses a variant playlist.
func ParseMediaPlaylist(content string) (MediaPlaylist, error) {
	scanner := bufio.NewScanner(strings.NewReader(content))
	var (
		pl           MediaPlaylist
		nextDuration time.Duration
		sawHeader    bool
		pending      bool
	)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !sawHeader {
			if line != "#EXTM3U" {
				return MediaPlaylist{}, fmt.Errorf("missing #EXTM3U header")
			}
			sawHeader = true
			continue
		}

		switch {
		case line == "#EXT-X-PLAYLIST-TYPE:VOD":
			pl.IsVOD = true
		case line == "#EXT-X-ENDLIST":
			pl.Ended = true
		case strings.HasPrefix(line, "#EXT-X-TARGETDURATION:"):
			v, err := strconv.Atoi(strings.TrimPrefix(line, "#EXT-X-TARGETDURATION:"))
			if err != nil {
				return MediaPlaylist{}, fmt.Errorf("invalid target duration: %s", line)
			}
			pl.TargetDuration = v
		case strings.HasPrefix(line, "#EXTINF:"):
			durPart := strings.TrimPrefix(line, "#EXTINF:")
			if idx := strings.Index(durPart, ","); idx != -1 {
				durPart = durPart[:idx]
			}
			secs, err := strconv.ParseFloat(durPart, 64)
			if err != nil || secs < 0 {
				return MediaPlaylist{}, fmt.Errorf("invalid EXTINF duration: %s", durPart)
			}
			nextDuration = time.Duration(secs * float64(time.Second))
			pending = true
		case strings.HasPrefix(line, "#"):
			// other tags are irrelevant here
		default:
			if !pending {
				return MediaPlaylist{}, fmt.Errorf("segment %q without #EXTINF", line)
			}
			if pl.Ended {
				return MediaPlaylist{}, fmt.Errorf("segment %q after #EXT-X-ENDLIST", line)
			}
			pl.Segments = append(pl.Segments, Segment{URI: line, Duration: nextDuration})
			nextDuration = 0
			pending = false
		}
	}
	if err := scanner.Err(); err != nil {
		return MediaPlaylist{}, err
	}
	if !sawHeader {
		return MediaPlaylist{}, fmt.Errorf("empty playlist")
	}
	return pl, nil
}

// RenderMaster renders the master playlist referencing <name>/index.m3u8 per variant.
func RenderMaster(ladder Ladder, withAudio bool) string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-INDEPENDENT-SEGMENTS\n")
	for _, v := range ladder {
		codecs := "avc1.4d401f"
		bandwidth := v.Bandwidth()
		if withAudio {
			codecs += ",mp4a.40.2"
		} else {
			bandwidth = v.MaxRate() * 1000
		}
		fmt.Fprintf(&b, "#EXT-X-STREAM-INF:BANDWIDTH=%d,AVERAGE-BANDWIDTH=%d,RESOLUTION=%dx%d,CODECS=\"%s\",NAME=\"%s\"\n",
			bandwidth, (v.VideoBitrate+audioKbps(v, withAudio))*1000, v.Width(), v.Height, codecs, v.Name)
		fmt.Fprintf(&b, "%s/index.m3u8\n", v.Name)
	}
	return b.String()
}

func audioKbps(v Variant, withAudio bool) int {
	if !withAudio {
		return 0
	}
	return v.AudioBitrate
}
