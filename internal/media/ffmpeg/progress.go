package ffmpeg

import (
	"strconv"
	"strings"
)

// Progress is one block of `-progress pipe:1` output.
type Progress struct {
	OutTimeUs int64
	TotalSize int64
	Speed     string
	Done      bool
}

func (p Progress) hasAdvanced(prev Progress) bool {
	return p.OutTimeUs > prev.OutTimeUs || p.TotalSize > prev.TotalSize || p.Done
}

// progressParser accumulates key=value lines and emits a Progress on each
// `progress=` key, which ffmpeg writes last in every block.
type progressParser struct {
	current Progress
	emit    func(Progress)
}

func (pp *progressParser) line(line string) {
	key, val, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return
	}
	key, val = strings.TrimSpace(key), strings.TrimSpace(val)

	switch key {
	case "out_time_us", "out_time_ms":
		// out_time_ms is misnamed by ffmpeg and carries microseconds too
		if v, err := strconv.ParseInt(val, 10, 64); err == nil && v > pp.current.OutTimeUs {
			pp.current.OutTimeUs = v
		}
	case "total_size":
		if v, err := strconv.ParseInt(val, 10, 64); err == nil {
			pp.current.TotalSize = v
		}
	case "speed":
		pp.current.Speed = val
	case "progress":
		pp.current.Done = val == "end"
		pp.emit(pp.current)
	}
}
