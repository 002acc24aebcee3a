package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys shared by the media spans.
const (
	JobIDKey     = "job.id"
	JobKindKey   = "job.kind"
	MediaPathKey = "media.path"
	MediaStage   = "media.stage"

	SynthTextLenKey  = "synth.text_len"
	SynthDurationKey = "synth.audio_duration_s"
	SynthFramesKey   = "synth.frames"

	LadderVariantsKey = "ladder.variants"
)

// SynthAttributes describes a synthesis plan.
func SynthAttributes(textLen int, duration float64, frames int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(SynthTextLenKey, textLen),
		attribute.Float64(SynthDurationKey, duration),
		attribute.Int(SynthFramesKey, frames),
	}
}

// RecordError marks span as failed when err is non-nil.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
