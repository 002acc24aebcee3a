package synth

import "errors"

// Synthesis error kinds. Encoder failures are wrapped alongside them, so
// errors.As still finds *ffmpeg.EncodingFailure or *ffmpeg.EncodingTimeout.
var (
	ErrStorageUnavailable   = errors.New("storage unavailable")
	ErrAudioSynthesisFailed = errors.New("audio synthesis failed")
	ErrImageSynthesisFailed = errors.New("image synthesis failed")
	ErrCompositionFailed    = errors.New("composition failed")
)
