// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldJobID     = "job_id"
	FieldJobKind   = "job_kind"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldStage     = "stage"
	FieldDuration  = "duration_ms"
	FieldExitCode  = "exit_code"

	// Media fields
	FieldAsset   = "asset"
	FieldVariant = "variant"
	FieldFrames  = "frames"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Path / HTTP fields
	FieldPath   = "path"
	FieldRoot   = "root"
	FieldRange  = "range"
	FieldStatus = "status"
	FieldBytes  = "bytes"
)
