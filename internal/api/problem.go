package api

import (
	"encoding/json"
	"net/http"

	"github.com/ManuGH/reelforge/internal/api/middleware"
	"github.com/ManuGH/reelforge/internal/log"
)

// Problem codes.
const (
	CodeInvalidInput     = "INVALID_INPUT"
	CodeInvalidName      = "INVALID_NAME"
	CodeAssetNotFound    = "ASSET_NOT_FOUND"
	CodeJobNotFound      = "JOB_NOT_FOUND"
	CodeJobFinished      = "JOB_FINISHED"
	CodeQueueFull        = "QUEUE_FULL"
	CodeRateLimited      = "RATE_LIMITED"
	CodeUnavailable      = "UNAVAILABLE"
	CodeInvalidRange     = "INVALID_RANGE"
	CodeOutOfRange       = "OFFSET_OUT_OF_RANGE"
	CodeThumbnailFailed  = "THUMBNAIL_FAILED"
	CodeRenditionMissing = "RENDITION_NOT_FOUND"
	CodeInternal         = "INTERNAL"
)

// writeProblem writes an RFC 7807 problem details response.
//
//   - type: "about:blank" or a relative problem identifier (e.g. "videos/not_found").
//   - title: Human-readable short label (e.g. "Not Found").
//   - code: Stable machine-readable short code (e.g. "ASSET_NOT_FOUND").
//   - detail: Human-readable explanation of the specific error.
func writeProblem(w http.ResponseWriter, r *http.Request, status int, problemType, code, detail string, extra map[string]any) {
	reqID := log.RequestIDFromContext(r.Context())
	if reqID == "" {
		reqID = w.Header().Get(middleware.HeaderRequestID)
	}

	res := map[string]any{
		"type":      problemType,
		"title":     http.StatusText(status),
		"status":    status,
		"code":      code,
		"requestId": reqID,
		"instance":  r.URL.EscapedPath(),
	}
	if detail != "" {
		res["detail"] = detail
	}
	for k, v := range extra {
		switch k {
		case "type", "title", "status", "detail", "instance", "code", "requestId":
			log.L().Warn().Str("key", k).Str("problem_type", problemType).Msg("ignoring reserved key in problem extras")
			continue
		}
		res[k] = v
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(res); err != nil {
		log.L().Error().
			Err(err).
			Str("type", problemType).
			Int(log.FieldStatus, status).
			Msg("failed to encode problem response")
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).Msg("failed to encode response")
	}
}
