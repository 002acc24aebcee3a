package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/reelforge/internal/jobs"
	xglog "github.com/ManuGH/reelforge/internal/log"
)

const maxSubmitBody = 1 << 20

type submitJobRequest struct {
	Text string `json:"text"`
}

type submitJobResponse struct {
	JobID string `json:"jobId"`
}

func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSubmitBody)
	var req submitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, r, http.StatusBadRequest, "jobs/invalid_input", CodeInvalidInput, "request body must be a JSON object with a text field", nil)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeProblem(w, r, http.StatusBadRequest, "jobs/invalid_input", CodeInvalidInput, "text must not be empty", nil)
		return
	}
	n := utf8.RuneCountInString(req.Text)
	if n > s.opts.MaxTextRunes {
		writeProblem(w, r, http.StatusBadRequest, "jobs/invalid_input", CodeInvalidInput,
			"text exceeds "+strconv.Itoa(s.opts.MaxTextRunes)+" characters", nil)
		return
	}

	text := req.Text
	work := func(ctx context.Context, report func(string)) (string, error) {
		path, err := s.deps.Synth.Synthesize(ctx, text, report)
		if err != nil {
			return "", err
		}
		return filepath.Base(path), nil
	}
	job, err := s.deps.Tracker.Submit(r.Context(), jobs.KindSynthesis, strconv.Itoa(n)+" chars", work)
	if err != nil {
		s.writeSubmitError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusAccepted, submitJobResponse{JobID: job.ID})
}

func (s *Server) writeSubmitError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, jobs.ErrQueueFull):
		w.Header().Set("Retry-After", "5")
		writeProblem(w, r, http.StatusTooManyRequests, "jobs/queue_full", CodeQueueFull, "job queue is full", nil)
	case errors.Is(err, jobs.ErrRateLimited):
		w.Header().Set("Retry-After", "1")
		writeProblem(w, r, http.StatusTooManyRequests, "jobs/rate_limited", CodeRateLimited, "too many submissions", nil)
	case errors.Is(err, jobs.ErrClosed):
		writeProblem(w, r, http.StatusServiceUnavailable, "jobs/unavailable", CodeUnavailable, "server is shutting down", nil)
	default:
		logger := xglog.WithContext(r.Context(), s.deps.Logger)
		logger.Error().Err(err).Str(xglog.FieldEvent, "job.submit_failed").Msg("job submission failed")
		writeProblem(w, r, http.StatusInternalServerError, "about:blank", CodeInternal, "", nil)
	}
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.deps.Tracker.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeJobError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, job)
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.deps.Tracker.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeJobError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusAccepted, job)
}

func (s *Server) writeJobError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, jobs.ErrNotFound):
		writeProblem(w, r, http.StatusNotFound, "jobs/not_found", CodeJobNotFound, "job not found", nil)
	case errors.Is(err, jobs.ErrFinished):
		writeProblem(w, r, http.StatusConflict, "jobs/finished", CodeJobFinished, "job already finished", nil)
	default:
		logger := xglog.WithContext(r.Context(), s.deps.Logger)
		logger.Error().Err(err).Msg("job lookup failed")
		writeProblem(w, r, http.StatusInternalServerError, "about:blank", CodeInternal, "", nil)
	}
}
