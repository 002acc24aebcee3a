// Package jobs tracks asynchronous synthesis and rendition jobs.
package jobs

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound          = errors.New("job not found")
	ErrInvalidTransition = errors.New("invalid job status transition")
	ErrQueueFull         = errors.New("job queue full")
	ErrRateLimited       = errors.New("job submission rate limited")
	ErrClosed            = errors.New("job tracker closed")
	ErrFinished          = errors.New("job already finished")
)

// Kind identifies what a job produces.
type Kind string

const (
	KindSynthesis Kind = "synthesis"
	KindRendition Kind = "rendition"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s Status) valid() bool {
	switch s {
	case StatusQueued, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// CanTransition reports whether from -> to moves forward. Completion is only
// reachable from processing; failure from any non-terminal state.
func CanTransition(from, to Status) bool {
	if from == to {
		return !from.Terminal()
	}
	switch from {
	case StatusQueued:
		return to == StatusProcessing || to == StatusFailed
	case StatusProcessing:
		return to == StatusCompleted || to == StatusFailed
	}
	return false
}

// Job is the polled view of one unit of work.
type Job struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Status    Status    `json:"status"`
	Message   string    `json:"message"`
	Result    *string   `json:"result,omitempty"`
	Error     *string   `json:"error,omitempty"`
	Input     string    `json:"input,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// applyUpdate runs fn on a copy of cur and checks the resulting transition.
// Every Store implementation funnels writes through it.
func applyUpdate(cur Job, fn func(*Job) error) (Job, error) {
	next := cur
	if err := fn(&next); err != nil {
		return Job{}, err
	}
	if next.ID != cur.ID {
		return Job{}, fmt.Errorf("job id is immutable: %s", cur.ID)
	}
	if !next.Status.valid() || !CanTransition(cur.Status, next.Status) {
		return Job{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur.Status, next.Status)
	}
	return next, nil
}

func validateNew(j Job) error {
	if j.ID == "" {
		return errors.New("job id is empty")
	}
	if j.Status != StatusQueued {
		return fmt.Errorf("%w: new job in status %s", ErrInvalidTransition, j.Status)
	}
	return nil
}

func strPtr(s string) *string { return &s }
