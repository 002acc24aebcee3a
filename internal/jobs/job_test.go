package jobs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	all := []Status{StatusQueued, StatusProcessing, StatusCompleted, StatusFailed}
	allowed := map[[2]Status]bool{
		{StatusQueued, StatusQueued}:         true,
		{StatusQueued, StatusProcessing}:     true,
		{StatusQueued, StatusFailed}:         true,
		{StatusProcessing, StatusProcessing}: true,
		{StatusProcessing, StatusCompleted}:  true,
		{StatusProcessing, StatusFailed}:     true,
	}
	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]Status{from, to}]
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestTerminal(t *testing.T) {
	assert.False(t, StatusQueued.Terminal())
	assert.False(t, StatusProcessing.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
}

func TestApplyUpdateRejectsUnknownStatus(t *testing.T) {
	cur := Job{ID: "a", Status: StatusQueued}
	_, err := applyUpdate(cur, func(j *Job) error {
		j.Status = "paused"
		return nil
	})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestApplyUpdateKeepsID(t *testing.T) {
	cur := Job{ID: "a", Status: StatusQueued}
	_, err := applyUpdate(cur, func(j *Job) error {
		j.ID = "b"
		return nil
	})
	assert.Error(t, err)
}
