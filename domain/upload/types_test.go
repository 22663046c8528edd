package upload

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flomentum/domain/core"
)

func TestJobLifecycle(t *testing.T) {
	job := NewJob("user-1", "labs.pdf", "abc123")

	assert.Equal(t, StatusPending, job.Status)
	require.Len(t, job.Steps, 1)
	assert.Equal(t, StepUploaded, job.Steps[0].Name)

	require.NoError(t, job.Transition(StatusProcessing))
	require.NoError(t, job.Transition(StatusNeedsReview))
	assert.True(t, job.Status.Terminal())
}

func TestJobIllegalTransitions(t *testing.T) {
	job := NewJob("user-1", "labs.pdf", "abc123")

	err := job.Transition(StatusCompleted)
	assert.ErrorIs(t, err, core.ErrValidation, "pending cannot jump straight to completed")
	assert.Equal(t, StatusPending, job.Status)

	require.NoError(t, job.Transition(StatusProcessing))
	require.NoError(t, job.Transition(StatusCompleted))
	assert.Error(t, job.Transition(StatusFailed), "terminal states are final")
}

func TestJobFail(t *testing.T) {
	job := NewJob("user-1", "labs.pdf", "abc123")
	require.NoError(t, job.Transition(StatusProcessing))

	job.Fail("extractor timeout")
	assert.Equal(t, StatusFailed, job.Status)
	assert.Equal(t, "extractor timeout", job.ErrorDetails)

	last := job.Steps[len(job.Steps)-1]
	assert.Equal(t, StepFinished, last.Name)
	assert.Equal(t, "error", last.Status)

	job.Fail("second failure ignored")
	assert.Equal(t, "extractor timeout", job.ErrorDetails)
}

func TestValidateTestDate(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	assert.NoError(t, ValidateTestDate(now.AddDate(0, -1, 0), now))
	assert.ErrorIs(t, ValidateTestDate(now.AddDate(0, 0, 1), now), core.ErrInvalidTestDate)
	assert.ErrorIs(t, ValidateTestDate(now.AddDate(-11, 0, 0), now), core.ErrInvalidTestDate)
}
