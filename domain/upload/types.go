// Package upload models the lab-upload job: a durable state machine whose
// per-step progress survives process crashes.
package upload

import (
	"fmt"
	"time"

	"flomentum/domain/core"
)

// Status is the job lifecycle state
type Status string

const (
	StatusPending     Status = "pending"
	StatusProcessing  Status = "processing"
	StatusCompleted   Status = "completed"
	StatusNeedsReview Status = "needs_review"
	StatusFailed      Status = "failed"
)

// Terminal reports whether the job can no longer transition
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusNeedsReview || s == StatusFailed
}

var validTransitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusFailed},
	StatusProcessing: {StatusCompleted, StatusNeedsReview, StatusFailed},
}

// StepName identifies a pipeline step in the durable log
type StepName string

const (
	StepUploaded   StepName = "uploaded"
	StepExtracting StepName = "extracting"
	StepValidating StepName = "validating"
	StepNormalise  StepName = "normalising"
	StepPersisting StepName = "persisting"
	StepFinished   StepName = "finished"
)

// Step is one appended progress entry
type Step struct {
	Name       StepName  `json:"name"`
	Status     string    `json:"status"` // started, ok, error
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// FailedBiomarker records one extracted row that could not be normalised
type FailedBiomarker struct {
	Name   string  `json:"name"`
	Value  float64 `json:"value"`
	Unit   string  `json:"unit"`
	Reason string  `json:"reason"`
}

// ResultPayload summarises a finished job for the client
type ResultPayload struct {
	SessionID        *core.SessionID   `json:"session_id,omitempty"`
	TestDate         *core.LocalDate   `json:"test_date,omitempty"`
	LabName          string            `json:"lab_name,omitempty"`
	PersistedCount   int               `json:"persisted_count"`
	DuplicateCount   int               `json:"duplicate_count"`
	FailedBiomarkers []FailedBiomarker `json:"failedBiomarkers"`
}

// Job is one lab-upload job row
type Job struct {
	ID           core.JobID     `json:"id"`
	UserID       core.UserID    `json:"user_id"`
	Filename     string         `json:"filename"`
	FileHash     core.FileHash  `json:"file_hash"`
	Status       Status         `json:"status"`
	Steps        []Step         `json:"steps"`
	Result       *ResultPayload `json:"result_payload,omitempty"`
	ErrorDetails string         `json:"error_details,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// NewJob creates a pending job for an accepted file
func NewJob(userID core.UserID, filename string, fileHash core.FileHash) *Job {
	now := time.Now().UTC()
	job := &Job{
		ID:        core.JobID(core.NewID()),
		UserID:    userID,
		Filename:  filename,
		FileHash:  fileHash,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	job.AppendStep(StepUploaded, "ok", "")
	return job
}

// Transition moves the job to a new status, rejecting illegal moves
func (j *Job) Transition(to Status) error {
	for _, allowed := range validTransitions[j.Status] {
		if allowed == to {
			j.Status = to
			j.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return fmt.Errorf("job %s: illegal transition %s -> %s: %w", j.ID, j.Status, to, core.ErrValidation)
}

// Fail moves the job to failed with error details, from any non-terminal state
func (j *Job) Fail(detail string) {
	if j.Status.Terminal() {
		return
	}
	j.Status = StatusFailed
	j.ErrorDetails = detail
	j.UpdatedAt = time.Now().UTC()
	j.AppendStep(StepFinished, "error", detail)
}

// AppendStep records one step outcome with a UTC timestamp
func (j *Job) AppendStep(name StepName, status, detail string) {
	j.Steps = append(j.Steps, Step{
		Name:       name,
		Status:     status,
		Detail:     detail,
		OccurredAt: time.Now().UTC(),
	})
	j.UpdatedAt = time.Now().UTC()
}

// MaxUploadBytes bounds accepted lab files
const MaxUploadBytes = 10 << 20

// AllowedContentType is the only accepted lab upload format
const AllowedContentType = "application/pdf"

// MaxTestDateAge bounds how far back a lab's test date may lie
const MaxTestDateAge = 10 * 365 * 24 * time.Hour

// ValidateTestDate checks the extracted test date is plausible
func ValidateTestDate(testDate time.Time, now time.Time) error {
	if testDate.After(now) {
		return fmt.Errorf("test date %s is in the future: %w", testDate.Format("2006-01-02"), core.ErrInvalidTestDate)
	}
	if testDate.Before(now.Add(-MaxTestDateAge)) {
		return fmt.Errorf("test date %s is more than 10 years old: %w", testDate.Format("2006-01-02"), core.ErrInvalidTestDate)
	}
	return nil
}
