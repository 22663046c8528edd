package ports

import (
	"context"

	"flomentum/domain/core"
	"flomentum/domain/upload"
)

// JobRepository persists lab-upload jobs. Save is called after every step
// so a crash resumes from the last durable checkpoint.
type JobRepository interface {
	// CreateJob inserts a new pending job
	CreateJob(ctx context.Context, job *upload.Job) error

	// SaveJob overwrites the job row, including steps and result payload
	SaveJob(ctx context.Context, job *upload.Job) error

	// GetJob retrieves a job by owner and id
	GetJob(ctx context.Context, userID core.UserID, jobID core.JobID) (*upload.Job, error)

	// FindByFileHash returns an existing job for the same file, enabling
	// idempotent re-upload
	FindByFileHash(ctx context.Context, userID core.UserID, hash core.FileHash) (*upload.Job, error)

	// ListPending returns jobs still in pending, oldest first
	ListPending(ctx context.Context, limit int) ([]*upload.Job, error)
}
