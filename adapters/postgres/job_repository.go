package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"flomentum/domain/core"
	"flomentum/domain/upload"
	"flomentum/ports"
)

// JobRepositoryImpl implements JobRepository for PostgreSQL
type JobRepositoryImpl struct {
	db *sqlx.DB
}

// NewJobRepository creates a new PostgreSQL job repository
func NewJobRepository(db *sqlx.DB) ports.JobRepository {
	return &JobRepositoryImpl{db: db}
}

type jobRow struct {
	ID           core.JobID    `db:"id"`
	UserID       core.UserID   `db:"user_id"`
	Filename     string        `db:"filename"`
	FileHash     core.FileHash `db:"file_hash"`
	Status       upload.Status `db:"status"`
	Steps        []byte        `db:"steps"`
	Result       []byte        `db:"result_payload"`
	ErrorDetails string        `db:"error_details"`
	CreatedAt    time.Time     `db:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at"`
}

const jobColumns = `id, user_id, filename, file_hash, status, steps, result_payload, error_details, created_at, updated_at`

func (row *jobRow) toDomain() (*upload.Job, error) {
	job := &upload.Job{
		ID:           row.ID,
		UserID:       row.UserID,
		Filename:     row.Filename,
		FileHash:     row.FileHash,
		Status:       row.Status,
		ErrorDetails: row.ErrorDetails,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
	if len(row.Steps) > 0 {
		if err := json.Unmarshal(row.Steps, &job.Steps); err != nil {
			return nil, fmt.Errorf("unmarshal steps for job %s: %w", row.ID, err)
		}
	}
	if len(row.Result) > 0 {
		if err := json.Unmarshal(row.Result, &job.Result); err != nil {
			return nil, fmt.Errorf("unmarshal result for job %s: %w", row.ID, err)
		}
	}
	return job, nil
}

func marshalJob(job *upload.Job) (steps, result []byte, err error) {
	if steps, err = json.Marshal(job.Steps); err != nil {
		return nil, nil, err
	}
	if job.Result != nil {
		if result, err = json.Marshal(job.Result); err != nil {
			return nil, nil, err
		}
	}
	return steps, result, nil
}

// CreateJob inserts a new pending job
func (r *JobRepositoryImpl) CreateJob(ctx context.Context, job *upload.Job) error {
	steps, result, err := marshalJob(job)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO lab_upload_jobs (`+jobColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, job.ID, job.UserID, job.Filename, job.FileHash, job.Status,
		steps, result, job.ErrorDetails, job.CreatedAt, job.UpdatedAt)
	return err
}

// SaveJob overwrites the job row after a step, making progress durable
func (r *JobRepositoryImpl) SaveJob(ctx context.Context, job *upload.Job) error {
	steps, result, err := marshalJob(job)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE lab_upload_jobs
		SET status = $3, steps = $4, result_payload = $5, error_details = $6, updated_at = $7
		WHERE user_id = $1 AND id = $2
	`, job.UserID, job.ID, job.Status, steps, result, job.ErrorDetails, job.UpdatedAt)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.NewNotFoundError("lab upload job", job.ID.String())
	}
	return nil
}

// GetJob retrieves a job by owner and id
func (r *JobRepositoryImpl) GetJob(ctx context.Context, userID core.UserID, jobID core.JobID) (*upload.Job, error) {
	var row jobRow
	err := r.db.GetContext(ctx, &row, `
		SELECT `+jobColumns+`
		FROM lab_upload_jobs
		WHERE user_id = $1 AND id = $2
	`, userID, jobID)
	if err != nil {
		return nil, notFound(err, "lab upload job", jobID.String())
	}
	return row.toDomain()
}

// FindByFileHash returns an existing job for the same file content
func (r *JobRepositoryImpl) FindByFileHash(ctx context.Context, userID core.UserID, hash core.FileHash) (*upload.Job, error) {
	var row jobRow
	err := r.db.GetContext(ctx, &row, `
		SELECT `+jobColumns+`
		FROM lab_upload_jobs
		WHERE user_id = $1 AND file_hash = $2
		ORDER BY created_at DESC
		LIMIT 1
	`, userID, hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain()
}

// ListPending returns jobs still in pending, oldest first
func (r *JobRepositoryImpl) ListPending(ctx context.Context, limit int) ([]*upload.Job, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []jobRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT `+jobColumns+`
		FROM lab_upload_jobs
		WHERE status = $1
		ORDER BY created_at
		LIMIT $2
	`, upload.StatusPending, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*upload.Job, 0, len(rows))
	for i := range rows {
		job, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, nil
}
