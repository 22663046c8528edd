package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"flomentum/domain/biomarker"
	"flomentum/domain/core"
	"flomentum/domain/measurement"
	"flomentum/domain/normalize"
	"flomentum/domain/upload"
	"flomentum/ports"
)

// LabUploadService runs the lab pipeline: accept a PDF, extract biomarkers
// via the AI vendor, normalise, dedup, and persist under one session. Every
// step is appended to the job's durable log before the next one starts.
type LabUploadService struct {
	catalog         *biomarker.Catalog
	jobs            ports.JobRepository
	sessions        ports.SessionRepository
	measurements    ports.MeasurementRepository
	profiles        ports.ProfileRepository
	store           ports.ObjectStore
	extractor       ports.LabExtractor
	epsilonFraction float64
	log             zerolog.Logger
}

// NewLabUploadService wires the lab pipeline
func NewLabUploadService(
	catalog *biomarker.Catalog,
	jobs ports.JobRepository,
	sessions ports.SessionRepository,
	measurements ports.MeasurementRepository,
	profiles ports.ProfileRepository,
	store ports.ObjectStore,
	extractor ports.LabExtractor,
	epsilonFraction float64,
	log zerolog.Logger,
) *LabUploadService {
	return &LabUploadService{
		catalog:         catalog,
		jobs:            jobs,
		sessions:        sessions,
		measurements:    measurements,
		profiles:        profiles,
		store:           store,
		extractor:       extractor,
		epsilonFraction: epsilonFraction,
		log:             log.With().Str("component", "labupload").Logger(),
	}
}

// objectKey places lab documents under their content hash
func objectKey(hash core.FileHash) string {
	return fmt.Sprintf("labs/%s", hash)
}

// Accept validates an upload, stores the file, and creates a pending job.
// Re-uploading the same file returns the existing job unchanged.
func (s *LabUploadService) Accept(ctx context.Context, userID core.UserID, filename, contentType string, size int64, file io.Reader) (*upload.Job, error) {
	if contentType != upload.AllowedContentType {
		return nil, core.NewValidationError("file", fmt.Sprintf("content type %q not allowed, only %s", contentType, upload.AllowedContentType))
	}
	if size > upload.MaxUploadBytes {
		return nil, core.NewValidationError("file", fmt.Sprintf("%d bytes exceeds the %d byte limit", size, upload.MaxUploadBytes))
	}

	// Bounded read guards against a lying Content-Length
	data, err := io.ReadAll(io.LimitReader(file, upload.MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) > upload.MaxUploadBytes {
		return nil, core.NewValidationError("file", "file exceeds the 10 MiB limit")
	}
	hash := core.FileHash(core.NewHash(data))

	if existing, err := s.jobs.FindByFileHash(ctx, userID, hash); err != nil {
		return nil, err
	} else if existing != nil {
		s.log.Info().Str("job_id", existing.ID.String()).Msg("duplicate upload, returning existing job")
		return existing, nil
	}

	if err := s.store.Put(ctx, objectKey(hash), upload.AllowedContentType, bytes.NewReader(data)); err != nil {
		return nil, err
	}

	job := upload.NewJob(userID, filename, hash)
	if err := s.jobs.CreateJob(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// Status returns a job by id
func (s *LabUploadService) Status(ctx context.Context, userID core.UserID, jobID core.JobID) (*upload.Job, error) {
	return s.jobs.GetJob(ctx, userID, jobID)
}

// Process drives one pending job to a terminal state. Safe to call from a
// crashed-and-restarted worker: a job found past pending is left alone.
func (s *LabUploadService) Process(ctx context.Context, job *upload.Job) error {
	if job.Status != upload.StatusPending {
		return nil
	}
	if err := job.Transition(upload.StatusProcessing); err != nil {
		return err
	}
	if err := s.jobs.SaveJob(ctx, job); err != nil {
		return err
	}

	report, err := s.extract(ctx, job)
	if err != nil {
		return s.fail(ctx, job, err)
	}

	job.AppendStep(upload.StepValidating, "started", "")
	if err := upload.ValidateTestDate(report.TestDate, time.Now().UTC()); err != nil {
		job.AppendStep(upload.StepValidating, "error", err.Error())
		return s.fail(ctx, job, err)
	}
	job.AppendStep(upload.StepValidating, "ok", report.TestDate.Format("2006-01-02"))
	if err := s.jobs.SaveJob(ctx, job); err != nil {
		return err
	}

	outcome := s.normaliseAndPersist(ctx, job, report)

	terminal := upload.StatusCompleted
	if len(outcome.Failed) > 0 {
		terminal = upload.StatusNeedsReview
	}
	if err := job.Transition(terminal); err != nil {
		return err
	}
	job.AppendStep(upload.StepFinished, "ok", string(terminal))
	if err := s.jobs.SaveJob(ctx, job); err != nil {
		return err
	}

	s.log.Info().
		Str("job_id", job.ID.String()).
		Str("status", string(terminal)).
		Int("persisted", job.Result.PersistedCount).
		Int("failed", len(job.Result.FailedBiomarkers)).
		Msg("lab upload finished")
	return nil
}

// DrainPending processes up to limit pending jobs, oldest first
func (s *LabUploadService) DrainPending(ctx context.Context, limit int) error {
	jobs, err := s.jobs.ListPending(ctx, limit)
	if err != nil {
		return err
	}
	for _, job := range jobs {
		if err := s.Process(ctx, job); err != nil {
			s.log.Error().Err(err).Str("job_id", job.ID.String()).Msg("job processing failed")
		}
	}
	return nil
}

func (s *LabUploadService) extract(ctx context.Context, job *upload.Job) (*upload.ExtractedReport, error) {
	job.AppendStep(upload.StepExtracting, "started", "")
	if err := s.jobs.SaveJob(ctx, job); err != nil {
		return nil, err
	}

	obj, err := s.store.Get(ctx, objectKey(job.FileHash))
	if err != nil {
		job.AppendStep(upload.StepExtracting, "error", err.Error())
		return nil, err
	}
	defer obj.Close()
	pdf, err := io.ReadAll(obj)
	if err != nil {
		job.AppendStep(upload.StepExtracting, "error", err.Error())
		return nil, fmt.Errorf("%w: read stored file: %v", core.ErrExternalStore, err)
	}

	report, err := s.extractor.ExtractLabReport(ctx, pdf)
	if err != nil {
		job.AppendStep(upload.StepExtracting, "error", err.Error())
		return nil, err
	}
	job.AppendStep(upload.StepExtracting, "ok", fmt.Sprintf("%d biomarkers", len(report.Biomarkers)))
	return report, nil
}

type pipelineOutcome struct {
	Persisted int
	Duplicate int
	Failed    []upload.FailedBiomarker
}

// normaliseAndPersist runs every extracted row through normalisation and
// dedup, persisting the survivors under one new session. Per-row failures
// accumulate; they never abort the job.
func (s *LabUploadService) normaliseAndPersist(ctx context.Context, job *upload.Job, report *upload.ExtractedReport) *pipelineOutcome {
	job.AppendStep(upload.StepNormalise, "started", "")

	nctx := normalize.Context{}
	if p, err := s.profiles.GetProfile(ctx, job.UserID); err == nil {
		nctx = contextFromProfile(p)
	}

	engine := normalize.NewEngine(s.catalog.Snapshot())
	outcome := &pipelineOutcome{}
	seen := make(map[core.BiomarkerID]bool)
	var pending []*measurement.Measurement

	session := &measurement.Session{
		ID:        core.SessionID(core.NewID()),
		UserID:    job.UserID,
		Source:    measurement.SourceAIExtracted,
		TestDate:  report.TestDate,
		LabName:   report.LabName,
		CreatedAt: time.Now().UTC(),
	}

	for _, raw := range report.Biomarkers {
		res, err := engine.Normalise(normalize.Input{Name: raw.Name, Value: raw.Value, Unit: raw.Unit}, nctx)
		if err != nil {
			outcome.Failed = append(outcome.Failed, upload.FailedBiomarker{
				Name: raw.Name, Value: raw.Value, Unit: raw.Unit, Reason: err.Error(),
			})
			continue
		}
		if seen[res.BiomarkerID] {
			outcome.Failed = append(outcome.Failed, upload.FailedBiomarker{
				Name: raw.Name, Value: raw.Value, Unit: raw.Unit,
				Reason: fmt.Sprintf("duplicate of %s within this upload", res.CanonicalName),
			})
			continue
		}
		dup, err := s.measurements.FindNearDuplicate(ctx, job.UserID, res.BiomarkerID, res.ValueCanonical, report.TestDate, s.epsilonFraction)
		if err == nil && dup != nil {
			outcome.Duplicate++
			continue
		}
		seen[res.BiomarkerID] = true
		pending = append(pending, measurement.FromResult(res, job.UserID, session.ID, measurement.SourceAIExtracted, report.TestDate))
	}
	job.AppendStep(upload.StepNormalise, "ok", fmt.Sprintf("%d ok, %d failed, %d duplicate", len(pending), len(outcome.Failed), outcome.Duplicate))

	job.AppendStep(upload.StepPersisting, "started", "")
	var sessionID *core.SessionID
	if len(pending) > 0 {
		if err := s.sessions.CreateSession(ctx, session); err != nil {
			job.AppendStep(upload.StepPersisting, "error", err.Error())
		} else {
			sessionID = &session.ID
			for _, m := range pending {
				if err := s.measurements.CreateMeasurement(ctx, m); err != nil {
					outcome.Failed = append(outcome.Failed, upload.FailedBiomarker{
						Name: string(m.BiomarkerID), Value: m.ValueRaw, Unit: m.UnitRaw, Reason: err.Error(),
					})
					continue
				}
				outcome.Persisted++
			}
		}
	}
	job.AppendStep(upload.StepPersisting, "ok", fmt.Sprintf("%d persisted", outcome.Persisted))

	testDate := core.LocalDate(report.TestDate.Format("2006-01-02"))
	failed := outcome.Failed
	if failed == nil {
		failed = []upload.FailedBiomarker{}
	}
	job.Result = &upload.ResultPayload{
		SessionID:        sessionID,
		TestDate:         &testDate,
		LabName:          report.LabName,
		PersistedCount:   outcome.Persisted,
		DuplicateCount:   outcome.Duplicate,
		FailedBiomarkers: failed,
	}
	return outcome
}

func (s *LabUploadService) fail(ctx context.Context, job *upload.Job, cause error) error {
	job.Fail(cause.Error())
	if err := s.jobs.SaveJob(ctx, job); err != nil {
		return err
	}
	s.log.Warn().Err(cause).Str("job_id", job.ID.String()).Msg("lab upload failed")
	return nil
}
