package store

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"sproutling/internal/domain"
)

const (
	collectionResearch  = "research_jobs"
	collectionGuide     = "guide_jobs"
	collectionCharacter = "character_jobs"
	collectionUnified   = "unified_jobs"
)

// Jobs layers the job lifecycle on top of a DocumentStore. It owns the two
// invariants every caller relies on: terminal jobs never transition again,
// and result/error are written exactly once, at the terminal transition.
//
// Each stage processor writes only to its own job id, so there is no
// read-modify-write race between peers; the terminal guard here protects
// against replayed or late writes, not concurrent ones.
type Jobs struct {
	docs   domain.DocumentStore
	logger zerolog.Logger
}

// NewJobs wraps the given document store.
func NewJobs(docs domain.DocumentStore, logger zerolog.Logger) *Jobs {
	return &Jobs{docs: docs, logger: logger}
}

func collectionFor(stage domain.Stage) string {
	switch stage {
	case domain.StageResearch:
		return collectionResearch
	case domain.StageGuide:
		return collectionGuide
	case domain.StageCharacter:
		return collectionCharacter
	default:
		return string(stage) + "_jobs"
	}
}

// CreateJob allocates a fresh PENDING job for the stage and persists it.
func (s *Jobs) CreateJob(ctx context.Context, stage domain.Stage) *domain.Job {
	job := &domain.Job{
		ID:      uuid.NewString(),
		Stage:   stage,
		Status:  domain.StatusPending,
		Message: "queued",
	}
	s.docs.Create(ctx, collectionFor(stage), job.ID, map[string]any{
		"stage":   string(stage),
		"status":  string(job.Status),
		"message": job.Message,
	})
	return job
}

// MarkProcessing moves a pending job into PROCESSING.
func (s *Jobs) MarkProcessing(ctx context.Context, stage domain.Stage, id, message string) {
	s.transition(ctx, stage, id, map[string]any{
		"status":  string(domain.StatusProcessing),
		"message": message,
	})
}

// SetMessage refreshes the human-readable progress string of a running job.
func (s *Jobs) SetMessage(ctx context.Context, stage domain.Stage, id, message string) {
	s.transition(ctx, stage, id, map[string]any{"message": message})
}

// Complete writes the structured result and moves the job to COMPLETED.
func (s *Jobs) Complete(ctx context.Context, stage domain.Stage, id string, result any) {
	s.transition(ctx, stage, id, map[string]any{
		"status":  string(domain.StatusCompleted),
		"message": "done",
		"result":  result,
	})
}

// Fail records the error string and moves the job to FAILED.
func (s *Jobs) Fail(ctx context.Context, stage domain.Stage, id, errMsg string) {
	s.transition(ctx, stage, id, map[string]any{
		"status":  string(domain.StatusFailed),
		"message": "failed",
		"error":   errMsg,
	})
}

// transition applies a partial update unless the job already reached a
// terminal state. A job that cannot be read (degraded store) is updated
// blindly; the update is a no-op there anyway.
func (s *Jobs) transition(ctx context.Context, stage domain.Stage, id string, fields map[string]any) {
	col := collectionFor(stage)
	if rec, ok := s.docs.Get(ctx, col, id); ok {
		status := domain.ParseStatus(stringField(rec.Fields, "status"))
		if status.IsTerminal() {
			s.logger.Warn().
				Str("stage", string(stage)).
				Str("job_id", id).
				Str("status", string(status)).
				Msg("jobs: dropped write to terminal job")
			return
		}
	}
	s.docs.Update(ctx, col, id, fields)
}

// GetJob fetches a job in its domain shape.
func (s *Jobs) GetJob(ctx context.Context, stage domain.Stage, id string) (*domain.Job, bool) {
	rec, ok := s.docs.Get(ctx, collectionFor(stage), id)
	if !ok {
		return nil, false
	}
	job := recordToJob(stage, rec)
	return &job, true
}

// ListByStatus returns the newest jobs of a stage in the given status.
func (s *Jobs) ListByStatus(ctx context.Context, stage domain.Stage, status domain.JobStatus, limit int) []domain.Job {
	records := s.docs.Query(ctx, collectionFor(stage), "status", string(status), limit)
	jobs := make([]domain.Job, 0, len(records))
	for _, rec := range records {
		jobs = append(jobs, recordToJob(stage, rec))
	}
	return jobs
}

// CreateUnified persists the composite record referencing the child job IDs.
func (s *Jobs) CreateUnified(ctx context.Context, u *domain.UnifiedJob) {
	s.docs.Create(ctx, collectionUnified, u.ID, map[string]any{
		"research_id":  u.ResearchID,
		"guide_id":     u.GuideID,
		"character_id": u.CharacterID,
	})
}

// GetUnified fetches a unified job record.
func (s *Jobs) GetUnified(ctx context.Context, id string) (*domain.UnifiedJob, bool) {
	rec, ok := s.docs.Get(ctx, collectionUnified, id)
	if !ok {
		return nil, false
	}
	return &domain.UnifiedJob{
		ID:          rec.ID,
		ResearchID:  stringField(rec.Fields, "research_id"),
		GuideID:     stringField(rec.Fields, "guide_id"),
		CharacterID: stringField(rec.Fields, "character_id"),
		CreatedAt:   rec.CreatedAt,
	}, true
}

func recordToJob(stage domain.Stage, rec domain.Record) domain.Job {
	job := domain.Job{
		ID:        rec.ID,
		Stage:     stage,
		Status:    domain.ParseStatus(stringField(rec.Fields, "status")),
		Message:   stringField(rec.Fields, "message"),
		Error:     stringField(rec.Fields, "error"),
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
	if raw, ok := rec.Fields["result"]; ok && raw != nil {
		if encoded, err := json.Marshal(raw); err == nil {
			job.Result = encoded
		}
	}
	return job
}

func stringField(fields map[string]any, key string) string {
	if v, ok := fields[key].(string); ok {
		return v
	}
	return ""
}
