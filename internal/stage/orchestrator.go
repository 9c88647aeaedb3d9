package stage

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"sproutling/internal/domain"
	"sproutling/internal/store"
)

// Orchestrator starts stage jobs, alone or fanned out as one unified job, and
// aggregates unified status reads.
type Orchestrator struct {
	jobs       *store.Jobs
	dispatcher *Dispatcher
	research   *ResearchProcessor
	guide      *GuideProcessor
	character  *CharacterProcessor
	logger     zerolog.Logger
}

// NewOrchestrator wires the three stage processors behind one entry point.
func NewOrchestrator(jobs *store.Jobs, dispatcher *Dispatcher, research *ResearchProcessor, guide *GuideProcessor, character *CharacterProcessor, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:       jobs,
		dispatcher: dispatcher,
		research:   research,
		guide:      guide,
		character:  character,
		logger:     logger,
	}
}

// StartInput is the shared input of every stage start.
type StartInput struct {
	Image        []byte
	MIME         string
	ResearchMode domain.ResearchMode
	GuideImages  bool
}

// StartResearch creates and dispatches a standalone research job.
func (o *Orchestrator) StartResearch(ctx context.Context, in StartInput) (*domain.Job, error) {
	if len(in.Image) == 0 {
		return nil, domain.ErrInvalidRequest
	}
	job := o.jobs.CreateJob(ctx, domain.StageResearch)
	o.dispatcher.Dispatch(domain.StageResearch, job.ID, func(ctx context.Context) error {
		return o.research.Process(ctx, job.ID, in.Image, in.MIME, in.ResearchMode)
	})
	return job, nil
}

// StartGuide creates and dispatches a standalone guide job.
func (o *Orchestrator) StartGuide(ctx context.Context, in StartInput) (*domain.Job, error) {
	if len(in.Image) == 0 {
		return nil, domain.ErrInvalidRequest
	}
	job := o.jobs.CreateJob(ctx, domain.StageGuide)
	o.dispatcher.Dispatch(domain.StageGuide, job.ID, func(ctx context.Context) error {
		return o.guide.Process(ctx, job.ID, in.Image, in.MIME, in.GuideImages)
	})
	return job, nil
}

// StartCharacter creates and dispatches a standalone character job.
func (o *Orchestrator) StartCharacter(ctx context.Context, in StartInput) (*domain.Job, error) {
	if len(in.Image) == 0 {
		return nil, domain.ErrInvalidRequest
	}
	job := o.jobs.CreateJob(ctx, domain.StageCharacter)
	o.dispatcher.Dispatch(domain.StageCharacter, job.ID, func(ctx context.Context) error {
		return o.character.Process(ctx, job.ID, in.Image, in.MIME)
	})
	return job, nil
}

// Start creates one unified job plus its child jobs and dispatches every
// stage as independent background work. All records exist before the first
// dispatch, so the returned IDs are immediately pollable; the call never
// waits on any AI work.
func (o *Orchestrator) Start(ctx context.Context, in StartInput) (*domain.UnifiedJob, error) {
	if len(in.Image) == 0 {
		return nil, domain.ErrInvalidRequest
	}
	unified := &domain.UnifiedJob{ID: uuid.NewString()}

	withResearch := in.ResearchMode != domain.ResearchSkip
	if withResearch {
		unified.ResearchID = o.jobs.CreateJob(ctx, domain.StageResearch).ID
	}
	unified.GuideID = o.jobs.CreateJob(ctx, domain.StageGuide).ID
	unified.CharacterID = o.jobs.CreateJob(ctx, domain.StageCharacter).ID
	o.jobs.CreateUnified(ctx, unified)

	if withResearch {
		o.dispatcher.Dispatch(domain.StageResearch, unified.ResearchID, func(ctx context.Context) error {
			return o.research.Process(ctx, unified.ResearchID, in.Image, in.MIME, in.ResearchMode)
		})
	}
	o.dispatcher.Dispatch(domain.StageGuide, unified.GuideID, func(ctx context.Context) error {
		return o.guide.Process(ctx, unified.GuideID, in.Image, in.MIME, in.GuideImages)
	})
	o.dispatcher.Dispatch(domain.StageCharacter, unified.CharacterID, func(ctx context.Context) error {
		return o.character.Process(ctx, unified.CharacterID, in.Image, in.MIME)
	})

	o.logger.Info().
		Str("unified_id", unified.ID).
		Str("research_id", unified.ResearchID).
		Str("guide_id", unified.GuideID).
		Str("character_id", unified.CharacterID).
		Msg("unified: stages dispatched")
	return unified, nil
}

// UnifiedStatus is the aggregated read-side view of a unified job. Child
// views are nil for skipped stages.
type UnifiedStatus struct {
	ID        string           `json:"job_id"`
	Overall   domain.JobStatus `json:"overall_status"`
	Research  *domain.JobView  `json:"research,omitempty"`
	Guide     *domain.JobView  `json:"guide,omitempty"`
	Character *domain.JobView  `json:"character,omitempty"`
}

// Status re-reads every present child fresh and computes the aggregate. A
// child whose record cannot be read (degraded store) counts as PENDING.
func (o *Orchestrator) Status(ctx context.Context, unifiedID string) (*UnifiedStatus, error) {
	unified, ok := o.jobs.GetUnified(ctx, unifiedID)
	if !ok {
		return nil, domain.ErrNotFound
	}

	status := &UnifiedStatus{ID: unified.ID}
	var children []domain.JobStatus

	collect := func(stage domain.Stage, id string) *domain.JobView {
		if id == "" {
			return nil
		}
		job, ok := o.jobs.GetJob(ctx, stage, id)
		if !ok {
			children = append(children, domain.StatusPending)
			return &domain.JobView{ID: id, Status: domain.StatusPending}
		}
		children = append(children, job.Status)
		view := job.View()
		return &view
	}

	status.Research = collect(domain.StageResearch, unified.ResearchID)
	status.Guide = collect(domain.StageGuide, unified.GuideID)
	status.Character = collect(domain.StageCharacter, unified.CharacterID)
	status.Overall = domain.AggregateStatus(children)
	return status, nil
}
