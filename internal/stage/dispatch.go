package stage

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"sproutling/internal/domain"
	"sproutling/internal/store"
)

// Dispatcher runs stage processors as detached background work. Dispatch
// returns immediately; the processor runs on its own goroutine against the
// dispatcher's base context so it survives the HTTP request that started it.
//
// The goroutine carries a barrier: a returned error or an escaped panic is
// converted into a FAILED job. Nothing a processor does can leave its job
// stuck in PROCESSING or vanish without a recorded failure.
type Dispatcher struct {
	ctx    context.Context
	jobs   *store.Jobs
	logger zerolog.Logger
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher bound to the process-lifetime context.
func NewDispatcher(ctx context.Context, jobs *store.Jobs, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{ctx: ctx, jobs: jobs, logger: logger}
}

// Dispatch schedules fn as detached work for the given job.
func (d *Dispatcher) Dispatch(stage domain.Stage, jobID string, fn func(ctx context.Context) error) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error().
					Str("stage", string(stage)).
					Str("job_id", jobID).
					Interface("panic", r).
					Msg("stage: processor panicked")
				d.jobs.Fail(d.ctx, stage, jobID, fmt.Sprintf("internal error: %v", r))
			}
		}()
		if err := fn(d.ctx); err != nil {
			d.logger.Error().
				Err(err).
				Str("stage", string(stage)).
				Str("job_id", jobID).
				Msg("stage: processor failed")
			d.jobs.Fail(d.ctx, stage, jobID, err.Error())
		}
	}()
}

// Wait blocks until all dispatched work has finished. Used on shutdown and in
// tests; callers polling job status never need it.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
