package stage

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"sproutling/internal/domain"
	"sproutling/internal/providers/genai"
	"sproutling/internal/store"
)

// DefaultImageConcurrency caps in-flight step image calls per guide job to
// keep a burst of steps from hammering the external API.
const DefaultImageConcurrency = 8

// GuideProvider plans the step timeline and renders per-step illustrations.
type GuideProvider interface {
	PlanSteps(ctx context.Context, info domain.SeedPacketInfo, stepCount int) ([]domain.GuideStep, error)
	StepImage(ctx context.Context, info domain.SeedPacketInfo, step domain.GuideStep) (genai.ImageResult, error)
}

// ImageStore persists generated image bytes and returns a retrievable key.
type ImageStore interface {
	Write(ctx context.Context, key string, data []byte) (string, error)
}

// GuideProcessor drives one guide job to a terminal state. Step texts are
// primary: a failed step text fails the job. Illustrations are best-effort; a
// step whose image cannot be generated keeps its text and records a per-step
// image error, and the job still completes.
type GuideProcessor struct {
	jobs     *store.Jobs
	analyzer PacketAnalyzer
	planner  GuideProvider
	images   ImageStore
	logger   zerolog.Logger

	// StepCount is the number of timeline steps requested per guide.
	StepCount int
	// ImageConcurrency bounds parallel step image calls.
	ImageConcurrency int
}

// NewGuideProcessor wires the guide stage.
func NewGuideProcessor(jobs *store.Jobs, analyzer PacketAnalyzer, planner GuideProvider, images ImageStore, logger zerolog.Logger) *GuideProcessor {
	return &GuideProcessor{
		jobs:             jobs,
		analyzer:         analyzer,
		planner:          planner,
		images:           images,
		logger:           logger,
		ImageConcurrency: DefaultImageConcurrency,
	}
}

// Process runs the stage. withImages toggles per-step illustration.
func (p *GuideProcessor) Process(ctx context.Context, jobID string, image []byte, mime string, withImages bool) error {
	p.jobs.MarkProcessing(ctx, domain.StageGuide, jobID, "analyzing seed packet")

	info, err := p.analyzer.Analyze(ctx, image, mime)
	if err != nil {
		return err
	}

	p.jobs.SetMessage(ctx, domain.StageGuide, jobID, "planning growing steps for "+info.PlantName)

	steps, err := p.planner.PlanSteps(ctx, info, p.StepCount)
	if err != nil {
		return err
	}

	if withImages && p.images != nil {
		p.jobs.SetMessage(ctx, domain.StageGuide, jobID, fmt.Sprintf("illustrating %d steps", len(steps)))
		p.illustrate(ctx, jobID, info, steps)
	}

	p.jobs.Complete(ctx, domain.StageGuide, jobID, domain.GuideResult{Packet: info, Steps: steps})
	return nil
}

// illustrate renders step images with bounded concurrency. Each goroutine
// writes only its own slice index, so completion order cannot reorder the
// timeline and no locking is needed.
func (p *GuideProcessor) illustrate(ctx context.Context, jobID string, info domain.SeedPacketInfo, steps []domain.GuideStep) {
	limit := p.ImageConcurrency
	if limit <= 0 {
		limit = DefaultImageConcurrency
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := range steps {
		i := i
		g.Go(func() error {
			img, err := p.planner.StepImage(gctx, info, steps[i])
			if err != nil {
				p.logger.Warn().Err(err).
					Str("job_id", jobID).
					Int("step", steps[i].Index+1).
					Msg("guide: step image failed, keeping text only")
				steps[i].ImageError = err.Error()
				return nil
			}
			key := fmt.Sprintf("guides/%s/step-%02d.%s", jobID, steps[i].Index+1, extensionFor(img.MIME))
			saved, err := p.images.Write(gctx, key, img.Data)
			if err != nil {
				steps[i].ImageError = err.Error()
				return nil
			}
			steps[i].ImageKey = saved
			return nil
		})
	}
	// Workers never return errors; they record per-step failures instead.
	_ = g.Wait()
}

func extensionFor(mime string) string {
	switch mime {
	case "image/jpeg":
		return "jpg"
	case "image/webp":
		return "webp"
	default:
		return "png"
	}
}
