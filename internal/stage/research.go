package stage

import (
	"context"

	"github.com/rs/zerolog"

	"sproutling/internal/domain"
	"sproutling/internal/providers/genai"
	"sproutling/internal/store"
)

// PacketAnalyzer extracts structured fields from a seed packet photo.
type PacketAnalyzer interface {
	Analyze(ctx context.Context, image []byte, mime string) (domain.SeedPacketInfo, error)
}

// ResearchProvider performs the research calls for an analyzed packet.
type ResearchProvider interface {
	Research(ctx context.Context, info domain.SeedPacketInfo, mode domain.ResearchMode) (domain.ResearchResult, error)
	Fallback(info domain.SeedPacketInfo, mode domain.ResearchMode) domain.ResearchResult
}

// ResearchProcessor drives one research job from PENDING to a terminal state.
// Research is the fallback-enabled stage: when the provider's retry budget is
// spent on transient faults the job completes with a templated result instead
// of failing. Client errors stay hard failures; retrying or templating cannot
// fix a malformed request.
type ResearchProcessor struct {
	jobs     *store.Jobs
	analyzer PacketAnalyzer
	provider ResearchProvider
	logger   zerolog.Logger

	// FallbackOnExhaustion substitutes the templated result after transient
	// retry exhaustion. On by default for research.
	FallbackOnExhaustion bool
}

// NewResearchProcessor wires the research stage.
func NewResearchProcessor(jobs *store.Jobs, analyzer PacketAnalyzer, provider ResearchProvider, logger zerolog.Logger) *ResearchProcessor {
	return &ResearchProcessor{
		jobs:                 jobs,
		analyzer:             analyzer,
		provider:             provider,
		logger:               logger,
		FallbackOnExhaustion: true,
	}
}

// Process runs the stage. A returned error means an unrecoverable failure the
// dispatcher turns into a FAILED job; every other path reaches a terminal
// state in here.
func (p *ResearchProcessor) Process(ctx context.Context, jobID string, image []byte, mime string, mode domain.ResearchMode) error {
	p.jobs.MarkProcessing(ctx, domain.StageResearch, jobID, "analyzing seed packet")

	info, err := p.analyzer.Analyze(ctx, image, mime)
	if err != nil {
		if p.FallbackOnExhaustion && !genai.IsClientError(err) {
			p.logger.Warn().Err(err).Str("job_id", jobID).Msg("research: analysis exhausted retries, using fallback")
			p.jobs.Complete(ctx, domain.StageResearch, jobID, p.provider.Fallback(domain.SeedPacketInfo{}, mode))
			return nil
		}
		return err
	}

	p.jobs.SetMessage(ctx, domain.StageResearch, jobID, "researching "+info.PlantName)

	result, err := p.provider.Research(ctx, info, mode)
	if err != nil {
		if p.FallbackOnExhaustion && !genai.IsClientError(err) {
			p.logger.Warn().Err(err).Str("job_id", jobID).Msg("research: provider exhausted retries, using fallback")
			p.jobs.Complete(ctx, domain.StageResearch, jobID, p.provider.Fallback(info, mode))
			return nil
		}
		return err
	}

	p.jobs.Complete(ctx, domain.StageResearch, jobID, result)
	return nil
}
