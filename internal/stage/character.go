package stage

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"sproutling/internal/domain"
	"sproutling/internal/providers/genai"
	"sproutling/internal/store"
)

// CharacterProvider generates the mascot profile and portrait.
type CharacterProvider interface {
	Profile(ctx context.Context, info domain.SeedPacketInfo) (domain.CharacterProfile, error)
	Portrait(ctx context.Context, profile domain.CharacterProfile) (genai.ImageResult, error)
}

// CharacterProcessor drives one character job to a terminal state. The stage
// has no templated fallback; an exhausted or malformed call fails the job.
type CharacterProcessor struct {
	jobs     *store.Jobs
	analyzer PacketAnalyzer
	provider CharacterProvider
	images   ImageStore
	logger   zerolog.Logger
}

// NewCharacterProcessor wires the character stage.
func NewCharacterProcessor(jobs *store.Jobs, analyzer PacketAnalyzer, provider CharacterProvider, images ImageStore, logger zerolog.Logger) *CharacterProcessor {
	return &CharacterProcessor{
		jobs:     jobs,
		analyzer: analyzer,
		provider: provider,
		images:   images,
		logger:   logger,
	}
}

// Process runs the stage.
func (p *CharacterProcessor) Process(ctx context.Context, jobID string, image []byte, mime string) error {
	p.jobs.MarkProcessing(ctx, domain.StageCharacter, jobID, "analyzing seed packet")

	info, err := p.analyzer.Analyze(ctx, image, mime)
	if err != nil {
		return err
	}

	p.jobs.SetMessage(ctx, domain.StageCharacter, jobID, "imagining a mascot for "+info.PlantName)

	profile, err := p.provider.Profile(ctx, info)
	if err != nil {
		return err
	}

	portrait, err := p.provider.Portrait(ctx, profile)
	if err != nil {
		return err
	}
	if p.images != nil && len(portrait.Data) > 0 {
		key := fmt.Sprintf("characters/%s/portrait.%s", jobID, extensionFor(portrait.MIME))
		saved, err := p.images.Write(ctx, key, portrait.Data)
		if err != nil {
			p.logger.Warn().Err(err).Str("job_id", jobID).Msg("character: portrait persist failed")
		} else {
			profile.PortraitKey = saved
		}
	}

	p.jobs.Complete(ctx, domain.StageCharacter, jobID, profile)
	return nil
}
