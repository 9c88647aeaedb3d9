package seed

import (
	"context"
	"fmt"
	"strings"

	"sproutling/internal/domain"
	"sproutling/internal/providers/genai"
)

// DefaultStepCount is the number of timeline steps requested when the caller
// does not specify one.
const DefaultStepCount = 5

// GuidePlanner turns an analyzed packet into an ordered growing timeline and
// renders the optional per-step illustrations.
type GuidePlanner struct {
	client *genai.Client
}

// NewGuidePlanner wraps the model client.
func NewGuidePlanner(client *genai.Client) *GuidePlanner {
	return &GuidePlanner{client: client}
}

type plannedStep struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	DayOffset   int    `json:"day_offset"`
}

// PlanSteps generates the step texts in one call. The returned slice is in
// generation order and each step carries its index; callers must preserve
// that order no matter how later image calls complete.
func (g *GuidePlanner) PlanSteps(ctx context.Context, info domain.SeedPacketInfo, stepCount int) ([]domain.GuideStep, error) {
	if stepCount <= 0 {
		stepCount = DefaultStepCount
	}
	raw, err := g.client.GenerateText(ctx, genai.TextRequest{
		System:     guideSystemPrompt,
		Prompt:     fmt.Sprintf(guidePromptTemplate, info.PlantName, stepCount),
		JSONOutput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("plan guide steps: %w", err)
	}

	var planned []plannedStep
	if err := genai.DecodeModelJSON(raw, &planned); err != nil {
		return nil, fmt.Errorf("plan guide steps: %w", err)
	}
	if len(planned) == 0 {
		return nil, fmt.Errorf("plan guide steps: model returned no steps")
	}

	steps := make([]domain.GuideStep, len(planned))
	for i, p := range planned {
		steps[i] = domain.GuideStep{
			Index:       i,
			Title:       strings.TrimSpace(p.Title),
			Description: strings.TrimSpace(p.Description),
			DayOffset:   p.DayOffset,
		}
	}
	return steps, nil
}

// StepImage renders the illustration for one step.
func (g *GuidePlanner) StepImage(ctx context.Context, info domain.SeedPacketInfo, step domain.GuideStep) (genai.ImageResult, error) {
	prompt := fmt.Sprintf(stepImagePromptTemplate, info.PlantName, step.Index+1, step.Title, step.Description)
	img, err := g.client.GenerateImage(ctx, genai.ImageRequest{Prompt: prompt})
	if err != nil {
		return genai.ImageResult{}, fmt.Errorf("step %d image: %w", step.Index+1, err)
	}
	return img, nil
}
