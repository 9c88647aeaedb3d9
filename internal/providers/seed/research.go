package seed

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"sproutling/internal/domain"
	"sproutling/internal/providers/genai"
)

// Researcher produces growing research for an analyzed seed packet. It
// supports two retrieval strategies: a slow deep-research model and a fast
// search-grounded call. The strategy is always caller-supplied.
type Researcher struct {
	client    *genai.Client
	deepModel string
}

// NewResearcher wraps the model client. deepModel may be empty, in which case
// deep mode runs on the default text model.
func NewResearcher(client *genai.Client, deepModel string) *Researcher {
	return &Researcher{client: client, deepModel: deepModel}
}

type researchPayload struct {
	Summary  string                   `json:"summary"`
	Sections []domain.ResearchSection `json:"sections"`
}

// Research runs the selected strategy and assembles the stage result.
func (r *Researcher) Research(ctx context.Context, info domain.SeedPacketInfo, mode domain.ResearchMode) (domain.ResearchResult, error) {
	prompt := fmt.Sprintf(researchPromptTemplate, info.PlantName, describePacket(info))

	var (
		raw     string
		sources []string
		err     error
	)
	switch mode {
	case domain.ResearchDeep:
		raw, err = r.client.GenerateText(ctx, genai.TextRequest{
			Model:      r.deepModel,
			System:     researchSystemPrompt,
			Prompt:     prompt,
			JSONOutput: true,
		})
	default:
		// Search grounding and forced-JSON output are mutually exclusive
		// on the API, so grounded responses go through the lenient decoder.
		raw, sources, err = r.client.GenerateGrounded(ctx, genai.TextRequest{
			System: researchSystemPrompt,
			Prompt: prompt,
		})
	}
	if err != nil {
		return domain.ResearchResult{}, fmt.Errorf("research %s: %w", info.PlantName, err)
	}

	result := domain.ResearchResult{Packet: info, Mode: mode, Sources: sources}
	var payload researchPayload
	if err := genai.DecodeModelJSON(raw, &payload); err != nil {
		result.Summary = genai.Summarize(raw)
		return result, nil
	}
	result.Summary = payload.Summary
	result.Sections = payload.Sections
	return result, nil
}

// Fallback builds the templated result substituted when every retry against
// the research provider is exhausted. Textual guidance is generic but usable;
// the record is flagged so the frontend can label it.
func (r *Researcher) Fallback(info domain.SeedPacketInfo, mode domain.ResearchMode) domain.ResearchResult {
	name := strings.TrimSpace(info.PlantName)
	if name == "" || name == "unknown plant" {
		name = "your plant"
	} else {
		name = cases.Title(language.English).String(name)
	}
	return domain.ResearchResult{
		Packet:   info,
		Mode:     mode,
		Fallback: true,
		Summary: fmt.Sprintf(
			"%s could not be researched right now. The packet itself is the best starting point: sow in %s, expect germination in about %s, and keep the soil evenly moist until sprouts appear.",
			name, orUnknown(info.SowingSeason, "the recommended season"), germinationEstimate(info)),
		Sections: []domain.ResearchSection{
			{Title: "Watering", Content: "Water when the top of the soil feels dry. Seedlings prefer consistently damp, never waterlogged, soil."},
			{Title: "Light", Content: "Most edible plants want six or more hours of light a day. Move seedlings toward the brightest spot available."},
			{Title: "Next steps", Content: "Retry the research later for advice specific to " + name + "."},
		},
	}
}

func describePacket(info domain.SeedPacketInfo) string {
	parts := make([]string, 0, 3)
	if info.Species != "" {
		parts = append(parts, info.Species)
	}
	if info.Variety != "" {
		parts = append(parts, "variety "+info.Variety)
	}
	if info.Notes != "" {
		parts = append(parts, info.Notes)
	}
	if len(parts) == 0 {
		return "no further packet details"
	}
	return strings.Join(parts, ", ")
}

func orUnknown(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func germinationEstimate(info domain.SeedPacketInfo) string {
	if info.DaysToGerminate > 0 {
		return fmt.Sprintf("%d days", info.DaysToGerminate)
	}
	return "one to three weeks"
}
