package seed

import (
	"context"
	"fmt"
	"strings"

	"sproutling/internal/domain"
	"sproutling/internal/providers/genai"
)

// Analyzer extracts structured seed-packet fields from a photograph.
type Analyzer struct {
	client *genai.Client
}

// NewAnalyzer wraps the model client.
func NewAnalyzer(client *genai.Client) *Analyzer {
	return &Analyzer{client: client}
}

// Analyze reads the packet photo. When the model answers but its JSON cannot
// be parsed, the raw text is preserved in the Notes field so downstream
// fallbacks still have something to work with.
func (a *Analyzer) Analyze(ctx context.Context, image []byte, mime string) (domain.SeedPacketInfo, error) {
	raw, err := a.client.GenerateText(ctx, genai.TextRequest{
		System:     analyzeSystemPrompt,
		Prompt:     analyzePrompt,
		ImageData:  image,
		ImageMIME:  mime,
		JSONOutput: true,
	})
	if err != nil {
		return domain.SeedPacketInfo{}, fmt.Errorf("analyze seed packet: %w", err)
	}

	var info domain.SeedPacketInfo
	if err := genai.DecodeModelJSON(raw, &info); err != nil {
		return domain.SeedPacketInfo{
			PlantName: "unknown plant",
			Notes:     genai.Summarize(raw),
		}, nil
	}
	if strings.TrimSpace(info.PlantName) == "" {
		info.PlantName = "unknown plant"
	}
	return info, nil
}
