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

// CharacterGenerator invents the mascot character for an analyzed packet.
type CharacterGenerator struct {
	client *genai.Client
}

// NewCharacterGenerator wraps the model client.
func NewCharacterGenerator(client *genai.Client) *CharacterGenerator {
	return &CharacterGenerator{client: client}
}

// Profile generates the textual character profile.
func (c *CharacterGenerator) Profile(ctx context.Context, info domain.SeedPacketInfo) (domain.CharacterProfile, error) {
	raw, err := c.client.GenerateText(ctx, genai.TextRequest{
		System:     characterSystemPrompt,
		Prompt:     fmt.Sprintf(characterPromptTemplate, info.PlantName),
		JSONOutput: true,
	})
	if err != nil {
		return domain.CharacterProfile{}, fmt.Errorf("generate character: %w", err)
	}

	var profile domain.CharacterProfile
	if err := genai.DecodeModelJSON(raw, &profile); err != nil {
		return domain.CharacterProfile{}, fmt.Errorf("generate character: %w", err)
	}
	if strings.TrimSpace(profile.Name) == "" {
		profile.Name = cases.Title(language.English).String(info.PlantName)
	}
	if profile.Species == "" {
		profile.Species = info.PlantName
	}
	return profile, nil
}

// Portrait renders the mascot portrait image.
func (c *CharacterGenerator) Portrait(ctx context.Context, profile domain.CharacterProfile) (genai.ImageResult, error) {
	prompt := fmt.Sprintf(portraitPromptTemplate, profile.Name, profile.Species, profile.Personality)
	img, err := c.client.GenerateImage(ctx, genai.ImageRequest{Prompt: prompt})
	if err != nil {
		return genai.ImageResult{}, fmt.Errorf("character portrait: %w", err)
	}
	return img, nil
}
