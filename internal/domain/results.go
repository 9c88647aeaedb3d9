package domain

// SeedPacketInfo is the structured reading extracted from a photographed seed
// packet. It seeds every downstream stage.
type SeedPacketInfo struct {
	PlantName       string  `json:"plant_name"`
	Species         string  `json:"species,omitempty"`
	Variety         string  `json:"variety,omitempty"`
	SowingSeason    string  `json:"sowing_season,omitempty"`
	DaysToGerminate int     `json:"days_to_germinate,omitempty"`
	Notes           string  `json:"notes,omitempty"`
	Confidence      float64 `json:"confidence,omitempty"`
}

// ResearchMode selects the external retrieval strategy for the research stage.
type ResearchMode string

const (
	// ResearchDeep is the long-running strategy, expected to take tens of
	// minutes on the provider side.
	ResearchDeep ResearchMode = "deep"
	// ResearchGrounded is the fast search-grounded strategy, around a minute.
	ResearchGrounded ResearchMode = "grounded"
	// ResearchSkip omits the research child of a unified job entirely.
	ResearchSkip ResearchMode = "skip"
)

// ParseResearchMode normalizes a caller-supplied mode, defaulting to grounded.
func ParseResearchMode(raw string) ResearchMode {
	switch ResearchMode(raw) {
	case ResearchDeep, ResearchGrounded, ResearchSkip:
		return ResearchMode(raw)
	default:
		return ResearchGrounded
	}
}

// ResearchSection is one titled block of research findings.
type ResearchSection struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// ResearchResult is the terminal payload of a research job.
type ResearchResult struct {
	Packet   SeedPacketInfo    `json:"packet"`
	Mode     ResearchMode      `json:"mode"`
	Summary  string            `json:"summary"`
	Sections []ResearchSection `json:"sections,omitempty"`
	Sources  []string          `json:"sources,omitempty"`
	Fallback bool              `json:"fallback,omitempty"`
}

// GuideStep is one entry of the growing timeline. Order is significant: step
// one is sown before step two sprouts. ImageKey references object storage;
// ImageError marks a best-effort illustration that could not be generated
// without failing the step.
type GuideStep struct {
	Index       int    `json:"index"`
	Title       string `json:"title"`
	Description string `json:"description"`
	DayOffset   int    `json:"day_offset,omitempty"`
	ImageKey    string `json:"image_key,omitempty"`
	ImageError  string `json:"image_error,omitempty"`
}

// GuideResult is the terminal payload of a guide job.
type GuideResult struct {
	Packet SeedPacketInfo `json:"packet"`
	Steps  []GuideStep    `json:"steps"`
}

// CharacterProfile is the terminal payload of a character job: a mascot
// derived from the seed packet, plus an optional stored portrait.
type CharacterProfile struct {
	Name        string `json:"name"`
	Species     string `json:"species,omitempty"`
	Personality string `json:"personality"`
	Greeting    string `json:"greeting,omitempty"`
	Backstory   string `json:"backstory,omitempty"`
	PortraitKey string `json:"portrait_key,omitempty"`
}
