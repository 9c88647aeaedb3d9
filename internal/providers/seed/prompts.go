package seed

const analyzeSystemPrompt = `You are a horticultural assistant. You read photographs of seed packets
and extract the printed facts. Respond with JSON only.`

const analyzePrompt = `Extract the following fields from this seed packet photo as JSON:
{"plant_name": string, "species": string, "variety": string,
 "sowing_season": string, "days_to_germinate": number,
 "notes": string, "confidence": number between 0 and 1}.
Use empty strings for anything not printed on the packet.`

const researchSystemPrompt = `You are a gardening researcher. Produce practical, accurate growing
advice for home gardeners. Respond with JSON only.`

const researchPromptTemplate = `Research how to grow %s (%s). Cover soil, watering, light,
common pests and harvest timing. Respond as JSON:
{"summary": string, "sections": [{"title": string, "content": string}]}.`

const guideSystemPrompt = `You are a gardening coach writing a step-by-step growing guide.
Steps form a timeline: sowing first, harvest last. Respond with JSON only.`

const guidePromptTemplate = `Write a growing guide for %s with exactly %d ordered steps as a JSON array:
[{"title": string, "description": string, "day_offset": number}].
day_offset is days since sowing and must be non-decreasing across steps.`

const stepImagePromptTemplate = `A warm, friendly illustration for a home-gardening guide.
Plant: %s. Step %d of the timeline: %s. %s
Flat colors, no text in the image.`

const characterSystemPrompt = `You invent a small friendly mascot character for a gardening app,
derived from a plant. Respond with JSON only.`

const characterPromptTemplate = `Invent a mascot for the plant %s. Respond as JSON:
{"name": string, "species": string, "personality": string,
 "greeting": string, "backstory": string}.
Keep the greeting a single short sentence addressed to the gardener.`

const portraitPromptTemplate = `A cute mascot character portrait for a gardening app.
Character: %s, a personified %s. Personality: %s.
Sticker style, plain background, no text.`
