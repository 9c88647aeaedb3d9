package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultBaseURL     = "https://generativelanguage.googleapis.com/v1beta"
	defaultTextModel   = "gemini-2.5-flash"
	defaultImageModel  = "gemini-2.5-flash-image"
	defaultHTTPTimeout = 90 * time.Second

	defaultMaxAttempts = 5
	defaultBaseDelay   = 2 * time.Second
)

// Options controls how the model client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	TextModel  string
	ImageModel string
	HTTPClient *http.Client
	// Logger's zero value discards all client log output.
	Logger zerolog.Logger

	// MaxAttempts bounds the total number of attempts per call, including
	// the first one. Zero means the default of 5.
	MaxAttempts int
	// BaseDelay is the backoff unit; attempt n waits BaseDelay*2^n plus
	// jitter. Zero means the default of 2s.
	BaseDelay time.Duration
	// Jitter returns the random component added to each backoff delay.
	// Overridable for tests; defaults to uniform [0,1s).
	Jitter func() time.Duration
	// Sleep performs the retry waits. Overridable for tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Client talks to a Gemini-style generateContent API with exponential-backoff
// retries on rate limits, server errors and timeouts. Client errors (4xx
// other than 429) are terminal on the first attempt since retrying cannot fix
// a malformed request.
type Client struct {
	apiKey      string
	baseURL     string
	textModel   string
	imageModel  string
	httpClient  *http.Client
	logger      zerolog.Logger
	maxAttempts int
	baseDelay   time.Duration
	jitter      func() time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
}

// NewClient constructs a client with sane defaults. A nil HTTP client gets a
// reusable one with a generous timeout; model calls routinely take a minute.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	c := &Client{
		apiKey:      strings.TrimSpace(opts.APIKey),
		baseURL:     baseURL,
		textModel:   firstNonEmpty(opts.TextModel, defaultTextModel),
		imageModel:  firstNonEmpty(opts.ImageModel, defaultImageModel),
		httpClient:  httpClient,
		logger:      opts.Logger,
		maxAttempts: opts.MaxAttempts,
		baseDelay:   opts.BaseDelay,
		jitter:      opts.Jitter,
		sleep:       opts.Sleep,
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = defaultMaxAttempts
	}
	if c.baseDelay <= 0 {
		c.baseDelay = defaultBaseDelay
	}
	if c.jitter == nil {
		c.jitter = func() time.Duration {
			return time.Duration(rand.Int63n(int64(time.Second)))
		}
	}
	if c.sleep == nil {
		c.sleep = sleepContext
	}
	return c
}

// TextModel returns the configured text model identifier.
func (c *Client) TextModel() string { return c.textModel }

// TextRequest describes one structured text generation call.
type TextRequest struct {
	// Model overrides the configured text model for this call, e.g. the
	// long-running deep research model.
	Model string
	// System steers the model; optional.
	System string
	// Prompt is the user content.
	Prompt string
	// ImageData attaches an inline image (seed packet photo) when set.
	ImageData []byte
	ImageMIME string
	// JSONOutput requests an application/json response body.
	JSONOutput bool
	// UseSearch enables search grounding for the call.
	UseSearch bool
}

// ImageRequest describes one image generation call.
type ImageRequest struct {
	Model  string
	Prompt string
}

// ImageResult carries generated image bytes and their MIME type.
type ImageResult struct {
	Data []byte
	MIME string
}

// GenerateText performs a text call and returns the concatenated text parts
// of the first candidate.
func (c *Client) GenerateText(ctx context.Context, req TextRequest) (string, error) {
	model := firstNonEmpty(req.Model, c.textModel)
	resp, err := c.generateWithRetry(ctx, model, c.buildTextPayload(req))
	if err != nil {
		return "", err
	}
	text := resp.textContent()
	if text == "" {
		return "", fmt.Errorf("genai: model %s returned no text content", model)
	}
	return text, nil
}

// GenerateGrounded performs a search-grounded text call, returning both the
// text and any source URIs the model grounded on.
func (c *Client) GenerateGrounded(ctx context.Context, req TextRequest) (string, []string, error) {
	req.UseSearch = true
	model := firstNonEmpty(req.Model, c.textModel)
	resp, err := c.generateWithRetry(ctx, model, c.buildTextPayload(req))
	if err != nil {
		return "", nil, err
	}
	text := resp.textContent()
	if text == "" {
		return "", nil, fmt.Errorf("genai: model %s returned no text content", model)
	}
	return text, resp.sources(), nil
}

// GenerateImage performs an image call and returns the first inline image of
// the response.
func (c *Client) GenerateImage(ctx context.Context, req ImageRequest) (ImageResult, error) {
	model := firstNonEmpty(req.Model, c.imageModel)
	payload := generateContentRequest{
		Contents: []content{{
			Role:  "user",
			Parts: []part{{Text: req.Prompt}},
		}},
		GenerationConfig: &generationConfig{ResponseModalities: []string{"IMAGE"}},
	}
	resp, err := c.generateWithRetry(ctx, model, payload)
	if err != nil {
		return ImageResult{}, err
	}
	data, mime, ok := resp.inlineImage()
	if !ok {
		return ImageResult{}, fmt.Errorf("genai: model %s returned no image content", model)
	}
	return ImageResult{Data: data, MIME: mime}, nil
}

func (c *Client) buildTextPayload(req TextRequest) generateContentRequest {
	parts := make([]part, 0, 2)
	if len(req.ImageData) > 0 {
		parts = append(parts, part{InlineData: &inlineData{
			MimeType: firstNonEmpty(req.ImageMIME, "image/jpeg"),
			Data:     base64.StdEncoding.EncodeToString(req.ImageData),
		}})
	}
	parts = append(parts, part{Text: req.Prompt})

	payload := generateContentRequest{
		Contents: []content{{Role: "user", Parts: parts}},
	}
	if req.System != "" {
		payload.SystemInstruction = &content{Parts: []part{{Text: req.System}}}
	}
	if req.JSONOutput {
		payload.GenerationConfig = &generationConfig{ResponseMimeType: "application/json"}
	}
	if req.UseSearch {
		payload.Tools = []tool{{GoogleSearch: &googleSearchTool{}}}
	}
	return payload
}

// generateWithRetry drives the retry loop around single attempts. The loop is
// bounded by maxAttempts counting the first try; exhaustion reports the last
// classified failure.
func (c *Client) generateWithRetry(ctx context.Context, model string, payload generateContentRequest) (*generateContentResponse, error) {
	var lastErr *CallError
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		resp, callErr := c.invokeOnce(ctx, model, payload)
		if callErr == nil {
			return resp, nil
		}
		callErr.Attempts = attempt + 1
		lastErr = callErr

		c.logger.Warn().
			Str("model", model).
			Str("kind", string(callErr.Kind)).
			Int("status", callErr.StatusCode).
			Int("attempt", attempt+1).
			Int("max_attempts", c.maxAttempts).
			Msg("genai: attempt failed")

		if !callErr.Retryable() || attempt+1 >= c.maxAttempts {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		delay := callErr.RetryAfter
		if delay <= 0 {
			delay = c.baseDelay<<uint(attempt) + c.jitter()
		}
		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *Client) invokeOnce(ctx context.Context, model string, payload generateContentRequest) (*generateContentResponse, *CallError) {
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, url.PathEscape(model))
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &CallError{Kind: FailureClientError, Err: fmt.Errorf("marshal request: %w", err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &CallError{Kind: FailureClientError, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-goog-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		kind, retryable := classifyTransport(err)
		if !retryable {
			return nil, &CallError{Kind: FailureNetwork, Err: err}
		}
		return nil, &CallError{Kind: kind, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &CallError{Kind: FailureNetwork, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &CallError{
			Kind:       classifyStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Body:       apiErrorMessage(raw),
		}
	}

	var decoded generateContentResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, &CallError{Kind: FailureServerError, Err: fmt.Errorf("decode response: %w", err)}
	}
	return &decoded, nil
}

func apiErrorMessage(raw []byte) string {
	var apiErr struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Error.Message != "" {
		return apiErr.Error.Message
	}
	return Snippet(string(raw))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// Wire types for the generateContent API.

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts,omitempty"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type tool struct {
	GoogleSearch *googleSearchTool `json:"google_search,omitempty"`
}

type googleSearchTool struct{}

type generationConfig struct {
	ResponseMimeType   string   `json:"responseMimeType,omitempty"`
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type generateContentRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	Tools             []tool            `json:"tools,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type groundingChunk struct {
	Web struct {
		URI   string `json:"uri,omitempty"`
		Title string `json:"title,omitempty"`
	} `json:"web"`
}

type groundingMetadata struct {
	GroundingChunks []groundingChunk `json:"groundingChunks,omitempty"`
}

type responseCandidate struct {
	Content           content            `json:"content"`
	FinishReason      string             `json:"finishReason,omitempty"`
	GroundingMetadata *groundingMetadata `json:"groundingMetadata,omitempty"`
}

type generateContentResponse struct {
	Candidates []responseCandidate `json:"candidates"`
}

func (r *generateContentResponse) textContent() string {
	var b strings.Builder
	for _, cand := range r.Candidates {
		for _, p := range cand.Content.Parts {
			b.WriteString(p.Text)
		}
		if b.Len() > 0 {
			break
		}
	}
	return strings.TrimSpace(b.String())
}

func (r *generateContentResponse) inlineImage() ([]byte, string, bool) {
	for _, cand := range r.Candidates {
		for _, p := range cand.Content.Parts {
			if p.InlineData == nil || p.InlineData.Data == "" {
				continue
			}
			data, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
			if err != nil || len(data) == 0 {
				continue
			}
			return data, firstNonEmpty(p.InlineData.MimeType, "image/png"), true
		}
	}
	return nil, "", false
}

func (r *generateContentResponse) sources() []string {
	var out []string
	for _, cand := range r.Candidates {
		if cand.GroundingMetadata == nil {
			continue
		}
		for _, chunk := range cand.GroundingMetadata.GroundingChunks {
			if chunk.Web.URI != "" {
				out = append(out, chunk.Web.URI)
			}
		}
	}
	return out
}
