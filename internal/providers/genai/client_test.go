package genai

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "deadline exceeded" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func newTestClient(serverURL string, attempts int, delays *[]time.Duration) *Client {
	return NewClient(Options{
		APIKey:      "test-key",
		BaseURL:     serverURL,
		MaxAttempts: attempts,
		BaseDelay:   2 * time.Millisecond,
		Jitter:      func() time.Duration { return time.Millisecond },
		Sleep: func(ctx context.Context, d time.Duration) error {
			if delays != nil {
				*delays = append(*delays, d)
			}
			return nil
		},
	})
}

func TestRateLimitedExhaustsExactRetryBudget(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 5, nil)
	_, err := client.GenerateText(context.Background(), TextRequest{Prompt: "hi"})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if got := attempts.Load(); got != 5 {
		t.Fatalf("attempts = %d, want 5", got)
	}
	var callErr *CallError
	if !errors.As(err, &callErr) {
		t.Fatalf("error type = %T, want *CallError", err)
	}
	if callErr.Kind != FailureRateLimited {
		t.Fatalf("kind = %q, want %q", callErr.Kind, FailureRateLimited)
	}
	if callErr.Attempts != 5 {
		t.Fatalf("recorded attempts = %d, want 5", callErr.Attempts)
	}
}

func TestClientErrorFailsWithoutRetry(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad payload"}}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 5, nil)
	_, err := client.GenerateText(context.Background(), TextRequest{Prompt: "hi"})
	if err == nil {
		t.Fatal("expected error")
	}
	if got := attempts.Load(); got != 1 {
		t.Fatalf("attempts = %d, want 1", got)
	}
	if !IsClientError(err) {
		t.Fatalf("IsClientError(%v) = false, want true", err)
	}
	var callErr *CallError
	if errors.As(err, &callErr) && callErr.Body != "bad payload" {
		t.Fatalf("body = %q, want api error message", callErr.Body)
	}
}

func TestServerErrorRecoversWithinBudget(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"sprout"}]}}]}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 5, nil)
	text, err := client.GenerateText(context.Background(), TextRequest{Prompt: "hi"})
	if err != nil {
		t.Fatalf("GenerateText returned error: %v", err)
	}
	if text != "sprout" {
		t.Fatalf("text = %q, want %q", text, "sprout")
	}
	if got := attempts.Load(); got != 3 {
		t.Fatalf("attempts = %d, want 3", got)
	}
}

func TestBackoffGrowsExponentiallyWithJitter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	var delays []time.Duration
	client := newTestClient(srv.URL, 4, &delays)
	_, err := client.GenerateText(context.Background(), TextRequest{Prompt: "hi"})
	if err == nil {
		t.Fatal("expected error")
	}
	// 4 attempts mean 3 waits: base*1, base*2, base*4, each plus jitter.
	want := []time.Duration{
		2*time.Millisecond + time.Millisecond,
		4*time.Millisecond + time.Millisecond,
		8*time.Millisecond + time.Millisecond,
	}
	if len(delays) != len(want) {
		t.Fatalf("delays = %v, want %d entries", delays, len(want))
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Fatalf("delay[%d] = %v, want %v", i, delays[i], want[i])
		}
	}
}

func TestRetryAfterHeaderOverridesBackoff(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.Header().Set("Retry-After", "3")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`))
	}))
	defer srv.Close()

	var delays []time.Duration
	client := newTestClient(srv.URL, 3, &delays)
	if _, err := client.GenerateText(context.Background(), TextRequest{Prompt: "hi"}); err != nil {
		t.Fatalf("GenerateText returned error: %v", err)
	}
	if len(delays) != 1 || delays[0] != 3*time.Second {
		t.Fatalf("delays = %v, want [3s]", delays)
	}
}

func TestTimeoutIsRetried(t *testing.T) {
	var attempts atomic.Int32
	client := NewClient(Options{
		APIKey:      "k",
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		Jitter:      func() time.Duration { return 0 },
		Sleep:       func(ctx context.Context, d time.Duration) error { return nil },
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			attempts.Add(1)
			return nil, timeoutErr{}
		})},
	})
	_, err := client.GenerateText(context.Background(), TextRequest{Prompt: "hi"})
	if err == nil {
		t.Fatal("expected error")
	}
	if got := attempts.Load(); got != 3 {
		t.Fatalf("attempts = %d, want 3", got)
	}
	var callErr *CallError
	if !errors.As(err, &callErr) {
		t.Fatalf("error type = %T, want *CallError", err)
	}
	if callErr.Kind != FailureTimeout {
		t.Fatalf("kind = %q, want %q", callErr.Kind, FailureTimeout)
	}
}

func TestGenerateImageDecodesInlineData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// "aGVsbG8=" is base64 for "hello".
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"inlineData":{"mimeType":"image/png","data":"aGVsbG8="}}]}}]}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 2, nil)
	img, err := client.GenerateImage(context.Background(), ImageRequest{Prompt: "a basil sprout"})
	if err != nil {
		t.Fatalf("GenerateImage returned error: %v", err)
	}
	if string(img.Data) != "hello" {
		t.Fatalf("data = %q", img.Data)
	}
	if img.MIME != "image/png" {
		t.Fatalf("mime = %q", img.MIME)
	}
}

func TestGenerateGroundedCollectsSources(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"basil facts"}]},"groundingMetadata":{"groundingChunks":[{"web":{"uri":"https://example.com/basil"}}]}}]}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 2, nil)
	text, sources, err := client.GenerateGrounded(context.Background(), TextRequest{Prompt: "basil"})
	if err != nil {
		t.Fatalf("GenerateGrounded returned error: %v", err)
	}
	if text != "basil facts" {
		t.Fatalf("text = %q", text)
	}
	if len(sources) != 1 || sources[0] != "https://example.com/basil" {
		t.Fatalf("sources = %v", sources)
	}
}

// The composition root hands the client the process logger by value. The
// client must accept it, route retry warnings through it, and treat the zero
// value as a discard logger.
func TestClientAcceptsValueLogger(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"sprout"}]}}]}`))
	}))
	defer srv.Close()

	var logs bytes.Buffer
	client := NewClient(Options{
		APIKey:      "test-key",
		BaseURL:     srv.URL,
		Logger:      zerolog.New(&logs),
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		Jitter:      func() time.Duration { return 0 },
		Sleep:       func(ctx context.Context, d time.Duration) error { return nil },
	})
	text, err := client.GenerateText(context.Background(), TextRequest{Prompt: "hi"})
	if err != nil {
		t.Fatalf("GenerateText returned error: %v", err)
	}
	if text != "sprout" {
		t.Fatalf("text = %q", text)
	}
	if !strings.Contains(logs.String(), "attempt failed") {
		t.Fatalf("retry warning missing from configured logger: %q", logs.String())
	}

	zero := NewClient(Options{APIKey: "test-key", BaseURL: srv.URL, MaxAttempts: 1})
	if _, err := zero.GenerateText(context.Background(), TextRequest{Prompt: "hi"}); err != nil {
		t.Fatalf("zero-logger client returned error: %v", err)
	}
}
