package stage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"sproutling/internal/domain"
	"sproutling/internal/providers/genai"
	"sproutling/internal/storage"
	"sproutling/internal/store"
)

type fakeAnalyzer struct {
	info domain.SeedPacketInfo
	err  error
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, image []byte, mime string) (domain.SeedPacketInfo, error) {
	return f.info, f.err
}

type fakePlanner struct {
	gate    chan struct{}
	steps   []domain.GuideStep
	planErr error
	image   func(step domain.GuideStep) (genai.ImageResult, error)
}

func (f *fakePlanner) PlanSteps(ctx context.Context, info domain.SeedPacketInfo, stepCount int) ([]domain.GuideStep, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.planErr != nil {
		return nil, f.planErr
	}
	out := make([]domain.GuideStep, len(f.steps))
	copy(out, f.steps)
	return out, nil
}

func (f *fakePlanner) StepImage(ctx context.Context, info domain.SeedPacketInfo, step domain.GuideStep) (genai.ImageResult, error) {
	if f.image != nil {
		return f.image(step)
	}
	return genai.ImageResult{Data: []byte("png"), MIME: "image/png"}, nil
}

func plannedSteps(n int) []domain.GuideStep {
	steps := make([]domain.GuideStep, n)
	for i := range steps {
		steps[i] = domain.GuideStep{
			Index:       i,
			Title:       fmt.Sprintf("Step %d", i+1),
			Description: "do the thing",
			DayOffset:   i * 7,
		}
	}
	return steps
}

func newGuideFixture(t *testing.T, planner *fakePlanner) (*GuideProcessor, *store.Jobs) {
	t.Helper()
	jobs := store.NewJobs(store.NewMemory(), zerolog.New(io.Discard))
	images, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	analyzer := &fakeAnalyzer{info: domain.SeedPacketInfo{PlantName: "basil"}}
	return NewGuideProcessor(jobs, analyzer, planner, images, zerolog.New(io.Discard)), jobs
}

// Images may finish in any order; the stored steps must stay in generation
// order with each image bound to its originating index. The fake forces
// strictly reverse completion: step i's image waits for step i+1 to finish.
func TestGuideStepsKeepGenerationOrderUnderReverseCompletion(t *testing.T) {
	const n = 3
	done := make([]chan struct{}, n)
	for i := range done {
		done[i] = make(chan struct{})
	}
	var mu sync.Mutex
	var completionOrder []int

	planner := &fakePlanner{
		steps: plannedSteps(n),
		image: func(step domain.GuideStep) (genai.ImageResult, error) {
			if step.Index < n-1 {
				<-done[step.Index+1]
			}
			mu.Lock()
			completionOrder = append(completionOrder, step.Index)
			mu.Unlock()
			close(done[step.Index])
			return genai.ImageResult{Data: []byte("png"), MIME: "image/png"}, nil
		},
	}
	p, jobs := newGuideFixture(t, planner)

	ctx := context.Background()
	job := jobs.CreateJob(ctx, domain.StageGuide)
	if err := p.Process(ctx, job.ID, []byte("img"), "image/jpeg", true); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	if want := []int{2, 1, 0}; fmt.Sprint(completionOrder) != fmt.Sprint(want) {
		t.Fatalf("completion order = %v, want %v", completionOrder, want)
	}

	got, ok := jobs.GetJob(ctx, domain.StageGuide, job.ID)
	if !ok {
		t.Fatal("job not found")
	}
	if got.Status != domain.StatusCompleted {
		t.Fatalf("status = %q, want COMPLETED", got.Status)
	}
	var result domain.GuideResult
	if err := genai.DecodeModelJSON(string(got.Result), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	for i, step := range result.Steps {
		if step.Index != i {
			t.Fatalf("step %d has index %d; order not preserved", i, step.Index)
		}
		want := fmt.Sprintf("guides/%s/step-%02d.png", job.ID, i+1)
		if step.ImageKey != want {
			t.Fatalf("step %d image key = %q, want %q", i, step.ImageKey, want)
		}
	}
}

// One failed step image must not fail the job: the step keeps its text and
// records the error, siblings are untouched.
func TestGuideToleratesSingleStepImageFailure(t *testing.T) {
	planner := &fakePlanner{
		steps: plannedSteps(5),
		image: func(step domain.GuideStep) (genai.ImageResult, error) {
			if step.Index == 2 {
				return genai.ImageResult{}, &genai.CallError{Kind: genai.FailureRateLimited, Attempts: 5}
			}
			return genai.ImageResult{Data: []byte("png"), MIME: "image/png"}, nil
		},
	}
	p, jobs := newGuideFixture(t, planner)

	ctx := context.Background()
	job := jobs.CreateJob(ctx, domain.StageGuide)
	if err := p.Process(ctx, job.ID, []byte("img"), "image/jpeg", true); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	got, _ := jobs.GetJob(ctx, domain.StageGuide, job.ID)
	if got.Status != domain.StatusCompleted {
		t.Fatalf("status = %q, want COMPLETED despite image failure", got.Status)
	}
	var result domain.GuideResult
	if err := genai.DecodeModelJSON(string(got.Result), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if len(result.Steps) != 5 {
		t.Fatalf("steps = %d, want 5", len(result.Steps))
	}
	for i, step := range result.Steps {
		if step.Title == "" {
			t.Fatalf("step %d lost its text", i)
		}
		if i == 2 {
			if step.ImageError == "" || step.ImageKey != "" {
				t.Fatalf("step 3 = %+v, want image error and no key", step)
			}
			continue
		}
		if step.ImageError != "" || step.ImageKey == "" {
			t.Fatalf("step %d = %+v, want stored image", i, step)
		}
	}
}

func TestGuideFailsWhenPlanningFails(t *testing.T) {
	planner := &fakePlanner{planErr: errors.New("no steps")}
	p, jobs := newGuideFixture(t, planner)

	ctx := context.Background()
	job := jobs.CreateJob(ctx, domain.StageGuide)
	if err := p.Process(ctx, job.ID, []byte("img"), "image/jpeg", true); err == nil {
		t.Fatal("expected error from failed planning")
	}
}

func TestGuideSkipsImagesWhenDisabled(t *testing.T) {
	var calls int
	planner := &fakePlanner{
		steps: plannedSteps(2),
		image: func(step domain.GuideStep) (genai.ImageResult, error) {
			calls++
			return genai.ImageResult{Data: []byte("png")}, nil
		},
	}
	p, jobs := newGuideFixture(t, planner)

	ctx := context.Background()
	job := jobs.CreateJob(ctx, domain.StageGuide)
	if err := p.Process(ctx, job.ID, []byte("img"), "image/jpeg", false); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if calls != 0 {
		t.Fatalf("image calls = %d, want 0", calls)
	}
	got, _ := jobs.GetJob(ctx, domain.StageGuide, job.ID)
	if got.Status != domain.StatusCompleted {
		t.Fatalf("status = %q, want COMPLETED", got.Status)
	}
}
