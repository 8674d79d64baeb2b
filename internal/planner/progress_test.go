package planner

import (
	"context"
	"errors"
	"testing"

	"github.com/orbitplan/orbit/internal/models"
	"github.com/orbitplan/orbit/internal/store"
)

func TestSetStepCompletionRoundTrip(t *testing.T) {
	st := store.NewInMemoryStore()
	gen := &stubGenerator{content: sampleContent(8)}
	p := New(st, gen)
	user, plan := seedPlan(t, st)
	ctx := context.Background()

	if _, err := p.Generate(ctx, plan.ID, user.ID); err != nil {
		t.Fatalf("generation failed: %v", err)
	}

	if err := p.SetStepCompletion(ctx, user.ID, plan.ID, 3, true); err != nil {
		t.Fatalf("failed to mark step: %v", err)
	}
	report, err := p.Progress(ctx, user.ID, plan.ID)
	if err != nil {
		t.Fatalf("failed to read progress: %v", err)
	}
	if report.Completed != 1 || report.Total != 8 {
		t.Errorf("expected 1/8, got %d/%d", report.Completed, report.Total)
	}

	if err := p.SetStepCompletion(ctx, user.ID, plan.ID, 3, false); err != nil {
		t.Fatalf("failed to clear step: %v", err)
	}
	report, err = p.Progress(ctx, user.ID, plan.ID)
	if err != nil {
		t.Fatalf("failed to read progress: %v", err)
	}
	if report.Completed != 0 || report.Total != 8 {
		t.Errorf("expected 0/8 after clearing, got %d/%d", report.Completed, report.Total)
	}
	if report.Fraction != 0 {
		t.Errorf("expected fraction 0, got %f", report.Fraction)
	}
}

func TestSetStepCompletionIdempotent(t *testing.T) {
	st := store.NewInMemoryStore()
	p := New(st, &stubGenerator{content: sampleContent(4)})
	user, plan := seedPlan(t, st)
	ctx := context.Background()

	if _, err := p.Generate(ctx, plan.ID, user.ID); err != nil {
		t.Fatalf("generation failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := p.SetStepCompletion(ctx, user.ID, plan.ID, 1, true); err != nil {
			t.Fatalf("repeat %d failed: %v", i, err)
		}
	}
	report, err := p.Progress(ctx, user.ID, plan.ID)
	if err != nil {
		t.Fatalf("failed to read progress: %v", err)
	}
	if report.Completed != 1 {
		t.Errorf("repeated completion counted more than once: %d", report.Completed)
	}

	// Clearing an already-clear step is a no-op, not an error.
	if err := p.SetStepCompletion(ctx, user.ID, plan.ID, 2, false); err != nil {
		t.Errorf("clearing an unmarked step failed: %v", err)
	}
}

func TestSetStepCompletionValidation(t *testing.T) {
	st := store.NewInMemoryStore()
	p := New(st, nil)
	user, plan := seedPlan(t, st)
	ctx := context.Background()

	if err := p.SetStepCompletion(ctx, user.ID, plan.ID, -1, true); !errors.Is(err, models.ErrInvalidStepIndex) {
		t.Errorf("expected ErrInvalidStepIndex, got %v", err)
	}
	if err := p.SetStepCompletion(ctx, user.ID, "no-such-plan", 0, true); !errors.Is(err, models.ErrPlanNotFound) {
		t.Errorf("expected ErrPlanNotFound, got %v", err)
	}

	other, err := st.GetOrCreateUser("auth-2", "other@example.com", "")
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	if err := p.SetStepCompletion(ctx, other.ID, plan.ID, 0, true); !errors.Is(err, models.ErrPlanNotFound) {
		t.Errorf("expected ErrPlanNotFound for another user's plan, got %v", err)
	}
}

func TestProgressIgnoresIndicesPastProjection(t *testing.T) {
	st := store.NewInMemoryStore()
	p := New(st, &stubGenerator{content: sampleContent(2)})
	user, plan := seedPlan(t, st)
	ctx := context.Background()

	if _, err := p.Generate(ctx, plan.ID, user.ID); err != nil {
		t.Fatalf("generation failed: %v", err)
	}
	// A marker beyond the current projection stays stored but is not reported.
	if err := p.SetStepCompletion(ctx, user.ID, plan.ID, 7, true); err != nil {
		t.Fatalf("failed to mark step: %v", err)
	}
	if err := p.SetStepCompletion(ctx, user.ID, plan.ID, 0, true); err != nil {
		t.Fatalf("failed to mark step: %v", err)
	}

	report, err := p.Progress(ctx, user.ID, plan.ID)
	if err != nil {
		t.Fatalf("failed to read progress: %v", err)
	}
	if report.Total != 2 {
		t.Errorf("expected total 2, got %d", report.Total)
	}
	if report.Completed != 1 {
		t.Errorf("expected only in-range completions counted, got %d", report.Completed)
	}
	if len(report.Indices) != 1 || report.Indices[0] != 0 {
		t.Errorf("expected only in-range indices reported, got %v", report.Indices)
	}
	if len(report.Indices) != report.Completed {
		t.Errorf("indices and completed disagree: %v vs %d", report.Indices, report.Completed)
	}

	// The out-of-range marker is still in the store, just not reported.
	stored, err := st.CompletedStepIndices(plan.ID)
	if err != nil {
		t.Fatalf("failed to read stored indices: %v", err)
	}
	if len(stored) != 2 {
		t.Errorf("expected 2 stored markers, got %v", stored)
	}
}

func TestProgressWithoutOutput(t *testing.T) {
	st := store.NewInMemoryStore()
	p := New(st, nil)
	user, plan := seedPlan(t, st)

	report, err := p.Progress(context.Background(), user.ID, plan.ID)
	if err != nil {
		t.Fatalf("failed to read progress: %v", err)
	}
	if report.Total != 0 || report.Completed != 0 || report.Fraction != 0 {
		t.Errorf("expected empty report for a draft plan, got %+v", report)
	}
}
