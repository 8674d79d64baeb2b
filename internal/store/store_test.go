package store

import (
	"errors"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/orbitplan/orbit/internal/models"
)

func TestInMemoryStoreUsers(t *testing.T) {
	s := NewInMemoryStore()

	u1, err := s.GetOrCreateUser("auth-1", "a@example.com", "A")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	u2, err := s.GetOrCreateUser("auth-1", "a@example.com", "A")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u1.ID != u2.ID {
		t.Error("GetOrCreateUser created a duplicate for the same auth id")
	}
	if u1.Tier != models.TierFree {
		t.Errorf("new users must start on free, got %q", u1.Tier)
	}

	if _, err := s.GetUser("missing"); !errors.Is(err, models.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}

	if err := s.SetStripeCustomerID(u1.ID, "cus_123"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	byCustomer, err := s.GetUserByStripeCustomerID("cus_123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if byCustomer.ID != u1.ID {
		t.Error("customer id lookup returned the wrong user")
	}

	if err := s.ApplyCheckoutSession(u1.ID, "cus_123", "sub_456"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	periodEnd := time.Now().UTC().Add(30 * 24 * time.Hour)
	if err := s.UpdateSubscription("cus_123", "sub_456", "active", &periodEnd, models.TierPro); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	upgraded, _ := s.GetUser(u1.ID)
	if upgraded.Tier != models.TierPro || upgraded.StripeSubscriptionID != "sub_456" {
		t.Errorf("subscription not applied: %+v", upgraded)
	}
}

func TestInMemoryStoreGenerationUsage(t *testing.T) {
	s := NewInMemoryStore()
	u, err := s.GetOrCreateUser("auth-1", "a@example.com", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	period := time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		if err := s.RecordGeneration(u.ID, period); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	used, err := s.GenerationUsage(u.ID, period)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if used != 3 {
		t.Errorf("expected 3 generations used, got %d", used)
	}

	// A new month starts the count over.
	nextPeriod := period.AddDate(0, 1, 0)
	used, err = s.GenerationUsage(u.ID, nextPeriod)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if used != 0 {
		t.Errorf("expected usage reset in a new period, got %d", used)
	}
	if err := s.RecordGeneration(u.ID, nextPeriod); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	used, _ = s.GenerationUsage(u.ID, nextPeriod)
	if used != 1 {
		t.Errorf("expected 1 after reset, got %d", used)
	}
}

func TestInMemoryStorePlans(t *testing.T) {
	s := NewInMemoryStore()
	u, _ := s.GetOrCreateUser("auth-1", "a@example.com", "")
	other, _ := s.GetOrCreateUser("auth-2", "b@example.com", "")

	older := &models.Plan{
		UserID: u.ID, Title: "Old", GoalInput: "old goal",
		TimeframeWeeks: 4, Intensity: models.IntensitySteady,
		Status: models.PlanStatusDraft, CreatedAt: time.Now().UTC().Add(-time.Hour),
	}
	newer := &models.Plan{
		UserID: u.ID, Title: "New", GoalInput: "new goal",
		TimeframeWeeks: 8, Intensity: models.IntensityGentle,
		Status: models.PlanStatusDraft, CreatedAt: time.Now().UTC(),
	}
	for _, p := range []*models.Plan{older, newer} {
		if err := s.CreatePlan(p); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.ID == "" {
			t.Fatal("CreatePlan did not assign an id")
		}
	}

	plans, err := s.ListPlans(u.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plans) != 2 || plans[0].ID != newer.ID {
		t.Errorf("expected newest-first listing, got %+v", plans)
	}
	count, _ := s.CountPlans(u.ID)
	if count != 2 {
		t.Errorf("expected 2 plans, got %d", count)
	}

	if _, err := s.GetPlanForUser(older.ID, other.ID); !errors.Is(err, models.ErrPlanNotFound) {
		t.Errorf("expected ErrPlanNotFound for another user's plan, got %v", err)
	}

	in := models.PlanInput{Title: "Renamed", GoalInput: "new goal v2", TimeframeWeeks: 6, Intensity: models.IntensityIntense}
	if err := s.UpdatePlanDetails(older.ID, in); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	updated, _ := s.GetPlanForUser(older.ID, u.ID)
	if updated.Title != "Renamed" || updated.TimeframeWeeks != 6 {
		t.Errorf("details not updated: %+v", updated)
	}

	if err := s.UpdatePlanStatus(older.ID, models.PlanStatusGenerating); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	output := &models.GeneratedPlan{StartingSteps: []string{"go"}}
	if err := s.SavePlanOutput(older.ID, output); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ready, _ := s.GetPlanForUser(older.ID, u.ID)
	if ready.Status != models.PlanStatusReady || ready.Output == nil {
		t.Error("SavePlanOutput must set status and output together")
	}

	if err := s.UpdatePlanStatus("missing", models.PlanStatusError); !errors.Is(err, models.ErrPlanNotFound) {
		t.Errorf("expected ErrPlanNotFound, got %v", err)
	}
}

func TestInMemoryStoreStepProgress(t *testing.T) {
	s := NewInMemoryStore()
	now := time.Now().UTC()

	for _, idx := range []int{4, 0, 2} {
		if err := s.UpsertStepProgress("plan-1", idx, now); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	// Upsert of an existing index must not duplicate it.
	if err := s.UpsertStepProgress("plan-1", 2, now.Add(time.Minute)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	indices, err := s.CompletedStepIndices("plan-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(indices) != 3 || indices[0] != 0 || indices[1] != 2 || indices[2] != 4 {
		t.Errorf("expected sorted indices [0 2 4], got %v", indices)
	}

	if err := s.DeleteStepProgress("plan-1", 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.DeleteStepProgress("plan-1", 99); err != nil {
		t.Errorf("deleting an absent row must be a no-op, got %v", err)
	}
	indices, _ = s.CompletedStepIndices("plan-1")
	if len(indices) != 2 {
		t.Errorf("expected 2 indices after delete, got %v", indices)
	}
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orbit.db")
	s, err := NewSQLiteStore(WithSQLiteDSN(path))
	if err != nil {
		t.Fatalf("failed to open sqlite store: %v", err)
	}
	defer s.Close()

	u, err := s.GetOrCreateUser("auth-1", "a@example.com", "A")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	again, err := s.GetOrCreateUser("auth-1", "ignored@example.com", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again.ID != u.ID {
		t.Error("GetOrCreateUser created a duplicate for the same auth id")
	}

	plan := &models.Plan{
		UserID: u.ID, Title: "Run", GoalInput: "run a 10k",
		TimeframeWeeks: 8, Intensity: models.IntensitySteady, Status: models.PlanStatusDraft,
	}
	if err := s.CreatePlan(plan); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := &models.GeneratedPlan{
		Summary:      "sample",
		WeeklyRhythm: []models.WeeklyRhythm{{Week: 1, Focus: "start", Actions: []string{"go"}}},
	}
	if err := s.SavePlanOutput(plan.ID, output); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := s.GetPlanForUser(plan.ID, u.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != models.PlanStatusReady {
		t.Errorf("expected status ready, got %q", got.Status)
	}
	if got.Output == nil || len(got.Output.WeeklyRhythm) != 1 || got.Output.WeeklyRhythm[0].Focus != "start" {
		t.Errorf("output did not round-trip: %+v", got.Output)
	}

	if err := s.UpsertStepProgress(plan.ID, 0, time.Now().UTC()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	indices, err := s.CompletedStepIndices(plan.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(indices) != 1 || indices[0] != 0 {
		t.Errorf("expected [0], got %v", indices)
	}
}

func TestPostgresStore(t *testing.T) {
	// Requires a running PostgreSQL instance; set DATABASE_URL to run.
	connStr := getenvOrSkip(t, "DATABASE_URL")
	s, err := NewPostgresStore(WithPostgresDSN(connStr))
	if err != nil {
		t.Skipf("Postgres not available: %v", err)
	}
	defer s.Close()

	u, err := s.GetOrCreateUser("auth-pg-1", "pg@example.com", "PG")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	plan := &models.Plan{
		UserID: u.ID, Title: "PG", GoalInput: "pg goal",
		TimeframeWeeks: 4, Intensity: models.IntensitySteady, Status: models.PlanStatusDraft,
	}
	if err := s.CreatePlan(plan); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := s.GetPlanForUser(plan.ID, u.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.GoalInput != "pg goal" {
		t.Errorf("plan did not round-trip: %+v", got)
	}
}

func getenvOrSkip(t *testing.T, key string) string {
	v := ""
	if val, ok := syscall.Getenv(key); ok {
		v = val
	}
	if v == "" {
		t.Skipf("env %s not set", key)
	}
	return v
}
