// Package planner implements the plan generation workflow: building the
// prompt from a stored plan, invoking the generation service, validating the
// returned document, projecting it into displayable steps, and tracking step
// completion.
package planner

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/orbitplan/orbit/internal/entitlements"
	"github.com/orbitplan/orbit/internal/models"
	"github.com/orbitplan/orbit/internal/store"
)

// Generator produces the raw JSON content for a plan. Implemented by
// genai.Client; faked in tests.
type Generator interface {
	GeneratePlan(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Planner orchestrates generation and progress tracking against the store.
type Planner struct {
	st  store.Store
	gen Generator
}

// New creates a Planner. gen may be nil when no generation credential is
// configured; Generate then fails with ErrMisconfigured before touching the
// plan.
func New(st store.Store, gen Generator) *Planner {
	return &Planner{st: st, gen: gen}
}

// Generate runs the full generation workflow for a plan owned by the given
// user. On success the plan is left in status ready with its output stored;
// on failure it is left in status error, except for precondition failures
// (missing plan, missing credential, exhausted quota) which leave it
// untouched. Concurrent calls for the same plan race last-write-wins; no
// lock is held across the external call.
func (p *Planner) Generate(ctx context.Context, planID, userID string) (*models.Plan, error) {
	if p.gen == nil {
		slog.Error("Planner.Generate: no generation client configured", "planID", planID)
		return nil, models.ErrMisconfigured
	}

	plan, err := p.st.GetPlanForUser(planID, userID)
	if err != nil {
		return nil, err
	}

	user, err := p.st.GetUser(userID)
	if err != nil {
		return nil, err
	}
	limits := entitlements.ForTier(user.Tier)
	period := monthStart(time.Now().UTC())
	used, err := p.st.GenerationUsage(userID, period)
	if err != nil {
		return nil, err
	}
	if used >= limits.AIGenerationsPerMonth {
		slog.Warn("Planner.Generate: generation quota reached", "userID", userID, "used", used, "limit", limits.AIGenerationsPerMonth)
		return nil, models.ErrGenerationQuotaUsed
	}

	// First durable write: readers see "generating" while the external call
	// is in flight.
	if err := p.st.UpdatePlanStatus(planID, models.PlanStatusGenerating); err != nil {
		return nil, err
	}
	if err := p.st.RecordGeneration(userID, period); err != nil {
		slog.Error("Planner.Generate: failed to record generation usage", "error", err, "userID", userID)
	}

	content, err := p.gen.GeneratePlan(ctx, buildSystemPrompt(plan), userPrompt)
	if err != nil {
		p.markError(planID)
		return nil, err
	}

	doc, err := parseDocument(content)
	if err != nil {
		slog.Error("Planner.Generate: invalid generation content", "error", err, "planID", planID, "raw", content)
		p.markError(planID)
		return nil, err
	}

	if doc.IsEmpty() {
		slog.Warn("Planner.Generate: generation produced an empty document", "planID", planID)
		p.markError(planID)
		return nil, models.ErrEmptyGeneration
	}

	if err := p.st.SavePlanOutput(planID, doc); err != nil {
		p.markError(planID)
		return nil, err
	}

	plan.Status = models.PlanStatusReady
	plan.Output = doc
	slog.Info("Planner.Generate: plan generated", "planID", planID, "weeks", len(doc.WeeklyRhythm), "milestones", len(doc.Milestones))
	return plan, nil
}

// markError performs the best-effort terminal status write on failure paths.
// A failed write is logged; the original failure is still what the caller sees.
func (p *Planner) markError(planID string) {
	if err := p.st.UpdatePlanStatus(planID, models.PlanStatusError); err != nil {
		slog.Error("Planner.markError: failed to mark plan as error", "error", err, "planID", planID)
	}
}

// parseDocument decodes and validates the generation content.
func parseDocument(content string) (*models.GeneratedPlan, error) {
	var doc models.GeneratedPlan
	if err := json.Unmarshal([]byte(content), &doc); err != nil {
		return nil, models.ErrInvalidJSON
	}
	if err := validateDocument([]byte(content)); err != nil {
		return nil, err
	}
	return &doc, nil
}

// IsPreconditionFailure reports whether err left the plan's status untouched.
func IsPreconditionFailure(err error) bool {
	return errors.Is(err, models.ErrMisconfigured) ||
		errors.Is(err, models.ErrPlanNotFound) ||
		errors.Is(err, models.ErrUserNotFound) ||
		errors.Is(err, models.ErrGenerationQuotaUsed)
}

// monthStart truncates t to the first instant of its month, the anchor for
// monthly generation quotas.
func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
