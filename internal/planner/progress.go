package planner

import (
	"context"
	"log/slog"
	"time"

	"github.com/orbitplan/orbit/internal/models"
)

// ProgressReport describes completion over a plan's projected steps,
// recomputed on every read. Indices lists only completed steps within the
// current projection, so len(Indices) always equals Completed.
type ProgressReport struct {
	Completed int     `json:"completed"`
	Total     int     `json:"total"`
	Fraction  float64 `json:"fraction"`
	Indices   []int   `json:"indices"`
}

// SetStepCompletion marks or clears completion of one step of a plan owned
// by the given user. Marking is an upsert with a fresh timestamp, so
// repeated calls are idempotent. Clearing deletes the row; callers may only
// rely on the completion predicate, not on row existence.
func (p *Planner) SetStepCompletion(ctx context.Context, userID, planID string, stepIndex int, completed bool) error {
	if stepIndex < 0 {
		return models.ErrInvalidStepIndex
	}
	if _, err := p.st.GetPlanForUser(planID, userID); err != nil {
		return err
	}
	if completed {
		if err := p.st.UpsertStepProgress(planID, stepIndex, time.Now().UTC()); err != nil {
			return err
		}
		slog.Debug("Planner.SetStepCompletion: step marked complete", "planID", planID, "stepIndex", stepIndex)
		return nil
	}
	if err := p.st.DeleteStepProgress(planID, stepIndex); err != nil {
		return err
	}
	slog.Debug("Planner.SetStepCompletion: step completion cleared", "planID", planID, "stepIndex", stepIndex)
	return nil
}

// Progress reports completed step indices and the completion fraction over
// the plan's currently projected steps.
func (p *Planner) Progress(ctx context.Context, userID, planID string) (*ProgressReport, error) {
	plan, err := p.st.GetPlanForUser(planID, userID)
	if err != nil {
		return nil, err
	}
	indices, err := p.st.CompletedStepIndices(planID)
	if err != nil {
		return nil, err
	}

	var total int
	if plan.Output != nil {
		total = len(ProjectSteps(plan.Output))
	}

	// Progress rows are keyed by position; indices past the current
	// projection stay stored but are not reported and don't count toward
	// the fraction.
	inRange := make([]int, 0, len(indices))
	for _, idx := range indices {
		if idx < total {
			inRange = append(inRange, idx)
		}
	}
	fraction := 0.0
	if total > 0 {
		fraction = float64(len(inRange)) / float64(total)
	}
	return &ProgressReport{
		Completed: len(inRange),
		Total:     total,
		Fraction:  fraction,
		Indices:   inRange,
	}, nil
}
