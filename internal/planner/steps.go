package planner

import (
	"fmt"

	"github.com/orbitplan/orbit/internal/models"
)

// Step badges, one per projection source.
const (
	BadgeWeeklyFocus  = "Weekly focus"
	BadgeMilestone    = "Milestone"
	BadgeStartingStep = "Starting step"
)

// ProjectSteps converts a generated plan document into the ordered list of
// displayable steps. It is pure and deterministic: the same document always
// yields the same steps with the same IDs.
//
// Source preference: weeklyRhythm, then milestones, then startingSteps.
// The first non-empty source wins; sources are never blended. A document
// with no usable source projects a single fallback step.
func ProjectSteps(doc *models.GeneratedPlan) []models.FlowStep {
	if doc == nil {
		return fallbackSteps()
	}

	if len(doc.WeeklyRhythm) > 0 {
		steps := make([]models.FlowStep, 0, len(doc.WeeklyRhythm))
		for _, w := range doc.WeeklyRhythm {
			steps = append(steps, models.FlowStep{
				ID:       fmt.Sprintf("week-%d", w.Week),
				Title:    fmt.Sprintf("Week %d", w.Week),
				Subtitle: w.Focus,
				Badge:    BadgeWeeklyFocus,
				Details:  w.Actions,
			})
		}
		return steps
	}

	if len(doc.Milestones) > 0 {
		steps := make([]models.FlowStep, 0, len(doc.Milestones))
		for i, m := range doc.Milestones {
			steps = append(steps, models.FlowStep{
				ID:       fmt.Sprintf("milestone-%d", i),
				Title:    m.Label,
				Subtitle: fmt.Sprintf("Target: week %d", m.TargetWeek),
				Badge:    BadgeMilestone,
				Details:  []string{m.Description},
			})
		}
		return steps
	}

	if len(doc.StartingSteps) > 0 {
		steps := make([]models.FlowStep, 0, len(doc.StartingSteps))
		for i, s := range doc.StartingSteps {
			steps = append(steps, models.FlowStep{
				ID:      fmt.Sprintf("start-%d", i),
				Title:   fmt.Sprintf("Step %d", i+1),
				Badge:   BadgeStartingStep,
				Details: []string{s},
			})
		}
		return steps
	}

	return fallbackSteps()
}

func fallbackSteps() []models.FlowStep {
	return []models.FlowStep{{
		ID:       "fallback",
		Title:    "Your plan is ready",
		Subtitle: "Try regenerating if this looks empty.",
	}}
}
