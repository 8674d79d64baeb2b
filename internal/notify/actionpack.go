// Package notify composes and delivers action-pack digests for pro users.
//
// Delivery is strictly on demand; Orbit runs no scheduler.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/orbitplan/orbit/internal/entitlements"
	"github.com/orbitplan/orbit/internal/models"
	"github.com/orbitplan/orbit/internal/planner"
	"github.com/orbitplan/orbit/internal/sms"
	"github.com/orbitplan/orbit/internal/store"
)

// MaxDigestSteps caps how many upcoming steps one digest includes.
const MaxDigestSteps = 3

// Service sends action-pack digests over SMS.
type Service struct {
	st     store.Store
	pl     *planner.Planner
	sender sms.Sender
}

// NewService creates the action-pack service. sender may be nil when no SMS
// credentials are configured; SendActionPack then fails with ErrMisconfigured.
func NewService(st store.Store, pl *planner.Planner, sender sms.Sender) *Service {
	return &Service{st: st, pl: pl, sender: sender}
}

// SendActionPack sends the user's next unfinished steps for a plan to the
// given phone number. Pro-only; the plan must be owned by the user and have
// a generated output.
func (s *Service) SendActionPack(ctx context.Context, userID, planID, phone string) error {
	if s.sender == nil {
		slog.Error("Service.SendActionPack: no SMS client configured")
		return models.ErrMisconfigured
	}

	user, err := s.st.GetUser(userID)
	if err != nil {
		return err
	}
	if !entitlements.ForTier(user.Tier).WeeklyActionPacks {
		slog.Warn("Service.SendActionPack: action packs require pro", "userID", userID, "tier", user.Tier)
		return models.ErrProFeature
	}

	plan, err := s.st.GetPlanForUser(planID, userID)
	if err != nil {
		return err
	}
	if plan.Status != models.PlanStatusReady || plan.Output == nil {
		return fmt.Errorf("plan %s has no generated output yet", planID)
	}

	completed, err := s.st.CompletedStepIndices(planID)
	if err != nil {
		return err
	}

	body := composeDigest(plan, planner.ProjectSteps(plan.Output), completed)
	if err := s.sender.SendMessage(ctx, phone, body); err != nil {
		return err
	}
	slog.Info("Service.SendActionPack: digest sent", "planID", planID, "userID", userID)
	return nil
}

// composeDigest renders the next unfinished steps as a short SMS body.
func composeDigest(plan *models.Plan, steps []models.FlowStep, completedIndices []int) string {
	done := make(map[int]bool, len(completedIndices))
	for _, idx := range completedIndices {
		done[idx] = true
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Orbit action pack: %s\n", plan.Title)

	included := 0
	for i, step := range steps {
		if done[i] {
			continue
		}
		fmt.Fprintf(&b, "\n%d. %s", i+1, step.Title)
		if step.Subtitle != "" {
			fmt.Fprintf(&b, " - %s", step.Subtitle)
		}
		for _, d := range step.Details {
			fmt.Fprintf(&b, "\n   • %s", d)
		}
		included++
		if included >= MaxDigestSteps {
			break
		}
	}

	if included == 0 {
		b.WriteString("\nAll steps done. Time to set the next goal!")
	}
	return b.String()
}
