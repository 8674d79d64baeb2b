// Package models defines the core data structures for Orbit.
//
// It includes users, plans, generated plan documents, and step progress
// records, which are shared across modules.
package models

import (
	"errors"
	"strings"
	"time"
)

// Intensity describes how hard a plan should push the user.
type Intensity string

const (
	// IntensityGentle is a low-pressure pace.
	IntensityGentle Intensity = "gentle"
	// IntensitySteady is a realistic default pace.
	IntensitySteady Intensity = "steady"
	// IntensityIntense is a big-push pace.
	IntensityIntense Intensity = "intense"
)

// IsValidIntensity checks if the given intensity is supported.
func IsValidIntensity(i Intensity) bool {
	switch i {
	case IntensityGentle, IntensitySteady, IntensityIntense:
		return true
	default:
		return false
	}
}

// PlanStatus represents the lifecycle state of a plan.
type PlanStatus string

const (
	// PlanStatusDraft is the initial state after a user submits a goal.
	PlanStatusDraft PlanStatus = "draft"
	// PlanStatusGenerating indicates a generation call is in flight.
	PlanStatusGenerating PlanStatus = "generating"
	// PlanStatusReady indicates the plan has a generated output document.
	PlanStatusReady PlanStatus = "ready"
	// PlanStatusError indicates the last generation attempt failed.
	PlanStatusError PlanStatus = "error"
)

// IsValidPlanStatus checks if the given plan status is supported.
func IsValidPlanStatus(s PlanStatus) bool {
	switch s {
	case PlanStatusDraft, PlanStatusGenerating, PlanStatusReady, PlanStatusError:
		return true
	default:
		return false
	}
}

// PlanTier represents the subscription tier of a user.
type PlanTier string

const (
	// TierFree is the default tier.
	TierFree PlanTier = "free"
	// TierPro is the paid tier.
	TierPro PlanTier = "pro"
)

// Validation constants for plan input normalization.
const (
	// DefaultTimeframeWeeks is used when the submitted timeframe is missing or invalid.
	DefaultTimeframeWeeks = 12
	// MaxTitleFromGoalLength is the number of goal characters used for a derived title.
	MaxTitleFromGoalLength = 60
	// MaxGoalInputLength bounds the free-text goal description.
	MaxGoalInputLength = 4096
)

// Error variables for the failure taxonomy shared across modules.
var (
	ErrMisconfigured       = errors.New("generation service is not configured")
	ErrPlanNotFound        = errors.New("plan not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrEmptyGoal           = errors.New("goal description is required")
	ErrGoalTooLong         = errors.New("goal description exceeds maximum length")
	ErrInvalidTimeframe    = errors.New("timeframe must be a positive number of weeks")
	ErrInvalidIntensity    = errors.New("invalid intensity")
	ErrInvalidStepIndex    = errors.New("step index must be non-negative")
	ErrGenerationService   = errors.New("generation service returned an error")
	ErrMalformedResponse   = errors.New("generation response did not contain content")
	ErrInvalidJSON         = errors.New("generation content was not valid JSON")
	ErrEmptyGeneration     = errors.New("generation produced an empty plan")
	ErrPlanLimitReached    = errors.New("plan limit reached for current tier")
	ErrGenerationQuotaUsed = errors.New("monthly generation quota reached for current tier")
	ErrProFeature          = errors.New("feature requires a pro subscription")
)

// User is Orbit's record of a signed-in person. Authentication itself is
// handled upstream; the auth ID is the identity provider's subject.
type User struct {
	ID                   string     `json:"id"`
	AuthID               string     `json:"auth_id"`
	Email                string     `json:"email"`
	Name                 string     `json:"name,omitempty"`
	Tier                 PlanTier   `json:"tier"`
	StripeCustomerID     string     `json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID string     `json:"stripe_subscription_id,omitempty"`
	SubscriptionStatus   string     `json:"subscription_status,omitempty"`
	CurrentPeriodEnd     *time.Time `json:"current_period_end,omitempty"`
	GenerationsUsed      int        `json:"generations_used"`
	GenerationsPeriod    time.Time  `json:"generations_period"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// Plan is the persisted record of a user's goal, parameters, and (once
// generated) structured output.
type Plan struct {
	ID             string         `json:"id"`
	UserID         string         `json:"user_id"`
	Title          string         `json:"title"`
	GoalInput      string         `json:"goal_input"`
	TimeframeWeeks int            `json:"timeframe_weeks"`
	Intensity      Intensity      `json:"intensity"`
	Status         PlanStatus     `json:"status"`
	Output         *GeneratedPlan `json:"output,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Milestone is a labeled target inside a generated plan.
type Milestone struct {
	Label       string `json:"label"`
	Description string `json:"description"`
	TargetWeek  int    `json:"targetWeek"`
}

// WeeklyRhythm is one week's focus and actions inside a generated plan.
type WeeklyRhythm struct {
	Week    int      `json:"week"`
	Focus   string   `json:"focus"`
	Actions []string `json:"actions"`
}

// ObstacleSafety pairs an anticipated obstacle with its workaround.
type ObstacleSafety struct {
	Obstacle   string `json:"obstacle"`
	Workaround string `json:"workaround"`
}

// GeneratedPlan is the structured document produced by the generation
// service, stored embedded in a Plan.
type GeneratedPlan struct {
	Summary              string           `json:"summary"`
	Milestones           []Milestone      `json:"milestones"`
	WeeklyRhythm         []WeeklyRhythm   `json:"weeklyRhythm"`
	StartingSteps        []string         `json:"startingSteps"`
	ObstaclesAndSafeties []ObstacleSafety `json:"obstaclesAndSafeties"`
	Notes                string           `json:"notes"`
}

// IsEmpty reports whether the document has no projectable content.
func (g *GeneratedPlan) IsEmpty() bool {
	return len(g.WeeklyRhythm) == 0 && len(g.Milestones) == 0 && len(g.StartingSteps) == 0
}

// StepProgress is a persisted completion marker keyed by (plan, step index).
type StepProgress struct {
	PlanID      string    `json:"plan_id"`
	StepIndex   int       `json:"step_index"`
	CompletedAt time.Time `json:"completed_at"`
}

// FlowStep is a displayable unit derived from a GeneratedPlan. Steps are
// correlated with StepProgress rows by positional index, not by ID.
type FlowStep struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Subtitle string   `json:"subtitle,omitempty"`
	Badge    string   `json:"badge,omitempty"`
	Details  []string `json:"details,omitempty"`
}

// PlanInput carries the user-submitted fields for creating or editing a plan.
type PlanInput struct {
	Title          string    `json:"title"`
	GoalInput      string    `json:"goal_input"`
	TimeframeWeeks int       `json:"timeframe_weeks"`
	Intensity      Intensity `json:"intensity"`
}

// Normalize applies the defaulting rules used by both create and update:
// a blank title is derived from the goal, a missing or non-positive
// timeframe falls back to the default, and an unknown intensity becomes
// steady. The goal itself is required.
func (in *PlanInput) Normalize() error {
	in.GoalInput = strings.TrimSpace(in.GoalInput)
	if in.GoalInput == "" {
		return ErrEmptyGoal
	}
	if len(in.GoalInput) > MaxGoalInputLength {
		return ErrGoalTooLong
	}

	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		in.Title = deriveTitle(in.GoalInput)
	}

	if in.TimeframeWeeks <= 0 {
		in.TimeframeWeeks = DefaultTimeframeWeeks
	}

	if !IsValidIntensity(in.Intensity) {
		in.Intensity = IntensitySteady
	}
	return nil
}

// deriveTitle shortens a goal description into a title.
func deriveTitle(goal string) string {
	runes := []rune(goal)
	if len(runes) <= MaxTitleFromGoalLength {
		return goal
	}
	return string(runes[:MaxTitleFromGoalLength]) + "…"
}
