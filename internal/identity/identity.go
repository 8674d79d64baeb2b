// Package identity classifies a plan's goal text into a decorative emoji
// and badge style for the UI.
package identity

import (
	"regexp"
	"strings"
)

// PlanIdentity is the decorative identity derived from a goal description.
type PlanIdentity struct {
	Emoji      string `json:"emoji"`
	BadgeClass string `json:"badge_class"`
}

// category pairs a keyword pattern with the identity it selects.
type category struct {
	pattern  *regexp.Regexp
	identity PlanIdentity
}

// Categories are checked in order; the first match wins.
var categories = []category{
	{
		pattern: regexp.MustCompile(`gym|workout|weight|muscle|fitness|health|run|running|cardio`),
		identity: PlanIdentity{
			Emoji:      "🏋️",
			BadgeClass: "bg-[radial-gradient(circle_at_top,#34d399,#059669_60%,#022c22)]",
		},
	},
	{
		pattern: regexp.MustCompile(`money|save|savings|debt|budget|invest|investment|tfsa|rrsp`),
		identity: PlanIdentity{
			Emoji:      "💰",
			BadgeClass: "bg-[radial-gradient(circle_at_top,#facc15,#eab308_60%,#451a03)]",
		},
	},
	{
		pattern: regexp.MustCompile(`job|career|promotion|interview|resume|network`),
		identity: PlanIdentity{
			Emoji:      "💼",
			BadgeClass: "bg-[radial-gradient(circle_at_top,#38bdf8,#0ea5e9_60%,#022c44)]",
		},
	},
	{
		pattern: regexp.MustCompile(`code|coding|programming|next\.js|react|saas|app|project|developer|dev`),
		identity: PlanIdentity{
			Emoji:      "💻",
			BadgeClass: "bg-[radial-gradient(circle_at_top,#a855f7,#6366f1_60%,#020617)]",
		},
	},
	{
		pattern: regexp.MustCompile(`school|study|exam|finals|assignment|grade|university|college`),
		identity: PlanIdentity{
			Emoji:      "📚",
			BadgeClass: "bg-[radial-gradient(circle_at_top,#f97316,#fb923c_60%,#3b0a0a)]",
		},
	},
	{
		pattern: regexp.MustCompile(`sleep|routine|habit|habits|productivity|focus|burnout`),
		identity: PlanIdentity{
			Emoji:      "🌙",
			BadgeClass: "bg-[radial-gradient(circle_at_top,#4f46e5,#22d3ee_60%,#020617)]",
		},
	},
}

// defaultIdentity is used when no keyword group matches.
var defaultIdentity = PlanIdentity{
	Emoji:      "🎯",
	BadgeClass: "bg-[radial-gradient(circle_at_top,#ff6cab,#7366ff_60%,#050308)]",
}

// ForGoal returns the identity for a goal description.
func ForGoal(goalInput string) PlanIdentity {
	g := strings.ToLower(goalInput)
	for _, c := range categories {
		if c.pattern.MatchString(g) {
			return c.identity
		}
	}
	return defaultIdentity
}
