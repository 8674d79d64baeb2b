package identity

import "testing"

func TestForGoalCategories(t *testing.T) {
	tests := []struct {
		goal  string
		emoji string
	}{
		{"Get back into the gym 3x a week", "🏋️"},
		{"Train for a half marathon by running more", "🏋️"},
		{"Pay off my credit card debt", "💰"},
		{"Max out my TFSA this year", "💰"},
		{"Land a new job in tech", "💼"},
		{"Ship a SaaS side project", "💻"},
		{"Pass my university finals", "📚"},
		{"Fix my sleep routine", "🌙"},
	}
	for _, tt := range tests {
		got := ForGoal(tt.goal)
		if got.Emoji != tt.emoji {
			t.Errorf("ForGoal(%q): expected %s, got %s", tt.goal, tt.emoji, got.Emoji)
		}
		if got.BadgeClass == "" {
			t.Errorf("ForGoal(%q): missing badge class", tt.goal)
		}
	}
}

func TestForGoalIsCaseInsensitive(t *testing.T) {
	lower := ForGoal("hit the gym")
	upper := ForGoal("HIT THE GYM")
	if lower != upper {
		t.Errorf("case should not matter: %+v vs %+v", lower, upper)
	}
}

func TestForGoalFirstMatchWins(t *testing.T) {
	// Mentions both fitness and money; fitness is checked first.
	got := ForGoal("save money for a gym membership")
	if got.Emoji != "🏋️" {
		t.Errorf("expected first category to win, got %s", got.Emoji)
	}
}

func TestForGoalDefault(t *testing.T) {
	got := ForGoal("learn to paint watercolors")
	if got.Emoji != "🎯" {
		t.Errorf("expected default identity, got %s", got.Emoji)
	}
	if got != defaultIdentity {
		t.Errorf("expected default identity, got %+v", got)
	}
}
