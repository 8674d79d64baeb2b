package entitlements

import (
	"testing"

	"github.com/orbitplan/orbit/internal/models"
)

func TestForTierFree(t *testing.T) {
	e := ForTier(models.TierFree)
	if e.MaxPlans != 2 {
		t.Errorf("expected 2 plans on free, got %d", e.MaxPlans)
	}
	if e.AIGenerationsPerMonth != 10 {
		t.Errorf("expected 10 generations on free, got %d", e.AIGenerationsPerMonth)
	}
	if e.WeeklyActionPacks || e.CalendarExport {
		t.Error("free tier must not include pro features")
	}
}

func TestForTierPro(t *testing.T) {
	e := ForTier(models.TierPro)
	if e.MaxPlans != 25 {
		t.Errorf("expected 25 plans on pro, got %d", e.MaxPlans)
	}
	if e.AIGenerationsPerMonth != 250 {
		t.Errorf("expected 250 generations on pro, got %d", e.AIGenerationsPerMonth)
	}
	if !e.WeeklyActionPacks || !e.CalendarExport {
		t.Error("pro tier must include pro features")
	}
}

func TestForTierUnknownFallsBackToFree(t *testing.T) {
	e := ForTier(models.PlanTier("enterprise"))
	if e.Tier != models.TierFree {
		t.Errorf("unknown tier should map to free, got %q", e.Tier)
	}
}
