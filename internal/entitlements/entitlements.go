// Package entitlements defines the feature limits of each subscription tier.
package entitlements

import "github.com/orbitplan/orbit/internal/models"

// Entitlements lists what a tier may do.
type Entitlements struct {
	Tier                  models.PlanTier `json:"tier"`
	MaxPlans              int             `json:"max_plans"`
	AIGenerationsPerMonth int             `json:"ai_generations_per_month"`
	WeeklyActionPacks     bool            `json:"weekly_action_packs"`
	CalendarExport        bool            `json:"calendar_export"`
}

var (
	free = Entitlements{
		Tier:                  models.TierFree,
		MaxPlans:              2,
		AIGenerationsPerMonth: 10,
		WeeklyActionPacks:     false,
		CalendarExport:        false,
	}
	pro = Entitlements{
		Tier:                  models.TierPro,
		MaxPlans:              25,
		AIGenerationsPerMonth: 250,
		WeeklyActionPacks:     true,
		CalendarExport:        true,
	}
)

// ForTier returns the entitlements of a tier. Anything that is not
// explicitly pro is treated as free.
func ForTier(tier models.PlanTier) Entitlements {
	if tier == models.TierPro {
		return pro
	}
	return free
}
