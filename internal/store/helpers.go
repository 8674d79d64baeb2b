package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/orbitplan/orbit/internal/models"
)

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// scanUser scans a User from a row produced by the canonical user SELECT
// (id, auth_id, email, name, tier, stripe_customer_id,
// stripe_subscription_id, subscription_status, current_period_end,
// generations_used, generations_period, created_at, updated_at).
func scanUser(row scanner) (*models.User, error) {
	var u models.User
	var name, custID, subID, subStatus sql.NullString
	var periodEnd sql.NullTime
	err := row.Scan(
		&u.ID, &u.AuthID, &u.Email, &name, &u.Tier, &custID, &subID, &subStatus,
		&periodEnd, &u.GenerationsUsed, &u.GenerationsPeriod, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.Name = name.String
	u.StripeCustomerID = custID.String
	u.StripeSubscriptionID = subID.String
	u.SubscriptionStatus = subStatus.String
	if periodEnd.Valid {
		t := periodEnd.Time
		u.CurrentPeriodEnd = &t
	}
	return &u, nil
}

// scanPlan scans a Plan from a row produced by the canonical plan SELECT
// (id, user_id, title, goal_input, timeframe_weeks, intensity, status,
// output_json, created_at). The stored output document is decoded from JSON.
func scanPlan(row scanner) (*models.Plan, error) {
	var p models.Plan
	var outputJSON sql.NullString
	err := row.Scan(
		&p.ID, &p.UserID, &p.Title, &p.GoalInput, &p.TimeframeWeeks,
		&p.Intensity, &p.Status, &outputJSON, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if outputJSON.Valid && outputJSON.String != "" {
		var doc models.GeneratedPlan
		if err := json.Unmarshal([]byte(outputJSON.String), &doc); err != nil {
			return nil, fmt.Errorf("failed to decode stored plan output: %w", err)
		}
		p.Output = &doc
	}
	return &p, nil
}
