// Package store provides storage backends for Orbit.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/orbitplan/orbit/internal/models"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

const pgUserColumns = `id, auth_id, email, name, tier, stripe_customer_id, stripe_subscription_id,
	subscription_status, current_period_end, generations_used, generations_period, created_at, updated_at`

func (s *PostgresStore) GetOrCreateUser(authID, email, name string) (*models.User, error) {
	row := s.db.QueryRow(`SELECT `+pgUserColumns+` FROM users WHERE auth_id = $1`, authID)
	u, err := scanUser(row)
	if err == nil {
		return u, nil
	}
	if err != sql.ErrNoRows {
		slog.Error("PostgresStore GetOrCreateUser lookup failed", "error", err, "authID", authID)
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	now := time.Now().UTC()
	created := &models.User{
		ID:                uuid.NewString(),
		AuthID:            authID,
		Email:             email,
		Name:              name,
		Tier:              models.TierFree,
		GenerationsPeriod: now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	_, err = s.db.Exec(`INSERT INTO users (id, auth_id, email, name, tier, generations_used, generations_period, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6, $7, $8)`,
		created.ID, created.AuthID, created.Email, nilIfEmpty(created.Name), created.Tier,
		created.GenerationsPeriod, created.CreatedAt, created.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore GetOrCreateUser insert failed", "error", err, "authID", authID)
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	slog.Debug("PostgresStore GetOrCreateUser created user", "userID", created.ID)
	return created, nil
}

func (s *PostgresStore) GetUser(id string) (*models.User, error) {
	row := s.db.QueryRow(`SELECT `+pgUserColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		slog.Error("PostgresStore GetUser failed", "error", err, "userID", id)
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) GetUserByStripeCustomerID(customerID string) (*models.User, error) {
	row := s.db.QueryRow(`SELECT `+pgUserColumns+` FROM users WHERE stripe_customer_id = $1`, customerID)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		slog.Error("PostgresStore GetUserByStripeCustomerID failed", "error", err)
		return nil, fmt.Errorf("failed to get user by customer id: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) SetStripeCustomerID(userID, customerID string) error {
	res, err := s.db.Exec(`UPDATE users SET stripe_customer_id = $1, updated_at = $2 WHERE id = $3`,
		customerID, time.Now().UTC(), userID)
	if err != nil {
		slog.Error("PostgresStore SetStripeCustomerID failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to set stripe customer id: %w", err)
	}
	return requireRowAffected(res, models.ErrUserNotFound)
}

func (s *PostgresStore) ApplyCheckoutSession(userID, customerID, subscriptionID string) error {
	res, err := s.db.Exec(`UPDATE users SET
			stripe_customer_id = COALESCE($1, stripe_customer_id),
			stripe_subscription_id = COALESCE($2, stripe_subscription_id),
			updated_at = $3
		WHERE id = $4`,
		nilIfEmpty(customerID), nilIfEmpty(subscriptionID), time.Now().UTC(), userID)
	if err != nil {
		slog.Error("PostgresStore ApplyCheckoutSession failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to apply checkout session: %w", err)
	}
	return requireRowAffected(res, models.ErrUserNotFound)
}

func (s *PostgresStore) UpdateSubscription(customerID, subscriptionID, status string, periodEnd *time.Time, tier models.PlanTier) error {
	var end interface{}
	if periodEnd != nil {
		end = *periodEnd
	}
	_, err := s.db.Exec(`UPDATE users SET
			stripe_subscription_id = $1, subscription_status = $2, current_period_end = $3, tier = $4, updated_at = $5
		WHERE stripe_customer_id = $6`,
		subscriptionID, status, end, tier, time.Now().UTC(), customerID)
	if err != nil {
		slog.Error("PostgresStore UpdateSubscription failed", "error", err, "customerID", customerID)
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	slog.Debug("PostgresStore UpdateSubscription succeeded", "customerID", customerID, "status", status, "tier", tier)
	return nil
}

func (s *PostgresStore) GenerationUsage(userID string, periodStart time.Time) (int, error) {
	var used int
	var period time.Time
	err := s.db.QueryRow(`SELECT generations_used, generations_period FROM users WHERE id = $1`, userID).
		Scan(&used, &period)
	if err == sql.ErrNoRows {
		return 0, models.ErrUserNotFound
	}
	if err != nil {
		slog.Error("PostgresStore GenerationUsage failed", "error", err, "userID", userID)
		return 0, fmt.Errorf("failed to read generation usage: %w", err)
	}
	if period.Before(periodStart) {
		return 0, nil
	}
	return used, nil
}

func (s *PostgresStore) RecordGeneration(userID string, periodStart time.Time) error {
	res, err := s.db.Exec(`UPDATE users SET
			generations_used = CASE WHEN generations_period < $1 THEN 1 ELSE generations_used + 1 END,
			generations_period = CASE WHEN generations_period < $1 THEN $1 ELSE generations_period END,
			updated_at = $2
		WHERE id = $3`,
		periodStart, time.Now().UTC(), userID)
	if err != nil {
		slog.Error("PostgresStore RecordGeneration failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to record generation: %w", err)
	}
	return requireRowAffected(res, models.ErrUserNotFound)
}

const pgPlanColumns = `id, user_id, title, goal_input, timeframe_weeks, intensity, status, output_json, created_at`

func (s *PostgresStore) CreatePlan(p *models.Plan) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`INSERT INTO plans (id, user_id, title, goal_input, timeframe_weeks, intensity, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.UserID, p.Title, p.GoalInput, p.TimeframeWeeks, p.Intensity, p.Status, p.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore CreatePlan failed", "error", err, "userID", p.UserID)
		return fmt.Errorf("failed to insert plan: %w", err)
	}
	slog.Debug("PostgresStore CreatePlan succeeded", "planID", p.ID, "userID", p.UserID)
	return nil
}

func (s *PostgresStore) GetPlanForUser(id, userID string) (*models.Plan, error) {
	row := s.db.QueryRow(`SELECT `+pgPlanColumns+` FROM plans WHERE id = $1 AND user_id = $2`, id, userID)
	p, err := scanPlan(row)
	if err == sql.ErrNoRows {
		return nil, models.ErrPlanNotFound
	}
	if err != nil {
		slog.Error("PostgresStore GetPlanForUser failed", "error", err, "planID", id)
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) ListPlans(userID string) ([]models.Plan, error) {
	rows, err := s.db.Query(`SELECT `+pgPlanColumns+` FROM plans WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		slog.Error("PostgresStore ListPlans query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query plans: %w", err)
	}
	defer rows.Close()

	var plans []models.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			slog.Error("PostgresStore ListPlans scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan plan row: %w", err)
		}
		plans = append(plans, *p)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore ListPlans rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate plan rows: %w", err)
	}
	return plans, nil
}

func (s *PostgresStore) CountPlans(userID string) (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM plans WHERE user_id = $1`, userID).Scan(&n); err != nil {
		slog.Error("PostgresStore CountPlans failed", "error", err, "userID", userID)
		return 0, fmt.Errorf("failed to count plans: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) UpdatePlanDetails(id string, in models.PlanInput) error {
	res, err := s.db.Exec(`UPDATE plans SET title = $1, goal_input = $2, timeframe_weeks = $3, intensity = $4 WHERE id = $5`,
		in.Title, in.GoalInput, in.TimeframeWeeks, in.Intensity, id)
	if err != nil {
		slog.Error("PostgresStore UpdatePlanDetails failed", "error", err, "planID", id)
		return fmt.Errorf("failed to update plan details: %w", err)
	}
	return requireRowAffected(res, models.ErrPlanNotFound)
}

func (s *PostgresStore) UpdatePlanStatus(id string, status models.PlanStatus) error {
	res, err := s.db.Exec(`UPDATE plans SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		slog.Error("PostgresStore UpdatePlanStatus failed", "error", err, "planID", id, "status", status)
		return fmt.Errorf("failed to update plan status: %w", err)
	}
	slog.Debug("PostgresStore UpdatePlanStatus succeeded", "planID", id, "status", status)
	return requireRowAffected(res, models.ErrPlanNotFound)
}

func (s *PostgresStore) SavePlanOutput(id string, output *models.GeneratedPlan) error {
	outputJSON, err := json.Marshal(output)
	if err != nil {
		slog.Error("PostgresStore SavePlanOutput marshal failed", "error", err, "planID", id)
		return fmt.Errorf("failed to encode plan output: %w", err)
	}
	// Status and output are written in one statement so readers never see
	// one without the other.
	res, err := s.db.Exec(`UPDATE plans SET status = $1, output_json = $2 WHERE id = $3`,
		models.PlanStatusReady, string(outputJSON), id)
	if err != nil {
		slog.Error("PostgresStore SavePlanOutput failed", "error", err, "planID", id)
		return fmt.Errorf("failed to save plan output: %w", err)
	}
	slog.Debug("PostgresStore SavePlanOutput succeeded", "planID", id)
	return requireRowAffected(res, models.ErrPlanNotFound)
}

func (s *PostgresStore) UpsertStepProgress(planID string, stepIndex int, completedAt time.Time) error {
	_, err := s.db.Exec(`INSERT INTO plan_step_progress (plan_id, step_index, completed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (plan_id, step_index) DO UPDATE SET completed_at = EXCLUDED.completed_at`,
		planID, stepIndex, completedAt)
	if err != nil {
		slog.Error("PostgresStore UpsertStepProgress failed", "error", err, "planID", planID, "stepIndex", stepIndex)
		return fmt.Errorf("failed to upsert step progress: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteStepProgress(planID string, stepIndex int) error {
	_, err := s.db.Exec(`DELETE FROM plan_step_progress WHERE plan_id = $1 AND step_index = $2`, planID, stepIndex)
	if err != nil {
		slog.Error("PostgresStore DeleteStepProgress failed", "error", err, "planID", planID, "stepIndex", stepIndex)
		return fmt.Errorf("failed to delete step progress: %w", err)
	}
	return nil
}

func (s *PostgresStore) CompletedStepIndices(planID string) ([]int, error) {
	rows, err := s.db.Query(`SELECT step_index FROM plan_step_progress WHERE plan_id = $1 ORDER BY step_index`, planID)
	if err != nil {
		slog.Error("PostgresStore CompletedStepIndices query failed", "error", err, "planID", planID)
		return nil, fmt.Errorf("failed to query step progress: %w", err)
	}
	defer rows.Close()

	var indices []int
	for rows.Next() {
		var idx int
		if err := rows.Scan(&idx); err != nil {
			slog.Error("PostgresStore CompletedStepIndices scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan step progress row: %w", err)
		}
		indices = append(indices, idx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate step progress rows: %w", err)
	}
	return indices, nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	return s.db.Close()
}
