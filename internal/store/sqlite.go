// Package store provides storage backends for Orbit.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/orbitplan/orbit/internal/models"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	// Run migrations to ensure tables exist
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

const sqliteUserColumns = `id, auth_id, email, name, tier, stripe_customer_id, stripe_subscription_id,
	subscription_status, current_period_end, generations_used, generations_period, created_at, updated_at`

func (s *SQLiteStore) GetOrCreateUser(authID, email, name string) (*models.User, error) {
	row := s.db.QueryRow(`SELECT `+sqliteUserColumns+` FROM users WHERE auth_id = ?`, authID)
	u, err := scanUser(row)
	if err == nil {
		return u, nil
	}
	if err != sql.ErrNoRows {
		slog.Error("SQLiteStore GetOrCreateUser lookup failed", "error", err, "authID", authID)
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
		VALUES (?, ?, ?, ?, ?, 0, ?, ?, ?)`,
		created.ID, created.AuthID, created.Email, nilIfEmpty(created.Name), created.Tier,
		created.GenerationsPeriod, created.CreatedAt, created.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore GetOrCreateUser insert failed", "error", err, "authID", authID)
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	slog.Debug("SQLiteStore GetOrCreateUser created user", "userID", created.ID)
	return created, nil
}

func (s *SQLiteStore) GetUser(id string) (*models.User, error) {
	row := s.db.QueryRow(`SELECT `+sqliteUserColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		slog.Error("SQLiteStore GetUser failed", "error", err, "userID", id)
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

func (s *SQLiteStore) GetUserByStripeCustomerID(customerID string) (*models.User, error) {
	row := s.db.QueryRow(`SELECT `+sqliteUserColumns+` FROM users WHERE stripe_customer_id = ?`, customerID)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		slog.Error("SQLiteStore GetUserByStripeCustomerID failed", "error", err)
		return nil, fmt.Errorf("failed to get user by customer id: %w", err)
	}
	return u, nil
}

func (s *SQLiteStore) SetStripeCustomerID(userID, customerID string) error {
	res, err := s.db.Exec(`UPDATE users SET stripe_customer_id = ?, updated_at = ? WHERE id = ?`,
		customerID, time.Now().UTC(), userID)
	if err != nil {
		slog.Error("SQLiteStore SetStripeCustomerID failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to set stripe customer id: %w", err)
	}
	return requireRowAffected(res, models.ErrUserNotFound)
}

func (s *SQLiteStore) ApplyCheckoutSession(userID, customerID, subscriptionID string) error {
	res, err := s.db.Exec(`UPDATE users SET
			stripe_customer_id = COALESCE(?, stripe_customer_id),
			stripe_subscription_id = COALESCE(?, stripe_subscription_id),
			updated_at = ?
		WHERE id = ?`,
		nilIfEmpty(customerID), nilIfEmpty(subscriptionID), time.Now().UTC(), userID)
	if err != nil {
		slog.Error("SQLiteStore ApplyCheckoutSession failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to apply checkout session: %w", err)
	}
	return requireRowAffected(res, models.ErrUserNotFound)
}

func (s *SQLiteStore) UpdateSubscription(customerID, subscriptionID, status string, periodEnd *time.Time, tier models.PlanTier) error {
	var end interface{}
	if periodEnd != nil {
		end = *periodEnd
	}
	_, err := s.db.Exec(`UPDATE users SET
			stripe_subscription_id = ?, subscription_status = ?, current_period_end = ?, tier = ?, updated_at = ?
		WHERE stripe_customer_id = ?`,
		subscriptionID, status, end, tier, time.Now().UTC(), customerID)
	if err != nil {
		slog.Error("SQLiteStore UpdateSubscription failed", "error", err, "customerID", customerID)
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	slog.Debug("SQLiteStore UpdateSubscription succeeded", "customerID", customerID, "status", status, "tier", tier)
	return nil
}

func (s *SQLiteStore) GenerationUsage(userID string, periodStart time.Time) (int, error) {
	var used int
	var period time.Time
	err := s.db.QueryRow(`SELECT generations_used, generations_period FROM users WHERE id = ?`, userID).
		Scan(&used, &period)
	if err == sql.ErrNoRows {
		return 0, models.ErrUserNotFound
	}
	if err != nil {
		slog.Error("SQLiteStore GenerationUsage failed", "error", err, "userID", userID)
		return 0, fmt.Errorf("failed to read generation usage: %w", err)
	}
	if period.Before(periodStart) {
		return 0, nil
	}
	return used, nil
}

func (s *SQLiteStore) RecordGeneration(userID string, periodStart time.Time) error {
	res, err := s.db.Exec(`UPDATE users SET
			generations_used = CASE WHEN generations_period < ? THEN 1 ELSE generations_used + 1 END,
			generations_period = CASE WHEN generations_period < ? THEN ? ELSE generations_period END,
			updated_at = ?
		WHERE id = ?`,
		periodStart, periodStart, periodStart, time.Now().UTC(), userID)
	if err != nil {
		slog.Error("SQLiteStore RecordGeneration failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to record generation: %w", err)
	}
	return requireRowAffected(res, models.ErrUserNotFound)
}

const sqlitePlanColumns = `id, user_id, title, goal_input, timeframe_weeks, intensity, status, output_json, created_at`

func (s *SQLiteStore) CreatePlan(p *models.Plan) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`INSERT INTO plans (id, user_id, title, goal_input, timeframe_weeks, intensity, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.Title, p.GoalInput, p.TimeframeWeeks, p.Intensity, p.Status, p.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore CreatePlan failed", "error", err, "userID", p.UserID)
		return fmt.Errorf("failed to insert plan: %w", err)
	}
	slog.Debug("SQLiteStore CreatePlan succeeded", "planID", p.ID, "userID", p.UserID)
	return nil
}

func (s *SQLiteStore) GetPlanForUser(id, userID string) (*models.Plan, error) {
	row := s.db.QueryRow(`SELECT `+sqlitePlanColumns+` FROM plans WHERE id = ? AND user_id = ?`, id, userID)
	p, err := scanPlan(row)
	if err == sql.ErrNoRows {
		return nil, models.ErrPlanNotFound
	}
	if err != nil {
		slog.Error("SQLiteStore GetPlanForUser failed", "error", err, "planID", id)
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) ListPlans(userID string) ([]models.Plan, error) {
	rows, err := s.db.Query(`SELECT `+sqlitePlanColumns+` FROM plans WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		slog.Error("SQLiteStore ListPlans query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query plans: %w", err)
	}
	defer rows.Close()

	var plans []models.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			slog.Error("SQLiteStore ListPlans scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan plan row: %w", err)
		}
		plans = append(plans, *p)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore ListPlans rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate plan rows: %w", err)
	}
	return plans, nil
}

func (s *SQLiteStore) CountPlans(userID string) (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM plans WHERE user_id = ?`, userID).Scan(&n); err != nil {
		slog.Error("SQLiteStore CountPlans failed", "error", err, "userID", userID)
		return 0, fmt.Errorf("failed to count plans: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) UpdatePlanDetails(id string, in models.PlanInput) error {
	res, err := s.db.Exec(`UPDATE plans SET title = ?, goal_input = ?, timeframe_weeks = ?, intensity = ? WHERE id = ?`,
		in.Title, in.GoalInput, in.TimeframeWeeks, in.Intensity, id)
	if err != nil {
		slog.Error("SQLiteStore UpdatePlanDetails failed", "error", err, "planID", id)
		return fmt.Errorf("failed to update plan details: %w", err)
	}
	return requireRowAffected(res, models.ErrPlanNotFound)
}

func (s *SQLiteStore) UpdatePlanStatus(id string, status models.PlanStatus) error {
	res, err := s.db.Exec(`UPDATE plans SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		slog.Error("SQLiteStore UpdatePlanStatus failed", "error", err, "planID", id, "status", status)
		return fmt.Errorf("failed to update plan status: %w", err)
	}
	slog.Debug("SQLiteStore UpdatePlanStatus succeeded", "planID", id, "status", status)
	return requireRowAffected(res, models.ErrPlanNotFound)
}

func (s *SQLiteStore) SavePlanOutput(id string, output *models.GeneratedPlan) error {
	outputJSON, err := json.Marshal(output)
	if err != nil {
		slog.Error("SQLiteStore SavePlanOutput marshal failed", "error", err, "planID", id)
		return fmt.Errorf("failed to encode plan output: %w", err)
	}
	// Status and output are written in one statement so readers never see
	// one without the other.
	res, err := s.db.Exec(`UPDATE plans SET status = ?, output_json = ? WHERE id = ?`,
		models.PlanStatusReady, string(outputJSON), id)
	if err != nil {
		slog.Error("SQLiteStore SavePlanOutput failed", "error", err, "planID", id)
		return fmt.Errorf("failed to save plan output: %w", err)
	}
	slog.Debug("SQLiteStore SavePlanOutput succeeded", "planID", id)
	return requireRowAffected(res, models.ErrPlanNotFound)
}

func (s *SQLiteStore) UpsertStepProgress(planID string, stepIndex int, completedAt time.Time) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO plan_step_progress (plan_id, step_index, completed_at) VALUES (?, ?, ?)`,
		planID, stepIndex, completedAt)
	if err != nil {
		slog.Error("SQLiteStore UpsertStepProgress failed", "error", err, "planID", planID, "stepIndex", stepIndex)
		return fmt.Errorf("failed to upsert step progress: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteStepProgress(planID string, stepIndex int) error {
	_, err := s.db.Exec(`DELETE FROM plan_step_progress WHERE plan_id = ? AND step_index = ?`, planID, stepIndex)
	if err != nil {
		slog.Error("SQLiteStore DeleteStepProgress failed", "error", err, "planID", planID, "stepIndex", stepIndex)
		return fmt.Errorf("failed to delete step progress: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CompletedStepIndices(planID string) ([]int, error) {
	rows, err := s.db.Query(`SELECT step_index FROM plan_step_progress WHERE plan_id = ? ORDER BY step_index`, planID)
	if err != nil {
		slog.Error("SQLiteStore CompletedStepIndices query failed", "error", err, "planID", planID)
		return nil, fmt.Errorf("failed to query step progress: %w", err)
	}
	defer rows.Close()

	var indices []int
	for rows.Next() {
		var idx int
		if err := rows.Scan(&idx); err != nil {
			slog.Error("SQLiteStore CompletedStepIndices scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan step progress row: %w", err)
		}
		indices = append(indices, idx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate step progress rows: %w", err)
	}
	return indices, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	return s.db.Close()
}

// requireRowAffected maps a zero-row UPDATE to the given not-found error.
func requireRowAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
