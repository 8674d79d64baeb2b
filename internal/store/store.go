// Package store provides storage backends for Orbit.
//
// It includes an in-memory store for tests and development, plus SQLite and
// PostgreSQL backed stores for persistent deployments.
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/orbitplan/orbit/internal/models"
)

// Store is the persistence interface shared by all backends.
type Store interface {
	// Users
	GetOrCreateUser(authID, email, name string) (*models.User, error)
	GetUser(id string) (*models.User, error)
	GetUserByStripeCustomerID(customerID string) (*models.User, error)
	SetStripeCustomerID(userID, customerID string) error
	ApplyCheckoutSession(userID, customerID, subscriptionID string) error
	UpdateSubscription(customerID, subscriptionID, status string, periodEnd *time.Time, tier models.PlanTier) error
	GenerationUsage(userID string, periodStart time.Time) (int, error)
	RecordGeneration(userID string, periodStart time.Time) error

	// Plans
	CreatePlan(p *models.Plan) error
	GetPlanForUser(id, userID string) (*models.Plan, error)
	ListPlans(userID string) ([]models.Plan, error)
	CountPlans(userID string) (int, error)
	UpdatePlanDetails(id string, in models.PlanInput) error
	UpdatePlanStatus(id string, status models.PlanStatus) error
	SavePlanOutput(id string, output *models.GeneratedPlan) error

	// Step progress
	UpsertStepProgress(planID string, stepIndex int, completedAt time.Time) error
	DeleteStepProgress(planID string, stepIndex int) error
	CompletedStepIndices(planID string) ([]int, error)

	Close() error
}

// InMemoryStore is a map-backed Store used in tests and local development.
type InMemoryStore struct {
	mu       sync.RWMutex
	users    map[string]*models.User
	plans    map[string]*models.Plan
	progress map[string]map[int]time.Time // planID -> stepIndex -> completedAt
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		users:    make(map[string]*models.User),
		plans:    make(map[string]*models.Plan),
		progress: make(map[string]map[int]time.Time),
	}
}

func (s *InMemoryStore) GetOrCreateUser(authID, email, name string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.AuthID == authID {
			cp := *u
			return &cp, nil
		}
	}
	now := time.Now().UTC()
	u := &models.User{
		ID:                uuid.NewString(),
		AuthID:            authID,
		Email:             email,
		Name:              name,
		Tier:              models.TierFree,
		GenerationsPeriod: now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	s.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (s *InMemoryStore) GetUser(id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *InMemoryStore) GetUserByStripeCustomerID(customerID string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.StripeCustomerID == customerID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, models.ErrUserNotFound
}

func (s *InMemoryStore) SetStripeCustomerID(userID, customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return models.ErrUserNotFound
	}
	u.StripeCustomerID = customerID
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *InMemoryStore) ApplyCheckoutSession(userID, customerID, subscriptionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return models.ErrUserNotFound
	}
	if customerID != "" {
		u.StripeCustomerID = customerID
	}
	if subscriptionID != "" {
		u.StripeSubscriptionID = subscriptionID
	}
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *InMemoryStore) UpdateSubscription(customerID, subscriptionID, status string, periodEnd *time.Time, tier models.PlanTier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.StripeCustomerID == customerID {
			u.StripeSubscriptionID = subscriptionID
			u.SubscriptionStatus = status
			u.CurrentPeriodEnd = periodEnd
			u.Tier = tier
			u.UpdatedAt = time.Now().UTC()
		}
	}
	return nil
}

func (s *InMemoryStore) GenerationUsage(userID string, periodStart time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return 0, models.ErrUserNotFound
	}
	if u.GenerationsPeriod.Before(periodStart) {
		return 0, nil
	}
	return u.GenerationsUsed, nil
}

func (s *InMemoryStore) RecordGeneration(userID string, periodStart time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return models.ErrUserNotFound
	}
	if u.GenerationsPeriod.Before(periodStart) {
		u.GenerationsPeriod = periodStart
		u.GenerationsUsed = 0
	}
	u.GenerationsUsed++
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *InMemoryStore) CreatePlan(p *models.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	cp := *p
	s.plans[p.ID] = &cp
	return nil
}

func (s *InMemoryStore) GetPlanForUser(id, userID string) (*models.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.plans[id]
	if !ok || p.UserID != userID {
		return nil, models.ErrPlanNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *InMemoryStore) ListPlans(userID string) ([]models.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Plan
	for _, p := range s.plans {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) CountPlans(userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, p := range s.plans {
		if p.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (s *InMemoryStore) UpdatePlanDetails(id string, in models.PlanInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plans[id]
	if !ok {
		return models.ErrPlanNotFound
	}
	p.Title = in.Title
	p.GoalInput = in.GoalInput
	p.TimeframeWeeks = in.TimeframeWeeks
	p.Intensity = in.Intensity
	return nil
}

func (s *InMemoryStore) UpdatePlanStatus(id string, status models.PlanStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plans[id]
	if !ok {
		return models.ErrPlanNotFound
	}
	p.Status = status
	return nil
}

func (s *InMemoryStore) SavePlanOutput(id string, output *models.GeneratedPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plans[id]
	if !ok {
		return models.ErrPlanNotFound
	}
	// Status and output change together so readers never see one without the other.
	p.Status = models.PlanStatusReady
	p.Output = output
	return nil
}

func (s *InMemoryStore) UpsertStepProgress(planID string, stepIndex int, completedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.progress[planID]
	if !ok {
		m = make(map[int]time.Time)
		s.progress[planID] = m
	}
	m[stepIndex] = completedAt
	return nil
}

func (s *InMemoryStore) DeleteStepProgress(planID string, stepIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.progress[planID]; ok {
		delete(m, stepIndex)
	}
	return nil
}

func (s *InMemoryStore) CompletedStepIndices(planID string) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []int
	for idx := range s.progress[planID] {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }
