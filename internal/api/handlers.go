package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/orbitplan/orbit/internal/entitlements"
	"github.com/orbitplan/orbit/internal/identity"
	"github.com/orbitplan/orbit/internal/models"
	"github.com/orbitplan/orbit/internal/planner"
)

// planSummary is a plan plus its derived identity, the list-view shape.
type planSummary struct {
	models.Plan
	Identity identity.PlanIdentity `json:"identity"`
}

// planDetail adds the projected steps and progress, the detail-view shape.
type planDetail struct {
	models.Plan
	Identity identity.PlanIdentity   `json:"identity"`
	Steps    []models.FlowStep       `json:"steps"`
	Progress *planner.ProgressReport `json:"progress"`
}

func (s *Server) createPlanHandler(w http.ResponseWriter, r *http.Request, user *models.User) {
	var in models.PlanInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if err := in.Normalize(); err != nil {
		writeError(w, http.StatusBadRequest, inputErrorMessage(err))
		return
	}

	count, err := s.st.CountPlans(user.ID)
	if err != nil {
		slog.Error("Server.createPlanHandler: failed to count plans", "error", err, "userID", user.ID)
		writeError(w, http.StatusInternalServerError, "Failed to create plan.")
		return
	}
	limits := entitlements.ForTier(user.Tier)
	if count >= limits.MaxPlans {
		slog.Warn("Server.createPlanHandler: plan limit reached", "userID", user.ID, "tier", user.Tier, "count", count)
		writeError(w, http.StatusForbidden, "Plan limit reached for your current tier.")
		return
	}

	plan := &models.Plan{
		UserID:         user.ID,
		Title:          in.Title,
		GoalInput:      in.GoalInput,
		TimeframeWeeks: in.TimeframeWeeks,
		Intensity:      in.Intensity,
		Status:         models.PlanStatusDraft,
	}
	if err := s.st.CreatePlan(plan); err != nil {
		slog.Error("Server.createPlanHandler: failed to create plan", "error", err, "userID", user.ID)
		writeError(w, http.StatusInternalServerError, "Failed to create plan.")
		return
	}
	slog.Info("Server.createPlanHandler: plan created", "planID", plan.ID, "userID", user.ID)
	writeJSON(w, http.StatusCreated, planSummary{Plan: *plan, Identity: identity.ForGoal(plan.GoalInput)})
}

func (s *Server) listPlansHandler(w http.ResponseWriter, r *http.Request, user *models.User) {
	plans, err := s.st.ListPlans(user.ID)
	if err != nil {
		slog.Error("Server.listPlansHandler: failed to list plans", "error", err, "userID", user.ID)
		writeError(w, http.StatusInternalServerError, "Failed to list plans.")
		return
	}
	out := make([]planSummary, 0, len(plans))
	for _, p := range plans {
		out = append(out, planSummary{Plan: p, Identity: identity.ForGoal(p.GoalInput)})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getPlanHandler(w http.ResponseWriter, r *http.Request, user *models.User) {
	planID := r.PathValue("id")
	plan, err := s.st.GetPlanForUser(planID, user.ID)
	if err != nil {
		writePlanError(w, err, "Failed to load plan.")
		return
	}
	detail, err := s.buildPlanDetail(r, user, plan)
	if err != nil {
		slog.Error("Server.getPlanHandler: failed to build plan detail", "error", err, "planID", planID)
		writeError(w, http.StatusInternalServerError, "Failed to load plan.")
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) updatePlanHandler(w http.ResponseWriter, r *http.Request, user *models.User) {
	planID := r.PathValue("id")
	var in models.PlanInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if err := in.Normalize(); err != nil {
		writeError(w, http.StatusBadRequest, inputErrorMessage(err))
		return
	}

	// Ownership is checked before the write; the store update itself is
	// keyed by id only.
	if _, err := s.st.GetPlanForUser(planID, user.ID); err != nil {
		writePlanError(w, err, "Failed to update plan.")
		return
	}
	if err := s.st.UpdatePlanDetails(planID, in); err != nil {
		writePlanError(w, err, "Failed to update plan.")
		return
	}

	plan, err := s.st.GetPlanForUser(planID, user.ID)
	if err != nil {
		writePlanError(w, err, "Failed to update plan.")
		return
	}
	slog.Info("Server.updatePlanHandler: plan updated", "planID", planID, "userID", user.ID)
	writeJSON(w, http.StatusOK, planSummary{Plan: *plan, Identity: identity.ForGoal(plan.GoalInput)})
}

// buildPlanDetail assembles the detail-view shape for an already
// ownership-checked plan.
func (s *Server) buildPlanDetail(r *http.Request, user *models.User, plan *models.Plan) (*planDetail, error) {
	steps := []models.FlowStep{}
	if plan.Output != nil {
		steps = planner.ProjectSteps(plan.Output)
	}
	progress, err := s.pl.Progress(r.Context(), user.ID, plan.ID)
	if err != nil {
		return nil, err
	}
	return &planDetail{
		Plan:     *plan,
		Identity: identity.ForGoal(plan.GoalInput),
		Steps:    steps,
		Progress: progress,
	}, nil
}

type generateRequest struct {
	PlanID string `json:"planId"`
}

type generateResponse struct {
	OK     bool                  `json:"ok"`
	PlanID string                `json:"planId"`
	Status models.PlanStatus     `json:"status"`
	Output *models.GeneratedPlan `json:"output"`
}

func (s *Server) generateHandler(w http.ResponseWriter, r *http.Request, user *models.User) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if req.PlanID == "" {
		writeError(w, http.StatusBadRequest, "Missing planId.")
		return
	}

	plan, err := s.pl.Generate(r.Context(), req.PlanID, user.ID)
	if err != nil {
		status, message := generateErrorStatus(err)
		slog.Error("Server.generateHandler: generation failed", "error", err, "planID", req.PlanID, "userID", user.ID)
		writeError(w, status, message)
		return
	}
	writeJSON(w, http.StatusOK, generateResponse{
		OK:     true,
		PlanID: plan.ID,
		Status: plan.Status,
		Output: plan.Output,
	})
}

type toggleRequest struct {
	PlanID    string `json:"planId"`
	StepIndex *int   `json:"stepIndex"`
	Completed bool   `json:"completed"`
}

func (s *Server) toggleStepHandler(w http.ResponseWriter, r *http.Request, user *models.User) {
	var req toggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if req.PlanID == "" || req.StepIndex == nil {
		writeError(w, http.StatusBadRequest, "Missing planId or stepIndex.")
		return
	}

	err := s.pl.SetStepCompletion(r.Context(), user.ID, req.PlanID, *req.StepIndex, req.Completed)
	switch {
	case errors.Is(err, models.ErrInvalidStepIndex):
		writeError(w, http.StatusBadRequest, "Step index must be non-negative.")
		return
	case errors.Is(err, models.ErrPlanNotFound):
		writeError(w, http.StatusNotFound, "Plan not found.")
		return
	case err != nil:
		slog.Error("Server.toggleStepHandler: failed to update step", "error", err, "planID", req.PlanID)
		writeError(w, http.StatusInternalServerError, "Failed to update step.")
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func (s *Server) progressHandler(w http.ResponseWriter, r *http.Request, user *models.User) {
	planID := r.PathValue("id")
	report, err := s.pl.Progress(r.Context(), user.ID, planID)
	if err != nil {
		writePlanError(w, err, "Failed to load progress.")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// writePlanError maps store lookup failures onto the right status code.
func writePlanError(w http.ResponseWriter, err error, fallback string) {
	if errors.Is(err, models.ErrPlanNotFound) {
		writeError(w, http.StatusNotFound, "Plan not found.")
		return
	}
	slog.Error("api: plan operation failed", "error", err)
	writeError(w, http.StatusInternalServerError, fallback)
}

// inputErrorMessage renders plan input validation failures for clients.
func inputErrorMessage(err error) string {
	switch {
	case errors.Is(err, models.ErrEmptyGoal):
		return "Goal description is required."
	case errors.Is(err, models.ErrGoalTooLong):
		return "Goal description is too long."
	default:
		return "Invalid plan input."
	}
}

// generateErrorStatus maps generation failures onto status codes. Upstream
// and parsing failures have already moved the plan to status error; the
// precondition failures never touched it.
func generateErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrPlanNotFound), errors.Is(err, models.ErrUserNotFound):
		return http.StatusNotFound, "Plan not found."
	case errors.Is(err, models.ErrMisconfigured):
		return http.StatusInternalServerError, "Plan generation is not configured."
	case errors.Is(err, models.ErrGenerationQuotaUsed):
		return http.StatusForbidden, "Monthly generation limit reached for your current tier."
	case errors.Is(err, models.ErrInvalidJSON), errors.Is(err, models.ErrMalformedResponse):
		return http.StatusInternalServerError, "Failed to parse the generated plan."
	case errors.Is(err, models.ErrEmptyGeneration):
		return http.StatusInternalServerError, "Generation produced an empty plan. Try again."
	default:
		return http.StatusInternalServerError, "Failed to generate plan."
	}
}
