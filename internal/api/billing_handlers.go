package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/orbitplan/orbit/internal/models"
)

// maxWebhookBody bounds webhook payloads; Stripe events stay well under this.
const maxWebhookBody = 1 << 16

type urlResponse struct {
	URL string `json:"url"`
}

func (s *Server) checkoutHandler(w http.ResponseWriter, r *http.Request, user *models.User) {
	if s.billing == nil {
		writeError(w, http.StatusInternalServerError, "Billing is not configured.")
		return
	}
	url, err := s.billing.CreateCheckoutSession(user.ID)
	if err != nil {
		slog.Error("Server.checkoutHandler: failed to create checkout session", "error", err, "userID", user.ID)
		writeError(w, http.StatusInternalServerError, "Failed to start checkout.")
		return
	}
	writeJSON(w, http.StatusOK, urlResponse{URL: url})
}

func (s *Server) portalHandler(w http.ResponseWriter, r *http.Request, user *models.User) {
	if s.billing == nil {
		writeError(w, http.StatusInternalServerError, "Billing is not configured.")
		return
	}
	url, err := s.billing.CreatePortalSession(user.ID)
	if err != nil {
		slog.Error("Server.portalHandler: failed to create portal session", "error", err, "userID", user.ID)
		writeError(w, http.StatusInternalServerError, "Failed to open billing portal.")
		return
	}
	writeJSON(w, http.StatusOK, urlResponse{URL: url})
}

type receivedResponse struct {
	Received bool `json:"received"`
}

// webhookHandler is called by Stripe, not by a signed-in user; the signature
// header is the only authentication.
func (s *Server) webhookHandler(w http.ResponseWriter, r *http.Request) {
	if s.billing == nil {
		writeError(w, http.StatusInternalServerError, "Billing is not configured.")
		return
	}
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body.")
		return
	}
	if err := s.billing.HandleWebhook(payload, r.Header.Get("Stripe-Signature")); err != nil {
		slog.Warn("Server.webhookHandler: webhook rejected", "error", err)
		writeError(w, http.StatusBadRequest, "Webhook verification failed.")
		return
	}
	writeJSON(w, http.StatusOK, receivedResponse{Received: true})
}

type actionPackRequest struct {
	PlanID string `json:"planId"`
	Phone  string `json:"phone"`
}

func (s *Server) sendActionPackHandler(w http.ResponseWriter, r *http.Request, user *models.User) {
	var req actionPackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if req.PlanID == "" || req.Phone == "" {
		writeError(w, http.StatusBadRequest, "Missing planId or phone.")
		return
	}

	err := s.notifier.SendActionPack(r.Context(), user.ID, req.PlanID, req.Phone)
	switch {
	case errors.Is(err, models.ErrMisconfigured):
		writeError(w, http.StatusInternalServerError, "SMS delivery is not configured.")
		return
	case errors.Is(err, models.ErrProFeature):
		writeError(w, http.StatusForbidden, "Action packs require a pro subscription.")
		return
	case errors.Is(err, models.ErrPlanNotFound):
		writeError(w, http.StatusNotFound, "Plan not found.")
		return
	case err != nil:
		slog.Error("Server.sendActionPackHandler: failed to send action pack", "error", err, "planID", req.PlanID)
		writeError(w, http.StatusBadRequest, "Failed to send action pack.")
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}
