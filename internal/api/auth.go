package api

import (
	"log/slog"
	"net/http"

	"github.com/orbitplan/orbit/internal/models"
)

// Identity headers set by the authenticating reverse proxy. Requests
// without them are rejected; Orbit never does its own credential checks.
const (
	headerUserID    = "X-Orbit-User-Id"
	headerUserEmail = "X-Orbit-User-Email"
	headerUserName  = "X-Orbit-User-Name"
)

type authedHandler func(w http.ResponseWriter, r *http.Request, user *models.User)

// withUser resolves the proxy identity headers to a stored user, creating
// the row on first sight, and rejects unauthenticated requests.
func (s *Server) withUser(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authID := r.Header.Get(headerUserID)
		email := r.Header.Get(headerUserEmail)
		if authID == "" || email == "" {
			writeError(w, http.StatusUnauthorized, "Authentication required.")
			return
		}

		user, err := s.st.GetOrCreateUser(authID, email, r.Header.Get(headerUserName))
		if err != nil {
			slog.Error("Server.withUser: failed to resolve user", "error", err, "authID", authID)
			writeError(w, http.StatusInternalServerError, "Failed to resolve user.")
			return
		}
		next(w, r, user)
	}
}
