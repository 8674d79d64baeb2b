// Package api implements Orbit's HTTP surface: plan CRUD, generation,
// step progress, billing, and action-pack delivery.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/orbitplan/orbit/internal/billing"
	"github.com/orbitplan/orbit/internal/notify"
	"github.com/orbitplan/orbit/internal/planner"
	"github.com/orbitplan/orbit/internal/store"
)

const defaultAddr = ":8080"

// Opts holds configuration options for the API server.
type Opts struct {
	Addr string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// Server holds the wired dependencies behind the HTTP handlers. billing may
// be nil when Stripe is not configured; the billing endpoints then fail with
// a configuration error instead of panicking.
type Server struct {
	addr     string
	st       store.Store
	pl       *planner.Planner
	billing  *billing.Service
	notifier *notify.Service
	srv      *http.Server
}

// NewServer creates the API server. The listen address falls back to the
// API_ADDR environment variable, then to :8080.
func NewServer(st store.Store, pl *planner.Planner, billingSvc *billing.Service, notifier *notify.Service, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = os.Getenv("API_ADDR")
	}
	if cfg.Addr == "" {
		cfg.Addr = defaultAddr
	}
	return &Server{
		addr:     cfg.Addr,
		st:       st,
		pl:       pl,
		billing:  billingSvc,
		notifier: notifier,
	}
}

// Handler returns the route table. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)

	mux.HandleFunc("POST /api/plans", s.withUser(s.createPlanHandler))
	mux.HandleFunc("GET /api/plans", s.withUser(s.listPlansHandler))
	mux.HandleFunc("GET /api/plans/{id}", s.withUser(s.getPlanHandler))
	mux.HandleFunc("PUT /api/plans/{id}", s.withUser(s.updatePlanHandler))
	mux.HandleFunc("GET /api/plans/{id}/progress", s.withUser(s.progressHandler))
	mux.HandleFunc("POST /api/plans/generate", s.withUser(s.generateHandler))
	mux.HandleFunc("POST /api/plan-steps/toggle", s.withUser(s.toggleStepHandler))

	mux.HandleFunc("POST /api/billing/checkout", s.withUser(s.checkoutHandler))
	mux.HandleFunc("POST /api/billing/portal", s.withUser(s.portalHandler))
	mux.HandleFunc("POST /api/billing/webhook", s.webhookHandler)

	mux.HandleFunc("POST /api/action-packs/send", s.withUser(s.sendActionPackHandler))

	return mux
}

// Run starts the HTTP server and blocks until it stops.
func (s *Server) Run() error {
	s.srv = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("Server.Run: listening", "addr", s.addr)
	return s.srv.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	slog.Info("Server.Shutdown: stopping HTTP server")
	return s.srv.Shutdown(ctx)
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "healthy", Timestamp: time.Now().UTC()})
}
