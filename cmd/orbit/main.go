// Orbit turns a free-text goal into a structured multi-week plan and tracks
// progress against it. This binary wires the store, the generation client,
// billing, and SMS delivery into the HTTP API server.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/orbitplan/orbit/internal/api"
	"github.com/orbitplan/orbit/internal/billing"
	"github.com/orbitplan/orbit/internal/genai"
	"github.com/orbitplan/orbit/internal/notify"
	"github.com/orbitplan/orbit/internal/planner"
	"github.com/orbitplan/orbit/internal/sms"
	"github.com/orbitplan/orbit/internal/store"
	"github.com/orbitplan/orbit/internal/util"
)

const (
	defaultStateDir   = "/var/lib/orbit"
	defaultSQLiteFile = "orbit.db"
	shutdownTimeout   = 10 * time.Second
)

func main() {
	// A missing .env file is fine; the environment may be set directly.
	if err := godotenv.Load(); err != nil {
		slog.Debug("main: no .env file loaded", "error", err)
	}

	level := slog.LevelInfo
	if util.ParseBoolEnv("ORBIT_DEBUG", false) {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	var (
		dbDSN = flag.String("db", util.GetenvDefault("DATABASE_URL", ""),
			"database DSN (PostgreSQL URL or SQLite file path); defaults to a SQLite file under the state directory")
		stateDir = flag.String("state-dir", util.GetenvDefault("ORBIT_STATE_DIR", defaultStateDir),
			"directory for Orbit state (used for the default SQLite database)")
		addr = flag.String("addr", util.GetenvDefault("API_ADDR", ""),
			"HTTP listen address (default :8080)")
	)
	flag.Parse()

	st, err := openStore(*dbDSN, *stateDir)
	if err != nil {
		slog.Error("main: failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	// Optional integrations degrade to a disabled state instead of refusing
	// to start; the affected endpoints report the misconfiguration.
	var gen planner.Generator
	if client, err := genai.NewClient(); err != nil {
		slog.Warn("main: plan generation disabled", "error", err)
	} else {
		gen = client
	}
	pl := planner.New(st, gen)

	var sender sms.Sender
	if client, err := sms.NewClient(); err != nil {
		slog.Warn("main: SMS delivery disabled", "error", err)
	} else {
		sender = client
	}
	notifier := notify.NewService(st, pl, sender)

	var billingSvc *billing.Service
	if svc, err := billing.NewService(st); err != nil {
		slog.Warn("main: billing disabled", "error", err)
	} else {
		billingSvc = svc
	}

	var serverOpts []api.Option
	if *addr != "" {
		serverOpts = append(serverOpts, api.WithAddr(*addr))
	}
	srv := api.NewServer(st, pl, billingSvc, notifier, serverOpts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("main: shutdown failed", "error", err)
		}
	}()

	if err := srv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("main: server exited", "error", err)
		os.Exit(1)
	}
	slog.Info("main: server stopped")
}

// openStore selects the backend from the DSN. An empty DSN means a SQLite
// file under the state directory.
func openStore(dsn, stateDir string) (store.Store, error) {
	if dsn == "" {
		dsn = filepath.Join(stateDir, defaultSQLiteFile)
	}
	switch store.DetectDSNType(dsn) {
	case "postgres":
		slog.Info("main: using PostgreSQL store")
		return store.NewPostgresStore(store.WithPostgresDSN(dsn))
	default:
		slog.Info("main: using SQLite store", "path", dsn)
		return store.NewSQLiteStore(store.WithSQLiteDSN(dsn))
	}
}
