// Package api exposes the sync wizard as a JSON HTTP API. Handlers are
// orchestration only: session bookkeeping and translation between HTTP
// and the core packages. All reconciliation semantics live below.
package api

import (
	"database/sql"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/smartlead-sync/internal/cache"
	"github.com/ignite/smartlead-sync/internal/config"
	"github.com/ignite/smartlead-sync/internal/repository/postgres"
)

// Server wires the wizard handlers to their collaborators.
type Server struct {
	cfg      *config.Config
	rdb      *redis.Client
	sessions *SessionStore
	runs     *cache.RunStore
	history  *postgres.RunHistoryRepo // nil when postgres is disabled
}

// NewServer creates the API server. db may be nil when run history is
// disabled.
func NewServer(cfg *config.Config, rdb *redis.Client, db *sql.DB) *Server {
	s := &Server{
		cfg:      cfg,
		rdb:      rdb,
		sessions: NewSessionStore(),
		runs:     cache.NewRunStore(rdb),
	}
	if db != nil {
		s.history = postgres.NewRunHistoryRepo(db)
	}
	return s
}

// Router builds the chi router with middleware and all wizard routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.requireAuth)

		r.Post("/sessions", s.handleCreateSession)
		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Delete("/", s.handleDeleteSession)
			r.Post("/reset", s.handleReset)

			r.Get("/campaigns", s.handleListCampaigns)
			r.Post("/campaign", s.handleSelectCampaign)
			r.Post("/csv", s.handleUploadCSV)
			r.Get("/preview", s.handlePreview)
			r.Post("/apply", s.handleApply)
			r.Get("/run", s.handleGetRun)
		})

		r.Get("/runs", s.handleRunHistory)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}
