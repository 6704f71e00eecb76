package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/obstaclehub/records-api/internal/auth"
	"github.com/obstaclehub/records-api/internal/dependencies/clock"
	"github.com/obstaclehub/records-api/internal/dependencies/random"
	"github.com/obstaclehub/records-api/internal/middleware"
	"github.com/obstaclehub/records-api/internal/ranking"
	"github.com/obstaclehub/records-api/internal/storage"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger      *slog.Logger
	Coordinator *auth.Coordinator
	Tokens      *auth.TokenCache
	Verifier    TokenVerifier
	Engine      *ranking.Engine
	Store       storage.RecordStore
	Clock       clock.Clock
	Random      random.Random
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	authHandler := NewAuthHandler(cfg.Coordinator, cfg.Tokens, cfg.Verifier, cfg.Random)
	recordsHandler := NewRecordsHandler(cfg.Engine, cfg.Store, cfg.Tokens, cfg.Clock)

	r.Use(middleware.Recovery(cfg.Logger, panicHandler))
	r.Use(middleware.Logging(cfg.Logger))

	// Game-side auth flow
	r.HandleFunc("/auth/request", authHandler.RequestAuth).Methods(http.MethodPost)
	r.HandleFunc("/auth/oauth/wait", authHandler.WaitOAuth).Methods(http.MethodPost)
	r.HandleFunc("/auth/code/validate", authHandler.ValidateCode).Methods(http.MethodPost)

	// Browser-side auth flow
	r.HandleFunc("/auth/oauth/give", authHandler.GiveToken).Methods(http.MethodPost)
	r.HandleFunc("/auth/code/wait", authHandler.WaitCode).Methods(http.MethodPost)

	// Records
	r.HandleFunc("/player/finished", recordsHandler.Finished).Methods(http.MethodPost)
	r.HandleFunc("/map/{uid}/leaderboard", recordsHandler.Leaderboard).Methods(http.MethodGet)
	r.HandleFunc("/overview", recordsHandler.Overview).Methods(http.MethodGet)

	r.HandleFunc("/health", healthHandler).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(notFoundHandler)

	return r
}

func panicHandler(w http.ResponseWriter, _ *http.Request, _ any) {
	writeError(w, &httpError{http.StatusInternalServerError, ErrorResponse{typeInternal, "Internal server error"}})
}

func notFoundHandler(w http.ResponseWriter, _ *http.Request) {
	writeError(w, &httpError{http.StatusNotFound, ErrorResponse{typeEndpointNotFound, "Not found"}})
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
