// Package api exposes quill's HTTP surface: health, status, and the manual
// recovery trigger.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MikeSquared-Agency/quill/internal/recovery"
)

// Sweeper runs one recovery pass.
type Sweeper interface {
	Sweep(ctx context.Context) recovery.Summary
}

type Server struct {
	router        *chi.Mux
	port          int
	recoveryToken string
	sweeper       Sweeper
	logger        *slog.Logger
}

func NewServer(port int, recoveryToken string, sweeper Sweeper, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:        router,
		port:          port,
		recoveryToken: recoveryToken,
		sweeper:       sweeper,
		logger:        logger,
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/quill/status", s.status)
	router.Post("/recovery", s.runRecovery)

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("API server starting", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"agent":  "quill",
		"status": "active",
	})
}

// runRecovery triggers one synchronous sweep. The endpoint is disabled unless
// a recovery token is configured, and the token check is constant-time.
func (s *Server) runRecovery(w http.ResponseWriter, r *http.Request) {
	if s.recoveryToken == "" || s.sweeper == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "recovery is not configured"})
		return
	}

	got := r.Header.Get("X-Recovery-Token")
	if subtle.ConstantTimeCompare([]byte(got), []byte(s.recoveryToken)) != 1 {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	s.logger.Info("manual recovery sweep requested")
	sum := s.sweeper.Sweep(r.Context())
	writeJSON(w, http.StatusOK, sum)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
