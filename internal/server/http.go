package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"

	"github.com/Kumar2007/MarvelClashArena/internal/storage"
)

const (
	defaultLeaderboard = 10
	maxLeaderboard     = 100
)

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/ws", s.handleWebSocket)
	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/heroes", s.handleHeroes)
		r.Get("/leaderboard", s.handleLeaderboard)
		r.Get("/hero-stats", s.handleHeroStats)
		r.Get("/users/{id}/stats", s.handleUserStats)
	})

	c := cors.New(cors.Options{
		AllowedOrigins: s.cfg.Server.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(r)
}

// Health is the /healthz payload.
type Health struct {
	Status      string `json:"status"`
	Connections int    `json:"connections"`
	Matches     int    `json:"matches"`
	Bots        int    `json:"bots"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	resp := Health{Status: "ok", Connections: len(s.connections), Bots: len(s.agents)}
	s.mu.RUnlock()
	resp.Matches = s.registry.Len()
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHeroes(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.catalog.Heroes())
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := defaultLeaderboard
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxLeaderboard)
	}

	entries, err := s.store.Leaderboard(r.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to load leaderboard", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to load leaderboard")
		return
	}
	s.writeJSON(w, http.StatusOK, entries)
}

type heroStatsView struct {
	storage.HeroStats
	WinRate float64 `json:"winRate"`
}

func (s *Server) handleHeroStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.HeroStats(r.Context())
	if err != nil {
		s.logger.Error("Failed to load hero stats", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to load hero stats")
		return
	}
	out := make([]heroStatsView, 0, len(stats))
	for _, h := range stats {
		out = append(out, heroStatsView{HeroStats: h, WinRate: h.WinRate()})
	}
	s.writeJSON(w, http.StatusOK, out)
}

type userStatsResponse struct {
	User  *storage.User      `json:"user"`
	Stats *storage.UserStats `json:"stats"`
}

func (s *Server) handleUserStats(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		s.writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	user, err := s.store.GetUser(r.Context(), id)
	if err == nil {
		var stats *storage.UserStats
		stats, err = s.store.UserStats(r.Context(), id)
		if err == nil {
			s.writeJSON(w, http.StatusOK, userStatsResponse{User: user, Stats: stats})
			return
		}
	}
	if errors.Is(err, storage.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "user not found")
		return
	}
	s.logger.Error("Failed to load user stats", "user", id, "error", err)
	s.writeError(w, http.StatusInternalServerError, "failed to load user stats")
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("Failed to write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
