// internal/httpserver/routes_scores.go
//
// HTTP routes for the score history.
// Exposes two endpoints under /scores:
//   - GET /scores/top  → best finished games across all players
//   - GET /scores/mine → the calling player's finished games, newest first
//
// Both accept ?limit= (default 20, max 100). Rows are written by the game
// session when a game runs out of time (see ws.go). When score history is
// disabled both endpoints return an empty list.

package httpserver

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/whackamole/internal/scores"
)

// scoresRes is returned by both /scores endpoints.
type scoresRes struct {
	Scores []scores.Row `json:"scores"`
}

// mountScores registers all /scores routes.
func (s *Server) mountScores(r chi.Router) {
	r.Route("/scores", func(r chi.Router) {
		r.Get("/top", s.handleTop)
		r.Get("/mine", s.handleMine)
	})
}

func (s *Server) handleTop(w http.ResponseWriter, r *http.Request) {
	if s.scores == nil {
		_ = json.NewEncoder(w).Encode(scoresRes{Scores: []scores.Row{}})
		return
	}
	rows, err := s.scores.Top(r.Context(), limitParam(r))
	if err != nil {
		log.Error().Err(err).Msg("leaderboard")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	_ = json.NewEncoder(w).Encode(scoresRes{Scores: rows})
}

// handleMine returns the history of the player identified by the request's
// token. Requests without a valid token get an empty list.
func (s *Server) handleMine(w http.ResponseWriter, r *http.Request) {
	id, ok := s.playerFromRequest(r)
	if !ok || s.scores == nil {
		_ = json.NewEncoder(w).Encode(scoresRes{Scores: []scores.Row{}})
		return
	}
	rows, err := s.scores.ByPlayer(r.Context(), id, limitParam(r))
	if err != nil {
		log.Error().Err(err).Str("player", id).Msg("player history")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	_ = json.NewEncoder(w).Encode(scoresRes{Scores: rows})
}

// limitParam reads ?limit=; the store applies defaults and caps.
func limitParam(r *http.Request) int {
	n, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return n
}
