// internal/httpserver/player.go
//
// Anonymous player identity.
// A player is a random UUID carried in a signed HS256 JWT, stored in a
// cookie (or sent as a bearer token). It ties finished games in the score
// history to the browser that played them; there are no accounts.

package httpserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// signPlayer creates a token for id that expires after the configured days.
func (s *Server) signPlayer(id string) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(time.Duration(s.cfg.Auth.ExpiresDays) * 24 * time.Hour)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":  id,
		"exp": exp.Unix(),
		"iat": now.Unix(),
	})
	ss, err := t.SignedString([]byte(s.cfg.Auth.JWTSecret))
	return ss, exp, err
}

// parsePlayer validates a token and returns the player ID inside it.
func (s *Server) parsePlayer(tok string) (string, bool) {
	claims := jwt.MapClaims{}
	t, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.Auth.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !t.Valid {
		return "", false
	}
	id, _ := claims["id"].(string)
	return id, id != ""
}

// playerFromRequest returns the player ID of a valid token, if present.
func (s *Server) playerFromRequest(r *http.Request) (string, bool) {
	tok := s.bearerOrCookie(r)
	if tok == "" {
		return "", false
	}
	return s.parsePlayer(tok)
}

// playerCookie returns the request's player ID, minting a new player and
// the cookie to set when the request carries no valid token.
func (s *Server) playerCookie(r *http.Request) (string, *http.Cookie) {
	if id, ok := s.playerFromRequest(r); ok {
		return id, nil
	}
	id := uuid.NewString()
	tok, exp, err := s.signPlayer(id)
	if err != nil {
		log.Warn().Err(err).Msg("sign player token")
		return id, nil
	}
	return id, &http.Cookie{
		Name:     s.cfg.Auth.CookieName,
		Value:    tok,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
		Expires:  exp,
	}
}

// bearerOrCookie extracts a bearer token from Authorization header or player cookie.
func (s *Server) bearerOrCookie(r *http.Request) string {
	// Authorization: Bearer <token>
	if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	if c, err := r.Cookie(s.cfg.Auth.CookieName); err == nil {
		return c.Value
	}
	return ""
}
