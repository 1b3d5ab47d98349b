// internal/httpserver/server.go
//
// HTTP server wiring for the whack-a-mole backend.
// Responsibilities:
//   - Router + middleware (request IDs, real IP, panic recovery, request log, CORS).
//   - Browser client: "/" (index.html) and "/static/*" (embedded assets).
//   - Game sessions over WebSocket: "/ws" (see ws.go).
//   - JSON API: "/health", "/game/{id}", "/scores/*" (see routes_scores.go).
//
// Notes:
//   - Each WebSocket connection owns one game engine, registered in the
//     session store for as long as the connection lives.
//   - CORS is only emitted when a client origin is configured.
//   - API routes get a JSON content type and a handler timeout; the
//     WebSocket route does not, since sessions are long-lived.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/whackamole/assets"
	"github.com/robalobadob/whackamole/internal/config"
	"github.com/robalobadob/whackamole/internal/game"
	"github.com/robalobadob/whackamole/internal/scores"
	"github.com/robalobadob/whackamole/internal/store"
)

// Server bundles router, live session registry and the optional score store.
type Server struct {
	r        *chi.Mux
	cfg      *config.Config
	sessions store.Store
	scores   *scores.Store // nil when score history is disabled
	upgrader websocket.Upgrader

	newScheduler func() game.Scheduler
}

// Option configures a Server.
type Option func(*Server)

// WithSchedulerFactory sets how each session's engine gets its timer.
// Defaults to the wall clock.
func WithSchedulerFactory(fn func() game.Scheduler) Option {
	return func(s *Server) { s.newScheduler = fn }
}

// New constructs a Server, installs middleware, and registers routes.
// sc may be nil to run without score history.
func New(cfg *config.Config, st store.Store, sc *scores.Store, opts ...Option) *Server {
	s := &Server{
		r:            chi.NewRouter(),
		cfg:          cfg,
		sessions:     st,
		scores:       sc,
		newScheduler: func() game.Scheduler { return game.RealScheduler{} },
	}
	for _, o := range opts {
		o(s)
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}

	// --- middleware ---
	s.r.Use(chimw.RequestID) // add X-Request-ID
	s.r.Use(chimw.RealIP)    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(chimw.Recoverer) // recover from panics
	s.r.Use(requestLogger)
	s.r.Use(s.cors)

	// --- browser client ---
	s.r.Get("/", s.handleIndex)
	s.r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(assets.Web()))))

	// --- game sessions ---
	s.r.Get("/ws", s.handleWS)

	// --- JSON API ---
	s.r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(10 * time.Second))
		r.Use(jsonContentType)

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "sessions": s.sessions.Len()})
		})
		r.Get("/game/{id}", s.handleSnapshot)
		s.mountScores(r)
	})

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found")
	})

	return s
}

// Start serves HTTP on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	hs := &http.Server{
		Addr:              addr,
		Handler:           s.r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- hs.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return hs.Shutdown(shutdownCtx)
	}
}

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// ----------------------------- handlers ------------------------------------

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	page, err := assets.Index()
	if err != nil {
		log.Error().Err(err).Msg("read index.html")
		http.Error(w, "missing client", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}

// handleSnapshot returns the current state of a live game.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	eng, err := s.sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	_ = json.NewEncoder(w).Encode(eng.Snapshot())
}

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// cors enables credentialed CORS for the configured client origin, if any.
func (s *Server) cors(next http.Handler) http.Handler {
	origin := s.cfg.Server.ClientOrigin
	if origin == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogger logs every request at debug level.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("reqId", chimw.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}

// writeError sends a JSON error body with the given status.
func writeError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code})
}
