// internal/httpserver/ws.go
//
// WebSocket game sessions.
// Each connection gets its own engine. The engine renders through wsSink,
// which turns every Sink call into a JSON message queued for the browser;
// the browser sends back whacks and control-button presses.
//
// Outbound: hello, grid, show, hit, remove, score, gameover, controls.
// Inbound:  {"type":"whack","cell":"block_4"}, start, stop, reset.
//
// "/ws?mode=daily" seeds the engine from today's date so every player gets
// the same layout for their first game on that connection.

package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/whackamole/internal/daily"
	"github.com/robalobadob/whackamole/internal/game"
	"github.com/robalobadob/whackamole/internal/scores"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 512
	// Outbound messages buffered per client before it is dropped.
	sendBuffer = 256
)

// outbound is a message to the browser.
type outbound struct {
	Type      string         `json:"type"`
	SessionID string         `json:"sessionId,omitempty"`
	Mode      string         `json:"mode,omitempty"`
	Date      string         `json:"date,omitempty"`
	Cell      string         `json:"cell,omitempty"`
	Cells     []string       `json:"cells,omitempty"`
	Score     *scoreMsg      `json:"score,omitempty"`
	GameOver  *bool          `json:"gameOver,omitempty"`
	Controls  *game.Controls `json:"controls,omitempty"`
}

type scoreMsg struct {
	Hits      int `json:"hits"`
	Misses    int `json:"misses"`
	Remaining int `json:"remaining"`
}

// inbound is a message from the browser.
type inbound struct {
	Type string `json:"type"` // whack | start | stop | reset
	Cell string `json:"cell"`
}

// client owns one WebSocket connection and its outbound queue.
type client struct {
	conn *websocket.Conn
	log  zerolog.Logger

	mu     sync.Mutex // guards send and closed
	send   chan []byte
	closed bool
}

func newClient(conn *websocket.Conn, l zerolog.Logger) *client {
	return &client{conn: conn, log: l, send: make(chan []byte, sendBuffer)}
}

// enqueue queues m without blocking. A client that cannot keep up is
// dropped: its queue is closed and the write pump hangs up.
func (c *client) enqueue(m outbound) {
	b, err := json.Marshal(m)
	if err != nil {
		c.log.Error().Err(err).Str("type", m.Type).Msg("encode message")
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- b:
	default:
		c.log.Warn().Msg("send queue full, dropping client")
		c.closed = true
		close(c.send)
	}
}

// shutdown closes the outbound queue once.
func (c *client) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// writePump drains the queue to the connection and keeps it alive with pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump decodes inbound messages and hands them to fn until the peer
// goes away.
func (c *client) readPump(fn func(inbound)) {
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug().Err(err).Msg("read")
			}
			return
		}
		var in inbound
		if err := json.Unmarshal(data, &in); err != nil {
			c.log.Warn().Err(err).Msg("bad message")
			continue
		}
		fn(in)
	}
}

// wsSink renders a game by queueing messages on a client.
type wsSink struct{ c *client }

func (s wsSink) RenderGrid(ids []string) { s.c.enqueue(outbound{Type: "grid", Cells: ids}) }
func (s wsSink) ShowEntity(id string) { s.c.enqueue(outbound{Type: "show", Cell: id}) }
func (s wsSink) ShowHitEntity(id string) { s.c.enqueue(outbound{Type: "hit", Cell: id}) }
func (s wsSink) RemoveEntity(id string) { s.c.enqueue(outbound{Type: "remove", Cell: id}) }

func (s wsSink) UpdateScore(hits, misses, remaining int) {
	s.c.enqueue(outbound{Type: "score", Score: &scoreMsg{Hits: hits, Misses: misses, Remaining: remaining}})
}

func (s wsSink) SetGameOver(over bool) {
	s.c.enqueue(outbound{Type: "gameover", GameOver: &over})
}

func (s wsSink) SetControls(c game.Controls) {
	s.c.enqueue(outbound{Type: "controls", Controls: &c})
}

// handleWS upgrades the request and runs one game session until the
// browser disconnects.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	playerID, cookie := s.playerCookie(r)
	hdr := http.Header{}
	if cookie != nil {
		hdr.Add("Set-Cookie", cookie.String())
	}
	conn, err := s.upgrader.Upgrade(w, r, hdr)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		log.Debug().Err(err).Msg("websocket upgrade")
		return
	}

	sessionID := uuid.NewString()
	l := log.With().Str("session", sessionID).Str("player", playerID).Logger()
	c := newClient(conn, l)

	hello := outbound{Type: "hello", SessionID: sessionID, Mode: "random"}
	opts := []game.Option{
		game.WithID(sessionID),
		game.WithScheduler(s.newScheduler()),
		game.WithMaxClock(s.cfg.Game.MaxClock),
		game.WithTickInterval(s.cfg.Game.TickInterval.Duration),
		game.WithRestartOnResume(s.cfg.Game.RestartOnResume),
		game.WithLogger(l),
		game.WithGameOverHook(func(res game.Result) { s.recordResult(playerID, res) }),
	}
	if r.URL.Query().Get("mode") == "daily" {
		now := time.Now()
		hello.Mode, hello.Date = "daily", daily.DateKey(now)
		opts = append(opts, game.WithRand(daily.Rand(now, s.cfg.Game.DailySalt)))
	}
	c.enqueue(hello)
	eng := game.New(wsSink{c}, opts...)

	ctx := context.Background()
	_ = s.sessions.Save(ctx, eng)
	// The queue holds the opening messages until the session is registered.
	go c.writePump()
	l.Info().Msg("session opened")

	c.readPump(func(in inbound) {
		switch in.Type {
		case "whack":
			eng.Click(in.Cell)
		case "start":
			eng.Start()
		case "stop":
			eng.Stop()
		case "reset":
			eng.Reset()
		default:
			l.Warn().Str("type", in.Type).Msg("unknown message type")
		}
	})

	eng.Close()
	_ = s.sessions.Delete(ctx, sessionID)
	c.shutdown()
	l.Info().Msg("session closed")
}

// recordResult stores a finished game. Failures are logged only.
func (s *Server) recordResult(playerID string, res game.Result) {
	if s.scores == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.scores.Insert(ctx, scores.Row{
		PlayerID:   playerID,
		GameID:     res.GameID,
		Hits:       res.Hits,
		Misses:     res.Misses,
		MaxClock:   res.MaxClock,
		FinishedAt: res.FinishedAt,
	})
	if err != nil {
		log.Warn().Err(err).Str("gameId", res.GameID).Msg("record score")
	}
}

// checkOrigin accepts same-host pages and the configured client origin.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if s.cfg.Server.ClientOrigin != "" && origin == s.cfg.Server.ClientOrigin {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}
