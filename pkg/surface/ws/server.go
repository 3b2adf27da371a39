// Package ws implements the surface.Surface interface over a websocket.
//
// The server accepts a single client at a time (the core is single-session);
// a new connection replaces the previous one. Events are JSON frames of the
// form {"event": "...", "data": ...}. Writes to a missing or slow client are
// dropped — the surface contract is best-effort.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/sennet-ai/sennet/pkg/surface"
)

// Compile-time check that *Server satisfies [surface.Surface].
var _ surface.Surface = (*Server)(nil)

// writeTimeout bounds a single event write so a stalled client cannot block
// the turn pipeline.
const writeTimeout = 2 * time.Second

// frame is the JSON wire format for one surface event.
type frame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Server is a websocket surface. Register [Server.HandleUpgrade] on an HTTP
// mux to accept clients.
type Server struct {
	mu   sync.Mutex
	conn *websocket.Conn

	// OriginPatterns is passed through to the websocket accept options.
	// Empty means same-origin only.
	OriginPatterns []string

	// OnUtterance, when set, receives each inbound utterance frame. It is
	// invoked on a fresh goroutine per frame so a long turn never stalls
	// the read loop. Set it before registering HandleUpgrade.
	OnUtterance func(utterance string)
}

// New creates a Server with no connected client.
func New() *Server {
	return &Server{}
}

// HandleUpgrade upgrades an HTTP request to a websocket and installs it as
// the active client. An existing client is closed and replaced.
func (s *Server) HandleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.OriginPatterns,
	})
	if err != nil {
		slog.Warn("surface: websocket accept failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	s.mu.Lock()
	if s.conn != nil {
		_ = s.conn.Close(websocket.StatusGoingAway, "replaced by new client")
	}
	s.conn = conn
	s.mu.Unlock()

	slog.Info("surface: client connected", "remote", r.RemoteAddr)

	go s.readLoop(conn)
}

// readLoop consumes inbound frames until the connection dies. Only utterance
// frames are acted on; anything else is logged and dropped.
func (s *Server) readLoop(conn *websocket.Conn) {
	for {
		_, payload, err := conn.Read(context.Background())
		if err != nil {
			s.mu.Lock()
			if s.conn == conn {
				s.conn = nil
			}
			s.mu.Unlock()
			slog.Info("surface: client disconnected", "err", err)
			return
		}

		var f struct {
			Event string `json:"event"`
			Data  string `json:"data"`
		}
		if err := json.Unmarshal(payload, &f); err != nil {
			slog.Warn("surface: dropping malformed frame", "err", err)
			continue
		}
		if f.Event != surface.EventUtterance {
			slog.Debug("surface: ignoring inbound event", "event", f.Event)
			continue
		}

		s.mu.Lock()
		handler := s.OnUtterance
		s.mu.Unlock()
		if handler != nil && f.Data != "" {
			go handler(f.Data)
		}
	}
}

// Close shuts the active client connection, if any.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close(websocket.StatusNormalClosure, "server shutting down")
	s.conn = nil
	return err
}

// Typing emits an is-typing event.
func (s *Server) Typing(ctx context.Context, on bool) error {
	return s.emit(ctx, surface.EventTyping, on)
}

// Suggest emits quick-reply suggestions.
func (s *Server) Suggest(ctx context.Context, suggestions []string) error {
	return s.emit(ctx, surface.EventSuggest, suggestions)
}

// Answer emits a spoken reply.
func (s *Server) Answer(ctx context.Context, text string) error {
	return s.emit(ctx, surface.EventAnswer, text)
}

// emit writes one JSON frame to the active client. A missing client is not
// an error; a write failure drops the connection so the client can reconnect.
func (s *Server) emit(ctx context.Context, event string, data any) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		return nil
	}

	payload, err := json.Marshal(frame{Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("surface: encode %s event: %w", event, err)
	}

	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	if err := conn.Write(wctx, websocket.MessageText, payload); err != nil {
		slog.Warn("surface: dropping client after write failure", "event", event, "err", err)
		s.mu.Lock()
		if s.conn == conn {
			s.conn = nil
		}
		s.mu.Unlock()
		_ = conn.Close(websocket.StatusInternalError, "write failed")
		return fmt.Errorf("surface: write %s event: %w", event, err)
	}
	return nil
}
