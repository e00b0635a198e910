package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"pageforge/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The extension talks to a localhost coordinator; browser origins vary
	// per captured page, so the origin check carries no signal here.
	CheckOrigin: func(*http.Request) bool { return true },
}

const (
	wsWriteTimeout = 5 * time.Second
	wsPingInterval = 30 * time.Second
)

// snapshotMessage is the first frame on every progress connection, so a
// listener that missed earlier events starts from consistent state.
type snapshotMessage struct {
	Type     string             `json:"type"` // sessions.snapshot
	Sessions []*session.Session `json:"sessions"`
}

// handleProgress streams session progress events over a websocket.
// GET /clone/progress
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	sessions, events, cancel, err := s.orch.Subscribe(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	defer cancel()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	if sessions == nil {
		sessions = []*session.Session{}
	}
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteJSON(snapshotMessage{Type: "sessions.snapshot", Sessions: sessions}); err != nil {
		return
	}

	// Read pump: discard client frames, notice disconnects.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				s.logger.Debug("websocket write failed, dropping subscriber", "error", err)
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}
