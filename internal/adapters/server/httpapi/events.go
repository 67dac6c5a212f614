package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hylla/activitytask/internal/adapters/server/common"
)

const (
	// eventWriteTimeout bounds one websocket frame write.
	eventWriteTimeout = 10 * time.Second
	// eventPongTimeout closes streams whose peer stops answering pings.
	eventPongTimeout = 60 * time.Second
	// eventPingInterval must stay below eventPongTimeout.
	eventPingInterval = 25 * time.Second
)

// handleEvents serves GET `/events` as a websocket stream of committed lifecycle events.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	// Subscribe before the handshake so no event committed after it is missed.
	events, cancel := h.engine.Subscribe()
	defer cancel()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	// The read side only drains control frames and notices the peer closing.
	closed := make(chan struct{})
	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(eventPongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(eventPongTimeout))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(eventPingInterval)
	defer ping.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-closed:
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(eventWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case ev, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "event stream closed"),
					time.Now().Add(eventWriteTimeout))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(eventWriteTimeout))
			if err := conn.WriteJSON(common.FromDomainEvent(ev)); err != nil {
				return
			}
		}
	}
}
