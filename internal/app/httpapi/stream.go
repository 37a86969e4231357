package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The API sits behind the platform proxy which enforces origins.
	CheckOrigin: func(*http.Request) bool { return true },
}

const streamWriteTimeout = 10 * time.Second

// streamLogs upgrades to a websocket and tails the deployment's log stream.
// Each new entry is written as one JSON message. The connection closes when
// the client goes away or a write fails.
func (h *Handler) streamLogs(w http.ResponseWriter, r *http.Request) {
	deploymentID := r.PathValue("id")

	// Reject unknown streams before upgrading so the client gets a real
	// status code.
	if _, err := h.app.Logs.List(r.Context(), deploymentID, 1, ""); err != nil {
		h.writeServiceError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade")
		return
	}
	defer conn.Close()

	entries, cancel := h.app.Logs.Watch(deploymentID)
	defer cancel()

	// Reader goroutine: drain control frames and detect close.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case e := <-entries:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := conn.WriteJSON(e); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}
