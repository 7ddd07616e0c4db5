package stream

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/satindergrewal/slidereel/internal/config"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Source is anything that pushes state snapshots to subscribers.
type Source[T any] interface {
	Subscribe() (<-chan T, func())
}

// ProgressHandler pushes every state snapshot to a websocket client as JSON.
// The page's live region reads from it.
type ProgressHandler[T any] struct {
	source Source[T]
}

// NewProgressHandler creates a websocket handler for src.
func NewProgressHandler[T any](src Source[T]) *ProgressHandler[T] {
	return &ProgressHandler[T]{source: src}
}

func (h *ProgressHandler[T]) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		config.Log.WithError(err).Warn("progress upgrade")
		return
	}
	defer conn.Close()

	updates, cancel := h.source.Subscribe()
	defer cancel()

	// the client never sends data; reading only detects close and handles pongs
	closed := make(chan struct{})
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(snap); err != nil {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
