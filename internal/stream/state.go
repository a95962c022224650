package stream

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/satindergrewal/lunabell/internal/showcase"
)

const stateWriteTimeout = 200 * time.Millisecond

// StateSource publishes presentation snapshots.
type StateSource interface {
	State() showcase.State
	Subscribe() (<-chan showcase.State, func())
}

// StateHandler pushes showcase snapshots to pages over a websocket.
type StateHandler struct {
	src      StateSource
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[string]*websocket.Conn
}

// NewStateHandler creates a websocket handler fed by src.
func NewStateHandler(src StateSource) *StateHandler {
	return &StateHandler{
		src:      src,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		clients:  make(map[string]*websocket.Conn),
	}
}

// ClientCount returns the number of connected pages.
func (h *StateHandler) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *StateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	id := uuid.NewString()
	lg := log.With().Str("client", id).Logger()

	h.mu.Lock()
	h.clients[id] = conn
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.clients, id)
		h.mu.Unlock()
		conn.Close()
		lg.Debug().Msg("state client disconnected")
	}()
	lg.Debug().Int("total", h.ClientCount()).Msg("state client connected")

	states, cancel := h.src.Subscribe()
	defer cancel()

	// the page never sends anything meaningful; reading detects the close
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := writeState(conn, h.src.State()); err != nil {
		return
	}
	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case st := <-states:
			if err := writeState(conn, st); err != nil {
				lg.Debug().Err(err).Msg("write state")
				return
			}
		}
	}
}

func writeState(conn *websocket.Conn, st showcase.State) error {
	conn.SetWriteDeadline(time.Now().Add(stateWriteTimeout))
	return conn.WriteJSON(st)
}
