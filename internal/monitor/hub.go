package monitor

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/shaunagostinho/qnflash/internal/bootloader"
	"github.com/shaunagostinho/qnflash/internal/protocol"
)

// Event is the JSON structure sent to all WebSocket clients.
type Event struct {
	Type     string        `json:"type"` // snapshot, state, frame, response, progress, warning
	Stamp    int64         `json:"stamp"`
	From     string        `json:"from,omitempty"`
	To       string        `json:"to,omitempty"`
	Command  string        `json:"cmd,omitempty"`
	Payload  string        `json:"payload,omitempty"` // hex
	Response string        `json:"response,omitempty"`
	Message  string        `json:"message,omitempty"`
	Error    string        `json:"error,omitempty"`
	Progress *ProgressData `json:"progress,omitempty"`
}

type ProgressData struct {
	Operation string  `json:"op"`
	Done      int     `json:"done"`
	Total     int     `json:"total"`
	Fraction  float64 `json:"fraction"`
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans bootloader events out to WebSocket clients. It implements
// bootloader.Observer; slow clients drop events instead of blocking the
// flashing goroutine.
type Hub struct {
	log *zap.Logger

	clients   map[*wsClient]struct{}
	clientsMu sync.RWMutex

	upgrader websocket.Upgrader

	stateMu  sync.Mutex
	state    bootloader.State
	progress *ProgressData
}

// NewHub creates an empty hub.
func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		log:     log.Named("ws"),
		clients: make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// Snapshot returns the latest state and progress.
func (h *Hub) Snapshot() Event {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()
	ev := Event{Type: "snapshot", Stamp: time.Now().UnixMilli(), To: h.state.String()}
	if h.progress != nil {
		p := *h.progress
		ev.Progress = &p
	}
	return ev
}

func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade error", zap.Error(err))
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, 64),
	}

	// The snapshot is queued before the client becomes visible to
	// broadcast, so it is always the first message.
	if data, err := json.Marshal(h.Snapshot()); err == nil {
		client.send <- data
	}

	h.clientsMu.Lock()
	h.clients[client] = struct{}{}
	n := len(h.clients)
	h.clientsMu.Unlock()
	h.log.Debug("client connected", zap.Int("clients", n))

	// Writer goroutine
	go func() {
		defer conn.Close()
		for msg := range client.send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				break
			}
		}
	}()

	// Reader goroutine, only to notice disconnects
	go func() {
		defer h.remove(client)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) remove(c *wsClient) {
	h.clientsMu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.clientsMu.Unlock()
		return
	}
	delete(h.clients, c)
	n := len(h.clients)
	h.clientsMu.Unlock()

	close(c.send)
	h.log.Debug("client disconnected", zap.Int("clients", n))
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.clientsMu.RLock()
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clientsMu.RUnlock()

	for _, c := range clients {
		c.conn.Close()
		h.remove(c)
	}
}

func (h *Hub) broadcast(ev Event) {
	ev.Stamp = time.Now().UnixMilli()
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}

	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()

	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			// client too slow, skip
		}
	}
}

func (h *Hub) StateChanged(from, to bootloader.State) {
	h.stateMu.Lock()
	h.state = to
	h.stateMu.Unlock()
	h.broadcast(Event{Type: "state", From: from.String(), To: to.String()})
}

func (h *Hub) FrameSent(cmd protocol.Command, payload []byte) {
	h.broadcast(Event{Type: "frame", Command: cmd.String(), Payload: hex.EncodeToString(payload)})
}

func (h *Hub) ResponseReceived(cmd protocol.Command, resp protocol.Response, err error) {
	ev := Event{Type: "response", Command: cmd.String()}
	if err != nil {
		ev.Error = err.Error()
	} else {
		ev.Response = ResponseKind(resp)
	}
	h.broadcast(ev)
}

func (h *Hub) Progress(p bootloader.Progress) {
	pd := &ProgressData{Operation: p.Operation, Done: p.Done, Total: p.Total, Fraction: p.Fraction()}
	h.stateMu.Lock()
	h.progress = pd
	h.stateMu.Unlock()
	h.broadcast(Event{Type: "progress", Progress: pd})
}

func (h *Hub) Warning(msg string, err error) {
	ev := Event{Type: "warning", Message: msg}
	if err != nil {
		ev.Error = err.Error()
	}
	h.broadcast(ev)
}
