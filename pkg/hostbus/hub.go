// Package hostbus carries gallery events to host applications over
// websockets and accepts commands from them.
package hostbus

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Message is the wire form of an emitted event.
type Message struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Time    time.Time       `json:"time"`
}

// Command is sent by a host to drive the gallery.
type Command struct {
	Type    string `json:"type"`
	PanelID string `json:"panelId,omitempty"`
	ItemID  string `json:"itemId,omitempty"`
	Step    int    `json:"step,omitempty"`
	On      bool   `json:"on,omitempty"`
}

const (
	CommandOpen       = "open"
	CommandStep       = "step"
	CommandPause      = "pause"
	CommandZoomSync   = "zoom-sync"
	CommandCameraSync = "camera-sync"
	CommandTimePick   = "time-selector"
)

const (
	sendBuffer   = 64
	writeTimeout = 5 * time.Second
)

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub broadcasts events to every connected host. A slow host loses messages
// rather than blocking the gallery.
type Hub struct {
	upgrader  websocket.Upgrader
	onCommand func(Command)

	mu      sync.Mutex
	clients map[*client]struct{}
	dropped uint64
}

func NewHub(onCommand func(Command)) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		onCommand: onCommand,
		clients:   make(map[*client]struct{}),
	}
}

// Emit implements gallery.EventBus.
func (h *Hub) Emit(name string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[HOSTBUS] Cannot encode %s payload: %v", name, err)
		return
	}
	msg, err := json.Marshal(Message{Event: name, Payload: raw, Time: time.Now().UTC()})
	if err != nil {
		log.Printf("[HOSTBUS] Cannot encode %s: %v", name, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.dropped++
		}
	}
}

// Clients is the number of connected hosts.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Dropped is the number of messages discarded for slow hosts.
func (h *Hub) Dropped() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[HOSTBUS] Upgrade failed: %v", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	log.Printf("[HOSTBUS] Host connected from %s", r.RemoteAddr)

	go h.writeLoop(c)
	h.readLoop(c)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

func (h *Hub) readLoop(c *client) {
	defer func() {
		h.remove(c)
		if err := c.conn.Close(); err != nil {
			log.Printf("[HOSTBUS] Error closing connection: %v", err)
		}
	}()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[HOSTBUS] Read error: %v", err)
			}
			return
		}
		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			log.Printf("[HOSTBUS] Ignoring malformed command: %v", err)
			continue
		}
		if h.onCommand != nil {
			h.onCommand(cmd)
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	for msg := range c.send {
		if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
			return
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			log.Printf("[HOSTBUS] Write error: %v", err)
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
