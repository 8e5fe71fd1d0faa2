package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"course-platform/internal/apperr"
	"course-platform/internal/auth"
	"course-platform/internal/models"

	"github.com/gorilla/websocket"
)

// Message represents the standard message format exchanged over WebSocket.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

const (
	// AllRoom receives every response regardless of course.
	AllRoom = "all"

	TypeResponseSubmitted = "response_submitted"

	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 256
)

// Authorizer decides who may watch the feed. *quiz.Service satisfies it.
type Authorizer interface {
	Authorize(ctx context.Context, userID string) error
}

type delivery struct {
	courseID string
	payload  []byte
}

// Hub fans persisted responses out to admin dashboards. Room membership is
// only changed by Run.
type Hub struct {
	rooms      map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan delivery
	done       chan struct{}
	mu         sync.RWMutex

	authorizer Authorizer
	upgrader   websocket.Upgrader
}

func NewHub(allowedOrigins []string) *Hub {
	h := &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan delivery, sendBuffer),
		done:       make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

// SetAuthorizer must be called before the hub serves requests.
func (h *Hub) SetAuthorizer(authorizer Authorizer) {
	h.authorizer = authorizer
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		log.Printf("Rejected websocket origin %s", origin)
		return false
	}
}

type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	room string
}

// Run owns room membership until ctx is done, then closes every client.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if _, ok := h.rooms[client.room]; !ok {
				h.rooms[client.room] = make(map[*Client]bool)
			}
			h.rooms[client.room][client] = true
			h.mu.Unlock()
			log.Printf("Feed client joined room %s", client.room)

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()

		case d := <-h.broadcast:
			h.mu.Lock()
			h.deliver(d.payload, h.rooms[d.courseID])
			h.deliver(d.payload, h.rooms[AllRoom])
			h.mu.Unlock()

		case <-ctx.Done():
			h.mu.Lock()
			for _, room := range h.rooms {
				for client := range room {
					h.remove(client)
				}
			}
			h.mu.Unlock()
			return nil
		}
	}
}

// remove expects h.mu held.
func (h *Hub) remove(client *Client) {
	room, ok := h.rooms[client.room]
	if !ok || !room[client] {
		return
	}
	delete(room, client)
	if len(room) == 0 {
		delete(h.rooms, client.room)
	}
	close(client.send)
}

// deliver expects h.mu held. Clients with a full buffer are dropped.
func (h *Hub) deliver(payload []byte, room map[*Client]bool) {
	for client := range room {
		select {
		case client.send <- payload:
		default:
			log.Printf("Send channel full for feed client in room %s; dropping client", client.room)
			h.remove(client)
		}
	}
}

// ResponseSubmitted queues view for the course room and the all room. It
// never blocks the submitting request.
func (h *Hub) ResponseSubmitted(view models.ResponseView) {
	payload, err := json.Marshal(Message{Type: TypeResponseSubmitted, Data: view})
	if err != nil {
		log.Printf("Error marshaling response %s: %v", view.ID, err)
		return
	}

	select {
	case h.broadcast <- delivery{courseID: view.Quiz.Course.ID, payload: payload}:
	case <-h.done:
	default:
		log.Printf("Feed broadcast queue full; response %s not pushed", view.ID)
	}
}

// Count returns the number of clients in room.
func (h *Hub) Count(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// HandleWebSocket upgrades an admin's request and subscribes it to the
// courseId room, or to the all room when no course is given.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.authorizer == nil {
		http.Error(w, "Feed unavailable", http.StatusServiceUnavailable)
		return
	}
	if err := h.authorizer.Authorize(r.Context(), auth.UserIDFromContext(r.Context())); err != nil {
		http.Error(w, apperr.PublicMessage(err), apperr.StatusCode(err))
		return
	}

	room := r.URL.Query().Get("courseId")
	if room == "" {
		room = AllRoom
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Error upgrading websocket: %v", err)
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBuffer),
		room: room,
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump drains the connection so pongs and close frames are processed.
// The feed is one way and incoming messages are discarded.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("Feed client read error: %v", err)
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("Feed client write error: %v", err)
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
