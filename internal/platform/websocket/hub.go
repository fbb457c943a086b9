// Package websocket streams dashboard snapshots to browser clients. Each
// connection follows one topic, the dashboard session id, and receives the
// current snapshot on connect and again after every change.
package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Event types sent to clients.
const (
	EventSnapshot = "snapshot"
	EventClosed   = "closed"
)

const (
	sendBuffer     = 16
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Event is one message sent to a client.
type Event struct {
	Type      string          `json:"type"`
	Topic     string          `json:"topic"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Client is a single connection subscribed to one topic.
type Client struct {
	ID    string
	Topic string
	Send  chan []byte
}

// Hub tracks clients by topic. All operations are safe for concurrent use.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	log     zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		log:     log,
	}
}

// Register subscribes client to its topic.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[client.Topic] == nil {
		h.clients[client.Topic] = make(map[*Client]struct{})
	}
	h.clients[client.Topic][client] = struct{}{}
}

// Unregister removes client and closes its Send channel. Unknown clients
// are ignored.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subscribers, ok := h.clients[client.Topic]
	if !ok {
		return
	}
	if _, ok := subscribers[client]; !ok {
		return
	}
	delete(subscribers, client)
	if len(subscribers) == 0 {
		delete(h.clients, client.Topic)
	}
	close(client.Send)
}

// Publish marshals v into an event of type typ and sends it to every
// subscriber of topic. Nothing is marshalled when nobody listens. Clients
// whose buffer is full miss the event.
func (h *Hub) Publish(topic, typ string, v any) {
	if h.TopicCount(topic) == 0 {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		h.log.Error().Err(err).Str("topic", topic).Msg("marshal websocket payload")
		return
	}
	h.Broadcast(Event{Type: typ, Topic: topic, Timestamp: time.Now().UTC(), Data: data})
}

// Broadcast sends event to the subscribers of event.Topic.
func (h *Hub) Broadcast(event Event) {
	msg, err := json.Marshal(event)
	if err != nil {
		h.log.Error().Err(err).Str("topic", event.Topic).Msg("marshal websocket event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[event.Topic] {
		select {
		case client.Send <- msg:
		default:
			h.log.Debug().Str("client", client.ID).Str("topic", event.Topic).Msg("websocket client lagging, event dropped")
		}
	}
}

// CloseTopic sends a closed event to the subscribers of topic and
// disconnects them.
func (h *Hub) CloseTopic(topic string) {
	msg, err := json.Marshal(Event{Type: EventClosed, Topic: topic, Timestamp: time.Now().UTC()})
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients[topic] {
		select {
		case client.Send <- msg:
		default:
		}
		close(client.Send)
	}
	delete(h.clients, topic)
}

// Evict sends a closed event to client and disconnects it. Clients that are
// no longer registered are ignored.
func (h *Hub) Evict(client *Client) {
	msg, err := json.Marshal(Event{Type: EventClosed, Topic: client.Topic, Timestamp: time.Now().UTC()})
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	subscribers := h.clients[client.Topic]
	if _, ok := subscribers[client]; !ok {
		return
	}
	select {
	case client.Send <- msg:
	default:
	}
	delete(subscribers, client)
	if len(subscribers) == 0 {
		delete(h.clients, client.Topic)
	}
	close(client.Send)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, subscribers := range h.clients {
		n += len(subscribers)
	}
	return n
}

// TopicCount returns the number of clients following topic.
func (h *Hub) TopicCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}

// ---------------------------------------------------------------------------
// Handler: Echo HTTP handler for WebSocket connections
// ---------------------------------------------------------------------------

// Source returns the current payload of topic, or false when the topic does
// not exist.
type Source func(topic string) (any, bool)

// Handler upgrades requests for a topic and pumps events to the client.
type Handler struct {
	hub      *Hub
	source   Source
	param    string
	upgrader gorillawebsocket.Upgrader
}

// NewHandler creates a handler reading the topic from the route parameter
// param. Browsers are accepted from allowedOrigins; "*" allows any origin.
func NewHandler(hub *Hub, source Source, param string, allowedOrigins []string) *Handler {
	return &Handler{
		hub:    hub,
		source: source,
		param:  param,
		upgrader: gorillawebsocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

// HandleConnect answers 404 for unknown topics. Otherwise it upgrades the
// connection, queues the current payload and starts the read/write pumps.
// A topic that ends while the connection is upgrading gets a closed event
// straight after the snapshot.
func (h *Handler) HandleConnect(c echo.Context) error {
	topic := c.Param(h.param)
	payload, ok := h.source(topic)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "dashboard session not found")
	}

	initial, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	first, err := json.Marshal(Event{Type: EventSnapshot, Topic: topic, Timestamp: time.Now().UTC(), Data: initial})
	if err != nil {
		return err
	}

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already written the error response.
		return nil
	}

	client := &Client{
		ID:    uuid.NewString(),
		Topic: topic,
		Send:  make(chan []byte, sendBuffer),
	}
	client.Send <- first
	h.hub.Register(client)
	h.hub.log.Debug().Str("client", client.ID).Str("topic", topic).Msg("websocket client connected")
	if _, ok := h.source(topic); !ok {
		h.hub.log.Debug().Str("client", client.ID).Str("topic", topic).Msg("topic closed during upgrade")
		h.hub.Evict(client)
	}

	go h.writePump(client, ws)
	go h.readPump(client, ws)

	return nil
}

// readPump discards client messages and unregisters the client when the
// connection drops.
func (h *Handler) readPump(client *Client, ws *gorillawebsocket.Conn) {
	defer func() {
		h.hub.Unregister(client)
		ws.Close()
	}()

	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump forwards queued events and pings the client until Send closes.
func (h *Handler) writePump(client *Client, ws *gorillawebsocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case msg, ok := <-client.Send:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = ws.WriteMessage(gorillawebsocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteMessage(gorillawebsocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(gorillawebsocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
