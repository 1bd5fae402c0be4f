package ws

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"moiport/entity"
	"moiport/internal/lib/sl"
	"moiport/internal/visibility"
)

// ClientMessageHandler handles incoming events from connected viewers.
// MarkRead/MarkDelivered return the ids that actually advanced, so replayed
// receipts broadcast nothing.
type ClientMessageHandler interface {
	AuthorizeJoin(viewer *entity.Viewer, roomID string) (bool, error)
	MarkRead(viewer *entity.Viewer, roomID string, messageIDs []string) ([]string, error)
	MarkDelivered(viewer *entity.Viewer, roomID string, messageIDs []string) ([]string, error)
}

// Event is the server-to-client envelope. Ts is a monotonically increasing
// server timestamp; consumers discard events older than the latest one they
// have applied.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
	Ts   int64       `json:"ts"`
}

type targetedEvent struct {
	event  *Event
	target func(*Client) bool
}

// Hub maintains the set of authenticated connections and scopes every
// broadcast to tenant, customer or room membership. Presence is process-local
// and best-effort; restarts drop it.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan *targetedEvent
	register   chan *Client
	unregister chan *Client

	mu      sync.RWMutex
	online  map[string]int // userID -> open socket count
	lastTs  int64
	handler ClientMessageHandler
	log     *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan *targetedEvent, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		online:     make(map[string]int),
		log:        log.With(sl.Module("ws.hub")),
	}
}

// SetHandler sets the handler for incoming client messages.
func (h *Hub) SetHandler(handler ClientMessageHandler) {
	h.handler = handler
}

// nextTs returns a strictly increasing server timestamp in milliseconds.
func (h *Hub) nextTs() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := time.Now().UnixMilli()
	if now <= h.lastTs {
		now = h.lastTs + 1
	}
	h.lastTs = now
	return now
}

// Run starts the hub's event loop. Should be called in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)

		case targeted := <-h.broadcast:
			h.dispatch(targeted.event, targeted.target)
		}
	}
}

// addClient registers a connection and announces presence. Presence events go
// through dispatch directly: the loop goroutine must never send into its own
// broadcast channel, a full buffer would deadlock it.
func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	h.online[client.viewer.UserID]++
	first := h.online[client.viewer.UserID] == 1
	h.mu.Unlock()

	client.direct(&Event{Type: "users:online", Data: h.OnlineUsers(client.viewer.TenantID), Ts: h.nextTs()})
	if first {
		h.dispatch(
			&Event{Type: "user:online", Data: map[string]string{"user_id": client.viewer.UserID}, Ts: h.nextTs()},
			h.tenantTarget(client.viewer.TenantID),
		)
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	last := false
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
		h.online[client.viewer.UserID]--
		if h.online[client.viewer.UserID] <= 0 {
			delete(h.online, client.viewer.UserID)
			last = true
		}
	}
	h.mu.Unlock()

	if last {
		h.dispatch(
			&Event{Type: "user:offline", Data: map[string]string{"user_id": client.viewer.UserID}, Ts: h.nextTs()},
			h.tenantTarget(client.viewer.TenantID),
		)
	}
}

// dispatch delivers an event to every matching client. Clients whose send
// buffer is full are dropped.
func (h *Hub) dispatch(event *Event, target func(*Client) bool) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	h.mu.Lock()
	for client := range h.clients {
		if !target(client) {
			continue
		}
		select {
		case client.send <- data:
		default:
			close(client.send)
			delete(h.clients, client)
		}
	}
	h.mu.Unlock()
}

// OnlineUsers returns the ids of tenant users with at least one open socket.
func (h *Hub) OnlineUsers(tenantID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := map[string]bool{}
	users := []string{}
	for client := range h.clients {
		if client.viewer.TenantID != tenantID || seen[client.viewer.UserID] {
			continue
		}
		seen[client.viewer.UserID] = true
		users = append(users, client.viewer.UserID)
	}
	return users
}

func (h *Hub) emit(typ string, data interface{}, target func(*Client) bool) {
	h.broadcast <- &targetedEvent{
		event:  &Event{Type: typ, Data: data, Ts: h.nextTs()},
		target: target,
	}
}

func (h *Hub) tenantTarget(tenantID string) func(*Client) bool {
	return func(c *Client) bool {
		return c.viewer.TenantID == tenantID
	}
}

func (h *Hub) roomTarget(tenantID, roomID string) func(*Client) bool {
	return func(c *Client) bool {
		return c.viewer.TenantID == tenantID && c.inRoom(roomID)
	}
}

// RoomCreated announces a new room to every viewer the room is visible to.
func (h *Hub) RoomCreated(room entity.ChatRoom) {
	h.emit("room:created", room, func(c *Client) bool {
		return visibility.CanViewRoom(c.viewer, &room, false)
	})
}

// MessageNew delivers a message to the viewers joined to its room.
func (h *Hub) MessageNew(msg entity.ChatMessage) {
	h.emit("message:new", msg, h.roomTarget(msg.TenantID, msg.RoomID))
}

// MessageDeleted announces a soft-deleted message to the room.
func (h *Hub) MessageDeleted(tenantID, roomID, messageID string) {
	h.emit("message:deleted", map[string]string{"room_id": roomID, "message_id": messageID},
		h.roomTarget(tenantID, roomID))
}

func (h *Hub) messageReceipt(typ, tenantID, roomID string, messageIDs []string) {
	h.emit(typ, map[string]interface{}{"room_id": roomID, "message_ids": messageIDs},
		h.roomTarget(tenantID, roomID))
}

// LeadCreated fans a new lead out to every viewer it is visible to,
// evaluating the same rule table the list endpoints filter by.
func (h *Hub) LeadCreated(lead entity.Lead, pipeline *entity.Pipeline, mapping *entity.FacebookLeadMapping) {
	h.emitLead("lead:created", lead, pipeline, mapping)
}

func (h *Hub) LeadUpdated(lead entity.Lead, pipeline *entity.Pipeline, mapping *entity.FacebookLeadMapping) {
	h.emitLead("lead:updated", lead, pipeline, mapping)
}

func (h *Hub) LeadMoved(lead entity.Lead, pipeline *entity.Pipeline, mapping *entity.FacebookLeadMapping) {
	h.emitLead("lead:moved", lead, pipeline, mapping)
}

func (h *Hub) LeadDeleted(lead entity.Lead, pipeline *entity.Pipeline, mapping *entity.FacebookLeadMapping) {
	h.emitLead("lead:deleted", lead, pipeline, mapping)
}

func (h *Hub) emitLead(typ string, lead entity.Lead, pipeline *entity.Pipeline, mapping *entity.FacebookLeadMapping) {
	h.emit(typ, lead, func(c *Client) bool {
		return visibility.CanViewLead(c.viewer, &lead, pipeline, mapping)
	})
}

// WhatsAppMessage announces an inbound WhatsApp activity to the viewers who
// may see the lead it landed on, using the same rule table as the lead events.
func (h *Hub) WhatsAppMessage(lead entity.Lead, pipeline *entity.Pipeline, mapping *entity.FacebookLeadMapping, activity entity.CrmActivity) {
	h.emit("whatsapp:message", activity, func(c *Client) bool {
		return visibility.CanViewLead(c.viewer, &lead, pipeline, mapping)
	})
}

// clientEvent is the client-to-server envelope.
type clientEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// HandleClientMessage parses and dispatches an incoming message from a
// connected viewer. Room-level joins are authorized per request; the initial
// connection scope grants nothing at room level.
func (h *Hub) HandleClientMessage(client *Client, raw []byte) {
	if h.handler == nil {
		return
	}

	var event clientEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		h.log.Warn("unparseable client event", sl.Err(err))
		return
	}

	switch event.Type {
	case "join-room":
		var data struct {
			RoomID string `json:"room_id"`
		}
		if err := json.Unmarshal(event.Data, &data); err != nil || data.RoomID == "" {
			return
		}
		allowed, err := h.handler.AuthorizeJoin(client.viewer, data.RoomID)
		if err != nil {
			h.log.Error("join authorization", slog.String("room_id", data.RoomID), sl.Err(err))
			return
		}
		if !allowed {
			client.direct(&Event{
				Type: "join-denied",
				Data: map[string]string{"room_id": data.RoomID},
				Ts:   h.nextTs(),
			})
			return
		}
		client.joinRoom(data.RoomID)
		client.direct(&Event{
			Type: "join-ok",
			Data: map[string]string{"room_id": data.RoomID},
			Ts:   h.nextTs(),
		})

	case "typing":
		var data struct {
			RoomID   string `json:"room_id"`
			IsTyping bool   `json:"is_typing"`
		}
		if err := json.Unmarshal(event.Data, &data); err != nil || data.RoomID == "" {
			return
		}
		if !client.inRoom(data.RoomID) {
			return
		}
		h.emit("typing", map[string]interface{}{
			"room_id":   data.RoomID,
			"user_id":   client.viewer.UserID,
			"is_typing": data.IsTyping,
		}, h.roomTarget(client.viewer.TenantID, data.RoomID))

	case "read", "delivered":
		var data struct {
			RoomID     string   `json:"room_id"`
			MessageIDs []string `json:"message_ids"`
		}
		if err := json.Unmarshal(event.Data, &data); err != nil || data.RoomID == "" || len(data.MessageIDs) == 0 {
			return
		}
		if !client.inRoom(data.RoomID) {
			return
		}

		var advanced []string
		var err error
		typ := "message:read"
		if event.Type == "read" {
			advanced, err = h.handler.MarkRead(client.viewer, data.RoomID, data.MessageIDs)
		} else {
			typ = "message:delivered"
			advanced, err = h.handler.MarkDelivered(client.viewer, data.RoomID, data.MessageIDs)
		}
		if err != nil {
			h.log.Error("receipt handling", slog.String("room_id", data.RoomID), sl.Err(err))
			return
		}
		if len(advanced) > 0 {
			h.messageReceipt(typ, client.viewer.TenantID, data.RoomID, advanced)
		}
	}
}
