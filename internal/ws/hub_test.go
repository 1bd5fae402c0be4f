package ws

import (
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"moiport/entity"
)

func testClient(hub *Hub, viewer *entity.Viewer) *Client {
	return &Client{
		hub:    hub,
		send:   make(chan []byte, 8),
		viewer: viewer,
		rooms:  map[string]bool{},
	}
}

func TestNextTsStrictlyIncreasing(t *testing.T) {
	hub := NewHub(slog.Default())

	last := int64(0)
	for i := 0; i < 1000; i++ {
		ts := hub.nextTs()
		if ts <= last {
			t.Fatalf("ts must strictly increase: %d after %d", ts, last)
		}
		last = ts
	}
}

func TestTargetPredicates(t *testing.T) {
	hub := NewHub(slog.Default())

	sameTenant := testClient(hub, &entity.Viewer{TenantID: "t1", UserID: "u1"})
	otherTenant := testClient(hub, &entity.Viewer{TenantID: "t2", UserID: "u2"})
	joined := testClient(hub, &entity.Viewer{TenantID: "t1", UserID: "u3"})
	joined.joinRoom("r1")

	if !hub.tenantTarget("t1")(sameTenant) || hub.tenantTarget("t1")(otherTenant) {
		t.Fatalf("tenant target must match tenant only")
	}
	if hub.roomTarget("t1", "r1")(sameTenant) {
		t.Fatalf("room target must require a join")
	}
	if !hub.roomTarget("t1", "r1")(joined) {
		t.Fatalf("room target must match joined clients")
	}
}

type fakeHandler struct {
	allow     map[string]bool
	joinErr   error
	readIDs   []string
	readCalls int
}

func (f *fakeHandler) AuthorizeJoin(viewer *entity.Viewer, roomID string) (bool, error) {
	if f.joinErr != nil {
		return false, f.joinErr
	}
	return f.allow[roomID], nil
}

func (f *fakeHandler) MarkRead(viewer *entity.Viewer, roomID string, messageIDs []string) ([]string, error) {
	f.readCalls++
	return f.readIDs, nil
}

func (f *fakeHandler) MarkDelivered(viewer *entity.Viewer, roomID string, messageIDs []string) ([]string, error) {
	return nil, nil
}

func receive(t *testing.T, client *Client) *Event {
	t.Helper()
	select {
	case data := <-client.send:
		var event Event
		if err := json.Unmarshal(data, &event); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		return &event
	default:
		t.Fatalf("expected a direct event")
		return nil
	}
}

func TestJoinRoomAuthorized(t *testing.T) {
	hub := NewHub(slog.Default())
	hub.SetHandler(&fakeHandler{allow: map[string]bool{"r1": true}})
	client := testClient(hub, &entity.Viewer{TenantID: "t1", UserID: "u1"})

	hub.HandleClientMessage(client, []byte(`{"type":"join-room","data":{"room_id":"r1"}}`))

	event := receive(t, client)
	if event.Type != "join-ok" {
		t.Fatalf("expected join-ok, got %q", event.Type)
	}
	if !client.inRoom("r1") {
		t.Fatalf("authorized join must register the room")
	}
}

func TestJoinRoomDenied(t *testing.T) {
	hub := NewHub(slog.Default())
	hub.SetHandler(&fakeHandler{allow: map[string]bool{}})
	client := testClient(hub, &entity.Viewer{TenantID: "t1", UserID: "u1"})

	hub.HandleClientMessage(client, []byte(`{"type":"join-room","data":{"room_id":"r1"}}`))

	event := receive(t, client)
	if event.Type != "join-denied" {
		t.Fatalf("expected join-denied, got %q", event.Type)
	}
	if client.inRoom("r1") {
		t.Fatalf("denied join must not register the room")
	}
}

func TestJoinRoomErrorGrantsNothing(t *testing.T) {
	hub := NewHub(slog.Default())
	hub.SetHandler(&fakeHandler{joinErr: errors.New("store down")})
	client := testClient(hub, &entity.Viewer{TenantID: "t1", UserID: "u1"})

	hub.HandleClientMessage(client, []byte(`{"type":"join-room","data":{"room_id":"r1"}}`))

	if client.inRoom("r1") {
		t.Fatalf("a failing authorization must not register the room")
	}
}

func TestReceiptsRequireJoinedRoom(t *testing.T) {
	hub := NewHub(slog.Default())
	handler := &fakeHandler{readIDs: []string{"m1"}}
	hub.SetHandler(handler)
	client := testClient(hub, &entity.Viewer{TenantID: "t1", UserID: "u1"})

	hub.HandleClientMessage(client, []byte(`{"type":"read","data":{"room_id":"r1","message_ids":["m1"]}}`))
	if handler.readCalls != 0 {
		t.Fatalf("receipts from unjoined rooms must be ignored")
	}

	client.joinRoom("r1")
	hub.HandleClientMessage(client, []byte(`{"type":"read","data":{"room_id":"r1","message_ids":["m1"]}}`))
	if handler.readCalls != 1 {
		t.Fatalf("expected read receipt handled after joining, got %d calls", handler.readCalls)
	}
}

func TestMalformedClientEventsIgnored(t *testing.T) {
	hub := NewHub(slog.Default())
	hub.SetHandler(&fakeHandler{})
	client := testClient(hub, &entity.Viewer{TenantID: "t1", UserID: "u1"})

	payloads := []string{
		`not json`,
		`{"type":"join-room","data":{}}`,
		`{"type":"read","data":{"room_id":"r1","message_ids":[]}}`,
		`{"type":"unknown","data":{}}`,
	}
	for _, payload := range payloads {
		hub.HandleClientMessage(client, []byte(payload))
	}

	select {
	case data := <-client.send:
		t.Fatalf("malformed events must produce nothing, got %s", data)
	default:
	}
}

func TestWhatsAppMessageScopedToLeadVisibility(t *testing.T) {
	hub := NewHub(slog.Default())
	lead := entity.Lead{ID: "l1", TenantID: "t1", CustomerID: "c1"}
	activity := entity.CrmActivity{ID: "a1", TenantID: "t1", LeadID: "l1"}

	hub.WhatsAppMessage(lead, nil, nil, activity)
	targeted := <-hub.broadcast

	owner := testClient(hub, &entity.Viewer{TenantID: "t1", UserID: "u1", Role: entity.ClientRole, CustomerID: "c1"})
	other := testClient(hub, &entity.Viewer{TenantID: "t1", UserID: "u2", Role: entity.ClientRole, CustomerID: "c2"})
	staff := testClient(hub, &entity.Viewer{TenantID: "t1", UserID: "u3", Role: entity.AdminRole})

	if !targeted.target(owner) {
		t.Errorf("the lead's customer must receive its whatsapp activity")
	}
	if targeted.target(other) {
		t.Errorf("clients of other customers must not receive the activity")
	}
	if !targeted.target(staff) {
		t.Errorf("admins must receive the activity")
	}
}

func TestLeadDeletedScopedToLeadVisibility(t *testing.T) {
	hub := NewHub(slog.Default())
	lead := entity.Lead{ID: "l1", TenantID: "t1", AssigneeID: "u_owner"}

	hub.LeadDeleted(lead, nil, nil)
	targeted := <-hub.broadcast

	assignee := testClient(hub, &entity.Viewer{TenantID: "t1", UserID: "u_owner", Role: entity.StaffRole})
	outsider := testClient(hub, &entity.Viewer{TenantID: "t1", UserID: "u_other", Role: entity.StaffRole})

	if !targeted.target(assignee) || targeted.target(outsider) {
		t.Fatalf("lead deletion must follow the lead visibility rules")
	}
}

func TestPresenceDeliveredWithFullBroadcastBuffer(t *testing.T) {
	hub := NewHub(slog.Default())

	existing := testClient(hub, &entity.Viewer{TenantID: "t1", UserID: "u1"})
	hub.addClient(existing)
	for len(existing.send) > 0 {
		<-existing.send
	}

	for i := 0; i < cap(hub.broadcast); i++ {
		hub.broadcast <- &targetedEvent{
			event:  &Event{Type: "noop"},
			target: func(*Client) bool { return false },
		}
	}

	newcomer := testClient(hub, &entity.Viewer{TenantID: "t1", UserID: "u2"})
	hub.addClient(newcomer)

	found := false
	for len(existing.send) > 0 {
		var event Event
		if err := json.Unmarshal(<-existing.send, &event); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		if event.Type != "user:online" {
			continue
		}
		if data, ok := event.Data.(map[string]interface{}); ok && data["user_id"] == "u2" {
			found = true
		}
	}
	if !found {
		t.Fatalf("presence must reach tenant clients even with a saturated broadcast buffer")
	}
	if len(hub.broadcast) != cap(hub.broadcast) {
		t.Fatalf("presence events must not pass through the broadcast channel")
	}

	hub.removeClient(newcomer)
	event := receive(t, existing)
	if event.Type != "user:offline" {
		t.Fatalf("expected user:offline after the last socket closed, got %q", event.Type)
	}
}
