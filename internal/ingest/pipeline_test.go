package ingest

import (
	"log/slog"
	"testing"
	"time"

	"moiport/entity"
)

type fakeStore struct {
	channels   map[string]*entity.ChannelConfig
	visitors   map[string]*entity.User
	rooms      map[string]*entity.ChatRoom
	messages   map[string]entity.ChatMessage
	activities map[string]entity.CrmActivity
	leads      map[string]entity.Lead
	mappings   map[string]*entity.FacebookLeadMapping

	insertedLeads    int
	insertedMessages int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		channels:   map[string]*entity.ChannelConfig{},
		visitors:   map[string]*entity.User{},
		rooms:      map[string]*entity.ChatRoom{},
		messages:   map[string]entity.ChatMessage{},
		activities: map[string]entity.CrmActivity{},
		leads:      map[string]entity.Lead{},
		mappings:   map[string]*entity.FacebookLeadMapping{},
	}
}

func (s *fakeStore) ResolveChannel(source entity.Source, accountID string) (*entity.ChannelConfig, error) {
	return s.channels[string(source)+"/"+accountID], nil
}

func (s *fakeStore) FindOrCreateVisitor(visitor entity.User) (*entity.User, error) {
	key := visitor.TenantID + "/" + visitor.Email
	if existing, ok := s.visitors[key]; ok {
		return existing, nil
	}
	stored := visitor
	s.visitors[key] = &stored
	return &stored, nil
}

func (s *fakeStore) FindOrCreateRoom(room entity.ChatRoom) (*entity.ChatRoom, bool, error) {
	key := room.TenantID + "/" + string(room.Platform) + "/" + room.ExternalID
	if existing, ok := s.rooms[key]; ok {
		return existing, false, nil
	}
	stored := room
	s.rooms[key] = &stored
	return &stored, true, nil
}

func (s *fakeStore) AddMembership(entity.ChatMembership) error { return nil }

func (s *fakeStore) HasMessage(roomID, externalID string) (bool, error) {
	_, ok := s.messages[roomID+"/"+externalID]
	return ok, nil
}

func (s *fakeStore) InsertMessage(msg entity.ChatMessage) (bool, error) {
	key := msg.RoomID + "/" + msg.ExternalID
	if _, ok := s.messages[key]; ok {
		return false, nil
	}
	s.messages[key] = msg
	s.insertedMessages++
	return true, nil
}

func (s *fakeStore) TouchRoom(string, time.Time) error { return nil }

func (s *fakeStore) GetLeadMapping(tenantID, formID string) (*entity.FacebookLeadMapping, error) {
	return s.mappings[tenantID+"/"+formID], nil
}

func (s *fakeStore) FindOrCreateDefaultPipeline(tenantID, customerID string) (*entity.Pipeline, *entity.Stage, error) {
	pipeline := &entity.Pipeline{ID: "pipe_default", TenantID: tenantID, CustomerID: customerID, IsDefault: true}
	stage := &entity.Stage{ID: "stage_new", PipelineID: pipeline.ID, TenantID: tenantID}
	return pipeline, stage, nil
}

func (s *fakeStore) GetPipeline(id string) (*entity.Pipeline, error) {
	return &entity.Pipeline{ID: id}, nil
}

func (s *fakeStore) FindEquivalentLead(tenantID, formID, email, phone, name string) (*entity.Lead, error) {
	for _, lead := range s.leads {
		if lead.TenantID != tenantID || lead.FacebookFormID != formID {
			continue
		}
		if (email != "" && lead.Email == email) ||
			(phone != "" && lead.Phone == phone) ||
			(name != "" && lead.Name == name) {
			stored := lead
			return &stored, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) FindLeadByPhone(tenantID, phone string) (*entity.Lead, error) {
	for _, lead := range s.leads {
		if lead.TenantID == tenantID && lead.Phone == phone {
			stored := lead
			return &stored, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) InsertLead(lead entity.Lead) error {
	s.leads[lead.ID] = lead
	s.insertedLeads++
	return nil
}

func (s *fakeStore) HasActivity(tenantID, externalID string) (bool, error) {
	_, ok := s.activities[tenantID+"/"+externalID]
	return ok, nil
}

func (s *fakeStore) InsertActivity(activity entity.CrmActivity) (bool, error) {
	key := activity.TenantID + "/" + activity.ExternalID
	if activity.ExternalID != "" {
		if _, ok := s.activities[key]; ok {
			return false, nil
		}
	} else {
		key = activity.TenantID + "/id/" + activity.ID
	}
	s.activities[key] = activity
	return true, nil
}

func (s *fakeStore) ListActivities(leadID string) ([]entity.CrmActivity, error) {
	var out []entity.CrmActivity
	for _, a := range s.activities {
		if a.LeadID == leadID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *fakeStore) UpdateLeadScore(leadID string, score int) error {
	if lead, ok := s.leads[leadID]; ok {
		lead.Score = score
		s.leads[leadID] = lead
	}
	return nil
}

type fakeBroadcast struct {
	roomsCreated  int
	messagesNew   int
	leadsCreated  int
	leadsUpdated  int
	whatsAppNotes int

	lastUpdatePipeline *entity.Pipeline
	lastNotePipeline   *entity.Pipeline
}

func (b *fakeBroadcast) RoomCreated(entity.ChatRoom)  { b.roomsCreated++ }
func (b *fakeBroadcast) MessageNew(entity.ChatMessage) { b.messagesNew++ }
func (b *fakeBroadcast) LeadCreated(entity.Lead, *entity.Pipeline, *entity.FacebookLeadMapping) {
	b.leadsCreated++
}
func (b *fakeBroadcast) LeadUpdated(_ entity.Lead, pipeline *entity.Pipeline, _ *entity.FacebookLeadMapping) {
	b.leadsUpdated++
	b.lastUpdatePipeline = pipeline
}
func (b *fakeBroadcast) WhatsAppMessage(_ entity.Lead, pipeline *entity.Pipeline, _ *entity.FacebookLeadMapping, _ entity.CrmActivity) {
	b.whatsAppNotes++
	b.lastNotePipeline = pipeline
}

func testIngestor(store *fakeStore, broadcast *fakeBroadcast) *Ingestor {
	return New(store, nil, broadcast, slog.Default())
}

func instagramPayload(mid string) []byte {
	return []byte(`{
		"object": "instagram",
		"entry": [{
			"id": "acc_1",
			"messaging": [{
				"sender": {"id": "9001"},
				"timestamp": 1700000000000,
				"message": {"mid": "` + mid + `", "text": "merhaba"}
			}]
		}]
	}`)
}

func TestIngestDropsUnresolvedAccount(t *testing.T) {
	store := newFakeStore()
	broadcast := &fakeBroadcast{}

	testIngestor(store, broadcast).Ingest(entity.SourceInstagram, instagramPayload("mid.1"))

	if store.insertedMessages != 0 || broadcast.messagesNew != 0 {
		t.Fatalf("events for unconnected accounts must be dropped silently")
	}
}

func TestIngestReplayIsIdempotent(t *testing.T) {
	store := newFakeStore()
	store.channels["instagram/acc_1"] = &entity.ChannelConfig{TenantID: "t1", Provider: entity.SourceInstagram, Active: true}
	broadcast := &fakeBroadcast{}
	ingestor := testIngestor(store, broadcast)

	ingestor.Ingest(entity.SourceInstagram, instagramPayload("mid.1"))
	ingestor.Ingest(entity.SourceInstagram, instagramPayload("mid.1"))

	if store.insertedMessages != 1 {
		t.Fatalf("expected exactly 1 stored message after replay, got %d", store.insertedMessages)
	}
	if broadcast.messagesNew != 1 {
		t.Fatalf("expected exactly 1 message broadcast after replay, got %d", broadcast.messagesNew)
	}
	if broadcast.roomsCreated != 1 {
		t.Fatalf("expected room created once, got %d", broadcast.roomsCreated)
	}
	if len(store.visitors) != 1 {
		t.Fatalf("expected a single provisioned visitor, got %d", len(store.visitors))
	}
}

func TestIngestLeadFormClaimedOnce(t *testing.T) {
	store := newFakeStore()
	store.channels["facebook/page_1"] = &entity.ChannelConfig{TenantID: "t1", Provider: entity.SourceFacebook, Active: true}
	broadcast := &fakeBroadcast{}
	ingestor := testIngestor(store, broadcast)

	payload := []byte(`{
		"object": "page",
		"entry": [{
			"id": "page_1",
			"changes": [{
				"field": "leadgen",
				"value": {"form_id": "form_9", "leadgen_id": "lg_42", "page_id": "page_1", "created_time": 1700000000}
			}]
		}]
	}`)

	ingestor.Ingest(entity.SourceFacebook, payload)
	ingestor.Ingest(entity.SourceFacebook, payload)

	if store.insertedLeads != 1 {
		t.Fatalf("expected exactly 1 imported lead, got %d", store.insertedLeads)
	}
	if broadcast.leadsCreated != 1 {
		t.Fatalf("expected 1 lead broadcast, got %d", broadcast.leadsCreated)
	}
	for _, lead := range store.leads {
		if lead.Name != "Facebook Lead lg_42" {
			t.Errorf("stub lead without fetcher should carry the leadgen id, got %q", lead.Name)
		}
		if lead.Source != entity.LeadSourceFacebook {
			t.Errorf("expected FACEBOOK source, got %q", lead.Source)
		}
	}
}

func TestIngestWhatsAppCreatesLeadAndActivity(t *testing.T) {
	store := newFakeStore()
	store.channels["whatsapp_cloud/phone_5"] = &entity.ChannelConfig{TenantID: "t1", Provider: entity.SourceWhatsAppCloud, Active: true}
	broadcast := &fakeBroadcast{}
	ingestor := testIngestor(store, broadcast)

	payload := []byte(`{
		"object": "whatsapp_business_account",
		"entry": [{
			"id": "waba_1",
			"changes": [{
				"field": "messages",
				"value": {
					"metadata": {"phone_number_id": "phone_5"},
					"contacts": [{"profile": {"name": "Mehmet"}, "wa_id": "905551112233"}],
					"messages": [{"from": "905551112233", "id": "wamid.1", "timestamp": "1700000000", "type": "text", "text": {"body": "selam"}}]
				}
			}]
		}]
	}`)

	ingestor.Ingest(entity.SourceWhatsAppCloud, payload)

	if store.insertedLeads != 1 {
		t.Fatalf("expected a lead for the unknown phone, got %d", store.insertedLeads)
	}
	if broadcast.leadsCreated != 1 || broadcast.whatsAppNotes != 1 {
		t.Fatalf("expected lead + whatsapp broadcasts, got leads=%d notes=%d", broadcast.leadsCreated, broadcast.whatsAppNotes)
	}

	// Second message from the same phone attaches to the existing lead.
	second := []byte(`{
		"object": "whatsapp_business_account",
		"entry": [{
			"id": "waba_1",
			"changes": [{
				"field": "messages",
				"value": {
					"metadata": {"phone_number_id": "phone_5"},
					"messages": [{"from": "905551112233", "id": "wamid.2", "timestamp": "1700000100", "type": "text", "text": {"body": "fiyat?"}}]
				}
			}]
		}]
	}`)
	ingestor.Ingest(entity.SourceWhatsAppCloud, second)

	if store.insertedLeads != 1 {
		t.Fatalf("known phone must reuse its lead, got %d leads", store.insertedLeads)
	}
	if broadcast.leadsUpdated != 1 {
		t.Fatalf("expected a lead update broadcast for the follow-up, got %d", broadcast.leadsUpdated)
	}
	// Updates on existing leads must carry the pipeline so the fan-out can
	// evaluate customer-scoped visibility.
	if broadcast.lastUpdatePipeline == nil || broadcast.lastUpdatePipeline.ID != "pipe_default" {
		t.Errorf("expected the lead's pipeline on the update broadcast, got %+v", broadcast.lastUpdatePipeline)
	}
	if broadcast.lastNotePipeline == nil {
		t.Errorf("expected the lead's pipeline on the whatsapp broadcast")
	}
}
