package ingest

import (
	"testing"

	"moiport/entity"
)

func TestNormalizeInstagramMessage(t *testing.T) {
	body := []byte(`{
		"object": "instagram",
		"entry": [{
			"id": "17841400000",
			"time": 1700000000000,
			"messaging": [{
				"sender": {"id": "9001"},
				"recipient": {"id": "17841400000"},
				"timestamp": 1700000000000,
				"message": {"mid": "mid.abc", "text": "merhaba"}
			}]
		}]
	}`)

	events := Normalize(entity.SourceInstagram, body)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	ev := events[0]
	if ev.Kind != entity.EventMessage {
		t.Errorf("expected message kind, got %q", ev.Kind)
	}
	if ev.Platform != entity.PlatformInstagram {
		t.Errorf("expected INSTAGRAM platform, got %q", ev.Platform)
	}
	if ev.AccountID != "17841400000" || ev.SenderID != "9001" || ev.ExternalID != "mid.abc" {
		t.Errorf("unexpected identity fields: %+v", ev)
	}
	if ev.Content != "merhaba" {
		t.Errorf("expected content preserved, got %q", ev.Content)
	}
	if ev.ThreadID != "9001" {
		t.Errorf("DM thread should be the sender id, got %q", ev.ThreadID)
	}
}

func TestNormalizeInstagramFiltersEcho(t *testing.T) {
	body := []byte(`{
		"object": "instagram",
		"entry": [{
			"id": "17841400000",
			"messaging": [{
				"sender": {"id": "17841400000"},
				"message": {"mid": "mid.echo", "text": "echo", "is_echo": true}
			}]
		}]
	}`)

	if events := Normalize(entity.SourceInstagram, body); len(events) != 0 {
		t.Fatalf("echo messages must be dropped, got %d events", len(events))
	}
}

func TestNormalizeInstagramAttachmentPlaceholder(t *testing.T) {
	cases := []struct {
		attachmentType string
		want           string
	}{
		{"image", "[Resim]"},
		{"file", "[Belge]"},
		{"audio", "[Ses]"},
		{"video", "[Video]"},
		{"share", "[share]"},
	}

	for _, tc := range cases {
		body := []byte(`{
			"object": "instagram",
			"entry": [{
				"id": "acc",
				"messaging": [{
					"sender": {"id": "9001"},
					"message": {"mid": "mid.1", "attachments": [{"type": "` + tc.attachmentType + `"}]}
				}]
			}]
		}`)
		events := Normalize(entity.SourceInstagram, body)
		if len(events) != 1 {
			t.Fatalf("%s: expected 1 event, got %d", tc.attachmentType, len(events))
		}
		if events[0].Content != tc.want {
			t.Errorf("%s: expected placeholder %q, got %q", tc.attachmentType, tc.want, events[0].Content)
		}
	}
}

func TestNormalizeInstagramComment(t *testing.T) {
	body := []byte(`{
		"object": "instagram",
		"entry": [{
			"id": "acc",
			"time": 1700000000,
			"changes": [{
				"field": "comments",
				"value": {
					"id": "comment_1",
					"text": "fiyat nedir",
					"from": {"id": "9002", "username": "ayse"},
					"media": {"id": "media_7"}
				}
			}]
		}]
	}`)

	events := Normalize(entity.SourceInstagram, body)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ev := events[0]
	if ev.Kind != entity.EventComment {
		t.Errorf("expected comment kind, got %q", ev.Kind)
	}
	if ev.ThreadID != "media_7" {
		t.Errorf("comment thread should be the media id, got %q", ev.ThreadID)
	}
	if ev.SenderName != "ayse" {
		t.Errorf("expected sender name from username, got %q", ev.SenderName)
	}
	// Entry-level time is in seconds; it must not be read as milliseconds.
	if ev.Timestamp.Unix() != 1700000000 {
		t.Errorf("expected second-resolution entry time, got %v", ev.Timestamp)
	}
}

func TestNormalizeFacebookLeadgen(t *testing.T) {
	body := []byte(`{
		"object": "page",
		"entry": [{
			"id": "page_1",
			"changes": [{
				"field": "leadgen",
				"value": {"form_id": "form_9", "leadgen_id": "lg_42", "page_id": "page_1", "created_time": 1700000000}
			}]
		}]
	}`)

	events := Normalize(entity.SourceFacebook, body)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ev := events[0]
	if ev.Kind != entity.EventLeadForm {
		t.Fatalf("expected lead_form kind, got %q", ev.Kind)
	}
	if ev.LeadForm == nil || ev.LeadForm.FormID != "form_9" || ev.LeadForm.LeadgenID != "lg_42" {
		t.Errorf("unexpected lead form data: %+v", ev.LeadForm)
	}
	if ev.ExternalID != "lg_42" {
		t.Errorf("leadgen id must be the dedup key, got %q", ev.ExternalID)
	}
}

func TestNormalizeWhatsAppCloud(t *testing.T) {
	body := []byte(`{
		"object": "whatsapp_business_account",
		"entry": [{
			"id": "waba_1",
			"changes": [{
				"field": "messages",
				"value": {
					"metadata": {"phone_number_id": "phone_5"},
					"contacts": [{"profile": {"name": "Mehmet"}, "wa_id": "905551112233"}],
					"messages": [
						{"from": "905551112233", "id": "wamid.1", "timestamp": "1700000000", "type": "text", "text": {"body": "selam"}},
						{"from": "905551112233", "id": "wamid.2", "timestamp": "1700000001", "type": "image"}
					]
				}
			}]
		}]
	}`)

	events := Normalize(entity.SourceWhatsAppCloud, body)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].AccountID != "phone_5" {
		t.Errorf("account must be the phone number id, got %q", events[0].AccountID)
	}
	if events[0].SenderName != "Mehmet" {
		t.Errorf("expected contact name resolved, got %q", events[0].SenderName)
	}
	if events[0].Content != "selam" {
		t.Errorf("expected text body, got %q", events[0].Content)
	}
	if events[1].Content != "[Resim]" {
		t.Errorf("expected image placeholder, got %q", events[1].Content)
	}
}

func TestNormalizeBridgeFiltersOwnAndGroupMessages(t *testing.T) {
	fromMe := []byte(`{
		"event": "messages.upsert",
		"instance": "inst_1",
		"data": {
			"key": {"remoteJid": "905551112233@s.whatsapp.net", "fromMe": true, "id": "B1"},
			"message": {"conversation": "kendi mesajım"}
		}
	}`)
	if events := Normalize(entity.SourceWhatsAppBridge, fromMe); len(events) != 0 {
		t.Fatalf("fromMe messages must be dropped, got %d", len(events))
	}

	group := []byte(`{
		"event": "messages.upsert",
		"instance": "inst_1",
		"data": {
			"key": {"remoteJid": "12036304@g.us", "fromMe": false, "id": "B2"},
			"message": {"conversation": "grup"}
		}
	}`)
	if events := Normalize(entity.SourceWhatsAppBridge, group); len(events) != 0 {
		t.Fatalf("group messages must be dropped, got %d", len(events))
	}
}

func TestNormalizeBridgeMessage(t *testing.T) {
	body := []byte(`{
		"event": "messages.upsert",
		"instance": "inst_1",
		"data": {
			"key": {"remoteJid": "905551112233@s.whatsapp.net", "fromMe": false, "id": "B3"},
			"pushName": "Fatma",
			"messageTimestamp": 1700000000,
			"message": {"conversation": "merhaba"}
		}
	}`)

	events := Normalize(entity.SourceWhatsAppBridge, body)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ev := events[0]
	if ev.SenderID != "905551112233" {
		t.Errorf("expected jid stripped to phone, got %q", ev.SenderID)
	}
	if ev.AccountID != "inst_1" {
		t.Errorf("expected bridge instance as account, got %q", ev.AccountID)
	}
	if ev.SenderName != "Fatma" || ev.Content != "merhaba" {
		t.Errorf("unexpected event: %+v", ev)
	}
}

func TestNormalizeMalformedAndForeignPayloads(t *testing.T) {
	cases := []struct {
		name   string
		source entity.Source
		body   string
	}{
		{"broken json", entity.SourceInstagram, `{"object": "instagram"`},
		{"wrong object", entity.SourceInstagram, `{"object": "page", "entry": []}`},
		{"empty body", entity.SourceFacebook, ``},
		{"missing ids", entity.SourceInstagram, `{"object":"instagram","entry":[{"id":"a","messaging":[{"message":{"text":"no mid"}}]}]}`},
		{"unknown bridge event", entity.SourceWhatsAppBridge, `{"event":"connection.update"}`},
	}

	for _, tc := range cases {
		if events := Normalize(tc.source, []byte(tc.body)); len(events) != 0 {
			t.Errorf("%s: expected no events, got %d", tc.name, len(events))
		}
	}
}
