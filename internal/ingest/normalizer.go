package ingest

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"moiport/entity"
)

// Placeholder content rendered for non-text payloads. Unknown attachment
// types degrade to a bracketed type name instead of failing the event.
const (
	placeholderImage    = "[Resim]"
	placeholderDocument = "[Belge]"
	placeholderAudio    = "[Ses]"
	placeholderVideo    = "[Video]"
)

func placeholderFor(kind string) string {
	switch kind {
	case "image", "sticker":
		return placeholderImage
	case "document", "file":
		return placeholderDocument
	case "audio", "voice":
		return placeholderAudio
	case "video":
		return placeholderVideo
	case "":
		return "[Mesaj]"
	}
	return fmt.Sprintf("[%s]", kind)
}

// Normalize translates one raw webhook delivery into zero or more canonical
// events. Adapters tolerate missing optional fields and never fail the whole
// batch: a malformed item simply produces no event. Echo and self-sent items
// are filtered out here.
func Normalize(source entity.Source, body []byte) []entity.CanonicalEvent {
	switch source {
	case entity.SourceInstagram:
		return normalizeInstagram(body)
	case entity.SourceFacebook:
		return normalizeFacebook(body)
	case entity.SourceWhatsAppCloud:
		return normalizeWhatsAppCloud(body)
	case entity.SourceWhatsAppBridge:
		return normalizeBridge(body)
	}
	return nil
}

// metaMessaging is the shared shape of Meta messenger entries (Instagram DMs
// and Facebook Page messages).
type metaMessaging struct {
	Sender struct {
		ID string `json:"id"`
	} `json:"sender"`
	Recipient struct {
		ID string `json:"id"`
	} `json:"recipient"`
	Timestamp int64 `json:"timestamp"`
	Message   *struct {
		Mid         string `json:"mid"`
		Text        string `json:"text"`
		IsEcho      bool   `json:"is_echo,omitempty"`
		Attachments []struct {
			Type string `json:"type"`
		} `json:"attachments,omitempty"`
	} `json:"message,omitempty"`
}

func (m *metaMessaging) content() string {
	if m.Message.Text != "" {
		return m.Message.Text
	}
	if len(m.Message.Attachments) > 0 {
		return placeholderFor(m.Message.Attachments[0].Type)
	}
	return placeholderFor("")
}

func metaTime(ms int64) time.Time {
	if ms <= 0 {
		return time.Now()
	}
	return time.UnixMilli(ms)
}

// entryTime converts Meta's entry-level time field, which is in seconds,
// unlike the millisecond timestamps on messaging items.
func entryTime(seconds int64) time.Time {
	if seconds <= 0 {
		return time.Now()
	}
	return time.Unix(seconds, 0)
}

func normalizeInstagram(body []byte) []entity.CanonicalEvent {
	var payload struct {
		Object string `json:"object"`
		Entry  []struct {
			ID        string          `json:"id"`
			Time      int64           `json:"time"`
			Messaging []metaMessaging `json:"messaging"`
			Changes   []struct {
				Field string `json:"field"`
				Value struct {
					ID   string `json:"id"`
					Text string `json:"text"`
					From struct {
						ID       string `json:"id"`
						Username string `json:"username"`
					} `json:"from"`
					Media struct {
						ID string `json:"id"`
					} `json:"media"`
				} `json:"value"`
			} `json:"changes"`
		} `json:"entry"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Object != "instagram" {
		return nil
	}

	var events []entity.CanonicalEvent
	for _, entry := range payload.Entry {
		for _, messaging := range entry.Messaging {
			if messaging.Message == nil || messaging.Message.IsEcho {
				continue
			}
			if messaging.Sender.ID == "" || messaging.Message.Mid == "" {
				continue
			}
			events = append(events, entity.CanonicalEvent{
				Kind:       entity.EventMessage,
				Platform:   entity.PlatformInstagram,
				Source:     entity.SourceInstagram,
				AccountID:  entry.ID,
				SenderID:   messaging.Sender.ID,
				ThreadID:   messaging.Sender.ID,
				Content:    messaging.content(),
				ExternalID: messaging.Message.Mid,
				Timestamp:  metaTime(messaging.Timestamp),
			})
		}
		for _, change := range entry.Changes {
			if change.Field != "comments" {
				continue
			}
			value := change.Value
			if value.ID == "" || value.From.ID == "" {
				continue
			}
			content := value.Text
			if content == "" {
				content = placeholderFor("")
			}
			events = append(events, entity.CanonicalEvent{
				Kind:       entity.EventComment,
				Platform:   entity.PlatformInstagram,
				Source:     entity.SourceInstagram,
				AccountID:  entry.ID,
				SenderID:   value.From.ID,
				SenderName: value.From.Username,
				ThreadID:   value.Media.ID,
				Content:    content,
				ExternalID: value.ID,
				Timestamp:  entryTime(entry.Time),
			})
		}
	}

	return events
}

func normalizeFacebook(body []byte) []entity.CanonicalEvent {
	var payload struct {
		Object string `json:"object"`
		Entry  []struct {
			ID        string          `json:"id"`
			Time      int64           `json:"time"`
			Messaging []metaMessaging `json:"messaging"`
			Changes   []struct {
				Field string `json:"field"`
				Value struct {
					FormID      string `json:"form_id"`
					LeadgenID   string `json:"leadgen_id"`
					PageID      string `json:"page_id"`
					CreatedTime int64  `json:"created_time"`
				} `json:"value"`
			} `json:"changes"`
		} `json:"entry"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Object != "page" {
		return nil
	}

	var events []entity.CanonicalEvent
	for _, entry := range payload.Entry {
		for _, messaging := range entry.Messaging {
			if messaging.Message == nil || messaging.Message.IsEcho {
				continue
			}
			if messaging.Sender.ID == "" || messaging.Message.Mid == "" {
				continue
			}
			events = append(events, entity.CanonicalEvent{
				Kind:       entity.EventMessage,
				Platform:   entity.PlatformFacebook,
				Source:     entity.SourceFacebook,
				AccountID:  entry.ID,
				SenderID:   messaging.Sender.ID,
				ThreadID:   messaging.Sender.ID,
				Content:    messaging.content(),
				ExternalID: messaging.Message.Mid,
				Timestamp:  metaTime(messaging.Timestamp),
			})
		}
		for _, change := range entry.Changes {
			if change.Field != "leadgen" {
				continue
			}
			value := change.Value
			if value.LeadgenID == "" || value.FormID == "" {
				continue
			}
			accountID := value.PageID
			if accountID == "" {
				accountID = entry.ID
			}
			ts := time.Now()
			if value.CreatedTime > 0 {
				ts = time.Unix(value.CreatedTime, 0)
			}
			events = append(events, entity.CanonicalEvent{
				Kind:       entity.EventLeadForm,
				Platform:   entity.PlatformFacebook,
				Source:     entity.SourceFacebook,
				AccountID:  accountID,
				ExternalID: value.LeadgenID,
				LeadForm: &entity.LeadFormData{
					FormID:    value.FormID,
					LeadgenID: value.LeadgenID,
				},
				Timestamp: ts,
			})
		}
	}

	return events
}

func normalizeWhatsAppCloud(body []byte) []entity.CanonicalEvent {
	var payload struct {
		Object string `json:"object"`
		Entry  []struct {
			ID      string `json:"id"`
			Changes []struct {
				Field string `json:"field"`
				Value struct {
					Metadata struct {
						PhoneNumberID string `json:"phone_number_id"`
					} `json:"metadata"`
					Contacts []struct {
						Profile struct {
							Name string `json:"name"`
						} `json:"profile"`
						WaID string `json:"wa_id"`
					} `json:"contacts"`
					Messages []struct {
						From      string `json:"from"`
						ID        string `json:"id"`
						Timestamp string `json:"timestamp"`
						Type      string `json:"type"`
						Text      *struct {
							Body string `json:"body"`
						} `json:"text,omitempty"`
					} `json:"messages"`
				} `json:"value"`
			} `json:"changes"`
		} `json:"entry"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Object != "whatsapp_business_account" {
		return nil
	}

	var events []entity.CanonicalEvent
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			if change.Field != "messages" {
				continue
			}
			value := change.Value

			names := make(map[string]string, len(value.Contacts))
			for _, contact := range value.Contacts {
				names[contact.WaID] = contact.Profile.Name
			}

			for _, message := range value.Messages {
				if message.From == "" || message.ID == "" {
					continue
				}
				content := ""
				if message.Type == "text" && message.Text != nil {
					content = message.Text.Body
				}
				if content == "" {
					content = placeholderFor(message.Type)
				}
				ts := time.Now()
				if seconds, err := strconv.ParseInt(message.Timestamp, 10, 64); err == nil && seconds > 0 {
					ts = time.Unix(seconds, 0)
				}
				events = append(events, entity.CanonicalEvent{
					Kind:       entity.EventMessage,
					Platform:   entity.PlatformWhatsApp,
					Source:     entity.SourceWhatsAppCloud,
					AccountID:  value.Metadata.PhoneNumberID,
					SenderID:   message.From,
					SenderName: names[message.From],
					ThreadID:   message.From,
					Content:    content,
					ExternalID: message.ID,
					Timestamp:  ts,
				})
			}
		}
	}

	return events
}

// normalizeBridge handles the third-party WhatsApp bridge's messages.upsert
// callback.
func normalizeBridge(body []byte) []entity.CanonicalEvent {
	var payload struct {
		Event    string `json:"event"`
		Instance string `json:"instance"`
		Data     struct {
			Key struct {
				RemoteJid string `json:"remoteJid"`
				FromMe    bool   `json:"fromMe"`
				ID        string `json:"id"`
			} `json:"key"`
			PushName         string `json:"pushName"`
			MessageTimestamp int64  `json:"messageTimestamp"`
			Message          struct {
				Conversation        string `json:"conversation"`
				ExtendedTextMessage *struct {
					Text string `json:"text"`
				} `json:"extendedTextMessage,omitempty"`
				ImageMessage    json.RawMessage `json:"imageMessage,omitempty"`
				DocumentMessage json.RawMessage `json:"documentMessage,omitempty"`
				AudioMessage    json.RawMessage `json:"audioMessage,omitempty"`
				VideoMessage    json.RawMessage `json:"videoMessage,omitempty"`
			} `json:"message"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Event != "messages.upsert" {
		return nil
	}

	data := payload.Data
	if data.Key.FromMe || data.Key.ID == "" || data.Key.RemoteJid == "" {
		return nil
	}
	// Group chats are not synced into the pipeline.
	if strings.HasSuffix(data.Key.RemoteJid, "@g.us") {
		return nil
	}

	senderID := strings.SplitN(data.Key.RemoteJid, "@", 2)[0]

	content := data.Message.Conversation
	if content == "" && data.Message.ExtendedTextMessage != nil {
		content = data.Message.ExtendedTextMessage.Text
	}
	if content == "" {
		switch {
		case len(data.Message.ImageMessage) > 0:
			content = placeholderImage
		case len(data.Message.DocumentMessage) > 0:
			content = placeholderDocument
		case len(data.Message.AudioMessage) > 0:
			content = placeholderAudio
		case len(data.Message.VideoMessage) > 0:
			content = placeholderVideo
		default:
			content = placeholderFor("")
		}
	}

	ts := time.Now()
	if data.MessageTimestamp > 0 {
		ts = time.Unix(data.MessageTimestamp, 0)
	}

	return []entity.CanonicalEvent{{
		Kind:       entity.EventMessage,
		Platform:   entity.PlatformWhatsApp,
		Source:     entity.SourceWhatsAppBridge,
		AccountID:  payload.Instance,
		SenderID:   senderID,
		SenderName: data.PushName,
		ThreadID:   senderID,
		Content:    content,
		ExternalID: data.Key.ID,
		Timestamp:  ts,
	}}
}
