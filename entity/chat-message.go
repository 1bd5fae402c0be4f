package entity

import (
	"time"

	"github.com/google/uuid"
)

type MessageStatus string

const (
	StatusSent      MessageStatus = "SENT"
	StatusDelivered MessageStatus = "DELIVERED"
	StatusRead      MessageStatus = "READ"
	StatusFailed    MessageStatus = "FAILED"
)

var statusRank = map[MessageStatus]int{
	StatusSent:      1,
	StatusDelivered: 2,
	StatusRead:      3,
}

// CanAdvanceTo reports whether a status transition is legal. The delivery
// chain only moves forward (SENT -> DELIVERED -> READ); FAILED is terminal
// and reachable only from SENT.
func (s MessageStatus) CanAdvanceTo(next MessageStatus) bool {
	if s == StatusFailed {
		return false
	}
	if next == StatusFailed {
		return s == StatusSent
	}
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[next]
	if !ok {
		return false
	}
	return to > from
}

// ChatMessage is a single message inside a room. When ExternalID is set,
// (room_id, external_id) is the dedup key for webhook-originated messages.
type ChatMessage struct {
	ID         string        `json:"id" bson:"_id"`
	RoomID     string        `json:"room_id" bson:"room_id"`
	UserID     string        `json:"user_id" bson:"user_id"`
	TenantID   string        `json:"tenant_id" bson:"tenant_id"`
	Content    string        `json:"content" bson:"content"`
	Platform   Platform      `json:"platform" bson:"platform"`
	ExternalID string        `json:"external_id" bson:"external_id"`
	Status     MessageStatus `json:"status" bson:"status"`
	DeletedAt  *time.Time    `json:"deleted_at,omitempty" bson:"deleted_at,omitempty"`
	CreatedAt  time.Time     `json:"created_at" bson:"created_at"`
}

func NewChatMessage(tenantID, roomID, userID, content string, platform Platform, externalID string, status MessageStatus, at time.Time) *ChatMessage {
	if at.IsZero() {
		at = time.Now()
	}
	return &ChatMessage{
		ID:         uuid.NewString(),
		RoomID:     roomID,
		UserID:     userID,
		TenantID:   tenantID,
		Content:    content,
		Platform:   platform,
		ExternalID: externalID,
		Status:     status,
		CreatedAt:  at,
	}
}
