package entity

import (
	"time"

	"github.com/google/uuid"
)

// Platform identifies where a room's conversation lives.
type Platform string

const (
	PlatformInternal  Platform = "INTERNAL"
	PlatformInstagram Platform = "INSTAGRAM"
	PlatformFacebook  Platform = "FACEBOOK"
	PlatformWhatsApp  Platform = "WHATSAPP"
)

type RoomType string

const (
	RoomChannel RoomType = "CHANNEL"
	RoomProject RoomType = "PROJECT"
	RoomDM      RoomType = "DM"
)

// ChatRoom is a conversation container. When ExternalID is set,
// (tenant_id, platform, external_id) is a natural key: DM rooms carry the
// counterpart platform user id, comment (CHANNEL) rooms carry the post or
// media id. UpdatedAt is bumped on every new message and drives ordering.
type ChatRoom struct {
	ID         string    `json:"id" bson:"_id"`
	TenantID   string    `json:"tenant_id" bson:"tenant_id"`
	CustomerID string    `json:"customer_id" bson:"customer_id"`
	Name       string    `json:"name" bson:"name"`
	Type       RoomType  `json:"type" bson:"type"`
	Platform   Platform  `json:"platform" bson:"platform"`
	ExternalID string    `json:"external_id" bson:"external_id"`
	IsPrivate  bool      `json:"is_private" bson:"is_private"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" bson:"updated_at"`
}

// ChatMembership grants read access to a room regardless of the room's own ACL.
type ChatMembership struct {
	RoomID    string    `json:"room_id" bson:"room_id"`
	UserID    string    `json:"user_id" bson:"user_id"`
	TenantID  string    `json:"tenant_id" bson:"tenant_id"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// NewChannelRoom builds a room for an external conversation thread.
func NewChannelRoom(tenantID, customerID, name string, typ RoomType, platform Platform, externalID string) *ChatRoom {
	now := time.Now()
	return &ChatRoom{
		ID:         uuid.NewString(),
		TenantID:   tenantID,
		CustomerID: customerID,
		Name:       name,
		Type:       typ,
		Platform:   platform,
		ExternalID: externalID,
		IsPrivate:  true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
