package entity

import "time"

// Source identifies the external system a payload came from.
type Source string

const (
	SourceInstagram      Source = "instagram"
	SourceFacebook       Source = "facebook"
	SourceWhatsAppCloud  Source = "whatsapp_cloud"
	SourceWhatsAppBridge Source = "whatsapp_bridge"
)

// ChannelConfig binds a provider account to a tenant (and optionally one of its
// customers). The inbound pipeline reads it to map a platform-scoped account id
// back to a tenant; it is mutated only through administrative configuration.
type ChannelConfig struct {
	ID         string `json:"id" bson:"_id"`
	TenantID   string `json:"tenant_id" bson:"tenant_id"`
	CustomerID string `json:"customer_id" bson:"customer_id"`
	Provider   Source `json:"provider" bson:"provider"`

	PageID                     string `json:"page_id" bson:"page_id"`
	InstagramBusinessAccountID string `json:"instagram_business_account_id" bson:"instagram_business_account_id"`
	PhoneNumberID              string `json:"phone_number_id" bson:"phone_number_id"`
	BridgeInstanceID           string `json:"bridge_instance_id" bson:"bridge_instance_id"`

	AccessToken string    `json:"-" bson:"access_token"`
	Active      bool      `json:"active" bson:"active"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
}

// AccountKey returns the provider-specific identifier inbound payloads carry.
func (c *ChannelConfig) AccountKey() string {
	switch c.Provider {
	case SourceInstagram:
		return c.InstagramBusinessAccountID
	case SourceFacebook:
		return c.PageID
	case SourceWhatsAppCloud:
		return c.PhoneNumberID
	case SourceWhatsAppBridge:
		return c.BridgeInstanceID
	}
	return ""
}
