package entity

import (
	"time"

	"github.com/google/uuid"
)

type ActivityType string

const (
	ActivityNote        ActivityType = "NOTE"
	ActivityCall        ActivityType = "CALL"
	ActivityEmail       ActivityType = "EMAIL"
	ActivityMeeting     ActivityType = "MEETING"
	ActivityReminder    ActivityType = "REMINDER"
	ActivityWhatsAppIn  ActivityType = "WHATSAPP_IN"
	ActivityWhatsAppOut ActivityType = "WHATSAPP_OUT"
	ActivitySystem      ActivityType = "SYSTEM"
)

// CrmActivity is a timeline entry on a lead. Channel-sourced entries carry the
// provider message id in ExternalID; (tenant_id, external_id) is their dedup key.
type CrmActivity struct {
	ID             string       `json:"id" bson:"_id"`
	LeadID         string       `json:"lead_id" bson:"lead_id"`
	TenantID       string       `json:"tenant_id" bson:"tenant_id"`
	UserID         string       `json:"user_id" bson:"user_id"`
	Type           ActivityType `json:"type" bson:"type"`
	Content        string       `json:"content" bson:"content"`
	Status         string       `json:"status" bson:"status"`
	ExternalID     string       `json:"external_id" bson:"external_id"`
	ReminderDate   *time.Time   `json:"reminder_date,omitempty" bson:"reminder_date,omitempty"`
	IsReminderSent bool         `json:"is_reminder_sent" bson:"is_reminder_sent"`
	CreatedAt      time.Time    `json:"created_at" bson:"created_at"`
}

// IsChannelSourced reports whether the entry originated from an external
// messaging channel, i.e. whether ExternalID participates in deduplication.
func (a *CrmActivity) IsChannelSourced() bool {
	switch a.Type {
	case ActivityWhatsAppIn, ActivityWhatsAppOut:
		return true
	}
	return false
}

func NewActivity(tenantID, leadID, userID string, typ ActivityType, content string) *CrmActivity {
	return &CrmActivity{
		ID:        uuid.NewString(),
		LeadID:    leadID,
		TenantID:  tenantID,
		UserID:    userID,
		Type:      typ,
		Content:   content,
		CreatedAt: time.Now(),
	}
}
