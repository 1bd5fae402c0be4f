package entity

import (
	"time"

	"github.com/google/uuid"
)

type LeadStatus string

const (
	LeadOpen LeadStatus = "OPEN"
	LeadWon  LeadStatus = "WON"
	LeadLost LeadStatus = "LOST"
)

type LeadSource string

const (
	LeadSourceManual    LeadSource = "MANUAL"
	LeadSourceFacebook  LeadSource = "FACEBOOK"
	LeadSourceInstagram LeadSource = "INSTAGRAM"
	LeadSourceWhatsApp  LeadSource = "WHATSAPP"
)

// Pipeline is an ordered list of named stages, per tenant and optionally per
// customer. A pipeline always has at least one stage.
type Pipeline struct {
	ID         string    `json:"id" bson:"_id"`
	TenantID   string    `json:"tenant_id" bson:"tenant_id"`
	CustomerID string    `json:"customer_id" bson:"customer_id"`
	Name       string    `json:"name" bson:"name"`
	IsDefault  bool      `json:"is_default" bson:"is_default"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at"`
}

type Stage struct {
	ID         string    `json:"id" bson:"_id"`
	PipelineID string    `json:"pipeline_id" bson:"pipeline_id"`
	TenantID   string    `json:"tenant_id" bson:"tenant_id"`
	Name       string    `json:"name" bson:"name"`
	Order      int       `json:"order" bson:"order"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at"`
}

// Lead is a CRM record. Score is recomputed from attributes and activities,
// never hand-edited; Status moves OPEN -> WON | LOST via explicit conversion.
type Lead struct {
	ID             string     `json:"id" bson:"_id"`
	TenantID       string     `json:"tenant_id" bson:"tenant_id"`
	CustomerID     string     `json:"customer_id" bson:"customer_id"`
	PipelineID     string     `json:"pipeline_id" bson:"pipeline_id"`
	StageID        string     `json:"stage_id" bson:"stage_id"`
	AssigneeID     string     `json:"assignee_id" bson:"assignee_id"`
	Name           string     `json:"name" bson:"name" validate:"required"`
	Email          string     `json:"email" bson:"email" validate:"omitempty,email"`
	Phone          string     `json:"phone" bson:"phone"`
	Source         LeadSource `json:"source" bson:"source"`
	FacebookFormID string     `json:"facebook_form_id" bson:"facebook_form_id"`
	Score          int        `json:"score" bson:"score"`
	Status         LeadStatus `json:"status" bson:"status"`
	CreatedAt      time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" bson:"updated_at"`
}

func NewLead(tenantID, customerID, pipelineID, stageID, name string, source LeadSource) *Lead {
	now := time.Now()
	return &Lead{
		ID:         uuid.NewString(),
		TenantID:   tenantID,
		CustomerID: customerID,
		PipelineID: pipelineID,
		StageID:    stageID,
		Name:       name,
		Source:     source,
		Status:     LeadOpen,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
