package entity

import (
	"time"

	"github.com/google/uuid"
)

// Tenant is the top-level isolation boundary. Every other entity carries its id
// and all queries, indexes and socket channels are scoped by it.
type Tenant struct {
	ID        string    `json:"id" bson:"_id"`
	Name      string    `json:"name" bson:"name" validate:"required"`
	Active    bool      `json:"active" bson:"active"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// Customer is an agency's client, an optional sub-scope inside a tenant.
// A CLIENT-role viewer is tied to exactly one customer.
type Customer struct {
	ID        string    `json:"id" bson:"_id"`
	TenantID  string    `json:"tenant_id" bson:"tenant_id"`
	Name      string    `json:"name" bson:"name"`
	Email     string    `json:"email" bson:"email"`
	Phone     string    `json:"phone" bson:"phone"`
	LeadID    string    `json:"lead_id" bson:"lead_id"` // set when created by lead conversion
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

func NewTenant(name string) *Tenant {
	return &Tenant{
		ID:        uuid.NewString(),
		Name:      name,
		Active:    true,
		CreatedAt: time.Now(),
	}
}
