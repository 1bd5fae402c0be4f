package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	SuperAdminRole = "SUPER_ADMIN"
	AdminRole      = "ADMIN"
	StaffRole      = "USER"
	ClientRole     = "CLIENT"
)

// Password assigned to auto-provisioned visitor accounts. Visitors never log in
// interactively, the value only has to be fixed and non-guessable.
const visitorPassword = "!visitor-no-login-7f1c9d2e"

// User is a platform account inside a tenant. Visitors (external contacts
// reached over a channel) are stored as CLIENT users with a deterministic
// placeholder email so repeated lookups are idempotent.
type User struct {
	ID             string    `json:"id" bson:"_id"`
	TenantID       string    `json:"tenant_id" bson:"tenant_id"`
	CustomerID     string    `json:"customer_id" bson:"customer_id"`
	Name           string    `json:"name" bson:"name" validate:"omitempty"`
	Email          string    `json:"email" bson:"email" validate:"omitempty,email"`
	Password       string    `json:"-" bson:"password"`
	Role           string    `json:"role" bson:"role"`
	Platform       Platform  `json:"platform" bson:"platform"`
	PlatformUserID string    `json:"platform_user_id" bson:"platform_user_id"`
	Active         bool      `json:"active" bson:"active"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at"`
}

func (u *User) IsAdmin() bool {
	return u.Role == AdminRole || u.Role == SuperAdminRole
}

func (u *User) IsStaff() bool {
	return u.Role != ClientRole
}

// PlaceholderEmail derives the deterministic visitor identity for a platform
// user id, e.g. "ig_17841400000@instagram.placeholder".
func PlaceholderEmail(platform Platform, platformUserID string) string {
	prefix := "ext"
	domain := "external"
	switch platform {
	case PlatformInstagram:
		prefix, domain = "ig", "instagram"
	case PlatformFacebook:
		prefix, domain = "fb", "facebook"
	case PlatformWhatsApp:
		prefix, domain = "wa", "whatsapp"
	}
	return fmt.Sprintf("%s_%s@%s.placeholder", prefix, platformUserID, domain)
}

// NewVisitor builds the synthetic account for an external contact.
func NewVisitor(tenantID string, platform Platform, platformUserID, name string) *User {
	return &User{
		ID:             uuid.NewString(),
		TenantID:       tenantID,
		Name:           name,
		Email:          PlaceholderEmail(platform, platformUserID),
		Password:       visitorPassword,
		Role:           ClientRole,
		Platform:       platform,
		PlatformUserID: platformUserID,
		Active:         true,
		CreatedAt:      time.Now(),
	}
}

// Viewer is the resolved identity behind an authenticated connection or request.
type Viewer struct {
	TenantID   string `json:"tenant_id"`
	UserID     string `json:"user_id"`
	Role       string `json:"role"`
	CustomerID string `json:"customer_id"`
}

func (v *Viewer) IsAdmin() bool {
	return v.Role == AdminRole || v.Role == SuperAdminRole
}
