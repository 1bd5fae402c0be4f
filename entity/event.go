package entity

import "time"

// EventKind discriminates CanonicalEvent variants.
type EventKind string

const (
	EventMessage  EventKind = "message"
	EventComment  EventKind = "comment"
	EventLeadForm EventKind = "lead_form"
)

// CanonicalEvent is the platform-agnostic form of one inbound item. Every
// adapter output is one of three variants: a direct message, a comment on a
// post, or a lead-form submission (LeadForm set only for the latter).
type CanonicalEvent struct {
	Kind       EventKind
	Platform   Platform
	Source     Source
	AccountID  string // platform-scoped account the event arrived for (page id, IG business id, phone-number id)
	SenderID   string
	SenderName string
	ThreadID   string // conversation counterpart id; post/media id for comments
	Content    string
	ExternalID string
	LeadForm   *LeadFormData
	Timestamp  time.Time
}

// LeadFormData carries the identifiers of a Lead-Ad submission. Contact
// fields are filled in when the provider payload (or a later fetch) exposes
// them; they may legitimately be empty.
type LeadFormData struct {
	FormID    string
	LeadgenID string
	Name      string
	Email     string
	Phone     string
}
