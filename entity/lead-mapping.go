package entity

import (
	"encoding/json"
	"time"
)

// FacebookLeadMapping binds a Lead-Ad form to a pipeline, stage and default
// assignee, and optionally restricts which staff users may see unassigned
// leads imported from that form.
type FacebookLeadMapping struct {
	ID                string    `json:"id" bson:"_id"`
	TenantID          string    `json:"tenant_id" bson:"tenant_id"`
	CustomerID        string    `json:"customer_id" bson:"customer_id"`
	FormID            string    `json:"form_id" bson:"form_id"`
	PageID            string    `json:"page_id" bson:"page_id"`
	PipelineID        string    `json:"pipeline_id" bson:"pipeline_id"`
	StageID           string    `json:"stage_id" bson:"stage_id"`
	DefaultAssigneeID string    `json:"default_assignee_id" bson:"default_assignee_id"`
	AssignedUserIDs   string    `json:"assigned_user_ids" bson:"assigned_user_ids"` // JSON-encoded string array
	FieldMappings     string    `json:"field_mappings" bson:"field_mappings"`       // JSON-encoded map
	Active            bool      `json:"active" bson:"active"`
	CreatedAt         time.Time `json:"created_at" bson:"created_at"`
}

// DecodeAssignedUserIDs parses the JSON allow-list. An empty or malformed
// value decodes to nil, which downstream treats as "unrestricted": a broken
// ACL makes leads visible to staff rather than silently hiding them.
func DecodeAssignedUserIDs(raw string) []string {
	if raw == "" {
		return nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil
	}
	if len(ids) == 0 {
		return nil
	}
	return ids
}

// DecodeFieldMappings parses the JSON field-name map; malformed input decodes
// to an empty map.
func DecodeFieldMappings(raw string) map[string]string {
	out := map[string]string{}
	if raw == "" {
		return out
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return map[string]string{}
	}
	return out
}
