// Package visibility decides which viewer may see which lead or room. The
// same rule table is exposed twice: as boolean predicates for membership
// tests (socket joins, single-record access) and as bson filters for list
// queries. Both forms must agree for every (viewer, entity) pair.
package visibility

import (
	"go.mongodb.org/mongo-driver/bson"

	"moiport/entity"
)

// FormRestricts reports whether a Lead-Ad form's allow-list excludes the
// viewer. An absent mapping, an empty list or a malformed list all mean
// unrestricted.
func FormRestricts(mapping *entity.FacebookLeadMapping, viewerID string) bool {
	if mapping == nil {
		return false
	}
	ids := entity.DecodeAssignedUserIDs(mapping.AssignedUserIDs)
	if len(ids) == 0 {
		return false
	}
	for _, id := range ids {
		if id == viewerID {
			return false
		}
	}
	return true
}

// CanViewLead is the membership-test form of the lead rule table. The
// pipeline may be nil when the lead's pipeline is not customer-scoped; the
// mapping may be nil when the lead did not come from a Lead-Ad form.
func CanViewLead(viewer *entity.Viewer, lead *entity.Lead, pipeline *entity.Pipeline, mapping *entity.FacebookLeadMapping) bool {
	if viewer == nil || lead == nil || lead.TenantID != viewer.TenantID {
		return false
	}

	if viewer.IsAdmin() {
		return true
	}

	if viewer.Role == entity.ClientRole {
		if viewer.CustomerID == "" {
			return false
		}
		if lead.CustomerID == viewer.CustomerID {
			return true
		}
		return pipeline != nil && pipeline.CustomerID == viewer.CustomerID
	}

	// Non-admin staff: own leads, plus unassigned leads whose form does not
	// restrict them.
	if lead.AssigneeID == viewer.UserID {
		return true
	}
	if lead.AssigneeID != "" {
		return false
	}
	return !FormRestricts(mapping, viewer.UserID)
}

// LeadFilter is the query form of the lead rule table. restrictedFormIDs is
// the precomputed set of form ids whose allow-list excludes the viewer;
// clientPipelineIDs is the precomputed set of pipelines scoped to the
// viewer's customer.
func LeadFilter(viewer *entity.Viewer, restrictedFormIDs, clientPipelineIDs []string) bson.M {
	filter := bson.M{"tenant_id": viewer.TenantID}

	if viewer.IsAdmin() {
		return filter
	}

	if viewer.Role == entity.ClientRole {
		// A CLIENT without customer scope matches nothing, same as the
		// predicate; an empty customer_id equality would sweep in every
		// agency-owned lead.
		if viewer.CustomerID == "" {
			filter["_id"] = bson.M{"$in": bson.A{}}
			return filter
		}
		or := bson.A{bson.M{"customer_id": viewer.CustomerID}}
		if len(clientPipelineIDs) > 0 {
			or = append(or, bson.M{"pipeline_id": bson.M{"$in": clientPipelineIDs}})
		}
		filter["$or"] = or
		return filter
	}

	unassigned := bson.M{"assignee_id": bson.M{"$in": bson.A{"", nil}}}
	if len(restrictedFormIDs) > 0 {
		unassigned = bson.M{
			"assignee_id":      bson.M{"$in": bson.A{"", nil}},
			"facebook_form_id": bson.M{"$nin": restrictedFormIDs},
		}
	}
	filter["$or"] = bson.A{
		bson.M{"assignee_id": viewer.UserID},
		unassigned,
	}

	return filter
}

// CanViewRoom is the membership-test form of the room rule table. isMember
// reports whether the viewer holds a ChatMembership row for the room; an
// explicit membership bypasses the private flag for every role.
func CanViewRoom(viewer *entity.Viewer, room *entity.ChatRoom, isMember bool) bool {
	if viewer == nil || room == nil || room.TenantID != viewer.TenantID {
		return false
	}

	if viewer.IsAdmin() {
		return true
	}

	if isMember {
		return true
	}

	if viewer.Role == entity.ClientRole {
		if room.CustomerID != "" && room.CustomerID != viewer.CustomerID {
			return false
		}
		return !room.IsPrivate
	}

	return !room.IsPrivate
}

// RoomFilter is the query form of the room rule table. memberRoomIDs is the
// precomputed set of rooms the viewer holds a membership in.
func RoomFilter(viewer *entity.Viewer, memberRoomIDs []string) bson.M {
	filter := bson.M{"tenant_id": viewer.TenantID}

	if viewer.IsAdmin() {
		return filter
	}

	ids := memberRoomIDs
	if ids == nil {
		ids = []string{}
	}
	member := bson.M{"_id": bson.M{"$in": ids}}

	if viewer.Role == entity.ClientRole {
		filter["$or"] = bson.A{
			member,
			bson.M{
				"is_private":  false,
				"customer_id": bson.M{"$in": bson.A{"", viewer.CustomerID}},
			},
		}
		return filter
	}

	filter["$or"] = bson.A{
		member,
		bson.M{"is_private": false},
	}
	return filter
}

// CanListMember implements the member-listing rule: staff see everyone in the
// tenant, CLIENT viewers see staff roles and themselves only.
func CanListMember(viewer *entity.Viewer, target *entity.User) bool {
	if viewer == nil || target == nil || target.TenantID != viewer.TenantID {
		return false
	}
	if viewer.Role != entity.ClientRole {
		return true
	}
	return target.Role != entity.ClientRole || target.ID == viewer.UserID
}
