// Package crm holds lead-level business rules shared by the HTTP layer and
// the ingestion pipeline.
package crm

import "moiport/entity"

const maxScore = 100

var activityWeights = map[entity.ActivityType]int{
	entity.ActivityMeeting:     10,
	entity.ActivityCall:        8,
	entity.ActivityEmail:       5,
	entity.ActivityWhatsAppIn:  4,
	entity.ActivityWhatsAppOut: 3,
	entity.ActivityNote:        2,
	entity.ActivityReminder:    1,
}

// Score recomputes a lead's engagement score from its current attributes and
// activities. The function is pure: the same inputs always produce the same
// value, and nothing else may write the score field.
func Score(lead *entity.Lead, activities []entity.CrmActivity) int {
	score := 10

	if lead.Email != "" {
		score += 15
	}
	if lead.Phone != "" {
		score += 15
	}
	if lead.AssigneeID != "" {
		score += 10
	}

	for _, activity := range activities {
		score += activityWeights[activity.Type]
	}

	if score > maxScore {
		return maxScore
	}
	return score
}
