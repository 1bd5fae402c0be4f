package crm

import (
	"testing"

	"moiport/entity"
)

func TestScoreBaseline(t *testing.T) {
	lead := &entity.Lead{}
	if got := Score(lead, nil); got != 10 {
		t.Fatalf("empty lead scores the base 10, got %d", got)
	}
}

func TestScoreAttributesAndActivities(t *testing.T) {
	lead := &entity.Lead{Email: "a@b.co", Phone: "5551112233", AssigneeID: "u1"}
	activities := []entity.CrmActivity{
		{Type: entity.ActivityMeeting},
		{Type: entity.ActivityCall},
		{Type: entity.ActivityNote},
	}

	// 10 base + 15 email + 15 phone + 10 assignee + 10 + 8 + 2
	if got := Score(lead, activities); got != 70 {
		t.Fatalf("expected 70, got %d", got)
	}
}

func TestScoreIsCapped(t *testing.T) {
	lead := &entity.Lead{Email: "a@b.co", Phone: "5551112233", AssigneeID: "u1"}
	var activities []entity.CrmActivity
	for i := 0; i < 30; i++ {
		activities = append(activities, entity.CrmActivity{Type: entity.ActivityMeeting})
	}

	if got := Score(lead, activities); got != 100 {
		t.Fatalf("score must cap at 100, got %d", got)
	}
}

func TestScoreDeterministic(t *testing.T) {
	lead := &entity.Lead{Email: "a@b.co"}
	activities := []entity.CrmActivity{{Type: entity.ActivityCall}, {Type: entity.ActivityEmail}}

	first := Score(lead, activities)
	for i := 0; i < 5; i++ {
		if got := Score(lead, activities); got != first {
			t.Fatalf("same inputs must produce the same score: %d vs %d", first, got)
		}
	}
}
