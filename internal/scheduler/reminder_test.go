package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"moiport/entity"
)

type fakeReminderStore struct {
	due     []entity.CrmActivity
	users   map[string]*entity.User
	admins  map[string]*entity.User
	claimed map[string]bool
}

func (s *fakeReminderStore) DueReminders(time.Time, time.Duration) ([]entity.CrmActivity, error) {
	var out []entity.CrmActivity
	for _, r := range s.due {
		if !s.claimed[r.ID] {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeReminderStore) ClaimReminder(id string) (bool, error) {
	if s.claimed[id] {
		return false, nil
	}
	if s.claimed == nil {
		s.claimed = map[string]bool{}
	}
	s.claimed[id] = true
	return true, nil
}

func (s *fakeReminderStore) GetUserByID(id string) (*entity.User, error) {
	return s.users[id], nil
}

func (s *fakeReminderStore) FirstActiveAdmin(tenantID string) (*entity.User, error) {
	return s.admins[tenantID], nil
}

type recordingNotifier struct {
	sent []string
	fail map[string]error
}

func (n *recordingNotifier) Notify(user *entity.User, activity entity.CrmActivity) error {
	if err := n.fail[activity.ID]; err != nil {
		return err
	}
	n.sent = append(n.sent, activity.ID)
	return nil
}

func reminder(id, tenantID, userID string) entity.CrmActivity {
	due := time.Now().Add(-time.Minute)
	return entity.CrmActivity{
		ID:           id,
		TenantID:     tenantID,
		UserID:       userID,
		Type:         entity.ActivityReminder,
		Content:      "ara",
		ReminderDate: &due,
	}
}

func newScheduler(store Store, notifier Notifier) *Scheduler {
	return New(store, notifier, time.Minute, 30*time.Second, slog.Default())
}

func TestRunOnceDispatchesToOwner(t *testing.T) {
	store := &fakeReminderStore{
		due:     []entity.CrmActivity{reminder("a1", "t1", "u1")},
		users:   map[string]*entity.User{"u1": {ID: "u1", TenantID: "t1", Active: true}},
		claimed: map[string]bool{},
	}
	notifier := &recordingNotifier{}

	newScheduler(store, notifier).RunOnce(context.Background())

	if len(notifier.sent) != 1 || notifier.sent[0] != "a1" {
		t.Fatalf("expected a1 dispatched, got %v", notifier.sent)
	}
	if !store.claimed["a1"] {
		t.Fatalf("dispatched reminder must be claimed")
	}
}

func TestRunOnceFallsBackToAdmin(t *testing.T) {
	store := &fakeReminderStore{
		due:     []entity.CrmActivity{reminder("a1", "t1", "")},
		admins:  map[string]*entity.User{"t1": {ID: "u_admin", TenantID: "t1", Role: entity.AdminRole, Active: true}},
		claimed: map[string]bool{},
	}
	notifier := &recordingNotifier{}

	newScheduler(store, notifier).RunOnce(context.Background())

	if len(notifier.sent) != 1 {
		t.Fatalf("expected fallback dispatch to the admin, got %v", notifier.sent)
	}
}

func TestRunOnceSkipsWithoutTargetAndLeavesUnclaimed(t *testing.T) {
	store := &fakeReminderStore{
		due:     []entity.CrmActivity{reminder("a1", "t1", "")},
		claimed: map[string]bool{},
	}
	notifier := &recordingNotifier{}

	newScheduler(store, notifier).RunOnce(context.Background())

	if len(notifier.sent) != 0 {
		t.Fatalf("no target means no dispatch, got %v", notifier.sent)
	}
	if store.claimed["a1"] {
		t.Fatalf("skipped reminder must stay unclaimed")
	}
}

func TestRunOnceClaimsAtMostOnce(t *testing.T) {
	store := &fakeReminderStore{
		due:     []entity.CrmActivity{reminder("a1", "t1", "u1")},
		users:   map[string]*entity.User{"u1": {ID: "u1", TenantID: "t1", Active: true}},
		claimed: map[string]bool{},
	}
	notifier := &recordingNotifier{}
	sched := newScheduler(store, notifier)

	sched.RunOnce(context.Background())
	sched.RunOnce(context.Background())

	if len(notifier.sent) != 1 {
		t.Fatalf("overlapping ticks must not re-dispatch, got %v", notifier.sent)
	}
}

func TestRunOnceIsolatesDispatchFailures(t *testing.T) {
	store := &fakeReminderStore{
		due: []entity.CrmActivity{
			reminder("a1", "t1", "u1"),
			reminder("a2", "t1", "u1"),
		},
		users:   map[string]*entity.User{"u1": {ID: "u1", TenantID: "t1", Active: true}},
		claimed: map[string]bool{},
	}
	notifier := &recordingNotifier{fail: map[string]error{"a1": errors.New("telegram down")}}

	newScheduler(store, notifier).RunOnce(context.Background())

	if len(notifier.sent) != 1 || notifier.sent[0] != "a2" {
		t.Fatalf("one failing dispatch must not stop the batch, got %v", notifier.sent)
	}
}

func TestInactiveOwnerFallsBackToAdmin(t *testing.T) {
	store := &fakeReminderStore{
		due:     []entity.CrmActivity{reminder("a1", "t1", "u_gone")},
		users:   map[string]*entity.User{"u_gone": {ID: "u_gone", TenantID: "t1", Active: false}},
		admins:  map[string]*entity.User{"t1": {ID: "u_admin", TenantID: "t1", Role: entity.AdminRole, Active: true}},
		claimed: map[string]bool{},
	}
	notifier := &recordingNotifier{}

	newScheduler(store, notifier).RunOnce(context.Background())

	if len(notifier.sent) != 1 {
		t.Fatalf("inactive owner must fall back to the admin, got %v", notifier.sent)
	}
}
