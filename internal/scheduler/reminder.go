// Package scheduler runs the periodic reminder sweep. The loop is an
// explicit task with its own lifecycle so tests can trigger a single tick
// deterministically.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"moiport/entity"
	"moiport/internal/lib/sl"
)

type Store interface {
	DueReminders(now time.Time, buffer time.Duration) ([]entity.CrmActivity, error)
	ClaimReminder(id string) (bool, error)
	GetUserByID(id string) (*entity.User, error)
	FirstActiveAdmin(tenantID string) (*entity.User, error)
}

// Notifier dispatches one reminder notification to its target user.
type Notifier interface {
	Notify(user *entity.User, activity entity.CrmActivity) error
}

type Scheduler struct {
	store    Store
	notifier Notifier
	interval time.Duration
	buffer   time.Duration
	log      *slog.Logger
}

func New(store Store, notifier Notifier, interval, buffer time.Duration, log *slog.Logger) *Scheduler {
	return &Scheduler{
		store:    store,
		notifier: notifier,
		interval: interval,
		buffer:   buffer,
		log:      log.With(sl.Module("scheduler")),
	}
}

// Run ticks until the context is cancelled. Should be called in a goroutine.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("reminder scheduler started", slog.Duration("interval", s.interval))

	for {
		select {
		case <-ctx.Done():
			s.log.Info("reminder scheduler stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce processes every due, unsent reminder. Each reminder is claimed
// atomically before dispatch, so overlapping ticks deliver at-least-once
// without duplicating sends; one failing dispatch never stops the batch.
func (s *Scheduler) RunOnce(ctx context.Context) {
	reminders, err := s.store.DueReminders(time.Now(), s.buffer)
	if err != nil {
		s.log.Error("query due reminders", sl.Err(err))
		return
	}

	for _, reminder := range reminders {
		if ctx.Err() != nil {
			return
		}
		s.dispatch(reminder)
	}
}

func (s *Scheduler) dispatch(reminder entity.CrmActivity) {
	target := s.resolveTarget(reminder)
	if target == nil {
		// No addressable user; leave the reminder unclaimed and move on.
		s.log.Warn("reminder has no target user, skipping",
			slog.String("activity_id", reminder.ID),
			slog.String("tenant_id", reminder.TenantID),
		)
		return
	}

	claimed, err := s.store.ClaimReminder(reminder.ID)
	if err != nil {
		s.log.Error("claim reminder", slog.String("activity_id", reminder.ID), sl.Err(err))
		return
	}
	if !claimed {
		return
	}

	if err := s.notifier.Notify(target, reminder); err != nil {
		s.log.Error("reminder dispatch failed",
			slog.String("activity_id", reminder.ID),
			slog.String("user_id", target.ID),
			sl.Err(err),
		)
	}
}

// resolveTarget picks the reminder's own user, falling back to the tenant's
// first active admin.
func (s *Scheduler) resolveTarget(reminder entity.CrmActivity) *entity.User {
	if reminder.UserID != "" {
		user, err := s.store.GetUserByID(reminder.UserID)
		if err != nil {
			s.log.Error("resolve reminder user", slog.String("user_id", reminder.UserID), sl.Err(err))
		} else if user != nil && user.Active {
			return user
		}
	}

	admin, err := s.store.FirstActiveAdmin(reminder.TenantID)
	if err != nil {
		s.log.Error("resolve fallback admin", slog.String("tenant_id", reminder.TenantID), sl.Err(err))
		return nil
	}
	return admin
}
