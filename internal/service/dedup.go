package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vhvplatform/go-notification-engine/internal/domain"
	"github.com/vhvplatform/go-notification-engine/internal/trigger"
)

// HistoryLookup answers whether a customer already had an attempt of a type
type HistoryLookup interface {
	HasAttemptSince(ctx context.Context, customerID string, t domain.TriggerType, since time.Time) (bool, error)
}

// DedupGuard decides whether a candidate was already notified recently.
// Failed attempts count the same as sent ones.
type DedupGuard struct {
	history  HistoryLookup
	calendar trigger.Calendar
}

// NewDedupGuard creates a guard backed by the history store
func NewDedupGuard(history HistoryLookup, calendar trigger.Calendar) *DedupGuard {
	return &DedupGuard{history: history, calendar: calendar}
}

// Since returns the earliest attempt time that still suppresses a candidate
// of type t. Payment reminders repeat every RepeatEveryDays; the other rules
// fire at most once per business day.
func (g *DedupGuard) Since(t domain.TriggerType, params domain.TriggerParams, now time.Time) time.Time {
	if t == domain.TriggerPaymentReminder {
		days := domain.DefaultRepeatEveryDays
		if p, ok := params.(domain.PaymentReminderParams); ok && p.RepeatEveryDays > 0 {
			days = p.RepeatEveryDays
		}
		return now.AddDate(0, 0, -days)
	}
	return g.calendar.StartOfDay(now)
}

// ShouldSuppress reports whether cand must be skipped. A lookup failure
// suppresses the candidate and is returned alongside true.
func (g *DedupGuard) ShouldSuppress(ctx context.Context, cand *domain.Candidate, params domain.TriggerParams, now time.Time) (bool, error) {
	if cand.Customer.ID.IsZero() {
		return true, errors.New("candidate has no customer id")
	}

	since := g.Since(cand.Type, params, now)
	found, err := g.history.HasAttemptSince(ctx, cand.Customer.ID.Hex(), cand.Type, since)
	if err != nil {
		return true, fmt.Errorf("history lookup failed: %w", err)
	}
	return found, nil
}
