package service

import (
	"context"
	"time"

	"github.com/vhvplatform/go-notification-engine/internal/domain"
)

// HistoryStore appends attempt rows
type HistoryStore interface {
	Create(ctx context.Context, entry *domain.NotificationHistory) error
}

// Attempt is the outcome of one dispatch
type Attempt struct {
	RunID     string
	Candidate *domain.Candidate
	Subject   string
	Receipt   *domain.DeliveryReceipt
	Err       error
	// At overrides the recorded time; zero means now
	At time.Time
}

// HistoryRecorder writes one history row per attempt
type HistoryRecorder struct {
	store HistoryStore
	now   func() time.Time
}

// NewHistoryRecorder creates a recorder over store
func NewHistoryRecorder(store HistoryStore) *HistoryRecorder {
	return &HistoryRecorder{store: store, now: time.Now}
}

// Record appends the attempt as sent or failed
func (r *HistoryRecorder) Record(ctx context.Context, a Attempt) error {
	entry := &domain.NotificationHistory{
		RunID:            a.RunID,
		NotificationType: a.Candidate.Type,
		RecipientEmail:   a.Candidate.Customer.Email,
		Subject:          a.Subject,
		Status:           domain.NotificationStatusSent,
		SentAt:           r.now(),
	}
	if id := a.Candidate.Customer.ID; !id.IsZero() {
		entry.CustomerID = &id
	}

	if a.Err != nil {
		entry.Status = domain.NotificationStatusFailed
		entry.ErrorMessage = a.Err.Error()
	} else if a.Receipt != nil {
		entry.DeliveryID = a.Receipt.DeliveryID
		if !a.Receipt.SentAt.IsZero() {
			entry.SentAt = a.Receipt.SentAt
		}
	}
	if !a.At.IsZero() {
		entry.SentAt = a.At
	}

	return r.store.Create(ctx, entry)
}
