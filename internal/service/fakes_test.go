package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vhvplatform/go-notification-engine/internal/domain"
)

type fakeStore struct{ err error }

func (f *fakeStore) Ping(context.Context) error { return f.err }

type fakeCustomers struct {
	customers []domain.Customer
	err       error
}

func (f *fakeCustomers) FindWithEmail(context.Context) ([]domain.Customer, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.Customer, len(f.customers))
	copy(out, f.customers)
	return out, nil
}

type fakeConfigs struct {
	configs map[domain.TriggerType]*domain.NotificationConfig
	errs    map[domain.TriggerType]error
}

func (f *fakeConfigs) FindByType(_ context.Context, t domain.TriggerType) (*domain.NotificationConfig, error) {
	if err := f.errs[t]; err != nil {
		return nil, err
	}
	return f.configs[t], nil
}

type fakeTemplates struct {
	templates map[domain.TriggerType]*domain.NotificationTemplate
}

func (f *fakeTemplates) FindActiveByType(_ context.Context, t domain.TriggerType) (*domain.NotificationTemplate, error) {
	return f.templates[t], nil
}

// memHistory is an in-memory history store serving both the guard and the recorder
type memHistory struct {
	mu        sync.Mutex
	rows      []*domain.NotificationHistory
	lookupErr error
	createErr error
}

func (m *memHistory) HasAttemptSince(_ context.Context, customerID string, t domain.TriggerType, since time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lookupErr != nil {
		return false, m.lookupErr
	}
	for _, row := range m.rows {
		if row.CustomerID != nil && row.CustomerID.Hex() == customerID &&
			row.NotificationType == t && !row.SentAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memHistory) Create(_ context.Context, entry *domain.NotificationHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.rows = append(m.rows, entry)
	return nil
}

func (m *memHistory) byStatus(status domain.NotificationStatus) []*domain.NotificationHistory {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.NotificationHistory
	for _, row := range m.rows {
		if row.Status == status {
			out = append(out, row)
		}
	}
	return out
}

type fakeTransport struct {
	mu      sync.Mutex
	sent    []*domain.OutboundMessage
	failFor map[string]error
	delay   time.Duration
}

func (f *fakeTransport) Send(ctx context.Context, msg *domain.OutboundMessage) (string, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err := f.failFor[msg.To]; err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return "msg-" + msg.To, nil
}

func (f *fakeTransport) recipients() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, m := range f.sent {
		out = append(out, m.To)
	}
	return out
}

type fakeLock struct {
	err      error
	released bool
}

func (f *fakeLock) Acquire(context.Context, string) (func(context.Context) error, error) {
	if f.err != nil {
		return nil, f.err
	}
	return func(context.Context) error {
		f.released = true
		return nil
	}, nil
}

type fakePublisher struct {
	summaries []*domain.RunSummary
}

func (f *fakePublisher) PublishRunCompleted(_ context.Context, s *domain.RunSummary) error {
	f.summaries = append(f.summaries, s)
	return nil
}

var errBoom = errors.New("boom")
