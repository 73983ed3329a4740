package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vhvplatform/go-notification-engine/internal/domain"
)

func testCandidate(email string) *domain.Candidate {
	return &domain.Candidate{
		Customer: domain.Customer{Name: "Ana", Email: email},
		Type:     domain.TriggerBirthday,
	}
}

func TestDispatcher_Dispatch(t *testing.T) {
	transport := &fakeTransport{}
	d := NewDispatcher(transport, DispatcherConfig{FromEmail: "noreply@acme.test", FromName: "Acme"})

	receipt, err := d.Dispatch(context.Background(), testCandidate("ana@example.com"), "Hola", "<p>hi</p>")
	require.NoError(t, err)
	assert.Equal(t, "msg-ana@example.com", receipt.DeliveryID)
	assert.False(t, receipt.SentAt.IsZero())

	require.Len(t, transport.sent, 1)
	msg := transport.sent[0]
	assert.Equal(t, `"Acme" <noreply@acme.test>`, msg.From)
	assert.Equal(t, "ana@example.com", msg.To)
	assert.Equal(t, "Hola", msg.Subject)
	assert.Equal(t, "<p>hi</p>", msg.HTMLBody)
}

func TestDispatcher_TransportError(t *testing.T) {
	transport := &fakeTransport{failFor: map[string]error{"ana@example.com": errBoom}}
	d := NewDispatcher(transport, DispatcherConfig{FromEmail: "noreply@acme.test"})

	receipt, err := d.Dispatch(context.Background(), testCandidate("ana@example.com"), "s", "b")
	assert.ErrorIs(t, err, errBoom)
	assert.Nil(t, receipt)
}

func TestDispatcher_Timeout(t *testing.T) {
	blocking := TransportFunc(func(ctx context.Context, _ *domain.OutboundMessage) (string, error) {
		time.Sleep(200 * time.Millisecond)
		return "late", nil
	})
	d := NewDispatcher(blocking, DispatcherConfig{FromEmail: "noreply@acme.test", Timeout: 20 * time.Millisecond})

	start := time.Now()
	_, err := d.Dispatch(context.Background(), testCandidate("ana@example.com"), "s", "b")
	assert.ErrorIs(t, err, ErrDispatchTimeout)
	assert.Less(t, time.Since(start), 150*time.Millisecond)
}

func TestDispatcher_RateLimit(t *testing.T) {
	transport := &fakeTransport{}
	d := NewDispatcher(transport, DispatcherConfig{
		FromEmail:     "noreply@acme.test",
		Timeout:       50 * time.Millisecond,
		RatePerSecond: 0.1,
		Burst:         1,
	})

	_, err := d.Dispatch(context.Background(), testCandidate("a@example.com"), "s", "b")
	require.NoError(t, err)

	// the next token is ten seconds away, beyond the dispatch timeout
	_, err = d.Dispatch(context.Background(), testCandidate("b@example.com"), "s", "b")
	assert.Error(t, err)
	assert.Len(t, transport.sent, 1)
}
