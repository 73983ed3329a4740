package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/vhvplatform/go-notification-engine/internal/domain"
	"github.com/vhvplatform/go-notification-engine/internal/metrics"
	"golang.org/x/time/rate"
)

// ErrDispatchTimeout is returned when the transport does not answer in time
var ErrDispatchTimeout = errors.New("dispatch timed out")

// DispatcherConfig holds sender identity and delivery limits
type DispatcherConfig struct {
	FromEmail string
	FromName  string
	// Timeout bounds a single transport call
	Timeout time.Duration
	// RatePerSecond caps sends across the whole run; zero means unlimited
	RatePerSecond float64
	Burst         int
}

// Dispatcher hands rendered messages to the transport
type Dispatcher struct {
	transport Transport
	from      string
	timeout   time.Duration
	limiter   *rate.Limiter
	now       func() time.Time
}

// NewDispatcher creates a dispatcher for transport
func NewDispatcher(transport Transport, cfg DispatcherConfig) *Dispatcher {
	d := &Dispatcher{
		transport: transport,
		from:      cfg.FromEmail,
		timeout:   cfg.Timeout,
		now:       time.Now,
	}
	if cfg.FromName != "" {
		d.from = (&mail.Address{Name: cfg.FromName, Address: cfg.FromEmail}).String()
	}
	if d.timeout <= 0 {
		d.timeout = 30 * time.Second
	}
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		d.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	return d
}

type sendResult struct {
	id  string
	err error
}

// Dispatch sends one message to the candidate's email. Expiry of the
// per-dispatch timeout is a failure even if the transport later succeeds.
func (d *Dispatcher) Dispatch(ctx context.Context, cand *domain.Candidate, subject, htmlBody string) (*domain.DeliveryReceipt, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("send rate limit: %w", err)
		}
	}

	msg := &domain.OutboundMessage{
		From:     d.from,
		To:       cand.Customer.Email,
		Subject:  subject,
		HTMLBody: htmlBody,
	}

	start := time.Now()
	done := make(chan sendResult, 1)
	go func() {
		id, err := d.transport.Send(ctx, msg)
		done <- sendResult{id: id, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w after %s", ErrDispatchTimeout, d.timeout)
	case res := <-done:
		metrics.DispatchDuration.WithLabelValues(string(cand.Type)).Observe(time.Since(start).Seconds())
		if res.err != nil {
			return nil, res.err
		}
		return &domain.DeliveryReceipt{DeliveryID: res.id, SentAt: d.now()}, nil
	}
}
