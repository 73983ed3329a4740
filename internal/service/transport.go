package service

import (
	"context"

	"github.com/vhvplatform/go-notification-engine/internal/domain"
)

// Transport delivers a rendered message and returns the provider's
// delivery id
type Transport interface {
	Send(ctx context.Context, msg *domain.OutboundMessage) (string, error)
}

// TransportFunc adapts a function to Transport
type TransportFunc func(ctx context.Context, msg *domain.OutboundMessage) (string, error)

// Send calls f
func (f TransportFunc) Send(ctx context.Context, msg *domain.OutboundMessage) (string, error) {
	return f(ctx, msg)
}
