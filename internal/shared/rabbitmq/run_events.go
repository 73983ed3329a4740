package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vhvplatform/go-notification-engine/internal/domain"
)

// RunCompletedRoutingKey is the routing key of run completed events
const RunCompletedRoutingKey = "notification.run.completed"

// Publisher sends a message body to an exchange
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body []byte) error
}

// RunCompletedEvent is emitted once per finished run
type RunCompletedEvent struct {
	EventType  string         `json:"event_type"`
	RunID      string         `json:"run_id"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Results    map[string]int `json:"results"`
	Errors     []string       `json:"errors"`
}

// RunEventPublisher announces finished runs on an exchange
type RunEventPublisher struct {
	publisher Publisher
	exchange  string
}

// NewRunEventPublisher creates a publisher for exchange
func NewRunEventPublisher(publisher Publisher, exchange string) *RunEventPublisher {
	return &RunEventPublisher{publisher: publisher, exchange: exchange}
}

// PublishRunCompleted publishes the summary of a finished run
func (p *RunEventPublisher) PublishRunCompleted(ctx context.Context, summary *domain.RunSummary) error {
	body, err := json.Marshal(RunCompletedEvent{
		EventType:  RunCompletedRoutingKey,
		RunID:      summary.RunID,
		StartedAt:  summary.StartedAt,
		FinishedAt: summary.FinishedAt,
		Results:    summary.Results(),
		Errors:     summary.Errors(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode run event: %w", err)
	}
	return p.publisher.Publish(ctx, p.exchange, RunCompletedRoutingKey, body)
}
