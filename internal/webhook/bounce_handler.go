package webhook

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vhvplatform/go-notification-engine/internal/domain"
	"github.com/vhvplatform/go-notification-engine/internal/metrics"
	"github.com/vhvplatform/go-notification-engine/internal/shared/errors"
	"github.com/vhvplatform/go-notification-engine/internal/shared/logger"
)

// BounceStore links bounces back to the attempt that caused them
type BounceStore interface {
	FindByDeliveryID(ctx context.Context, id string) (*domain.NotificationHistory, error)
	Create(ctx context.Context, entry *domain.NotificationHistory) error
}

// BounceHandler handles email bounce webhooks
type BounceHandler struct {
	store BounceStore
	log   *logger.Logger
}

// BounceEvent represents a bounce event from an email provider
type BounceEvent struct {
	Type       string    `json:"type"` // bounce, complaint
	Email      string    `json:"email" binding:"required"`
	MessageID  string    `json:"message_id" binding:"required"`
	Timestamp  time.Time `json:"timestamp"`
	Reason     string    `json:"reason"`
	BounceType string    `json:"bounce_type"` // hard, soft
}

// NewBounceHandler creates a new bounce handler
func NewBounceHandler(store BounceStore, log *logger.Logger) *BounceHandler {
	return &BounceHandler{
		store: store,
		log:   log,
	}
}

// HandleSESWebhook appends a bounced row next to the original attempt.
// Bounces for messages this engine never sent are acknowledged and dropped.
func (h *BounceHandler) HandleSESWebhook(c *gin.Context) {
	var event BounceEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		h.log.Error("Invalid bounce event", "error", err)
		c.JSON(http.StatusBadRequest, errors.NewValidationError("Invalid request", err))
		return
	}

	h.log.Info("Received bounce event", "email", event.Email, "type", event.Type, "message_id", event.MessageID)

	original, err := h.store.FindByDeliveryID(c.Request.Context(), event.MessageID)
	if err != nil {
		h.log.Error("Failed to look up bounced message", "error", err, "message_id", event.MessageID)
		c.JSON(http.StatusInternalServerError, errors.NewInternalError("Failed to process bounce", err))
		return
	}
	if original == nil {
		h.log.Warn("Bounce for unknown message", "message_id", event.MessageID)
		c.JSON(http.StatusAccepted, gin.H{"status": "ignored"})
		return
	}

	kind := event.BounceType
	if event.Type == "complaint" {
		kind = "complaint"
	}

	at := event.Timestamp
	if at.IsZero() {
		at = time.Now()
	}

	bounced := &domain.NotificationHistory{
		RunID:            original.RunID,
		CustomerID:       original.CustomerID,
		NotificationType: original.NotificationType,
		RecipientEmail:   event.Email,
		Subject:          original.Subject,
		Status:           domain.NotificationStatusBounced,
		DeliveryID:       event.MessageID,
		ErrorMessage:     bounceMessage(kind, event.Reason),
		SentAt:           original.SentAt,
		BouncedAt:        &at,
	}
	if err := h.store.Create(c.Request.Context(), bounced); err != nil {
		h.log.Error("Failed to record bounce", "error", err)
		c.JSON(http.StatusInternalServerError, errors.NewInternalError("Failed to process bounce", err))
		return
	}

	metrics.EmailBounces.WithLabelValues(kind).Inc()

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func bounceMessage(kind, reason string) string {
	if kind == "" {
		kind = "bounce"
	}
	if reason == "" {
		return kind
	}
	return fmt.Sprintf("%s: %s", kind, reason)
}
