package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vhvplatform/go-notification-engine/internal/domain"
	"github.com/vhvplatform/go-notification-engine/internal/repository"
	"github.com/vhvplatform/go-notification-engine/internal/shared/errors"
	"github.com/vhvplatform/go-notification-engine/internal/shared/logger"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// HistoryQuery lists history rows
type HistoryQuery interface {
	FindPage(ctx context.Context, f repository.HistoryFilter, page, pageSize int) ([]*domain.NotificationHistory, int64, error)
}

// ListHistoryRequest holds the audit log filters
type ListHistoryRequest struct {
	Type       domain.TriggerType        `form:"type"`
	CustomerID string                    `form:"customer_id"`
	Status     domain.NotificationStatus `form:"status"`
	Page       int                       `form:"page"`
	PageSize   int                       `form:"page_size"`
}

// HistoryHandler serves the send history
type HistoryHandler struct {
	history HistoryQuery
	log     *logger.Logger
}

// NewHistoryHandler creates a new history handler
func NewHistoryHandler(history HistoryQuery, log *logger.Logger) *HistoryHandler {
	return &HistoryHandler{
		history: history,
		log:     log,
	}
}

// ListHistory returns a page of attempts, newest first
func (h *HistoryHandler) ListHistory(c *gin.Context) {
	var req ListHistoryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("Invalid request", err))
		return
	}

	if req.Type != "" && !req.Type.Valid() {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("Unknown notification type", nil))
		return
	}
	switch req.Status {
	case "", domain.NotificationStatusSent, domain.NotificationStatusFailed, domain.NotificationStatusBounced:
	default:
		c.JSON(http.StatusBadRequest, errors.NewValidationError("Unknown status", nil))
		return
	}
	if req.CustomerID != "" && !primitive.IsValidObjectID(req.CustomerID) {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("Invalid customer_id", nil))
		return
	}

	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 {
		req.PageSize = defaultPageSize
	}
	if req.PageSize > maxPageSize {
		req.PageSize = maxPageSize
	}

	filter := repository.HistoryFilter{
		Type:       req.Type,
		CustomerID: req.CustomerID,
		Status:     req.Status,
	}
	entries, total, err := h.history.FindPage(c.Request.Context(), filter, req.Page, req.PageSize)
	if err != nil {
		h.log.Error("Failed to list history", "error", err)
		c.JSON(http.StatusInternalServerError, errors.NewInternalError("Failed to list history", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":      entries,
		"total":     total,
		"page":      req.Page,
		"page_size": req.PageSize,
	})
}
