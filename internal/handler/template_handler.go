package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vhvplatform/go-notification-engine/internal/domain"
	"github.com/vhvplatform/go-notification-engine/internal/renderer"
	"github.com/vhvplatform/go-notification-engine/internal/shared/errors"
	"github.com/vhvplatform/go-notification-engine/internal/trigger"
)

// TemplateVariablesRequest is a draft template to inspect
type TemplateVariablesRequest struct {
	Subject string             `json:"subject"`
	Body    string             `json:"body" binding:"required"`
	Type    domain.TriggerType `json:"type"`
}

// TemplateCache drops the cached active template of a type
type TemplateCache interface {
	Invalidate(t domain.TriggerType)
}

// TemplateHandler offers authoring helpers for templates
type TemplateHandler struct {
	cache TemplateCache
}

// NewTemplateHandler creates a new template handler
func NewTemplateHandler(cache TemplateCache) *TemplateHandler {
	return &TemplateHandler{cache: cache}
}

// Refresh forces the next run to reload the active template of a type, so an
// edited or deactivated template takes effect without waiting for the cache TTL.
func (h *TemplateHandler) Refresh(c *gin.Context) {
	t := domain.TriggerType(c.Param("type"))
	if !t.Valid() {
		c.JSON(http.StatusNotFound, errors.NewNotFoundError("Unknown notification type", nil))
		return
	}

	h.cache.Invalidate(t)
	c.JSON(http.StatusOK, gin.H{"status": "refreshed", "type": t})
}

// Variables lists the placeholders a draft references. With a type, it also
// reports placeholders that rule never fills.
func (h *TemplateHandler) Variables(c *gin.Context) {
	var req TemplateVariablesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.NewValidationError("Invalid request", err))
		return
	}

	variables := renderer.ExtractVariables(req.Subject, req.Body)
	resp := gin.H{"variables": variables}

	if req.Type != "" {
		if !req.Type.Valid() {
			c.JSON(http.StatusBadRequest, errors.NewValidationError("Unknown notification type", nil))
			return
		}
		supplied := make(map[string]bool)
		for _, name := range trigger.Variables(req.Type) {
			supplied[name] = true
		}
		unsupported := []string{}
		for _, name := range variables {
			if !supplied[name] {
				unsupported = append(unsupported, name)
			}
		}
		resp["unsupported"] = unsupported
	}

	c.JSON(http.StatusOK, resp)
}
