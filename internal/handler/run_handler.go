package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vhvplatform/go-notification-engine/internal/domain"
	apperrors "github.com/vhvplatform/go-notification-engine/internal/shared/errors"
	"github.com/vhvplatform/go-notification-engine/internal/shared/logger"
)

// RunEngine executes one notification run
type RunEngine interface {
	Run(ctx context.Context) (*domain.RunSummary, error)
}

// RunHandler exposes the run trigger over HTTP
type RunHandler struct {
	engine RunEngine
	log    *logger.Logger
}

// NewRunHandler creates a new run handler
func NewRunHandler(engine RunEngine, log *logger.Logger) *RunHandler {
	return &RunHandler{
		engine: engine,
		log:    log,
	}
}

// Run executes a run to completion even if the caller disconnects
func (h *RunHandler) Run(c *gin.Context) {
	ctx := context.WithoutCancel(c.Request.Context())

	summary, err := h.engine.Run(ctx)
	if err != nil {
		status := http.StatusInternalServerError
		appErr := apperrors.NewInternalError("Notification run failed", err)
		if errors.Is(err, domain.ErrRunInProgress) {
			status = http.StatusConflict
			appErr = apperrors.NewConflictError("Another notification run is in progress", err)
		}
		h.log.Error("Notification run failed", "error", err, "status", status)
		c.JSON(status, gin.H{
			"success": false,
			"code":    appErr.Code,
			"error":   appErr.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"run_id":  summary.RunID,
		"results": summary.Results(),
		"errors":  summary.Errors(),
	})
}
