package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/feliks/curio/internal/logger"
	"github.com/feliks/curio/internal/service"
	"github.com/gin-gonic/gin"
)

// AdminHandler handles admin operations.
type AdminHandler struct {
	indexer *service.Indexer
	logger  *logger.Logger

	// Reindex job state
	mu            sync.RWMutex
	isRunning     bool
	lastResult    *service.ReindexAllResult
	lastRunTime   time.Time
	lastRunStatus string
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(indexer *service.Indexer, log *logger.Logger) *AdminHandler {
	if log == nil {
		log = logger.GetDefault()
	}
	return &AdminHandler{
		indexer: indexer,
		logger:  log,
	}
}

// ReindexRequest represents the reindex API request.
type ReindexRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// ReindexResponse represents the reindex API response.
type ReindexResponse struct {
	Message string                    `json:"message"`
	Result  *service.ReindexAllResult `json:"result,omitempty"`
}

// ReindexStatusResponse represents the reindex job status.
type ReindexStatusResponse struct {
	IsRunning     bool                      `json:"is_running"`
	LastRunTime   string                    `json:"last_run_time,omitempty"`
	LastRunStatus string                    `json:"last_run_status,omitempty"`
	LastResult    *service.ReindexAllResult `json:"last_result,omitempty"`
}

// TriggerReindex handles POST /api/v1/admin/reindex. It rebuilds the vector
// index from the database for one user, repairing any drift left behind by
// failed asynchronous propagation.
func (h *AdminHandler) TriggerReindex(c *gin.Context) {
	ctx := c.Request.Context()

	var req ReindexRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.CtxWarn(ctx, "Invalid reindex request: client_ip=%s, error=%v", c.ClientIP(), err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.mu.RLock()
	if h.isRunning {
		h.mu.RUnlock()
		logger.CtxWarn(ctx, "Reindex request rejected: already running, client_ip=%s", c.ClientIP())
		c.JSON(http.StatusConflict, gin.H{"error": "Reindex is already running"})
		return
	}
	h.mu.RUnlock()

	h.mu.Lock()
	h.isRunning = true
	h.lastResult = nil
	h.mu.Unlock()

	logger.CtxInfo(ctx, "Starting reindex: user_id=%s", req.UserID)

	// Use background context to avoid cancellation on HTTP timeout
	startTime := time.Now()
	result, err := h.indexer.ReindexAll(context.Background(), req.UserID)
	duration := time.Since(startTime)

	h.mu.Lock()
	h.isRunning = false
	h.lastResult = result
	h.lastRunTime = time.Now()
	if err != nil {
		h.lastRunStatus = "failed: " + err.Error()
	} else {
		h.lastRunStatus = "success"
	}
	h.mu.Unlock()

	if err != nil {
		logger.With(logger.Fields{
			logger.FieldDurationMs: duration.Milliseconds(),
		}).Error(ctx, "Reindex failed: user_id=%s, error=%v", req.UserID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	logger.With(logger.Fields{
		logger.FieldDurationMs: duration.Milliseconds(),
		logger.FieldCount:      result.Indexed,
	}).Info(ctx, "Reindex completed: user_id=%s, indexed=%d, failed=%d",
		req.UserID, result.Indexed, result.Failed)

	c.JSON(http.StatusOK, ReindexResponse{
		Message: "Reindex completed successfully",
		Result:  result,
	})
}

// GetReindexStatus handles GET /api/v1/admin/reindex/status.
func (h *AdminHandler) GetReindexStatus(c *gin.Context) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	resp := ReindexStatusResponse{
		IsRunning:     h.isRunning,
		LastRunStatus: h.lastRunStatus,
		LastResult:    h.lastResult,
	}
	if !h.lastRunTime.IsZero() {
		resp.LastRunTime = h.lastRunTime.Format(time.RFC3339)
	}

	c.JSON(http.StatusOK, resp)
}
