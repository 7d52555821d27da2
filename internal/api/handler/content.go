package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/feliks/curio/internal/api/middleware"
	"github.com/feliks/curio/internal/domain"
	"github.com/feliks/curio/internal/logger"
	"github.com/feliks/curio/internal/service"
	"github.com/gin-gonic/gin"
)

// ContentHandler handles content item endpoints.
type ContentHandler struct {
	contentService *service.ContentService
}

// NewContentHandler creates a new content handler.
func NewContentHandler(contentService *service.ContentService) *ContentHandler {
	return &ContentHandler{contentService: contentService}
}

// Create handles POST /api/v1/content.
func (h *ContentHandler) Create(c *gin.Context) {
	var req service.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	item, err := h.contentService.Create(c.Request.Context(), middleware.UserID(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, item)
}

// Get handles GET /api/v1/content/:id.
func (h *ContentHandler) Get(c *gin.Context) {
	item, err := h.contentService.Get(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, item)
}

// List handles GET /api/v1/content.
func (h *ContentHandler) List(c *gin.Context) {
	kind := domain.ContentKind(c.Query("kind"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	items, err := h.contentService.List(c.Request.Context(), middleware.UserID(c), kind, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items":  items,
		"total":  len(items),
		"limit":  limit,
		"offset": offset,
	})
}

// Update handles PATCH /api/v1/content/:id.
func (h *ContentHandler) Update(c *gin.Context) {
	var req service.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	item, err := h.contentService.Update(c.Request.Context(), middleware.UserID(c), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, item)
}

// Delete handles DELETE /api/v1/content/:id.
func (h *ContentHandler) Delete(c *gin.Context) {
	if err := h.contentService.Delete(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Reprocess handles POST /api/v1/content/:id/reprocess.
func (h *ContentHandler) Reprocess(c *gin.Context) {
	ctx := c.Request.Context()
	item, err := h.contentService.Reprocess(ctx, middleware.UserID(c), c.Param("id"))
	if err != nil {
		logger.CtxWarn(ctx, "Reprocess rejected: id=%s, error=%v", c.Param("id"), err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, item)
}

// Snapshot handles GET /api/v1/content/:id/snapshot, serving the archived
// original page.
func (h *ContentHandler) Snapshot(c *gin.Context) {
	body, err := h.contentService.Snapshot(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	defer body.Close()

	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if _, err := io.Copy(c.Writer, body); err != nil {
		logger.CtxWarn(c.Request.Context(), "Snapshot write failed: id=%s, error=%v", c.Param("id"), err)
	}
}

// QueueStatus handles GET /api/v1/queue/status.
func (h *ContentHandler) QueueStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.contentService.QueueStatus())
}
