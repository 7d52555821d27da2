package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/feliks/curio/internal/api/middleware"
	"github.com/feliks/curio/internal/logger"
	"github.com/feliks/curio/internal/service"
	"github.com/gin-gonic/gin"
)

// ChatHandler handles chat-over-library endpoints.
type ChatHandler struct {
	chatService *service.ChatService
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(chatService *service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// ChatRequest represents a chat API request.
type ChatRequest struct {
	Question   string `json:"question" binding:"required"`
	MaxSources int    `json:"max_sources"`
	Stream     bool   `json:"stream"`
}

// Chat handles POST /api/v1/chat. With stream=true the answer is sent as
// server-sent events, a sources event first and then one event per token.
func (h *ChatHandler) Chat(c *gin.Context) {
	if !h.chatService.IsEnabled() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "chat is not configured"})
		return
	}

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	ctx := c.Request.Context()
	userID := middleware.UserID(c)

	if !req.Stream {
		result, err := h.chatService.Answer(ctx, userID, req.Question, req.MaxSources)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
		return
	}

	eventCh := make(chan service.ChatEvent, 64)
	errCh := make(chan error, 1)
	go func() {
		errCh <- h.chatService.AnswerStream(ctx, userID, req.Question, req.MaxSources, eventCh)
	}()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		event, ok := <-eventCh
		if !ok {
			if err := <-errCh; err != nil {
				logger.CtxWarn(ctx, "Chat stream failed: error=%v", err)
				c.SSEvent("error", gin.H{"error": err.Error()})
			}
			return false
		}
		data, err := json.Marshal(event)
		if err != nil {
			return true
		}
		c.SSEvent(event.Type, string(data))
		return true
	})
}
