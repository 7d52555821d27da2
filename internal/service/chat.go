package service

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/feliks/curio/internal/logger"
	"github.com/go-resty/resty/v2"
)

const chatSystemPrompt = `You are a personal library assistant. Answer the user's question using only the numbered sources below. Cite sources inline as [1], [2] and so on. If the sources do not contain the answer, say so plainly instead of guessing.`

// ChatService answers questions over a user's saved content by retrieving
// context through the search service and streaming a completion from an
// OpenAI-compatible API.
type ChatService struct {
	search   *SearchService
	client   *resty.Client
	logger   *logger.Logger
	model    string
	apiKey   string
	endpoint string
	enabled  bool
}

// ChatConfig holds configuration for the chat service.
type ChatConfig struct {
	Enabled bool
	Model   string
	APIKey  string
	BaseURL string
}

// NewChatService creates a new chat service. Returns a disabled service when
// cfg is nil or chat is turned off; callers check IsEnabled.
func NewChatService(search *SearchService, log *logger.Logger, cfg *ChatConfig) *ChatService {
	if log == nil {
		log = logger.GetDefault()
	}
	if cfg == nil || !cfg.Enabled {
		return &ChatService{search: search, logger: log, enabled: false}
	}

	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")
	client.SetTimeout(60 * time.Second)

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	return &ChatService{
		search:   search,
		client:   client,
		logger:   log,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		endpoint: baseURL + "/chat/completions",
		enabled:  true,
	}
}

// IsEnabled returns whether chat is configured.
func (s *ChatService) IsEnabled() bool {
	return s.enabled
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float32       `json:"temperature"`
	Stream      bool          `json:"stream,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type chatStreamDelta struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// ChatEvent is one unit of a streamed chat answer.
type ChatEvent struct {
	Type    string   `json:"type"` // "sources", "token" or "done"
	Token   string   `json:"token,omitempty"`
	Sources []Source `json:"sources,omitempty"`
}

// AnswerResult is a complete, non-streamed chat answer.
type AnswerResult struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

func (s *ChatService) buildMessages(chatCtx *ChatContext, question string) []chatMessage {
	var user strings.Builder
	user.WriteString("Sources:\n\n")
	user.WriteString(chatCtx.Prompt)
	user.WriteString("\n\nQuestion: ")
	user.WriteString(question)
	return []chatMessage{
		{Role: "system", Content: chatSystemPrompt},
		{Role: "user", Content: user.String()},
	}
}

// Answer retrieves context for the question and returns a single completion.
func (s *ChatService) Answer(ctx context.Context, userID, question string, maxSources int) (*AnswerResult, error) {
	if !s.enabled {
		return nil, fmt.Errorf("chat is not configured")
	}

	chatCtx, err := s.search.BuildChatContext(ctx, userID, question, maxSources)
	if err != nil {
		return nil, err
	}

	req := chatRequest{
		Model:       s.model,
		Messages:    s.buildMessages(chatCtx, question),
		Temperature: 0.3,
	}

	var resp chatResponse
	httpResp, err := s.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		Post(s.endpoint)
	if err != nil {
		return nil, fmt.Errorf("chat API call failed: %w", err)
	}
	if httpResp.StatusCode() < 200 || httpResp.StatusCode() >= 300 {
		if resp.Error != nil {
			return nil, fmt.Errorf("chat API error: %s", resp.Error.Message)
		}
		return nil, fmt.Errorf("chat API error: status %d", httpResp.StatusCode())
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat API returned no choices")
	}

	return &AnswerResult{
		Answer:  strings.TrimSpace(resp.Choices[0].Message.Content),
		Sources: chatCtx.Sources,
	}, nil
}

// AnswerStream retrieves context and streams completion tokens on eventCh.
// The channel is closed when the answer is complete or the stream fails; a
// "sources" event always precedes the first token.
func (s *ChatService) AnswerStream(ctx context.Context, userID, question string, maxSources int, eventCh chan<- ChatEvent) error {
	defer close(eventCh)

	if !s.enabled {
		return fmt.Errorf("chat is not configured")
	}

	chatCtx, err := s.search.BuildChatContext(ctx, userID, question, maxSources)
	if err != nil {
		return err
	}

	if err := sendEvent(ctx, eventCh, ChatEvent{Type: "sources", Sources: chatCtx.Sources}); err != nil {
		return err
	}

	req := chatRequest{
		Model:       s.model,
		Messages:    s.buildMessages(chatCtx, question),
		Temperature: 0.3,
		Stream:      true,
	}
	reqBody, err := json.Marshal(req)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", s.endpoint, strings.NewReader(string(reqBody)))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)
	httpReq.Header.Set("Accept", "text/event-stream")

	client := &http.Client{Timeout: 120 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("chat API call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("chat API error: status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			break
		}

		var delta chatStreamDelta
		if err := json.Unmarshal([]byte(data), &delta); err != nil {
			continue
		}
		if len(delta.Choices) == 0 {
			continue
		}
		if token := delta.Choices[0].Delta.Content; token != "" {
			if err := sendEvent(ctx, eventCh, ChatEvent{Type: "token", Token: token}); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		logger.CtxWarn(ctx, "Chat stream read failed: error=%v", err)
	}

	return sendEvent(ctx, eventCh, ChatEvent{Type: "done"})
}

// sendEvent delivers an event unless the consumer is gone. Without the
// context guard a disconnected client would stop draining the channel and
// strand this goroutine once the buffer fills.
func sendEvent(ctx context.Context, ch chan<- ChatEvent, ev ChatEvent) error {
	select {
	case ch <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
