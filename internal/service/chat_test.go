package service

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChatService(t *testing.T, baseURL string) *ChatService {
	t.Helper()
	env := newSearchEnv(t)
	return NewChatService(env.svc, nil, &ChatConfig{
		Enabled: true,
		Model:   "test-model",
		APIKey:  "k",
		BaseURL: baseURL,
	})
}

func sseToken(token string) string {
	return fmt.Sprintf(`data: {"choices":[{"delta":{"content":%q}}]}`+"\n\n", token)
}

func TestChatDisabledWithoutConfig(t *testing.T) {
	env := newSearchEnv(t)
	svc := NewChatService(env.svc, nil, nil)
	assert.False(t, svc.IsEnabled())
}

func TestAnswerStreamDeliversTokens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sseToken("Hello"))
		fmt.Fprint(w, sseToken(" world"))
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	svc := newChatService(t, srv.URL)

	eventCh := make(chan ChatEvent, 16)
	errCh := make(chan error, 1)
	go func() {
		errCh <- svc.AnswerStream(context.Background(), "alice", "hi", 5, eventCh)
	}()

	var events []ChatEvent
	for ev := range eventCh {
		events = append(events, ev)
	}
	require.NoError(t, <-errCh)

	require.Len(t, events, 4)
	assert.Equal(t, "sources", events[0].Type)
	assert.Equal(t, "token", events[1].Type)
	assert.Equal(t, "Hello", events[1].Token)
	assert.Equal(t, " world", events[2].Token)
	assert.Equal(t, "done", events[3].Type)
}

func TestAnswerStreamStopsWhenConsumerGone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		// Keep streaming until the client goes away.
		for i := 0; ; i++ {
			if _, err := fmt.Fprint(w, sseToken(fmt.Sprintf("t%d ", i))); err != nil {
				return
			}
			flusher.Flush()
		}
	}))
	defer srv.Close()

	svc := newChatService(t, srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	eventCh := make(chan ChatEvent, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- svc.AnswerStream(ctx, "alice", "hi", 5, eventCh)
	}()

	// Take the sources event, then walk away like a disconnected client.
	<-eventCh
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("stream goroutine did not stop after the consumer went away")
	}
}
