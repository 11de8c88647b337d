package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuchat/backend/internal/infrastructure/config"
)

func newTestClient(baseURL string) *Client {
	cfg := config.NewConfig()
	cfg.Completion.BaseURL = baseURL
	cfg.Completion.APIKey = "test-key"
	cfg.Completion.Model = "gpt-4o-mini"
	return NewClient(cfg)
}

func TestComplete_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)

		var req ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "user", req.Messages[1].Role)
		assert.Equal(t, 500, req.MaxTokens)

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{
					"index":         0,
					"message":       map[string]string{"role": "assistant", "content": "grounded answer"},
					"finish_reason": "stop",
				},
			},
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	text, err := client.Complete(context.Background(), "you are helpful", "question", 500, 0.3)
	require.NoError(t, err)
	assert.Equal(t, "grounded answer", text)
}

func TestComplete_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Complete(context.Background(), "", "question", 100, 0)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestComplete_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Complete(context.Background(), "", "question", 100, 0)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestChat_EmptyMessages(t *testing.T) {
	client := newTestClient("http://localhost:1")
	_, err := client.Chat(context.Background(), nil, 100, 0)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnavailable)
}
