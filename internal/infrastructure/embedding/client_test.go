package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuchat/backend/internal/infrastructure/config"
)

func newTestClient(baseURL string) *Client {
	cfg := config.NewConfig()
	cfg.Embedding.BaseURL = baseURL
	cfg.Embedding.APIKey = "test-key"
	cfg.Embedding.Model = "text-embedding-3-small"
	cfg.Embedding.Timeout = 5 * time.Second
	return NewClient(cfg)
}

func TestBuildEmbeddingURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"https://api.openai.com/v1", "https://api.openai.com/v1/embeddings"},
		{"https://api.openai.com/v1/", "https://api.openai.com/v1/embeddings"},
		{"https://api.openai.com/v1/embeddings", "https://api.openai.com/v1/embeddings"},
		{"https://proxy.example.com", "https://proxy.example.com/v1/embeddings"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, buildEmbeddingURL(tt.input))
	}
}

func TestEmbedTexts_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req EmbeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		// 故意乱序返回，验证按 index 归位
		resp := map[string]any{
			"data": []map[string]any{
				{"embedding": []float32{0.2, 0.2}, "index": 1},
				{"embedding": []float32{0.1, 0.1}, "index": 0},
			},
			"model": req.Model,
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	vectors, err := client.EmbedTexts(context.Background(), []string{"hello", "world"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{0.1, 0.1}, vectors[0])
	assert.Equal(t, []float32{0.2, 0.2}, vectors[1])
}

func TestEmbedTexts_RetriesOnServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"embedding": []float32{0.5}, "index": 0},
			},
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	vectors, err := client.EmbedTexts(context.Background(), []string{"hello"})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []float32{0.5}, vectors[0])
}

func TestEmbedTexts_UnavailableAfterRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.EmbedTexts(context.Background(), []string{"hello"})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestEmbedTexts_BadRequestNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.EmbedTexts(context.Background(), []string{"hello"})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(1), calls.Load(), "4xx 错误不应重试")
}

func TestEmbedTexts_EmptyInput(t *testing.T) {
	client := newTestClient("http://localhost:1")
	_, err := client.EmbedTexts(context.Background(), nil)
	assert.Error(t, err)
}

func TestMaskAPIKey(t *testing.T) {
	assert.Equal(t, "sk-1...wxyz", maskAPIKey("sk-1234567890abcdwxyz"))
	assert.Equal(t, "***", maskAPIKey("short"))
}

func TestEmbedTexts_RetryCountFromConfig(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := config.NewConfig()
	cfg.Embedding.BaseURL = server.URL
	cfg.Embedding.Timeout = 5 * time.Second
	cfg.Ingest.EmbedMaxRetries = 2
	client := NewClient(cfg)

	_, err := client.EmbedTexts(context.Background(), []string{"hello"})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 2, attempts)
}
