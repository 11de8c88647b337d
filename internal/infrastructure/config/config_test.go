package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewConfig_Defaults(t *testing.T) {
	t.Setenv(EnvHTTPPort, "")
	t.Setenv(EnvQdrantHost, "")
	t.Setenv(EnvEmbeddingModel, "")

	cfg := NewConfig()
	assert.Equal(t, ":18080", cfg.Server.HTTPPort)
	assert.Equal(t, "localhost", cfg.Qdrant.Host)
	assert.Equal(t, 6334, cfg.Qdrant.GRPCPort)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedding.Model)
	assert.Equal(t, float32(0.7), cfg.Retrieval.Threshold)
	assert.Equal(t, 10, cfg.Retrieval.Limit)
	assert.Equal(t, int64(50*1024*1024), cfg.Ingest.MaxFileSize)
}

func TestNewConfig_EnvOverride(t *testing.T) {
	t.Setenv(EnvHTTPPort, ":28080")
	t.Setenv(EnvQdrantHost, "qdrant.internal")
	t.Setenv(EnvQdrantPort, "7334")

	cfg := NewConfig()
	assert.Equal(t, ":28080", cfg.Server.HTTPPort)
	assert.Equal(t, "qdrant.internal", cfg.Qdrant.Host)
	assert.Equal(t, 7334, cfg.Qdrant.GRPCPort)
}

func TestNewConfig_InvalidIntFallsBack(t *testing.T) {
	t.Setenv(EnvQdrantPort, "not-a-number")

	cfg := NewConfig()
	assert.Equal(t, 6334, cfg.Qdrant.GRPCPort, "非法端口应使用默认值")
}

func TestGetDataDir_EnvOverride(t *testing.T) {
	ResetDataDir()
	t.Setenv(EnvDataDir, "/tmp/docuchat-test-data")
	defer ResetDataDir()

	assert.Equal(t, "/tmp/docuchat-test-data", GetDataDir())
}
