package config

import (
	"os"
	"strconv"
	"time"
)

// 环境变量名常量
const (
	EnvHTTPPort        = "DOCUCHAT_HTTP_PORT"
	EnvDatabasePath    = "DOCUCHAT_DB_PATH"
	EnvUploadDir       = "DOCUCHAT_UPLOAD_DIR"
	EnvSchemaDir       = "DOCUCHAT_SCHEMA_DIR"
	EnvQdrantHost      = "QDRANT_HOST"
	EnvQdrantPort      = "QDRANT_GRPC_PORT"
	EnvEmbeddingURL    = "EMBEDDING_API_URL"
	EnvEmbeddingKey    = "EMBEDDING_API_KEY"
	EnvEmbeddingModel  = "EMBEDDING_MODEL"
	EnvCompletionURL   = "COMPLETION_API_URL"
	EnvCompletionKey   = "COMPLETION_API_KEY"
	EnvCompletionModel = "COMPLETION_MODEL"
)

// Config 应用配置
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Qdrant     QdrantConfig
	Embedding  EmbeddingConfig
	Completion CompletionConfig
	Ingest     IngestConfig
	Retrieval  RetrievalConfig
	Chat       ChatConfig
	Schema     SchemaConfig
}

// ServerConfig 服务器配置
type ServerConfig struct {
	HTTPPort string
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Path string // 空表示使用默认数据目录
}

// QdrantConfig 向量库配置
type QdrantConfig struct {
	Host     string
	GRPCPort int
	// Collection 分块向量集合名
	Collection string
}

// EmbeddingConfig Embedding API 配置
type EmbeddingConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// CompletionConfig Chat Completion API 配置
type CompletionConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float32
}

// IngestConfig 摄入流水线配置
type IngestConfig struct {
	UploadDir string
	// MaxFileSize 上传文件大小上限（字节）
	MaxFileSize int64
	// EmbedConcurrency 单文档分块向量化并发度
	EmbedConcurrency int
	// EmbedMaxRetries 单次向量化调用的重试次数上限
	EmbedMaxRetries int
}

// RetrievalConfig 检索配置
type RetrievalConfig struct {
	// Threshold 相似度阈值，严格大于该值的分块才会入选
	Threshold float32
	// Limit 默认返回条数上限
	Limit int
}

// ChatConfig 聊天编排配置
type ChatConfig struct {
	// EvidenceTokenBudget 证据部分的 token 预算
	EvidenceTokenBudget int
	// HistoryTokenBudget 历史部分的 token 预算
	HistoryTokenBudget int
	// HistoryLimit 纳入提示词的最近消息条数上限
	HistoryLimit int
	// SessionTTL 会话不活跃清理窗口
	SessionTTL time.Duration
	// SweepInterval 清理任务执行间隔
	SweepInterval time.Duration
}

// SchemaConfig 结构化抽取 schema 配置
type SchemaConfig struct {
	// Dir schema 文件目录（registry.yaml 所在目录）
	Dir string
	// Watch 是否监听目录变化热加载
	Watch bool
}

// NewConfig 创建配置（默认值 + 环境变量覆盖）
func NewConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort: getEnv(EnvHTTPPort, ":18080"),
		},
		Database: DatabaseConfig{
			Path: os.Getenv(EnvDatabasePath),
		},
		Qdrant: QdrantConfig{
			Host:       getEnv(EnvQdrantHost, "localhost"),
			GRPCPort:   getEnvInt(EnvQdrantPort, 6334),
			Collection: "document_chunks",
		},
		Embedding: EmbeddingConfig{
			BaseURL: getEnv(EnvEmbeddingURL, "https://api.openai.com/v1"),
			APIKey:  os.Getenv(EnvEmbeddingKey),
			Model:   getEnv(EnvEmbeddingModel, "text-embedding-3-small"),
			Timeout: 30 * time.Second,
		},
		Completion: CompletionConfig{
			BaseURL:     getEnv(EnvCompletionURL, "https://api.openai.com/v1"),
			APIKey:      os.Getenv(EnvCompletionKey),
			Model:       getEnv(EnvCompletionModel, "gpt-4o-mini"),
			Timeout:     60 * time.Second,
			MaxTokens:   500,
			Temperature: 0.3,
		},
		Ingest: IngestConfig{
			UploadDir:        getEnv(EnvUploadDir, "uploads"),
			MaxFileSize:      50 * 1024 * 1024,
			EmbedConcurrency: 4,
			EmbedMaxRetries:  3,
		},
		Retrieval: RetrievalConfig{
			Threshold: 0.7,
			Limit:     10,
		},
		Chat: ChatConfig{
			EvidenceTokenBudget: 2000,
			HistoryTokenBudget:  1000,
			HistoryLimit:        10,
			SessionTTL:          72 * time.Hour,
			SweepInterval:       time.Hour,
		},
		Schema: SchemaConfig{
			Dir:   getEnv(EnvSchemaDir, "schemas"),
			Watch: true,
		},
	}
}

// NewServerConfig 创建服务器配置
func NewServerConfig(cfg *Config) *ServerConfig {
	return &cfg.Server
}

// NewDatabaseConfig 创建数据库配置
func NewDatabaseConfig(cfg *Config) *DatabaseConfig {
	return &cfg.Database
}

// getEnv 获取环境变量，带默认值
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt 获取整型环境变量
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}
