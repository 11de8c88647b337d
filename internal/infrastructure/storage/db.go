package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/docuchat/backend/internal/infrastructure/config"
)

// OpenDB 打开数据库连接
func OpenDB(dbPath string) (*sql.DB, error) {
	// 确保目录存在
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// 启用 WAL 模式提升并发读写
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// 测试连接
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// ProvideDB 打开数据库并初始化表结构（wire 注入用）
func ProvideDB(cfg *config.Config) (*sql.DB, error) {
	db, err := OpenDB(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	if err := InitDatabase(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// InitDatabase 初始化表结构
func InitDatabase(db *sql.DB) error {
	// 文档表
	createDocumentsSQL := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		filename TEXT NOT NULL,
		original_filename TEXT NOT NULL,
		file_type TEXT NOT NULL,
		file_size INTEGER NOT NULL,
		status TEXT NOT NULL,
		processing_error TEXT NOT NULL DEFAULT '',
		metadata TEXT NOT NULL DEFAULT '{}',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		processed_at INTEGER NOT NULL DEFAULT 0
	);`

	if _, err := db.Exec(createDocumentsSQL); err != nil {
		return fmt.Errorf("failed to create documents table: %w", err)
	}

	createDocumentsIndexSQL := `
	CREATE INDEX IF NOT EXISTS idx_documents_owner ON documents(owner_id);
	CREATE INDEX IF NOT EXISTS idx_documents_owner_status ON documents(owner_id, status);`

	if _, err := db.Exec(createDocumentsIndexSQL); err != nil {
		return fmt.Errorf("failed to create documents indexes: %w", err)
	}

	// 分块表（关系侧元数据，向量在 Qdrant）
	createChunksSQL := `
	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		owner_id TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		content TEXT NOT NULL,
		content_type TEXT NOT NULL,
		content_length INTEGER NOT NULL,
		extracted TEXT NOT NULL DEFAULT '{}',
		metadata TEXT NOT NULL DEFAULT '{}',
		created_at INTEGER NOT NULL,
		UNIQUE(document_id, chunk_index)
	);`

	if _, err := db.Exec(createChunksSQL); err != nil {
		return fmt.Errorf("failed to create chunks table: %w", err)
	}

	createChunksIndexSQL := `
	CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id);
	CREATE INDEX IF NOT EXISTS idx_chunks_owner ON chunks(owner_id);`

	if _, err := db.Exec(createChunksIndexSQL); err != nil {
		return fmt.Errorf("failed to create chunks indexes: %w", err)
	}

	// 会话表
	createSessionsSQL := `
	CREATE TABLE IF NOT EXISTS chat_sessions (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL,
		document_ids TEXT NOT NULL DEFAULT '[]',
		created_at INTEGER NOT NULL,
		last_activity INTEGER NOT NULL
	);`

	if _, err := db.Exec(createSessionsSQL); err != nil {
		return fmt.Errorf("failed to create chat_sessions table: %w", err)
	}

	createSessionsIndexSQL := `
	CREATE INDEX IF NOT EXISTS idx_chat_sessions_owner ON chat_sessions(owner_id);
	CREATE INDEX IF NOT EXISTS idx_chat_sessions_activity ON chat_sessions(last_activity);`

	if _, err := db.Exec(createSessionsIndexSQL); err != nil {
		return fmt.Errorf("failed to create chat_sessions indexes: %w", err)
	}

	// 消息表
	createMessagesSQL := `
	CREATE TABLE IF NOT EXISTS chat_messages (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		owner_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		referenced_chunks TEXT NOT NULL DEFAULT '[]',
		metadata TEXT NOT NULL DEFAULT '{}',
		created_at INTEGER NOT NULL
	);`

	if _, err := db.Exec(createMessagesSQL); err != nil {
		return fmt.Errorf("failed to create chat_messages table: %w", err)
	}

	createMessagesIndexSQL := `
	CREATE INDEX IF NOT EXISTS idx_chat_messages_session ON chat_messages(session_id, created_at);`

	if _, err := db.Exec(createMessagesIndexSQL); err != nil {
		return fmt.Errorf("failed to create chat_messages indexes: %w", err)
	}

	return nil
}
