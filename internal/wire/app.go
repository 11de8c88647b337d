package wire

import (
	"context"
	"database/sql"
	"time"

	"log/slog"

	appChat "github.com/docuchat/backend/internal/application/chat"
	"github.com/docuchat/backend/internal/infrastructure/extraction"
	applog "github.com/docuchat/backend/internal/infrastructure/log"
	"github.com/docuchat/backend/internal/infrastructure/vector"
	"github.com/docuchat/backend/internal/infrastructure/websocket"
	httpiface "github.com/docuchat/backend/internal/interfaces/http"
	"github.com/docuchat/backend/internal/interfaces/mcp"
)

// App 应用主结构，组合所有服务
type App struct {
	HTTPServer    *httpiface.HTTPServer
	MCPServer     *mcp.MCPServer
	wsHub         *websocket.Hub
	vectorStore   *vector.Store
	schemaWatcher *extraction.SchemaWatcher
	sweeper       *appChat.Sweeper
	db            *sql.DB
	logger        *slog.Logger
}

// NewApp 创建应用实例
func NewApp(
	httpServer *httpiface.HTTPServer,
	mcpServer *mcp.MCPServer,
	wsHub *websocket.Hub,
	vectorStore *vector.Store,
	schemaWatcher *extraction.SchemaWatcher,
	sweeper *appChat.Sweeper,
	db *sql.DB,
) *App {
	return &App{
		HTTPServer:    httpServer,
		MCPServer:     mcpServer,
		wsHub:         wsHub,
		vectorStore:   vectorStore,
		schemaWatcher: schemaWatcher,
		sweeper:       sweeper,
		db:            db,
		logger:        applog.NewModuleLogger("app", "main"),
	}
}

// Start 启动所有服务
func (a *App) Start() error {
	a.logger.Info("Starting DocuChat backend application")

	// 确保向量集合存在
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.vectorStore.EnsureCollection(ctx); err != nil {
		a.logger.Error("Failed to ensure vector collection",
			"error", err,
		)
		return err
	}

	// 启动 schema 热重载
	if a.schemaWatcher != nil {
		if err := a.schemaWatcher.Start(); err != nil {
			a.logger.Error("Failed to start schema watcher",
				"error", err,
			)
		}
	}

	// 启动空闲会话清理
	a.sweeper.Start()

	// 启动 WebSocket Hub
	a.wsHub.Start()

	// 启动 HTTP 服务器（goroutine）
	go func() {
		if err := a.HTTPServer.Start(); err != nil {
			a.logger.Error("HTTP server stopped",
				"error", err,
			)
		}
	}()

	a.logger.Info("DocuChat backend application started successfully")

	// MCP 服务器通过 HTTP Handler 提供服务，不需要单独启动
	// 已在 HTTP 服务器中注册 /mcp/sse 端点

	return nil
}

// Stop 停止所有服务
func (a *App) Stop() error {
	a.logger.Info("Stopping DocuChat backend application")

	a.sweeper.Stop()

	if a.schemaWatcher != nil {
		a.schemaWatcher.Stop()
	}

	if err := a.HTTPServer.Stop(); err != nil {
		a.logger.Error("Error stopping HTTP server",
			"error", err,
		)
	}

	if a.vectorStore != nil {
		if err := a.vectorStore.Close(); err != nil {
			a.logger.Error("Error closing vector store",
				"error", err,
			)
		}
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("Error closing database",
				"error", err,
			)
		}
	}

	a.logger.Info("DocuChat backend application stopped")
	return nil
}
