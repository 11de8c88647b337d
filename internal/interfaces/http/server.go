package http

import (
	"context"
	"net/http"
	"time"

	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/docuchat/backend/internal/infrastructure/config"
	"github.com/docuchat/backend/internal/infrastructure/log"
	"github.com/docuchat/backend/internal/interfaces/http/handler"
	"github.com/docuchat/backend/internal/interfaces/http/middleware"
	"github.com/docuchat/backend/internal/interfaces/http/response"
	"github.com/docuchat/backend/internal/interfaces/mcp"
)

// HTTPServer HTTP 服务器
type HTTPServer struct {
	router   *gin.Engine
	httpPort string
	server   *http.Server
	logger   *slog.Logger
}

// NewServer 创建 HTTP 服务器
func NewServer(
	cfg *config.Config,
	documentHandler *handler.DocumentHandler,
	searchHandler *handler.SearchHandler,
	sessionHandler *handler.SessionHandler,
	statsHandler *handler.StatsHandler,
	wsHandler *handler.WSHandler,
	mcpServer *mcp.MCPServer,
) *HTTPServer {
	router := gin.Default()
	router.Use(middleware.EnsureUTF8Body())

	logger := log.NewModuleLogger("http", "server")

	// 注册路由
	api := router.Group("/api/v1")
	api.Use(middleware.RequireOwner())
	{
		// 文档相关路由
		api.POST("/documents", documentHandler.Upload)
		api.POST("/documents/text", documentHandler.IngestText)
		api.GET("/documents", documentHandler.List)
		api.GET("/documents/:id", documentHandler.Get)
		api.GET("/documents/:id/status", documentHandler.Status)
		api.GET("/documents/:id/stats", documentHandler.Stats)
		api.DELETE("/documents/:id", documentHandler.Delete)

		// 语义搜索
		api.POST("/search", searchHandler.Search)

		// 会话相关路由
		api.POST("/sessions", sessionHandler.Create)
		api.GET("/sessions", sessionHandler.List)
		api.GET("/sessions/:id", sessionHandler.Get)
		api.DELETE("/sessions/:id", sessionHandler.Delete)
		api.GET("/sessions/:id/messages", sessionHandler.Messages)
		api.POST("/sessions/:id/messages", sessionHandler.SendMessage)

		// 服务统计
		api.GET("/stats", statsHandler.Totals)
	}

	// 处理状态推送
	router.GET("/ws", middleware.RequireOwner(), wsHandler.Serve)

	// 健康检查
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, gin.H{"status": "ok"})
	})

	// MCP SSE 端点
	if mcpServer != nil {
		router.Any("/mcp/sse", gin.WrapH(mcpServer.GetHandler()))
	}

	return &HTTPServer{
		router:   router,
		httpPort: cfg.Server.HTTPPort,
		logger:   logger,
	}
}

// Start 启动服务器
func (s *HTTPServer) Start() error {
	s.server = &http.Server{
		Addr:    s.httpPort,
		Handler: s.router,
	}

	s.logger.Info("HTTP server starting",
		"port", s.httpPort,
	)

	return s.server.ListenAndServe()
}

// Shutdown 优雅关闭
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// Stop 停止服务器
func (s *HTTPServer) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}
