package mcp

import (
	"net/http"

	appIngest "github.com/docuchat/backend/internal/application/ingest"
	"github.com/docuchat/backend/internal/application/retrieval"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// MCPServer MCP 服务器
type MCPServer struct {
	server        *mcp.Server
	handler       http.Handler
	retriever     *retrieval.Retriever
	ingestService *appIngest.Service
}

// NewServer 创建 MCP 服务器
func NewServer(
	retriever *retrieval.Retriever,
	ingestService *appIngest.Service,
) *MCPServer {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "docuchat",
			Version: "0.1.0",
		},
		nil, // 使用默认能力
	)

	mcpServer := &MCPServer{
		server:        server,
		retriever:     retriever,
		ingestService: ingestService,
	}

	// 注册工具：search_documents
	mcp.AddTool(server, &mcp.Tool{
		Name: "search_documents",
		Description: `Search the user's uploaded documents for passages semantically related to a query.

Use this tool when you need grounded facts from the user's own documents instead of general knowledge.

Parameters:
- query (string, required): Natural language description of what you're looking for.
- user_id (string, required): ID of the user whose documents to search.
- document_ids (array of strings, optional): Restrict the search to these documents; omit to search all of the user's processed documents.
- limit (int, optional): Maximum number of passages to return (1-10, default 5).

Returns: List of matching passages with their source document ID and similarity score.`,
	}, mcpServer.searchDocumentsTool)

	// 注册工具：get_document_stats
	mcp.AddTool(server, &mcp.Tool{
		Name: "get_document_stats",
		Description: `Get processing statistics for one uploaded document.

Parameters:
- document_id (string, required): Document ID.
- user_id (string, required): ID of the user who owns the document.

Returns: document status, chunk count, total content length, and content type breakdown.`,
	}, mcpServer.getDocumentStatsTool)

	// 创建 SSE Handler
	handler := mcp.NewSSEHandler(
		func(r *http.Request) *mcp.Server {
			// 每个请求返回同一个服务器实例
			return server
		},
		nil, // SSEOptions，使用默认值
	)

	mcpServer.handler = handler
	return mcpServer
}

// GetHandler 获取 HTTP Handler（用于集成到 HTTP 服务器）
func (s *MCPServer) GetHandler() http.Handler {
	return s.handler
}
