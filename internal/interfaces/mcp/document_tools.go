package mcp

import (
	"context"
	"fmt"

	"github.com/docuchat/backend/internal/application/retrieval"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// SearchDocumentsInput 文档搜索工具输入
type SearchDocumentsInput struct {
	Query       string   `json:"query" jsonschema:"Search query - describe what you're looking for in natural language (required)"`
	UserID      string   `json:"user_id" jsonschema:"ID of the user whose documents to search (required)"`
	DocumentIDs []string `json:"document_ids,omitempty" jsonschema:"Restrict search to these document IDs; omit to search all processed documents"`
	Limit       int      `json:"limit,omitempty" jsonschema:"Maximum number of passages to return, defaults to 5, max 10"`
}

// SearchDocumentsOutput 文档搜索工具输出
type SearchDocumentsOutput struct {
	Results    []*PassageResult `json:"results" jsonschema:"List of matching document passages"`
	TotalCount int              `json:"total_count" jsonschema:"Total number of passages returned"`
}

// PassageResult 命中的文档段落
type PassageResult struct {
	DocumentID string  `json:"document_id" jsonschema:"ID of the source document"`
	Content    string  `json:"content" jsonschema:"Passage text"`
	Score      float32 `json:"score" jsonschema:"Similarity score between 0 and 1"`
}

// searchDocumentsTool 文档搜索工具实现
func (s *MCPServer) searchDocumentsTool(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input SearchDocumentsInput,
) (*mcp.CallToolResult, SearchDocumentsOutput, error) {
	output := SearchDocumentsOutput{
		Results: []*PassageResult{},
	}

	if input.Query == "" {
		return nil, output, fmt.Errorf("query is required")
	}
	if input.UserID == "" {
		return nil, output, fmt.Errorf("user_id is required")
	}

	// 默认 5 条，最多 10 条，避免上下文过载
	limit := input.Limit
	if limit <= 0 {
		limit = 5
	}
	if limit > 10 {
		limit = 10
	}

	evidence, err := s.retriever.Retrieve(ctx, retrieval.Query{
		OwnerID:     input.UserID,
		Text:        input.Query,
		DocumentIDs: input.DocumentIDs,
		Limit:       limit,
	})
	if err != nil {
		return nil, output, fmt.Errorf("document search failed: %w", err)
	}

	for _, ev := range evidence {
		output.Results = append(output.Results, &PassageResult{
			DocumentID: ev.DocumentID,
			Content:    ev.Content,
			Score:      ev.Score,
		})
	}
	output.TotalCount = len(output.Results)

	return nil, output, nil
}

// GetDocumentStatsInput 文档统计工具输入
type GetDocumentStatsInput struct {
	DocumentID string `json:"document_id" jsonschema:"Document ID (required)"`
	UserID     string `json:"user_id" jsonschema:"ID of the user who owns the document (required)"`
}

// GetDocumentStatsOutput 文档统计工具输出
type GetDocumentStatsOutput struct {
	DocumentID         string         `json:"document_id" jsonschema:"Document ID"`
	Filename           string         `json:"filename" jsonschema:"Original filename"`
	Status             string         `json:"status" jsonschema:"Processing status: uploaded/processing/completed/failed"`
	TotalChunks        int            `json:"total_chunks" jsonschema:"Number of stored chunks"`
	TotalContentLength int            `json:"total_content_length" jsonschema:"Total chunk content length in characters"`
	ContentTypes       map[string]int `json:"content_types,omitempty" jsonschema:"Chunk count per content type"`
}

// getDocumentStatsTool 文档统计工具实现
func (s *MCPServer) getDocumentStatsTool(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input GetDocumentStatsInput,
) (*mcp.CallToolResult, GetDocumentStatsOutput, error) {
	output := GetDocumentStatsOutput{}

	if input.DocumentID == "" {
		return nil, output, fmt.Errorf("document_id is required")
	}
	if input.UserID == "" {
		return nil, output, fmt.Errorf("user_id is required")
	}

	doc, err := s.ingestService.Get(ctx, input.DocumentID, input.UserID)
	if err != nil {
		return nil, output, fmt.Errorf("document lookup failed: %w", err)
	}

	output.DocumentID = doc.ID
	output.Filename = doc.OriginalFilename
	output.Status = doc.Status

	stats, err := s.ingestService.Stats(ctx, input.DocumentID, input.UserID)
	if err != nil {
		return nil, output, fmt.Errorf("stats lookup failed: %w", err)
	}
	output.TotalChunks = stats.TotalChunks
	output.TotalContentLength = stats.TotalContentLength
	output.ContentTypes = stats.ContentTypes

	return nil, output, nil
}
