package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/semlens/semlens-mcp/internal/indexer"
	"github.com/semlens/semlens-mcp/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeIndexingInProgress = -32002 // Another indexing operation is already running
	ErrorCodeEmptyQuery         = -32004 // Query parameter is empty
)

// handleIndexProject handles the index_project tool invocation
func (s *Server) handleIndexProject(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, errResult := s.projectPath(request)
	if errResult != nil {
		return nil, errResult
	}

	if err := s.ensureConnected(ctx, path); err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "vector store unavailable", map[string]interface{}{
			"error": err.Error(),
		})
	}

	stats, err := s.indexer.IndexProject(ctx, path)
	return s.ingestionResult(stats, err)
}

// handleReindexAll handles the reindex_all tool invocation
func (s *Server) handleReindexAll(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, errResult := s.projectPath(request)
	if errResult != nil {
		return nil, errResult
	}

	if err := s.ensureConnected(ctx, path); err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "vector store unavailable", map[string]interface{}{
			"error": err.Error(),
		})
	}

	stats, err := s.indexer.ReindexAll(ctx, path)
	return s.ingestionResult(stats, err)
}

// ingestionResult maps an ingestion outcome to a tool result.
func (s *Server) ingestionResult(stats *indexer.Statistics, err error) (*mcp.CallToolResult, error) {
	if errors.Is(err, types.ErrIndexingInProgress) {
		return nil, newMCPError(ErrorCodeIndexingInProgress, "an indexing operation is already running", nil)
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"indexed":       true,
		"files_indexed": stats.FilesIndexed,
		"files_skipped": stats.FilesSkipped,
		"files_failed":  stats.FilesFailed,
		"duration_ms":   stats.Duration.Milliseconds(),
	}
	if len(stats.ErrorMessages) > 0 {
		errorCount := len(stats.ErrorMessages)
		if errorCount > 5 {
			response["errors"] = stats.ErrorMessages[:5]
			response["error_count"] = errorCount
		} else {
			response["errors"] = stats.ErrorMessages
		}
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSearchCode handles the search_code tool invocation
func (s *Server) handleSearchCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, errResult := s.projectPath(request)
	if errResult != nil {
		return nil, errResult
	}
	args, _ := request.Params.Arguments.(map[string]interface{})

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", s.cfg.Search.DefaultLimit)
	if limit < 1 || limit > 100 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	threshold := getFloatDefault(args, "threshold", s.cfg.Search.DefaultThreshold)
	if threshold < 0 || threshold > 1 {
		return nil, newMCPError(ErrorCodeInvalidParams, "threshold must be between 0.0 and 1.0", map[string]interface{}{
			"param": "threshold",
			"value": threshold,
		})
	}

	filters := stringFilters(args["filters"])

	if err := s.ensureConnected(ctx, path); err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "vector store unavailable", map[string]interface{}{
			"error": err.Error(),
		})
	}

	results := s.session.Search(ctx, query, limit, filters, threshold)

	formatted := make([]map[string]interface{}, 0, len(results))
	for _, r := range results {
		formatted = append(formatted, map[string]interface{}{
			"file_path":  r.FilePath,
			"summary":    r.Summary,
			"similarity": r.Similarity,
			"metadata":   r.Metadata,
		})
	}
	response := map[string]interface{}{
		"query":   query,
		"count":   len(results),
		"results": formatted,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleAskQuestion handles the ask_question tool invocation
func (s *Server) handleAskQuestion(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, errResult := s.projectPath(request)
	if errResult != nil {
		return nil, errResult
	}
	args, _ := request.Params.Arguments.(map[string]interface{})

	question, ok := args["question"].(string)
	if !ok || question == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "question parameter is required and cannot be empty", map[string]interface{}{
			"param":  "question",
			"reason": "missing or empty",
		})
	}

	if err := s.ensureConnected(ctx, path); err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "vector store unavailable", map[string]interface{}{
			"error": err.Error(),
		})
	}

	answer, err := s.session.Ask(ctx, question)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to answer question", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"question": question,
		"answer":   answer,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, errResult := s.projectPath(request)
	if errResult != nil {
		return nil, errResult
	}

	if err := s.ensureConnected(ctx, path); err != nil {
		response := map[string]interface{}{
			"indexed": false,
			"path":    path,
			"message": "Vector store unreachable. Check that the Qdrant service is running.",
		}
		return mcp.NewToolResultText(formatJSON(response)), nil
	}

	count := s.store.DocumentCount(ctx)
	response := map[string]interface{}{
		"indexed": count > 0,
		"path":    path,
		"statistics": map[string]interface{}{
			"document_count": count,
			"dimension":      s.store.Dimension(),
		},
		"backend": map[string]interface{}{
			"provider":   s.provider.Name(),
			"collection": s.cfg.Qdrant.Collection,
		},
		"indexing_in_progress": s.indexer.Busy(),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// projectPath extracts and validates the required path argument.
func (s *Server) projectPath(request mcp.CallToolRequest) (string, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return "", newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return "", newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}

	if err := validatePath(path); err != nil {
		return "", newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}
	return path, nil
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// validatePath checks if a path exists and is a readable directory
func validatePath(path string) error {
	if path == "" {
		return ErrPathRequired
	}

	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}

	if !info.IsDir() {
		return ErrNotDirectory
	}

	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()

	return nil
}

// stringFilters converts the raw filters argument to a flat string mapping.
// Non-string values are dropped.
func stringFilters(raw interface{}) map[string]string {
	obj, ok := raw.(map[string]interface{})
	if !ok || len(obj) == 0 {
		return nil
	}
	filters := make(map[string]string, len(obj))
	for key, value := range obj {
		if str, ok := value.(string); ok && str != "" {
			filters[key] = str
		}
	}
	if len(filters) == 0 {
		return nil
	}
	return filters
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getFloatDefault extracts a float parameter with a default value
func getFloatDefault(args map[string]interface{}, key string, defaultValue float64) float64 {
	if val, ok := args[key].(float64); ok {
		return val
	}
	return defaultValue
}

// Validation helpers

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
)
