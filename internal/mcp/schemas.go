package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// indexProjectTool returns the tool definition for index_project
func indexProjectTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_project",
		Description: "Index a project tree into the vector store, skipping files unchanged since the last run",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the project root",
				},
			},
			Required: []string{"path"},
		},
	}
}

// reindexAllTool returns the tool definition for reindex_all
func reindexAllTool() mcp.Tool {
	return mcp.Tool{
		Name:        "reindex_all",
		Description: "Discard the existing index and re-index the whole project from scratch",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the project root",
				},
			},
			Required: []string{"path"},
		},
	}
}

// searchCodeTool returns the tool definition for search_code
func searchCodeTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_code",
		Description: "Search the indexed project with a natural language query",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the indexed project",
				},
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query (natural language or keywords)",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
				"threshold": map[string]interface{}{
					"type":        "number",
					"description": "Minimum similarity score for a result (0.0-1.0)",
					"default":     0.5,
					"minimum":     0.0,
					"maximum":     1.0,
				},
				"filters": map[string]interface{}{
					"type":        "object",
					"description": "Flat equality filters over payload attributes, combined with AND (e.g. {\"language\": \"Go\"})",
				},
			},
			Required: []string{"path", "query"},
		},
	}
}

// askQuestionTool returns the tool definition for ask_question
func askQuestionTool() mcp.Tool {
	return mcp.Tool{
		Name:        "ask_question",
		Description: "Ask a natural-language question about the indexed project; follow-up questions reuse the previous search",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the indexed project",
				},
				"question": map[string]interface{}{
					"type":        "string",
					"description": "The question to answer using retrieved code as context",
				},
			},
			Required: []string{"path", "question"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Query index status: document count, embedding dimension, and backend health",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the project",
				},
			},
			Required: []string{"path"},
		},
	}
}
