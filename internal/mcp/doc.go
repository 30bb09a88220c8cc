// Package mcp implements the Model Context Protocol (MCP) server surface.
//
// The server exposes five tools to AI coding assistants:
//   - index_project: index a project tree, skipping unchanged files
//   - reindex_all: discard the index and rebuild it from scratch
//   - search_code: similarity search with filters and a score threshold
//   - ask_question: retrieval-augmented answering with conversation history
//   - get_status: document count, dimension, and backend health
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// stdout carries protocol messages exclusively; all logging goes to
// stderr.
//
// # Tool: search_code
//
//	Request:
//	{
//	  "name": "search_code",
//	  "arguments": {
//	    "path": "/path/to/project",
//	    "query": "where is authentication handled",
//	    "limit": 10,
//	    "threshold": 0.5,
//	    "filters": {"language": "Go"}
//	  }
//	}
//
//	Response:
//	{
//	  "query": "where is authentication handled",
//	  "count": 2,
//	  "results": [
//	    {"file_path": "internal/auth/login.go", "similarity": 0.82, ...}
//	  ]
//	}
//
// # Tool: ask_question
//
// ask_question keeps per-server conversation state. A follow-up question
// ("what about logout?") reuses the previous search results instead of
// re-querying; a new topic triggers a fresh search.
//
// # Error semantics
//
// Parameter problems return JSON-RPC error -32602, an ingestion run that
// is already in flight returns -32002, and backend failures return
// -32603. Read-path degradation (empty results when the store is down)
// happens below this layer; search_code reports an empty result set, not
// an error.
package mcp
