// Package types provides shared type definitions for the semlens server.
//
// This package defines the domain types used across components: documents,
// search results, conversation turns, and the shared error taxonomy.
//
// # Core Types
//
// Document represents one indexable unit — a source file plus derived data:
//
//	doc := &types.Document{
//	    ID:       "/repo/internal/auth/login.go",
//	    FilePath: "/repo/internal/auth/login.go",
//	    Language: "Go",
//	    Content:  source,
//	    Summary:  "Validates credentials and issues session tokens.",
//	}
//
// SearchResult carries a single similarity-search hit. Result sets are
// ordered by Similarity descending; ties keep store arrival order.
//
// ConversationTurn entries form an append-only session history consumed by
// follow-up detection and by generative calls.
//
// # Error Taxonomy
//
// Components classify failures through sentinel errors plus message-based
// helpers, because remote services wrap transport errors inconsistently:
//
//	if types.IsRateLimitError(err) {
//	    // back off longer before retrying
//	}
//	if types.IsConnectivityError(err) {
//	    // attempt a consolidated reconnect
//	}
package types
