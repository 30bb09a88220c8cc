package provider

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/semlens/semlens-mcp/pkg/types"
)

// Common errors
var (
	ErrEmptyText         = errors.New("text cannot be empty")
	ErrUnknownBackend    = errors.New("unknown provider backend")
	ErrNoVectorReturned  = errors.New("response contained no embedding vector")
	ErrNoContentReturned = errors.New("response contained no generated content")
)

// Provider is the capability set every backend must satisfy: turning text
// into vectors and code into natural-language answers.
type Provider interface {
	// Embed returns a fixed-length vector for the text. Input is truncated
	// to a backend-specific safe length before transmission.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Summarize produces a short natural-language description of a source file.
	Summarize(ctx context.Context, code, fileName string) (string, error)

	// Contextualize explains how the retrieved results relate to the query.
	Contextualize(ctx context.Context, query string, results []types.SearchResult) (string, error)

	// Answer responds to a question using the retrieved results as context,
	// optionally continuing a conversation.
	Answer(ctx context.Context, question string, results []types.SearchResult, history []types.ConversationTurn) (string, error)

	// TestConnection probes the backend and reports boolean success. The
	// underlying error is logged, never propagated.
	TestConnection(ctx context.Context) bool

	// Name returns the backend identifier.
	Name() string

	// Close releases any resources held by the provider.
	Close() error
}

// Cache provides in-memory LRU caching of embeddings by content hash, so
// re-indexing unchanged text never repeats a network call.
type Cache struct {
	cache *lru.Cache[string, []float32]
}

// NewCache creates an embedding cache with LRU eviction.
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = 10000
	}
	cache, err := lru.New[string, []float32](maxLen)
	if err != nil {
		cache, _ = lru.New[string, []float32](10000)
	}
	return &Cache{cache: cache}
}

// Get retrieves a copy of a cached vector. Returning a copy prevents
// caller mutations from poisoning the cache.
func (c *Cache) Get(hash string) ([]float32, bool) {
	v, ok := c.cache.Get(hash)
	if !ok {
		return nil, false
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out, true
}

// Set stores a vector; LRU eviction is automatic at capacity.
func (c *Cache) Set(hash string, v []float32) {
	c.cache.Add(hash, v)
}

// Size returns the current cache size.
func (c *Cache) Size() int {
	return c.cache.Len()
}

// ComputeHash computes the SHA-256 cache key for a text.
func ComputeHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// truncate caps text at max bytes so oversized requests are never sent.
// The cut lands on a rune boundary.
func truncate(text string, max int) string {
	if len(text) <= max {
		return text
	}
	cut := text[:max]
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut
}
