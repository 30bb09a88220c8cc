// Package provider turns text into vector embeddings and code into
// natural-language summaries and answers, behind one capability set.
//
// # Backends
//
// Three backends are registered:
//
//   - openai: any OpenAI-compatible embeddings + chat API, configurable
//     base URL
//   - ollama: a local Ollama instance
//   - offline: deterministic hashed bag-of-words vectors, no network
//
// Selection happens in the factory, keyed by configuration:
//
//	p, err := provider.New(cfg.Provider, logger)
//
// # Behavior shared by all backends
//
// Embed truncates input to a backend-specific safe length before
// transmission, so oversized requests are never sent. Failed or malformed
// responses come back wrapping types.ErrEmbedding or
// types.ErrMalformedResponse; HTTP 429 wraps types.ErrRateLimited so the
// shared retry policy can apply its longer backoff.
//
// TestConnection performs a tiny embedding probe under a short timeout and
// reports boolean success; the underlying error is logged, never returned.
//
// # Caching
//
// An LRU cache keyed by content hash sits in front of embedding calls, so
// re-indexing unchanged text costs nothing:
//
//	cache := provider.NewCache(10000)
package provider
