// Package vectorstore persists document embeddings in a Qdrant collection
// and serves filtered similarity search over them.
//
// # Dimension lifecycle
//
// The collection schema is fixed to one vector dimension, but the
// dimension depends on which embedding provider is active. Connect
// resolves it in three steps: the persisted collection config inside the
// project's index directory, then one measuring embedding call, then a
// hard-coded default. The resolved value is persisted so later runs skip
// the probe.
//
// When an upsert arrives with a vector of a different length, the store
// treats it as a provider switch: it deletes and recreates the collection
// at the new dimension and persists the change. This is destructive by
// necessity; the old vectors are useless under a new embedding space. The
// OnDataLoss hook lets hosts surface the event.
//
// # Error handling
//
// Writes are best-effort per document: Upsert retries transient failures
// and logs exhaustion instead of failing the batch. Search retries too,
// but propagates the final error so callers can decide between surfacing
// it and degrading to empty results.
package vectorstore
