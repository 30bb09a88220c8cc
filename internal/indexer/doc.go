// Package indexer drives the ingestion pipeline that turns a project tree
// into searchable vector points.
//
// # Pipeline
//
// For every indexable file:
//
//  1. size and binary checks (oversized and binary files are skipped)
//  2. catalog lookup by content hash (unchanged files are skipped)
//  3. structural metadata extraction
//  4. natural-language summarization via the provider
//  5. embedding of an enhanced text that prefixes content with its
//     structural identity
//  6. upsert into the vector store
//
// Files flow through in small batches with a bounded worker pool. After
// each batch the store is flushed and the progress callback fires.
//
// # Failure handling
//
// A failing file increments the failure counter and the run continues;
// its error message lands in the final Statistics. Connectivity-classified
// failures trigger one consolidated backend re-check per batch. When
// either backend stays unreachable the run aborts, because every
// remaining file would fail the same way.
//
// Only one ingestion run may be active per Indexer. Concurrent calls fail
// fast with types.ErrIndexingInProgress rather than queueing.
package indexer
