package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/semlens/semlens-mcp/internal/collector"
	"github.com/semlens/semlens-mcp/internal/retry"
	"github.com/semlens/semlens-mcp/pkg/types"
)

// DefaultDimension is the fallback when no persisted dimension exists and
// the measuring embedding call fails.
const DefaultDimension = 768

// configFileName holds the persisted collection config inside the
// project's index directory.
const configFileName = "collection.json"

// Embedder is the one provider capability the store needs.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// collectionConfig is persisted alongside the index so the dimension is
// known before any embedding call, surviving process restarts.
type collectionConfig struct {
	Dimension int `json:"dimension"`
}

// Store owns the remote collection: schema/dimension lifecycle, point
// upsert, filtered similarity search, and connectivity checks.
//
// Reads may run concurrently with an in-flight write; two ingestion runs
// against the same collection must be serialized by the caller.
type Store struct {
	client     *qdrantClient
	embedder   Embedder
	collection string
	policy     retry.Policy
	logger     *zap.Logger

	// OnDataLoss, when set, is invoked before a dimension change destroys
	// the existing collection. It cannot veto; it exists so hosts can
	// surface the data-loss event to a user.
	OnDataLoss func(oldDimension, newDimension int, pointsLost uint64)

	mu         sync.RWMutex
	dimension  int
	exists     bool
	configPath string
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(p retry.Policy) Option {
	return func(s *Store) { s.policy = p }
}

// New creates a Store for the given Qdrant URL and collection name.
func New(qdrantURL, collection string, embedder Embedder, opts ...Option) *Store {
	s := &Store{
		client:     newQdrantClient(qdrantURL),
		embedder:   embedder,
		collection: collection,
		policy:     retry.DefaultPolicy(),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect determines the embedding dimension and checks whether the remote
// collection exists. The dimension is resolved three ways, in order: the
// persisted config file, one measuring embedding call, then the hard-coded
// default. Whichever value was used is persisted.
func (s *Store) Connect(ctx context.Context, baseDir string) error {
	s.mu.Lock()
	s.configPath = filepath.Join(baseDir, collector.IndexDirName, configFileName)
	s.mu.Unlock()

	dimension, ok := s.loadPersistedDimension()
	if !ok {
		if vector, err := s.embedder.Embed(ctx, "dimension probe"); err == nil && len(vector) > 0 {
			dimension = len(vector)
			s.logger.Info("measured embedding dimension", zap.Int("dimension", dimension))
		} else {
			dimension = DefaultDimension
			s.logger.Warn("could not measure embedding dimension, using default",
				zap.Int("dimension", dimension), zap.Error(err))
		}
	}

	s.mu.Lock()
	s.dimension = dimension
	s.mu.Unlock()

	if err := s.persistDimension(dimension); err != nil {
		s.logger.Warn("failed to persist collection config", zap.Error(err))
	}

	info, err := retry.Do(ctx, s.policy, func() (*collectionInfo, error) {
		info, err := s.client.getCollection(ctx, s.collection)
		if errors.Is(err, types.ErrCollectionMissing) {
			return nil, nil
		}
		return info, err
	})
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	s.mu.Lock()
	s.exists = info != nil
	s.mu.Unlock()

	s.logger.Info("vector store connected",
		zap.String("collection", s.collection),
		zap.Int("dimension", dimension),
		zap.Bool("collection_exists", info != nil))
	return nil
}

// EnsureCollection creates the collection when absent. When a collection
// exists with a different dimension it is destructively deleted and
// recreated; all previously indexed points are lost. That trade-off keeps
// provider switches working without manual intervention.
func (s *Store) EnsureCollection(ctx context.Context, dimension int) error {
	info, err := retry.Do(ctx, s.policy, func() (*collectionInfo, error) {
		info, err := s.client.getCollection(ctx, s.collection)
		if errors.Is(err, types.ErrCollectionMissing) {
			return nil, nil
		}
		return info, err
	})
	if err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}

	if info != nil && info.Dimension == dimension {
		s.setExists(true)
		return nil
	}

	if info != nil {
		s.logger.Warn("DESTRUCTIVE: dimension changed, deleting and recreating collection; all indexed points will be lost",
			zap.String("collection", s.collection),
			zap.Int("old_dimension", info.Dimension),
			zap.Int("new_dimension", dimension),
			zap.Uint64("points_lost", info.PointsCount))
		if s.OnDataLoss != nil {
			s.OnDataLoss(info.Dimension, dimension, info.PointsCount)
		}
		if err := retry.Void(ctx, s.policy, func() error {
			return s.client.deleteCollection(ctx, s.collection)
		}); err != nil {
			return fmt.Errorf("delete collection: %w", err)
		}
	}

	if err := retry.Void(ctx, s.policy, func() error {
		return s.client.createCollection(ctx, s.collection, dimension)
	}); err != nil {
		return fmt.Errorf("create collection: %w", err)
	}

	s.mu.Lock()
	s.dimension = dimension
	s.exists = true
	s.mu.Unlock()

	if err := s.persistDimension(dimension); err != nil {
		s.logger.Warn("failed to persist collection config", zap.Error(err))
	}

	s.logger.Info("collection ready",
		zap.String("collection", s.collection), zap.Int("dimension", dimension))
	return nil
}

// Upsert writes one document and its embedding. A vector whose length
// disagrees with the configured dimension is treated as a provider change:
// the new dimension is persisted and the collection is recreated before
// the write proceeds. Ingestion is best-effort per document: when retries
// are exhausted the failure is logged and nil returned so one bad document
// never aborts a batch.
func (s *Store) Upsert(ctx context.Context, doc *types.Document, vector []float32) error {
	if len(vector) != s.Dimension() {
		s.logger.Warn("embedding dimension changed, treating as provider switch",
			zap.Int("configured", s.Dimension()),
			zap.Int("got", len(vector)),
			zap.String("document", doc.ID))
		if err := s.EnsureCollection(ctx, len(vector)); err != nil {
			s.logger.Error("failed to recreate collection for new dimension", zap.Error(err))
			return nil
		}
	} else if !s.collectionExists() {
		if err := s.EnsureCollection(ctx, s.Dimension()); err != nil {
			s.logger.Error("failed to create collection", zap.Error(err))
			return nil
		}
	}

	point := pointRecord{
		ID:      PointID(doc.ID),
		Vector:  vector,
		Payload: buildPayload(doc),
	}

	err := retry.Void(ctx, s.policy, func() error {
		return s.client.upsertPoints(ctx, s.collection, []pointRecord{point})
	})
	if err != nil {
		s.logger.Error("upsert failed after retries, continuing batch",
			zap.String("document", doc.ID), zap.Error(err))
	}
	return nil
}

// Search embeds the query and runs a filtered nearest-neighbor request.
// The similarity threshold is enforced remotely and again client-side,
// since store-side enforcement can differ across engine versions. A query
// vector that disagrees with the collection dimension yields an empty
// result; searching would be meaningless.
func (s *Store) Search(ctx context.Context, query string, limit int, filters map[string]string, threshold float64) ([]types.SearchResult, error) {
	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	if len(vector) != s.Dimension() {
		s.logger.Warn("query vector dimension mismatch, returning empty results",
			zap.Int("configured", s.Dimension()), zap.Int("got", len(vector)))
		return []types.SearchResult{}, nil
	}

	points, err := retry.Do(ctx, s.policy, func() ([]scoredPoint, error) {
		return s.client.searchPoints(ctx, s.collection, vector, limit, filters, threshold)
	})
	if err != nil {
		if errors.Is(err, types.ErrCollectionMissing) || ctx.Err() != nil {
			return []types.SearchResult{}, nil
		}
		return nil, fmt.Errorf("search: %w", err)
	}

	results := make([]types.SearchResult, 0, len(points))
	for _, p := range points {
		if p.Score < threshold {
			continue
		}
		results = append(results, resultFromPoint(p))
	}

	// The store returns hits ordered by score, but the contract is ours to
	// keep; a stable sort preserves arrival order on ties.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	return results, nil
}

// Drop deletes the remote collection entirely. Used by full re-ingestion
// so points for since-deleted files do not linger. A missing collection is
// not an error.
func (s *Store) Drop(ctx context.Context) error {
	err := retry.Void(ctx, s.policy, func() error {
		return s.client.deleteCollection(ctx, s.collection)
	})
	if err != nil && !errors.Is(err, types.ErrCollectionMissing) {
		return fmt.Errorf("drop collection: %w", err)
	}
	s.setExists(false)
	return nil
}

// Health probes connectivity with a short timeout, retrying with the fixed
// delay before declaring failure.
func (s *Store) Health(ctx context.Context) bool {
	err := retry.Void(ctx, s.policy, func() error {
		return s.client.health(ctx)
	})
	if err != nil {
		s.logger.Warn("vector store health check failed", zap.Error(err))
		return false
	}
	return true
}

// DocumentCount reads the live point count from the remote collection.
// Returns 0 when the collection does not exist or the call fails.
func (s *Store) DocumentCount(ctx context.Context) uint64 {
	info, err := retry.Do(ctx, s.policy, func() (*collectionInfo, error) {
		return s.client.getCollection(ctx, s.collection)
	})
	if err != nil {
		return 0
	}
	return info.PointsCount
}

// Flush is a persistence barrier between batches. Qdrant writes with
// wait=true are already durable, so this only logs.
func (s *Store) Flush(ctx context.Context) error {
	s.logger.Debug("flush requested; writes are durable, nothing to do")
	return nil
}

// Dimension returns the currently configured embedding dimension.
func (s *Store) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimension
}

func (s *Store) collectionExists() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.exists
}

func (s *Store) setExists(v bool) {
	s.mu.Lock()
	s.exists = v
	s.mu.Unlock()
}

func (s *Store) loadPersistedDimension() (int, bool) {
	s.mu.RLock()
	path := s.configPath
	s.mu.RUnlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	var cfg collectionConfig
	if err := json.Unmarshal(data, &cfg); err != nil || cfg.Dimension <= 0 {
		return 0, false
	}
	return cfg.Dimension, true
}

func (s *Store) persistDimension(dimension int) error {
	s.mu.RLock()
	path := s.configPath
	s.mu.RUnlock()
	if path == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(collectionConfig{Dimension: dimension}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// PointID derives the deterministic numeric point key from a document ID,
// so repeated upserts of the same document overwrite instead of duplicate.
func PointID(docID string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(docID))
	return h.Sum64()
}

// buildPayload flattens the document into first-class payload attributes
// plus a catch-all nested metadata object.
func buildPayload(doc *types.Document) map[string]any {
	payload := map[string]any{
		"filePath": doc.FilePath,
		"fileName": doc.FileName,
		"summary":  doc.Summary,
		"content":  doc.Content,
		"fileType": doc.Extension,
		"language": doc.Language,
	}
	for _, pair := range doc.Metadata.Pairs() {
		payload[pair[0]] = pair[1]
	}
	payload["metadata"] = map[string]any{
		"id":           doc.ID,
		"size":         doc.Size,
		"lastModified": doc.LastModified.UTC().Format("2006-01-02T15:04:05Z"),
	}
	return payload
}

// resultFromPoint maps a scored point back to a SearchResult, tolerating
// missing payload fields.
func resultFromPoint(p scoredPoint) types.SearchResult {
	result := types.SearchResult{
		ID:         p.ID.String(),
		Similarity: p.Score,
		Metadata:   map[string]string{},
	}

	for key, value := range p.Payload {
		str, ok := value.(string)
		if !ok {
			continue
		}
		switch key {
		case "filePath":
			result.FilePath = str
		case "summary":
			result.Summary = str
		case "content":
			result.Content = str
		default:
			result.Metadata[key] = str
		}
	}

	if nested, ok := p.Payload["metadata"].(map[string]any); ok {
		if id, ok := nested["id"].(string); ok && id != "" {
			result.ID = id
		}
	}
	return result
}
