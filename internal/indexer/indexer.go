package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"go.uber.org/zap"

	"github.com/semlens/semlens-mcp/internal/catalog"
	"github.com/semlens/semlens-mcp/internal/collector"
	"github.com/semlens/semlens-mcp/internal/metadata"
	"github.com/semlens/semlens-mcp/internal/provider"
	"github.com/semlens/semlens-mcp/internal/retry"
	"github.com/semlens/semlens-mcp/internal/vectorstore"
	"github.com/semlens/semlens-mcp/pkg/types"
)

const (
	// DefaultBatchSize is the number of documents flushed per batch.
	DefaultBatchSize = 5

	// DefaultWorkers bounds concurrent per-file pipelines. Embedding
	// backends rate-limit aggressively, so the default stays small.
	DefaultWorkers = 2

	// DefaultMaxFileSize caps indexable file size in bytes.
	DefaultMaxFileSize = 500_000
)

// binarySampleSize and binaryControlRatio drive the binary-file heuristic:
// a file is binary when more than 10% of its leading sample is control
// bytes other than common whitespace.
const (
	binarySampleSize   = 1000
	binaryControlRatio = 0.10
)

// Store is the vector persistence surface the indexer drives.
type Store interface {
	Connect(ctx context.Context, baseDir string) error
	Upsert(ctx context.Context, doc *types.Document, vector []float32) error
	Drop(ctx context.Context) error
	Flush(ctx context.Context) error
	Health(ctx context.Context) bool
}

// Config contains configuration for the indexer.
type Config struct {
	BatchSize   int
	Workers     int
	MaxFileSize int64
	Retry       retry.Policy
}

// Statistics describes one completed ingestion run.
type Statistics struct {
	FilesIndexed  int
	FilesSkipped  int
	FilesFailed   int
	Duration      time.Duration
	ErrorMessages []string
}

// ProgressFunc receives a progress report after every flushed batch.
type ProgressFunc func(processed, total int, fraction float64, currentFile string)

// Indexer coordinates the ingestion pipeline:
// collect -> extract -> summarize -> embed -> upsert.
type Indexer struct {
	provider provider.Provider
	store    Store
	logger   *zap.Logger
	cfg      Config
	progress ProgressFunc

	lock IndexLock
}

// New creates an Indexer. Zero config fields take defaults.
func New(p provider.Provider, store Store, cfg Config, logger *zap.Logger) *Indexer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = retry.DefaultPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{provider: p, store: store, logger: logger, cfg: cfg}
}

// SetProgress installs the batch progress callback.
func (idx *Indexer) SetProgress(fn ProgressFunc) {
	idx.progress = fn
}

// Busy reports whether an ingestion run is in flight.
func (idx *Indexer) Busy() bool {
	return idx.lock.Held()
}

// IndexProject runs one incremental ingestion pass over rootPath. Files
// whose content hash matches the catalog are skipped. Only one run may be
// active; concurrent calls get ErrIndexingInProgress.
func (idx *Indexer) IndexProject(ctx context.Context, rootPath string) (*Statistics, error) {
	if !idx.lock.TryAcquire() {
		return nil, types.ErrIndexingInProgress
	}
	defer idx.lock.Release()

	return idx.run(ctx, rootPath)
}

// ReindexAll discards all index state and runs a full pass: the remote
// collection is dropped, the local index directory removed, and the store
// reconnected, so points for deleted files cannot linger.
func (idx *Indexer) ReindexAll(ctx context.Context, rootPath string) (*Statistics, error) {
	if !idx.lock.TryAcquire() {
		return nil, types.ErrIndexingInProgress
	}
	defer idx.lock.Release()

	if err := idx.store.Drop(ctx); err != nil {
		return nil, err
	}
	indexDir := filepath.Join(rootPath, collector.IndexDirName)
	if err := os.RemoveAll(indexDir); err != nil {
		return nil, fmt.Errorf("remove index directory: %w", err)
	}
	if err := idx.store.Connect(ctx, rootPath); err != nil {
		return nil, err
	}

	idx.logger.Info("full re-index requested, previous index discarded",
		zap.String("root", rootPath))
	return idx.run(ctx, rootPath)
}

func (idx *Indexer) run(ctx context.Context, rootPath string) (*Statistics, error) {
	start := time.Now()

	files, err := collector.New(rootPath).Collect()
	if err != nil {
		return nil, fmt.Errorf("collect files: %w", err)
	}
	total := len(files)
	idx.logger.Info("ingestion started",
		zap.String("root", rootPath), zap.Int("files", total))

	cat, err := catalog.Open(rootPath, idx.logger)
	if err != nil {
		// The catalog only saves work; without it every file re-indexes.
		idx.logger.Warn("catalog unavailable, incremental skipping disabled", zap.Error(err))
		cat = nil
	} else {
		defer func() { _ = cat.Close() }()
	}

	var (
		indexed int32
		skipped int32
		failed  int32

		mu   sync.Mutex
		errs []string

		connectivityHit atomic.Bool
	)

	for i := 0; i < total; i += idx.cfg.BatchSize {
		end := i + idx.cfg.BatchSize
		if end > total {
			end = total
		}
		batch := files[i:end]

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(idx.cfg.Workers)
		for _, path := range batch {
			g.Go(func() error {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				err := idx.processFile(gctx, rootPath, cat, path, &indexed, &skipped)
				if err != nil {
					atomic.AddInt32(&failed, 1)
					mu.Lock()
					errs = append(errs, fmt.Sprintf("%s: %v", path, err))
					mu.Unlock()
					if types.IsConnectivityError(err) {
						connectivityHit.Store(true)
					}
				}
				// Per-file failures never abort the group.
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		// A connectivity failure usually means a backend dropped out, not
		// one bad file. Re-check both once; keep going only when both are
		// reachable again.
		if connectivityHit.Load() {
			if !idx.reconnect(ctx) {
				return nil, fmt.Errorf("%w: backends unreachable, aborting ingestion", types.ErrConnectivity)
			}
			connectivityHit.Store(false)
		}

		if err := idx.store.Flush(ctx); err != nil {
			idx.logger.Warn("flush failed", zap.Error(err))
		}
		if idx.progress != nil {
			idx.progress(end, total, float64(end)/float64(total), batch[len(batch)-1])
		}
	}

	stats := &Statistics{
		FilesIndexed:  int(indexed),
		FilesSkipped:  int(skipped),
		FilesFailed:   int(failed),
		Duration:      time.Since(start),
		ErrorMessages: errs,
	}
	idx.logger.Info("ingestion finished",
		zap.Int("indexed", stats.FilesIndexed),
		zap.Int("skipped", stats.FilesSkipped),
		zap.Int("failed", stats.FilesFailed),
		zap.Duration("duration", stats.Duration))
	return stats, nil
}

// processFile runs the full per-file pipeline. Skips return nil; only
// genuine failures (provider errors, unreadable metadata) return errors.
func (idx *Indexer) processFile(ctx context.Context, rootPath string, cat *catalog.Catalog,
	path string, indexed, skipped *int32) error {

	info, err := os.Stat(path)
	if err != nil {
		atomic.AddInt32(skipped, 1)
		return nil
	}
	if info.Size() > idx.cfg.MaxFileSize {
		idx.logger.Debug("skipping oversized file",
			zap.String("path", path), zap.Int64("size", info.Size()))
		atomic.AddInt32(skipped, 1)
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		atomic.AddInt32(skipped, 1)
		return nil
	}
	if isBinary(data) {
		atomic.AddInt32(skipped, 1)
		return nil
	}

	relPath, err := filepath.Rel(rootPath, path)
	if err != nil {
		return err
	}
	relPath = filepath.ToSlash(relPath)

	content := string(data)
	contentHash := provider.ComputeHash(content)
	if cat != nil && !cat.Changed(ctx, relPath, contentHash) {
		atomic.AddInt32(skipped, 1)
		return nil
	}

	language := types.LanguageForPath(path)
	doc := &types.Document{
		ID:           relPath,
		FilePath:     relPath,
		FileName:     filepath.Base(path),
		Language:     language,
		Extension:    filepath.Ext(path),
		Size:         info.Size(),
		LastModified: info.ModTime(),
		Content:      content,
		Metadata:     metadata.Extract(language, content),
	}

	summary, err := retry.Do(ctx, idx.cfg.Retry, func() (string, error) {
		return idx.provider.Summarize(ctx, content, relPath)
	})
	if err != nil {
		return fmt.Errorf("summarize: %w", err)
	}
	doc.Summary = summary

	vector, err := retry.Do(ctx, idx.cfg.Retry, func() ([]float32, error) {
		return idx.provider.Embed(ctx, embeddingText(doc))
	})
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}

	if err := idx.store.Upsert(ctx, doc, vector); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}

	atomic.AddInt32(indexed, 1)
	if cat != nil {
		if err := cat.Record(ctx, relPath, contentHash, vectorstore.PointID(doc.ID)); err != nil {
			idx.logger.Warn("catalog record failed",
				zap.String("path", relPath), zap.Error(err))
		}
	}
	return nil
}

// reconnect re-checks both backends after connectivity failures.
func (idx *Indexer) reconnect(ctx context.Context) bool {
	idx.logger.Warn("connectivity failures detected, re-checking backends")
	providerOK := idx.provider.TestConnection(ctx)
	storeOK := idx.store.Health(ctx)
	idx.logger.Info("backend re-check",
		zap.Bool("provider", providerOK), zap.Bool("vector_store", storeOK))
	return providerOK && storeOK
}

// embeddingText prefixes the content with its structural identity so
// queries naming a file, language, or symbol rank that file higher.
func embeddingText(doc *types.Document) string {
	var b strings.Builder
	fmt.Fprintf(&b, "File: %s\n", doc.FilePath)
	fmt.Fprintf(&b, "Language: %s\n", doc.Language)
	for _, pair := range doc.Metadata.Pairs() {
		fmt.Fprintf(&b, "%s%s: %s\n", strings.ToUpper(pair[0][:1]), pair[0][1:], pair[1])
	}
	b.WriteString("\n")
	b.WriteString(doc.Content)
	return b.String()
}

// isBinary samples the leading bytes and reports binary when too many are
// control characters outside common whitespace.
func isBinary(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	sample := data
	if len(sample) > binarySampleSize {
		sample = sample[:binarySampleSize]
	}

	control := 0
	for _, b := range sample {
		if b >= 0x20 {
			continue
		}
		switch b {
		case '\t', '\n', '\r', '\f', '\b':
		default:
			control++
		}
	}
	return float64(control)/float64(len(sample)) > binaryControlRatio
}
