// Package catalog tracks which files were indexed, keyed by content hash,
// so unchanged files can be skipped on the next ingestion run.
//
// The catalog is advisory. Every failure degrades to "treat the file as
// changed", which costs a redundant re-index but never a missed update.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/semlens/semlens-mcp/internal/collector"
)

// DriverName is the pure Go SQLite driver, so builds need no C toolchain.
const DriverName = "sqlite"

// FileName is the catalog database file inside the project's index directory.
const FileName = "catalog.db"

const schema = `
CREATE TABLE IF NOT EXISTS files (
    path TEXT PRIMARY KEY,
    content_hash TEXT NOT NULL,
    point_id INTEGER NOT NULL,
    indexed_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_files_hash ON files(content_hash);
`

// Catalog is the per-project file index backed by SQLite.
type Catalog struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open creates or opens the catalog under baseDir's index directory.
func Open(baseDir string, logger *zap.Logger) (*Catalog, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dir := filepath.Join(baseDir, collector.IndexDirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}

	db, err := sql.Open(DriverName, filepath.Join(dir, FileName))
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}

	// WAL lets reads proceed during the ingestion writer's transaction.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	// SQLite performs best with a single writer connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Catalog{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Changed reports whether the file at path needs re-indexing: its hash
// differs from the recorded one, it was never recorded, or the lookup
// failed.
func (c *Catalog) Changed(ctx context.Context, path, contentHash string) bool {
	var stored string
	err := c.db.QueryRowContext(ctx,
		"SELECT content_hash FROM files WHERE path = ?", path).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return true
	}
	if err != nil {
		c.logger.Warn("catalog lookup failed, re-indexing file",
			zap.String("path", path), zap.Error(err))
		return true
	}
	return stored != contentHash
}

// Record stores or replaces the catalog entry for one indexed file.
func (c *Catalog) Record(ctx context.Context, path, contentHash string, pointID uint64) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO files (path, content_hash, point_id, indexed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			content_hash = excluded.content_hash,
			point_id = excluded.point_id,
			indexed_at = excluded.indexed_at
	`, path, contentHash, int64(pointID), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("record file: %w", err)
	}
	return nil
}

// Count returns the number of cataloged files, 0 on failure.
func (c *Catalog) Count(ctx context.Context) int {
	var n int
	if err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM files").Scan(&n); err != nil {
		c.logger.Warn("catalog count failed", zap.Error(err))
		return 0
	}
	return n
}
