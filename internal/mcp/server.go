package mcp

import (
	"context"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/semlens/semlens-mcp/internal/config"
	"github.com/semlens/semlens-mcp/internal/indexer"
	"github.com/semlens/semlens-mcp/internal/provider"
	"github.com/semlens/semlens-mcp/internal/session"
	"github.com/semlens/semlens-mcp/internal/vectorstore"
)

const (
	// ServerName is the MCP server name
	ServerName = "semlens-mcp"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	cfg      *config.Config
	provider provider.Provider
	store    *vectorstore.Store
	indexer  *indexer.Indexer
	session  *session.RetrievalSession
	logger   *zap.Logger

	// connected tracks which project the store is bound to, so tool calls
	// against a second project re-run dimension resolution.
	mu        sync.Mutex
	connected string
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	p, err := provider.New(cfg.Provider, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize provider: %w", err)
	}

	store := vectorstore.New(cfg.Qdrant.URL, cfg.Qdrant.Collection, p,
		vectorstore.WithLogger(logger))
	store.OnDataLoss = func(oldDim, newDim int, points uint64) {
		logger.Warn("embedding dimension changed, previously indexed documents were discarded",
			zap.Int("old_dimension", oldDim),
			zap.Int("new_dimension", newDim),
			zap.Uint64("points_lost", points))
	}

	idx := indexer.New(p, store, indexer.Config{
		BatchSize:   cfg.Indexing.BatchSize,
		Workers:     cfg.Indexing.Workers,
		MaxFileSize: cfg.Indexing.MaxFileSize,
	}, logger)
	idx.SetProgress(func(processed, total int, fraction float64, currentFile string) {
		logger.Debug("indexing progress",
			zap.Int("processed", processed),
			zap.Int("total", total),
			zap.Float64("fraction", fraction),
			zap.String("current", currentFile))
	})

	sess := session.New(store, p, cfg.Search, logger)

	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
	)

	s := &Server{
		mcp:      mcpServer,
		cfg:      cfg,
		provider: p,
		store:    store,
		indexer:  idx,
		session:  sess,
		logger:   logger,
	}

	s.registerTools()
	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer func() { _ = s.provider.Close() }()
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(indexProjectTool(), s.handleIndexProject)
	s.mcp.AddTool(reindexAllTool(), s.handleReindexAll)
	s.mcp.AddTool(searchCodeTool(), s.handleSearchCode)
	s.mcp.AddTool(askQuestionTool(), s.handleAskQuestion)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}

// ensureConnected binds the store to the given project root, running
// dimension resolution once per project.
func (s *Server) ensureConnected(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connected == path {
		return nil
	}
	if err := s.store.Connect(ctx, path); err != nil {
		return err
	}
	s.connected = path
	return nil
}
