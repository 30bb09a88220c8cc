package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/semlens/semlens-mcp/internal/config"
	"github.com/semlens/semlens-mcp/internal/mcp"
	"github.com/semlens/semlens-mcp/internal/provider"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	// Handle version flag
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		fmt.Printf("SemLens MCP Server\n")
		fmt.Printf("Version: %s\n", version)
		fmt.Printf("Build Time: %s\n", buildTime)
		fmt.Printf("Provider Backends: %v\n", provider.Backends())
		os.Exit(0)
	}

	configPath := os.Getenv("SEMLENS_CONFIG")
	if configPath == "" {
		configPath = "semlens.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Logs go to stderr; stdout is reserved for the MCP protocol.
	logger, err := newLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting server",
		zap.String("version", version),
		zap.String("provider", cfg.Provider.Backend),
		zap.String("collection", cfg.Qdrant.Collection))

	server, err := mcp.NewServer(cfg, logger)
	if err != nil {
		logger.Fatal("failed to create MCP server", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		logger.Info("MCP server ready, listening on stdio")
		errChan <- server.Serve(ctx)
	}()

	select {
	case sig := <-sigChan:
		logger.Info("shutting down", zap.String("signal", sig.String()))
		cancel()
	case err := <-errChan:
		if err != nil {
			logger.Fatal("server error", zap.Error(err))
		}
	}

	logger.Info("server stopped")
}

// newLogger builds a stderr-only zap logger from config.
func newLogger(cfg config.Log) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	if cfg.Debug {
		level = zapcore.DebugLevel
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	return zcfg.Build()
}
