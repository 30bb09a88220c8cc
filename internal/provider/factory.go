package provider

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/semlens/semlens-mcp/internal/config"
)

// builders is the backend registry. Selection happens here once, keyed by
// the configured backend name, never by string dispatch at call sites.
var builders = map[string]func(cfg config.Provider, cache *Cache, logger *zap.Logger) Provider{
	BackendOpenAI: func(cfg config.Provider, cache *Cache, logger *zap.Logger) Provider {
		return NewOpenAIProvider(cfg.BaseURL, cfg.APIKey, cfg.EmbeddingModel, cfg.ChatModel, cache, logger)
	},
	BackendOllama: func(cfg config.Provider, cache *Cache, logger *zap.Logger) Provider {
		return NewOllamaProvider(cfg.BaseURL, cfg.EmbeddingModel, cfg.ChatModel, cache, logger)
	},
	BackendOffline: func(cfg config.Provider, cache *Cache, logger *zap.Logger) Provider {
		return NewOfflineProvider()
	},
}

// New creates a provider from configuration.
func New(cfg config.Provider, logger *zap.Logger) (Provider, error) {
	backend := strings.ToLower(cfg.Backend)
	build, ok := builders[backend]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}

	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}
	return build(cfg, cache, logger), nil
}

// Backends lists the registered backend names.
func Backends() []string {
	names := make([]string, 0, len(builders))
	for name := range builders {
		names = append(names, name)
	}
	return names
}
