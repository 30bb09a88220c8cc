// Package session drives the read path: follow-up detection, similarity
// search, and context assembly for the generative call.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/semlens/semlens-mcp/internal/config"
	"github.com/semlens/semlens-mcp/internal/provider"
	"github.com/semlens/semlens-mcp/internal/retry"
	"github.com/semlens/semlens-mcp/pkg/types"
)

// Searcher is the one store capability the session needs.
type Searcher interface {
	Search(ctx context.Context, query string, limit int, filters map[string]string, threshold float64) ([]types.SearchResult, error)
}

// RetrievalSession holds one conversation: its history, the previous
// result set for follow-up reuse, and the search/answer plumbing.
//
// The caller-facing read path never errors out of Search: total failure
// degrades to an empty result set after retries, because a search that
// crashes its caller is worse than one that finds nothing.
type RetrievalSession struct {
	id       string
	store    Searcher
	provider provider.Provider
	cfg      config.Search
	policy   retry.Policy
	logger   *zap.Logger

	mu          sync.Mutex
	history     []types.ConversationTurn
	lastResults []types.SearchResult
}

// New creates a session. Zero config fields take defaults.
func New(store Searcher, p provider.Provider, cfg config.Search, logger *zap.Logger) *RetrievalSession {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 10
	}
	if cfg.DefaultThreshold <= 0 {
		cfg.DefaultThreshold = 0.5
	}
	if cfg.FallbackThreshold <= 0 {
		cfg.FallbackThreshold = 0.3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetrievalSession{
		id:       uuid.NewString(),
		store:    store,
		provider: p,
		cfg:      cfg,
		policy:   retry.DefaultPolicy(),
		logger:   logger,
	}
}

// ID returns the session identifier.
func (s *RetrievalSession) ID() string { return s.id }

// Search runs a similarity search and remembers the results for follow-up
// reuse. Limit and threshold fall back to configured defaults when
// non-positive. Failures degrade to an empty result set.
func (s *RetrievalSession) Search(ctx context.Context, query string, limit int, filters map[string]string, threshold float64) []types.SearchResult {
	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}
	if threshold <= 0 {
		threshold = s.cfg.DefaultThreshold
	}

	results, err := retry.Do(ctx, s.policy, func() ([]types.SearchResult, error) {
		return s.store.Search(ctx, query, limit, filters, threshold)
	})
	if err != nil {
		s.logger.Warn("search failed after retries, returning empty results",
			zap.String("session", s.id), zap.String("query", query), zap.Error(err))
		results = []types.SearchResult{}
	}

	s.mu.Lock()
	s.lastResults = results
	s.mu.Unlock()
	return results
}

// Ask answers a question over the index. Follow-up questions reuse the
// previous result set; when that set is empty the session widens recall
// with a fresh search at the lower fallback threshold. New topics search
// fresh at the default threshold. Both turns are appended to history on
// success.
func (s *RetrievalSession) Ask(ctx context.Context, question string) (string, error) {
	s.mu.Lock()
	history := append([]types.ConversationTurn(nil), s.history...)
	last := s.lastResults
	s.mu.Unlock()

	var results []types.SearchResult
	if IsFollowUp(question, history) {
		results = last
		if len(results) == 0 {
			s.logger.Debug("follow-up with no prior results, widening recall",
				zap.String("session", s.id))
			results = s.Search(ctx, question, s.cfg.DefaultLimit, nil, s.cfg.FallbackThreshold)
		}
	} else {
		results = s.Search(ctx, question, s.cfg.DefaultLimit, nil, s.cfg.DefaultThreshold)
	}

	answer, err := s.provider.Answer(ctx, question, results, history)
	if err != nil {
		return "", fmt.Errorf("answer question: %w", err)
	}

	s.mu.Lock()
	s.history = append(s.history, types.UserTurn(question), types.AssistantTurn(answer))
	s.mu.Unlock()
	return answer, nil
}

// GenerateContext explains how the given results relate to the query.
func (s *RetrievalSession) GenerateContext(ctx context.Context, query string, results []types.SearchResult) (string, error) {
	text, err := s.provider.Contextualize(ctx, query, results)
	if err != nil {
		return "", fmt.Errorf("generate context: %w", err)
	}
	return text, nil
}

// History returns a copy of the conversation so far.
func (s *RetrievalSession) History() []types.ConversationTurn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.ConversationTurn(nil), s.history...)
}
