package provider

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/semlens/semlens-mcp/pkg/types"
)

const (
	BackendOffline = "offline"

	// OfflineDimension is the fixed vector length of the offline backend.
	OfflineDimension = 256
)

// OfflineProvider produces deterministic embeddings with no network access:
// a hashed bag-of-words vector, normalized to unit length. Texts sharing
// tokens land close under cosine similarity, which is enough for tests and
// for running fully disconnected.
type OfflineProvider struct{}

// NewOfflineProvider creates the offline backend.
func NewOfflineProvider() *OfflineProvider {
	return &OfflineProvider{}
}

func (p *OfflineProvider) Name() string { return BackendOffline }

func (p *OfflineProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	vector := make([]float32, OfflineDimension)
	for _, token := range tokenize(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(token))
		vector[h.Sum32()%OfflineDimension]++
	}

	var sum float64
	for _, v := range vector {
		sum += float64(v * v)
	}
	if sum > 0 {
		norm := float32(math.Sqrt(sum))
		for i := range vector {
			vector[i] /= norm
		}
	}
	return vector, nil
}

func (p *OfflineProvider) Summarize(ctx context.Context, code, fileName string) (string, error) {
	lines := strings.Count(code, "\n") + 1
	return fmt.Sprintf("%s: source file, %d lines.", fileName, lines), nil
}

func (p *OfflineProvider) Contextualize(ctx context.Context, query string, results []types.SearchResult) (string, error) {
	if len(results) == 0 {
		return fmt.Sprintf("No indexed files matched %q.", query), nil
	}
	paths := make([]string, len(results))
	for i, r := range results {
		paths[i] = r.FilePath
	}
	return fmt.Sprintf("Files related to %q: %s.", query, strings.Join(paths, ", ")), nil
}

func (p *OfflineProvider) Answer(ctx context.Context, question string, results []types.SearchResult, history []types.ConversationTurn) (string, error) {
	return p.Contextualize(ctx, question, results)
}

func (p *OfflineProvider) TestConnection(ctx context.Context) bool { return true }

func (p *OfflineProvider) Close() error { return nil }

// tokenize lowercases and splits on non-alphanumeric boundaries.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
