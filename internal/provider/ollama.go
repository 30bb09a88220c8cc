package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/semlens/semlens-mcp/pkg/types"
)

const (
	BackendOllama = "ollama"

	DefaultOllamaBaseURL        = "http://localhost:11434"
	DefaultOllamaEmbeddingModel = "nomic-embed-text"
	DefaultOllamaChatModel      = "llama3.1"

	// Local models reject very long prompts with little grace; stay well
	// under typical context windows.
	ollamaMaxEmbedBytes = 8000
)

// OllamaProvider talks to a local Ollama instance.
type OllamaProvider struct {
	baseURL        string
	embeddingModel string
	chatModel      string
	embedClient    *http.Client
	chatClient     *http.Client
	cache          *Cache
	logger         *zap.Logger
}

// NewOllamaProvider creates an Ollama-backed provider.
func NewOllamaProvider(baseURL, embeddingModel, chatModel string, cache *Cache, logger *zap.Logger) *OllamaProvider {
	if baseURL == "" {
		baseURL = DefaultOllamaBaseURL
	}
	if embeddingModel == "" {
		embeddingModel = DefaultOllamaEmbeddingModel
	}
	if chatModel == "" {
		chatModel = DefaultOllamaChatModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OllamaProvider{
		baseURL:        baseURL,
		embeddingModel: embeddingModel,
		chatModel:      chatModel,
		embedClient:    &http.Client{Timeout: embedTimeout},
		chatClient:     &http.Client{Timeout: chatTimeout},
		cache:          cache,
		logger:         logger,
	}
}

func (p *OllamaProvider) Name() string { return BackendOllama }

func (p *OllamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	text = truncate(text, ollamaMaxEmbedBytes)

	hash := ComputeHash(text)
	if p.cache != nil {
		if v, ok := p.cache.Get(hash); ok {
			return v, nil
		}
	}

	reqBody := map[string]any{
		"model":  p.embeddingModel,
		"prompt": text,
	}

	var apiResp struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := p.postJSON(ctx, p.embedClient, "/api/embeddings", reqBody, &apiResp); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrEmbedding, err)
	}

	if len(apiResp.Embedding) == 0 {
		return nil, fmt.Errorf("%w: %w", types.ErrEmbedding, ErrNoVectorReturned)
	}

	if p.cache != nil {
		p.cache.Set(hash, apiResp.Embedding)
	}
	return apiResp.Embedding, nil
}

func (p *OllamaProvider) Summarize(ctx context.Context, code, fileName string) (string, error) {
	return p.generate(ctx, summarizePrompt(truncate(code, maxContextPerFile), fileName))
}

func (p *OllamaProvider) Contextualize(ctx context.Context, query string, results []types.SearchResult) (string, error) {
	return p.generate(ctx, contextualizePrompt(query, results))
}

func (p *OllamaProvider) Answer(ctx context.Context, question string, results []types.SearchResult, history []types.ConversationTurn) (string, error) {
	// Ollama's generate endpoint takes one prompt; flatten the history the
	// same way the chat backends order their messages.
	var prompt bytes.Buffer
	prompt.WriteString(systemPrompt)
	prompt.WriteString("\n\n")
	for _, turn := range history {
		if turn.IsUser {
			prompt.WriteString("User: ")
		} else {
			prompt.WriteString("Assistant: ")
		}
		prompt.WriteString(turn.Text)
		prompt.WriteString("\n")
	}
	prompt.WriteString(answerPrompt(question, results))
	return p.generate(ctx, prompt.String())
}

func (p *OllamaProvider) TestConnection(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	if _, err := p.Embed(ctx, "ping"); err != nil {
		p.logger.Warn("provider connection test failed",
			zap.String("backend", BackendOllama), zap.Error(err))
		return false
	}
	return true
}

func (p *OllamaProvider) Close() error {
	p.embedClient.CloseIdleConnections()
	p.chatClient.CloseIdleConnections()
	return nil
}

func (p *OllamaProvider) generate(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  p.chatModel,
		"prompt": prompt,
		"stream": false,
	}

	var apiResp struct {
		Response string `json:"response"`
	}
	if err := p.postJSON(ctx, p.chatClient, "/api/generate", reqBody, &apiResp); err != nil {
		return "", err
	}

	if apiResp.Response == "" {
		return "", fmt.Errorf("%w: %w", types.ErrMalformedResponse, ErrNoContentReturned)
	}
	return apiResp.Response, nil
}

func (p *OllamaProvider) postJSON(ctx context.Context, client *http.Client, path string, reqBody, out any) error {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("api call: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("api error %d: %s", resp.StatusCode, string(bodyBytes))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", types.ErrMalformedResponse, err)
	}
	return nil
}
