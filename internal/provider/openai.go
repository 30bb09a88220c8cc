package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/semlens/semlens-mcp/pkg/types"
)

const (
	BackendOpenAI = "openai"

	DefaultOpenAIBaseURL        = "https://api.openai.com/v1"
	DefaultOpenAIEmbeddingModel = "text-embedding-3-small"
	DefaultOpenAIChatModel      = "gpt-4o-mini"

	// openAIMaxEmbedBytes is the safe input length for one embedding call.
	openAIMaxEmbedBytes = 24000

	// Generative calls over large contexts are slow; embeddings are not.
	// Probes get their own short timeout so a dead service fails fast.
	embedTimeout = 30 * time.Second
	chatTimeout  = 120 * time.Second
	probeTimeout = 5 * time.Second
)

// OpenAIProvider talks to any OpenAI-compatible embeddings + chat API.
type OpenAIProvider struct {
	baseURL        string
	apiKey         string
	embeddingModel string
	chatModel      string
	embedClient    *http.Client
	chatClient     *http.Client
	cache          *Cache
	logger         *zap.Logger
}

// NewOpenAIProvider creates an OpenAI-compatible provider. An empty baseURL
// selects the public OpenAI endpoint; compatible gateways supply their own.
func NewOpenAIProvider(baseURL, apiKey, embeddingModel, chatModel string, cache *Cache, logger *zap.Logger) *OpenAIProvider {
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	if embeddingModel == "" {
		embeddingModel = DefaultOpenAIEmbeddingModel
	}
	if chatModel == "" {
		chatModel = DefaultOpenAIChatModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAIProvider{
		baseURL:        baseURL,
		apiKey:         apiKey,
		embeddingModel: embeddingModel,
		chatModel:      chatModel,
		embedClient:    &http.Client{Timeout: embedTimeout},
		chatClient:     &http.Client{Timeout: chatTimeout},
		cache:          cache,
		logger:         logger,
	}
}

func (p *OpenAIProvider) Name() string { return BackendOpenAI }

func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	text = truncate(text, openAIMaxEmbedBytes)

	hash := ComputeHash(text)
	if p.cache != nil {
		if v, ok := p.cache.Get(hash); ok {
			return v, nil
		}
	}

	reqBody := map[string]any{
		"model": p.embeddingModel,
		"input": []string{text},
	}

	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := p.postJSON(ctx, p.embedClient, "/embeddings", reqBody, &apiResp); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrEmbedding, err)
	}

	if len(apiResp.Data) == 0 || len(apiResp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("%w: %w", types.ErrEmbedding, ErrNoVectorReturned)
	}

	vector := apiResp.Data[0].Embedding
	if p.cache != nil {
		p.cache.Set(hash, vector)
	}
	return vector, nil
}

func (p *OpenAIProvider) Summarize(ctx context.Context, code, fileName string) (string, error) {
	return p.chat(ctx, []chatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: summarizePrompt(truncate(code, maxContextPerFile), fileName)},
	})
}

func (p *OpenAIProvider) Contextualize(ctx context.Context, query string, results []types.SearchResult) (string, error) {
	return p.chat(ctx, []chatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: contextualizePrompt(query, results)},
	})
}

func (p *OpenAIProvider) Answer(ctx context.Context, question string, results []types.SearchResult, history []types.ConversationTurn) (string, error) {
	return p.chat(ctx, buildChatMessages(question, results, history))
}

func (p *OpenAIProvider) TestConnection(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	if _, err := p.Embed(ctx, "ping"); err != nil {
		p.logger.Warn("provider connection test failed",
			zap.String("backend", BackendOpenAI), zap.Error(err))
		return false
	}
	return true
}

func (p *OpenAIProvider) Close() error {
	p.embedClient.CloseIdleConnections()
	p.chatClient.CloseIdleConnections()
	return nil
}

// chat performs one non-streaming chat completion call.
func (p *OpenAIProvider) chat(ctx context.Context, messages []chatMessage) (string, error) {
	reqBody := map[string]any{
		"model":    p.chatModel,
		"messages": messages,
	}

	var apiResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := p.postJSON(ctx, p.chatClient, "/chat/completions", reqBody, &apiResp); err != nil {
		return "", err
	}

	if len(apiResp.Choices) == 0 || apiResp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("%w: %w", types.ErrMalformedResponse, ErrNoContentReturned)
	}
	return apiResp.Choices[0].Message.Content, nil
}

// postJSON sends one JSON request and decodes the response into out,
// classifying rate-limit and decode failures.
func (p *OpenAIProvider) postJSON(ctx context.Context, client *http.Client, path string, reqBody, out any) error {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("api call: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: api error %d: %s", types.ErrRateLimited, resp.StatusCode, string(bodyBytes))
	}
	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("api error %d: %s", resp.StatusCode, string(bodyBytes))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", types.ErrMalformedResponse, err)
	}
	return nil
}
