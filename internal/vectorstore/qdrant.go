package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/semlens/semlens-mcp/pkg/types"
)

// qdrantClient is a thin HTTP JSON client for the Qdrant collection API.
// It does wire work only; lifecycle decisions live in Store.
type qdrantClient struct {
	baseURL string
	client  *http.Client
	probe   *http.Client // short timeout, used only for health checks
}

const (
	requestTimeout = 60 * time.Second
	healthTimeout  = 5 * time.Second
)

func newQdrantClient(baseURL string) *qdrantClient {
	return &qdrantClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: requestTimeout},
		probe:   &http.Client{Timeout: healthTimeout},
	}
}

// collectionInfo is the subset of collection metadata the store needs.
// Fields default to zero when the server omits them.
type collectionInfo struct {
	Dimension   int
	PointsCount uint64
}

// pointRecord is one upsert payload entry.
type pointRecord struct {
	ID      uint64         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// scoredPoint is one search hit.
type scoredPoint struct {
	ID      json.Number    `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

func (c *qdrantClient) health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := c.probe.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrConnectivity, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health returned %d", types.ErrConnectivity, resp.StatusCode)
	}
	return nil
}

// getCollection returns collection metadata, or ErrCollectionMissing on 404.
func (c *qdrantClient) getCollection(ctx context.Context, name string) (*collectionInfo, error) {
	var resp struct {
		Result struct {
			PointsCount uint64 `json:"points_count"`
			Config      struct {
				Params struct {
					Vectors struct {
						Size int `json:"size"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}

	if err := c.do(ctx, http.MethodGet, "/collections/"+name, nil, &resp); err != nil {
		return nil, err
	}

	return &collectionInfo{
		Dimension:   resp.Result.Config.Params.Vectors.Size,
		PointsCount: resp.Result.PointsCount,
	}, nil
}

func (c *qdrantClient) createCollection(ctx context.Context, name string, dimension int) error {
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	return c.do(ctx, http.MethodPut, "/collections/"+name, body, nil)
}

func (c *qdrantClient) deleteCollection(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, "/collections/"+name, nil, nil)
}

func (c *qdrantClient) upsertPoints(ctx context.Context, name string, points []pointRecord) error {
	body := map[string]any{"points": points}
	return c.do(ctx, http.MethodPut, "/collections/"+name+"/points?wait=true", body, nil)
}

// searchPoints runs a filtered nearest-neighbor query. Filters are flat
// equality clauses combined with AND.
func (c *qdrantClient) searchPoints(ctx context.Context, name string, vector []float32, limit int, filters map[string]string, threshold float64) ([]scoredPoint, error) {
	body := map[string]any{
		"vector":          vector,
		"limit":           limit,
		"with_payload":    true,
		"score_threshold": threshold,
	}

	if len(filters) > 0 {
		must := make([]map[string]any, 0, len(filters))
		for key, value := range filters {
			must = append(must, map[string]any{
				"key":   key,
				"match": map[string]any{"value": value},
			})
		}
		body["filter"] = map[string]any{"must": must}
	}

	var resp struct {
		Result []scoredPoint `json:"result"`
	}
	if err := c.do(ctx, http.MethodPost, "/collections/"+name+"/points/search", body, &resp); err != nil {
		return nil, err
	}
	return resp.Result, nil
}

// do sends one request and decodes the response into out when non-nil.
// 404 on collection resources maps to ErrCollectionMissing so callers can
// branch on existence without parsing bodies.
func (c *qdrantClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrConnectivity, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return types.ErrCollectionMissing
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: status %d", types.ErrRateLimited, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("qdrant error %d: %s", resp.StatusCode, string(data))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: decode response: %v", types.ErrMalformedResponse, err)
		}
	}
	return nil
}
