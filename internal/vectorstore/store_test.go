package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semlens/semlens-mcp/internal/collector"
	"github.com/semlens/semlens-mcp/internal/retry"
	"github.com/semlens/semlens-mcp/pkg/types"
)

// fakeQdrant is an in-memory stand-in for the collection API, just enough
// surface for the store to exercise its lifecycle against.
type fakeQdrant struct {
	mu        sync.Mutex
	exists    bool
	dimension int
	count     uint64
	points    map[uint64]map[string]any
	hits      []map[string]any

	creates     int
	deletes     int
	upsertFails int // remaining forced upsert failures
}

func newFakeQdrant() (*fakeQdrant, *httptest.Server) {
	f := &fakeQdrant{points: map[uint64]map[string]any{}}
	return f, httptest.NewServer(http.HandlerFunc(f.handle))
}

func (f *fakeQdrant) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.URL.Path == "/healthz":
		w.WriteHeader(http.StatusOK)

	case strings.HasSuffix(r.URL.Path, "/points") && r.Method == http.MethodPut:
		if f.upsertFails > 0 {
			f.upsertFails--
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		var req struct {
			Points []pointRecord `json:"points"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		for _, p := range req.Points {
			f.points[p.ID] = p.Payload
		}
		f.count = uint64(len(f.points))
		_, _ = w.Write([]byte(`{"status":"ok"}`))

	case strings.HasSuffix(r.URL.Path, "/points/search"):
		if !f.exists {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		// Server-side thresholding is deliberately ignored so tests can
		// verify the client enforces it.
		_ = json.NewEncoder(w).Encode(map[string]any{"result": f.hits})

	case r.Method == http.MethodGet:
		if !f.exists {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{
				"points_count": f.count,
				"config": map[string]any{
					"params": map[string]any{
						"vectors": map[string]any{"size": f.dimension},
					},
				},
			},
		})

	case r.Method == http.MethodPut:
		var req struct {
			Vectors struct {
				Size int `json:"size"`
			} `json:"vectors"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.exists = true
		f.dimension = req.Vectors.Size
		f.points = map[uint64]map[string]any{}
		f.count = 0
		f.creates++
		_, _ = w.Write([]byte(`{"result":true}`))

	case r.Method == http.MethodDelete:
		f.exists = false
		f.deletes++
		_, _ = w.Write([]byte(`{"result":true}`))

	default:
		w.WriteHeader(http.StatusBadRequest)
	}
}

type fakeEmbedder struct {
	dim  int
	fail bool
}

func (e *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.fail {
		return nil, errors.New("embedding backend down")
	}
	return make([]float32, e.dim), nil
}

func fastPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 2, Delay: time.Millisecond, RateLimitDelay: time.Millisecond}
}

func newTestStore(t *testing.T, url string, embedder Embedder) *Store {
	t.Helper()
	return New(url, "test_collection", embedder, WithRetryPolicy(fastPolicy()))
}

func writeDimensionConfig(t *testing.T, baseDir string, dimension int) {
	t.Helper()
	dir := filepath.Join(baseDir, collector.IndexDirName)
	require.NoError(t, os.MkdirAll(dir, 0755))
	data := []byte(fmt.Sprintf(`{"dimension": %d}`, dimension))
	require.NoError(t, os.WriteFile(filepath.Join(dir, configFileName), data, 0644))
}

func readDimensionConfig(t *testing.T, baseDir string) int {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(baseDir, collector.IndexDirName, configFileName))
	require.NoError(t, err)
	var cfg collectionConfig
	require.NoError(t, json.Unmarshal(data, &cfg))
	return cfg.Dimension
}

func TestStore_Connect(t *testing.T) {
	ctx := context.Background()

	t.Run("persisted dimension wins over probe", func(t *testing.T) {
		_, server := newFakeQdrant()
		defer server.Close()

		baseDir := t.TempDir()
		writeDimensionConfig(t, baseDir, 42)

		s := newTestStore(t, server.URL, &fakeEmbedder{dim: 8})
		require.NoError(t, s.Connect(ctx, baseDir))
		assert.Equal(t, 42, s.Dimension())
	})

	t.Run("probe embedding measures dimension", func(t *testing.T) {
		_, server := newFakeQdrant()
		defer server.Close()

		baseDir := t.TempDir()
		s := newTestStore(t, server.URL, &fakeEmbedder{dim: 16})
		require.NoError(t, s.Connect(ctx, baseDir))

		assert.Equal(t, 16, s.Dimension())
		assert.Equal(t, 16, readDimensionConfig(t, baseDir))
	})

	t.Run("default when probe fails", func(t *testing.T) {
		_, server := newFakeQdrant()
		defer server.Close()

		s := newTestStore(t, server.URL, &fakeEmbedder{fail: true})
		require.NoError(t, s.Connect(ctx, t.TempDir()))
		assert.Equal(t, DefaultDimension, s.Dimension())
	})

	t.Run("missing collection is not an error", func(t *testing.T) {
		_, server := newFakeQdrant()
		defer server.Close()

		s := newTestStore(t, server.URL, &fakeEmbedder{dim: 8})
		assert.NoError(t, s.Connect(ctx, t.TempDir()))
	})
}

func TestStore_EnsureCollection(t *testing.T) {
	ctx := context.Background()

	t.Run("creates when absent", func(t *testing.T) {
		fake, server := newFakeQdrant()
		defer server.Close()

		s := newTestStore(t, server.URL, &fakeEmbedder{dim: 8})
		require.NoError(t, s.Connect(ctx, t.TempDir()))
		require.NoError(t, s.EnsureCollection(ctx, 8))

		assert.Equal(t, 1, fake.creates)
		assert.Equal(t, 8, fake.dimension)
	})

	t.Run("matching dimension is a no-op", func(t *testing.T) {
		fake, server := newFakeQdrant()
		defer server.Close()
		fake.exists = true
		fake.dimension = 8

		s := newTestStore(t, server.URL, &fakeEmbedder{dim: 8})
		require.NoError(t, s.Connect(ctx, t.TempDir()))
		require.NoError(t, s.EnsureCollection(ctx, 8))

		assert.Zero(t, fake.creates)
		assert.Zero(t, fake.deletes)
	})

	t.Run("dimension change recreates and reports data loss", func(t *testing.T) {
		fake, server := newFakeQdrant()
		defer server.Close()
		fake.exists = true
		fake.dimension = 8
		fake.count = 5

		baseDir := t.TempDir()
		s := newTestStore(t, server.URL, &fakeEmbedder{dim: 8})

		var gotOld, gotNew int
		var gotLost uint64
		s.OnDataLoss = func(oldDim, newDim int, lost uint64) {
			gotOld, gotNew, gotLost = oldDim, newDim, lost
		}

		require.NoError(t, s.Connect(ctx, baseDir))
		require.NoError(t, s.EnsureCollection(ctx, 16))

		assert.Equal(t, 1, fake.deletes)
		assert.Equal(t, 1, fake.creates)
		assert.Equal(t, 16, fake.dimension)
		assert.Equal(t, 8, gotOld)
		assert.Equal(t, 16, gotNew)
		assert.Equal(t, uint64(5), gotLost)
		assert.Equal(t, 16, readDimensionConfig(t, baseDir))
		assert.Equal(t, 16, s.Dimension())
	})
}

func testDocument() *types.Document {
	return &types.Document{
		ID:        "src/auth.py",
		FilePath:  "src/auth.py",
		FileName:  "auth.py",
		Language:  "Python",
		Extension: ".py",
		Content:   "def login(): pass",
		Summary:   "Handles user login.",
		Metadata:  types.StructuralMetadata{Functions: "login"},
	}
}

func TestStore_Upsert(t *testing.T) {
	ctx := context.Background()

	t.Run("writes point keyed by document hash", func(t *testing.T) {
		fake, server := newFakeQdrant()
		defer server.Close()

		s := newTestStore(t, server.URL, &fakeEmbedder{dim: 4})
		require.NoError(t, s.Connect(ctx, t.TempDir()))
		require.NoError(t, s.EnsureCollection(ctx, 4))

		doc := testDocument()
		require.NoError(t, s.Upsert(ctx, doc, make([]float32, 4)))

		payload, ok := fake.points[PointID(doc.ID)]
		require.True(t, ok)
		assert.Equal(t, "src/auth.py", payload["filePath"])
		assert.Equal(t, "Handles user login.", payload["summary"])
		assert.Equal(t, "Python", payload["language"])
		assert.Equal(t, "login", payload["functions"])
	})

	t.Run("dimension mismatch recreates collection once", func(t *testing.T) {
		fake, server := newFakeQdrant()
		defer server.Close()

		baseDir := t.TempDir()
		s := newTestStore(t, server.URL, &fakeEmbedder{dim: 4})
		require.NoError(t, s.Connect(ctx, baseDir))
		require.NoError(t, s.EnsureCollection(ctx, 4))
		createsBefore := fake.creates

		// Provider switched: vectors are suddenly 8-wide.
		require.NoError(t, s.Upsert(ctx, testDocument(), make([]float32, 8)))
		require.NoError(t, s.Upsert(ctx, testDocument(), make([]float32, 8)))

		assert.Equal(t, createsBefore+1, fake.creates)
		assert.Equal(t, 8, fake.dimension)
		assert.Equal(t, 8, s.Dimension())
		assert.Equal(t, 8, readDimensionConfig(t, baseDir))
	})

	t.Run("exhausted retries do not fail the batch", func(t *testing.T) {
		fake, server := newFakeQdrant()
		defer server.Close()

		s := newTestStore(t, server.URL, &fakeEmbedder{dim: 4})
		require.NoError(t, s.Connect(ctx, t.TempDir()))
		require.NoError(t, s.EnsureCollection(ctx, 4))

		fake.upsertFails = 10
		assert.NoError(t, s.Upsert(ctx, testDocument(), make([]float32, 4)))
	})
}

func TestStore_Search(t *testing.T) {
	ctx := context.Background()

	connected := func(t *testing.T, fake *fakeQdrant, url string, embedDim int) *Store {
		t.Helper()
		fake.exists = true
		fake.dimension = embedDim
		s := newTestStore(t, url, &fakeEmbedder{dim: embedDim})
		require.NoError(t, s.Connect(ctx, t.TempDir()))
		return s
	}

	t.Run("threshold enforced even when server ignores it", func(t *testing.T) {
		fake, server := newFakeQdrant()
		defer server.Close()

		fake.hits = []map[string]any{
			{"id": 1, "score": 0.2, "payload": map[string]any{"filePath": "low.go"}},
			{"id": 2, "score": 0.9, "payload": map[string]any{"filePath": "high.go"}},
			{"id": 3, "score": 0.55, "payload": map[string]any{"filePath": "mid.go"}},
		}

		s := connected(t, fake, server.URL, 4)
		results, err := s.Search(ctx, "auth", 10, nil, 0.5)
		require.NoError(t, err)

		require.Len(t, results, 2)
		assert.Equal(t, "high.go", results[0].FilePath)
		assert.Equal(t, "mid.go", results[1].FilePath)
		for _, r := range results {
			assert.GreaterOrEqual(t, r.Similarity, 0.5)
		}
	})

	t.Run("payload fields mapped onto result", func(t *testing.T) {
		fake, server := newFakeQdrant()
		defer server.Close()

		fake.hits = []map[string]any{{
			"id":    7,
			"score": 0.8,
			"payload": map[string]any{
				"filePath":  "src/auth.py",
				"summary":   "Login handling.",
				"content":   "def login(): pass",
				"language":  "Python",
				"functions": "login",
				"metadata":  map[string]any{"id": "src/auth.py"},
			},
		}}

		s := connected(t, fake, server.URL, 4)
		results, err := s.Search(ctx, "login", 5, nil, 0.5)
		require.NoError(t, err)
		require.Len(t, results, 1)

		r := results[0]
		assert.Equal(t, "src/auth.py", r.ID)
		assert.Equal(t, "src/auth.py", r.FilePath)
		assert.Equal(t, "Login handling.", r.Summary)
		assert.Equal(t, "def login(): pass", r.Content)
		assert.Equal(t, "Python", r.Metadata["language"])
		assert.Equal(t, "login", r.Metadata["functions"])
	})

	t.Run("query dimension mismatch yields empty", func(t *testing.T) {
		fake, server := newFakeQdrant()
		defer server.Close()
		fake.exists = true
		fake.dimension = 99

		baseDir := t.TempDir()
		writeDimensionConfig(t, baseDir, 99)
		s := newTestStore(t, server.URL, &fakeEmbedder{dim: 4})
		require.NoError(t, s.Connect(ctx, baseDir))

		results, err := s.Search(ctx, "anything", 5, nil, 0.5)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("missing collection yields empty", func(t *testing.T) {
		_, server := newFakeQdrant()
		defer server.Close()

		s := newTestStore(t, server.URL, &fakeEmbedder{dim: 4})
		require.NoError(t, s.Connect(ctx, t.TempDir()))

		results, err := s.Search(ctx, "anything", 5, nil, 0.5)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("unreachable store surfaces an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		server.Close()

		baseDir := t.TempDir()
		writeDimensionConfig(t, baseDir, 4)
		s := newTestStore(t, server.URL, &fakeEmbedder{dim: 4})
		s.setExists(true)
		s.mu.Lock()
		s.dimension = 4
		s.mu.Unlock()

		_, err := s.Search(ctx, "anything", 5, nil, 0.5)
		assert.Error(t, err)
	})
}

func TestStore_DocumentCount(t *testing.T) {
	ctx := context.Background()

	t.Run("live count from collection", func(t *testing.T) {
		fake, server := newFakeQdrant()
		defer server.Close()
		fake.exists = true
		fake.dimension = 4
		fake.count = 7

		s := newTestStore(t, server.URL, &fakeEmbedder{dim: 4})
		assert.Equal(t, uint64(7), s.DocumentCount(ctx))
	})

	t.Run("zero when collection missing", func(t *testing.T) {
		_, server := newFakeQdrant()
		defer server.Close()

		s := newTestStore(t, server.URL, &fakeEmbedder{dim: 4})
		assert.Zero(t, s.DocumentCount(ctx))
	})
}

func TestStore_Health(t *testing.T) {
	t.Run("reachable", func(t *testing.T) {
		_, server := newFakeQdrant()
		defer server.Close()

		s := newTestStore(t, server.URL, &fakeEmbedder{dim: 4})
		assert.True(t, s.Health(context.Background()))
	})

	t.Run("unreachable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		server.Close()

		s := newTestStore(t, server.URL, &fakeEmbedder{dim: 4})
		assert.False(t, s.Health(context.Background()))
	})
}

func TestPointID(t *testing.T) {
	assert.Equal(t, PointID("a/b.go"), PointID("a/b.go"))
	assert.NotEqual(t, PointID("a/b.go"), PointID("a/c.go"))
}
