package hnsw

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salesmind/ragcore/internal/core/domain"
	"github.com/salesmind/ragcore/internal/core/ports/driven"
)

func newTestIndex(t *testing.T, dim int) *Index {
	t.Helper()
	ix, err := New(Config{Dimension: dim})
	require.NoError(t, err)
	return ix
}

func testDoc(id, tenant string) *domain.Document {
	return &domain.Document{
		ID:        id,
		TenantID:  tenant,
		Type:      domain.DocTypeKnowledgeBase,
		Category:  "general",
		CreatedAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func testChunk(id string, vec []float32) domain.Chunk {
	return domain.Chunk{ID: id, Content: "content of " + id, Embedding: vec}
}

func TestNew_RequiresDimension(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestIndex_RejectsDimensionMismatch(t *testing.T) {
	ix := newTestIndex(t, 3)
	ctx := context.Background()

	err := ix.Index(ctx, "t1", testDoc("d1", "t1"), []domain.Chunk{
		testChunk("c1", []float32{1, 0}), // 2 dims, index wants 3
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrValidation))

	// Nothing was written.
	hits, err := ix.Search(ctx, "t1", []float32{1, 0, 0}, driven.VectorSearchOptions{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearch_ReturnsNearestFirst(t *testing.T) {
	ix := newTestIndex(t, 2)
	ctx := context.Background()

	require.NoError(t, ix.Index(ctx, "t1", testDoc("d1", "t1"), []domain.Chunk{
		testChunk("near", []float32{1, 0.05}),
		testChunk("mid", []float32{1, 1}),
		testChunk("far", []float32{0, 1}),
	}))

	hits, err := ix.Search(ctx, "t1", []float32{1, 0}, driven.VectorSearchOptions{Limit: 2})
	require.NoError(t, err)

	require.Len(t, hits, 2)
	assert.Equal(t, "near", hits[0].ChunkID)
	assert.Equal(t, "mid", hits[1].ChunkID)
	assert.Greater(t, hits[0].Similarity, hits[1].Similarity)
	assert.Equal(t, "d1", hits[0].DocumentID)
	assert.Equal(t, "content of near", hits[0].Content)
}

func TestSearch_ThresholdYieldsEmptyNotError(t *testing.T) {
	ix := newTestIndex(t, 2)
	ctx := context.Background()

	// Roughly 0.7 similarity to the query below.
	require.NoError(t, ix.Index(ctx, "t1", testDoc("d1", "t1"), []domain.Chunk{
		testChunk("c1", []float32{1, 1}),
	}))

	hits, err := ix.Search(ctx, "t1", []float32{1, 0}, driven.VectorSearchOptions{
		Limit:     10,
		Threshold: 0.95,
	})

	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearch_TenantIsolation(t *testing.T) {
	ix := newTestIndex(t, 2)
	ctx := context.Background()

	// Tenant B's vector is a perfect match for the query; tenant A's is
	// not. A's search must still never see B's vector.
	require.NoError(t, ix.Index(ctx, "tenant-a", testDoc("doc-a", "tenant-a"), []domain.Chunk{
		testChunk("chunk-a", []float32{0.5, 1}),
	}))
	require.NoError(t, ix.Index(ctx, "tenant-b", testDoc("doc-b", "tenant-b"), []domain.Chunk{
		testChunk("chunk-b", []float32{1, 0}),
	}))

	hits, err := ix.Search(ctx, "tenant-a", []float32{1, 0}, driven.VectorSearchOptions{Limit: 10})
	require.NoError(t, err)

	require.Len(t, hits, 1)
	assert.Equal(t, "chunk-a", hits[0].ChunkID)
}

func TestDeleteDocument_RoundTrip(t *testing.T) {
	ix := newTestIndex(t, 2)
	ctx := context.Background()

	require.NoError(t, ix.Index(ctx, "t1", testDoc("d1", "t1"), []domain.Chunk{
		testChunk("c1", []float32{1, 0}),
		testChunk("c2", []float32{0, 1}),
	}))
	require.NoError(t, ix.DeleteDocument(ctx, "t1", "d1"))

	for _, query := range [][]float32{{1, 0}, {0, 1}, {1, 1}} {
		hits, err := ix.Search(ctx, "t1", query, driven.VectorSearchOptions{Limit: 10})
		require.NoError(t, err)
		assert.Empty(t, hits)
	}
}

func TestDeleteDocument_WrongTenantIsNoOp(t *testing.T) {
	ix := newTestIndex(t, 2)
	ctx := context.Background()

	require.NoError(t, ix.Index(ctx, "t1", testDoc("d1", "t1"), []domain.Chunk{
		testChunk("c1", []float32{1, 0}),
	}))

	// A forged delete from another tenant must not remove t1's data.
	require.NoError(t, ix.DeleteDocument(ctx, "t2", "d1"))

	hits, err := ix.Search(ctx, "t1", []float32{1, 0}, driven.VectorSearchOptions{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestDeleteChunks(t *testing.T) {
	ix := newTestIndex(t, 2)
	ctx := context.Background()

	require.NoError(t, ix.Index(ctx, "t1", testDoc("d1", "t1"), []domain.Chunk{
		testChunk("c1", []float32{1, 0}),
		testChunk("c2", []float32{0, 1}),
	}))
	require.NoError(t, ix.DeleteChunks(ctx, "t1", []string{"c1"}))

	hits, err := ix.Search(ctx, "t1", []float32{1, 0}, driven.VectorSearchOptions{Limit: 10})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "c2", hits[0].ChunkID)
}

func TestReindex_ReplacesPreviousVectors(t *testing.T) {
	ix := newTestIndex(t, 2)
	ctx := context.Background()

	require.NoError(t, ix.Index(ctx, "t1", testDoc("d1", "t1"), []domain.Chunk{
		testChunk("old", []float32{1, 0}),
	}))
	require.NoError(t, ix.Index(ctx, "t1", testDoc("d1", "t1"), []domain.Chunk{
		testChunk("new", []float32{1, 0}),
	}))

	hits, err := ix.Search(ctx, "t1", []float32{1, 0}, driven.VectorSearchOptions{Limit: 10})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "new", hits[0].ChunkID)
}

func TestSearch_Filters(t *testing.T) {
	ix := newTestIndex(t, 2)
	ctx := context.Background()

	faq := testDoc("d-faq", "t1")
	faq.Type = domain.DocTypeFAQ
	faq.Category = "support"

	catalog := testDoc("d-cat", "t1")
	catalog.Type = domain.DocTypeCatalog
	catalog.Category = "pricing"
	catalog.Sales.ProductIDs = []string{"prod-1", "prod-2"}

	require.NoError(t, ix.Index(ctx, "t1", faq, []domain.Chunk{testChunk("c-faq", []float32{1, 0})}))
	require.NoError(t, ix.Index(ctx, "t1", catalog, []domain.Chunk{testChunk("c-cat", []float32{1, 0.01})}))

	t.Run("by type", func(t *testing.T) {
		hits, err := ix.Search(ctx, "t1", []float32{1, 0}, driven.VectorSearchOptions{
			Limit:   10,
			Filters: domain.SearchFilters{Types: []domain.DocumentType{domain.DocTypeFAQ}},
		})
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "c-faq", hits[0].ChunkID)
	})

	t.Run("by category", func(t *testing.T) {
		hits, err := ix.Search(ctx, "t1", []float32{1, 0}, driven.VectorSearchOptions{
			Limit:   10,
			Filters: domain.SearchFilters{Categories: []string{"pricing"}},
		})
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "c-cat", hits[0].ChunkID)
	})

	t.Run("by product overlap", func(t *testing.T) {
		hits, err := ix.Search(ctx, "t1", []float32{1, 0}, driven.VectorSearchOptions{
			Limit:   10,
			Filters: domain.SearchFilters{ProductIDs: []string{"prod-2", "prod-9"}},
		})
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "c-cat", hits[0].ChunkID)
	})

	t.Run("by date range", func(t *testing.T) {
		hits, err := ix.Search(ctx, "t1", []float32{1, 0}, driven.VectorSearchOptions{
			Limit:   10,
			Filters: domain.SearchFilters{CreatedAfter: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		})
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	t.Run("conjunctive", func(t *testing.T) {
		hits, err := ix.Search(ctx, "t1", []float32{1, 0}, driven.VectorSearchOptions{
			Limit: 10,
			Filters: domain.SearchFilters{
				Types:      []domain.DocumentType{domain.DocTypeCatalog},
				Categories: []string{"support"}, // catalog doc is "pricing"
			},
		})
		require.NoError(t, err)
		assert.Empty(t, hits)
	})
}

func TestSearch_GraphPath(t *testing.T) {
	// Force the graph path by lowering the exact-scan threshold, then
	// verify the beam search still finds the planted nearest neighbour.
	ix, err := New(Config{Dimension: 8, BruteForceThreshold: 1, Seed: 7})
	require.NoError(t, err)
	ctx := context.Background()

	rng := rand.New(rand.NewSource(11))
	doc := testDoc("d1", "t1")
	chunks := make([]domain.Chunk, 0, 200)
	for i := 0; i < 200; i++ {
		vec := make([]float32, 8)
		for j := range vec {
			vec[j] = rng.Float32()*2 - 1
		}
		chunks = append(chunks, testChunk(fmt.Sprintf("c-%d", i), vec))
	}

	target := []float32{0.9, -0.3, 0.5, 0.1, -0.7, 0.2, 0.4, -0.1}
	chunks = append(chunks, testChunk("planted", target))

	require.NoError(t, ix.Index(ctx, "t1", doc, chunks))

	hits, err := ix.Search(ctx, "t1", target, driven.VectorSearchOptions{Limit: 5})
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "planted", hits[0].ChunkID)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-5)
}

func TestSearch_UnknownTenantIsEmpty(t *testing.T) {
	ix := newTestIndex(t, 2)

	hits, err := ix.Search(context.Background(), "nobody", []float32{1, 0}, driven.VectorSearchOptions{Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearch_RejectsBadQueryVector(t *testing.T) {
	ix := newTestIndex(t, 3)

	_, err := ix.Search(context.Background(), "t1", []float32{1, 0}, driven.VectorSearchOptions{Limit: 5})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestLevelFor_ZeroSampleIsCapped(t *testing.T) {
	mult := 1 / math.Log(float64(DefaultM))

	// A uniform sample of exactly 0 must not produce an infinite level.
	assert.Equal(t, maxNodeLevel, levelFor(0, mult))
	assert.Equal(t, 0, levelFor(1, mult))

	for _, u := range []float64{1e-300, 1e-10, 0.01, 0.5, 0.999} {
		level := levelFor(u, mult)
		assert.GreaterOrEqual(t, level, 0)
		assert.LessOrEqual(t, level, maxNodeLevel)
	}
}
