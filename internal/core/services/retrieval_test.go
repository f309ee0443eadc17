package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salesmind/ragcore/internal/core/domain"
	"github.com/salesmind/ragcore/internal/core/ports/driven"
)

type fakeIndex struct {
	searchFn   func(tenantID string, query []float32, opts driven.VectorSearchOptions) ([]driven.VectorHit, error)
	lastOpts   driven.VectorSearchOptions
	lastTenant string

	indexed  []string
	indexFn  func(tenantID string, doc *domain.Document, chunks []domain.Chunk) error
	deleted  []string
	deleteFn func(tenantID, documentID string) error
}

func (f *fakeIndex) Index(_ context.Context, tenantID string, doc *domain.Document, chunks []domain.Chunk) error {
	if f.indexFn != nil {
		return f.indexFn(tenantID, doc, chunks)
	}
	f.indexed = append(f.indexed, tenantID+"/"+doc.ID)
	return nil
}

func (f *fakeIndex) Search(_ context.Context, tenantID string, query []float32, opts driven.VectorSearchOptions) ([]driven.VectorHit, error) {
	f.lastTenant = tenantID
	f.lastOpts = opts
	if f.searchFn != nil {
		return f.searchFn(tenantID, query, opts)
	}
	return nil, nil
}

func (f *fakeIndex) DeleteDocument(_ context.Context, tenantID, documentID string) error {
	if f.deleteFn != nil {
		return f.deleteFn(tenantID, documentID)
	}
	f.deleted = append(f.deleted, tenantID+"/"+documentID)
	return nil
}

func (f *fakeIndex) DeleteChunks(context.Context, string, []string) error { return nil }

func (f *fakeIndex) Close() error { return nil }

// fakeStore is a map-backed DocumentStore for service tests.
type fakeStore struct {
	mu           sync.Mutex
	docs         map[string]*domain.Document // tenantID/docID
	chunks       map[string]*domain.Chunk    // chunkID
	accessCounts map[string]int              // tenantID/docID

	failGetChunk    error
	failGetDocument error
	failSaveDoc     error
	failSaveChunks  error
	failIncrement   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		docs:         make(map[string]*domain.Document),
		chunks:       make(map[string]*domain.Chunk),
		accessCounts: make(map[string]int),
	}
}

func (s *fakeStore) addDocument(doc domain.Document, chunks ...domain.Chunk) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := doc
	s.docs[doc.TenantID+"/"+doc.ID] = &d
	for i := range chunks {
		c := chunks[i]
		s.chunks[c.ID] = &c
	}
}

func (s *fakeStore) SaveDocument(_ context.Context, doc *domain.Document) error {
	if s.failSaveDoc != nil {
		return s.failSaveDoc
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	// Same ownership rule as the real stores: an id in use by another
	// tenant is rejected, never reassigned.
	for _, existing := range s.docs {
		if existing.ID == doc.ID && existing.TenantID != doc.TenantID {
			return fmt.Errorf("%w: document id %s already in use", domain.ErrValidation, doc.ID)
		}
	}
	d := *doc
	s.docs[doc.TenantID+"/"+doc.ID] = &d
	return nil
}

func (s *fakeStore) GetDocument(_ context.Context, tenantID, id string) (*domain.Document, error) {
	if s.failGetDocument != nil {
		return nil, s.failGetDocument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[tenantID+"/"+id]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	d := *doc
	return &d, nil
}

func (s *fakeStore) ListDocuments(_ context.Context, tenantID string) ([]domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Document
	for _, doc := range s.docs {
		if doc.TenantID == tenantID {
			out = append(out, *doc)
		}
	}
	return out, nil
}

func (s *fakeStore) DeleteDocument(_ context.Context, tenantID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := tenantID + "/" + id
	if _, ok := s.docs[key]; !ok {
		return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	delete(s.docs, key)
	for cid, c := range s.chunks {
		if c.DocumentID == id {
			delete(s.chunks, cid)
		}
	}
	return nil
}

func (s *fakeStore) SaveChunks(_ context.Context, chunks []domain.Chunk) error {
	if s.failSaveChunks != nil {
		return s.failSaveChunks
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range chunks {
		c := chunks[i]
		s.chunks[c.ID] = &c
	}
	return nil
}

func (s *fakeStore) GetChunks(_ context.Context, tenantID, documentID string) ([]domain.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[tenantID+"/"+documentID]; !ok {
		return nil, fmt.Errorf("document %s: %w", documentID, domain.ErrNotFound)
	}
	var out []domain.Chunk
	for _, c := range s.chunks {
		if c.DocumentID == documentID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *fakeStore) GetChunk(_ context.Context, tenantID, id string) (*domain.Chunk, error) {
	if s.failGetChunk != nil {
		return nil, s.failGetChunk
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	chunk, ok := s.chunks[id]
	if !ok {
		return nil, fmt.Errorf("chunk %s: %w", id, domain.ErrNotFound)
	}
	if _, ok := s.docs[tenantID+"/"+chunk.DocumentID]; !ok {
		return nil, fmt.Errorf("chunk %s: %w", id, domain.ErrNotFound)
	}
	c := *chunk
	return &c, nil
}

func (s *fakeStore) IncrementAccessCount(_ context.Context, tenantID, documentID string) error {
	if s.failIncrement != nil {
		return s.failIncrement
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessCounts[tenantID+"/"+documentID]++
	return nil
}

func testDocument(tenantID, id string) domain.Document {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return domain.Document{
		ID:        id,
		TenantID:  tenantID,
		Title:     "Doc " + id,
		Content:   "content of " + id,
		Type:      domain.DocTypeKnowledgeBase,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func testChunk(id, documentID, content string) domain.Chunk {
	return domain.Chunk{ID: id, DocumentID: documentID, Content: content}
}

func newTestRetriever(index *fakeIndex, store *fakeStore) *Retriever {
	provider := &mockEmbeddingProvider{dims: 4}
	return NewRetriever(fastEmbedder(provider), index, store)
}

func TestRetrieveRejectsEmptyQuery(t *testing.T) {
	r := newTestRetriever(&fakeIndex{}, newFakeStore())

	_, err := r.Retrieve(context.Background(), "acme", "   ", nil, 10, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)

	stage, ok := domain.FailedStage(err)
	require.True(t, ok)
	assert.Equal(t, domain.StageRetrieve, stage)
}

func TestRetrieveRejectsMissingTenant(t *testing.T) {
	r := newTestRetriever(&fakeIndex{}, newFakeStore())

	_, err := r.Retrieve(context.Background(), "", "pricing", nil, 10, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestRetrieveHydratesAndOrdersByScore(t *testing.T) {
	store := newFakeStore()
	store.addDocument(testDocument("acme", "d1"), testChunk("c1", "d1", "enterprise pricing tiers"))
	store.addDocument(testDocument("acme", "d2"), testChunk("c2", "d2", "onboarding checklist"))

	index := &fakeIndex{searchFn: func(string, []float32, driven.VectorSearchOptions) ([]driven.VectorHit, error) {
		return []driven.VectorHit{
			{ChunkID: "c2", DocumentID: "d2", Similarity: 0.91},
			{ChunkID: "c1", DocumentID: "d1", Similarity: 0.84},
		}, nil
	}}
	r := newTestRetriever(index, store)

	results, err := r.Retrieve(context.Background(), "acme", "pricing", nil, 10, false)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "d2", results[0].Document.ID)
	assert.Equal(t, 0.91, results[0].Score)
	assert.Equal(t, "d1", results[1].Document.ID)
	assert.Equal(t, "c1", results[1].Chunk.ID)
	assert.NotEmpty(t, results[1].Excerpt)
}

func TestRetrieveTruncatesToLimit(t *testing.T) {
	store := newFakeStore()
	var hits []driven.VectorHit
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("d%d", i)
		cid := fmt.Sprintf("c%d", i)
		store.addDocument(testDocument("acme", id), testChunk(cid, id, "text"))
		hits = append(hits, driven.VectorHit{ChunkID: cid, DocumentID: id, Similarity: 0.9 - float64(i)*0.01})
	}
	index := &fakeIndex{searchFn: func(string, []float32, driven.VectorSearchOptions) ([]driven.VectorHit, error) {
		return hits, nil
	}}
	r := newTestRetriever(index, store)

	results, err := r.Retrieve(context.Background(), "acme", "query", nil, 2, false)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestRetrieveSkipsVanishedChunks(t *testing.T) {
	store := newFakeStore()
	store.addDocument(testDocument("acme", "d1"), testChunk("c1", "d1", "kept"))

	index := &fakeIndex{searchFn: func(string, []float32, driven.VectorSearchOptions) ([]driven.VectorHit, error) {
		return []driven.VectorHit{
			{ChunkID: "gone", DocumentID: "dx", Similarity: 0.95},
			{ChunkID: "c1", DocumentID: "d1", Similarity: 0.80},
		}, nil
	}}
	r := newTestRetriever(index, store)

	results, err := r.Retrieve(context.Background(), "acme", "query", nil, 10, false)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c1", results[0].Chunk.ID)
}

func TestRetrieveFailsOnStoreError(t *testing.T) {
	store := newFakeStore()
	store.failGetChunk = errors.New("store offline")

	index := &fakeIndex{searchFn: func(string, []float32, driven.VectorSearchOptions) ([]driven.VectorHit, error) {
		return []driven.VectorHit{{ChunkID: "c1", DocumentID: "d1", Similarity: 0.9}}, nil
	}}
	r := newTestRetriever(index, store)

	results, err := r.Retrieve(context.Background(), "acme", "query", nil, 10, false)
	require.Error(t, err)
	assert.Nil(t, results)

	stage, ok := domain.FailedStage(err)
	require.True(t, ok)
	assert.Equal(t, domain.StageRetrieve, stage)
}

func TestRetrievePassesSalesProductFilters(t *testing.T) {
	index := &fakeIndex{}
	r := newTestRetriever(index, newFakeStore())

	sales := &domain.SalesContext{ProductIDs: []string{"sku-1", "sku-2"}, DealStage: "negotiation"}
	_, err := r.Retrieve(context.Background(), "acme", "query", sales, 10, false)
	require.NoError(t, err)

	assert.Equal(t, "acme", index.lastTenant)
	assert.Equal(t, []string{"sku-1", "sku-2"}, index.lastOpts.Filters.ProductIDs)
	assert.Empty(t, index.lastOpts.Filters.Types)
}

func TestRetrieveRerankBoostsDomainMatches(t *testing.T) {
	store := newFakeStore()

	matched := testDocument("acme", "match")
	matched.Sales = domain.SalesMetadata{
		ProductIDs:  []string{"sku-1"},
		SalesStages: []string{"negotiation"},
		AccessCount: 25,
	}
	plain := testDocument("acme", "plain")

	store.addDocument(matched, testChunk("cm", "match", "discount ladder"))
	store.addDocument(plain, testChunk("cp", "plain", "release notes"))

	index := &fakeIndex{searchFn: func(string, []float32, driven.VectorSearchOptions) ([]driven.VectorHit, error) {
		return []driven.VectorHit{
			{ChunkID: "cp", DocumentID: "plain", Similarity: 0.75},
			{ChunkID: "cm", DocumentID: "match", Similarity: 0.60},
		}, nil
	}}
	r := newTestRetriever(index, store)

	sales := &domain.SalesContext{
		ProductIDs: []string{"sku-1"},
		DealStage:  "Negotiation",
		Urgency:    "critical",
	}
	results, err := r.Retrieve(context.Background(), "acme", "discount", sales, 10, true)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// match: products 0.3 + stage 0.2 + urgency 0.1 + usage 0.2 = 0.8,
	// rank = (0.60+0.8)/2 = 0.70; plain: urgency only, rank = 0.425.
	assert.Equal(t, "match", results[0].Document.ID)
	require.NotNil(t, results[0].DomainScore)
	assert.InDelta(t, 0.8, *results[0].DomainScore, 1e-9)
	require.NotNil(t, results[1].DomainScore)
	assert.InDelta(t, 0.1, *results[1].DomainScore, 1e-9)
}

func TestRetrieveWithoutRerankLeavesDomainScoreNil(t *testing.T) {
	store := newFakeStore()
	store.addDocument(testDocument("acme", "d1"), testChunk("c1", "d1", "text"))

	index := &fakeIndex{searchFn: func(string, []float32, driven.VectorSearchOptions) ([]driven.VectorHit, error) {
		return []driven.VectorHit{{ChunkID: "c1", DocumentID: "d1", Similarity: 0.9}}, nil
	}}
	r := newTestRetriever(index, store)

	sales := &domain.SalesContext{ProductIDs: []string{"sku-1"}}
	results, err := r.Retrieve(context.Background(), "acme", "query", sales, 10, false)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Nil(t, results[0].DomainScore)
}

func TestRetrieveTiesBrokenByRecency(t *testing.T) {
	store := newFakeStore()

	older := testDocument("acme", "older")
	newer := testDocument("acme", "newer")
	newer.UpdatedAt = newer.UpdatedAt.Add(48 * time.Hour)

	store.addDocument(older, testChunk("co", "older", "text"))
	store.addDocument(newer, testChunk("cn", "newer", "text"))

	index := &fakeIndex{searchFn: func(string, []float32, driven.VectorSearchOptions) ([]driven.VectorHit, error) {
		return []driven.VectorHit{
			{ChunkID: "co", DocumentID: "older", Similarity: 0.8},
			{ChunkID: "cn", DocumentID: "newer", Similarity: 0.8},
		}, nil
	}}
	r := newTestRetriever(index, store)

	results, err := r.Retrieve(context.Background(), "acme", "query", nil, 10, false)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "newer", results[0].Document.ID)
}

func TestRetrieveBumpsAccessCountOncePerDocument(t *testing.T) {
	store := newFakeStore()
	doc := testDocument("acme", "d1")
	store.addDocument(doc,
		testChunk("c1", "d1", "first"),
		testChunk("c2", "d1", "second"))

	index := &fakeIndex{searchFn: func(string, []float32, driven.VectorSearchOptions) ([]driven.VectorHit, error) {
		return []driven.VectorHit{
			{ChunkID: "c1", DocumentID: "d1", Similarity: 0.9},
			{ChunkID: "c2", DocumentID: "d1", Similarity: 0.8},
		}, nil
	}}
	r := newTestRetriever(index, store)

	_, err := r.Retrieve(context.Background(), "acme", "query", nil, 10, false)
	require.NoError(t, err)
	assert.Equal(t, 1, store.accessCounts["acme/d1"])
}

func TestRetrieveSurvivesAccessCountFailure(t *testing.T) {
	store := newFakeStore()
	store.addDocument(testDocument("acme", "d1"), testChunk("c1", "d1", "text"))
	store.failIncrement = errors.New("counter table locked")

	index := &fakeIndex{searchFn: func(string, []float32, driven.VectorSearchOptions) ([]driven.VectorHit, error) {
		return []driven.VectorHit{{ChunkID: "c1", DocumentID: "d1", Similarity: 0.9}}, nil
	}}
	r := newTestRetriever(index, store)

	results, err := r.Retrieve(context.Background(), "acme", "query", nil, 10, false)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestRetrieveIndexFailurePropagates(t *testing.T) {
	index := &fakeIndex{searchFn: func(string, []float32, driven.VectorSearchOptions) ([]driven.VectorHit, error) {
		return nil, fmt.Errorf("segment corrupted: %w", domain.ErrIndexFailure)
	}}
	r := newTestRetriever(index, newFakeStore())

	_, err := r.Retrieve(context.Background(), "acme", "query", nil, 10, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrIndexFailure)
}
