// Package memory provides in-memory store implementations for tests
// and ephemeral pipelines.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/salesmind/ragcore/internal/core/domain"
	"github.com/salesmind/ragcore/internal/core/ports/driven"
)

// DocumentStore is an in-memory implementation of driven.DocumentStore.
type DocumentStore struct {
	mu     sync.RWMutex
	docs   map[string]*domain.Document // keyed by document id
	chunks map[string]*domain.Chunk    // keyed by chunk id
}

var _ driven.DocumentStore = (*DocumentStore)(nil)

// NewDocumentStore creates an empty in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		docs:   make(map[string]*domain.Document),
		chunks: make(map[string]*domain.Chunk),
	}
}

// SaveDocument stores or updates a document. An id already owned by
// another tenant is rejected, never reassigned.
func (s *DocumentStore) SaveDocument(_ context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.docs[doc.ID]; ok && existing.TenantID != doc.TenantID {
		return fmt.Errorf("%w: document id %s already in use", domain.ErrValidation, doc.ID)
	}
	copied := *doc
	s.docs[doc.ID] = &copied
	return nil
}

// GetDocument retrieves a document by ID within the tenant.
func (s *DocumentStore) GetDocument(_ context.Context, tenantID, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok || doc.TenantID != tenantID {
		return nil, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	copied := *doc
	return &copied, nil
}

// ListDocuments returns all documents for a tenant, oldest first.
func (s *DocumentStore) ListDocuments(_ context.Context, tenantID string) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var docs []domain.Document
	for _, doc := range s.docs {
		if doc.TenantID == tenantID {
			docs = append(docs, *doc)
		}
	}
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].CreatedAt.Before(docs[j].CreatedAt)
	})
	return docs, nil
}

// DeleteDocument removes a document and its chunks within the tenant.
func (s *DocumentStore) DeleteDocument(_ context.Context, tenantID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok || doc.TenantID != tenantID {
		return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	delete(s.docs, id)
	for chunkID, chunk := range s.chunks {
		if chunk.DocumentID == id {
			delete(s.chunks, chunkID)
		}
	}
	return nil
}

// SaveChunks stores chunks for a document.
func (s *DocumentStore) SaveChunks(_ context.Context, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range chunks {
		copied := chunks[i]
		s.chunks[copied.ID] = &copied
	}
	return nil
}

// GetChunks retrieves all chunks for a document within the tenant,
// ordered by position.
func (s *DocumentStore) GetChunks(_ context.Context, tenantID, documentID string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[documentID]
	if !ok || doc.TenantID != tenantID {
		return nil, fmt.Errorf("document %s: %w", documentID, domain.ErrNotFound)
	}

	var chunks []domain.Chunk
	for _, chunk := range s.chunks {
		if chunk.DocumentID == documentID {
			chunks = append(chunks, *chunk)
		}
	}
	sort.Slice(chunks, func(i, j int) bool {
		return chunks[i].Position < chunks[j].Position
	})
	return chunks, nil
}

// GetChunk retrieves a specific chunk by ID within the tenant.
func (s *DocumentStore) GetChunk(_ context.Context, tenantID, id string) (*domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chunk, ok := s.chunks[id]
	if !ok {
		return nil, fmt.Errorf("chunk %s: %w", id, domain.ErrNotFound)
	}
	doc, ok := s.docs[chunk.DocumentID]
	if !ok || doc.TenantID != tenantID {
		return nil, fmt.Errorf("chunk %s: %w", id, domain.ErrNotFound)
	}
	copied := *chunk
	return &copied, nil
}

// IncrementAccessCount bumps the usage counter on a document.
func (s *DocumentStore) IncrementAccessCount(_ context.Context, tenantID, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[documentID]
	if !ok || doc.TenantID != tenantID {
		return fmt.Errorf("document %s: %w", documentID, domain.ErrNotFound)
	}
	doc.Sales.AccessCount++
	return nil
}
