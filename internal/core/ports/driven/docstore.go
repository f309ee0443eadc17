package driven

import (
	"context"

	"github.com/salesmind/ragcore/internal/core/domain"
)

// DocumentStore persists documents and chunks.
// All reads and deletes are tenant-scoped; a lookup with the wrong tenant
// id behaves exactly like a missing row.
type DocumentStore interface {
	// SaveDocument stores or updates a document.
	SaveDocument(ctx context.Context, doc *domain.Document) error

	// GetDocument retrieves a document by ID within the tenant.
	GetDocument(ctx context.Context, tenantID, id string) (*domain.Document, error)

	// ListDocuments returns all documents for a tenant.
	ListDocuments(ctx context.Context, tenantID string) ([]domain.Document, error)

	// DeleteDocument removes a document and its chunks within the tenant.
	DeleteDocument(ctx context.Context, tenantID, id string) error

	// SaveChunks stores chunks for a document.
	SaveChunks(ctx context.Context, chunks []domain.Chunk) error

	// GetChunks retrieves all chunks for a document within the tenant.
	GetChunks(ctx context.Context, tenantID, documentID string) ([]domain.Chunk, error)

	// GetChunk retrieves a specific chunk by ID within the tenant.
	GetChunk(ctx context.Context, tenantID, id string) (*domain.Chunk, error)

	// IncrementAccessCount bumps the usage counter on a document.
	IncrementAccessCount(ctx context.Context, tenantID, documentID string) error
}
