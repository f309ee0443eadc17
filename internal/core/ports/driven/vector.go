package driven

import (
	"context"

	"github.com/salesmind/ragcore/internal/core/domain"
)

// VectorIndex stores chunk vectors per tenant and answers nearest-neighbour
// queries under metadata filters. Tenant isolation is enforced at this
// boundary: no operation may cross tenant namespaces.
type VectorIndex interface {
	// Index adds the chunks of one document to the tenant's namespace.
	// Every chunk must carry an embedding of the index dimension; a
	// mismatch fails with domain.ErrValidation before anything is written.
	// A search never observes a partially indexed document.
	Index(ctx context.Context, tenantID string, doc *domain.Document, chunks []domain.Chunk) error

	// Search returns the hits above opts.Threshold, best first, at most
	// opts.Limit of them, restricted to the tenant's namespace and to
	// candidates passing all opts.Filters.
	Search(ctx context.Context, tenantID string, query []float32, opts VectorSearchOptions) ([]VectorHit, error)

	// DeleteDocument removes every vector belonging to the document.
	// The tenant id guards against cross-tenant deletion by a forged id.
	DeleteDocument(ctx context.Context, tenantID, documentID string) error

	// DeleteChunks removes the given chunks from the tenant's namespace.
	DeleteChunks(ctx context.Context, tenantID string, chunkIDs []string) error

	// Close releases resources.
	Close() error
}

// VectorSearchOptions configures a similarity search.
type VectorSearchOptions struct {
	// Limit is the maximum number of hits to return.
	Limit int

	// Threshold is the minimum similarity score for a hit to be eligible.
	Threshold float64

	// Filters conjunctively narrow the candidate set before ranking.
	Filters domain.SearchFilters
}

// VectorHit is a similarity search result.
type VectorHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// DocumentID is the chunk's owning document.
	DocumentID string

	// Content is the raw text stored alongside the vector.
	Content string

	// Similarity is the cosine similarity score.
	Similarity float64
}
