package driving

import (
	"context"

	"github.com/salesmind/ragcore/internal/core/domain"
)

// IngestRequest describes one document to ingest.
type IngestRequest struct {
	// TenantID scopes the document. Required.
	TenantID string

	// DocumentID is optional; a fresh id is assigned when empty.
	DocumentID string

	// Title is the human-readable title.
	Title string

	// Text is pre-extracted plain text. When empty, Raw and ContentType
	// must be set and the extractor runs first.
	Text string

	// Raw is the original file content, archived when a blob store is
	// configured and extracted when Text is empty.
	Raw []byte

	// ContentType declares the format of Raw.
	ContentType string

	// Type, Category, Provenance and Sales carry document metadata.
	Type       domain.DocumentType
	Category   string
	Provenance domain.Provenance
	Sales      domain.SalesMetadata

	// Strategy selects the chunking strategy ("sentence", "paragraph",
	// "fixed_size", "section", "semantic"). Defaults to paragraph.
	Strategy string

	// ChunkSize and ChunkOverlap tune the chunker; zero means defaults.
	ChunkSize    int
	ChunkOverlap int
}

// QueryRequest describes one retrieve-and-generate round trip.
type QueryRequest struct {
	// TenantID scopes the search. Required.
	TenantID string

	// Query is the user question.
	Query string

	// Sales is optional business context driving filters and reranking.
	Sales *domain.SalesContext

	// Limit caps the number of retrieved chunks. Defaults to 10.
	Limit int

	// Rerank enables the secondary domain-relevance pass. It only has an
	// effect when Sales is present.
	Rerank bool

	// Format is the requested answer shape.
	Format domain.OutputFormat
}

// Pipeline is the top-level coordinator: it sequences chunking, embedding
// and indexing for ingestion, and retrieval plus generation for querying.
type Pipeline interface {
	// Ingest runs extract -> chunk -> embed -> index for one document.
	// Concurrent ingestion of the same document id fails with
	// domain.ErrIngestInProgress.
	Ingest(ctx context.Context, req IngestRequest) (*domain.Document, error)

	// Retrieve answers a semantic query with ranked results, without
	// generation.
	Retrieve(ctx context.Context, req QueryRequest) ([]domain.SearchResult, error)

	// Query retrieves context and generates a grounded answer.
	Query(ctx context.Context, req QueryRequest) (*domain.Answer, error)

	// Delete removes a document, its chunks and its vectors. The archived
	// original is cleaned up best-effort.
	Delete(ctx context.Context, tenantID, documentID string) error
}
