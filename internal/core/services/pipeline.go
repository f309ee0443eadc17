package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/salesmind/ragcore/internal/chunker"
	"github.com/salesmind/ragcore/internal/core/domain"
	"github.com/salesmind/ragcore/internal/core/ports/driven"
	"github.com/salesmind/ragcore/internal/core/ports/driving"
	"github.com/salesmind/ragcore/internal/logger"
)

// PipelineService sequences chunking, embedding and indexing for
// ingestion, and retrieval plus generation for querying. It owns the
// document lifecycle flags and enforces at-most-one in-flight ingestion
// per document id.
type PipelineService struct {
	embedder  *BatchEmbedder
	retriever *Retriever
	generator *Generator
	index     driven.VectorIndex
	docStore  driven.DocumentStore

	// Optional collaborators.
	blobs     driven.BlobStore
	extractor driven.TextExtractor

	mu       sync.Mutex
	inFlight map[string]struct{}
}

var _ driving.Pipeline = (*PipelineService)(nil)

// PipelineOption configures a PipelineService.
type PipelineOption func(*PipelineService)

// WithBlobStore enables archiving of original files.
func WithBlobStore(blobs driven.BlobStore) PipelineOption {
	return func(p *PipelineService) {
		p.blobs = blobs
	}
}

// WithExtractor enables ingestion of raw files without pre-extracted text.
func WithExtractor(extractor driven.TextExtractor) PipelineOption {
	return func(p *PipelineService) {
		p.extractor = extractor
	}
}

// NewPipeline wires a pipeline from its collaborators.
func NewPipeline(
	embedder *BatchEmbedder,
	retriever *Retriever,
	generator *Generator,
	index driven.VectorIndex,
	docStore driven.DocumentStore,
	opts ...PipelineOption,
) *PipelineService {
	p := &PipelineService{
		embedder:  embedder,
		retriever: retriever,
		generator: generator,
		index:     index,
		docStore:  docStore,
		inFlight:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ingest runs extract -> chunk -> embed -> store -> index for one
// document. The document is only marked indexed after the index write
// succeeds; a failure or cancellation partway leaves it stored with
// Indexed=false, ready for re-ingestion.
func (p *PipelineService) Ingest(ctx context.Context, req driving.IngestRequest) (*domain.Document, error) {
	logger.Section("Ingestion")

	if req.TenantID == "" {
		return nil, fmt.Errorf("%w: tenant id is required", domain.ErrValidation)
	}
	if req.Text == "" && len(req.Raw) == 0 {
		return nil, fmt.Errorf("%w: either text or raw content is required", domain.ErrValidation)
	}

	docID := req.DocumentID
	if docID == "" {
		docID = uuid.NewString()
	}

	if !p.acquire(req.TenantID, docID) {
		return nil, fmt.Errorf("document %s: %w", docID, domain.ErrIngestInProgress)
	}
	defer p.release(req.TenantID, docID)

	logger.Info("Ingesting document %s (tenant=%s)", docID, req.TenantID)

	text := req.Text
	if text == "" {
		extracted, err := p.extract(ctx, req.Raw, req.ContentType)
		if err != nil {
			return nil, domain.NewStageError(domain.StageExtract, err)
		}
		text = extracted
	}

	if strings.TrimSpace(text) == "" {
		return nil, domain.NewStageError(domain.StageChunk, domain.ErrNoContent)
	}

	chunks, err := p.chunk(docID, text, req)
	if err != nil {
		return nil, domain.NewStageError(domain.StageChunk, err)
	}
	if len(chunks) == 0 {
		return nil, domain.NewStageError(domain.StageChunk, domain.ErrNoContent)
	}
	logger.Info("Chunked into %d chunks (strategy=%s)", len(chunks), req.Strategy)

	if err := p.embedder.EmbedChunks(ctx, chunks); err != nil {
		return nil, domain.NewStageError(domain.StageEmbed, err)
	}

	now := time.Now().UTC()
	docType := req.Type
	if docType == "" {
		docType = domain.DocTypeOther
	}
	doc := &domain.Document{
		ID:         docID,
		TenantID:   req.TenantID,
		Title:      req.Title,
		Content:    text,
		Type:       docType,
		Category:   req.Category,
		Provenance: req.Provenance,
		Sales:      req.Sales,
		Extracted:  true,
		Embedded:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := p.docStore.SaveDocument(ctx, doc); err != nil {
		return nil, domain.NewStageError(domain.StageStore, fmt.Errorf("save document: %w", err))
	}
	if err := p.docStore.SaveChunks(ctx, chunks); err != nil {
		return nil, domain.NewStageError(domain.StageStore, fmt.Errorf("save chunks: %w", err))
	}

	if err := p.index.Index(ctx, req.TenantID, doc, chunks); err != nil {
		return nil, domain.NewStageError(domain.StageIndex, err)
	}

	doc.Indexed = true
	doc.UpdatedAt = time.Now().UTC()
	if err := p.docStore.SaveDocument(ctx, doc); err != nil {
		return nil, domain.NewStageError(domain.StageStore, fmt.Errorf("mark indexed: %w", err))
	}

	p.archiveOriginal(ctx, req.TenantID, docID, req.Raw)

	logger.Info("Document %s ingested: %d chunks indexed", docID, len(chunks))
	return doc, nil
}

// Retrieve answers a semantic query without generation.
func (p *PipelineService) Retrieve(ctx context.Context, req driving.QueryRequest) ([]domain.SearchResult, error) {
	return p.retriever.Retrieve(ctx, req.TenantID, req.Query, req.Sales, req.Limit, req.Rerank)
}

// Query retrieves context then generates a grounded answer.
func (p *PipelineService) Query(ctx context.Context, req driving.QueryRequest) (*domain.Answer, error) {
	results, err := p.Retrieve(ctx, req)
	if err != nil {
		return nil, err
	}

	return p.generator.Generate(ctx, domain.GenerationContext{
		Query:   req.Query,
		Results: results,
		Sales:   req.Sales,
		Format:  req.Format,
	})
}

// Delete removes a document's vectors, rows and chunks. Index and store
// deletion are authoritative; the archived original is cleaned up
// best-effort afterwards.
func (p *PipelineService) Delete(ctx context.Context, tenantID, documentID string) error {
	if tenantID == "" || documentID == "" {
		return fmt.Errorf("%w: tenant id and document id are required", domain.ErrValidation)
	}

	logger.Info("Deleting document %s (tenant=%s)", documentID, tenantID)

	if err := p.index.DeleteDocument(ctx, tenantID, documentID); err != nil {
		return domain.NewStageError(domain.StageIndex, fmt.Errorf("delete vectors: %w", err))
	}
	if err := p.docStore.DeleteDocument(ctx, tenantID, documentID); err != nil {
		return domain.NewStageError(domain.StageStore, fmt.Errorf("delete document: %w", err))
	}

	if p.blobs != nil {
		if err := p.blobs.Delete(ctx, tenantID, documentID); err != nil {
			logger.Error("Failed to delete archived original for %s: %v", documentID, err)
		}
	}

	return nil
}

// extract runs the text extractor over the raw bytes.
func (p *PipelineService) extract(ctx context.Context, raw []byte, contentType string) (string, error) {
	if p.extractor == nil {
		return "", fmt.Errorf("%w: no extractor configured for raw content", domain.ErrValidation)
	}
	if !p.extractor.Supports(contentType) {
		return "", fmt.Errorf("%w: unsupported content type %q", domain.ErrExtractionFailed, contentType)
	}
	text, err := p.extractor.Extract(ctx, raw, contentType)
	if err != nil {
		return "", err
	}
	return text, nil
}

// chunk splits the text per the request's strategy and tuning.
func (p *PipelineService) chunk(docID, text string, req driving.IngestRequest) ([]domain.Chunk, error) {
	strategy, err := chunker.ParseStrategy(req.Strategy)
	if err != nil {
		return nil, err
	}

	var opts []chunker.Option
	if req.ChunkSize > 0 {
		opts = append(opts, chunker.WithSize(req.ChunkSize))
	}
	if req.ChunkOverlap > 0 {
		opts = append(opts, chunker.WithOverlap(req.ChunkOverlap))
	}

	return chunker.New(strategy, opts...).Chunk(docID, text), nil
}

// archiveOriginal stores the raw file when a blob store is configured.
// Best-effort: an archive failure never fails an ingestion that already
// indexed successfully.
func (p *PipelineService) archiveOriginal(ctx context.Context, tenantID, docID string, raw []byte) {
	if p.blobs == nil || len(raw) == 0 {
		return
	}
	if err := p.blobs.Put(ctx, tenantID, docID, raw); err != nil {
		logger.Warn("Failed to archive original for %s: %v", docID, err)
	}
}

func (p *PipelineService) acquire(tenantID, docID string) bool {
	key := tenantID + "/" + docID
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.inFlight[key]; busy {
		return false
	}
	p.inFlight[key] = struct{}{}
	return true
}

func (p *PipelineService) release(tenantID, docID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inFlight, tenantID+"/"+docID)
}
