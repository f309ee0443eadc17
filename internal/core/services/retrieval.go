package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/salesmind/ragcore/internal/core/domain"
	"github.com/salesmind/ragcore/internal/core/ports/driven"
	"github.com/salesmind/ragcore/internal/logger"
)

// Domain relevance weights for the secondary ranking pass.
const (
	productOverlapWeight = 0.3
	stageMatchWeight     = 0.2
	segmentMatchWeight   = 0.2
	urgencyBonus         = 0.1
	usageBonus           = 0.2

	// usageBonusThreshold is the access count above which the usage
	// bonus applies.
	usageBonusThreshold = 10
)

// DefaultRetrieveLimit caps results when the caller does not.
const DefaultRetrieveLimit = 10

// excerptLength bounds the matched-text excerpt on each result.
const excerptLength = 200

// Retriever orchestrates a semantic query: query embedding, filtered
// index search, document hydration and the optional domain-relevance
// rerank. Any embedding or index failure aborts the whole retrieval;
// a partial result set is never returned.
type Retriever struct {
	embedder *BatchEmbedder
	index    driven.VectorIndex
	docStore driven.DocumentStore

	// threshold is the minimum similarity for index hits.
	threshold float64
}

// NewRetriever creates a Retriever.
func NewRetriever(embedder *BatchEmbedder, index driven.VectorIndex, docStore driven.DocumentStore) *Retriever {
	return &Retriever{
		embedder: embedder,
		index:    index,
		docStore: docStore,
	}
}

// SetThreshold sets the minimum similarity for index hits.
func (r *Retriever) SetThreshold(threshold float64) {
	r.threshold = threshold
}

// Retrieve returns the ranked results for a query, truncated to limit.
func (r *Retriever) Retrieve(
	ctx context.Context,
	tenantID, query string,
	sales *domain.SalesContext,
	limit int,
	rerank bool,
) ([]domain.SearchResult, error) {
	logger.Section("Retrieval")

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.NewStageError(domain.StageRetrieve,
			fmt.Errorf("%w: query is empty", domain.ErrValidation))
	}
	if tenantID == "" {
		return nil, domain.NewStageError(domain.StageRetrieve,
			fmt.Errorf("%w: tenant id is required", domain.ErrValidation))
	}
	if limit <= 0 {
		limit = DefaultRetrieveLimit
	}

	logger.Debug("Query: %q (tenant=%s, limit=%d, rerank=%t)", query, tenantID, limit, rerank)

	embedding, err := r.embedder.EmbedOne(ctx, query)
	if err != nil {
		return nil, domain.NewStageError(domain.StageRetrieve, fmt.Errorf("embed query: %w", err))
	}

	// Over-fetch so hydration drop-outs and reranking still fill the limit.
	hits, err := r.index.Search(ctx, tenantID, embedding, driven.VectorSearchOptions{
		Limit:     limit * 3,
		Threshold: r.threshold,
		Filters:   filtersFromSales(sales),
	})
	if err != nil {
		return nil, domain.NewStageError(domain.StageRetrieve, fmt.Errorf("index search: %w", err))
	}

	logger.Debug("Index returned %d hits", len(hits))

	results, err := r.hydrate(ctx, tenantID, query, hits)
	if err != nil {
		return nil, domain.NewStageError(domain.StageRetrieve, err)
	}

	if sales != nil && rerank {
		for i := range results {
			score := domainRelevance(&results[i].Document, sales)
			results[i].DomainScore = &score
		}
		logger.Debug("Applied domain rerank to %d results", len(results))
	}

	sortResults(results)

	if len(results) > limit {
		results = results[:limit]
	}

	r.touchDocuments(ctx, tenantID, results)

	logger.Info("Retrieval: %d results", len(results))
	return results, nil
}

// filtersFromSales derives index filters from the sales context. Only
// product ids narrow the candidate set; stage and segment feed the
// rerank pass instead, where a miss should demote rather than exclude.
func filtersFromSales(sales *domain.SalesContext) domain.SearchFilters {
	if sales == nil {
		return domain.SearchFilters{}
	}
	return domain.SearchFilters{ProductIDs: sales.ProductIDs}
}

// hydrate resolves index hits into full results. Hits whose chunk or
// document vanished since indexing are skipped; store failures abort.
func (r *Retriever) hydrate(
	ctx context.Context, tenantID, query string, hits []driven.VectorHit,
) ([]domain.SearchResult, error) {
	results := make([]domain.SearchResult, 0, len(hits))

	for _, hit := range hits {
		chunk, err := r.docStore.GetChunk(ctx, tenantID, hit.ChunkID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				// Chunk deleted between search and hydration.
				continue
			}
			return nil, fmt.Errorf("get chunk %s: %w", hit.ChunkID, err)
		}

		doc, err := r.docStore.GetDocument(ctx, tenantID, chunk.DocumentID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("get document %s: %w", chunk.DocumentID, err)
		}

		results = append(results, domain.SearchResult{
			Document: *doc,
			Chunk:    *chunk,
			Score:    hit.Similarity,
			Excerpt:  makeExcerpt(chunk.Content, query),
		})
	}

	return results, nil
}

// sortResults orders by the final ranking key descending, breaking ties
// by retrieval score descending, then by document recency descending.
func sortResults(results []domain.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		ri, rj := results[i].RankScore(), results[j].RankScore()
		if ri != rj {
			return ri > rj
		}
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Document.UpdatedAt.After(results[j].Document.UpdatedAt)
	})
}

// domainRelevance computes the secondary relevance score of a document
// against the sales context, capped at 1.0.
func domainRelevance(doc *domain.Document, sales *domain.SalesContext) float64 {
	score := 0.0

	if overlapAny(doc.Sales.ProductIDs, sales.ProductIDs) {
		score += productOverlapWeight
	}
	if sales.DealStage != "" && containsFold(doc.Sales.SalesStages, sales.DealStage) {
		score += stageMatchWeight
	}
	if sales.CustomerSegment != "" && strings.EqualFold(doc.Category, sales.CustomerSegment) {
		score += segmentMatchWeight
	}
	if strings.EqualFold(sales.Urgency, "critical") {
		score += urgencyBonus
	}
	if doc.Sales.AccessCount > usageBonusThreshold {
		score += usageBonus
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}

// touchDocuments bumps the access counter on each surfaced document.
// Best-effort: a counter failure never fails the retrieval.
func (r *Retriever) touchDocuments(ctx context.Context, tenantID string, results []domain.SearchResult) {
	seen := make(map[string]bool, len(results))
	for i := range results {
		id := results[i].Document.ID
		if seen[id] {
			continue
		}
		seen[id] = true
		if err := r.docStore.IncrementAccessCount(ctx, tenantID, id); err != nil {
			logger.Warn("Failed to bump access count for document %s: %v", id, err)
		}
	}
}

// makeExcerpt returns a snippet of content centred on the first query
// term occurrence, falling back to the leading characters.
func makeExcerpt(content, query string) string {
	lower := strings.ToLower(content)
	pos := -1
	for _, term := range strings.Fields(strings.ToLower(query)) {
		if i := strings.Index(lower, term); i >= 0 && (pos < 0 || i < pos) {
			pos = i
		}
	}

	runes := []rune(content)
	if pos < 0 {
		if len(runes) <= excerptLength {
			return content
		}
		return string(runes[:excerptLength]) + "..."
	}

	// Byte position to rune position.
	start := len([]rune(content[:pos]))
	start -= excerptLength / 4
	if start < 0 {
		start = 0
	}
	end := start + excerptLength
	if end > len(runes) {
		end = len(runes)
	}

	excerpt := strings.TrimSpace(string(runes[start:end]))
	if start > 0 {
		excerpt = "..." + excerpt
	}
	if end < len(runes) {
		excerpt += "..."
	}
	return excerpt
}

// overlapAny reports whether the two string sets share an element.
func overlapAny(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

// containsFold reports case-insensitive membership.
func containsFold(haystack []string, needle string) bool {
	for _, s := range haystack {
		if strings.EqualFold(s, needle) {
			return true
		}
	}
	return false
}
