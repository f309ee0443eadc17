package domain

import "time"

// SearchFilters narrows the candidate set before ranking.
// All filters are conjunctive: a candidate must satisfy every non-empty one.
type SearchFilters struct {
	// Types restricts results to documents of these types.
	Types []DocumentType

	// Categories restricts results to these domain categories.
	Categories []string

	// CreatedAfter and CreatedBefore bound the document creation time.
	// Zero values mean unbounded.
	CreatedAfter  time.Time
	CreatedBefore time.Time

	// ProductIDs requires at least one shared product id with the document.
	ProductIDs []string
}

// Empty reports whether no filter is set.
func (f SearchFilters) Empty() bool {
	return len(f.Types) == 0 &&
		len(f.Categories) == 0 &&
		f.CreatedAfter.IsZero() &&
		f.CreatedBefore.IsZero() &&
		len(f.ProductIDs) == 0
}

// SalesContext is the business context a caller supplies with a query.
// It drives filter derivation and the secondary relevance pass.
type SalesContext struct {
	// CustomerID identifies the customer the conversation is about.
	CustomerID string

	// DealStage is the current stage of the deal (e.g. "negotiation").
	DealStage string

	// CustomerSegment is the segment tag (e.g. "enterprise", "smb").
	CustomerSegment string

	// Urgency is the caller-declared urgency ("low", "normal", "critical").
	Urgency string

	// ProductIDs lists the products in play.
	ProductIDs []string

	// CommunicationStyle hints the desired tone ("formal", "casual").
	CommunicationStyle string

	// ResponseType hints the desired answer shape ("short", "detailed").
	ResponseType string
}

// SearchResult is a single ranked hit. Results are ephemeral: computed
// per query and never persisted.
type SearchResult struct {
	// Document is the owning document.
	Document Document

	// Chunk is the matched chunk.
	Chunk Chunk

	// Score is the retrieval (similarity) score.
	Score float64

	// DomainScore is the secondary relevance score, nil when no sales
	// context was supplied.
	DomainScore *float64

	// Excerpt is a snippet of the chunk around the match.
	Excerpt string
}

// RankScore returns the final ranking key: the average of the retrieval
// and domain scores when the latter exists, else the retrieval score.
func (r SearchResult) RankScore() float64 {
	if r.DomainScore == nil {
		return r.Score
	}
	return (r.Score + *r.DomainScore) / 2
}
