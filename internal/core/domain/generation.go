package domain

// OutputFormat hints the requested answer shape.
type OutputFormat string

const (
	FormatText    OutputFormat = "text"
	FormatBullets OutputFormat = "bullets"
	FormatEmail   OutputFormat = "email"
)

// GenerationContext is the ensemble handed to the generator: the query,
// the retrieved results (already truncated to the context budget) and
// optional sales context. Ephemeral.
type GenerationContext struct {
	// Query is the user question.
	Query string

	// Results are the ranked retrieval hits, best first.
	Results []SearchResult

	// Sales is optional business context, nil when absent.
	Sales *SalesContext

	// Format is the requested output shape.
	Format OutputFormat
}

// Source identifies a chunk actually cited in an answer.
type Source struct {
	DocumentID string
	ChunkID    string
	Title      string
}

// Answer is the generated response. Ephemeral: returned to the caller,
// never persisted by this core.
type Answer struct {
	// Text is the generated answer.
	Text string

	// Confidence is the heuristic confidence in [0.1, 0.95].
	Confidence float64

	// Sources lists the context chunks the answer drew from.
	Sources []Source

	// NextSteps, Objections and UpsellHints are best-effort side outputs.
	// Their extraction never blocks or fails the primary answer.
	NextSteps   []string
	Objections  []string
	UpsellHints []string
}
