package domain

import "time"

// DocumentType classifies the kind of knowledge a document carries.
type DocumentType string

const (
	DocTypeKnowledgeBase DocumentType = "knowledge_base"
	DocTypeFAQ           DocumentType = "faq"
	DocTypeScript        DocumentType = "script"
	DocTypeCatalog       DocumentType = "catalog"
	DocTypeOther         DocumentType = "other"
)

// Provenance records how a document entered the pipeline.
type Provenance string

const (
	ProvenanceUpload Provenance = "upload"
	ProvenanceURL    Provenance = "url"
	ProvenanceAPI    Provenance = "api"
	ProvenanceManual Provenance = "manual"
)

// SalesMetadata holds optional business context attached to a document.
type SalesMetadata struct {
	// ProductIDs lists products this document talks about.
	ProductIDs []string

	// PriceRange is a human-readable price band (e.g. "100-500").
	PriceRange string

	// SalesStages lists the deal stages this document applies to.
	SalesStages []string

	// AccessCount tracks how often the document surfaced in retrieval.
	AccessCount int

	// Verified marks the content as reviewed by a human.
	Verified bool
}

// Document represents ingested source material after text extraction.
// It is the unit of lifecycle management; chunks derive from it.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// TenantID scopes the document to one customer namespace.
	// Every storage and search operation must carry it explicitly.
	TenantID string

	// Title is the human-readable title.
	Title string

	// Content is the full extracted text before chunking.
	Content string

	// Type classifies the document.
	Type DocumentType

	// Category is a free-form domain category tag (e.g. "pricing", "onboarding").
	Category string

	// Extracted is set once text extraction succeeded.
	Extracted bool

	// Embedded is set once all chunks carry embeddings.
	Embedded bool

	// Indexed is set once all chunk vectors are searchable.
	Indexed bool

	// Provenance records how the document entered the system.
	Provenance Provenance

	// Sales holds optional business metadata.
	Sales SalesMetadata

	// CreatedAt is when the document was first ingested.
	CreatedAt time.Time

	// UpdatedAt is when the document was last modified.
	UpdatedAt time.Time
}

// ChunkType classifies the structural shape of a chunk's text.
type ChunkType string

const (
	ChunkTypeText    ChunkType = "text"
	ChunkTypeTable   ChunkType = "table"
	ChunkTypeList    ChunkType = "list"
	ChunkTypeHeading ChunkType = "heading"
)

// ChunkSignals carries the domain relevance signals detected in a chunk.
type ChunkSignals struct {
	// HasPricing is true when pricing patterns were found.
	HasPricing bool

	// HasProduct is true when product keywords were found.
	HasProduct bool

	// HasCompetitor is true when competitor keywords were found.
	HasCompetitor bool

	// Relevance is the weighted domain-relevance score in [0, 1].
	Relevance float64
}

// Chunk is the unit of retrieval: a bounded slice of a document's text.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string

	// DocumentID links to the parent Document.
	DocumentID string

	// Content is the text content of this chunk.
	Content string

	// Position is the ordinal position within the document.
	Position int

	// Start and End are rune offsets into the document content.
	// Invariant: 0 <= Start <= End <= rune length of the document content.
	Start int
	End   int

	// Type is the detected structural type.
	Type ChunkType

	// Signals are the detected domain relevance signals.
	Signals ChunkSignals

	// Embedding is the vector representation, nil until embedded.
	Embedding []float32
}
