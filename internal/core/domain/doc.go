// Package domain defines the core business entities for the RAG pipeline.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: Ingested source material with lifecycle flags
//   - Chunk: The unit of retrieval within a document
//   - SearchResult: A ranked retrieval hit
//   - GenerationContext / Answer: Generator input and output
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
