// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - DocumentStore: Document and chunk persistence
//   - VectorIndex: Vector storage and similarity search
//   - EmbeddingService: Generates vector embeddings
//   - LLMService: Text generation for answer synthesis
//
// # Optional Interfaces
//
// These can be nil - the pipeline degrades gracefully:
//
//   - BlobStore: Archival of original files. Without it, originals are
//     simply not kept.
//   - TextExtractor: Only needed when ingesting raw bytes rather than
//     pre-extracted text.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
