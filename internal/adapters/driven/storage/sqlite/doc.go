// Package sqlite implements the document store on SQLite.
//
// A single database file holds documents and chunks for all tenants;
// isolation is enforced by scoping every read and delete with the
// tenant id. Chunk embeddings are stored as little-endian float32
// blobs alongside the chunk text so a document can be re-indexed
// without re-embedding.
package sqlite
