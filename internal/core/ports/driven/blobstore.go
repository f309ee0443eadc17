package driven

import "context"

// BlobStore archives original files under tenant-scoped keys.
// The pipeline only writes originals and deletes them on document
// removal; it never reads blobs back for indexing.
type BlobStore interface {
	// Put stores data under the tenant's key.
	Put(ctx context.Context, tenantID, key string, data []byte) error

	// Get retrieves data stored under the tenant's key.
	Get(ctx context.Context, tenantID, key string) ([]byte, error)

	// Delete removes the blob. Used for best-effort cleanup on document
	// deletion; a failure here is logged, never raised.
	Delete(ctx context.Context, tenantID, key string) error
}
