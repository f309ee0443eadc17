package fsblob

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salesmind/ragcore/internal/core/domain"
)

func TestPutGetDeleteRoundTrip(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	data := []byte("original file contents")
	require.NoError(t, store.Put(ctx, "acme", "doc-1", data))

	got, err := store.Get(ctx, "acme", "doc-1")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	require.NoError(t, store.Delete(ctx, "acme", "doc-1"))

	_, err = store.Get(ctx, "acme", "doc-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTenantsAreIsolated(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "acme", "doc-1", []byte("acme data")))

	_, err = store.Get(ctx, "rival", "doc-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteMissingBlobIsNoOp(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	assert.NoError(t, store.Delete(context.Background(), "acme", "ghost"))
}

func TestPathTraversalRejected(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	err = store.Put(ctx, "acme", "../escape", []byte("x"))
	assert.ErrorIs(t, err, domain.ErrValidation)

	err = store.Put(ctx, "a/b", "doc-1", []byte("x"))
	assert.ErrorIs(t, err, domain.ErrValidation)

	err = store.Put(ctx, "", "doc-1", []byte("x"))
	assert.ErrorIs(t, err, domain.ErrValidation)
}
