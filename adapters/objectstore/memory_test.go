package objectstore

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flomentum/domain/core"
)

func TestMemoryStore_RoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "labs/abc123", "application/pdf", strings.NewReader("%PDF-1.4 content")))

	r, err := store.Get(ctx, "labs/abc123")
	require.NoError(t, err)
	defer r.Close()

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 content", string(data))
}

func TestMemoryStore_PutSameKeyIsIdempotent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "labs/abc123", "application/pdf", strings.NewReader("v1")))
	require.NoError(t, store.Put(ctx, "labs/abc123", "application/pdf", strings.NewReader("v1")))
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStore_GetMissing(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Get(context.Background(), "labs/nope")
	require.Error(t, err)
	assert.True(t, core.IsNotFoundError(err))
}

func TestMemoryStore_DeleteMissingIsNoError(t *testing.T) {
	store := NewMemoryStore()
	assert.NoError(t, store.Delete(context.Background(), "labs/nope"))
}
