package objectstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorePutGetHead(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemoryStore().WithClock(func() time.Time { return at })

	meta := map[string]string{"version-number": "1"}
	require.NoError(t, s.Put(ctx, "doc-1/versions/a", []byte("hello"), "text/plain", meta))
	meta["version-number"] = "mutated"

	data, ct, err := s.Get(ctx, "doc-1/versions/a")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, "text/plain", ct)

	attrs, err := s.Head(ctx, "doc-1/versions/a")
	require.NoError(t, err)
	assert.Equal(t, int64(5), attrs.Size)
	assert.Equal(t, at, attrs.Updated)
	assert.Equal(t, "1", attrs.Metadata["version-number"])
}

func TestMemoryStoreMissingKey(t *testing.T) {
	s := NewMemoryStore()
	_, _, err := s.Get(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = s.Head(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMemoryStoreListByPrefix(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Put(ctx, "doc-1/versions/b", []byte("b"), "", nil))
	require.NoError(t, s.Put(ctx, "doc-1/versions/a", []byte("a"), "", nil))
	require.NoError(t, s.Put(ctx, "doc-2/versions/c", []byte("c"), "", nil))

	got, err := s.ListByPrefix(ctx, "doc-1/versions/")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "doc-1/versions/a", got[0].Key)
	assert.Equal(t, "doc-1/versions/b", got[1].Key)
}

func TestMemoryStoreHonorsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewMemoryStore().Put(ctx, "k", nil, "", nil)
	assert.ErrorIs(t, err, context.Canceled)
}
