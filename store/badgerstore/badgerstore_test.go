package badgerstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/overflowgraph/refgraph"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, 1, []byte("body")))
	data, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte("body"), data)
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get(context.Background(), 99)
	assert.True(t, errors.Is(err, refgraph.ErrNotFound))
}

func TestDeleteThenGetIsNotFound(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, 1, []byte("x")))
	require.NoError(t, s.Delete(ctx, 1))

	_, err := s.Get(ctx, 1)
	assert.True(t, errors.Is(err, refgraph.ErrNotFound))
}
