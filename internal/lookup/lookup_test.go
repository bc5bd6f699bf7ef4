package lookup

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableCachesLoads(t *testing.T) {
	loads := 0
	table := New(func(_ context.Context, key string) (int, error) {
		loads++
		return len(key), nil
	})
	ctx := context.Background()

	v, err := table.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	_, err = table.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, 1, loads, "second Get must hit the cache")

	table.Invalidate("abc")
	_, err = table.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, 2, loads)
}

func TestTableLoaderError(t *testing.T) {
	boom := errors.New("boom")
	table := New(func(_ context.Context, _ string) (int, error) {
		return 0, boom
	})

	_, err := table.Get(context.Background(), "x")
	assert.ErrorIs(t, err, boom)
}

func TestTableReset(t *testing.T) {
	loads := 0
	table := New(func(_ context.Context, key string) (string, error) {
		loads++
		return key, nil
	})
	ctx := context.Background()

	_, _ = table.Get(ctx, "a")
	_, _ = table.Get(ctx, "b")
	table.Reset()
	_, _ = table.Get(ctx, "a")
	assert.Equal(t, 3, loads)
}
