package storage

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_SetAndGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, CartKey, []byte(`{"items":[]}`)))

	got, err := store.Get(ctx, CartKey)
	require.NoError(t, err)
	assert.Equal(t, `{"items":[]}`, string(got))
}

func TestMemoryStore_GetMissing(t *testing.T) {
	store := NewMemoryStore()

	got, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Nil(t, got)
}

func TestMemoryStore_ReturnedSliceIsACopy(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	value := []byte("abc")
	require.NoError(t, store.Set(ctx, "k", value))

	value[0] = 'z'
	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	got[1] = 'z'

	again, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(again))
}

func TestMemoryStore_Delete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "k", []byte("v")))

	require.NoError(t, store.Delete(ctx, "k"))
	require.NoError(t, store.Delete(ctx, "k"))

	_, err := store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, store.Set(ctx, "k", []byte("v")), context.Canceled)
	_, err := store.Get(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryStore_ConcurrentWrites(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			key := fmt.Sprintf("key-%d", id)
			assert.NoError(t, store.Set(ctx, key, []byte(key)))
		}(i)
	}
	wg.Wait()

	for i := 0; i < 20; i++ {
		key := fmt.Sprintf("key-%d", i)
		got, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, key, string(got))
	}
}
