package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
)

func setupTestMongo(t *testing.T) *MongoStore {
	if testing.Short() {
		t.Skip("skipping MongoDB container test in short mode")
	}
	ctx := context.Background()

	mongoContainer, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := mongoContainer.Terminate(ctx); err != nil {
			t.Logf("mongo container terminate: %v", err)
		}
	})

	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := ConnectMongoDB(ctx, uri, "testdb")
	require.NoError(t, err)

	store := NewMongoStore(db)
	require.NoError(t, store.CreateIndexes(ctx))
	return store
}

func TestMongoStore_GetMissing(t *testing.T) {
	store := setupTestMongo(t)

	got, err := store.Get(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Nil(t, got)
}

func TestMongoStore_SetOverwritesAndGet(t *testing.T) {
	store := setupTestMongo(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, CartKey, []byte(`{"items":[]}`)))
	require.NoError(t, store.Set(ctx, CartKey, []byte(`{"items":[{"quantity":2}]}`)))

	got, err := store.Get(ctx, CartKey)
	require.NoError(t, err)
	assert.JSONEq(t, `{"items":[{"quantity":2}]}`, string(got))
}

func TestMongoStore_Delete(t *testing.T) {
	store := setupTestMongo(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, UserKey, []byte("{}")))
	require.NoError(t, store.Delete(ctx, UserKey))

	_, err := store.Get(ctx, UserKey)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMongoStore_ContextCancellation(t *testing.T) {
	store := setupTestMongo(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Get(ctx, CartKey)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context canceled")
}
