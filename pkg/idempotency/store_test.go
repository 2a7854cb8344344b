package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisStore(client), mr
}

func TestRedisStoreLifecycle(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	rec, err := store.Load(ctx, "k1")
	require.NoError(t, err)
	assert.Nil(t, rec)

	ok, err := store.Claim(ctx, "k1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Claim(ctx, "k1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second claim must lose")

	rec, err = store.Load(ctx, "k1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, rec.Pending)

	err = store.Save(ctx, "k1", Record{Status: 201, ContentType: "application/json", Body: []byte(`{"success":true}`)}, time.Hour)
	require.NoError(t, err)

	rec, err = store.Load(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, &Record{Status: 201, ContentType: "application/json", Body: []byte(`{"success":true}`)}, rec)
	assert.True(t, mr.Exists(keyPrefix+"k1"))
	assert.Equal(t, time.Hour, mr.TTL(keyPrefix+"k1"))

	require.NoError(t, store.Release(ctx, "k1"))
	rec, err = store.Load(ctx, "k1")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestRedisStoreExpiry(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	ok, err := store.Claim(ctx, "k2", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	ok, err = store.Claim(ctx, "k2", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := Connect(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	client.Close()

	_, err = Connect(context.Background(), "not a url")
	assert.Error(t, err)
}

func TestNewRedisStoreNil(t *testing.T) {
	assert.Nil(t, NewRedisStore(nil))
}
