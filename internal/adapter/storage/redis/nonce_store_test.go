package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return s, client
}

func TestNonceStore_CheckAndSet_NewNonce(t *testing.T) {
	_, client := newTestClient(t)
	store := NewNonceStore(client)

	ok, err := store.CheckAndSet(context.Background(), "webhook", "nonce-abc", 2*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "new nonce should return true")
}

func TestNonceStore_CheckAndSet_ReplayNonce(t *testing.T) {
	_, client := newTestClient(t)
	store := NewNonceStore(client)
	ctx := context.Background()

	ok, err := store.CheckAndSet(ctx, "webhook", "nonce-xyz", 2*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.CheckAndSet(ctx, "webhook", "nonce-xyz", 2*time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "replayed nonce should return false")
}

func TestNonceStore_CheckAndSet_DifferentScopes(t *testing.T) {
	_, client := newTestClient(t)
	store := NewNonceStore(client)
	ctx := context.Background()

	ok1, err := store.CheckAndSet(ctx, "webhook", "nonce-123", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok1)

	ok2, err := store.CheckAndSet(ctx, "other", "nonce-123", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok2, "same nonce in another scope should be valid")
}

func TestNonceStore_CheckAndSet_ExpiredNonce(t *testing.T) {
	s, client := newTestClient(t)
	store := NewNonceStore(client)
	ctx := context.Background()

	ok, err := store.CheckAndSet(ctx, "webhook", "nonce-expire", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	s.FastForward(2 * time.Second)

	ok, err = store.CheckAndSet(ctx, "webhook", "nonce-expire", time.Second)
	require.NoError(t, err)
	assert.True(t, ok, "expired nonce should be accepted again")
}

func TestNonceStore_CheckAndSet_RejectsBadInput(t *testing.T) {
	_, client := newTestClient(t)
	store := NewNonceStore(client)
	ctx := context.Background()

	_, err := store.CheckAndSet(ctx, "webhook", "", time.Minute)
	assert.ErrorIs(t, err, errEmptyNonce)

	_, err = store.CheckAndSet(ctx, "webhook", "nonce-ttl", 0)
	assert.ErrorContains(t, err, "ttl must be positive")
}

func TestNonceStore_KeyLayout(t *testing.T) {
	s, client := newTestClient(t)
	store := NewNonceStore(client)

	_, err := store.CheckAndSet(context.Background(), "webhook", "n-1", time.Minute)
	require.NoError(t, err)

	assert.True(t, s.Exists("fk:nonce:webhook:n-1"))
	assert.Greater(t, s.TTL("fk:nonce:webhook:n-1"), time.Duration(0))
}

func TestNonceStore_CheckAndSet_RedisDown(t *testing.T) {
	s, client := newTestClient(t)
	store := NewNonceStore(client)
	s.SetError("LOADING dataset in memory")

	_, err := store.CheckAndSet(context.Background(), "webhook", "n-down", time.Minute)
	assert.ErrorContains(t, err, "claim nonce")
}
