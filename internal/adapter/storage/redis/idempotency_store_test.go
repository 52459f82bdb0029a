package redis

import (
	"context"
	"testing"
	"time"

	"wallet-service/internal/core/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIdempotencyStore(t *testing.T) (*IdempotencyStore, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	return NewIdempotencyStore(client), s
}

func TestIdempotencyStore_PutAndGet(t *testing.T) {
	store, _ := newIdempotencyStore(t)
	ctx := context.Background()

	record := &domain.IdempotencyRecord{
		Key:       uuid.New(),
		Response:  []byte(`{"id":"abc","balance":"10.11"}`),
		ExpiresAt: time.Now().UTC().Add(domain.RecordTTL).Truncate(time.Millisecond),
	}
	require.NoError(t, store.Put(ctx, record))

	got, err := store.Get(ctx, record.Key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, record.Key, got.Key)
	assert.Equal(t, record.Response, got.Response)
	assert.True(t, record.ExpiresAt.Equal(got.ExpiresAt))
}

func TestIdempotencyStore_Get_Missing(t *testing.T) {
	store, _ := newIdempotencyStore(t)

	got, err := store.Get(context.Background(), uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestIdempotencyStore_PutIfAbsent_FirstWins(t *testing.T) {
	store, _ := newIdempotencyStore(t)
	ctx := context.Background()
	key := uuid.New()

	claim := &domain.IdempotencyRecord{Key: key, ExpiresAt: time.Now().Add(30 * time.Second)}

	won, err := store.PutIfAbsent(ctx, claim, 30*time.Second)
	require.NoError(t, err)
	assert.True(t, won)

	// Second claim under the same key loses.
	won, err = store.PutIfAbsent(ctx, claim, 30*time.Second)
	require.NoError(t, err)
	assert.False(t, won)
}

func TestIdempotencyStore_PutIfAbsent_TTLFreesKey(t *testing.T) {
	store, mr := newIdempotencyStore(t)
	ctx := context.Background()
	key := uuid.New()

	claim := &domain.IdempotencyRecord{Key: key, ExpiresAt: time.Now().Add(time.Second)}
	won, err := store.PutIfAbsent(ctx, claim, time.Second)
	require.NoError(t, err)
	require.True(t, won)

	// A crashed winner's claim decays with the TTL.
	mr.FastForward(2 * time.Second)

	won, err = store.PutIfAbsent(ctx, claim, time.Second)
	require.NoError(t, err)
	assert.True(t, won)
}

func TestIdempotencyStore_Put_ReplacesPendingClaim(t *testing.T) {
	store, _ := newIdempotencyStore(t)
	ctx := context.Background()
	key := uuid.New()

	claim := &domain.IdempotencyRecord{Key: key, ExpiresAt: time.Now().Add(30 * time.Second)}
	won, err := store.PutIfAbsent(ctx, claim, 30*time.Second)
	require.NoError(t, err)
	require.True(t, won)

	completed := &domain.IdempotencyRecord{
		Key:       key,
		Response:  []byte(`{"id":"abc"}`),
		ExpiresAt: time.Now().UTC().Add(domain.RecordTTL),
	}
	require.NoError(t, store.Put(ctx, completed))

	got, err := store.Get(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.Pending())
	assert.Equal(t, completed.Response, got.Response)
}

func TestIdempotencyStore_Delete(t *testing.T) {
	store, _ := newIdempotencyStore(t)
	ctx := context.Background()
	key := uuid.New()

	claim := &domain.IdempotencyRecord{Key: key, ExpiresAt: time.Now().Add(30 * time.Second)}
	won, err := store.PutIfAbsent(ctx, claim, 30*time.Second)
	require.NoError(t, err)
	require.True(t, won)

	require.NoError(t, store.Delete(ctx, key))

	// Key is claimable again after release.
	won, err = store.PutIfAbsent(ctx, claim, 30*time.Second)
	require.NoError(t, err)
	assert.True(t, won)
}
