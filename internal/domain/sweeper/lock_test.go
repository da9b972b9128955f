package sweeper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRedisStore struct {
	mu     sync.Mutex
	values map[string]string
	setErr error
}

func newFakeRedisStore() *fakeRedisStore {
	return &fakeRedisStore{values: map[string]string{}}
}

func (f *fakeRedisStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return false, f.setErr
	}
	if _, ok := f.values[key]; ok {
		return false, nil
	}
	f.values[key] = value.(string)
	return true, nil
}

func (f *fakeRedisStore) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (f *fakeRedisStore) Del(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.values, k)
	}
	return nil
}

func (f *fakeRedisStore) set(key, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
}

func (f *fakeRedisStore) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.values[key]
	return ok
}

func TestNewRedisLock_Validation(t *testing.T) {
	_, err := NewRedisLock(nil, "key", time.Minute)
	assert.Error(t, err)

	_, err = NewRedisLock(newFakeRedisStore(), "", time.Minute)
	assert.Error(t, err)

	lock, err := NewRedisLock(newFakeRedisStore(), "key", 0)
	require.NoError(t, err)
	assert.Equal(t, defaultLockTTL, lock.ttl)
}

func TestRedisLock_AcquireIsExclusive(t *testing.T) {
	store := newFakeRedisStore()
	first, err := NewRedisLock(store, "buddydesk:lock:sweeper", time.Minute)
	require.NoError(t, err)
	second, err := NewRedisLock(store, "buddydesk:lock:sweeper", time.Minute)
	require.NoError(t, err)

	ok, err := first.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = second.Acquire(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	// A non-owner release must not free someone else's lock.
	require.NoError(t, second.Release(context.Background()))
	assert.True(t, store.has("buddydesk:lock:sweeper"))

	require.NoError(t, first.Release(context.Background()))
	assert.False(t, store.has("buddydesk:lock:sweeper"))

	ok, err = second.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLock_ReleaseKeepsForeignOwner(t *testing.T) {
	store := newFakeRedisStore()
	lock, err := NewRedisLock(store, "k", time.Minute)
	require.NoError(t, err)

	ok, err := lock.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	// TTL expired and another instance took over.
	store.set("k", "someone-else")

	require.NoError(t, lock.Release(context.Background()))
	assert.True(t, store.has("k"))
}

func TestRedisLock_ReleaseAfterExpiry(t *testing.T) {
	store := newFakeRedisStore()
	lock, err := NewRedisLock(store, "k", time.Minute)
	require.NoError(t, err)

	ok, err := lock.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, store.Del(context.Background(), "k"))
	assert.NoError(t, lock.Release(context.Background()))
}

func TestRedisLock_AcquireError(t *testing.T) {
	store := newFakeRedisStore()
	store.setErr = errors.New("connection refused")
	lock, err := NewRedisLock(store, "k", time.Minute)
	require.NoError(t, err)

	ok, err := lock.Acquire(context.Background())
	assert.False(t, ok)
	assert.ErrorContains(t, err, "connection refused")
}

func TestLocalLock(t *testing.T) {
	lock := NewLocalLock()

	ok, err := lock.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = lock.Acquire(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, lock.Release(context.Background()))
	ok, err = lock.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}
