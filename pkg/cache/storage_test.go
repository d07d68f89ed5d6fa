package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/thepwagner/debmirror/pkg/cache"
)

func testCache(t *testing.T, newStorage func() cache.Storage) {
	t.Helper()

	value := []byte("testValue")
	ctx := context.Background()

	t.Run("key not found", func(t *testing.T) {
		t.Parallel()
		_, ok := newStorage().Get(ctx, cache.Key("keyNotFound"))
		assert.False(t, ok)
	})

	t.Run("key found", func(t *testing.T) {
		t.Parallel()

		storage := newStorage()
		key := cache.Namespace("packages").Key("ubuntu", "main", "amd64")
		storage.Add(ctx, key, value)
		storedValue, ok := storage.Get(ctx, key)
		assert.True(t, ok)
		assert.Equal(t, value, storedValue)
	})

	t.Run("namespace expiry", func(t *testing.T) {
		t.Parallel()

		storage := newStorage()
		fastNS := cache.Namespace("fast")
		slowNS := cache.Namespace("slow")
		storage.NamespaceTTL(fastNS, 10*time.Millisecond)
		storage.NamespaceTTL(slowNS, time.Minute)

		storage.Add(ctx, fastNS.Key("foo"), value)
		storage.Add(ctx, slowNS.Key("foo"), value)

		time.Sleep(50 * time.Millisecond)

		_, ok := storage.Get(ctx, fastNS.Key("foo"))
		assert.False(t, ok)
		_, ok = storage.Get(ctx, slowNS.Key("foo"))
		assert.True(t, ok)
	})
}

func TestKey(t *testing.T) {
	t.Parallel()

	key := cache.Namespace("packages").Key("ubuntu", "main", "amd64")
	assert.Equal(t, cache.Key("packages:::ubuntu/main/amd64"), key)
	assert.Equal(t, cache.Namespace("packages"), key.Namespace())
	assert.Equal(t, cache.Namespace(""), cache.Key("bare").Namespace())
}
