// Package storagetest holds the behaviour every storage backend must share.
package storagetest

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/storage"
)

// Run exercises a backend returned by open. Each subtest gets a fresh store.
func Run(t *testing.T, open func(t *testing.T) storage.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("get missing key", func(t *testing.T) {
		s := open(t)
		_, err := s.Get(ctx, "missing")
		require.Error(t, err)
		assert.True(t, storage.IsNotFound(err))
	})

	t.Run("set then get", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Set(ctx, "cart_u1", []byte(`[{"id":"p1"}]`)))

		got, err := s.Get(ctx, "cart_u1")
		require.NoError(t, err)
		assert.Equal(t, `[{"id":"p1"}]`, string(got))

		require.NoError(t, s.Set(ctx, "cart_u1", []byte(`[]`)))
		got, err = s.Get(ctx, "cart_u1")
		require.NoError(t, err)
		assert.Equal(t, `[]`, string(got))
	})

	t.Run("remove", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Set(ctx, "token", []byte("abc")))
		require.NoError(t, s.Remove(ctx, "token"))

		_, err := s.Get(ctx, "token")
		assert.True(t, storage.IsNotFound(err))
		assert.NoError(t, s.Remove(ctx, "token"), "removing a missing key is fine")
	})

	t.Run("subscribe sees local writes", func(t *testing.T) {
		s := open(t)
		var calls atomic.Int32
		unsubscribe := s.Subscribe("user", func(key string) {
			assert.Equal(t, "user", key)
			calls.Add(1)
		})

		require.NoError(t, s.Set(ctx, "user", []byte(`{"id":1}`)))
		require.NoError(t, s.Set(ctx, "other", []byte(`x`)))
		require.NoError(t, s.Remove(ctx, "user"))
		assert.Equal(t, int32(2), calls.Load())

		unsubscribe()
		unsubscribe()
		require.NoError(t, s.Set(ctx, "user", []byte(`{"id":2}`)))
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("callback may read the store", func(t *testing.T) {
		s := open(t)
		var seen atomic.Value
		s.Subscribe("locale", func(key string) {
			v, err := s.Get(ctx, key)
			if err == nil {
				seen.Store(string(v))
			}
		})

		require.NoError(t, s.Set(ctx, "locale", []byte("ru")))
		assert.Equal(t, "ru", seen.Load())
	})

	t.Run("prefixed view", func(t *testing.T) {
		s := open(t)
		a := storage.WithPrefix(s, "session:a:")
		b := storage.WithPrefix(s, "session:b:")

		var notified atomic.Int32
		a.Subscribe("user", func(key string) {
			assert.Equal(t, "user", key)
			notified.Add(1)
		})

		require.NoError(t, a.Set(ctx, "user", []byte("alice")))
		require.NoError(t, b.Set(ctx, "user", []byte("bob")))

		got, err := a.Get(ctx, "user")
		require.NoError(t, err)
		assert.Equal(t, "alice", string(got))

		got, err = s.Get(ctx, "session:b:user")
		require.NoError(t, err)
		assert.Equal(t, "bob", string(got))

		assert.Equal(t, int32(1), notified.Load())
		assert.NoError(t, a.Close())
	})
}
