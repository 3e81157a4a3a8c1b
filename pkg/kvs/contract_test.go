package kvs

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runContract runs the same behavioral suite against any Store
// implementation so all backends stay consistent.
func runContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("SetGet", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()

		require.NoError(t, store.Set(ctx, "alpha", []byte("one"), 0))

		value, err := store.Get(ctx, "alpha")
		require.NoError(t, err)
		assert.Equal(t, []byte("one"), value)
	})

	t.Run("GetMissing", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()

		_, err := store.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Overwrite", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()

		require.NoError(t, store.Set(ctx, "alpha", []byte("one"), 0))
		require.NoError(t, store.Set(ctx, "alpha", []byte("two"), 0))

		value, err := store.Get(ctx, "alpha")
		require.NoError(t, err)
		assert.Equal(t, []byte("two"), value)
	})

	t.Run("Delete", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()

		require.NoError(t, store.Set(ctx, "alpha", []byte("one"), 0))
		require.NoError(t, store.Delete(ctx, "alpha"))

		_, err := store.Get(ctx, "alpha")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("DeleteMissing", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()

		assert.NoError(t, store.Delete(ctx, "never-existed"))
	})

	t.Run("Exists", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()

		ok, err := store.Exists(ctx, "alpha")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, store.Set(ctx, "alpha", []byte("one"), 0))

		ok, err = store.Exists(ctx, "alpha")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("ListWithPrefix", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()

		require.NoError(t, store.Set(ctx, "session:a:mio", []byte("1"), 0))
		require.NoError(t, store.Set(ctx, "session:a:tv", []byte("2"), 0))
		require.NoError(t, store.Set(ctx, "other:b", []byte("3"), 0))

		keys, err := store.List(ctx, "session:a:")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"session:a:mio", "session:a:tv"}, keys)
	})

	t.Run("ListEmpty", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()

		keys, err := store.List(ctx, "nothing:")
		require.NoError(t, err)
		assert.Empty(t, keys)
	})

	t.Run("Count", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()

		require.NoError(t, store.Set(ctx, "s:1", []byte("a"), 0))
		require.NoError(t, store.Set(ctx, "s:2", []byte("b"), 0))
		require.NoError(t, store.Set(ctx, "t:1", []byte("c"), 0))

		count, err := store.Count(ctx, "s:")
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("OperationsAfterClose", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Close())

		_, err := store.Get(ctx, "alpha")
		assert.ErrorIs(t, err, ErrClosed)
		assert.ErrorIs(t, store.Set(ctx, "alpha", []byte("one"), 0), ErrClosed)
		assert.ErrorIs(t, store.Close(), ErrClosed)
	})
}

func TestMemoryStoreContract(t *testing.T) {
	runContract(t, func(t *testing.T) Store {
		return NewMemoryStore(MemoryConfig{CleanupInterval: time.Hour})
	})
}

func TestLevelDBStoreContract(t *testing.T) {
	runContract(t, func(t *testing.T) Store {
		store, err := NewLevelDBStore(LevelDBConfig{
			Path:            t.TempDir() + "/db",
			CleanupInterval: time.Hour,
		})
		require.NoError(t, err)
		return store
	})
}

func TestRedisStoreContract(t *testing.T) {
	runContract(t, func(t *testing.T) Store {
		mr := miniredis.RunT(t)
		store, err := NewRedisStore(RedisConfig{Addr: mr.Addr()})
		require.NoError(t, err)
		return store
	})
}

func TestMemoryStoreTTLExpiration(t *testing.T) {
	store := NewMemoryStore(MemoryConfig{CleanupInterval: time.Hour})
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "ephemeral", []byte("x"), 20*time.Millisecond))

	_, err := store.Get(ctx, "ephemeral")
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)

	_, err = store.Get(ctx, "ephemeral")
	assert.ErrorIs(t, err, ErrNotFound)

	ok, err := store.Exists(ctx, "ephemeral")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStoreTTLExpiration(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := NewRedisStore(RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "ephemeral", []byte("x"), time.Second))

	// miniredis only expires keys when the clock is advanced manually
	mr.FastForward(2 * time.Second)

	_, err = store.Get(ctx, "ephemeral")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNewFactorySelectsBackend(t *testing.T) {
	store, err := New(Config{Type: "memory"})
	require.NoError(t, err)
	_, ok := store.(*MemoryStore)
	assert.True(t, ok)
	store.Close()

	store, err = New(Config{})
	require.NoError(t, err)
	_, ok = store.(*MemoryStore)
	assert.True(t, ok, "empty type defaults to memory")
	store.Close()

	store, err = New(Config{Type: "leveldb", LevelDB: LevelDBConfig{Path: t.TempDir() + "/db"}})
	require.NoError(t, err)
	_, ok = store.(*LevelDBStore)
	assert.True(t, ok)
	store.Close()

	_, err = New(Config{Type: "cassandra"})
	assert.Error(t, err)
}

func TestNewRedisStoreConnectionError(t *testing.T) {
	_, err := NewRedisStore(RedisConfig{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}
