package kvs

import (
	"context"
	"strings"
	"time"
)

// NamespacedStore wraps a Store and prepends a prefix to all keys,
// letting several logical stores share one physical backend. Scans are
// confined to the namespace, so listing one namespace never walks the
// whole database.
type NamespacedStore struct {
	store  Store
	prefix string
}

// NewNamespacedStore creates a namespaced wrapper around store.
// An empty prefix returns the underlying store unchanged.
func NewNamespacedStore(store Store, prefix string) Store {
	if prefix == "" {
		return store
	}
	return &NamespacedStore{store: store, prefix: prefix}
}

func (n *NamespacedStore) prefixKey(key string) string {
	return n.prefix + key
}

// Get retrieves a value by namespaced key.
func (n *NamespacedStore) Get(ctx context.Context, key string) ([]byte, error) {
	return n.store.Get(ctx, n.prefixKey(key))
}

// Set stores a value under a namespaced key.
func (n *NamespacedStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return n.store.Set(ctx, n.prefixKey(key), value, ttl)
}

// Delete removes a namespaced key.
func (n *NamespacedStore) Delete(ctx context.Context, key string) error {
	return n.store.Delete(ctx, n.prefixKey(key))
}

// Exists checks if a namespaced key exists.
func (n *NamespacedStore) Exists(ctx context.Context, key string) (bool, error) {
	return n.store.Exists(ctx, n.prefixKey(key))
}

// List returns keys within the namespace matching the prefix.
// Returned keys have the namespace prefix stripped.
func (n *NamespacedStore) List(ctx context.Context, prefix string) ([]string, error) {
	keys, err := n.store.List(ctx, n.prefixKey(prefix))
	if err != nil {
		return nil, err
	}

	result := make([]string, len(keys))
	for i, key := range keys {
		result[i] = strings.TrimPrefix(key, n.prefix)
	}
	return result, nil
}

// Count returns the number of keys within the namespace matching the prefix.
func (n *NamespacedStore) Count(ctx context.Context, prefix string) (int, error) {
	return n.store.Count(ctx, n.prefixKey(prefix))
}

// Close closes the underlying store. When several namespaced wrappers
// share one backend, close the backend once rather than each wrapper.
func (n *NamespacedStore) Close() error {
	return n.store.Close()
}
