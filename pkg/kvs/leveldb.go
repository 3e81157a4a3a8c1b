package kvs

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	ldberrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelDBStore is a LevelDB-backed implementation of Store. Values are
// encoded with an expiration header so TTL survives process restarts;
// a background goroutine sweeps expired keys.
type LevelDBStore struct {
	db     *leveldb.DB
	mu     sync.RWMutex
	closed bool

	sweepInterval time.Duration
	stopSweep     chan struct{}
	sweepDone     chan struct{}
}

// NewLevelDBStore creates a new LevelDB KVS store.
func NewLevelDBStore(cfg LevelDBConfig) (*LevelDBStore, error) {
	dbPath := cfg.Path
	if dbPath == "" {
		cacheDir, err := os.UserCacheDir()
		if err != nil {
			cacheDir = os.TempDir()
		}
		dbPath = filepath.Join(cacheDir, "watchsync-kvs")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("kvs/leveldb: failed to create directory: %w", err)
	}

	db, err := leveldb.OpenFile(dbPath, nil)
	if err != nil {
		if _, corrupted := err.(*ldberrors.ErrCorrupted); corrupted {
			db, err = leveldb.RecoverFile(dbPath, nil)
		}
		if err != nil {
			return nil, fmt.Errorf("kvs/leveldb: failed to open database at %s: %w", dbPath, err)
		}
	}

	interval := cfg.CleanupInterval
	if interval == 0 {
		interval = 5 * time.Minute
	}

	store := &LevelDBStore{
		db:            db,
		sweepInterval: interval,
		stopSweep:     make(chan struct{}),
		sweepDone:     make(chan struct{}),
	}

	go store.sweepLoop()

	return store, nil
}

// encodeValue prefixes a value with its expiration time.
// Format: [8 bytes big-endian unix nano, 0 = no expiration][value]
func encodeValue(value []byte, ttl time.Duration) []byte {
	expiresAt := int64(0)
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl).UnixNano()
	}

	encoded := make([]byte, 8+len(value))
	binary.BigEndian.PutUint64(encoded[:8], uint64(expiresAt))
	copy(encoded[8:], value)
	return encoded
}

// decodeValue strips the expiration header and reports expiry.
func decodeValue(encoded []byte) (value []byte, expired bool, err error) {
	if len(encoded) < 8 {
		return nil, false, fmt.Errorf("kvs/leveldb: invalid encoded value (too short)")
	}

	expiresAt := int64(binary.BigEndian.Uint64(encoded[:8]))
	if expiresAt > 0 && time.Now().UnixNano() > expiresAt {
		return nil, true, nil
	}

	return encoded[8:], false, nil
}

func (l *LevelDBStore) isClosed() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.closed
}

// Get retrieves a value by key.
func (l *LevelDBStore) Get(ctx context.Context, key string) ([]byte, error) {
	if l.isClosed() {
		return nil, ErrClosed
	}

	encoded, err := l.db.Get([]byte(key), nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("kvs/leveldb: get failed: %w", err)
	}

	value, expired, err := decodeValue(encoded)
	if err != nil {
		return nil, err
	}
	if expired {
		// Remove lazily; the sweep loop would get it eventually.
		go l.Delete(context.Background(), key)
		return nil, ErrNotFound
	}

	return value, nil
}

// Set stores a value with optional TTL.
func (l *LevelDBStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if l.isClosed() {
		return ErrClosed
	}

	if err := l.db.Put([]byte(key), encodeValue(value, ttl), nil); err != nil {
		return fmt.Errorf("kvs/leveldb: set failed: %w", err)
	}

	return nil
}

// Delete removes a key.
func (l *LevelDBStore) Delete(ctx context.Context, key string) error {
	if l.isClosed() {
		return ErrClosed
	}

	if err := l.db.Delete([]byte(key), nil); err != nil {
		return fmt.Errorf("kvs/leveldb: delete failed: %w", err)
	}

	return nil
}

// Exists checks if a key exists and has not expired.
func (l *LevelDBStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := l.Get(ctx, key)
	if err != nil {
		if err == ErrNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// List returns all keys matching a prefix.
func (l *LevelDBStore) List(ctx context.Context, prefix string) ([]string, error) {
	if l.isClosed() {
		return nil, ErrClosed
	}

	now := time.Now().UnixNano()
	var keys []string

	iter := l.db.NewIterator(util.BytesPrefix([]byte(prefix)), nil)
	defer iter.Release()

	for iter.Next() {
		encoded := iter.Value()
		if len(encoded) < 8 {
			continue
		}
		expiresAt := int64(binary.BigEndian.Uint64(encoded[:8]))
		if expiresAt > 0 && now > expiresAt {
			continue
		}
		keys = append(keys, string(iter.Key()))
	}

	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("kvs/leveldb: list failed: %w", err)
	}

	return keys, nil
}

// Count returns the number of keys matching a prefix.
func (l *LevelDBStore) Count(ctx context.Context, prefix string) (int, error) {
	keys, err := l.List(ctx, prefix)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// Close closes the store and stops the sweep goroutine.
func (l *LevelDBStore) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	l.closed = true
	l.mu.Unlock()

	close(l.stopSweep)
	<-l.sweepDone

	if err := l.db.Close(); err != nil {
		return fmt.Errorf("kvs/leveldb: close failed: %w", err)
	}

	return nil
}

func (l *LevelDBStore) sweepLoop() {
	defer close(l.sweepDone)

	ticker := time.NewTicker(l.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.sweep()
		case <-l.stopSweep:
			return
		}
	}
}

func (l *LevelDBStore) sweep() {
	if l.isClosed() {
		return
	}

	now := time.Now().UnixNano()

	iter := l.db.NewIterator(nil, nil)
	defer iter.Release()

	for iter.Next() {
		encoded := iter.Value()
		if len(encoded) < 8 {
			continue
		}
		expiresAt := int64(binary.BigEndian.Uint64(encoded[:8]))
		if expiresAt > 0 && now > expiresAt {
			// Copy the key; the iterator reuses its buffer.
			key := make([]byte, len(iter.Key()))
			copy(key, iter.Key())
			_ = l.db.Delete(key, nil)
		}
	}
}
