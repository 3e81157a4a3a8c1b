package sessionstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/finbridge/watchsync/pkg/kvs"
	"github.com/finbridge/watchsync/pkg/logging"
	"github.com/finbridge/watchsync/pkg/platform"
)

// Namespace is the key prefix under which session records live in the
// shared KVS backend. Full keys follow session:{internalID}:{platform}.
const Namespace = "session:"

// Store persists session bundles in a KVS backend. It exclusively owns
// the persisted data; health state and error construction live in their
// own packages.
type Store struct {
	kvs    kvs.Store
	inval  *invalidator
	logger logging.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithInvalidationSink wires the debounced cache-invalidation signal
// fired after every mutation.
func WithInvalidationSink(sink InvalidationSink, debounce time.Duration) Option {
	return func(s *Store) {
		s.inval = newInvalidator(sink, debounce)
	}
}

// New creates a Store on top of a KVS backend. The backend is wrapped
// in the session namespace, so the caller passes the shared store.
func New(backend kvs.Store, logger logging.Logger, opts ...Option) *Store {
	s := &Store{
		kvs:    kvs.NewNamespacedStore(backend, Namespace),
		logger: logger.WithModule("sessionstore"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close stops the invalidation timer. The KVS backend is shared and
// closed by its owner.
func (s *Store) Close() {
	s.inval.close()
}

func recordKey(internalID string, p platform.Platform) string {
	return internalID + ":" + string(p)
}

// Save upserts the record into the bundle and signals cache
// invalidation.
func (s *Store) Save(ctx context.Context, internalID string, p platform.Platform, record *Record) error {
	if err := record.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("sessionstore: failed to marshal record: %w", err)
	}

	if err := s.kvs.Set(ctx, recordKey(internalID, p), data, 0); err != nil {
		return fmt.Errorf("sessionstore: failed to save record: %w", err)
	}

	s.logger.Debug("saved session record", "id", internalID, "platform", p)
	s.inval.trigger()
	return nil
}

// Get returns the record for one platform, or nil when no record exists
// or the stored value does not parse as a record. Invalid data is
// treated as absence, not as an error, to keep callers simple; only a
// backend failure returns an error.
func (s *Store) Get(ctx context.Context, internalID string, p platform.Platform) (*Record, error) {
	data, err := s.kvs.Get(ctx, recordKey(internalID, p))
	if err != nil {
		if err == kvs.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("sessionstore: failed to get record: %w", err)
	}

	record := decodeRecord(data)
	if record == nil {
		s.logger.Warn("stored session record is invalid, treating as absent", "id", internalID, "platform", p)
	}
	return record, nil
}

// decodeRecord parses stored bytes into a Record, returning nil for
// anything structurally invalid (non-JSON, JSON scalars, or a record
// violating the sessionId invariant).
func decodeRecord(data []byte) *Record {
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil
	}
	if record.Validate() != nil {
		return nil
	}
	return &record
}

// GetBundle returns all platform records under an internal id, skipping
// any that fail to parse. Returns nil when the bundle is empty.
func (s *Store) GetBundle(ctx context.Context, internalID string) (Bundle, error) {
	keys, err := s.kvs.List(ctx, internalID+":")
	if err != nil {
		return nil, fmt.Errorf("sessionstore: failed to list bundle keys: %w", err)
	}

	bundle := make(Bundle)
	for _, key := range keys {
		name, ok := strings.CutPrefix(key, internalID+":")
		if !ok || name == "" {
			continue
		}

		data, err := s.kvs.Get(ctx, key)
		if err != nil {
			if err == kvs.ErrNotFound {
				continue
			}
			return nil, fmt.Errorf("sessionstore: failed to get bundle record: %w", err)
		}

		if record := decodeRecord(data); record != nil {
			bundle[platform.Platform(name)] = record
		}
	}

	if len(bundle) == 0 {
		return nil, nil
	}
	return bundle, nil
}

// Update merges partial onto the existing record, creating a record
// with an empty sessionId when none exists yet. Nil fields in partial
// never clear existing values.
func (s *Store) Update(ctx context.Context, internalID string, p platform.Platform, partial *Partial) error {
	record, err := s.Get(ctx, internalID, p)
	if err != nil {
		return err
	}
	if record == nil {
		record = &Record{}
	}

	partial.applyTo(record)

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("sessionstore: failed to marshal record: %w", err)
	}

	if err := s.kvs.Set(ctx, recordKey(internalID, p), data, 0); err != nil {
		return fmt.Errorf("sessionstore: failed to update record: %w", err)
	}

	s.inval.trigger()
	return nil
}

// Delete removes one platform entry from a bundle.
func (s *Store) Delete(ctx context.Context, internalID string, p platform.Platform) error {
	if err := s.kvs.Delete(ctx, recordKey(internalID, p)); err != nil {
		return fmt.Errorf("sessionstore: failed to delete record: %w", err)
	}

	s.logger.Debug("deleted session record", "id", internalID, "platform", p)
	s.inval.trigger()
	return nil
}

// DeleteBundle removes every platform entry under an internal id.
func (s *Store) DeleteBundle(ctx context.Context, internalID string) error {
	keys, err := s.kvs.List(ctx, internalID+":")
	if err != nil {
		return fmt.Errorf("sessionstore: failed to list bundle keys: %w", err)
	}

	for _, key := range keys {
		if err := s.kvs.Delete(ctx, key); err != nil {
			return fmt.Errorf("sessionstore: failed to delete bundle record: %w", err)
		}
	}

	s.logger.Info("deleted session bundle", "id", internalID, "records", len(keys))
	s.inval.trigger()
	return nil
}

// SaveWithDedup saves the record under the id that keeps the store
// deduplicated and returns that id. The browser extension re-captures
// sessions on every page load, so the same (platform, sessionId,
// userEmail) capture arrives many times under varying candidate ids;
// without this, near-duplicate bundles accumulate without bound.
//
// All existing records for the platform matching the incoming capture
// are collected. Zero matches: the candidate id is authoritative. One
// match: its id is. Several: the most recently extracted wins, ties
// preferring the candidate id if present and the smallest id otherwise,
// and every loser's platform entry is deleted. The surviving invariant:
// at most one bundle per (platform, sessionId, userEmail) triple.
func (s *Store) SaveWithDedup(ctx context.Context, candidateID string, p platform.Platform, record *Record) (string, error) {
	if err := record.Validate(); err != nil {
		return "", err
	}

	matches, err := s.findDuplicates(ctx, p, record)
	if err != nil {
		return "", err
	}

	finalID := candidateID
	switch len(matches) {
	case 0:
		// First sighting of this capture.
	case 1:
		finalID = matches[0].id
	default:
		finalID = s.resolveDuplicates(ctx, candidateID, p, matches)
	}

	if err := s.Save(ctx, finalID, p, record); err != nil {
		return "", err
	}
	return finalID, nil
}

type duplicate struct {
	id     string
	record *Record
}

// findDuplicates scans all records for the platform whose capture
// matches the incoming record.
func (s *Store) findDuplicates(ctx context.Context, p platform.Platform, record *Record) ([]duplicate, error) {
	keys, err := s.kvs.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("sessionstore: dedup scan failed: %w", err)
	}

	suffix := ":" + string(p)
	var matches []duplicate
	for _, key := range keys {
		id, ok := strings.CutSuffix(key, suffix)
		if !ok || id == "" {
			continue
		}

		existing, err := s.Get(ctx, id, p)
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.sameCapture(record) {
			matches = append(matches, duplicate{id: id, record: existing})
		}
	}

	return matches, nil
}

// resolveDuplicates keeps the winner among several matching records and
// deletes the platform entry of every other. Most recent extractedAt
// wins; at equal timestamps the candidate id wins if present, then the
// lexicographically smallest id, so concurrent equal-timestamp captures
// still converge on one bundle.
func (s *Store) resolveDuplicates(ctx context.Context, candidateID string, p platform.Platform, matches []duplicate) string {
	sort.Slice(matches, func(i, j int) bool {
		ti, tj := matches[i].record.ExtractedAt, matches[j].record.ExtractedAt
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		if (matches[i].id == candidateID) != (matches[j].id == candidateID) {
			return matches[i].id == candidateID
		}
		return matches[i].id < matches[j].id
	})

	winner := matches[0].id
	for _, loser := range matches[1:] {
		if err := s.Delete(ctx, loser.id, p); err != nil {
			s.logger.Warn("failed to delete duplicate session record", "id", loser.id, "platform", p, "error", err)
		}
	}

	s.logger.Info("deduplicated session records", "kept", winner, "removed", len(matches)-1, "platform", p)
	return winner
}

// Stats aggregates stored session counts.
type Stats struct {
	TotalSessions  int            `json:"totalSessions"`
	PlatformCounts map[string]int `json:"platformCounts"`
}

// GetStats scans all stored keys and tallies records per platform.
// Malformed keys count toward the total but not toward any platform.
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	keys, err := s.kvs.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("sessionstore: stats scan failed: %w", err)
	}

	stats := &Stats{PlatformCounts: make(map[string]int)}
	for _, key := range keys {
		stats.TotalSessions++

		idx := strings.LastIndex(key, ":")
		if idx <= 0 || idx == len(key)-1 {
			continue
		}
		stats.PlatformCounts[key[idx+1:]]++
	}

	return stats, nil
}
