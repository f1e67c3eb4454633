package badger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/culefilo/internal/interfaces"
	"github.com/timshannon/badgerhold/v4"
)

// KVStorage implements the KeyValueStorage interface for Badger
type KVStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
	now    func() time.Time
}

// NewKVStorage creates a new KVStorage instance
func NewKVStorage(db *BadgerDB, logger arbor.ILogger) *KVStorage {
	return &KVStorage{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// normalizeKey converts a key to lowercase for case-insensitive storage
func (s *KVStorage) normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// Get retrieves a value by key (case-insensitive)
func (s *KVStorage) Get(ctx context.Context, key string) (string, error) {
	pair, err := s.GetPair(ctx, key)
	if err != nil {
		return "", err
	}
	return pair.Value, nil
}

// GetPair retrieves a full KeyValuePair by key (case-insensitive)
func (s *KVStorage) GetPair(ctx context.Context, key string) (*interfaces.KeyValuePair, error) {
	var pair interfaces.KeyValuePair
	err := s.db.Store().Get(s.normalizeKey(key), &pair)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, interfaces.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key/value pair: %w", err)
	}
	return &pair, nil
}

// Set writes a value unconditionally, bumping the revision
func (s *KVStorage) Set(ctx context.Context, key string, value string) error {
	normalizedKey := s.normalizeKey(key)

	err := s.db.Store().Badger().Update(func(txn *badger.Txn) error {
		pair, err := s.txGet(txn, normalizedKey)
		if err != nil {
			return err
		}
		return s.txWrite(txn, normalizedKey, value, pair)
	})
	if err != nil {
		return fmt.Errorf("failed to set key/value: %w", err)
	}
	return nil
}

// CompareAndSwap writes value only when the stored revision matches expectedRevision.
// The read and the write share one Badger transaction; a concurrent commit on the
// same key makes Badger reject ours with ErrConflict, reported as a mismatch.
func (s *KVStorage) CompareAndSwap(ctx context.Context, key string, value string, expectedRevision uint64) (uint64, error) {
	normalizedKey := s.normalizeKey(key)
	var revision uint64

	err := s.db.Store().Badger().Update(func(txn *badger.Txn) error {
		pair, err := s.txGet(txn, normalizedKey)
		if err != nil {
			return err
		}

		current := uint64(0)
		if pair != nil {
			current = pair.Revision
		}
		if current != expectedRevision {
			return interfaces.ErrRevisionMismatch
		}

		revision = current + 1
		return s.txWrite(txn, normalizedKey, value, pair)
	})

	switch {
	case err == nil:
		return revision, nil
	case errors.Is(err, interfaces.ErrRevisionMismatch), errors.Is(err, badger.ErrConflict):
		s.logger.Debug().
			Str("key", normalizedKey).
			Int64("expected_revision", int64(expectedRevision)).
			Msg("Compare-and-swap lost")
		return 0, interfaces.ErrRevisionMismatch
	default:
		return 0, fmt.Errorf("failed to compare-and-swap key/value: %w", err)
	}
}

// txGet reads the current pair inside txn, returning nil when the key does not exist
func (s *KVStorage) txGet(txn *badger.Txn, key string) (*interfaces.KeyValuePair, error) {
	var existing interfaces.KeyValuePair
	err := s.db.Store().TxGet(txn, key, &existing)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read key %s: %w", key, err)
	}
	return &existing, nil
}

// txWrite stores value on top of existing (which may be nil) with the next revision
func (s *KVStorage) txWrite(txn *badger.Txn, key string, value string, existing *interfaces.KeyValuePair) error {
	now := s.now()
	pair := interfaces.KeyValuePair{
		Key:       key,
		Value:     value,
		Revision:  1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if existing != nil {
		pair.Revision = existing.Revision + 1
		pair.CreatedAt = existing.CreatedAt
	}
	return s.db.Store().TxUpsert(txn, key, &pair)
}

// Delete removes a key/value pair (case-insensitive)
func (s *KVStorage) Delete(ctx context.Context, key string) error {
	err := s.db.Store().Delete(s.normalizeKey(key), &interfaces.KeyValuePair{})
	if errors.Is(err, badgerhold.ErrNotFound) {
		return interfaces.ErrKeyNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete key: %w", err)
	}
	return nil
}

// ListKeys returns all keys with the given prefix
func (s *KVStorage) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	normalizedPrefix := s.normalizeKey(prefix)

	var pairs []interfaces.KeyValuePair
	if err := s.db.Store().Find(&pairs, badgerhold.Where("Key").Ne("")); err != nil {
		return nil, fmt.Errorf("failed to list key/value pairs: %w", err)
	}

	keys := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		if strings.HasPrefix(pair.Key, normalizedPrefix) {
			keys = append(keys, pair.Key)
		}
	}
	return keys, nil
}
