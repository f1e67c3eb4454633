package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/culefilo/internal/interfaces"
)

// Each key is a hash with fields value, revision, created_at and updated_at.
const (
	fieldValue     = "value"
	fieldRevision  = "revision"
	fieldCreatedAt = "created_at"
	fieldUpdatedAt = "updated_at"
)

// casScript returns the new revision, or -1 when the stored revision does not match ARGV[2].
// KEYS[1] = key, ARGV[1] = value, ARGV[2] = expected revision, ARGV[3] = now (RFC3339Nano)
var casScript = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], 'revision')
local expected = tonumber(ARGV[2])
if current then
  current = tonumber(current)
else
  current = 0
end
if current ~= expected then
  return -1
end
local nextRevision = current + 1
redis.call('HSET', KEYS[1], 'value', ARGV[1], 'revision', nextRevision, 'updated_at', ARGV[3])
redis.call('HSETNX', KEYS[1], 'created_at', ARGV[3])
return nextRevision
`)

// setScript writes unconditionally and bumps the revision.
var setScript = redis.NewScript(`
local nextRevision = redis.call('HINCRBY', KEYS[1], 'revision', 1)
redis.call('HSET', KEYS[1], 'value', ARGV[1], 'updated_at', ARGV[2])
redis.call('HSETNX', KEYS[1], 'created_at', ARGV[2])
return nextRevision
`)

// KVStorage implements the KeyValueStorage interface on Redis hashes
type KVStorage struct {
	client    *redis.Client
	namespace string
	logger    arbor.ILogger
	now       func() time.Time
}

// NewKVStorage creates a KVStorage; keys are stored as "<namespace>:<key>"
func NewKVStorage(client *redis.Client, namespace string, logger arbor.ILogger) *KVStorage {
	return &KVStorage{
		client:    client,
		namespace: namespace,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *KVStorage) redisKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	if s.namespace == "" {
		return key
	}
	return s.namespace + ":" + key
}

func (s *KVStorage) stripNamespace(redisKey string) string {
	if s.namespace == "" {
		return redisKey
	}
	return strings.TrimPrefix(redisKey, s.namespace+":")
}

// Get retrieves a value by key
func (s *KVStorage) Get(ctx context.Context, key string) (string, error) {
	pair, err := s.GetPair(ctx, key)
	if err != nil {
		return "", err
	}
	return pair.Value, nil
}

// GetPair retrieves a full KeyValuePair by key
func (s *KVStorage) GetPair(ctx context.Context, key string) (*interfaces.KeyValuePair, error) {
	fields, err := s.client.HGetAll(ctx, s.redisKey(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get key/value pair: %w", err)
	}
	if len(fields) == 0 {
		return nil, interfaces.ErrKeyNotFound
	}

	revision, err := strconv.ParseUint(fields[fieldRevision], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid revision for key %s: %w", key, err)
	}

	pair := &interfaces.KeyValuePair{
		Key:      s.stripNamespace(s.redisKey(key)),
		Value:    fields[fieldValue],
		Revision: revision,
	}
	pair.CreatedAt, _ = time.Parse(time.RFC3339Nano, fields[fieldCreatedAt])
	pair.UpdatedAt, _ = time.Parse(time.RFC3339Nano, fields[fieldUpdatedAt])

	return pair, nil
}

// Set writes a value unconditionally
func (s *KVStorage) Set(ctx context.Context, key string, value string) error {
	now := s.now().UTC().Format(time.RFC3339Nano)
	if err := setScript.Run(ctx, s.client, []string{s.redisKey(key)}, value, now).Err(); err != nil {
		return fmt.Errorf("failed to set key/value: %w", err)
	}
	return nil
}

// CompareAndSwap writes value only when the stored revision matches expectedRevision
func (s *KVStorage) CompareAndSwap(ctx context.Context, key string, value string, expectedRevision uint64) (uint64, error) {
	now := s.now().UTC().Format(time.RFC3339Nano)

	result, err := casScript.Run(ctx, s.client, []string{s.redisKey(key)}, value, expectedRevision, now).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to compare-and-swap key/value: %w", err)
	}
	if result < 0 {
		s.logger.Debug().
			Str("key", key).
			Int64("expected_revision", int64(expectedRevision)).
			Msg("Compare-and-swap lost")
		return 0, interfaces.ErrRevisionMismatch
	}

	return uint64(result), nil
}

// Delete removes a key/value pair
func (s *KVStorage) Delete(ctx context.Context, key string) error {
	removed, err := s.client.Del(ctx, s.redisKey(key)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete key: %w", err)
	}
	if removed == 0 {
		return interfaces.ErrKeyNotFound
	}
	return nil
}

// ListKeys returns all keys with the given prefix using SCAN
func (s *KVStorage) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	pattern := s.redisKey(prefix) + "*"

	keys := []string{}
	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, s.stripNamespace(iter.Val()))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan keys: %w", err)
	}
	return keys, nil
}

// Ping checks connectivity
func (s *KVStorage) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}
