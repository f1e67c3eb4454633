package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/culefilo/internal/common"
	"github.com/ternarybob/culefilo/internal/interfaces"
	"github.com/ternarybob/culefilo/internal/storage/variables"
)

// Manager implements the StorageManager interface for Redis
type Manager struct {
	client *redis.Client
	kv     *KVStorage
	logger arbor.ILogger
}

// NewManager connects to Redis and verifies the connection
func NewManager(ctx context.Context, logger arbor.ILogger, config *common.RedisConfig) (*Manager, error) {
	options, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(options)
	kv := NewKVStorage(client, config.Namespace, logger)

	if err := kv.Ping(ctx); err != nil {
		client.Close()
		return nil, err
	}

	logger.Info().
		Str("addr", options.Addr).
		Int("db", options.DB).
		Str("namespace", config.Namespace).
		Msg("Redis storage manager initialized")

	return &Manager{client: client, kv: kv, logger: logger}, nil
}

// KeyValueStorage returns the KeyValue storage interface
func (m *Manager) KeyValueStorage() interfaces.KeyValueStorage {
	return m.kv
}

// LoadVariablesFromFiles seeds the store from variables.toml
func (m *Manager) LoadVariablesFromFiles(ctx context.Context, dirPath string) error {
	return variables.Load(ctx, m.kv, m.logger, dirPath)
}

// Close closes the client
func (m *Manager) Close() error {
	return m.client.Close()
}
