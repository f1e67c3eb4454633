package badger

import (
	"context"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/culefilo/internal/common"
	"github.com/ternarybob/culefilo/internal/interfaces"
	"github.com/ternarybob/culefilo/internal/storage/variables"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db     *BadgerDB
	kv     *KVStorage
	logger arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (*Manager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:     db,
		kv:     NewKVStorage(db, logger),
		logger: logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// KeyValueStorage returns the KeyValue storage interface
func (m *Manager) KeyValueStorage() interfaces.KeyValueStorage {
	return m.kv
}

// LoadVariablesFromFiles seeds the store from variables.toml
func (m *Manager) LoadVariablesFromFiles(ctx context.Context, dirPath string) error {
	return variables.Load(ctx, m.kv, m.logger, dirPath)
}

// Close closes the database connection
func (m *Manager) Close() error {
	return m.db.Close()
}
