package interfaces

import "context"

// StorageManager owns the configured key/value backend
type StorageManager interface {
	KeyValueStorage() KeyValueStorage

	// LoadVariablesFromFiles seeds the store from variables.toml in dirPath
	LoadVariablesFromFiles(ctx context.Context, dirPath string) error

	Close() error
}
