package storage

import (
	"fmt"

	"shelterlink/backend/internal/config"
)

// FromConfig opens the backend named by cfg.StorageDriver. Postgres is
// migrated before it is returned.
func FromConfig(cfg *config.Config) (Storage, error) {
	switch cfg.StorageDriver {
	case config.DriverMemory:
		return NewMemoryStore(), nil
	case config.DriverPostgres:
		db, err := Open(cfg.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		svc := NewStorageService(db)
		if err := svc.AutoMigrate(); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return svc, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}
