package core

import (
	"fmt"
	"os"

	"containercore/internal/infra/persistence/memory"
	"containercore/internal/infra/persistence/postgres"
	"containercore/internal/infra/persistence/sqlite"
	"containercore/pkg/domain"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

type (
	Transaction     = domain.Transaction
	TransactionView = domain.TransactionView
	PersistentStore = domain.PersistentStore
)

// OpenPersistentStore selects a backend using environment variables.
// Defaults to sqlite when unset.
//
//	CONTAINERCORE_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	CONTAINERCORE_SQLITE_PATH: path to sqlite file (default ./containercore.db)
//	CONTAINERCORE_POSTGRES_DSN: postgres DSN when driver=postgres
func OpenPersistentStore(engine *RulesEngine) (PersistentStore, error) {
	driver := os.Getenv("CONTAINERCORE_STORAGE_DRIVER")
	if driver == "" {
		driver = string(StorageSQLite)
	}
	return OpenStorageDriver(StorageDriver(driver), engine)
}

// OpenStorageDriver opens the named backend, reading backend-specific settings
// from the environment.
func OpenStorageDriver(driver StorageDriver, engine *RulesEngine) (PersistentStore, error) {
	switch driver {
	case StorageMemory:
		return memory.NewStore(engine), nil
	case StorageSQLite:
		path := os.Getenv("CONTAINERCORE_SQLITE_PATH")
		return sqlite.NewStore(path, engine)
	case StoragePostgres:
		dsn := os.Getenv("CONTAINERCORE_POSTGRES_DSN")
		return postgres.NewStore(dsn, engine)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
