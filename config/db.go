package config

import (
	"fmt"

	dbm "github.com/tendermint/tm-db"

	tmos "github.com/agrimarket/agridash/libs/os"
)

// DBProvider opens the named database of a config.
type DBProvider func(id string, cfg *Config) (dbm.DB, error)

// DefaultDBProvider opens id under DBDir with the configured backend. A memdb
// database keeps nothing across restarts.
func DefaultDBProvider(id string, cfg *Config) (dbm.DB, error) {
	backend := dbm.BackendType(cfg.DBBackend)
	if backend != dbm.MemDBBackend {
		if err := tmos.EnsureDir(cfg.DBDir(), defaultDirPerm); err != nil {
			return nil, err
		}
	}
	db, err := dbm.NewDB(id, backend, cfg.DBDir())
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", id, err)
	}
	return db, nil
}
