package db

import (
	"context"
	"fmt"
)

// Provider hands repositories the database they should query.
type Provider interface {
	Current() Database
}

// Manager is the Provider used by the judge service. It holds one pool for the
// lifetime of the process.
type Manager struct {
	database Database
}

// NewManager wraps database; a nil database makes every repository call fail
// with a database error instead of panicking.
func NewManager(database Database) *Manager {
	return &Manager{database: database}
}

// Current returns the pool, or nil for an empty manager.
func (m *Manager) Current() Database {
	if m == nil {
		return nil
	}
	return m.database
}

// CurrentDatabase fetches the database from provider and rejects a missing one.
func CurrentDatabase(provider Provider) (Database, error) {
	if provider == nil {
		return nil, fmt.Errorf("database provider is nil")
	}
	database := provider.Current()
	if database == nil {
		return nil, fmt.Errorf("database is not configured")
	}
	return database, nil
}

// Open connects to the store named by driver ("mysql" or "postgres").
func Open(ctx context.Context, driver string, cfg PoolConfig) (*SQLDB, error) {
	switch Dialect(driver) {
	case DialectMySQL, "":
		return OpenMySQL(ctx, cfg)
	case DialectPostgres, "postgresql":
		return OpenPostgreSQL(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}
