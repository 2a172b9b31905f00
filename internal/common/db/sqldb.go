package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Dialect selects placeholder syntax and driver-specific error handling.
type Dialect string

const (
	DialectMySQL    Dialect = "mysql"
	DialectPostgres Dialect = "postgres"
)

// PoolConfig holds connection pool settings shared by every dialect.
type PoolConfig struct {
	DSN                string        `yaml:"dsn" toml:"dsn"`
	MaxOpenConnections int           `yaml:"maxOpenConnections" toml:"maxOpenConnections"`
	MaxIdleConnections int           `yaml:"maxIdleConnections" toml:"maxIdleConnections"`
	ConnMaxLifetime    time.Duration `yaml:"connMaxLifetime" toml:"connMaxLifetime"`
	ConnMaxIdleTime    time.Duration `yaml:"connMaxIdleTime" toml:"connMaxIdleTime"`
}

func (c *PoolConfig) applyDefaults() {
	if c.MaxOpenConnections == 0 {
		c.MaxOpenConnections = 25
	}
	if c.MaxIdleConnections == 0 {
		c.MaxIdleConnections = 5
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = 5 * time.Minute
	}
	if c.ConnMaxIdleTime == 0 {
		c.ConnMaxIdleTime = 10 * time.Minute
	}
}

// SQLDB implements Database over database/sql.
type SQLDB struct {
	db      *sql.DB
	dialect Dialect
}

func open(ctx context.Context, driver string, dialect Dialect, cfg PoolConfig) (*SQLDB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("DSN cannot be empty")
	}
	cfg.applyDefaults()

	sqlDB, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConnections)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConnections)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &SQLDB{db: sqlDB, dialect: dialect}, nil
}

// NewWithDB wraps an existing sql.DB, mainly for tests.
func NewWithDB(sqlDB *sql.DB, dialect Dialect) *SQLDB {
	return &SQLDB{db: sqlDB, dialect: dialect}
}

// Dialect reports the placeholder dialect.
func (d *SQLDB) Dialect() Dialect {
	return d.dialect
}

// Query executes a query that returns rows
func (d *SQLDB) Query(ctx context.Context, query string, args ...interface{}) (Rows, error) {
	rows, err := d.db.QueryContext(ctx, Rebind(d.dialect, query), args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	return rows, nil
}

// QueryRow executes a query that returns at most one row
func (d *SQLDB) QueryRow(ctx context.Context, query string, args ...interface{}) Row {
	return d.db.QueryRowContext(ctx, Rebind(d.dialect, query), args...)
}

// Exec executes a query that doesn't return rows
func (d *SQLDB) Exec(ctx context.Context, query string, args ...interface{}) (Result, error) {
	result, err := d.db.ExecContext(ctx, Rebind(d.dialect, query), args...)
	if err != nil {
		return nil, fmt.Errorf("exec failed: %w", err)
	}
	return result, nil
}

// Ping verifies a connection to the database is still alive
func (d *SQLDB) Ping(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

// Close closes the connection pool
func (d *SQLDB) Close() error {
	return d.db.Close()
}

// Rebind rewrites "?" placeholders into "$n" for PostgreSQL.
// Placeholders inside single-quoted literals are left alone.
func Rebind(dialect Dialect, query string) string {
	if dialect != DialectPostgres || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		ch := query[i]
		switch {
		case ch == '\'':
			inQuote = !inQuote
			b.WriteByte(ch)
		case ch == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}
