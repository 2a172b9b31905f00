package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// OpenPostgreSQL opens a pooled PostgreSQL connection.
// Both "postgres://user:pw@host:5432/db?sslmode=disable" and
// "host=localhost port=5432 dbname=db sslmode=disable" are accepted.
func OpenPostgreSQL(ctx context.Context, cfg PoolConfig) (*SQLDB, error) {
	dsn, err := postgresDSN(cfg.DSN)
	if err != nil {
		return nil, err
	}
	cfg.DSN = dsn
	return open(ctx, "postgres", DialectPostgres, cfg)
}

func postgresDSN(dsn string) (string, error) {
	if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
		return dsn, nil
	}
	converted, err := pq.ParseURL(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid postgres dsn: %w", err)
	}
	return converted, nil
}
