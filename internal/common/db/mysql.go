package db

import (
	"context"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
)

// OpenMySQL opens a pooled MySQL connection.
// DSN format: "user:password@tcp(host:port)/dbname?charset=utf8mb4"
func OpenMySQL(ctx context.Context, cfg PoolConfig) (*SQLDB, error) {
	dsn, err := mysqlDSN(cfg.DSN)
	if err != nil {
		return nil, err
	}
	cfg.DSN = dsn
	return open(ctx, "mysql", DialectMySQL, cfg)
}

// mysqlDSN forces parseTime so DATETIME columns scan into time.Time, and
// defaults the location to UTC.
func mysqlDSN(dsn string) (string, error) {
	parsed, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid mysql dsn: %w", err)
	}
	parsed.ParseTime = true
	if parsed.Loc == nil || parsed.Loc == time.Local {
		parsed.Loc = time.UTC
	}
	return parsed.FormatDSN(), nil
}
