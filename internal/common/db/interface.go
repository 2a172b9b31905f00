package db

import "context"

// Row is a single result row.
type Row interface {
	Scan(dest ...interface{}) error
}

// Rows iterates over a query result.
type Rows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Close() error
	Err() error
}

// Result summarizes an executed statement.
type Result interface {
	LastInsertId() (int64, error)
	RowsAffected() (int64, error)
}

// Querier runs statements written with "?" placeholders, rebound per dialect.
type Querier interface {
	Query(ctx context.Context, query string, args ...interface{}) (Rows, error)
	QueryRow(ctx context.Context, query string, args ...interface{}) Row
	Exec(ctx context.Context, query string, args ...interface{}) (Result, error)
}

// Database is a pooled connection to a relational store.
type Database interface {
	Querier
	Ping(ctx context.Context) error
	Close() error
	Dialect() Dialect
}
