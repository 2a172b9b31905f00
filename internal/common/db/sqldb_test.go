package db

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
)

func TestRebind(t *testing.T) {
	tests := []struct {
		name    string
		dialect Dialect
		query   string
		want    string
	}{
		{"mysql untouched", DialectMySQL, "SELECT * FROM problem WHERE id = ?", "SELECT * FROM problem WHERE id = ?"},
		{"postgres numbered", DialectPostgres, "UPDATE submission SET status = ?, result = ? WHERE id = ?", "UPDATE submission SET status = $1, result = $2 WHERE id = $3"},
		{"quoted literal kept", DialectPostgres, "SELECT '?' FROM t WHERE a = ?", "SELECT '?' FROM t WHERE a = $1"},
		{"no placeholders", DialectPostgres, "SELECT 1", "SELECT 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Rebind(tt.dialect, tt.query); got != tt.want {
				t.Fatalf("Rebind() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSQLDBQueryRowUsesDialect(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer sqlDB.Close()

	mock.ExpectQuery("SELECT title FROM problem WHERE id = $1").
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"title"}).AddRow("A+B"))

	database := NewWithDB(sqlDB, DialectPostgres)
	var title string
	if err := database.QueryRow(context.Background(), "SELECT title FROM problem WHERE id = ?", 7).Scan(&title); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if title != "A+B" {
		t.Fatalf("unexpected title %q", title)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestMySQLDSNForcesParseTime(t *testing.T) {
	dsn, err := mysqlDSN("root:pw@tcp(db:3306)/oj?charset=utf8mb4")
	if err != nil {
		t.Fatalf("mysqlDSN: %v", err)
	}
	parsed, err := mysql.ParseDSN(dsn)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if !parsed.ParseTime {
		t.Fatalf("expected parseTime in %q", dsn)
	}
	if parsed.Loc != time.UTC {
		t.Fatalf("expected UTC location, got %v", parsed.Loc)
	}
	if parsed.DBName != "oj" || parsed.Addr != "db:3306" {
		t.Fatalf("unexpected target %s/%s", parsed.Addr, parsed.DBName)
	}

	if _, err := mysqlDSN("not a dsn"); err == nil {
		t.Fatalf("expected error for malformed dsn")
	}
}

func TestPostgresDSN(t *testing.T) {
	got, err := postgresDSN("postgres://oj:secret@pg:5432/oj?sslmode=disable")
	if err != nil {
		t.Fatalf("postgresDSN: %v", err)
	}
	for _, part := range []string{"dbname=oj", "host=pg", "port=5432", "user=oj", "sslmode=disable"} {
		if !strings.Contains(got, part) {
			t.Fatalf("expected %q in %q", part, got)
		}
	}

	kv := "host=localhost dbname=oj sslmode=disable"
	if got, err := postgresDSN(kv); err != nil || got != kv {
		t.Fatalf("key/value dsn changed: %q %v", got, err)
	}
}

func TestCurrentDatabase(t *testing.T) {
	database := NewWithDB(nil, DialectPostgres)
	got, err := CurrentDatabase(NewManager(database))
	if err != nil || got.Dialect() != DialectPostgres {
		t.Fatalf("unexpected current database: %v %v", got, err)
	}
	if _, err := CurrentDatabase(NewManager(nil)); err == nil {
		t.Fatalf("expected error for empty manager")
	}
	if _, err := CurrentDatabase(nil); err == nil {
		t.Fatalf("expected error for nil provider")
	}
}
