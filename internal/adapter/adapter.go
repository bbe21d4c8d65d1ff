// Package adapter is the relational store boundary: a thin connect/query/exec
// layer over database/sql with per-dialect introspection. It does no ORM work.
package adapter

import (
	"context"
	"database/sql"
	"log/slog"
)

// DatabaseType names a supported store.
type DatabaseType string

const (
	MySQL      DatabaseType = "mysql"
	PostgreSQL DatabaseType = "postgresql"
	SQLite     DatabaseType = "sqlite"
)

// DBAdapter is the store contract used by the materializer, the executor and
// the evaluators.
type DBAdapter interface {
	Connect(ctx context.Context) error
	Close() error

	// ExecuteQuery runs a statement that returns rows. Cells keep driver
	// types except []byte, which is returned as string.
	ExecuteQuery(ctx context.Context, query string, args ...any) (*QueryResult, error)

	// QueryReadOnly runs one SELECT from an untrusted source. Anything but a
	// single query is rejected and the store refuses writes while it runs.
	QueryReadOnly(ctx context.Context, query string) (*QueryResult, error)

	// Exec runs a statement that returns no rows.
	Exec(ctx context.Context, stmt string, args ...any) error

	// TableColumns introspects a table's columns in ordinal order.
	TableColumns(ctx context.Context, table string) ([]Column, error)

	// ListTables returns user table names, sorted.
	ListTables(ctx context.Context) ([]string, error)

	// Placeholder returns the bind parameter marker for the i-th (1-based)
	// argument.
	Placeholder(i int) string

	// QuoteIdent quotes an identifier for this dialect.
	QuoteIdent(name string) string

	GetDatabaseType() string
	GetDatabaseVersion(ctx context.Context) (string, error)

	// DryRunSQL plans a single query without executing it.
	DryRunSQL(ctx context.Context, sql string) error
}

// Column is one introspected column.
type Column struct {
	Name     string
	Type     string
	Position int
}

// QueryResult holds rows in column order.
type QueryResult struct {
	Columns       []string
	Rows          [][]any
	RowCount      int
	ExecutionTime int64 // milliseconds
}

// DBConfig is the connection config for any supported store.
type DBConfig struct {
	Type     string
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string

	// SQLite
	FilePath string

	MaxOpenConns int
	MaxIdleConns int

	Logger *slog.Logger
}

// NewAdapter builds the adapter for config.Type. The adapter is not connected.
func NewAdapter(config *DBConfig) (DBAdapter, error) {
	switch DatabaseType(config.Type) {
	case MySQL:
		return NewMySQLAdapter(&MySQLConfig{
			Host:     config.Host,
			Port:     config.Port,
			Database: config.Database,
			User:     config.User,
			Password: config.Password,
			Pool:     poolOf(config),
		}, config.Logger), nil
	case PostgreSQL, "postgres":
		return NewPostgreSQLAdapter(&PostgreSQLConfig{
			Host:     config.Host,
			Port:     config.Port,
			Database: config.Database,
			User:     config.User,
			Password: config.Password,
			SSLMode:  config.SSLMode,
			Pool:     poolOf(config),
		}, config.Logger), nil
	case SQLite, "":
		return NewSQLiteAdapter(&SQLiteConfig{
			FilePath: config.FilePath,
			Pool:     poolOf(config),
		}, config.Logger), nil
	default:
		return nil, &UnsupportedDatabaseError{Type: config.Type}
	}
}

// FromDB wraps an already opened handle. Connect becomes a ping.
func FromDB(typ DatabaseType, db *sql.DB, log *slog.Logger) (DBAdapter, error) {
	switch typ {
	case MySQL:
		a := NewMySQLAdapter(&MySQLConfig{}, log)
		a.DB = db
		return a, nil
	case PostgreSQL:
		a := NewPostgreSQLAdapter(&PostgreSQLConfig{}, log)
		a.DB = db
		return a, nil
	case SQLite:
		a := NewSQLiteAdapter(&SQLiteConfig{}, log)
		a.DB = db
		return a, nil
	default:
		return nil, &UnsupportedDatabaseError{Type: string(typ)}
	}
}

// PoolConfig bounds the connection pool; zero values leave driver defaults.
type PoolConfig struct {
	MaxOpenConns int
	MaxIdleConns int
}

func poolOf(c *DBConfig) PoolConfig {
	return PoolConfig{MaxOpenConns: c.MaxOpenConns, MaxIdleConns: c.MaxIdleConns}
}

func (p PoolConfig) apply(db *sql.DB) {
	if p.MaxOpenConns > 0 {
		db.SetMaxOpenConns(p.MaxOpenConns)
	}
	if p.MaxIdleConns > 0 {
		db.SetMaxIdleConns(p.MaxIdleConns)
	}
}

// UnsupportedDatabaseError is returned for an unknown store type.
type UnsupportedDatabaseError struct {
	Type string
}

func (e *UnsupportedDatabaseError) Error() string {
	return "unsupported database type: " + e.Type
}
