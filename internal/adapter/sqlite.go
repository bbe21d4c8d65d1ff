package adapter

import (
	"context"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"
)

// SQLiteAdapter is the default store. WikiSQL ships its tables as SQLite
// files and materialized tables live in SQLite too.
type SQLiteAdapter struct {
	baseAdapter
	config *SQLiteConfig
}

// SQLiteConfig is the SQLite connection config.
type SQLiteConfig struct {
	FilePath string // ":memory:" or empty for a private in-memory database
	Pool     PoolConfig
}

var sqliteReadOnly = readOnlyMode{enter: "PRAGMA query_only = ON", leave: "PRAGMA query_only = OFF"}

// NewSQLiteAdapter creates an unconnected SQLite adapter.
func NewSQLiteAdapter(config *SQLiteConfig, log *slog.Logger) *SQLiteAdapter {
	if config.FilePath == "" {
		config.FilePath = ":memory:"
	}
	return &SQLiteAdapter{baseAdapter: newBase(log, sqliteReadOnly), config: config}
}

func (a *SQLiteAdapter) Connect(ctx context.Context) error {
	pool := a.config.Pool
	if a.config.FilePath == ":memory:" {
		// Every connection to :memory: is a separate database.
		pool.MaxOpenConns = 1
	}
	if err := a.open(ctx, "sqlite", a.config.FilePath, pool); err != nil {
		return err
	}
	a.Logger.Debug("connected to sqlite", "path", a.config.FilePath)
	return nil
}

func (a *SQLiteAdapter) TableColumns(ctx context.Context, table string) ([]Column, error) {
	res, err := a.ExecuteQuery(ctx, fmt.Sprintf("PRAGMA table_info(%s)", a.QuoteIdent(table)))
	if err != nil {
		return nil, fmt.Errorf("failed to introspect %s: %w", table, err)
	}
	// cid, name, type, notnull, dflt_value, pk
	cols := make([]Column, 0, len(res.Rows))
	for _, row := range res.Rows {
		if len(row) < 3 {
			continue
		}
		cols = append(cols, Column{
			Position: toInt(row[0]),
			Name:     fmt.Sprint(row[1]),
			Type:     fmt.Sprint(row[2]),
		})
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("table %s not found", table)
	}
	return cols, nil
}

func (a *SQLiteAdapter) ListTables(ctx context.Context) ([]string, error) {
	return a.stringColumn(ctx, `SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name`)
}

func (a *SQLiteAdapter) Placeholder(int) string { return "?" }

func (a *SQLiteAdapter) QuoteIdent(name string) string { return quoteWith(name, '"') }

func (a *SQLiteAdapter) GetDatabaseType() string { return "SQLite" }

func (a *SQLiteAdapter) GetDatabaseVersion(ctx context.Context) (string, error) {
	return a.scalarString(ctx, "SELECT sqlite_version()")
}
