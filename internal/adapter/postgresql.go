package adapter

import (
	"context"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"
)

// PostgreSQLAdapter stores materialized tables in PostgreSQL.
type PostgreSQLAdapter struct {
	baseAdapter
	config *PostgreSQLConfig
}

// PostgreSQLConfig is the PostgreSQL connection config.
type PostgreSQLConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string // disable, require, verify-ca, verify-full
	Pool     PoolConfig
}

// NewPostgreSQLAdapter creates an unconnected PostgreSQL adapter.
func NewPostgreSQLAdapter(config *PostgreSQLConfig, log *slog.Logger) *PostgreSQLAdapter {
	if config.SSLMode == "" {
		config.SSLMode = "disable"
	}
	if config.Port == 0 {
		config.Port = 5432
	}
	return &PostgreSQLAdapter{baseAdapter: newBase(log, readOnlyMode{tx: true}), config: config}
}

// DSN renders the lib/pq key=value connection string.
func (c *PostgreSQLConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

func (a *PostgreSQLAdapter) Connect(ctx context.Context) error {
	if err := a.open(ctx, "postgres", a.config.DSN(), a.config.Pool); err != nil {
		return err
	}
	a.Logger.Debug("connected to postgresql", "host", a.config.Host, "database", a.config.Database)
	return nil
}

func (a *PostgreSQLAdapter) TableColumns(ctx context.Context, table string) ([]Column, error) {
	return a.informationSchemaColumns(ctx, table, "current_schema()", a.Placeholder(1))
}

func (a *PostgreSQLAdapter) ListTables(ctx context.Context) ([]string, error) {
	return a.stringColumn(ctx, `SELECT table_name FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'
		ORDER BY table_name`)
}

func (a *PostgreSQLAdapter) Placeholder(i int) string { return fmt.Sprintf("$%d", i) }

func (a *PostgreSQLAdapter) QuoteIdent(name string) string { return quoteWith(name, '"') }

func (a *PostgreSQLAdapter) GetDatabaseType() string { return "PostgreSQL" }

func (a *PostgreSQLAdapter) GetDatabaseVersion(ctx context.Context) (string, error) {
	return a.scalarString(ctx, "SELECT version()")
}
