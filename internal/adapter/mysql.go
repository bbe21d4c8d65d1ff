package adapter

import (
	"context"
	"fmt"
	"log/slog"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLAdapter stores materialized tables in MySQL.
type MySQLAdapter struct {
	baseAdapter
	config *MySQLConfig
}

// MySQLConfig is the MySQL connection config.
type MySQLConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	Pool     PoolConfig
}

// NewMySQLAdapter creates an unconnected MySQL adapter.
func NewMySQLAdapter(config *MySQLConfig, log *slog.Logger) *MySQLAdapter {
	if config.Port == 0 {
		config.Port = 3306
	}
	return &MySQLAdapter{baseAdapter: newBase(log, readOnlyMode{tx: true}), config: config}
}

// DSN renders the go-sql-driver connection string.
func (c *MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

func (a *MySQLAdapter) Connect(ctx context.Context) error {
	if err := a.open(ctx, "mysql", a.config.DSN(), a.config.Pool); err != nil {
		return err
	}
	a.Logger.Debug("connected to mysql", "host", a.config.Host, "database", a.config.Database)
	return nil
}

func (a *MySQLAdapter) TableColumns(ctx context.Context, table string) ([]Column, error) {
	return a.informationSchemaColumns(ctx, table, "DATABASE()", a.Placeholder(1))
}

func (a *MySQLAdapter) ListTables(ctx context.Context) ([]string, error) {
	return a.stringColumn(ctx, `SELECT table_name FROM information_schema.tables
		WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE'
		ORDER BY table_name`)
}

func (a *MySQLAdapter) Placeholder(int) string { return "?" }

func (a *MySQLAdapter) QuoteIdent(name string) string { return quoteWith(name, '`') }

func (a *MySQLAdapter) GetDatabaseType() string { return "MySQL" }

func (a *MySQLAdapter) GetDatabaseVersion(ctx context.Context) (string, error) {
	return a.scalarString(ctx, "SELECT VERSION()")
}
