package adapter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

var errNotConnected = errors.New("database connection not established")

// readOnlyMode says how a dialect disables writes for one query: session
// statements around it, a read-only transaction, or both.
type readOnlyMode struct {
	enter, leave string
	tx           bool
}

// baseAdapter carries the database/sql plumbing shared by every dialect.
type baseAdapter struct {
	DB       *sql.DB
	Logger   *slog.Logger
	readOnly readOnlyMode
}

func newBase(log *slog.Logger, ro readOnlyMode) baseAdapter {
	if log == nil {
		log = slog.Default()
	}
	return baseAdapter{Logger: log, readOnly: ro}
}

func (b *baseAdapter) open(ctx context.Context, driver, dsn string, pool PoolConfig) error {
	if b.DB != nil {
		return b.DB.PingContext(ctx)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	pool.apply(db)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}
	b.DB = db
	return nil
}

func (b *baseAdapter) Close() error {
	if b.DB == nil {
		return nil
	}
	b.Logger.Debug("closing database connection")
	err := b.DB.Close()
	b.DB = nil
	return err
}

func (b *baseAdapter) Exec(ctx context.Context, stmt string, args ...any) error {
	if b.DB == nil {
		return errNotConnected
	}
	if _, err := b.DB.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("failed to execute statement: %w", err)
	}
	return nil
}

func (b *baseAdapter) ExecuteQuery(ctx context.Context, query string, args ...any) (*QueryResult, error) {
	if b.DB == nil {
		return nil, errNotConnected
	}
	start := time.Now()

	rows, err := b.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return collect(rows, start)
}

// QueryReadOnly runs a single SELECT with writes disabled for its duration.
func (b *baseAdapter) QueryReadOnly(ctx context.Context, query string) (*QueryResult, error) {
	stmt, err := CheckQuery(query)
	if err != nil {
		return nil, err
	}
	return b.queryReadOnly(ctx, stmt)
}

func (b *baseAdapter) queryReadOnly(ctx context.Context, stmt string) (*QueryResult, error) {
	if b.DB == nil {
		return nil, errNotConnected
	}
	start := time.Now()

	conn, err := b.DB.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	if b.readOnly.enter != "" {
		if _, err := conn.ExecContext(ctx, b.readOnly.enter); err != nil {
			return nil, fmt.Errorf("failed to disable writes: %w", err)
		}
		defer func() {
			// The connection goes back to the pool, so writes must come back
			// even when ctx is already done.
			if _, err := conn.ExecContext(context.Background(), b.readOnly.leave); err != nil {
				b.Logger.Error("failed to re-enable writes", "error", err)
			}
		}()
	}

	tx, err := conn.BeginTx(ctx, &sql.TxOptions{ReadOnly: b.readOnly.tx})
	if err != nil {
		return nil, fmt.Errorf("failed to begin read-only transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return collect(rows, start)
}

func collect(rows *sql.Rows, start time.Time) (*QueryResult, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var result [][]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for i, v := range values {
			if bs, ok := v.([]byte); ok {
				values[i] = string(bs)
			}
		}
		result = append(result, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return &QueryResult{
		Columns:       columns,
		Rows:          result,
		RowCount:      len(result),
		ExecutionTime: time.Since(start).Milliseconds(),
	}, nil
}

// scalarString runs a single-value query.
func (b *baseAdapter) scalarString(ctx context.Context, query string) (string, error) {
	res, err := b.ExecuteQuery(ctx, query)
	if err != nil {
		return "", err
	}
	if len(res.Rows) == 0 || len(res.Rows[0]) == 0 || res.Rows[0][0] == nil {
		return "unknown", nil
	}
	return fmt.Sprint(res.Rows[0][0]), nil
}

// informationSchemaColumns introspects through information_schema.columns.
// schemaExpr is a dialect expression for the current schema.
func (b *baseAdapter) informationSchemaColumns(ctx context.Context, table, schemaExpr, placeholder string) ([]Column, error) {
	query := fmt.Sprintf(`SELECT column_name, data_type, ordinal_position
		FROM information_schema.columns
		WHERE table_schema = %s AND table_name = %s
		ORDER BY ordinal_position`, schemaExpr, placeholder)

	res, err := b.ExecuteQuery(ctx, query, table)
	if err != nil {
		return nil, fmt.Errorf("failed to query column metadata: %w", err)
	}
	cols := make([]Column, 0, len(res.Rows))
	for _, row := range res.Rows {
		if len(row) < 3 {
			continue
		}
		cols = append(cols, Column{
			Name:     fmt.Sprint(row[0]),
			Type:     strings.ToUpper(fmt.Sprint(row[1])),
			Position: toInt(row[2]) - 1,
		})
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("table %s not found", table)
	}
	return cols, nil
}

func (b *baseAdapter) stringColumn(ctx context.Context, query string, args ...any) ([]string, error) {
	res, err := b.ExecuteQuery(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(res.Rows))
	for _, row := range res.Rows {
		if len(row) > 0 && row[0] != nil {
			out = append(out, fmt.Sprint(row[0]))
		}
	}
	return out, nil
}

func toInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int32:
		return int(n)
	case int:
		return n
	case uint64:
		return int(n)
	case float64:
		return int(n)
	case string:
		var i int
		fmt.Sscan(n, &i)
		return i
	default:
		return 0
	}
}

// quoteWith doubles embedded quote characters.
func quoteWith(name string, q byte) string {
	s := string(q)
	return s + strings.ReplaceAll(name, s, s+s) + s
}
