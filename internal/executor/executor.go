package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"wikisqleval/internal/adapter"
	"wikisqleval/internal/query"
)

// Executor runs queries against one store. It is safe for concurrent use once
// the tables it reads are materialized.
type Executor struct {
	db  adapter.DBAdapter
	log *slog.Logger

	mu      sync.RWMutex
	columns map[string][]string
}

// New returns an Executor over db.
func New(db adapter.DBAdapter, log *slog.Logger) *Executor {
	if log == nil {
		log = slog.Default()
	}
	return &Executor{db: db, log: log, columns: make(map[string][]string)}
}

// Columns returns the physical column names of table in ordinal order.
func (e *Executor) Columns(ctx context.Context, table string) ([]string, error) {
	e.mu.RLock()
	cols, ok := e.columns[table]
	e.mu.RUnlock()
	if ok {
		return cols, nil
	}

	meta, err := e.db.TableColumns(ctx, table)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(meta, func(i, j int) bool { return meta[i].Position < meta[j].Position })
	cols = make([]string, len(meta))
	for i, c := range meta {
		cols[i] = c.Name
	}

	e.mu.Lock()
	e.columns[table] = cols
	e.mu.Unlock()
	return cols, nil
}

// Render resolves the columns of table and renders q against them.
func (e *Executor) Render(ctx context.Context, table string, q query.Query) (string, error) {
	cols, err := e.Columns(ctx, table)
	if err != nil {
		return "", err
	}
	r, err := Render(table, cols, q, e.db.QuoteIdent)
	if err != nil {
		return "", err
	}
	if r.SelClamped {
		e.log.Warn("selected column out of range, using column 0", "table", table, "sel", q.Sel, "columns", len(cols))
	}
	for _, c := range r.DroppedConds {
		e.log.Warn("dropping condition on unknown column", "table", table, "column", c.Column, "op", int(c.Op))
	}
	return r.SQL, nil
}

// Execute renders and runs q. Any failure returns a nil result and the error.
func (e *Executor) Execute(ctx context.Context, table string, q query.Query) (Rows, error) {
	stmt, err := e.Render(ctx, table, q)
	if err != nil {
		return nil, fmt.Errorf("failed to render query: %w", err)
	}
	return e.ExecuteSQL(ctx, stmt)
}

// ExecuteSQL runs a rendered statement with the same normalization as
// Execute. Text from a model goes through ExecuteReadOnly instead.
func (e *Executor) ExecuteSQL(ctx context.Context, stmt string) (Rows, error) {
	stmt, err := adapter.CheckQuery(stmt)
	if err != nil {
		return nil, err
	}
	res, err := e.db.ExecuteQuery(ctx, stmt)
	if err != nil {
		e.log.Debug("query failed", "sql", stmt, "error", err)
		return nil, err
	}
	return Normalize(res.Rows), nil
}

// ExecuteReadOnly runs untrusted SQL with the store refusing writes.
func (e *Executor) ExecuteReadOnly(ctx context.Context, stmt string) (Rows, error) {
	res, err := e.db.QueryReadOnly(ctx, stmt)
	if err != nil {
		e.log.Debug("read-only query failed", "sql", stmt, "error", err)
		return nil, err
	}
	return Normalize(res.Rows), nil
}

// Validate plans stmt without running it.
func (e *Executor) Validate(ctx context.Context, stmt string) error {
	if err := e.db.DryRunSQL(ctx, stmt); err != nil {
		return fmt.Errorf("invalid statement: %w", err)
	}
	return nil
}
