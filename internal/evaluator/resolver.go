package evaluator

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"wikisqleval/internal/adapter"
	"wikisqleval/internal/materialize"
)

// TableResolver maps a WikiSQL table id to a physical table name.
type TableResolver interface {
	Resolve(ctx context.Context, tableID string) (string, error)
}

// ResolverFunc adapts a function to TableResolver.
type ResolverFunc func(ctx context.Context, tableID string) (string, error)

func (f ResolverFunc) Resolve(ctx context.Context, tableID string) (string, error) {
	return f(ctx, tableID)
}

// DBResolver finds tables in a database whose naming it does not control,
// such as the official WikiSQL files.
type DBResolver struct {
	db adapter.DBAdapter

	once   sync.Once
	tables []string
	err    error
}

func NewDBResolver(db adapter.DBAdapter) *DBResolver {
	return &DBResolver{db: db}
}

// Resolve prefers a table whose name contains the id, then one ending with
// the id in underscore form, then falls back to the first table.
func (r *DBResolver) Resolve(ctx context.Context, tableID string) (string, error) {
	r.once.Do(func() {
		r.tables, r.err = r.db.ListTables(ctx)
	})
	if r.err != nil {
		return "", fmt.Errorf("failed to list tables: %w", r.err)
	}
	if len(r.tables) == 0 {
		return "", fmt.Errorf("database has no tables")
	}
	for _, name := range r.tables {
		if strings.Contains(name, tableID) {
			return name, nil
		}
	}
	underscored := strings.ReplaceAll(tableID, "-", "_")
	for _, name := range r.tables {
		if strings.HasSuffix(name, underscored) {
			return name, nil
		}
	}
	return r.tables[0], nil
}

// RegistryResolver resolves through a materializer's registry.
func RegistryResolver(m *materialize.Materializer) TableResolver {
	return ResolverFunc(func(_ context.Context, tableID string) (string, error) {
		mp, ok := m.Lookup(tableID)
		if !ok {
			return "", fmt.Errorf("table %s is not materialized", tableID)
		}
		return mp.Physical, nil
	})
}
