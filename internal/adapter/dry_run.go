package adapter

import (
	"context"
)

// explain plans a single query under the read-only guard, so nothing the
// text smuggles in can run.
func explain(ctx context.Context, b *baseAdapter, prefix, sql string) error {
	stmt, err := CheckQuery(sql)
	if err != nil {
		return err
	}
	_, err = b.queryReadOnly(ctx, prefix+" "+stmt)
	return err
}

// DryRunSQL validates a statement with EXPLAIN QUERY PLAN.
func (a *SQLiteAdapter) DryRunSQL(ctx context.Context, sql string) error {
	return explain(ctx, &a.baseAdapter, "EXPLAIN QUERY PLAN", sql)
}

// DryRunSQL validates a statement with EXPLAIN.
func (a *PostgreSQLAdapter) DryRunSQL(ctx context.Context, sql string) error {
	return explain(ctx, &a.baseAdapter, "EXPLAIN", sql)
}

// DryRunSQL validates a statement with EXPLAIN.
func (a *MySQLAdapter) DryRunSQL(ctx context.Context, sql string) error {
	return explain(ctx, &a.baseAdapter, "EXPLAIN", sql)
}
