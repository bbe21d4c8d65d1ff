package materialize

import (
	"context"
	"fmt"

	"wikisqleval/internal/adapter"
)

// Issue kinds reported by Check.
const (
	IssueNumericText = "numeric_text"
	IssueMixedType   = "mixed_type"
	IssueNullHeavy   = "null_heavy"
)

// Issue is a data quality finding on one materialized column. Issues never
// block materialization; they explain why a literal comparison can miss.
type Issue struct {
	TableID     string   `json:"table_id"`
	Table       string   `json:"table"`
	Column      string   `json:"column"`
	Header      string   `json:"header"`
	Kind        string   `json:"kind"`
	Description string   `json:"description"`
	Examples    []string `json:"examples,omitempty"`
}

// Check runs read-only SQL checks over a materialized table.
func Check(ctx context.Context, db adapter.DBAdapter, mp *Mapping) ([]Issue, error) {
	table := db.QuoteIdent(mp.Physical)
	total, err := count(ctx, db, "SELECT COUNT(*) FROM "+table)
	if err != nil {
		return nil, fmt.Errorf("failed to count %s: %w", mp.Physical, err)
	}
	if total == 0 {
		return nil, nil
	}
	sqlite := db.GetDatabaseType() == "SQLite"

	var issues []Issue
	for i, name := range mp.Columns {
		col := db.QuoteIdent(name)
		issue := func(kind, desc string, examples []string) Issue {
			return Issue{
				TableID:     mp.TableID,
				Table:       mp.Physical,
				Column:      name,
				Header:      header(mp, i),
				Kind:        kind,
				Description: desc,
				Examples:    examples,
			}
		}

		nulls, err := count(ctx, db, fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s IS NULL", table, col))
		if err != nil {
			return issues, err
		}
		if nulls*2 > total {
			issues = append(issues, issue(IssueNullHeavy,
				fmt.Sprintf("%.0f%% NULL values (%d/%d)", float64(nulls)*100/float64(total), nulls, total), nil))
		}

		switch {
		case !sqlite:
		case !mp.Types[i].Numeric():
			// Text columns that are mostly digits compare lexicographically
			// under > and <.
			nonEmpty, err := count(ctx, db, fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s IS NOT NULL", table, col))
			if err != nil {
				return issues, err
			}
			digits, err := count(ctx, db, fmt.Sprintf(
				"SELECT COUNT(*) FROM %s WHERE %s GLOB '[0-9]*' AND %s NOT GLOB '*[a-zA-Z]*'", table, col, col))
			if err != nil {
				return issues, err
			}
			if nonEmpty > 0 && digits*2 >= nonEmpty {
				issues = append(issues, issue(IssueNumericText,
					fmt.Sprintf("TEXT column with %d/%d numeric-looking values", digits, nonEmpty), nil))
			}
		default:
			// Cells that did not parse were stored as text in a numeric column.
			res, err := db.ExecuteQuery(ctx, fmt.Sprintf(
				"SELECT %s FROM %s WHERE typeof(%s) = 'text' LIMIT 3", col, table, col))
			if err != nil {
				return issues, err
			}
			if len(res.Rows) > 0 {
				issues = append(issues, issue(IssueMixedType,
					fmt.Sprintf("%s column holds non-numeric values", mp.Types[i]), examples(res.Rows)))
			}
		}
	}
	return issues, nil
}

func header(mp *Mapping, i int) string {
	if i < len(mp.Headers) {
		return mp.Headers[i]
	}
	return ""
}

func count(ctx context.Context, db adapter.DBAdapter, query string) (int, error) {
	res, err := db.ExecuteQuery(ctx, query)
	if err != nil {
		return 0, err
	}
	if len(res.Rows) == 0 || len(res.Rows[0]) == 0 {
		return 0, nil
	}
	switch v := res.Rows[0][0].(type) {
	case int64:
		return int(v), nil
	case int:
		return v, nil
	case float64:
		return int(v), nil
	case []byte:
		var n int
		_, err := fmt.Sscan(string(v), &n)
		return n, err
	default:
		return 0, fmt.Errorf("unexpected count type %T", v)
	}
}

func examples(rows [][]any) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		if len(r) > 0 {
			out = append(out, fmt.Sprintf("%q", fmt.Sprint(r[0])))
		}
	}
	return out
}
