// Package executor renders canonical queries into SQL against materialized
// tables, runs them and normalizes the result rows.
package executor

import (
	"fmt"
	"regexp"
	"strings"

	"wikisqleval/internal/query"
)

var plainIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Quoter quotes an identifier for a dialect.
type Quoter func(string) string

func ident(name string, quote Quoter) string {
	if quote == nil || plainIdent.MatchString(name) {
		return name
	}
	return quote(name)
}

// Literal renders v as a single-quoted SQL string with embedded quotes
// doubled. Every literal goes through here.
func Literal(v query.Literal) string {
	return "'" + strings.ReplaceAll(v.Text, "'", "''") + "'"
}

// Rendered is a statement plus the adjustments made to fit the table.
type Rendered struct {
	SQL          string
	SelClamped   bool
	DroppedConds []query.Cond
}

// Render builds the SELECT for q over table whose physical columns are
// columns, in index order. sel outside the columns falls back to column 0 and
// conditions on unknown columns are dropped.
func Render(table string, columns []string, q query.Query, quote Quoter) (Rendered, error) {
	if len(columns) == 0 {
		return Rendered{}, fmt.Errorf("table %s has no columns", table)
	}
	var out Rendered

	sel := q.Sel
	if sel < 0 || sel >= len(columns) {
		sel = 0
		out.SelClamped = true
	}
	target := ident(columns[sel], quote)
	if q.Agg != query.AggNone && q.Agg.Valid() {
		target = fmt.Sprintf("%s(%s)", q.Agg.Keyword(), target)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", target, ident(table, quote))

	var where []string
	for _, c := range q.Conds {
		if c.Column < 0 || c.Column >= len(columns) || !c.Op.Valid() {
			out.DroppedConds = append(out.DroppedConds, c)
			continue
		}
		where = append(where, fmt.Sprintf("%s %s %s", ident(columns[c.Column], quote), c.Op.Symbol(), Literal(c.Value)))
	}
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	out.SQL = b.String()
	return out, nil
}
