package sqlparse

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wikisqleval/internal/query"
	"wikisqleval/internal/testutil"
)

func TestParse_CityScenario(t *testing.T) {
	p := New(testutil.NewTestLogger(t))

	q, err := p.Parse("SELECT col0 FROM t WHERE col1 = '2020'")
	require.NoError(t, err)
	want := query.Query{Sel: 0, Agg: query.AggNone, Conds: []query.Cond{{Column: 1, Op: query.OpEQ, Value: query.String("2020")}}}
	assert.True(t, want.Equal(*q, true), "got %s", q)
}

func TestParse_CountWithoutWhere(t *testing.T) {
	q, err := New(nil).Parse("SELECT COUNT(col0) FROM t")
	require.NoError(t, err)
	assert.Equal(t, query.Query{Sel: 0, Agg: query.AggCount, Conds: []query.Cond{}}, *q)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		sql     string
		want    query.Query
		dropped []string
	}{
		{
			name: "fenced lower case with semicolon",
			sql:  "```sql\nselect max(col3) from table_1 where col2 = 'Butler CC (KS)';\n```",
			want: query.Query{Sel: 3, Agg: query.AggMax, Conds: []query.Cond{{Column: 2, Op: query.OpEQ, Value: query.String("Butler CC (KS)")}}},
		},
		{
			name: "bare number and comparisons",
			sql:  "SELECT AVG (col1) FROM t WHERE col2 = 1996 AND col3 > 10.5 AND col4 < '7'",
			want: query.Query{Sel: 1, Agg: query.AggAvg, Conds: []query.Cond{
				{Column: 2, Op: query.OpEQ, Value: query.String("1996")},
				{Column: 3, Op: query.OpGT, Value: query.String("10.5")},
				{Column: 4, Op: query.OpLT, Value: query.String("7")},
			}},
		},
		{
			name: "and inside a literal does not split",
			sql:  "SELECT col0 FROM t WHERE col1 = 'Tom and Jerry' AND col2 = 'x'",
			want: query.Query{Conds: []query.Cond{
				{Column: 1, Op: query.OpEQ, Value: query.String("Tom and Jerry")},
				{Column: 2, Op: query.OpEQ, Value: query.String("x")},
			}},
		},
		{
			name: "doubled quotes are undone",
			sql:  "SELECT col0 FROM t WHERE col1 = 'O''Brien'",
			want: query.Query{Conds: []query.Cond{{Column: 1, Op: query.OpEQ, Value: query.String("O'Brien")}}},
		},
		{
			name: "double quoted literal",
			sql:  `SELECT col0 FROM t WHERE col1 = "Denver"`,
			want: query.Query{Conds: []query.Cond{{Column: 1, Op: query.OpEQ, Value: query.String("Denver")}}},
		},
		{
			name: "terminating clauses",
			sql:  "SELECT col2 FROM t WHERE col1 = 'a' ORDER BY col2 LIMIT 1",
			want: query.Query{Sel: 2, Conds: []query.Cond{{Column: 1, Op: query.OpEQ, Value: query.String("a")}}},
		},
		{
			name: "order by inside literal is not a terminator",
			sql:  "SELECT col0 FROM t WHERE col1 = 'order by; limit'",
			want: query.Query{Conds: []query.Cond{{Column: 1, Op: query.OpEQ, Value: query.String("order by; limit")}}},
		},
		{
			name:    "or is unparseable",
			sql:     "SELECT col0 FROM t WHERE col1 = 'a' OR col1 = 'b' AND col2 = 'c'",
			want:    query.Query{Conds: []query.Cond{{Column: 2, Op: query.OpEQ, Value: query.String("c")}}},
			dropped: []string{"col1 = 'a' OR col1 = 'b'"},
		},
		{
			name:    "inclusive and negated operators never match",
			sql:     "SELECT col0 FROM t WHERE col1 >= 3 AND col2 <= 4 AND col3 <> 'x' AND col4 != 'y'",
			want:    query.Query{Conds: []query.Cond{}},
			dropped: []string{"col1 >= 3", "col2 <= 4", "col3 <> 'x'", "col4 != 'y'"},
		},
		{
			name: "like folds into equality",
			sql:  "SELECT col0 FROM t WHERE col1 LIKE '%boston%'",
			want: query.Query{Conds: []query.Cond{{Column: 1, Op: query.OpEQ, Value: query.String("boston")}}},
		},
		{
			name: "qualified and quoted columns",
			sql:  `SELECT t."col0" FROM t WHERE t.col1 = 'a' AND ("col2" > 5)`,
			want: query.Query{Conds: []query.Cond{
				{Column: 1, Op: query.OpEQ, Value: query.String("a")},
				{Column: 2, Op: query.OpGT, Value: query.String("5")},
			}},
		},
		{
			name: "grouped where body",
			sql:  "SELECT col0 FROM t WHERE (col1 = 'a' AND col2 = 'b');",
			want: query.Query{Conds: []query.Cond{
				{Column: 1, Op: query.OpEQ, Value: query.String("a")},
				{Column: 2, Op: query.OpEQ, Value: query.String("b")},
			}},
		},
		{
			name: "nested groups and parens inside literals",
			sql:  "SELECT col0 FROM t WHERE ((col1 = 'Butler CC (KS)') AND (col2 > 3))",
			want: query.Query{Conds: []query.Cond{
				{Column: 1, Op: query.OpEQ, Value: query.String("Butler CC (KS)")},
				{Column: 2, Op: query.OpGT, Value: query.String("3")},
			}},
		},
		{
			name:    "header names are not positional columns",
			sql:     "SELECT City FROM t WHERE Year = '2020'",
			want:    query.Query{Conds: []query.Cond{}},
			dropped: []string{"Year = '2020'"},
		},
	}

	p := New(testutil.NewTestLogger(t))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := p.ParseDetailed(tt.sql)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, res.Query, cmp.Comparer(func(a, b query.Literal) bool { return a == b })); diff != "" {
				t.Errorf("query mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, tt.dropped, res.Dropped)
		})
	}
}

func TestParse_NoSelect(t *testing.T) {
	p := New(nil)
	for _, sql := range []string{"", "I could not answer that.", "UPDATE t SET col0 = 1", "SELECT 1"} {
		_, err := p.Parse(sql)
		assert.ErrorIs(t, err, ErrNoSelect, sql)
	}
}

func TestParse_BareNumberStaysStringOnTheWire(t *testing.T) {
	q, err := New(nil).Parse("SELECT col0 FROM t WHERE col1 = 2020;")
	require.NoError(t, err)
	data, err := json.Marshal(query.Success(*q))
	require.NoError(t, err)
	assert.JSONEq(t, `{"query":{"sel":0,"agg":0,"conds":[[1,0,"2020"]]}}`, string(data))
	assert.True(t, q.Conds[0].Value.Equal(query.Number("2020")))
}

func TestParse_LikeWarning(t *testing.T) {
	res, err := New(nil).ParseDetailed("SELECT col0 FROM t WHERE col1 LIKE 'x%'")
	require.NoError(t, err)
	assert.Equal(t, []string{"LIKE condition folded into equality"}, res.Warnings)
}
