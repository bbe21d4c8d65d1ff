package synth

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wikisqleval/internal/dataset"
	"wikisqleval/internal/llm"
	"wikisqleval/internal/materialize"
	"wikisqleval/internal/testutil"
)

func cityContext(t *testing.T) TableContext {
	t.Helper()
	tables, err := dataset.ReadTables(strings.NewReader(testutil.CityTable), nil)
	require.NoError(t, err)
	mp := &materialize.Mapping{
		Physical: "table_1_10015132_11",
		Columns:  []string{"col0", "col1"},
		Types:    []materialize.ColumnType{materialize.TypeText, materialize.TypeInteger},
	}
	return NewTableContext(tables["1-10015132-11"], mp, 0)
}

func TestBuildPrompt(t *testing.T) {
	prompt, err := BuildPrompt("Which city is from 2020?", cityContext(t))
	require.NoError(t, err)

	for _, want := range []string{
		"Table name: table_1_10015132_11",
		"col0: City (text)",
		"col1: Year (integer)",
		`Row 2: ["Denver", "2020"]`,
		`"how many" / "count" -> COUNT()`,
		"Question: Which city is from 2020?",
	} {
		assert.Contains(t, prompt, want)
	}
}

func TestNewTableContext_WithoutMapping(t *testing.T) {
	table := &dataset.Table{ID: "x", Header: []string{"a", "b"}, Types: []string{"real"}, Rows: [][]any{{1, nil}, {2, 3}, {4, 5}}}
	tc := NewTableContext(table, nil, 2)
	assert.Equal(t, []ColumnInfo{{Name: "col0", Header: "a", Type: "real"}, {Name: "col1", Header: "b", Type: "text"}}, tc.Columns)
	assert.Equal(t, [][]string{{"1", ""}, {"2", "3"}}, tc.Samples)
	assert.Equal(t, "no description", tc.Description)
}

func TestCleanSQL(t *testing.T) {
	tests := map[string]string{
		"```sql\nSELECT col0 FROM t\n```":  "SELECT col0 FROM t;",
		"```\nSELECT col0 FROM t;\n```":    "SELECT col0 FROM t;",
		"  SELECT COUNT(col1) FROM t  \n": "SELECT COUNT(col1) FROM t;",
		"":                                "",
		"```sql\n```":                      "",
	}
	for in, want := range tests {
		assert.Equal(t, want, CleanSQL(in), in)
	}
}

func TestGenerate(t *testing.T) {
	var prompts []string
	s := New(llm.CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		prompts = append(prompts, prompt)
		return "```sql\nSELECT col0 FROM table_1_10015132_11 WHERE col1 = '2020'\n```", nil
	}), testutil.NewTestLogger(t))

	got := s.Generate(context.Background(), "Which city is from 2020?", cityContext(t))
	assert.Equal(t, "SELECT col0 FROM table_1_10015132_11 WHERE col1 = '2020';", got)
	require.Len(t, prompts, 1)
}

func TestGenerate_FailuresReturnEmpty(t *testing.T) {
	calls := 0
	failing := New(llm.CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		calls++
		return "", errors.New("endpoint down")
	}), testutil.NewTestLogger(t))
	assert.Equal(t, "", failing.Generate(context.Background(), "q", cityContext(t)))
	assert.Equal(t, 1, calls, "no retries")

	blank := New(llm.CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		return "  ", nil
	}), testutil.NewTestLogger(t))
	assert.Equal(t, "", blank.Generate(context.Background(), "q", cityContext(t)))
}
