// Package synth asks a language model for one SQL statement per question.
package synth

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"wikisqleval/internal/dataset"
	"wikisqleval/internal/materialize"
)

// DefaultSampleRows bounds the sample rows shown to the model.
const DefaultSampleRows = 5

// TableContext is what the model sees of a table.
type TableContext struct {
	Physical    string
	Description string
	Columns     []ColumnInfo
	Samples     [][]string
}

// ColumnInfo is one column of a TableContext.
type ColumnInfo struct {
	Name   string // physical, col<i>
	Header string
	Type   string
}

// NewTableContext describes t as materialized by mp. Types come from the
// mapping when present, otherwise from the table's annotations.
func NewTableContext(t *dataset.Table, mp *materialize.Mapping, maxRows int) TableContext {
	if maxRows <= 0 {
		maxRows = DefaultSampleRows
	}
	tc := TableContext{Description: t.Name}
	if tc.Description == "" {
		tc.Description = "no description"
	}
	if mp != nil {
		tc.Physical = mp.Physical
	}
	for i, h := range t.Header {
		col := ColumnInfo{Name: materialize.ColumnName(i), Header: h, Type: t.DeclaredType(i)}
		if mp != nil {
			if name, ok := mp.Column(i); ok {
				col.Name = name
			}
			if i < len(mp.Types) {
				col.Type = strings.ToLower(string(mp.Types[i]))
			}
		}
		tc.Columns = append(tc.Columns, col)
	}
	for i, row := range t.Rows {
		if i >= maxRows {
			break
		}
		cells := make([]string, len(row))
		for j, v := range row {
			if v == nil {
				cells[j] = ""
				continue
			}
			cells[j] = fmt.Sprint(v)
		}
		tc.Samples = append(tc.Samples, cells)
	}
	return tc
}

const promptTemplate = `You are an expert at writing SQL queries. Write the SQL query that answers the natural language question below.

Table information:
Table name: {{.Table.Physical}}
Table description: {{.Table.Description}}
Columns:
{{- range .Table.Columns}}
  {{.Name}}: {{.Header}} ({{.Type}})
{{- end}}
{{- if .Table.Samples}}

Sample data (first {{len .Table.Samples}} rows):
{{- range $i, $row := .Table.Samples}}
  Row {{inc $i}}: {{join $row}}
{{- end}}
{{- end}}

Rules:
1. Column names must use the col0, col1, col2... format
2. Use the exact table name given above
3. Return only the SQL query, with no explanation
4. Use standard SQLite syntax
5. Only use an aggregate function when the question clearly needs one
6. Only add WHERE conditions that the question explicitly states

Aggregate function guide:
- "how many" / "count" -> COUNT()
- "minimum" / "smallest" -> MIN()
- "maximum" / "largest" -> MAX()
- "sum" / "total" (adding up) -> SUM()
- "average" -> AVG()

Note: "total amount" may mean a count (COUNT) or a maximum (MAX); decide from context.

Question: {{.Question}}

Analyze the question type and every condition, then write the complete SQL query:
`

var tmpl = template.Must(template.New("synth").Funcs(template.FuncMap{
	"inc":  func(i int) int { return i + 1 },
	"join": func(cells []string) string { return "[" + strings.Join(quoteAll(cells), ", ") + "]" },
}).Parse(promptTemplate))

func quoteAll(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = fmt.Sprintf("%q", c)
	}
	return out
}

// BuildPrompt renders the synthesis prompt.
func BuildPrompt(question string, table TableContext) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, struct {
		Question string
		Table    TableContext
	}{question, table}); err != nil {
		return "", err
	}
	return buf.String(), nil
}
