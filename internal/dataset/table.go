// Package dataset loads WikiSQL questions, tables and prediction streams.
package dataset

import (
	"fmt"

	"wikisqleval/internal/query"
)

// Table is a logical WikiSQL table. Cells keep their decoded JSON form:
// string, json.Number or nil.
type Table struct {
	ID     string   `json:"id"`
	Name   string   `json:"name,omitempty"`
	Header []string `json:"header"`
	Types  []string `json:"types"`
	Rows   [][]any  `json:"rows"`
}

// Width is the number of declared columns.
func (t *Table) Width() int {
	return len(t.Header)
}

// Column returns the i-th cell of every row, nil where a row is too short.
func (t *Table) Column(i int) []any {
	out := make([]any, len(t.Rows))
	for r, row := range t.Rows {
		if i < len(row) {
			out[r] = row[i]
		}
	}
	return out
}

// DeclaredType returns the annotated type of column i, "text" if missing.
func (t *Table) DeclaredType(i int) string {
	if i < len(t.Types) && t.Types[i] != "" {
		return t.Types[i]
	}
	return "text"
}

// Validate reports shape problems. None of them are fatal: source tables are
// not guaranteed to be clean.
func (t *Table) Validate() []string {
	var warnings []string
	if len(t.Header) == 0 {
		warnings = append(warnings, "table has no header")
	}
	if len(t.Types) != 0 && len(t.Types) != len(t.Header) {
		warnings = append(warnings, fmt.Sprintf("%d types for %d columns", len(t.Types), len(t.Header)))
	}
	for i, row := range t.Rows {
		if len(row) != len(t.Header) {
			warnings = append(warnings, fmt.Sprintf("row %d has %d cells, header has %d", i, len(row), len(t.Header)))
		}
	}
	return warnings
}

// Question is one gold record. ID is its position in the source file.
type Question struct {
	ID      int         `json:"-"`
	Text    string      `json:"question"`
	TableID string      `json:"table_id"`
	SQL     query.Query `json:"sql"`
	Phase   int         `json:"phase,omitempty"`

	// Invalid is set when the source line could not be decoded. The record
	// keeps its position so prediction streams stay aligned.
	Invalid string `json:"-"`
}
