// Package testutil holds helpers shared by package tests.
package testutil

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type testWriter struct {
	t testing.TB
}

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

// NewTestLogger returns a debug-level logger that writes through t.Log.
func NewTestLogger(t testing.TB) *slog.Logger {
	return slog.New(slog.NewTextHandler(testWriter{t: t}, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// WriteFile writes content to dir/name and returns the path.
func WriteFile(t testing.TB, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// CityTable is the two-row table used across package tests, as a tables
// JSONL line.
const CityTable = `{"id": "1-10015132-11", "header": ["City", "Year"], "types": ["text", "text"], "rows": [["Boston", "2019"], ["Denver", "2020"]]}`

// CityQuestions are gold records over CityTable.
const CityQuestions = `{"question": "Which city is from 2020?", "table_id": "1-10015132-11", "sql": {"sel": 0, "agg": 0, "conds": [[1, 0, "2020"]]}}
{"question": "How many cities are there?", "table_id": "1-10015132-11", "sql": {"sel": 0, "agg": 3, "conds": []}}
{"question": "Which city is from 2019?", "table_id": "1-10015132-11", "sql": {"sel": 0, "agg": 0, "conds": [[1, 0, "2019"]]}}
`
