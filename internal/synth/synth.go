package synth

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"wikisqleval/internal/llm"
)

// Synthesizer turns a question into SQL text with one model call.
type Synthesizer struct {
	llm llm.Completer
	log *slog.Logger
}

// New returns a Synthesizer over completer.
func New(completer llm.Completer, log *slog.Logger) *Synthesizer {
	if log == nil {
		log = slog.Default()
	}
	return &Synthesizer{llm: completer, log: log}
}

// Generate returns cleaned SQL, or "" when the call fails or returns nothing.
// It never retries; wrap the completer for that.
func (s *Synthesizer) Generate(ctx context.Context, question string, table TableContext) string {
	prompt, err := BuildPrompt(question, table)
	if err != nil {
		s.log.Error("failed to build prompt", "error", err)
		return ""
	}
	s.log.Debug("generating sql", "question", question, "table", table.Physical)

	resp, err := s.llm.Complete(ctx, prompt)
	if err != nil {
		s.log.Error("sql generation failed", "question", question, "error", err)
		return ""
	}
	sql := CleanSQL(resp)
	if sql == "" {
		s.log.Error("model returned no sql", "question", question)
		return ""
	}
	s.log.Debug("generated sql", "sql", sql)
	return sql
}

var (
	sqlFenceRe   = regexp.MustCompile("```sql\\s*")
	plainFenceRe = regexp.MustCompile("```\\s*")
)

// CleanSQL strips markdown fences and whitespace and ends the statement with
// a semicolon. Empty input stays empty.
func CleanSQL(s string) string {
	s = sqlFenceRe.ReplaceAllString(s, "")
	s = plainFenceRe.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if !strings.HasSuffix(s, ";") {
		s += ";"
	}
	return s
}
