// Package report writes evaluation and materialization results to disk and
// renders them as console tables.
package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"wikisqleval/internal/evaluator"
	"wikisqleval/internal/materialize"
)

// Pair categories used for the per-category files.
const (
	CategoryCorrect   = "correct"
	CategoryExOnly    = "execution_only"
	CategoryLfOnly    = "logical_form_only"
	CategoryIncorrect = "incorrect"
	CategoryError     = "error"
)

// Reporter saves run artifacts under OutputDir.
type Reporter struct {
	OutputDir string
}

func NewReporter(outputDir string) *Reporter {
	return &Reporter{OutputDir: outputDir}
}

// SaveReport writes rep as indented JSON and returns the path.
func (r *Reporter) SaveReport(rep *evaluator.Report) (string, error) {
	if err := os.MkdirAll(r.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}
	path := filepath.Join(r.OutputDir, "evaluation_report.json")
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}

// Category classifies a scored pair.
func Category(p evaluator.PairResult) string {
	switch {
	case p.Err != "":
		return CategoryError
	case p.ExCorrect && p.LfCorrect:
		return CategoryCorrect
	case p.ExCorrect:
		return CategoryExOnly
	case p.LfCorrect:
		return CategoryLfOnly
	default:
		return CategoryIncorrect
	}
}

type pairRecord struct {
	Index    int     `json:"index"`
	Question string  `json:"question"`
	TableID  string  `json:"table_id"`
	Table    string  `json:"table,omitempty"`
	GoldSQL  string  `json:"gold_sql,omitempty"`
	PredSQL  string  `json:"pred_sql,omitempty"`
	GoldRows [][]any `json:"gold_rows,omitempty"`
	PredRows [][]any `json:"pred_rows,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// SavePairs writes one JSONL file per category under OutputDir/pairs and
// returns the number of pairs per category.
func (r *Reporter) SavePairs(pairs []evaluator.PairResult) (map[string]int, error) {
	dir := filepath.Join(r.OutputDir, "pairs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create pairs directory: %w", err)
	}

	byCategory := make(map[string][]evaluator.PairResult)
	for _, p := range pairs {
		c := Category(p)
		byCategory[c] = append(byCategory[c], p)
	}

	counts := make(map[string]int, len(byCategory))
	for c, ps := range byCategory {
		if err := writePairs(filepath.Join(dir, c+".jsonl"), ps); err != nil {
			return nil, fmt.Errorf("failed to write %s pairs: %w", c, err)
		}
		counts[c] = len(ps)
	}
	return counts, nil
}

func writePairs(path string, pairs []evaluator.PairResult) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, p := range pairs {
		rec := pairRecord{
			Index:    p.Index,
			Question: p.Question.Text,
			TableID:  p.Question.TableID,
			Table:    p.Table,
			GoldSQL:  p.GoldSQL,
			PredSQL:  p.PredSQL,
			GoldRows: p.GoldRows,
			PredRows: p.PredRows,
			Error:    p.Err,
		}
		if err := enc.Encode(rec); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Close()
}

func percent(v float64) string {
	return strconv.FormatFloat(v*100, 'f', 2, 64) + "%"
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	t := tablewriter.NewWriter(w)
	t.SetAutoWrapText(false)
	t.SetAutoFormatHeaders(false)
	t.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	t.SetAlignment(tablewriter.ALIGN_LEFT)
	t.SetBorder(true)
	t.SetHeader(header)
	return t
}

// PrintSummary renders the headline numbers of rep.
func PrintSummary(w io.Writer, rep *evaluator.Report) {
	t := newTable(w, []string{"Metric", "Value"})
	t.Append([]string{"Tier", rep.Tier})
	if rep.RunID != "" {
		t.Append([]string{"Run", rep.RunID})
	}
	t.Append([]string{"Gold records", strconv.Itoa(rep.GoldCount)})
	t.Append([]string{"Predictions", strconv.Itoa(rep.PredCount)})
	t.Append([]string{"Scored", strconv.Itoa(rep.Total)})
	t.Append([]string{"Execution accuracy", fmt.Sprintf("%s (%d)", percent(rep.ExAccuracy), rep.ExCorrect)})
	t.Append([]string{"Logical form accuracy", fmt.Sprintf("%s (%d)", percent(rep.LfAccuracy), rep.LfCorrect)})
	t.Append([]string{"Errors", strconv.Itoa(rep.Errors)})
	t.Render()

	if len(rep.Degraded) > 0 {
		d := newTable(w, []string{"Skipped tier", "Reason"})
		for _, s := range rep.Degraded {
			d.Append([]string{s.Tier, s.Reason})
		}
		d.Render()
	}
}

// PrintCategories renders the counts returned by SavePairs.
func PrintCategories(w io.Writer, counts map[string]int, total int) {
	names := make([]string, 0, len(counts))
	for c := range counts {
		names = append(names, c)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})

	t := newTable(w, []string{"Category", "Count", "Share"})
	for _, c := range names {
		share := 0.0
		if total > 0 {
			share = float64(counts[c]) / float64(total)
		}
		t.Append([]string{c, strconv.Itoa(counts[c]), percent(share)})
	}
	t.Render()
}

// PrintMaterialized renders one row per materialized table, sorted by
// physical name.
func PrintMaterialized(w io.Writer, mappings []*materialize.Mapping) {
	sorted := append([]*materialize.Mapping(nil), mappings...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Physical < sorted[j].Physical })

	t := newTable(w, []string{"Table ID", "Physical", "Columns", "Rows", "Skipped"})
	for _, m := range sorted {
		t.Append([]string{
			m.TableID,
			m.Physical,
			strconv.Itoa(len(m.Columns)),
			strconv.Itoa(m.Inserted),
			strconv.Itoa(m.Skipped),
		})
	}
	t.Render()
}

// PrintIssues renders data quality findings.
func PrintIssues(w io.Writer, issues []materialize.Issue) {
	sorted := append([]materialize.Issue(nil), issues...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Table < sorted[j].Table })

	t := newTable(w, []string{"Table", "Column", "Header", "Issue", "Detail"})
	for _, is := range sorted {
		detail := is.Description
		if len(is.Examples) > 0 {
			detail += " e.g. " + strings.Join(is.Examples, ", ")
		}
		t.Append([]string{is.Table, is.Column, is.Header, is.Kind, detail})
	}
	t.Render()
}
