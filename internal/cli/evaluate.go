package cli

import (
	"context"
	"fmt"
	"io"

	"wikisqleval/internal/evaluator"
	"wikisqleval/internal/report"
)

// EvalOptions controls Evaluate.
type EvalOptions struct {
	PredPath string
	RunID    string
	// OutputDir receives the report and, when SavePairs is set, the
	// per-category pair files.
	OutputDir string
	SavePairs bool
	Out       io.Writer
}

// Evaluate scores a prediction file with the tier selector, saves the report
// and prints the summary tables.
func (a *App) Evaluate(ctx context.Context, opts EvalOptions) (*evaluator.Report, error) {
	in, err := a.EvalInput(ctx, opts.PredPath)
	if err != nil {
		return nil, err
	}
	rep, err := a.Selector().Evaluate(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("evaluation failed: %w", err)
	}
	rep.RunID = opts.RunID
	a.Metrics.ObserveReport(rep)

	r := report.NewReporter(opts.OutputDir)
	path, err := r.SaveReport(rep)
	if err != nil {
		return rep, err
	}
	a.Log.Info("report written", "path", path)

	report.PrintSummary(opts.Out, rep)
	if opts.SavePairs && len(rep.Pairs) > 0 {
		counts, err := r.SavePairs(rep.Pairs)
		if err != nil {
			return rep, err
		}
		report.PrintCategories(opts.Out, counts, len(rep.Pairs))
	}
	return rep, nil
}
