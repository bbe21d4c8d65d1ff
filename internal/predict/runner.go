// Package predict generates WikiSQL prediction streams: each question is
// answered by materializing its table, asking the model for SQL, optionally
// reviewing that SQL with the critique loop, and parsing the result back into
// the bounded query model.
package predict

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"wikisqleval/internal/dataset"
	"wikisqleval/internal/executor"
	"wikisqleval/internal/heavy"
	"wikisqleval/internal/logger"
	"wikisqleval/internal/materialize"
	"wikisqleval/internal/query"
	"wikisqleval/internal/sqlparse"
	"wikisqleval/internal/synth"
)

// Mode names used in output file names.
const (
	ModeNormal = "normal"
	ModeHeavy  = "heavy"
)

// Reviewer is the critique-revise loop as seen by the runner.
type Reviewer interface {
	Analyze(ctx context.Context, question string, table heavy.TableInfo, sql string) (*heavy.Analysis, error)
}

// Config wires a Runner. Reviewer is nil in normal mode.
type Config struct {
	Materializer *materialize.Materializer
	Synthesizer  *synth.Synthesizer
	Parser       sqlparse.Parser
	Reviewer     Reviewer
	// Executor, when set, runs the final SQL so the rows show up in debug logs.
	Executor   *executor.Executor
	SampleRows int
	// Observe is called once per question after its prediction is decided.
	Observe func(Result)
	Logger  *slog.Logger
}

// Result is the outcome for one question.
type Result struct {
	Index      int
	Question   dataset.Question
	SQL        string // SQL that was parsed, after any accepted revision
	Prediction query.Prediction
	Analysis   *heavy.Analysis
	Duration   time.Duration
}

// Revised reports whether the critique loop replaced the generated SQL.
func (r Result) Revised() bool {
	return r.Analysis != nil && r.Analysis.Revised
}

// Summary counts the outcome of a run.
type Summary struct {
	RunID     string `json:"run_id"`
	Path      string `json:"path"`
	Total     int    `json:"total"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Revised   int    `json:"revised"`
}

type Runner struct {
	cfg Config
	log *slog.Logger
}

func New(cfg Config) (*Runner, error) {
	if cfg.Materializer == nil || cfg.Synthesizer == nil {
		return nil, errors.New("predict: materializer and synthesizer are required")
	}
	if cfg.Parser == nil {
		cfg.Parser = sqlparse.New(cfg.Logger)
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Runner{cfg: cfg, log: log}, nil
}

// Mode is ModeHeavy when a reviewer is configured.
func (r *Runner) Mode() string {
	if r.cfg.Reviewer != nil {
		return ModeHeavy
	}
	return ModeNormal
}

// Predict answers one question. Every failure becomes an error record.
func (r *Runner) Predict(ctx context.Context, ds *dataset.Dataset, q dataset.Question) (res Result) {
	start := time.Now()
	res = Result{Index: q.ID, Question: q}
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("prediction panicked", "question_id", q.ID, "panic", rec)
			res.Prediction = query.Failure(fmt.Sprintf("panic: %v", rec))
		}
		res.Duration = time.Since(start)
	}()

	if q.Invalid != "" {
		res.Prediction = query.Failure("invalid question record: " + q.Invalid)
		return res
	}
	table := ds.Table(q)
	if table == nil {
		res.Prediction = query.Failure(fmt.Sprintf("table %s not found", q.TableID))
		return res
	}
	mp, err := r.materialize(ctx, table)
	if err != nil {
		res.Prediction = query.Failure(fmt.Sprintf("materialization failed: %v", err))
		return res
	}

	sql := r.cfg.Synthesizer.Generate(ctx, q.Text, synth.NewTableContext(table, mp, r.cfg.SampleRows))
	if sql == "" {
		res.Prediction = query.Failure("SQL generation failed")
		return res
	}
	res.SQL = sql

	if r.cfg.Reviewer != nil {
		analysis, err := r.cfg.Reviewer.Analyze(ctx, q.Text, heavy.NewTableInfo(table, mp.Physical), sql)
		if err != nil {
			r.log.Warn("heavy analysis failed", "question_id", q.ID, "error", err)
			res.Prediction = query.Failure("Heavy analysis failed: " + err.Error())
			return res
		}
		res.Analysis = analysis
		res.SQL = analysis.FinalSQL
		r.log.Debug("heavy analysis",
			"question_id", q.ID,
			"confidence", analysis.Confidence,
			"revised", analysis.Revised,
			"reason", analysis.RevisionReason,
		)
	}

	parsed, err := r.cfg.Parser.Parse(res.SQL)
	if err != nil && res.Analysis != nil && res.Analysis.Revised {
		r.log.Warn("revised sql does not parse, keeping the original", "question_id", q.ID, "error", err)
		res.Analysis.Revised = false
		res.Analysis.FinalSQL = res.Analysis.OriginalSQL
		res.Analysis.RevisionReason = "revised sql does not parse"
		res.SQL = res.Analysis.OriginalSQL
		parsed, err = r.cfg.Parser.Parse(res.SQL)
	}
	if err != nil {
		res.Prediction = query.Failure(fmt.Sprintf("SQL parsing failed: %s", res.SQL))
		return res
	}
	res.Prediction = query.Success(*parsed)
	if res.Analysis != nil {
		res.Prediction = res.Prediction.WithHeavy(res.Analysis.Confidence, res.Analysis.Synthesis.Successful)
	}

	if r.cfg.Executor != nil {
		if err := r.cfg.Executor.Validate(ctx, res.SQL); err != nil {
			r.log.Warn("generated sql does not plan against the store", "question_id", q.ID, "error", err)
			return res
		}
		rows, err := r.cfg.Executor.ExecuteReadOnly(ctx, res.SQL)
		if err != nil {
			r.log.Debug("generated sql failed to execute", "question_id", q.ID, "error", err)
		} else {
			r.log.Debug("generated sql result", "question_id", q.ID, "rows", len(rows))
		}
	}
	return res
}

func (r *Runner) materialize(ctx context.Context, t *dataset.Table) (*materialize.Mapping, error) {
	if mp, ok := r.cfg.Materializer.Lookup(t.ID); ok {
		return mp, nil
	}
	return r.cfg.Materializer.Materialize(ctx, t)
}

// Run predicts every question of ds in order and writes one record per
// question to w. It stops early only when ctx is done.
func (r *Runner) Run(ctx context.Context, ds *dataset.Dataset, w io.Writer) (Summary, error) {
	progress := logger.NewProgress(len(ds.Questions), r.log)
	progress.SetPhase("predicting " + ds.Split)

	var sum Summary
	preds := make([]query.Prediction, 0, len(ds.Questions))
	for _, q := range ds.Questions {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		task := fmt.Sprintf("question %d", q.ID)
		progress.StartTask(task)

		res := r.Predict(ctx, ds, q)
		preds = append(preds, res.Prediction)
		sum.Total++
		if res.Prediction.OK() {
			sum.Succeeded++
			progress.CompleteTask(task)
		} else {
			sum.Failed++
			progress.FailTask(task, errors.New(res.Prediction.Error))
		}
		if res.Revised() {
			sum.Revised++
		}
		if r.cfg.Observe != nil {
			r.cfg.Observe(res)
		}
	}
	progress.LogSummary()

	if err := dataset.WritePredictions(w, preds); err != nil {
		return sum, fmt.Errorf("failed to write predictions: %w", err)
	}
	return sum, nil
}

// FileName is the conventional name of a prediction stream.
func FileName(split string, limit int, model, mode string) string {
	return fmt.Sprintf("predictions_%s_%d_%s_%s.jsonl", split, limit, model, mode)
}

// NewRunDir creates a fresh run directory under outputDir named by a new run
// id.
func NewRunDir(outputDir string) (string, string, error) {
	runID := uuid.NewString()
	dir := filepath.Join(outputDir, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("failed to create run directory: %w", err)
	}
	return runID, dir, nil
}

// RunToDir runs ds and writes the stream into the run directory dir created
// by NewRunDir. The summary carries the run id and the written path.
func (r *Runner) RunToDir(ctx context.Context, ds *dataset.Dataset, dir string, limit int, model string) (Summary, error) {
	runID := filepath.Base(dir)
	path := filepath.Join(dir, FileName(ds.Split, limit, model, r.Mode()))
	f, err := os.Create(path)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to create prediction file: %w", err)
	}

	sum, err := r.Run(ctx, ds, f)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = cerr
	}
	sum.RunID = runID
	sum.Path = path
	if err != nil {
		return sum, err
	}
	r.log.Info("predictions written",
		"path", path,
		"total", sum.Total,
		"succeeded", sum.Succeeded,
		"failed", sum.Failed,
		"revised", sum.Revised,
	)
	return sum, nil
}
