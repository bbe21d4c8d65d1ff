package evaluator

import (
	"context"
	"fmt"
	"log/slog"

	"wikisqleval/internal/dataset"
	"wikisqleval/internal/executor"
	"wikisqleval/internal/query"
)

// PairResult is the score of one (gold, prediction) pair.
type PairResult struct {
	Index     int
	Question  dataset.Question
	Predicted query.Prediction
	Table     string

	ExCorrect bool
	LfCorrect bool
	// Err is set when the pair could not be scored normally: an error
	// prediction, a failed execution or a recovered panic.
	Err string

	GoldSQL  string
	PredSQL  string
	GoldRows executor.Rows
	PredRows executor.Rows
}

// Scorer walks a gold stream and a prediction stream in lockstep.
type Scorer struct {
	exec    *executor.Executor
	resolve TableResolver
	ordered bool
	log     *slog.Logger

	// OnPair, when set, is called after each pair is scored.
	OnPair func(PairResult)
}

// NewScorer scores pairs by running both queries through exec.
func NewScorer(exec *executor.Executor, resolve TableResolver, ordered bool, log *slog.Logger) *Scorer {
	if log == nil {
		log = slog.Default()
	}
	return &Scorer{exec: exec, resolve: resolve, ordered: ordered, log: log}
}

// Score evaluates min(len(gold), len(preds)) pairs. A failure inside a pair
// scores that pair false on both measures and the stream goes on; only
// context cancellation stops it.
func (s *Scorer) Score(ctx context.Context, gold []dataset.Question, preds []query.Prediction) (*Report, error) {
	n := min(len(gold), len(preds))
	if len(gold) != len(preds) {
		s.log.Warn("gold and prediction counts differ, evaluating common prefix",
			"gold", len(gold), "predictions", len(preds), "evaluated", n)
	}

	rep := &Report{GoldCount: len(gold), PredCount: len(preds), Total: n, Pairs: make([]PairResult, 0, n)}
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r := s.scorePair(ctx, i, gold[i], preds[i])
		if r.ExCorrect {
			rep.ExCorrect++
		}
		if r.LfCorrect {
			rep.LfCorrect++
		}
		if r.Err != "" {
			rep.Errors++
		}
		rep.Pairs = append(rep.Pairs, r)
		if s.OnPair != nil {
			s.OnPair(r)
		}
	}
	rep.finish()
	return rep, nil
}

func (s *Scorer) scorePair(ctx context.Context, i int, q dataset.Question, p query.Prediction) (r PairResult) {
	r = PairResult{Index: i, Question: q, Predicted: p}
	defer func() {
		if rec := recover(); rec != nil {
			s.log.Error("panic while scoring pair", "index", i, "panic", rec)
			r.ExCorrect, r.LfCorrect = false, false
			r.Err = fmt.Sprintf("panic: %v", rec)
		}
	}()

	fail := func(format string, args ...any) PairResult {
		r.ExCorrect, r.LfCorrect = false, false
		r.Err = fmt.Sprintf(format, args...)
		s.log.Debug("pair failed", "index", i, "error", r.Err)
		return r
	}

	if q.Invalid != "" {
		return fail("invalid gold record: %s", q.Invalid)
	}
	table, err := s.resolve.Resolve(ctx, q.TableID)
	if err != nil {
		return fail("table lookup: %v", err)
	}
	r.Table = table

	if r.GoldSQL, err = s.exec.Render(ctx, table, q.SQL); err != nil {
		return fail("render gold: %v", err)
	}
	if r.GoldRows, err = s.exec.ExecuteSQL(ctx, r.GoldSQL); err != nil {
		return fail("execute gold: %v", err)
	}

	if !p.OK() {
		return fail("prediction error: %s", p.Error)
	}
	if err := p.Query.Validate(); err != nil {
		return fail("invalid prediction: %v", err)
	}
	if r.PredSQL, err = s.exec.Render(ctx, table, *p.Query); err != nil {
		return fail("render prediction: %v", err)
	}
	if r.PredRows, err = s.exec.ExecuteSQL(ctx, r.PredSQL); err != nil {
		return fail("execute prediction: %v", err)
	}

	r.ExCorrect = executor.RowsEqual(r.GoldRows, r.PredRows)
	r.LfCorrect = p.Query.Equal(q.SQL, s.ordered)
	return r
}
