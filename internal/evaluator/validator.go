package evaluator

import (
	"context"
	"fmt"
	"log/slog"

	"wikisqleval/internal/adapter"
	"wikisqleval/internal/dataset"
	"wikisqleval/internal/executor"
	"wikisqleval/internal/materialize"
)

// ValidationReport is the per-question report of the validator tier.
type ValidationReport struct {
	TotalQuestions int                `json:"total_questions"`
	CorrectAnswers int                `json:"correct_answers"`
	Errors         int                `json:"errors"`
	Accuracy       float64            `json:"accuracy"`
	ErrorRate      float64            `json:"error_rate"`
	Results        []ValidationResult `json:"results"`
}

// ValidationResult is one question of a ValidationReport.
type ValidationResult struct {
	QuestionID      int           `json:"question_id"`
	Question        string        `json:"question"`
	TableID         string        `json:"table_id"`
	Correct         bool          `json:"correct"`
	Error           string        `json:"error,omitempty"`
	ExpectedSQL     string        `json:"expected_sql"`
	PredictedSQL    string        `json:"predicted_sql"`
	ExpectedResult  executor.Rows `json:"expected_result"`
	PredictedResult executor.Rows `json:"predicted_result"`
}

// Validator rebuilds the referenced tables in an in-memory SQLite store and
// produces a per-question report. It needs no official database.
type Validator struct {
	log *slog.Logger

	OnPair func(PairResult)
}

func NewValidator(log *slog.Logger) *Validator {
	if log == nil {
		log = slog.Default()
	}
	return &Validator{log: log}
}

func (v *Validator) Name() string { return TierValidator }

func (v *Validator) Available(_ context.Context, in Input) error {
	return requireFiles(in.GoldPath, in.TablesPath, in.PredPath)
}

func (v *Validator) Evaluate(ctx context.Context, in Input) (*Report, error) {
	if err := v.Available(ctx, in); err != nil {
		return nil, err
	}
	gold, preds, err := readStreams(in, v.log)
	if err != nil {
		return nil, err
	}
	tables, err := readTables(in.TablesPath, v.log)
	if err != nil {
		return nil, err
	}

	db, err := adapter.NewAdapter(&adapter.DBConfig{Type: string(adapter.SQLite), Logger: v.log})
	if err != nil {
		return nil, err
	}
	if err := db.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to open in-memory store: %w", err)
	}
	defer db.Close()

	m := materialize.New(db, v.log)
	n := min(len(gold), len(preds))
	needed := make(map[string]*dataset.Table)
	for _, q := range gold[:n] {
		if t, ok := tables[q.TableID]; ok {
			needed[q.TableID] = t
		}
	}
	if err := m.MaterializeAll(ctx, needed); err != nil {
		// Pairs on the failed tables score as errors.
		v.log.Warn("some tables failed to materialize", "error", err)
	}

	s := NewScorer(executor.New(db, v.log), RegistryResolver(m), in.Ordered, v.log)
	s.OnPair = v.OnPair
	rep, err := s.Score(ctx, gold, preds)
	if err != nil {
		return nil, err
	}
	rep.Tier = TierValidator
	rep.Validation = NewValidationReport(rep.Pairs)
	return rep, nil
}

// NewValidationReport summarizes scored pairs. Correct means execution match.
func NewValidationReport(pairs []PairResult) *ValidationReport {
	vr := &ValidationReport{TotalQuestions: len(pairs), Results: make([]ValidationResult, 0, len(pairs))}
	for _, p := range pairs {
		if p.ExCorrect {
			vr.CorrectAnswers++
		}
		if p.Err != "" {
			vr.Errors++
		}
		vr.Results = append(vr.Results, ValidationResult{
			QuestionID:      p.Question.ID,
			Question:        p.Question.Text,
			TableID:         p.Question.TableID,
			Correct:         p.ExCorrect,
			Error:           p.Err,
			ExpectedSQL:     p.GoldSQL,
			PredictedSQL:    p.PredSQL,
			ExpectedResult:  p.GoldRows,
			PredictedResult: p.PredRows,
		})
	}
	if vr.TotalQuestions > 0 {
		vr.Accuracy = float64(vr.CorrectAnswers) / float64(vr.TotalQuestions)
		vr.ErrorRate = float64(vr.Errors) / float64(vr.TotalQuestions)
	}
	return vr
}
