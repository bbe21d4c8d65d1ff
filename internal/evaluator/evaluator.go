// Package evaluator scores prediction streams against WikiSQL gold queries by
// execution accuracy and logical-form accuracy. Three tiers implement the
// same Evaluator interface and a Selector picks the best one available.
package evaluator

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when a tier cannot run in this environment.
var ErrUnavailable = errors.New("evaluator unavailable")

// Tier names.
const (
	TierOfficial   = "official"
	TierCompatible = "compatible"
	TierValidator  = "validator"
)

// Input names the files of one evaluation run.
type Input struct {
	GoldPath   string // questions JSONL
	TablesPath string // tables JSONL
	DBPath     string // official SQLite database
	PredPath   string // predictions JSONL
	Ordered    bool   // compare conditions positionally
}

// Evaluator is one way of computing accuracy.
type Evaluator interface {
	Name() string
	// Available returns nil when the tier can run for in, otherwise an error
	// wrapping ErrUnavailable.
	Available(ctx context.Context, in Input) error
	Evaluate(ctx context.Context, in Input) (*Report, error)
}

// Degradation records a tier that was skipped.
type Degradation struct {
	Tier   string `json:"tier"`
	Reason string `json:"reason"`
}

// Report is the outcome of an evaluation run.
type Report struct {
	RunID    string        `json:"run_id,omitempty"`
	Tier     string        `json:"tier"`
	Degraded []Degradation `json:"degraded,omitempty"`

	GoldCount int `json:"gold_count"`
	PredCount int `json:"pred_count"`
	Total     int `json:"total"`

	ExCorrect  int     `json:"ex_correct"`
	LfCorrect  int     `json:"lf_correct"`
	Errors     int     `json:"errors"`
	ExAccuracy float64 `json:"ex_accuracy"`
	LfAccuracy float64 `json:"lf_accuracy"`

	Pairs      []PairResult      `json:"-"`
	Validation *ValidationReport `json:"validation,omitempty"`
}

func (r *Report) finish() {
	if r.Total > 0 {
		r.ExAccuracy = float64(r.ExCorrect) / float64(r.Total)
		r.LfAccuracy = float64(r.LfCorrect) / float64(r.Total)
	}
}
