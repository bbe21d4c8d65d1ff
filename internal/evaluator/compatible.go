package evaluator

import (
	"context"
	"fmt"
	"log/slog"

	"wikisqleval/internal/adapter"
	"wikisqleval/internal/executor"
)

// Compatible scores predictions against the official WikiSQL SQLite database
// without the Python toolchain.
type Compatible struct {
	log *slog.Logger

	// OnPair is forwarded to the scorer.
	OnPair func(PairResult)
}

func NewCompatible(log *slog.Logger) *Compatible {
	if log == nil {
		log = slog.Default()
	}
	return &Compatible{log: log}
}

func (c *Compatible) Name() string { return TierCompatible }

func (c *Compatible) Available(_ context.Context, in Input) error {
	return requireFiles(in.DBPath, in.GoldPath, in.PredPath)
}

func (c *Compatible) Evaluate(ctx context.Context, in Input) (*Report, error) {
	if err := c.Available(ctx, in); err != nil {
		return nil, err
	}
	gold, preds, err := readStreams(in, c.log)
	if err != nil {
		return nil, err
	}

	db, err := adapter.NewAdapter(&adapter.DBConfig{Type: string(adapter.SQLite), FilePath: in.DBPath, Logger: c.log})
	if err != nil {
		return nil, err
	}
	if err := db.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", in.DBPath, err)
	}
	defer db.Close()

	s := NewScorer(executor.New(db, c.log), NewDBResolver(db), in.Ordered, c.log)
	s.OnPair = c.OnPair
	rep, err := s.Score(ctx, gold, preds)
	if err != nil {
		return nil, err
	}
	rep.Tier = TierCompatible
	return rep, nil
}
