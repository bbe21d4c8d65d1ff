package evaluator

import (
	"fmt"
	"log/slog"
	"os"

	"wikisqleval/internal/dataset"
	"wikisqleval/internal/query"
)

// requireFiles returns an ErrUnavailable error naming the first missing file.
func requireFiles(files ...string) error {
	for _, f := range files {
		if f == "" {
			return fmt.Errorf("%w: required input path not configured", ErrUnavailable)
		}
		if _, err := os.Stat(f); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrUnavailable, f, err)
		}
	}
	return nil
}

func readGold(path string, log *slog.Logger) ([]dataset.Question, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open gold file: %w", err)
	}
	defer f.Close()
	return dataset.ReadQuestions(f, 0, log)
}

func readPredictions(path string, log *slog.Logger) ([]query.Prediction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open predictions file: %w", err)
	}
	defer f.Close()
	return dataset.ReadPredictions(f, log)
}

func readTables(path string, log *slog.Logger) (map[string]*dataset.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open tables file: %w", err)
	}
	defer f.Close()
	return dataset.ReadTables(f, log)
}

func readStreams(in Input, log *slog.Logger) ([]dataset.Question, []query.Prediction, error) {
	gold, err := readGold(in.GoldPath, log)
	if err != nil {
		return nil, nil, err
	}
	preds, err := readPredictions(in.PredPath, log)
	if err != nil {
		return nil, nil, err
	}
	return gold, preds, nil
}
