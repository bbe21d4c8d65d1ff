package dataset

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"
)

// Dataset is one loaded split.
type Dataset struct {
	Split     string
	Questions []Question
	Tables    map[string]*Table
}

// Stats summarizes how well questions and tables line up.
type Stats struct {
	TotalQuestions int `json:"total_questions"`
	TotalTables    int `json:"total_tables"`
	MissingTables  int `json:"missing_tables"`
	ValidPairs     int `json:"valid_pairs"`
}

// LoadOptions controls Load.
type LoadOptions struct {
	Split  string
	Limit  int
	Logger *slog.Logger
}

// Load resolves and reads the questions and tables of a split concurrently.
// A missing file aborts the load with a *MissingFileError.
func Load(ctx context.Context, src Source, opts LoadOptions) (*Dataset, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	ds := &Dataset{Split: opts.Split}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		path, err := src.Locate(gctx, opts.Split, Questions)
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open questions: %w", err)
		}
		defer f.Close()
		qs, err := ReadQuestions(f, opts.Limit, log)
		if err != nil {
			return err
		}
		ds.Questions = qs
		return nil
	})
	g.Go(func() error {
		path, err := src.Locate(gctx, opts.Split, Tables)
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open tables: %w", err)
		}
		defer f.Close()
		ts, err := ReadTables(f, log)
		if err != nil {
			return err
		}
		ds.Tables = ts
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Info("dataset loaded", "split", opts.Split, "questions", len(ds.Questions), "tables", len(ds.Tables))
	return ds, nil
}

// Table returns the table of a question, nil if it is missing.
func (d *Dataset) Table(q Question) *Table {
	return d.Tables[q.TableID]
}

// Stats counts questions whose table is present.
func (d *Dataset) Stats() Stats {
	s := Stats{TotalQuestions: len(d.Questions), TotalTables: len(d.Tables)}
	for _, q := range d.Questions {
		if q.Invalid != "" {
			continue
		}
		if _, ok := d.Tables[q.TableID]; ok {
			s.ValidPairs++
		} else {
			s.MissingTables++
		}
	}
	return s
}
