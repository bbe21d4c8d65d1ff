// Package cli holds the bootstrap shared by the commands under cmd/: flag
// registration, configuration, logging, metrics and collaborator wiring.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"wikisqleval/internal/adapter"
	"wikisqleval/internal/config"
	"wikisqleval/internal/dataset"
	"wikisqleval/internal/evaluator"
	"wikisqleval/internal/llm"
	"wikisqleval/internal/logger"
	"wikisqleval/internal/metrics"
)

// AddDataFlags registers the flags every command shares.
func AddDataFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "config file (default ./"+config.DefaultFile+" when present)")
	fs.String("env-file", "", "dotenv file loaded before the environment (default .env)")
	fs.String("split", "", "dataset split: dev, test or train")
	fs.Int("limit", 0, "maximum number of questions, 0 for all")
	fs.String("wikisql-path", "", "path to a WikiSQL checkout")
	fs.String("data-dir", "", "cache directory for downloaded split files")
	fs.Bool("remote", true, "download missing split files")
	fs.String("output", "", "output directory")
	fs.String("metrics-file", "", "write Prometheus metrics to this file on exit")
	fs.BoolP("verbose", "v", false, "debug logging")
}

// AddStoreFlags registers the relational store flags.
func AddStoreFlags(fs *pflag.FlagSet) {
	fs.String("db-type", "", "store type: sqlite, postgresql or mysql")
	fs.String("db-path", "", "SQLite file, empty for in-memory")
}

// AddEvalFlags registers the evaluator flags.
func AddEvalFlags(fs *pflag.FlagSet) {
	fs.String("tier", "", "force one evaluator tier: official, compatible or validator")
	fs.Bool("ordered", false, "compare conditions positionally")
	fs.String("python", "", "python interpreter for the official evaluator")
}

// App is the wiring of one command invocation.
type App struct {
	Config  *config.Config
	Log     *slog.Logger
	Metrics *metrics.Metrics
	// Tee carries the log output; LogToFile copies it into a run directory.
	Tee *logger.Tee
}

// Setup loads configuration from cmd's flags and builds the logger and
// metrics registry.
func Setup(cmd *cobra.Command) (*App, error) {
	flags := cmd.Flags()
	file, _ := flags.GetString("config")
	envFile, _ := flags.GetString("env-file")

	cfg, err := config.Load(config.Options{File: file, EnvFile: envFile, Flags: flags})
	if err != nil {
		return nil, err
	}
	tee := logger.NewTee(cmd.ErrOrStderr())
	log := logger.New(tee, cfg.Verbose)
	slog.SetDefault(log)
	return &App{Config: cfg, Log: log, Metrics: metrics.New(), Tee: tee}, nil
}

// LogToFile copies subsequent log output to path until Close.
func (a *App) LogToFile(path string) error {
	if err := a.Tee.SetFile(path); err != nil {
		return err
	}
	a.Log.Debug("logging to file", "path", path)
	return nil
}

// Source resolves split files from the local checkout, then the data dir,
// then the network when remote downloads are enabled.
func (a *App) Source() dataset.Source {
	c := a.Config.Data
	chain := dataset.ChainSource{
		dataset.LocalSource{Root: c.WikiSQLPath},
		dataset.LocalSource{Root: c.DataDir},
	}
	if c.Remote {
		chain = append(chain, dataset.NewHTTPSource(c.DataDir, a.Log))
	}
	return chain
}

// LoadDataset loads the configured split.
func (a *App) LoadDataset(ctx context.Context) (*dataset.Dataset, error) {
	ds, err := dataset.Load(ctx, a.Source(), dataset.LoadOptions{
		Split:  a.Config.Data.Split,
		Limit:  a.Config.Data.Limit,
		Logger: a.Log,
	})
	if err != nil {
		return nil, err
	}
	stats := ds.Stats()
	a.Log.Info("dataset stats",
		"questions", stats.TotalQuestions,
		"tables", stats.TotalTables,
		"missing_tables", stats.MissingTables,
		"valid_pairs", stats.ValidPairs,
	)
	return ds, nil
}

// OpenStore connects to the configured relational store.
func (a *App) OpenStore(ctx context.Context) (adapter.DBAdapter, error) {
	db, err := adapter.NewAdapter(a.Config.DBConfig(a.Log))
	if err != nil {
		return nil, err
	}
	if err := db.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", db.GetDatabaseType(), err)
	}
	version, err := db.GetDatabaseVersion(ctx)
	if err != nil {
		a.Log.Debug("failed to read store version", "error", err)
	}
	a.Log.Info("connected to store", "type", db.GetDatabaseType(), "version", version)
	return db, nil
}

// Completer builds the model client with token and latency metrics.
func (a *App) Completer() (llm.Completer, func(), error) {
	return llm.New(a.Config.LLM, llm.Options{Logger: a.Log, Observer: a.Metrics.ObserveLLM})
}

// EvalInput locates the files of a split for the evaluator. A missing
// database is left empty so the tiers that need it report unavailable.
func (a *App) EvalInput(ctx context.Context, predPath string) (evaluator.Input, error) {
	src := a.Source()
	split := a.Config.Data.Split
	gold, err := src.Locate(ctx, split, dataset.Questions)
	if err != nil {
		return evaluator.Input{}, err
	}
	tables, err := src.Locate(ctx, split, dataset.Tables)
	if err != nil {
		return evaluator.Input{}, err
	}
	db, err := src.Locate(ctx, split, dataset.Database)
	if err != nil {
		a.Log.Debug("no official database for split", "split", split, "error", err)
		db = ""
	}
	return evaluator.Input{
		GoldPath:   gold,
		TablesPath: tables,
		DBPath:     db,
		PredPath:   predPath,
		Ordered:    a.Config.Eval.Ordered,
	}, nil
}

// Selector builds the tiered evaluator with per-pair metrics.
func (a *App) Selector() *evaluator.Selector {
	e := a.Config.Eval
	script := e.Script
	if !filepath.IsAbs(script) && a.Config.Data.WikiSQLPath != "" {
		if _, err := os.Stat(script); err != nil {
			script = filepath.Join(a.Config.Data.WikiSQLPath, "evaluate.py")
		}
	}
	official := evaluator.NewOfficial(evaluator.OfficialConfig{Python: e.Python, Script: script, Timeout: e.Timeout}, a.Log)
	compatible := evaluator.NewCompatible(a.Log)
	compatible.OnPair = a.Metrics.PairObserver(evaluator.TierCompatible)
	validator := evaluator.NewValidator(a.Log)
	validator.OnPair = a.Metrics.PairObserver(evaluator.TierValidator)
	return evaluator.NewSelector(a.Log, e.Tier, official, compatible, validator)
}

// Close writes the metrics file when one is configured and closes the log
// file.
func (a *App) Close() {
	defer a.Tee.CloseFile()
	if a.Config.MetricsFile == "" {
		return
	}
	if err := a.Metrics.WriteFile(a.Config.MetricsFile); err != nil {
		a.Log.Error("failed to write metrics", "path", a.Config.MetricsFile, "error", err)
		return
	}
	a.Log.Info("metrics written", "path", a.Config.MetricsFile)
}
