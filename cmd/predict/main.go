// Command predict generates a WikiSQL prediction stream with a language model
// and scores it with the best evaluator available.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"wikisqleval/internal/cli"
	"wikisqleval/internal/executor"
	"wikisqleval/internal/heavy"
	"wikisqleval/internal/materialize"
	"wikisqleval/internal/predict"
	"wikisqleval/internal/sqlparse"
	"wikisqleval/internal/synth"
)

func newCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "predict",
		Short:        "Generate WikiSQL predictions and evaluate them",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         run,
	}
	fs := cmd.Flags()
	cli.AddDataFlags(fs)
	cli.AddStoreFlags(fs)
	cli.AddEvalFlags(fs)
	fs.String("provider", "", "model provider: openai or anthropic")
	fs.String("model", "", "model name")
	fs.String("base-url", "", "OpenAI-compatible endpoint")
	fs.Bool("heavy", false, "review each query with the critique-revise loop")
	fs.Bool("skip-eval", false, "only write the prediction file")
	fs.Bool("save-pairs", false, "write scored pairs grouped by outcome")
	return cmd
}

func run(cmd *cobra.Command, _ []string) error {
	app, err := cli.Setup(cmd)
	if err != nil {
		return err
	}
	defer app.Close()
	ctx := cmd.Context()
	cfg, log := app.Config, app.Log

	ds, err := app.LoadDataset(ctx)
	if err != nil {
		return err
	}
	db, err := app.OpenStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	completer, stop, err := app.Completer()
	if err != nil {
		return err
	}
	defer stop()

	var reviewer predict.Reviewer
	if cfg.Heavy.Enabled {
		orch := heavy.New(completer, heavy.Config{
			Workers: cfg.Heavy.Workers,
			Timeout: cfg.Heavy.Timeout,
			Logger:  log,
		})
		defer orch.Close()
		reviewer = orch
	}

	runner, err := predict.New(predict.Config{
		Materializer: materialize.New(db, log),
		Synthesizer:  synth.New(completer, log),
		Parser:       sqlparse.New(log),
		Reviewer:     reviewer,
		Executor:     executor.New(db, log),
		Observe: func(r predict.Result) {
			app.Metrics.ObservePrediction(r.Prediction.OK(), r.Revised())
		},
		Logger: log,
	})
	if err != nil {
		return err
	}

	_, dir, err := predict.NewRunDir(cfg.Output)
	if err != nil {
		return err
	}
	if err := app.LogToFile(filepath.Join(dir, "run.log")); err != nil {
		log.Warn("run log disabled", "error", err)
	}

	sum, err := runner.RunToDir(ctx, ds, dir, cfg.Data.Limit, cfg.ModelLabel())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "predictions: %s (%d/%d succeeded, %d revised)\n",
		sum.Path, sum.Succeeded, sum.Total, sum.Revised)

	if skip, _ := cmd.Flags().GetBool("skip-eval"); skip {
		return nil
	}
	savePairs, _ := cmd.Flags().GetBool("save-pairs")
	_, err = app.Evaluate(ctx, cli.EvalOptions{
		PredPath:  sum.Path,
		RunID:     sum.RunID,
		OutputDir: filepath.Dir(sum.Path),
		SavePairs: savePairs,
		Out:       cmd.OutOrStdout(),
	})
	return err
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := newCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		cancel()
		os.Exit(1)
	}
}
