// Command evaluate scores an existing WikiSQL prediction file.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"wikisqleval/internal/cli"
)

func newCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "evaluate --pred <predictions.jsonl>",
		Short:        "Score a WikiSQL prediction file",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         run,
	}
	fs := cmd.Flags()
	cli.AddDataFlags(fs)
	cli.AddEvalFlags(fs)
	fs.String("pred", "", "prediction JSONL file")
	fs.Bool("save-pairs", false, "write scored pairs grouped by outcome")
	_ = cmd.MarkFlagRequired("pred")
	return cmd
}

func run(cmd *cobra.Command, _ []string) error {
	app, err := cli.Setup(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	pred, _ := cmd.Flags().GetString("pred")
	savePairs, _ := cmd.Flags().GetBool("save-pairs")
	runID := uuid.NewString()

	_, err = app.Evaluate(cmd.Context(), cli.EvalOptions{
		PredPath:  pred,
		RunID:     runID,
		OutputDir: filepath.Join(app.Config.Output, runID),
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
