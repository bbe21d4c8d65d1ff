// Command materialize loads every table of a WikiSQL split into a relational
// store, SQLite by default.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"wikisqleval/internal/adapter"
	"wikisqleval/internal/cli"
	"wikisqleval/internal/materialize"
	"wikisqleval/internal/report"
)

func newCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "materialize",
		Short:        "Build a database holding every table of a split",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         run,
	}
	fs := cmd.Flags()
	cli.AddDataFlags(fs)
	cli.AddStoreFlags(fs)
	fs.Bool("quiet", false, "do not print the table listing")
	fs.Bool("check", false, "run data quality checks on every materialized table")
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

	if adapter.DatabaseType(cfg.Database.Type) == adapter.SQLite && cfg.Database.Path == "" {
		if err := os.MkdirAll(cfg.Output, 0o755); err != nil {
			return err
		}
		cfg.Database.Path = filepath.Join(cfg.Output, cfg.Data.Split+".db")
	}

	ds, err := app.LoadDataset(ctx)
	if err != nil {
		return err
	}
	db, err := app.OpenStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	m := materialize.New(db, log)
	matErr := m.MaterializeAll(ctx, ds.Tables)
	mappings := m.Mappings()

	if quiet, _ := cmd.Flags().GetBool("quiet"); !quiet {
		report.PrintMaterialized(cmd.OutOrStdout(), mappings)
	}
	if check, _ := cmd.Flags().GetBool("check"); check {
		var issues []materialize.Issue
		for _, mp := range mappings {
			found, err := materialize.Check(ctx, db, mp)
			if err != nil {
				log.Warn("quality check failed", "table", mp.Physical, "error", err)
			}
			issues = append(issues, found...)
		}
		report.PrintIssues(cmd.OutOrStdout(), issues)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "materialized %d/%d tables into %s %s\n",
		len(mappings), len(ds.Tables), db.GetDatabaseType(), cfg.Database.Path)

	if matErr != nil {
		if errors.Is(matErr, context.Canceled) || len(mappings) == 0 {
			return matErr
		}
		log.Warn("some tables failed to materialize", "failed", len(ds.Tables)-len(mappings), "error", matErr)
	}
	return nil
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
