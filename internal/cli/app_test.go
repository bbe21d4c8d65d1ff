package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wikisqleval/internal/evaluator"
	"wikisqleval/internal/testutil"
)

const cityPreds = `{"query": {"sel": 0, "agg": 0, "conds": [[1, 0, "2020"]]}}
{"error": "no sql"}
{"query": {"sel": 0, "agg": 0, "conds": [[1, 0, "2019"]]}}
`

func setupApp(t *testing.T, args ...string) (*App, string) {
	t.Helper()
	root := t.TempDir()
	testutil.WriteFile(t, root, "data/dev.jsonl", testutil.CityQuestions)
	testutil.WriteFile(t, root, "data/dev.tables.jsonl", testutil.CityTable+"\n")

	cmd := &cobra.Command{Use: "test"}
	cmd.SetErr(io.Discard)
	AddDataFlags(cmd.Flags())
	AddStoreFlags(cmd.Flags())
	AddEvalFlags(cmd.Flags())
	base := []string{
		"--wikisql-path", root,
		"--data-dir", filepath.Join(root, "cache"),
		"--remote=false",
		"--output", filepath.Join(root, "out"),
		"--env-file", filepath.Join(root, "missing.env"),
	}
	require.NoError(t, cmd.Flags().Parse(append(base, args...)))

	app, err := Setup(cmd)
	require.NoError(t, err)
	return app, root
}

func TestSetup_FlagsReachConfig(t *testing.T) {
	app, root := setupApp(t, "--limit", "2", "--tier", "validator")
	assert.Equal(t, root, app.Config.Data.WikiSQLPath)
	assert.Equal(t, 2, app.Config.Data.Limit)
	assert.False(t, app.Config.Data.Remote)
	assert.Equal(t, evaluator.TierValidator, app.Config.Eval.Tier)
}

func TestLoadDataset(t *testing.T) {
	app, _ := setupApp(t, "--limit", "2")
	ds, err := app.LoadDataset(context.Background())
	require.NoError(t, err)
	assert.Len(t, ds.Questions, 2)
	assert.Len(t, ds.Tables, 1)
}

func TestEvalInput_WithoutDatabase(t *testing.T) {
	app, root := setupApp(t)
	in, err := app.EvalInput(context.Background(), "pred.jsonl")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "data", "dev.jsonl"), in.GoldPath)
	assert.Equal(t, filepath.Join(root, "data", "dev.tables.jsonl"), in.TablesPath)
	assert.Empty(t, in.DBPath)
	assert.Equal(t, "pred.jsonl", in.PredPath)
}

func TestEvaluate_ValidatorTier(t *testing.T) {
	app, root := setupApp(t, "--tier", "validator")
	app.Config.MetricsFile = filepath.Join(root, "run.prom")
	pred := testutil.WriteFile(t, root, "pred.jsonl", cityPreds)
	outDir := filepath.Join(root, "out", "run-1")

	var out bytes.Buffer
	rep, err := app.Evaluate(context.Background(), EvalOptions{
		PredPath:  pred,
		RunID:     "run-1",
		OutputDir: outDir,
		SavePairs: true,
		Out:       &out,
	})
	require.NoError(t, err)
	assert.Equal(t, evaluator.TierValidator, rep.Tier)
	assert.Equal(t, "run-1", rep.RunID)
	assert.Equal(t, 3, rep.Total)
	assert.Equal(t, 2, rep.ExCorrect)
	assert.Equal(t, 1, rep.Errors)

	assert.FileExists(t, filepath.Join(outDir, "evaluation_report.json"))
	assert.FileExists(t, filepath.Join(outDir, "pairs", "correct.jsonl"))
	assert.FileExists(t, filepath.Join(outDir, "pairs", "error.jsonl"))
	assert.Contains(t, out.String(), "validator")

	app.Close()
	data, err := os.ReadFile(app.Config.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `wikisql_eval_pairs_total{result="ex_correct",tier="validator"} 2`)
}

func TestEvaluate_MissingPredictions(t *testing.T) {
	app, root := setupApp(t, "--tier", "validator")
	_, err := app.Evaluate(context.Background(), EvalOptions{
		PredPath:  filepath.Join(root, "nope.jsonl"),
		OutputDir: filepath.Join(root, "out"),
		Out:       io.Discard,
	})
	assert.ErrorIs(t, err, evaluator.ErrUnavailable)
}

func TestLogToFile(t *testing.T) {
	app, root := setupApp(t)
	path := filepath.Join(root, "run.log")
	require.NoError(t, app.LogToFile(path))
	app.Log.Info("materialized tables", "count", 4)
	app.Close()
	app.Log.Info("after close")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "materialized tables count=4")
	assert.NotContains(t, string(data), "after close")
}

func TestOpenStore_LogsVersion(t *testing.T) {
	app, root := setupApp(t, "--db-type", "sqlite")
	path := filepath.Join(root, "store.log")
	require.NoError(t, app.LogToFile(path))

	db, err := app.OpenStore(context.Background())
	require.NoError(t, err)
	defer db.Close()
	app.Close()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "connected to store type=SQLite version=3.")
}
