package evaluator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wikisqleval/internal/adapter"
	"wikisqleval/internal/dataset"
	"wikisqleval/internal/executor"
	"wikisqleval/internal/materialize"
	"wikisqleval/internal/query"
	"wikisqleval/internal/testutil"
)

const cityPreds = `{"query": {"sel": 0, "agg": 0, "conds": [[1, 0, "2020"]]}}
{"query": {"sel": 0, "agg": 3, "conds": [[1, 1, "2000"]]}}
{"error": "no sql"}
`

// buildCityDB writes the city table into an SQLite file laid out like the
// official WikiSQL databases.
func buildCityDB(t *testing.T, dir string) string {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(dir, "dev.db")
	db := adapter.NewSQLiteAdapter(&adapter.SQLiteConfig{FilePath: path}, testutil.NewTestLogger(t))
	require.NoError(t, db.Connect(ctx))
	defer db.Close()

	tables, err := dataset.ReadTables(strings.NewReader(testutil.CityTable), nil)
	require.NoError(t, err)
	mp, err := materialize.New(db, testutil.NewTestLogger(t)).Materialize(ctx, tables["1-10015132-11"])
	require.NoError(t, err)
	require.Equal(t, "table_1_10015132_11", mp.Physical)
	return path
}

func cityInput(t *testing.T, preds string) Input {
	t.Helper()
	dir := t.TempDir()
	return Input{
		GoldPath:   testutil.WriteFile(t, dir, "dev.jsonl", testutil.CityQuestions),
		TablesPath: testutil.WriteFile(t, dir, "dev.tables.jsonl", testutil.CityTable+"\n"),
		PredPath:   testutil.WriteFile(t, dir, "pred.jsonl", preds),
		DBPath:     buildCityDB(t, dir),
	}
}

func TestCompatible_ScoresPairs(t *testing.T) {
	in := cityInput(t, cityPreds)
	rep, err := NewCompatible(testutil.NewTestLogger(t)).Evaluate(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, TierCompatible, rep.Tier)
	assert.Equal(t, 3, rep.Total)
	assert.Equal(t, 2, rep.ExCorrect)
	assert.Equal(t, 1, rep.LfCorrect)
	assert.Equal(t, 1, rep.Errors)
	assert.InDelta(t, 2.0/3, rep.ExAccuracy, 1e-9)
	assert.InDelta(t, 1.0/3, rep.LfAccuracy, 1e-9)

	require.Len(t, rep.Pairs, 3)
	assert.Equal(t, executor.Rows{{"denver"}}, rep.Pairs[0].PredRows)
	assert.Equal(t, "table_1_10015132_11", rep.Pairs[0].Table)
	assert.Contains(t, rep.Pairs[2].Err, "no sql")
}

func TestCompatible_ShorterPredictionStream(t *testing.T) {
	preds := strings.Join(strings.Split(cityPreds, "\n")[:2], "\n") + "\n"
	in := cityInput(t, preds)

	rep, err := NewCompatible(testutil.NewTestLogger(t)).Evaluate(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 3, rep.GoldCount)
	assert.Equal(t, 2, rep.PredCount)
	assert.Equal(t, 2, rep.Total)
	assert.Equal(t, 2, rep.ExCorrect)
	assert.Equal(t, 1, rep.LfCorrect)
	assert.InDelta(t, 1.0, rep.ExAccuracy, 1e-9)
	assert.InDelta(t, 0.5, rep.LfAccuracy, 1e-9)
}

func TestCompatible_Idempotent(t *testing.T) {
	in := cityInput(t, cityPreds)
	c := NewCompatible(testutil.NewTestLogger(t))
	first, err := c.Evaluate(context.Background(), in)
	require.NoError(t, err)
	second, err := c.Evaluate(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCompatible_Unavailable(t *testing.T) {
	in := cityInput(t, cityPreds)
	in.DBPath = filepath.Join(t.TempDir(), "missing.db")
	err := NewCompatible(testutil.NewTestLogger(t)).Available(context.Background(), in)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestValidator_Report(t *testing.T) {
	in := cityInput(t, cityPreds)
	in.DBPath = ""
	rep, err := NewValidator(testutil.NewTestLogger(t)).Evaluate(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, TierValidator, rep.Tier)
	assert.Equal(t, 2, rep.ExCorrect)
	require.NotNil(t, rep.Validation)
	v := rep.Validation
	assert.Equal(t, 3, v.TotalQuestions)
	assert.Equal(t, 2, v.CorrectAnswers)
	assert.Equal(t, 1, v.Errors)
	assert.InDelta(t, 1.0/3, v.ErrorRate, 1e-9)

	require.Len(t, v.Results, 3)
	r := v.Results[0]
	assert.Equal(t, 0, r.QuestionID)
	assert.Equal(t, "Which city is from 2020?", r.Question)
	assert.Equal(t, "1-10015132-11", r.TableID)
	assert.True(t, r.Correct)
	assert.Equal(t, "SELECT col0 FROM table_1_10015132_11 WHERE col1 = '2020'", r.ExpectedSQL)
	assert.Equal(t, executor.Rows{{"denver"}}, r.ExpectedResult)
	assert.False(t, v.Results[2].Correct)
	assert.NotEmpty(t, v.Results[2].Error)
}

func TestValidator_MissingTableIsPairError(t *testing.T) {
	dir := t.TempDir()
	in := Input{
		GoldPath:   testutil.WriteFile(t, dir, "dev.jsonl", `{"question": "q", "table_id": "nope", "sql": {"sel": 0, "agg": 0, "conds": []}}`+"\n"+strings.SplitN(testutil.CityQuestions, "\n", 2)[0]+"\n"),
		TablesPath: testutil.WriteFile(t, dir, "dev.tables.jsonl", testutil.CityTable+"\n"),
		PredPath:   testutil.WriteFile(t, dir, "pred.jsonl", `{"query": {"sel": 0, "agg": 0, "conds": []}}`+"\n"+strings.SplitN(cityPreds, "\n", 2)[0]+"\n"),
	}
	rep, err := NewValidator(testutil.NewTestLogger(t)).Evaluate(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Total)
	assert.Equal(t, 1, rep.Errors)
	assert.Equal(t, 1, rep.ExCorrect)
	assert.Equal(t, 1, rep.LfCorrect)
	assert.Contains(t, rep.Pairs[0].Err, "not materialized")
}

func setupScorer(t *testing.T, resolve TableResolver) *Scorer {
	t.Helper()
	ctx := context.Background()
	db := adapter.NewSQLiteAdapter(&adapter.SQLiteConfig{FilePath: ":memory:"}, testutil.NewTestLogger(t))
	require.NoError(t, db.Connect(ctx))
	t.Cleanup(func() { db.Close() })
	tables, err := dataset.ReadTables(strings.NewReader(testutil.CityTable), nil)
	require.NoError(t, err)
	m := materialize.New(db, testutil.NewTestLogger(t))
	require.NoError(t, m.MaterializeAll(ctx, tables))
	if resolve == nil {
		resolve = RegistryResolver(m)
	}
	return NewScorer(executor.New(db, testutil.NewTestLogger(t)), resolve, false, testutil.NewTestLogger(t))
}

func cityGold(t *testing.T) []dataset.Question {
	t.Helper()
	gold, err := dataset.ReadQuestions(strings.NewReader(testutil.CityQuestions), 0, nil)
	require.NoError(t, err)
	return gold
}

func TestScorer_PanicInOnePairDoesNotStopStream(t *testing.T) {
	calls := 0
	resolve := ResolverFunc(func(_ context.Context, id string) (string, error) {
		calls++
		if calls == 2 {
			panic("resolver exploded")
		}
		return "table_1_10015132_11", nil
	})
	s := setupScorer(t, resolve)
	gold := cityGold(t)
	preds := []query.Prediction{query.Success(gold[0].SQL), query.Success(gold[1].SQL), query.Success(gold[2].SQL)}

	var seen []int
	s.OnPair = func(r PairResult) { seen = append(seen, r.Index) }
	rep, err := s.Score(context.Background(), gold, preds)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 2}, seen)
	assert.Equal(t, 3, rep.Total)
	assert.Equal(t, 2, rep.ExCorrect)
	assert.Equal(t, 2, rep.LfCorrect)
	assert.Equal(t, 1, rep.Errors)
	assert.False(t, rep.Pairs[1].ExCorrect)
	assert.False(t, rep.Pairs[1].LfCorrect)
	assert.Contains(t, rep.Pairs[1].Err, "resolver exploded")
}

func TestScorer_ExecutionFailureScoresBothFalse(t *testing.T) {
	s := setupScorer(t, nil)
	gold := cityGold(t)[:1]

	// A matching logical form whose table does not exist still fails both.
	s.resolve = ResolverFunc(func(context.Context, string) (string, error) { return "missing_table", nil })
	rep, err := s.Score(context.Background(), gold, []query.Prediction{query.Success(gold[0].SQL)})
	require.NoError(t, err)
	assert.Equal(t, 0, rep.ExCorrect)
	assert.Equal(t, 0, rep.LfCorrect)
	assert.Equal(t, 1, rep.Errors)
}

func TestScorer_InvalidGoldRecord(t *testing.T) {
	s := setupScorer(t, nil)
	gold := []dataset.Question{{ID: 0, Invalid: "bad json"}}
	rep, err := s.Score(context.Background(), gold, []query.Prediction{query.Success(query.Query{})})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Errors)
	assert.Equal(t, 0, rep.LfCorrect)
}

func TestScorer_OutOfRangeEnumsScoreAsErrors(t *testing.T) {
	s := setupScorer(t, nil)
	gold := cityGold(t)[:2]

	badAgg := gold[0].SQL
	badAgg.Agg = query.Agg(9)
	badOp := query.Query{Sel: gold[1].SQL.Sel, Agg: gold[1].SQL.Agg, Conds: []query.Cond{
		{Column: 1, Op: query.Op(7), Value: query.String("2020")},
	}}

	rep, err := s.Score(context.Background(), gold, []query.Prediction{query.Success(badAgg), query.Success(badOp)})
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Errors)
	assert.Equal(t, 0, rep.ExCorrect)
	assert.Equal(t, 0, rep.LfCorrect)
	assert.Contains(t, rep.Pairs[0].Err, "unknown aggregation 9")
	assert.Contains(t, rep.Pairs[1].Err, "unknown operator 7")
	assert.Empty(t, rep.Pairs[0].PredSQL)
}

func TestScorer_Cancelled(t *testing.T) {
	s := setupScorer(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gold := cityGold(t)
	_, err := s.Score(ctx, gold, []query.Prediction{query.Success(gold[0].SQL)})
	assert.ErrorIs(t, err, context.Canceled)
}

func officialFixture(t *testing.T) (OfficialConfig, Input) {
	t.Helper()
	in := cityInput(t, cityPreds)
	root := t.TempDir()
	script := testutil.WriteFile(t, root, "WikiSQL/evaluate.py", "# stub\n")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "WikiSQL", "lib"), 0o755))
	return OfficialConfig{
		Script:   script,
		LookPath: func(name string) (string, error) { return "/usr/bin/" + name, nil },
	}, in
}

func TestOfficial_ParsesScriptOutput(t *testing.T) {
	cfg, in := officialFixture(t)
	in.Ordered = true
	var gotName string
	var gotArgs []string
	cfg.Run = func(_ context.Context, name string, args ...string) ([]byte, error) {
		gotName, gotArgs = name, args
		return []byte("100%|####| 3/3\n{\n  \"ex_accuracy\": 0.6666666666666666,\n  \"lf_accuracy\": 0.3333333333333333\n}\n"), nil
	}

	rep, err := NewOfficial(cfg, testutil.NewTestLogger(t)).Evaluate(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "python", gotName)
	assert.Equal(t, []string{cfg.Script, in.GoldPath, in.DBPath, in.PredPath, "--ordered"}, gotArgs)
	assert.Equal(t, TierOfficial, rep.Tier)
	assert.InDelta(t, 2.0/3, rep.ExAccuracy, 1e-9)
	assert.Equal(t, 3, rep.Total)
	assert.Equal(t, 2, rep.ExCorrect)
	assert.Equal(t, 1, rep.LfCorrect)
}

func TestOfficial_Unavailable(t *testing.T) {
	cfg, in := officialFixture(t)
	cfg.LookPath = func(string) (string, error) { return "", errors.New("not found") }
	err := NewOfficial(cfg, nil).Available(context.Background(), in)
	assert.ErrorIs(t, err, ErrUnavailable)

	cfg, in = officialFixture(t)
	cfg.Script = filepath.Join(t.TempDir(), "evaluate.py")
	err = NewOfficial(cfg, nil).Available(context.Background(), in)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestParseOfficialOutput(t *testing.T) {
	_, err := parseOfficialOutput([]byte("Traceback: boom"))
	assert.Error(t, err)
	_, err = parseOfficialOutput([]byte(`{"ex_accuracy": 0.5}`))
	assert.Error(t, err)
	res, err := parseOfficialOutput([]byte(`{"ex_accuracy": 0.5, "lf_accuracy": 0.25}`))
	require.NoError(t, err)
	assert.Equal(t, 0.25, *res.LfAccuracy)
}

type fakeTier struct {
	name     string
	availErr error
	evalErr  error
	calls    int
}

func (f *fakeTier) Name() string                            { return f.name }
func (f *fakeTier) Available(context.Context, Input) error { return f.availErr }
func (f *fakeTier) Evaluate(context.Context, Input) (*Report, error) {
	f.calls++
	if f.evalErr != nil {
		return nil, f.evalErr
	}
	return &Report{Total: 1, ExCorrect: 1, ExAccuracy: 1}, nil
}

func TestSelector_Degrades(t *testing.T) {
	official := &fakeTier{name: TierOfficial, availErr: ErrUnavailable}
	compatible := &fakeTier{name: TierCompatible, evalErr: errors.New("db is corrupt")}
	validator := &fakeTier{name: TierValidator}

	rep, err := NewSelector(testutil.NewTestLogger(t), "", official, compatible, validator).Evaluate(context.Background(), Input{})
	require.NoError(t, err)
	assert.Equal(t, TierValidator, rep.Tier)
	require.Len(t, rep.Degraded, 2)
	assert.Equal(t, TierOfficial, rep.Degraded[0].Tier)
	assert.Equal(t, TierCompatible, rep.Degraded[1].Tier)
	assert.Contains(t, rep.Degraded[1].Reason, "corrupt")
	assert.Equal(t, 0, official.calls)
}

func TestSelector_Forced(t *testing.T) {
	compatible := &fakeTier{name: TierCompatible}
	validator := &fakeTier{name: TierValidator}
	rep, err := NewSelector(nil, TierValidator, compatible, validator).Evaluate(context.Background(), Input{})
	require.NoError(t, err)
	assert.Equal(t, TierValidator, rep.Tier)
	assert.Empty(t, rep.Degraded)
	assert.Equal(t, 0, compatible.calls)

	_, err = NewSelector(nil, "bogus", compatible).Evaluate(context.Background(), Input{})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestSelector_AllFail(t *testing.T) {
	a := &fakeTier{name: TierCompatible, availErr: ErrUnavailable}
	b := &fakeTier{name: TierValidator, evalErr: errors.New("boom")}
	_, err := NewSelector(nil, "", a, b).Evaluate(context.Background(), Input{})
	assert.ErrorIs(t, err, ErrUnavailable)
}
