package query

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuery_EqualConditionOrdering(t *testing.T) {
	a := Query{Conds: []Cond{{0, OpEQ, String("a")}, {1, OpEQ, String("b")}}}
	b := Query{Conds: []Cond{{1, OpEQ, String("b")}, {0, OpEQ, String("a")}}}

	assert.True(t, a.Equal(b, false), "unordered comparison ignores position")
	assert.False(t, a.Equal(b, true), "ordered comparison is positional")
	assert.True(t, a.Equal(a, true))
}

func TestQuery_Equal(t *testing.T) {
	tests := []struct {
		name  string
		a, b  Query
		equal bool
	}{
		{
			name:  "sel differs",
			a:     Query{Sel: 0},
			b:     Query{Sel: 1},
			equal: false,
		},
		{
			name:  "agg differs",
			a:     Query{Agg: AggCount},
			b:     Query{Agg: AggMax},
			equal: false,
		},
		{
			name:  "nil and empty conds",
			a:     Query{Sel: 2, Conds: nil},
			b:     Query{Sel: 2, Conds: []Cond{}},
			equal: true,
		},
		{
			name:  "string literal case is folded",
			a:     Query{Conds: []Cond{{1, OpEQ, String("Boston")}}},
			b:     Query{Conds: []Cond{{1, OpEQ, String("boston")}}},
			equal: true,
		},
		{
			name:  "number against its string spelling",
			a:     Query{Conds: []Cond{{1, OpEQ, Number("2020")}}},
			b:     Query{Conds: []Cond{{1, OpEQ, String("2020")}}},
			equal: true,
		},
		{
			name:  "number spellings",
			a:     Query{Conds: []Cond{{1, OpGT, Number("3.0")}}},
			b:     Query{Conds: []Cond{{1, OpGT, Number("3")}}},
			equal: true,
		},
		{
			name:  "operator differs",
			a:     Query{Conds: []Cond{{1, OpGT, Number("3")}}},
			b:     Query{Conds: []Cond{{1, OpLT, Number("3")}}},
			equal: false,
		},
		{
			name:  "multiset counts duplicates",
			a:     Query{Conds: []Cond{{1, OpEQ, String("x")}, {1, OpEQ, String("x")}}},
			b:     Query{Conds: []Cond{{1, OpEQ, String("x")}, {2, OpEQ, String("x")}}},
			equal: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.equal, tt.a.Equal(tt.b, false))
			assert.Equal(t, tt.equal, tt.b.Equal(tt.a, false))
		})
	}
}

func TestQuery_JSON(t *testing.T) {
	raw := `{"sel": 3, "agg": 0, "conds": [[5, 0, "Butler CC (KS)"], [2, 1, 1996]]}`

	var q Query
	require.NoError(t, json.Unmarshal([]byte(raw), &q))
	assert.Equal(t, 3, q.Sel)
	assert.Equal(t, AggNone, q.Agg)
	require.Len(t, q.Conds, 2)
	assert.Equal(t, Cond{5, OpEQ, String("Butler CC (KS)")}, q.Conds[0])
	assert.Equal(t, Cond{2, OpGT, Number("1996")}, q.Conds[1])

	out, err := json.Marshal(q)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(out))
}

func TestQuery_MarshalEmptyConds(t *testing.T) {
	out, err := json.Marshal(Query{Sel: 1, Agg: AggCount})
	require.NoError(t, err)
	assert.JSONEq(t, `{"sel":1,"agg":3,"conds":[]}`, string(out))
}

func TestCond_UnmarshalErrors(t *testing.T) {
	for _, raw := range []string{`[1, 0]`, `{"col": 1}`, `["a", 0, "x"]`, `[1, 0, {"x": 1}]`} {
		var c Cond
		assert.Error(t, json.Unmarshal([]byte(raw), &c), raw)
	}
}

func TestQuery_Validate(t *testing.T) {
	assert.NoError(t, Query{Sel: 0, Agg: AggAvg, Conds: []Cond{{0, OpLT, Number("1")}}}.Validate())
	assert.Error(t, Query{Sel: -1}.Validate())
	assert.Error(t, Query{Agg: Agg(9)}.Validate())
	assert.Error(t, Query{Conds: []Cond{{0, Op(3), String("x")}}}.Validate())
}

func TestQuery_String(t *testing.T) {
	q := Query{Sel: 0, Agg: AggCount, Conds: []Cond{{1, OpEQ, String("2020")}}}
	assert.Equal(t, `SELECT COUNT(col0) WHERE col1 = "2020"`, q.String())
}

func TestPrediction_JSON(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		ok      bool
		wantErr bool
	}{
		{name: "success", raw: `{"query": {"sel": 0, "agg": 0, "conds": [[1, 0, "boston"]]}}`, ok: true},
		{name: "failure", raw: `{"error": "SQL generation failed"}`, ok: false},
		{name: "both", raw: `{"query": {"sel": 0, "agg": 0, "conds": []}, "error": "x"}`, wantErr: true},
		{name: "neither", raw: `{}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p Prediction
			err := json.Unmarshal([]byte(tt.raw), &p)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.ok, p.OK())

			out, err := json.Marshal(p)
			require.NoError(t, err)
			assert.JSONEq(t, tt.raw, string(out))
		})
	}
}

func TestPrediction_HeavyMetadata(t *testing.T) {
	p := Success(Query{Sel: 1}).WithHeavy(0.75, 3)
	out, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"query":{"sel":1,"agg":0,"conds":[]},"heavy_confidence":0.75,"heavy_agents":3}`, string(out))

	out, err = json.Marshal(Failure(""))
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"unknown error"}`, string(out))
}
