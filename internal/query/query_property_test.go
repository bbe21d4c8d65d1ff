package query

import (
	"math/rand"
	"strconv"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func genConds() gopter.Gen {
	cond := gopter.CombineGens(
		gen.IntRange(0, 5),
		gen.IntRange(0, 2),
		gen.AlphaString(),
	).Map(func(v []interface{}) Cond {
		return Cond{Column: v[0].(int), Op: Op(v[1].(int)), Value: String(v[2].(string))}
	})
	return gen.SliceOf(cond)
}

func TestProperty_UnorderedEqualityIgnoresPermutation(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("a permutation of conditions is equal when unordered", prop.ForAll(
		func(conds []Cond, seed int64) bool {
			shuffled := append([]Cond(nil), conds...)
			rand.New(rand.NewSource(seed)).Shuffle(len(shuffled), func(i, j int) {
				shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
			})
			a := Query{Sel: 1, Agg: AggSum, Conds: conds}
			b := Query{Sel: 1, Agg: AggSum, Conds: shuffled}
			return a.Equal(b, false) && b.Equal(a, false)
		},
		genConds(),
		gen.Int64(),
	))

	properties.Property("equality is reflexive in both modes", prop.ForAll(
		func(conds []Cond) bool {
			q := Query{Sel: 2, Conds: conds}
			cp := Query{Sel: q.Sel, Agg: q.Agg, Conds: append([]Cond(nil), conds...)}
			return q.Equal(q, true) && q.Equal(cp, false)
		},
		genConds(),
	))

	properties.Property("numeric literals compare by value", prop.ForAll(
		func(n int) bool {
			a := Number(strconv.Itoa(n))
			b := Number(strconv.Itoa(n) + ".0")
			return a.Equal(b)
		},
		gen.IntRange(-100000, 100000),
	))

	properties.TestingRun(t)
}
