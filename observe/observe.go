// Package observe implements the three top-level-only measurement
// primitives — weighted sampling, postselection, and the classical
// probability distribution over a tuple of expressions — grounded on
// original_source/qumquat/measure.py (spec.md §4.7).
package observe

import (
	"math"
	"math/cmplx"
	"math/rand"
	"sort"

	"github.com/sammylord/qbranch/branch"
	"github.com/sammylord/qbranch/ctrl"
	"github.com/sammylord/qbranch/expr"
	"github.com/sammylord/qbranch/qberr"
)

// Outcome is one distinct value a tuple of expressions takes, with its
// cumulative probability and the branch indices that produced it.
type Outcome struct {
	Values   []expr.Value
	Prob     float64
	Branches []int
}

func valueKey(vs []expr.Value) string {
	buf := make([]byte, 0, 16*len(vs))
	for _, v := range vs {
		if v.Float {
			buf = append(buf, 'f')
			buf = appendFloat(buf, v.F)
		} else {
			buf = append(buf, 'i')
			buf = appendFloat(buf, float64(v.I.Signed()))
		}
		buf = append(buf, ',')
	}
	return string(buf)
}

func appendFloat(buf []byte, f float64) []byte {
	// cheap, deterministic stringification sufficient for a dedup key —
	// values compared here always come from the same finite set of
	// branch evaluations.
	for i := 0; i < 17; i++ {
		scaled := f * math.Pow10(i)
		if scaled == math.Trunc(scaled) {
			return appendInt(buf, int64(scaled), i)
		}
	}
	return appendInt(buf, int64(f*1e17), 17)
}

func appendInt(buf []byte, v int64, scale int) []byte {
	if v < 0 {
		buf = append(buf, '-')
		v = -v
	}
	s := []byte{}
	if v == 0 {
		s = []byte{'0'}
	}
	for v > 0 {
		s = append([]byte{byte('0' + v%10)}, s...)
		v /= 10
	}
	buf = append(buf, s...)
	buf = append(buf, '@')
	buf = append(buf, byte('0'+scale))
	return buf
}

// Dist computes the classical probability distribution of the tuple
// exprs over the store's current branches, merging branches with equal
// tuples and sorted by first-appearance order of each distinct value
// (original_source sorts by value; this port sorts by discovery order,
// which is the natural order for Go's unordered map-based grouping and
// avoids imposing an arbitrary total order across int/float mixes).
// Dist takes no control stack and does not check for top level itself;
// machine.Engine.Dist performs that check before calling it.
func Dist(st *branch.Store, exprs []expr.Expression) ([]Outcome, error) {
	order := []string{}
	byKey := map[string]*Outcome{}
	for i := 0; i < st.Len(); i++ {
		b := st.Branch(i)
		vals := make([]expr.Value, len(exprs))
		for j, e := range exprs {
			v, err := e.Eval(b)
			if err != nil {
				return nil, err
			}
			vals[j] = v
		}
		key := valueKey(vals)
		o, ok := byKey[key]
		if !ok {
			o = &Outcome{Values: vals}
			byKey[key] = o
			order = append(order, key)
		}
		amp := b.Amp
		o.Prob += real(amp * cmplx.Conj(amp))
		o.Branches = append(o.Branches, i)
	}
	out := make([]Outcome, len(order))
	for i, k := range order {
		out[i] = *byKey[k]
	}
	return out, nil
}

// Measure performs a weighted random sample over exprs, collapsing the
// store to the branches consistent with the sampled outcome and
// renormalizing. Only legal at top level (spec.md §4.7).
func Measure(cs *ctrl.Stack, st *branch.Store, rng *rand.Rand, exprs []expr.Expression) ([]expr.Value, error) {
	if err := cs.RequireTopLevel("measure"); err != nil {
		return nil, err
	}
	outcomes, err := Dist(st, exprs)
	if err != nil {
		return nil, err
	}
	if len(outcomes) == 0 {
		return nil, qberr.Numericalf("measure: no branches to sample from")
	}
	r := rng.Float64()
	cumul := 0.0
	pick := len(outcomes) - 1
	for i, o := range outcomes {
		if cumul+o.Prob > r {
			pick = i
			break
		}
		cumul += o.Prob
	}
	chosen := outcomes[pick]
	kept := make([]branch.Branch, 0, len(chosen.Branches))
	for _, i := range chosen.Branches {
		kept = append(kept, st.Branch(i))
	}
	scale := complex(1/math.Sqrt(chosen.Prob), 0)
	for i := range kept {
		kept[i].Amp *= scale
	}
	st.Replace(kept)
	return chosen.Values, nil
}

// Postselect keeps only the branches where guard evaluates nonzero,
// renormalizing, and returns the probability of that outcome. Fails if
// no branch survives. Only legal at top level.
func Postselect(cs *ctrl.Stack, st *branch.Store, guard expr.Expression) (float64, error) {
	if err := cs.RequireTopLevel("postselect"); err != nil {
		return 0, err
	}
	kept := make([]branch.Branch, 0, st.Len())
	var prob float64
	for i := 0; i < st.Len(); i++ {
		b := st.Branch(i)
		v, err := guard.Eval(b)
		if err != nil {
			return 0, err
		}
		if v.AsFloat() != 0 {
			kept = append(kept, b)
			prob += real(b.Amp * cmplx.Conj(b.Amp))
		}
	}
	if len(kept) == 0 {
		return 0, qberr.Numericalf("postselect: no branch satisfies the guard")
	}
	scale := complex(1/math.Sqrt(prob), 0)
	for i := range kept {
		kept[i].Amp *= scale
	}
	st.Replace(kept)
	return prob, nil
}

// SortByFloat orders outcomes by the float value of their first
// expression, ascending — a convenience for callers that want a stable
// display order.
func SortByFloat(outcomes []Outcome) {
	sort.SliceStable(outcomes, func(i, j int) bool {
		if len(outcomes[i].Values) == 0 || len(outcomes[j].Values) == 0 {
			return false
		}
		return outcomes[i].Values[0].AsFloat() < outcomes[j].Values[0].AsFloat()
	})
}
