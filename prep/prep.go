// Package prep implements the three register-initialization forms over an
// already-allocated, zeroed register: expression (deterministic value),
// list (uniform superposition), and dict/QRAM (weighted superposition),
// together with their exact uncomputing inverses. Grounded on
// original_source/qumquat/init.py's branch fan-out/merge algorithm
// (spec.md §4.3).
package prep

import (
	"math"
	"math/cmplx"

	"github.com/sammylord/qbranch/branch"
	"github.com/sammylord/qbranch/ctrl"
	"github.com/sammylord/qbranch/expr"
	"github.com/sammylord/qbranch/qberr"
	"github.com/sammylord/qbranch/reg"
	"github.com/sammylord/qbranch/smint"
)

func controlledSet(cs *ctrl.Stack, st *branch.Store) (map[int]bool, error) {
	idx, err := ctrl.ControlledIndices(cs, st)
	if err != nil {
		return nil, err
	}
	set := make(map[int]bool, len(idx))
	for _, i := range idx {
		set[i] = true
	}
	return set, nil
}

// InitExpr sets key's register to val.Eval(branch) on every controlled
// branch, left at +0 elsewhere. Errors if any controlled branch's
// register already reads nonzero.
func InitExpr(k *reg.Key, val expr.Expression) error {
	if val.DependsOn(k.ID()) {
		return qberr.Usagef("init: value expression may not reference its own target register")
	}
	if val.IsFloat() {
		return qberr.Usagef("init: quantum registers can only hold integers")
	}
	st := k.Store()
	do := func() error {
		target, ok := k.Target()
		if !ok {
			return qberr.Usagef("init: register is not allocated")
		}
		regID := target.RegisterID()
		controlled, err := controlledSet(k.Ctrl(), st)
		if err != nil {
			return err
		}
		for i := 0; i < st.Len(); i++ {
			if !controlled[i] {
				continue
			}
			b := st.Branch(i)
			if b.Get(regID).Magnitude() != 0 {
				return qberr.Usagef("init: register already initialized")
			}
		}
		for i := 0; i < st.Len(); i++ {
			if !controlled[i] {
				continue
			}
			v, err := val.Eval(st.Branch(i))
			if err != nil {
				return err
			}
			st.Set(i, regID, v.I)
		}
		return nil
	}
	undo := func() error {
		target, ok := k.Target()
		if !ok {
			return qberr.Usagef("init: register is not allocated")
		}
		regID := target.RegisterID()
		controlled, err := controlledSet(k.Ctrl(), st)
		if err != nil {
			return err
		}
		for i := 0; i < st.Len(); i++ {
			target := smint.Zero
			if controlled[i] {
				v, err := val.Eval(st.Branch(i))
				if err != nil {
					return err
				}
				target = v.I
			}
			if !st.Branch(i).Get(regID).Equal(target) {
				return qberr.Usagef("init_inv: branch %d holds %d, expected %d", i, st.Branch(i).Get(regID).Signed(), target.Signed())
			}
			st.Set(i, regID, smint.Zero)
		}
		return nil
	}
	return k.Ctrl().Perform(ctrl.Action{Name: "init", Do: do, Undo: undo})
}

// InitInvExpr is init's exact inverse, exposed directly (rather than only
// through an inversion scope) because uninitializing a guessed value is a
// primitive in its own right in the surface language.
func InitInvExpr(k *reg.Key, val expr.Expression) error {
	return (&invertedInitExpr{k: k, val: val}).run()
}

type invertedInitExpr struct {
	k   *reg.Key
	val expr.Expression
}

func (i *invertedInitExpr) run() error {
	sc := i.k.Ctrl().BeginInv()
	if err := InitExpr(i.k, i.val); err != nil {
		_ = sc.End()
		return err
	}
	return sc.End()
}

func distinctInts(vals []smint.Int) error {
	seen := make(map[int64]bool, len(vals))
	for _, v := range vals {
		if seen[v.Signed()] {
			return qberr.Usagef("init: superposition list contains a repeated value %d", v.Signed())
		}
		seen[v.Signed()] = true
	}
	return nil
}

// InitList puts key's register into a uniform superposition over vals on
// every controlled branch; uncontrolled branches are left untouched.
func InitList(k *reg.Key, vals []smint.Int) error {
	if len(vals) == 0 {
		return qberr.Usagef("init: superposition list must be nonempty")
	}
	if err := distinctInts(vals); err != nil {
		return err
	}
	st := k.Store()
	n := len(vals)
	scale := complex(1/math.Sqrt(float64(n)), 0)

	do := func() error {
		target, ok := k.Target()
		if !ok {
			return qberr.Usagef("init: register is not allocated")
		}
		regID := target.RegisterID()
		controlled, err := controlledSet(k.Ctrl(), st)
		if err != nil {
			return err
		}
		out := make([]branch.Branch, 0, st.Len()*n)
		for i := 0; i < st.Len(); i++ {
			b := st.Branch(i)
			if !controlled[i] {
				out = append(out, b)
				continue
			}
			if b.Get(regID).Magnitude() != 0 {
				return qberr.Usagef("init: register already initialized")
			}
			for _, v := range vals {
				nb := branch.Branch{Values: cloneValues(b.Values), Amp: b.Amp * scale}
				nb.Values[regID] = v
				out = append(out, nb)
			}
		}
		st.Replace(out)
		return nil
	}
	undo := func() error {
		target, ok := k.Target()
		if !ok {
			return qberr.Usagef("init: register is not allocated")
		}
		regID := target.RegisterID()
		controlled, err := controlledSet(k.Ctrl(), st)
		if err != nil {
			return err
		}
		valueIndex := make(map[int64]int, n)
		for i, v := range vals {
			valueIndex[v.Signed()] = i
		}
		groups := map[string][]int{}
		var untouched []branch.Branch
		for i := 0; i < st.Len(); i++ {
			b := st.Branch(i)
			if !controlled[i] {
				untouched = append(untouched, b)
				continue
			}
			key := configKey(b, regID)
			groups[key] = append(groups[key], i)
		}
		out := make([]branch.Branch, 0, len(groups)+len(untouched))
		for _, members := range groups {
			if len(members) != n {
				return qberr.Usagef("init_inv: failed to clean superposition (expected %d matching branches, found %d)", n, len(members))
			}
			first := st.Branch(members[0])
			base := branch.Branch{Values: cloneValues(first.Values), Amp: 0}
			for _, mi := range members {
				b := st.Branch(mi)
				if _, ok := valueIndex[b.Get(regID).Signed()]; !ok {
					return qberr.Usagef("init_inv: branch holds value %d not in the expected list", b.Get(regID).Signed())
				}
				base.Amp += b.Amp
			}
			base.Amp /= scale
			base.Values[regID] = smint.Zero
			out = append(out, base)
		}
		out = append(out, untouched...)
		st.Replace(out)
		return nil
	}
	return k.Ctrl().Perform(ctrl.Action{Name: "init_list", Do: do, Undo: undo})
}

// InitInvList is InitList's exact inverse, callable directly.
func InitInvList(k *reg.Key, vals []smint.Int) error {
	sc := k.Ctrl().BeginInv()
	if err := InitList(k, vals); err != nil {
		_ = sc.End()
		return err
	}
	return sc.End()
}

// DictEntry pairs a QRAM index with its (possibly branch-dependent)
// amplitude-weight expression.
type DictEntry struct {
	Index  int64
	Weight expr.Expression
}

// InitDict puts key's register into a weighted superposition over the
// dict entries' indices, with per-branch amplitude sqrt(|weight_k|^2/norm),
// on every controlled branch.
func InitDict(k *reg.Key, entries []DictEntry) error {
	if len(entries) == 0 {
		return qberr.Usagef("init: QRAM dict must be nonempty")
	}
	st := k.Store()
	do := func() error {
		target, ok := k.Target()
		if !ok {
			return qberr.Usagef("init: register is not allocated")
		}
		regID := target.RegisterID()
		controlled, err := controlledSet(k.Ctrl(), st)
		if err != nil {
			return err
		}
		out := make([]branch.Branch, 0, st.Len()*len(entries))
		for i := 0; i < st.Len(); i++ {
			b := st.Branch(i)
			if !controlled[i] {
				out = append(out, b)
				continue
			}
			if b.Get(regID).Magnitude() != 0 {
				return qberr.Usagef("init: register already initialized")
			}
			weights := make([]complex128, len(entries))
			var norm float64
			for j, e := range entries {
				v, err := e.Weight.Eval(b)
				if err != nil {
					return err
				}
				weights[j] = complex(v.AsFloat(), 0)
				norm += v.AsFloat() * v.AsFloat()
			}
			if norm <= st.Epsilon() {
				return qberr.Numericalf("init: QRAM state has norm 0")
			}
			invSqrtNorm := complex(1/math.Sqrt(norm), 0)
			for j, e := range entries {
				amp := b.Amp * weights[j] * invSqrtNorm
				if cmplx.Abs(amp) <= st.Epsilon() {
					continue
				}
				nb := branch.Branch{Values: cloneValues(b.Values), Amp: amp}
				nb.Values[regID] = smint.New(e.Index)
				out = append(out, nb)
			}
		}
		st.Replace(out)
		return nil
	}
	undo := func() error {
		target, ok := k.Target()
		if !ok {
			return qberr.Usagef("init: register is not allocated")
		}
		regID := target.RegisterID()
		controlled, err := controlledSet(k.Ctrl(), st)
		if err != nil {
			return err
		}
		byIndex := make(map[int64]expr.Expression, len(entries))
		for _, e := range entries {
			byIndex[e.Index] = e.Weight
		}
		groups := map[string][]int{}
		var untouched []branch.Branch
		for i := 0; i < st.Len(); i++ {
			b := st.Branch(i)
			if !controlled[i] {
				untouched = append(untouched, b)
				continue
			}
			key := configKey(b, regID)
			groups[key] = append(groups[key], i)
		}
		out := make([]branch.Branch, 0, len(groups)+len(untouched))
		for _, members := range groups {
			first := st.Branch(members[0])
			base := branch.Branch{Values: cloneValues(first.Values), Amp: 0}
			delete(base.Values, regID)
			base.Values[regID] = smint.Zero
			var refAmp complex128
			var norm float64
			for mi, bi := range members {
				b := st.Branch(bi)
				w, ok := byIndex[b.Get(regID).Signed()]
				if !ok {
					return qberr.Usagef("init_inv: branch holds QRAM index %d not in the dict", b.Get(regID).Signed())
				}
				wv, err := w.Eval(b)
				if err != nil {
					return err
				}
				norm += wv.AsFloat() * wv.AsFloat()
				factored := b.Amp / complex(wv.AsFloat(), 0)
				if mi == 0 {
					refAmp = factored
				} else if cmplx.Abs(factored-refAmp) > 1e-9 {
					return qberr.Usagef("init_inv: failed to clean QRAM state (amplitudes not separable)")
				}
			}
			base.Amp = refAmp * complex(math.Sqrt(norm), 0)
			out = append(out, base)
		}
		out = append(out, untouched...)
		st.Replace(out)
		return nil
	}
	return k.Ctrl().Perform(ctrl.Action{Name: "init_dict", Do: do, Undo: undo})
}

// InitInvDict is InitDict's exact inverse, callable directly.
func InitInvDict(k *reg.Key, entries []DictEntry) error {
	sc := k.Ctrl().BeginInv()
	if err := InitDict(k, entries); err != nil {
		_ = sc.End()
		return err
	}
	return sc.End()
}

func cloneValues(v map[int]smint.Int) map[int]smint.Int {
	cp := make(map[int]smint.Int, len(v))
	for k, val := range v {
		cp[k] = val
	}
	return cp
}

// configKey builds a grouping key from every register but skip, used to
// find the sibling branches a fan-out produced.
func configKey(b branch.Branch, skip int) string {
	ids := make([]int, 0, len(b.Values))
	for id := range b.Values {
		if id == skip {
			continue
		}
		ids = append(ids, id)
	}
	// simple insertion sort; these maps are small (register counts, not
	// branch counts).
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
	buf := make([]byte, 0, 16*len(ids))
	for _, id := range ids {
		buf = appendInt(buf, int64(id))
		buf = append(buf, ':')
		buf = appendInt(buf, b.Values[id].Signed())
		buf = append(buf, ',')
	}
	return string(buf)
}

func appendInt(buf []byte, v int64) []byte {
	if v < 0 {
		buf = append(buf, '-')
		v = -v
	}
	if v == 0 {
		return append(buf, '0')
	}
	var tmp [20]byte
	n := len(tmp)
	for v > 0 {
		n--
		tmp[n] = byte('0' + v%10)
		v /= 10
	}
	return append(buf, tmp[n:]...)
}
