package reg

import (
	"github.com/sammylord/qbranch/branch"
	"github.com/sammylord/qbranch/ctrl"
	"github.com/sammylord/qbranch/expr"
	"github.com/sammylord/qbranch/qberr"
	"github.com/sammylord/qbranch/smint"
)

// Register is the user-facing handle: a Key plus the reversible in-place
// operators spec.md §4.2 defines over it.
type Register struct {
	Key *Key
}

// New wraps a key as a register.
func New(k *Key) *Register { return &Register{Key: k} }

// Expr presents the register as an Expression that reads its current
// value, tracked by stable key id.
func (r *Register) Expr() expr.Expression {
	k := r.Key
	return expr.NewVar(k.ID(), func(b branch.Branch) (expr.Value, error) {
		id, ok := k.ResolveRegisterID()
		if !ok {
			return expr.Value{}, qberr.Usagef("register (key %d): used while unallocated", k.ID())
		}
		return expr.IntValue(b.Get(id)), nil
	})
}

// checkMutable enforces the static (value-independent) rules shared by
// every reversible operator (spec.md §4.2): the expression's free-key set
// must not contain the target's own key, and no active control guard may
// depend on the target. Unlike register-id resolution and the controlled
// branch subset, this can be checked at call time rather than deferred
// into the action's Do/Undo closures, because it depends only on the
// expression's static shape, not on live branch state — so it still
// raises a usage error immediately even when this call is itself queued
// inside an enclosing scope.
func (r *Register) checkMutable(name string, e expr.Expression) error {
	if e.DependsOn(r.Key.ID()) {
		return qberr.Usagef("%s: expression may not reference its own target register", name)
	}
	if r.Key.Ctrl().ControlOverlap(r.Key.ID()) {
		return qberr.Usagef("%s: register is referenced by an active control guard", name)
	}
	return nil
}

// applyOp mutates regID in every branch indexed by idx according to op,
// evaluating e fresh on each branch.
func applyOp(store *branch.Store, regID int, idx []int, e expr.Expression, op func(cur, val smint.Int) (smint.Int, error)) error {
	for _, i := range idx {
		b := store.Branch(i)
		v, err := e.Eval(b)
		if err != nil {
			return err
		}
		if v.Float {
			return qberr.Usagef("register operator requires an integer-valued expression")
		}
		cur := b.Get(regID)
		nv, err := op(cur, v.I)
		if err != nil {
			return err
		}
		store.Set(i, regID, nv)
	}
	return nil
}

// mutate builds and performs (or queues) the Action for one reversible
// operator invocation. Register-id resolution and the controlled-branch
// subset are computed inside the closures themselves, not here, so that
// an invocation queued into an enclosing scope resolves against live
// state at actual replay time rather than stale state captured at record
// time (spec.md §4.5; grounded on original_source/qumquat's pattern of
// resolving key.index() and controlled_branches() only inside the
// deferred call, never at queue time).
func (r *Register) mutate(name string, e expr.Expression, do, undo func(cur, val smint.Int) (smint.Int, error)) error {
	if err := r.checkMutable(name, e); err != nil {
		return err
	}
	k := r.Key
	run := func(op func(cur, val smint.Int) (smint.Int, error)) func() error {
		return func() error {
			target, ok := k.Target()
			if !ok {
				return qberr.Usagef("%s: register is not allocated", name)
			}
			idx, err := ctrl.ControlledIndices(k.Ctrl(), k.Store())
			if err != nil {
				return err
			}
			return applyOp(k.Store(), target.RegisterID(), idx, e, op)
		}
	}
	action := ctrl.Action{Name: name, Do: run(do), Undo: run(undo)}
	return k.Ctrl().Perform(action)
}
