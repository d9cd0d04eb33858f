package machine

import (
	"math/rand"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sammylord/qbranch/expr"
	"github.com/sammylord/qbranch/smint"
)

func newTestEngine() *Engine {
	return New(DefaultConfig(), zerolog.Nop(), rand.New(rand.NewSource(7)))
}

func TestNewEngineStartsAliveAtTopLevel(t *testing.T) {
	e := newTestEngine()
	assert.False(t, e.Poisoned())
	assert.True(t, e.TopLevel())
}

func TestRegAllocatesDistinctRegisters(t *testing.T) {
	e := newTestEngine()
	r1, err := e.Reg()
	require.NoError(t, err)
	r2, err := e.Reg()
	require.NoError(t, err)
	assert.NotEqual(t, r1.Key.ID(), r2.Key.ID())
}

func TestInitThenDistReportsDeterministicValue(t *testing.T) {
	e := newTestEngine()
	r, err := e.Reg()
	require.NoError(t, err)
	require.NoError(t, e.Init(r, expr.Lit(5)))

	outcomes, err := e.Dist(r.Expr())
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, int64(5), outcomes[0].Values[0].I.Signed())
	assert.InDelta(t, 1.0, outcomes[0].Prob, 1e-9)
}

func TestHadTwiceIsIdentityThroughTheEngine(t *testing.T) {
	e := newTestEngine()
	r, err := e.Reg()
	require.NoError(t, err)
	require.NoError(t, e.Had(r, expr.Lit(0)))
	require.NoError(t, e.Had(r, expr.Lit(0)))

	outcomes, err := e.Dist(r.Expr())
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, int64(0), outcomes[0].Values[0].I.Signed())
}

func TestInvUndoesBody(t *testing.T) {
	e := newTestEngine()
	r, err := e.Reg()
	require.NoError(t, err)
	require.NoError(t, e.Init(r, expr.Lit(3)))

	require.NoError(t, e.Inv(func() error {
		return e.Init(r, expr.Lit(3))
	}))

	outcomes, err := e.Dist(r.Expr())
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, int64(0), outcomes[0].Values[0].I.Signed())
}

func TestIfOnlyAffectsBranchesWhereGuardHolds(t *testing.T) {
	e := newTestEngine()
	r, err := e.Reg()
	require.NoError(t, err)
	require.NoError(t, e.Had(r, expr.Lit(0)))

	flag, err := e.Reg()
	require.NoError(t, err)
	bit, err := expr.Index(r.Expr(), expr.Lit(0))
	require.NoError(t, err)
	require.NoError(t, e.If(bit, func() error {
		return e.Init(flag, expr.Lit(1))
	}))

	outcomes, err := e.Dist(r.Expr(), flag.Expr())
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	for _, o := range outcomes {
		if o.Values[0].I.Signed() == 1 {
			assert.Equal(t, int64(1), o.Values[1].I.Signed())
		} else {
			assert.Equal(t, int64(0), o.Values[1].I.Signed())
		}
	}
}

func TestGarbageScopeReplaysForwardAndCleanLeavesPileEmpty(t *testing.T) {
	e := newTestEngine()
	r, err := e.Reg()
	require.NoError(t, err)
	require.NoError(t, e.Init(r, expr.Lit(10)))

	err = e.Garbage("scratch", func() error {
		tmp, err := e.Reg()
		if err != nil {
			return err
		}
		if err := e.Init(tmp, expr.Mul(r.Expr(), expr.Lit(2))); err != nil {
			return err
		}
		return e.Clean(tmp, expr.Mul(r.Expr(), expr.Lit(2)))
	})
	require.NoError(t, err)
	assert.NoError(t, e.AssertClean("scratch"))
}

func TestWhileRunsUntilPredicateIsFalseOnEveryBranch(t *testing.T) {
	e := newTestEngine()
	counter, err := e.Reg()
	require.NoError(t, err)
	x, err := e.Reg()
	require.NoError(t, err)

	pred := expr.Lt(x.Expr(), expr.Lit(5))
	require.NoError(t, e.While(pred, counter, func() error {
		return x.AddAssign(expr.Lit(1))
	}))

	outcomes, err := e.Dist(x.Expr(), counter.Expr())
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, int64(5), outcomes[0].Values[0].I.Signed())
	assert.Equal(t, int64(5), outcomes[0].Values[1].I.Signed())
}

func TestWhileStopsEachBranchIndependently(t *testing.T) {
	e := newTestEngine()
	counter, err := e.Reg()
	require.NoError(t, err)
	x, err := e.Reg()
	require.NoError(t, err)
	require.NoError(t, e.InitList(x, []smint.Int{smint.New(1), smint.New(3)}))

	pred := expr.Lt(x.Expr(), expr.Lit(4))
	require.NoError(t, e.While(pred, counter, func() error {
		return x.AddAssign(expr.Lit(1))
	}))

	outcomes, err := e.Dist(x.Expr())
	require.NoError(t, err)
	for _, o := range outcomes {
		assert.Equal(t, int64(4), o.Values[0].I.Signed())
	}
}

func TestWhileRejectsANonzeroCounterOnEntry(t *testing.T) {
	e := newTestEngine()
	counter, err := e.Reg()
	require.NoError(t, err)
	require.NoError(t, e.Init(counter, expr.Lit(1)))
	x, err := e.Reg()
	require.NoError(t, err)

	err = e.While(expr.Lt(x.Expr(), expr.Lit(5)), counter, func() error {
		return x.AddAssign(expr.Lit(1))
	})
	assert.Error(t, err)
}

func TestWhileRejectsAPredicateDependingOnTheCounter(t *testing.T) {
	e := newTestEngine()
	counter, err := e.Reg()
	require.NoError(t, err)
	x, err := e.Reg()
	require.NoError(t, err)

	err = e.While(expr.Lt(counter.Expr(), expr.Lit(5)), counter, func() error {
		return x.AddAssign(expr.Lit(1))
	})
	assert.Error(t, err)
}

func TestInvOfWhileUndoesEveryRound(t *testing.T) {
	e := newTestEngine()
	counter, err := e.Reg()
	require.NoError(t, err)
	x, err := e.Reg()
	require.NoError(t, err)

	loop := func() error {
		pred := expr.Lt(x.Expr(), expr.Lit(5))
		return e.While(pred, counter, func() error {
			return x.AddAssign(expr.Lit(1))
		})
	}
	require.NoError(t, loop())
	require.NoError(t, e.Inv(loop))

	outcomes, err := e.Dist(x.Expr(), counter.Expr())
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, int64(0), outcomes[0].Values[0].I.Signed())
	assert.Equal(t, int64(0), outcomes[0].Values[1].I.Signed())
}

func TestMeasureRequiresTopLevel(t *testing.T) {
	e := newTestEngine()
	r, err := e.Reg()
	require.NoError(t, err)
	require.NoError(t, e.Had(r, expr.Lit(0)))

	err = e.If(expr.Lit(1), func() error {
		_, err := e.Measure(r.Expr())
		return err
	})
	assert.Error(t, err)
}

func TestPoisonedEngineRejectsFurtherMutation(t *testing.T) {
	e := newTestEngine()
	r, err := e.Reg()
	require.NoError(t, err)
	require.NoError(t, e.Init(r, expr.Lit(1)))

	// Double-init is rejected by prep.InitExpr and poisons the engine.
	err = e.Init(r, expr.Lit(2))
	require.Error(t, err)
	assert.True(t, e.Poisoned())

	_, err = e.Reg()
	assert.Error(t, err)
}

func TestSnapOnDeterministicRegisterHasSingleDiagonalEntry(t *testing.T) {
	e := newTestEngine()
	r, err := e.Reg()
	require.NoError(t, err)
	require.NoError(t, e.Init(r, expr.Lit(1)))

	snap, err := e.Snap(r)
	require.NoError(t, err)
	assert.Len(t, snap.Keys, 1)
}
