package prep

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sammylord/qbranch/branch"
	"github.com/sammylord/qbranch/ctrl"
	"github.com/sammylord/qbranch/expr"
	"github.com/sammylord/qbranch/reg"
	"github.com/sammylord/qbranch/smint"
)

func newTestKey(st *branch.Store, cs *ctrl.Stack) *reg.Key {
	regID := st.Alloc()
	return reg.NewKey(regID, st, cs, regID)
}

func TestInitExprSetsValueOnce(t *testing.T) {
	st := branch.New(branch.DefaultEpsilon, zerolog.Nop())
	cs := ctrl.New()
	k := newTestKey(st, cs)

	require.NoError(t, InitExpr(k, expr.Lit(5)))
	assert.Equal(t, int64(5), st.Branch(0).Get(k.RegisterID()).Signed())
}

func TestInitExprRejectsDoubleInit(t *testing.T) {
	st := branch.New(branch.DefaultEpsilon, zerolog.Nop())
	cs := ctrl.New()
	k := newTestKey(st, cs)

	require.NoError(t, InitExpr(k, expr.Lit(5)))
	err := InitExpr(k, expr.Lit(7))
	assert.Error(t, err)
}

func TestInitExprRoundTripsWithInitInvExpr(t *testing.T) {
	st := branch.New(branch.DefaultEpsilon, zerolog.Nop())
	cs := ctrl.New()
	k := newTestKey(st, cs)

	require.NoError(t, InitExpr(k, expr.Lit(9)))
	require.NoError(t, InitInvExpr(k, expr.Lit(9)))
	assert.Equal(t, int64(0), st.Branch(0).Get(k.RegisterID()).Signed())
}

func TestInitExprRejectsSelfReference(t *testing.T) {
	st := branch.New(branch.DefaultEpsilon, zerolog.Nop())
	cs := ctrl.New()
	k := newTestKey(st, cs)

	err := InitExpr(k, expr.KeyRef(k.ID()))
	assert.Error(t, err)
}

func TestInitListBuildsUniformSuperposition(t *testing.T) {
	st := branch.New(branch.DefaultEpsilon, zerolog.Nop())
	cs := ctrl.New()
	k := newTestKey(st, cs)

	vals := []smint.Int{smint.New(1), smint.New(2), smint.New(3)}
	require.NoError(t, InitList(k, vals))
	require.Equal(t, 3, st.Len())

	seen := map[int64]bool{}
	for i := 0; i < st.Len(); i++ {
		seen[st.Branch(i).Get(k.RegisterID()).Signed()] = true
	}
	assert.True(t, seen[1] && seen[2] && seen[3])
	assert.InDelta(t, 1.0, st.NormSquared(), 1e-9)
}

func TestInitListRejectsRepeatedValues(t *testing.T) {
	vals := []smint.Int{smint.New(1), smint.New(1)}
	st := branch.New(branch.DefaultEpsilon, zerolog.Nop())
	cs := ctrl.New()
	k := newTestKey(st, cs)
	err := InitList(k, vals)
	assert.Error(t, err)
}

func TestInitListRoundTripsWithInitInvList(t *testing.T) {
	st := branch.New(branch.DefaultEpsilon, zerolog.Nop())
	cs := ctrl.New()
	k := newTestKey(st, cs)

	vals := []smint.Int{smint.New(1), smint.New(2), smint.New(3), smint.New(4)}
	require.NoError(t, InitList(k, vals))
	require.NoError(t, InitInvList(k, vals))
	require.Equal(t, 1, st.Len())
	assert.Equal(t, int64(0), st.Branch(0).Get(k.RegisterID()).Signed())
	assert.InDelta(t, 1.0, real(st.Branch(0).Amp), 1e-9)
}

func TestInitDictBuildsWeightedSuperposition(t *testing.T) {
	st := branch.New(branch.DefaultEpsilon, zerolog.Nop())
	cs := ctrl.New()
	k := newTestKey(st, cs)

	entries := []DictEntry{
		{Index: 0, Weight: expr.LitFloat(1)},
		{Index: 1, Weight: expr.LitFloat(1)},
	}
	require.NoError(t, InitDict(k, entries))
	require.Equal(t, 2, st.Len())
	assert.InDelta(t, 1.0, st.NormSquared(), 1e-9)
}

func TestInitDictRoundTripsWithInitInvDict(t *testing.T) {
	st := branch.New(branch.DefaultEpsilon, zerolog.Nop())
	cs := ctrl.New()
	k := newTestKey(st, cs)

	entries := []DictEntry{
		{Index: 0, Weight: expr.LitFloat(3)},
		{Index: 1, Weight: expr.LitFloat(4)},
	}
	require.NoError(t, InitDict(k, entries))
	require.NoError(t, InitInvDict(k, entries))
	require.Equal(t, 1, st.Len())
	assert.Equal(t, int64(0), st.Branch(0).Get(k.RegisterID()).Signed())
}

func TestInitDictRejectsEmptyEntries(t *testing.T) {
	st := branch.New(branch.DefaultEpsilon, zerolog.Nop())
	cs := ctrl.New()
	k := newTestKey(st, cs)
	err := InitDict(k, nil)
	assert.Error(t, err)
}
