package garbage

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sammylord/qbranch/branch"
	"github.com/sammylord/qbranch/ctrl"
	"github.com/sammylord/qbranch/expr"
	"github.com/sammylord/qbranch/prep"
	"github.com/sammylord/qbranch/reg"
)

func newTestStack() (*Stack, *branch.Store, *ctrl.Stack) {
	st := branch.New(branch.DefaultEpsilon, zerolog.Nop())
	cs := ctrl.New()
	return New(cs, st), st, cs
}

func TestBeginRejectsReservedKeylessName(t *testing.T) {
	g, _, _ := newTestStack()
	_, err := g.Begin("keyless")
	assert.Error(t, err)
}

func TestBeginEmptyNameGeneratesDistinctUUIDs(t *testing.T) {
	g, _, _ := newTestStack()
	sc1, err := g.Begin("")
	require.NoError(t, err)
	require.NoError(t, sc1.End())
	sc2, err := g.Begin("")
	require.NoError(t, err)
	require.NoError(t, sc2.End())
	assert.NotEqual(t, sc1.pile.Name, sc2.pile.Name)
}

func TestAllocInsideScopeIsTrackedByPile(t *testing.T) {
	g, _, _ := newTestStack()
	nextID := 0
	sc, err := g.Begin("p")
	require.NoError(t, err)
	k, err := g.Alloc(nextID)
	require.NoError(t, err)
	require.Len(t, sc.pile.Keys, 1)
	assert.Same(t, k, sc.pile.Keys[0])
	require.NoError(t, sc.End())
}

func TestKeylessScopeRejectsNonEmptyPileOnClose(t *testing.T) {
	g, _, _ := newTestStack()
	sc := g.BeginKeyless()
	_, err := g.Alloc(0)
	require.NoError(t, err)
	err = sc.End()
	assert.Error(t, err)
}

func TestKeylessScopeSucceedsWhenCleanedBeforeClose(t *testing.T) {
	g, _, _ := newTestStack()
	sc := g.BeginKeyless()
	k, err := g.Alloc(0)
	require.NoError(t, err)
	require.NoError(t, g.Clean(k, expr.Lit(0)))
	require.NoError(t, sc.End())
}

func TestAssertCleanOnUnknownPileIsNotAnError(t *testing.T) {
	g, _, _ := newTestStack()
	assert.NoError(t, g.AssertClean("never-seen"))
}

func TestAssertCleanReportsNonEmptyPile(t *testing.T) {
	g, _, _ := newTestStack()
	sc, err := g.Begin("p")
	require.NoError(t, err)
	_, err = g.Alloc(0)
	require.NoError(t, err)
	assert.Error(t, g.AssertClean("p"))
	require.NoError(t, sc.End())
}

func TestCleanRemovesKeyFromPile(t *testing.T) {
	g, _, _ := newTestStack()
	sc, err := g.Begin("p")
	require.NoError(t, err)
	k, err := g.Alloc(0)
	require.NoError(t, err)
	require.NoError(t, g.Clean(k, expr.Lit(0)))
	assert.Empty(t, sc.pile.Keys)
	require.NoError(t, sc.End())
}

// TestInvAllocDeallocatesViaPartnerMatch ports original_source/tests.py's
// test_garbage_1: allocate and initialize x and y forward, mutate x, then
// re-declare "the same" allocations inside an Inv scope — which never
// itself runs those allocations forward, only their inverse once the Inv
// scope closes. A fresh key with no register of its own (xp, yp) can only
// be deallocated by matching it to the allocated key its pile assigns it
// to, so a successful, pile-emptying close here is only possible if that
// partner resolution actually runs.
func TestInvAllocDeallocatesViaPartnerMatch(t *testing.T) {
	g, _, cs := newTestStack()
	nextID := 0
	alloc := func() *reg.Key {
		k, err := g.Alloc(nextID)
		require.NoError(t, err)
		nextID++
		return k
	}

	sc, err := g.Begin("p")
	require.NoError(t, err)

	xKey := alloc()
	x := reg.New(xKey)
	require.NoError(t, prep.InitExpr(xKey, expr.Lit(1)))

	yKey := alloc()
	require.NoError(t, prep.InitExpr(yKey, expr.Lit(2)))

	require.NoError(t, x.AddAssign(expr.Lit(1)))

	inv := cs.BeginInv()
	xpKey := alloc()
	require.NoError(t, prep.InitExpr(xpKey, expr.Lit(1)))
	ypKey := alloc()
	require.NoError(t, prep.InitExpr(ypKey, expr.Lit(2)))
	xp := reg.New(xpKey)
	require.NoError(t, xp.AddAssign(expr.Lit(1)))
	require.NoError(t, inv.End())

	require.NoError(t, sc.End())

	assert.Empty(t, sc.pile.Keys)
	assert.False(t, xKey.Allocated())
	assert.False(t, yKey.Allocated())
}
