package diag

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sammylord/qbranch/branch"
	"github.com/sammylord/qbranch/ctrl"
	"github.com/sammylord/qbranch/reg"
	"github.com/sammylord/qbranch/smint"
)

func newTestKeyAt(st *branch.Store, cs *ctrl.Stack, v smint.Int) *reg.Key {
	regID := st.Alloc()
	st.Set(0, regID, v)
	return reg.NewKey(regID, st, cs, regID)
}

func TestSnapRejectsEmptyRegisterList(t *testing.T) {
	st := branch.New(branch.DefaultEpsilon, zerolog.Nop())
	_, err := Snap(st, nil)
	assert.Error(t, err)
}

func TestSnapRejectsUnallocatedRegister(t *testing.T) {
	st := branch.New(branch.DefaultEpsilon, zerolog.Nop())
	cs := ctrl.New()
	k := newTestKeyAt(st, cs, smint.New(0))
	k.Deallocate()
	_, err := Snap(st, []*reg.Key{k})
	assert.Error(t, err)
}

func TestFidelityOfIdenticalPureStatesIsOne(t *testing.T) {
	st := branch.New(branch.DefaultEpsilon, zerolog.Nop())
	cs := ctrl.New()
	k := newTestKeyAt(st, cs, smint.New(1))

	s1, err := Snap(st, []*reg.Key{k})
	require.NoError(t, err)
	s2, err := Snap(st, []*reg.Key{k})
	require.NoError(t, err)

	f, err := Fidelity(s1, s2)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, f, 1e-6)
}

func TestTraceDistanceOfIdenticalPureStatesIsZero(t *testing.T) {
	st := branch.New(branch.DefaultEpsilon, zerolog.Nop())
	cs := ctrl.New()
	k := newTestKeyAt(st, cs, smint.New(1))

	s1, err := Snap(st, []*reg.Key{k})
	require.NoError(t, err)
	s2, err := Snap(st, []*reg.Key{k})
	require.NoError(t, err)

	d, err := TraceDistance(s1, s2)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, d, 1e-6)
}

func TestFidelityAndTraceDistanceOfOrthogonalStates(t *testing.T) {
	st1 := branch.New(branch.DefaultEpsilon, zerolog.Nop())
	cs1 := ctrl.New()
	k1 := newTestKeyAt(st1, cs1, smint.New(0))
	s1, err := Snap(st1, []*reg.Key{k1})
	require.NoError(t, err)

	st2 := branch.New(branch.DefaultEpsilon, zerolog.Nop())
	cs2 := ctrl.New()
	k2 := newTestKeyAt(st2, cs2, smint.New(1))
	s2, err := Snap(st2, []*reg.Key{k2})
	require.NoError(t, err)

	f, err := Fidelity(s1, s2)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, f, 1e-6)

	d, err := TraceDistance(s1, s2)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, d, 1e-6)
}
