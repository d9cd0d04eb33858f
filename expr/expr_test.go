package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sammylord/qbranch/branch"
	"github.com/sammylord/qbranch/smint"
)

func oneBranch(id int, v smint.Int) branch.Branch {
	return branch.Branch{Values: map[int]smint.Int{id: v}, Amp: 1}
}

func TestLitIsConstantAndHasNoFreeKeys(t *testing.T) {
	e := Lit(7)
	v, err := e.Eval(oneBranch(0, smint.Zero))
	require.NoError(t, err)
	assert.Equal(t, int64(7), v.I.Signed())
	assert.Empty(t, e.FreeKeys())
	assert.False(t, e.DependsOn(0))
}

func TestKeyRefTracksFreeKeyAndReadsBranch(t *testing.T) {
	e := KeyRef(3)
	assert.True(t, e.DependsOn(3))
	v, err := e.Eval(oneBranch(3, smint.New(11)))
	require.NoError(t, err)
	assert.Equal(t, int64(11), v.I.Signed())
}

func TestAddPropagatesFloatness(t *testing.T) {
	intSum := Add(Lit(2), Lit(3))
	assert.False(t, intSum.IsFloat())
	floatSum := Add(Lit(2), LitFloat(0.5))
	assert.True(t, floatSum.IsFloat())
	v, err := floatSum.Eval(oneBranch(0, smint.Zero))
	require.NoError(t, err)
	assert.InDelta(t, 2.5, v.F, 1e-12)
}

func TestDivIsAlwaysFloatAndRejectsDivideByZero(t *testing.T) {
	d := Div(Lit(4), Lit(2))
	assert.True(t, d.IsFloat())
	v, err := d.Eval(oneBranch(0, smint.Zero))
	require.NoError(t, err)
	assert.InDelta(t, 2.0, v.F, 1e-12)

	_, err = Div(Lit(1), Lit(0)).Eval(oneBranch(0, smint.Zero))
	assert.Error(t, err)
}

func TestFloorDivAndModFollowFloorSemantics(t *testing.T) {
	fd := FloorDiv(Lit(-7), Lit(2))
	v, err := fd.Eval(oneBranch(0, smint.Zero))
	require.NoError(t, err)
	assert.Equal(t, int64(-4), v.I.Signed())

	md := Mod(Lit(-7), Lit(2))
	v, err = md.Eval(oneBranch(0, smint.Zero))
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.I.Signed())
}

func TestBitwiseOpsRejectFloatOperands(t *testing.T) {
	_, err := And(Lit(1), LitFloat(2.0))
	assert.Error(t, err)
}

func TestIndexReadsBitAndSignBit(t *testing.T) {
	base := KeyRef(0)
	bit0, err := Index(base, Lit(0))
	require.NoError(t, err)
	v, err := bit0.Eval(oneBranch(0, smint.New(5)))
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.I.Signed())

	signBit, err := Index(base, Lit(-1))
	require.NoError(t, err)
	v, err = signBit.Eval(oneBranch(0, smint.New(-5)))
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.I.Signed())
}

func TestIndexRejectsFloatBase(t *testing.T) {
	_, err := Index(LitFloat(1.5), Lit(0))
	assert.Error(t, err)
}

func TestComparisonsCoerceToZeroOrOne(t *testing.T) {
	lt := Lt(Lit(2), Lit(5))
	v, err := lt.Eval(oneBranch(0, smint.Zero))
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.I.Signed())

	eq := Eq(LitFloat(1.0), Lit(1))
	v, err = eq.Eval(oneBranch(0, smint.Zero))
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.I.Signed())
}

func TestNewVarUsesGivenKeyIDRegardlessOfEvalLogic(t *testing.T) {
	e := NewVar(42, func(b branch.Branch) (Value, error) { return IntValue(smint.New(99)), nil })
	assert.True(t, e.DependsOn(42))
	v, err := e.Eval(oneBranch(0, smint.Zero))
	require.NoError(t, err)
	assert.Equal(t, int64(99), v.I.Signed())
}

func TestUnionOfFreeKeysAcrossBinaryOps(t *testing.T) {
	e := Add(KeyRef(1), KeyRef(2))
	assert.True(t, e.DependsOn(1))
	assert.True(t, e.DependsOn(2))
	assert.False(t, e.DependsOn(3))
}
