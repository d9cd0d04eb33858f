package smint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCanonicalizesZeroSign(t *testing.T) {
	z := New(0)
	assert.Equal(t, Positive, z.Sign())
	assert.True(t, z.Equal(Zero))
}

func TestNewRawAllowsNegativeZero(t *testing.T) {
	negZero := NewRaw(Negative, 0)
	assert.Equal(t, Negative, negZero.Sign())
	assert.False(t, negZero.Equal(Zero), "NewRaw(-0) and Zero must differ under Equal")
	assert.Equal(t, int64(0), negZero.Signed())
}

func TestAddSubRoundTrip(t *testing.T) {
	a, b := New(17), New(-5)
	sum := Add(a, b)
	assert.Equal(t, int64(12), sum.Signed())
	back := Sub(sum, b)
	assert.True(t, back.Equal(a))
}

func TestFloorDivAndModFloorTowardNegativeInfinity(t *testing.T) {
	q, err := FloorDiv(New(-7), New(2))
	require.NoError(t, err)
	assert.Equal(t, int64(-4), q.Signed())

	m, err := Mod(New(-7), New(2))
	require.NoError(t, err)
	assert.Equal(t, int64(1), m.Signed())
}

func TestFloorDivByZeroErrors(t *testing.T) {
	_, err := FloorDiv(New(5), Zero)
	assert.Error(t, err)
}

func TestPowRejectsNegativeExponent(t *testing.T) {
	_, err := Pow(New(2), New(-1))
	assert.Error(t, err)
}

func TestPowNonNegative(t *testing.T) {
	r, err := Pow(New(3), New(4))
	require.NoError(t, err)
	assert.Equal(t, int64(81), r.Signed())
}

func TestBitAndSignBitIndex(t *testing.T) {
	v := New(-5) // magnitude 0b101
	assert.Equal(t, 1, v.Bit(0))
	assert.Equal(t, 0, v.Bit(1))
	assert.Equal(t, 1, v.Bit(2))
	assert.Equal(t, 1, v.Bit(SignBitIndex))

	pos := New(5)
	assert.Equal(t, 0, pos.Bit(SignBitIndex))
}

func TestWithBitRoundTrip(t *testing.T) {
	v := New(4)
	v = v.WithBit(0, 1)
	assert.Equal(t, int64(5), v.Signed())
	v = v.WithBit(SignBitIndex, 1)
	assert.Equal(t, int64(-5), v.Signed())
}

func TestXorSignIsMultiplicative(t *testing.T) {
	r := Xor(New(-5), New(3))
	assert.Equal(t, Negative, r.Sign())
}

func TestComparisons(t *testing.T) {
	a, b := New(3), New(5)
	assert.Equal(t, int64(1), Lt(a, b).Signed())
	assert.Equal(t, int64(0), Gt(a, b).Signed())
	assert.Equal(t, int64(1), EqCmp(a, a).Signed())
	assert.Equal(t, int64(1), Ne(a, b).Signed())
}

func TestBitLenAtLeastOne(t *testing.T) {
	assert.Equal(t, 1, Zero.BitLen())
	assert.Equal(t, 3, New(5).BitLen())
}
