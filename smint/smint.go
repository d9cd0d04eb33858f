// Package smint implements the signed-magnitude integer that backs every
// register value in a branch configuration: a sign kept separately from an
// unsigned magnitude, with the magnitude's bits addressable by index and the
// sign itself addressable as bit index -1.
package smint

import (
	"math/bits"

	"github.com/pkg/errors"
)

// Sign is the sign component of an Int. The zero value is invalid; use
// Positive or Negative.
type Sign int8

const (
	Positive Sign = 1
	Negative Sign = -1
)

// SignBitIndex is the reserved bit index that addresses an Int's sign.
const SignBitIndex = -1

// Int is a signed-magnitude integer: a sign and a magnitude, tracked
// separately so that +0 and -0 are distinguishable representations of the
// same numeric value (see DESIGN.md's "sign of zero" resolution: every
// arithmetic result here canonicalizes a zero magnitude to Positive, so -0
// can only be observed by directly constructing one).
type Int struct {
	sign Sign
	mag  uint64
}

// Zero is the canonical +0.
var Zero = Int{sign: Positive, mag: 0}

// New builds an Int from a signed machine integer.
func New(v int64) Int {
	if v < 0 {
		return normalize(Negative, uint64(-v))
	}
	return normalize(Positive, uint64(v))
}

// NewRaw builds an Int from an explicit sign and magnitude, without
// canonicalizing a zero magnitude to Positive. This is the only way to
// produce an observable -0, matching spec.md's "all constructors produce
// sign = +1 when magnitude = 0" rule for every constructor except this one.
func NewRaw(sign Sign, mag uint64) Int {
	return Int{sign: sign, mag: mag}
}

func normalize(sign Sign, mag uint64) Int {
	if mag == 0 {
		sign = Positive
	}
	return Int{sign: sign, mag: mag}
}

// Sign returns the sign component.
func (a Int) Sign() Sign { return a.sign }

// Magnitude returns the unsigned magnitude.
func (a Int) Magnitude() uint64 { return a.mag }

// Signed returns the value as a signed machine integer.
func (a Int) Signed() int64 {
	if a.sign == Negative {
		return -int64(a.mag)
	}
	return int64(a.mag)
}

// Equal requires both the sign and the magnitude to match, so +0 and -0 are
// distinct under Equal even though they denote the same number.
func (a Int) Equal(b Int) bool {
	return a.sign == b.sign && a.mag == b.mag
}

// Hash is the cheap map key spec.md prescribes: magnitude*2 + (sign==+1 ? 1 : 0).
func (a Int) Hash() uint64 {
	h := a.mag * 2
	if a.sign == Positive {
		h++
	}
	return h
}

// Add returns a+b with the canonical sign of zero.
func Add(a, b Int) Int { return New(a.Signed() + b.Signed()) }

// Sub returns a-b with the canonical sign of zero.
func Sub(a, b Int) Int { return New(a.Signed() - b.Signed()) }

// Mul returns a*b with the canonical sign of zero.
func Mul(a, b Int) Int { return New(a.Signed() * b.Signed()) }

// FloorDiv returns a/b rounded toward negative infinity. Returns an error
// when b is zero.
func FloorDiv(a, b Int) (Int, error) {
	if b.mag == 0 {
		return Zero, errors.New("smint: division by zero")
	}
	av, bv := a.Signed(), b.Signed()
	q := av / bv
	if (av%bv != 0) && ((av < 0) != (bv < 0)) {
		q--
	}
	return New(q), nil
}

// Mod returns a mod b with the sign of b (Python-style floor modulo).
func Mod(a, b Int) (Int, error) {
	if b.mag == 0 {
		return Zero, errors.New("smint: modulo by zero")
	}
	av, bv := a.Signed(), b.Signed()
	m := av % bv
	if m != 0 && ((m < 0) != (bv < 0)) {
		m += bv
	}
	return New(m), nil
}

// Pow returns a**b for a non-negative integer exponent b.
func Pow(a, b Int) (Int, error) {
	if b.sign == Negative {
		return Zero, errors.New("smint: negative exponent")
	}
	result := int64(1)
	base := a.Signed()
	for i := uint64(0); i < b.mag; i++ {
		result *= base
	}
	return New(result), nil
}

// Xor computes bitwise XOR on the magnitudes and propagates the sign
// multiplicatively, per spec.md §3.
func Xor(a, b Int) Int { return normalize(a.sign*b.sign, a.mag^b.mag) }

// And computes bitwise AND on the magnitudes only; the sign is not a
// well-defined product under AND, so the result keeps a's sign.
func And(a, b Int) Int { return normalize(a.sign, a.mag&b.mag) }

// Or computes bitwise OR on the magnitudes only, keeping a's sign.
func Or(a, b Int) Int { return normalize(a.sign, a.mag|b.mag) }

// Shl shifts the magnitude left by n bits, keeping the sign.
func Shl(a Int, n uint) Int { return normalize(a.sign, a.mag<<n) }

// Shr shifts the magnitude right by n bits, keeping the sign.
func Shr(a Int, n uint) Int { return normalize(a.sign, a.mag>>n) }

// Neg flips the sign, keeping the magnitude, with the canonical sign of zero.
func Neg(a Int) Int { return normalize(-a.sign, a.mag) }

// Abs clears the sign to Positive.
func Abs(a Int) Int { return Int{sign: Positive, mag: a.mag} }

// Bit reads bit index i of a, where i == SignBitIndex (-1) reads the sign
// bit (0 for Positive, 1 for Negative) and i >= 0 reads magnitude bit i.
func (a Int) Bit(i int) int {
	if i == SignBitIndex {
		if a.sign == Negative {
			return 1
		}
		return 0
	}
	if i < 0 {
		return 0
	}
	return int((a.mag >> uint(i)) & 1)
}

// WithBit returns a copy of a with bit index i set to v (0 or 1). Index
// SignBitIndex sets the sign.
func (a Int) WithBit(i int, v int) Int {
	if i == SignBitIndex {
		if v != 0 {
			return normalize(Negative, a.mag)
		}
		return normalize(Positive, a.mag)
	}
	mask := uint64(1) << uint(i)
	if v != 0 {
		return normalize(a.sign, a.mag|mask)
	}
	return normalize(a.sign, a.mag&^mask)
}

// BitLen returns the magnitude's bit length, at least 1 (spec.md §4.2).
func (a Int) BitLen() int {
	n := bits.Len64(a.mag)
	if n == 0 {
		return 1
	}
	return n
}

// Cmp orders by signed value: -1, 0, 1.
func Cmp(a, b Int) int {
	av, bv := a.Signed(), b.Signed()
	switch {
	case av < bv:
		return -1
	case av > bv:
		return 1
	default:
		return 0
	}
}

func boolInt(b bool) Int {
	if b {
		return New(1)
	}
	return New(0)
}

// Lt, Le, Gt, Ge, EqCmp, Ne implement the six comparisons, coerced to SM-int
// {0,1} per spec.md §4.2.
func Lt(a, b Int) Int { return boolInt(Cmp(a, b) < 0) }
func Le(a, b Int) Int { return boolInt(Cmp(a, b) <= 0) }
func Gt(a, b Int) Int { return boolInt(Cmp(a, b) > 0) }
func Ge(a, b Int) Int { return boolInt(Cmp(a, b) >= 0) }
func EqCmp(a, b Int) Int { return boolInt(a.Signed() == b.Signed()) }
func Ne(a, b Int) Int { return boolInt(a.Signed() != b.Signed()) }
