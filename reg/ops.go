package reg

import (
	"math"

	"github.com/sammylord/qbranch/qberr"
	"github.com/sammylord/qbranch/smint"

	"github.com/sammylord/qbranch/expr"
)

// AddAssign implements `+= e`: never irreversible.
func (r *Register) AddAssign(e expr.Expression) error {
	return r.mutate("+=",
		e,
		func(cur, v smint.Int) (smint.Int, error) { return smint.Add(cur, v), nil },
		func(cur, v smint.Int) (smint.Int, error) { return smint.Sub(cur, v), nil },
	)
}

// SubAssign implements `-= e`: never irreversible.
func (r *Register) SubAssign(e expr.Expression) error {
	return r.mutate("-=",
		e,
		func(cur, v smint.Int) (smint.Int, error) { return smint.Sub(cur, v), nil },
		func(cur, v smint.Int) (smint.Int, error) { return smint.Add(cur, v), nil },
	)
}

// MulAssign implements `*= e`: irreversible when e=0, or when the undo's
// division is not exact.
func (r *Register) MulAssign(e expr.Expression) error {
	return r.mutate("*=",
		e,
		func(cur, v smint.Int) (smint.Int, error) {
			if v.Magnitude() == 0 {
				return smint.Zero, qberr.Irreversiblef("*=: multiplying by zero loses information")
			}
			return smint.Mul(cur, v), nil
		},
		func(cur, v smint.Int) (smint.Int, error) {
			if v.Magnitude() == 0 {
				return smint.Zero, qberr.Irreversiblef("*=: cannot undo a multiply by zero")
			}
			rem, err := smint.Mod(cur, v)
			if err != nil {
				return smint.Zero, err
			}
			if rem.Magnitude() != 0 {
				return smint.Zero, qberr.Irreversiblef("*=: undo requires exact division, %d is not divisible by %d", cur.Signed(), v.Signed())
			}
			return smint.FloorDiv(cur, v)
		},
	)
}

// FloorDivAssign implements `//= e`: irreversible when r mod e != 0, or e=0.
func (r *Register) FloorDivAssign(e expr.Expression) error {
	return r.mutate("//=",
		e,
		func(cur, v smint.Int) (smint.Int, error) {
			if v.Magnitude() == 0 {
				return smint.Zero, qberr.Irreversiblef("//=: division by zero")
			}
			rem, err := smint.Mod(cur, v)
			if err != nil {
				return smint.Zero, err
			}
			if rem.Magnitude() != 0 {
				return smint.Zero, qberr.Irreversiblef("//=: %d is not evenly divisible by %d", cur.Signed(), v.Signed())
			}
			return smint.FloorDiv(cur, v)
		},
		func(cur, v smint.Int) (smint.Int, error) { return smint.Mul(cur, v), nil },
	)
}

// XorAssign implements `^= e`: self-inverse, never irreversible.
func (r *Register) XorAssign(e expr.Expression) error {
	xor := func(cur, v smint.Int) (smint.Int, error) { return smint.Xor(cur, v), nil }
	return r.mutate("^=", e, xor, xor)
}

// PowAssign implements `**= e`: irreversible when e is not a positive
// integer, or when the undo's integer root does not exist.
func (r *Register) PowAssign(e expr.Expression) error {
	return r.mutate("**=",
		e,
		func(cur, v smint.Int) (smint.Int, error) {
			if v.Sign() == smint.Negative || v.Magnitude() == 0 {
				return smint.Zero, qberr.Irreversiblef("**=: exponent must be a positive integer")
			}
			return smint.Pow(cur, v)
		},
		func(cur, v smint.Int) (smint.Int, error) {
			if v.Sign() == smint.Negative || v.Magnitude() == 0 {
				return smint.Zero, qberr.Irreversiblef("**=: exponent must be a positive integer")
			}
			return integerRoot(cur, v)
		},
	)
}

// ShlAssign implements `<<= e`: never irreversible (shifted-off high bits
// are outside this port's uint64 magnitude width, the same fixed-width
// tradeoff the branch store's register representation makes throughout).
func (r *Register) ShlAssign(e expr.Expression) error {
	return r.mutate("<<=",
		e,
		func(cur, v smint.Int) (smint.Int, error) { return smint.Shl(cur, uint(v.Signed())), nil },
		func(cur, v smint.Int) (smint.Int, error) { return smint.Shr(cur, uint(v.Signed())), nil },
	)
}

// integerRoot computes the exponent-th integer root of cur, or an
// Irreversible error if no exact integer root exists.
func integerRoot(cur, exponent smint.Int) (smint.Int, error) {
	e := exponent.Signed()
	if cur.Magnitude() == 0 {
		return smint.Zero, nil
	}
	if cur.Sign() == smint.Negative && e%2 == 0 {
		return smint.Zero, qberr.Irreversiblef("**=: no real even root of a negative value")
	}
	mag := float64(cur.Magnitude())
	guess := int64(math.Round(math.Pow(mag, 1.0/float64(e))))
	for _, cand := range []int64{guess - 1, guess, guess + 1} {
		if cand <= 0 {
			continue
		}
		p := int64(1)
		overflow := false
		for i := int64(0); i < e; i++ {
			p *= cand
			if p < 0 {
				overflow = true
				break
			}
		}
		if !overflow && p == int64(cur.Magnitude()) {
			root := smint.New(cand)
			if cur.Sign() == smint.Negative {
				root = smint.Neg(root)
			}
			return root, nil
		}
	}
	return smint.Zero, qberr.Irreversiblef("**=: %d has no exact integer %d-th root", cur.Signed(), e)
}
