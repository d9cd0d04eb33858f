package expr

import "github.com/sammylord/qbranch/smint"

// Value is the per-branch evaluation result of an Expression: either an
// SM-int or a float64, tagged by Float.
type Value struct {
	Float bool
	I     smint.Int
	F     float64
}

// IntValue wraps an SM-int result.
func IntValue(i smint.Int) Value { return Value{I: i} }

// FloatValue wraps a float result.
func FloatValue(f float64) Value { return Value{Float: true, F: f} }

// AsFloat returns the value coerced to float64 regardless of its tag.
func (v Value) AsFloat() float64 {
	if v.Float {
		return v.F
	}
	return float64(v.I.Signed())
}
