package expr

import (
	"math"

	"github.com/sammylord/qbranch/branch"
	"github.com/sammylord/qbranch/smint"
)

func unaryFloat(a Expression, f func(float64) float64) Expression {
	return Expression{
		free:  a.free,
		float: true,
		eval: func(b branch.Branch) (Value, error) {
			v, err := a.eval(b)
			if err != nil {
				return Value{}, err
			}
			return FloatValue(f(v.AsFloat())), nil
		},
	}
}

// Sqrt, Sin, Cos, Tan, Exp are the real-valued functions spec.md §6 lists
// as utilities over real expressions. All coerce their argument to float
// and always produce a float.
func Sqrt(a Expression) Expression { return unaryFloat(a, math.Sqrt) }
func Sin(a Expression) Expression  { return unaryFloat(a, math.Sin) }
func Cos(a Expression) Expression  { return unaryFloat(a, math.Cos) }
func Tan(a Expression) Expression  { return unaryFloat(a, math.Tan) }
func Exp(a Expression) Expression  { return unaryFloat(a, math.Exp) }

// Round, Floor, Ceil round a (possibly float) expression to an integer
// expression, per spec.md §6.
func Round(a Expression) Expression {
	return Expression{
		free: a.free,
		eval: func(b branch.Branch) (Value, error) {
			v, err := a.eval(b)
			if err != nil {
				return Value{}, err
			}
			return IntValue(smint.New(int64(math.Round(v.AsFloat())))), nil
		},
	}
}

func Floor(a Expression) Expression {
	return Expression{
		free: a.free,
		eval: func(b branch.Branch) (Value, error) {
			v, err := a.eval(b)
			if err != nil {
				return Value{}, err
			}
			return IntValue(smint.New(int64(math.Floor(v.AsFloat())))), nil
		},
	}
}

func Ceil(a Expression) Expression {
	return Expression{
		free: a.free,
		eval: func(b branch.Branch) (Value, error) {
			v, err := a.eval(b)
			if err != nil {
				return Value{}, err
			}
			return IntValue(smint.New(int64(math.Ceil(v.AsFloat())))), nil
		},
	}
}

// IntCast coerces a to an SM-int (truncating any float).
func IntCast(a Expression) Expression {
	return Expression{
		free: a.free,
		eval: func(b branch.Branch) (Value, error) {
			v, err := a.eval(b)
			if err != nil {
				return Value{}, err
			}
			if !v.Float {
				return v, nil
			}
			return IntValue(smint.New(int64(v.F))), nil
		},
	}
}

// FloatCast coerces a to a float.
func FloatCast(a Expression) Expression {
	return Expression{
		free:  a.free,
		float: true,
		eval: func(b branch.Branch) (Value, error) {
			v, err := a.eval(b)
			if err != nil {
				return Value{}, err
			}
			return FloatValue(v.AsFloat()), nil
		},
	}
}
