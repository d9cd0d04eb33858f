// Package expr implements the expression algebra: pure closures over a
// branch configuration, carrying their free-variable (free key) set and an
// integer-or-float flag, combined by arithmetic, bitwise and comparison
// operators. Expressions never mutate the branch store (spec.md §3/§4.2).
package expr

import (
	"github.com/sammylord/qbranch/branch"
	"github.com/sammylord/qbranch/qberr"
	"github.com/sammylord/qbranch/smint"
)

// EvalFunc evaluates an expression against one branch configuration.
type EvalFunc func(b branch.Branch) (Value, error)

// Expression is a tagged closure: a free-key set (used by the control
// stack to reject self-referential or anti-control mutations), a static
// int/float flag, and the evaluator itself. Representing it this way
// instead of a boxed function value makes the free-key set introspectable
// without evaluating anything (spec.md §9's design note).
type Expression struct {
	free  map[int]bool
	float bool
	eval  EvalFunc
}

// FreeKeys returns the set of register/key ids this expression reads.
func (e Expression) FreeKeys() map[int]bool { return e.free }

// IsFloat reports the expression's static type.
func (e Expression) IsFloat() bool { return e.float }

// Eval evaluates the expression against a branch.
func (e Expression) Eval(b branch.Branch) (Value, error) { return e.eval(b) }

// DependsOn reports whether id is in the free-key set.
func (e Expression) DependsOn(id int) bool { return e.free[id] }

func union(sets ...map[int]bool) map[int]bool {
	out := map[int]bool{}
	for _, s := range sets {
		for k := range s {
			out[k] = true
		}
	}
	return out
}

// Lit builds an integer literal expression.
func Lit(v int64) Expression {
	val := IntValue(smint.New(v))
	return Expression{free: map[int]bool{}, eval: func(branch.Branch) (Value, error) { return val, nil }}
}

// LitFloat builds a float literal expression.
func LitFloat(v float64) Expression {
	val := FloatValue(v)
	return Expression{free: map[int]bool{}, float: true, eval: func(branch.Branch) (Value, error) { return val, nil }}
}

// KeyRef builds an expression that reads register id from the branch
// directly — used where the key id and the live register id coincide.
func KeyRef(id int) Expression {
	return Expression{
		free: map[int]bool{id: true},
		eval: func(b branch.Branch) (Value, error) { return IntValue(b.Get(id)), nil },
	}
}

// NewVar builds a custom leaf expression whose free-key set is the stable
// id keyID but whose evaluator resolves that id to a register dynamically.
// reg.Key uses this so a register's Expression tracks its key id (stable)
// rather than its current register id (which can change across
// deallocation/partner reassignment).
func NewVar(keyID int, eval EvalFunc) Expression {
	return Expression{free: map[int]bool{keyID: true}, eval: eval}
}

func requireInt(v Value, where string) (smint.Int, error) {
	if v.Float {
		return smint.Int{}, qberr.Usagef("%s: requires an integer operand, got float", where)
	}
	return v.I, nil
}

// Neg negates a, preserving its type.
func Neg(a Expression) Expression {
	return Expression{
		free:  a.free,
		float: a.float,
		eval: func(b branch.Branch) (Value, error) {
			v, err := a.eval(b)
			if err != nil {
				return Value{}, err
			}
			if v.Float {
				return FloatValue(-v.F), nil
			}
			return IntValue(smint.Neg(v.I)), nil
		},
	}
}

// Abs returns |a|, preserving its type.
func Abs(a Expression) Expression {
	return Expression{
		free:  a.free,
		float: a.float,
		eval: func(b branch.Branch) (Value, error) {
			v, err := a.eval(b)
			if err != nil {
				return Value{}, err
			}
			if v.Float {
				f := v.F
				if f < 0 {
					f = -f
				}
				return FloatValue(f), nil
			}
			return IntValue(smint.Abs(v.I)), nil
		},
	}
}

type binOp struct {
	name    string
	isFloat func(af, bf bool) bool
	intOp   func(x, y smint.Int) (smint.Int, error)
	fltOp   func(x, y float64) (float64, error)
}

func binary(a, b Expression, op binOp) Expression {
	isFloat := op.isFloat(a.float, b.float)
	return Expression{
		free:  union(a.free, b.free),
		float: isFloat,
		eval: func(br branch.Branch) (Value, error) {
			av, err := a.eval(br)
			if err != nil {
				return Value{}, err
			}
			bv, err := b.eval(br)
			if err != nil {
				return Value{}, err
			}
			if isFloat {
				f, err := op.fltOp(av.AsFloat(), bv.AsFloat())
				if err != nil {
					return Value{}, err
				}
				return FloatValue(f), nil
			}
			r, err := op.intOp(av.I, bv.I)
			if err != nil {
				return Value{}, err
			}
			return IntValue(r), nil
		},
	}
}

func anyFloat(af, bf bool) bool { return af || bf }

// Add returns a+b; float if either operand is float.
func Add(a, b Expression) Expression {
	return binary(a, b, binOp{
		name: "+", isFloat: anyFloat,
		intOp: func(x, y smint.Int) (smint.Int, error) { return smint.Add(x, y), nil },
		fltOp: func(x, y float64) (float64, error) { return x + y, nil },
	})
}

// Sub returns a-b; float if either operand is float.
func Sub(a, b Expression) Expression {
	return binary(a, b, binOp{
		name: "-", isFloat: anyFloat,
		intOp: func(x, y smint.Int) (smint.Int, error) { return smint.Sub(x, y), nil },
		fltOp: func(x, y float64) (float64, error) { return x - y, nil },
	})
}

// Mul returns a*b; float if either operand is float.
func Mul(a, b Expression) Expression {
	return binary(a, b, binOp{
		name: "*", isFloat: anyFloat,
		intOp: func(x, y smint.Int) (smint.Int, error) { return smint.Mul(x, y), nil },
		fltOp: func(x, y float64) (float64, error) { return x * y, nil },
	})
}

// Div returns a/b and is always a float result, per spec.md §4.2's type rule.
func Div(a, b Expression) Expression {
	return Expression{
		free:  union(a.free, b.free),
		float: true,
		eval: func(br branch.Branch) (Value, error) {
			av, err := a.eval(br)
			if err != nil {
				return Value{}, err
			}
			bv, err := b.eval(br)
			if err != nil {
				return Value{}, err
			}
			if bv.AsFloat() == 0 {
				return Value{}, qberr.Numericalf("/: division by zero")
			}
			return FloatValue(av.AsFloat() / bv.AsFloat()), nil
		},
	}
}

// FloorDiv returns a//b; float if either operand is float (floored).
func FloorDiv(a, b Expression) Expression {
	return binary(a, b, binOp{
		name: "//", isFloat: anyFloat,
		intOp: func(x, y smint.Int) (smint.Int, error) { return smint.FloorDiv(x, y) },
		fltOp: func(x, y float64) (float64, error) {
			if y == 0 {
				return 0, qberr.Numericalf("//: division by zero")
			}
			return floorf(x / y), nil
		},
	})
}

// Mod returns a%b; float if either operand is float.
func Mod(a, b Expression) Expression {
	return binary(a, b, binOp{
		name: "%", isFloat: anyFloat,
		intOp: func(x, y smint.Int) (smint.Int, error) { return smint.Mod(x, y) },
		fltOp: func(x, y float64) (float64, error) {
			if y == 0 {
				return 0, qberr.Numericalf("%%: modulo by zero")
			}
			m := modf(x, y)
			return m, nil
		},
	})
}

// Pow returns a**b; float if either operand is float.
func Pow(a, b Expression) Expression {
	return binary(a, b, binOp{
		name: "**", isFloat: anyFloat,
		intOp: func(x, y smint.Int) (smint.Int, error) { return smint.Pow(x, y) },
		fltOp: func(x, y float64) (float64, error) { return powf(x, y), nil },
	})
}

func bitwise(name string, a, b Expression, op func(x, y smint.Int) smint.Int) (Expression, error) {
	if a.float || b.float {
		return Expression{}, qberr.Usagef("%s: bitwise operators reject float operands", name)
	}
	return Expression{
		free: union(a.free, b.free),
		eval: func(br branch.Branch) (Value, error) {
			av, err := a.eval(br)
			if err != nil {
				return Value{}, err
			}
			bv, err := b.eval(br)
			if err != nil {
				return Value{}, err
			}
			ai, err := requireInt(av, name)
			if err != nil {
				return Value{}, err
			}
			bi, err := requireInt(bv, name)
			if err != nil {
				return Value{}, err
			}
			return IntValue(op(ai, bi)), nil
		},
	}, nil
}

// And, Or, Xor, Shl, Shr implement the bitwise operators, which reject
// float operands (spec.md §4.2).
func And(a, b Expression) (Expression, error) { return bitwise("&", a, b, smint.And) }
func Or(a, b Expression) (Expression, error)  { return bitwise("|", a, b, smint.Or) }
func Xor(a, b Expression) (Expression, error) { return bitwise("^", a, b, smint.Xor) }

func Shl(a, n Expression) (Expression, error) {
	return bitwise("<<", a, n, func(x, y smint.Int) smint.Int { return smint.Shl(x, uint(y.Signed())) })
}

func Shr(a, n Expression) (Expression, error) {
	return bitwise(">>", a, n, func(x, y smint.Int) smint.Int { return smint.Shr(x, uint(y.Signed())) })
}

// Index returns bit i of a (i may itself be an expression); i == -1 reads
// the sign bit. Rejects a float base, per spec.md §4.2.
func Index(a, i Expression) (Expression, error) {
	if a.float {
		return Expression{}, qberr.Usagef("[]: cannot index a float expression")
	}
	return Expression{
		free: union(a.free, i.free),
		eval: func(br branch.Branch) (Value, error) {
			av, err := a.eval(br)
			if err != nil {
				return Value{}, err
			}
			iv, err := i.eval(br)
			if err != nil {
				return Value{}, err
			}
			ii, err := requireInt(iv, "[]")
			if err != nil {
				return Value{}, err
			}
			return IntValue(smint.New(int64(av.I.Bit(int(ii.Signed()))))), nil
		},
	}, nil
}

// Len returns the magnitude's bit length (at least 1). Rejects a float
// operand.
func Len(a Expression) (Expression, error) {
	if a.float {
		return Expression{}, qberr.Usagef("len: cannot take the bit length of a float expression")
	}
	return Expression{
		free: a.free,
		eval: func(br branch.Branch) (Value, error) {
			av, err := a.eval(br)
			if err != nil {
				return Value{}, err
			}
			return IntValue(smint.New(int64(av.I.BitLen()))), nil
		},
	}, nil
}

type cmp func(x, y float64) bool

func compare(name string, a, b Expression, icmp func(x, y smint.Int) smint.Int, fcmp cmp) Expression {
	isFloat := anyFloat(a.float, b.float)
	return Expression{
		free: union(a.free, b.free),
		eval: func(br branch.Branch) (Value, error) {
			av, err := a.eval(br)
			if err != nil {
				return Value{}, err
			}
			bv, err := b.eval(br)
			if err != nil {
				return Value{}, err
			}
			if isFloat {
				return IntValue(smint.New(boolToInt(fcmp(av.AsFloat(), bv.AsFloat())))), nil
			}
			return IntValue(icmp(av.I, bv.I)), nil
		},
	}
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// Lt, Le, Gt, Ge, Eq, Ne implement the six comparisons, coerced to SM-int
// {0,1}. Comparisons propagate float like arithmetic (spec.md §4.2).
func Lt(a, b Expression) Expression { return compare("<", a, b, smint.Lt, func(x, y float64) bool { return x < y }) }
func Le(a, b Expression) Expression { return compare("<=", a, b, smint.Le, func(x, y float64) bool { return x <= y }) }
func Gt(a, b Expression) Expression { return compare(">", a, b, smint.Gt, func(x, y float64) bool { return x > y }) }
func Ge(a, b Expression) Expression { return compare(">=", a, b, smint.Ge, func(x, y float64) bool { return x >= y }) }
func Eq(a, b Expression) Expression { return compare("==", a, b, smint.EqCmp, func(x, y float64) bool { return x == y }) }
func Ne(a, b Expression) Expression { return compare("!=", a, b, smint.Ne, func(x, y float64) bool { return x != y }) }
