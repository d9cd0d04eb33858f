// Package script parses and interprets the .qb line-oriented script
// format: one statement per line, adapted from the opcode-keyed
// strings.Fields parsing shape the teacher's quantum.parseRISCInstruction
// uses for its text instruction format (SPEC_FULL.md §7.1), rewritten for
// the qbranch primitive set instead of RISC-V opcodes.
package script

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/sammylord/qbranch/expr"
	"github.com/sammylord/qbranch/machine"
	"github.com/sammylord/qbranch/observe"
	"github.com/sammylord/qbranch/reg"
)

// Interp runs .qb statements against one Engine, tracking named registers.
type Interp struct {
	eng  *machine.Engine
	vars map[string]*reg.Register
	// Out receives one line of text per measure/dist statement's result,
	// if set. A script run with no REPL attached (Out == nil) still
	// executes measure/dist for their side effects (collapse,
	// renormalization) but produces no output.
	Out func(string)
}

// New creates an interpreter bound to eng.
func New(eng *machine.Engine) *Interp {
	return &Interp{eng: eng, vars: map[string]*reg.Register{}}
}

func (in *Interp) emit(lines []string) {
	if in.Out == nil {
		return
	}
	for _, l := range lines {
		in.Out(l)
	}
}

// Run parses and executes every non-blank, non-comment line of src in
// order, stopping at the first error.
func (in *Interp) Run(src string) error {
	for i, line := range strings.Split(src, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := in.RunLine(line); err != nil {
			return errors.Wrapf(err, "line %d: %q", i+1, line)
		}
	}
	return nil
}

// RunLine parses and executes a single statement line. The values a
// measure/dist statement produces are sent as printable text to Out (if
// set); the return value is only the statement's error, if any.
func (in *Interp) RunLine(line string) error {
	if strings.Contains(line, ":=") {
		return in.runAssign(line)
	}
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return nil
	}
	op := parts[0]
	args := parts[1:]

	switch op {
	case "reg":
		return errors.New("reg: use 'name := reg' to allocate a named register")
	case "init":
		if len(args) != 2 {
			return errors.New("usage: init <name> <expr>")
		}
		r, err := in.lookup(args[0])
		if err != nil {
			return err
		}
		e, err := in.expr(args[1])
		if err != nil {
			return err
		}
		return in.eng.Init(r, e)
	case "had":
		if len(args) != 2 {
			return errors.New("usage: had <name> <bit>")
		}
		r, err := in.lookup(args[0])
		if err != nil {
			return err
		}
		bit, err := in.expr(args[1])
		if err != nil {
			return err
		}
		return in.eng.Had(r, bit)
	case "qft":
		if len(args) != 2 {
			return errors.New("usage: qft <name> <d>")
		}
		r, err := in.lookup(args[0])
		if err != nil {
			return err
		}
		d, err := in.expr(args[1])
		if err != nil {
			return err
		}
		return in.eng.QFT(r, d)
	case "phase":
		if len(args) != 1 {
			return errors.New("usage: phase <theta>")
		}
		theta, err := in.expr(args[0])
		if err != nil {
			return err
		}
		return in.eng.Phase(theta)
	case "cnot":
		if len(args) != 3 {
			return errors.New("usage: cnot <name> <bit1> <bit2>")
		}
		r, err := in.lookup(args[0])
		if err != nil {
			return err
		}
		b1, err := in.expr(args[1])
		if err != nil {
			return err
		}
		b2, err := in.expr(args[2])
		if err != nil {
			return err
		}
		return in.eng.CNOT(r, b1, b2)
	case "measure":
		exprs, err := in.exprList(args)
		if err != nil {
			return err
		}
		vals, err := in.eng.Measure(exprs...)
		if err != nil {
			return err
		}
		in.emit(FormatOutcomes([]observe.Outcome{{Values: vals, Prob: 1}}))
		return nil
	case "dist":
		exprs, err := in.exprList(args)
		if err != nil {
			return err
		}
		outcomes, err := in.eng.Dist(exprs...)
		if err != nil {
			return err
		}
		in.emit(FormatOutcomes(outcomes))
		return nil
	case "postselect":
		if len(args) != 1 {
			return errors.New("usage: postselect <expr>")
		}
		e, err := in.expr(args[0])
		if err != nil {
			return err
		}
		_, err = in.eng.Postselect(e)
		return err
	default:
		return in.runCompoundAssign(op, args)
	}
}

// runAssign handles `name := reg`.
func (in *Interp) runAssign(line string) error {
	parts := strings.SplitN(line, ":=", 2)
	if len(parts) != 2 {
		return errors.Errorf("malformed assignment: %q", line)
	}
	name := strings.TrimSpace(parts[0])
	rhs := strings.TrimSpace(parts[1])
	if rhs != "reg" {
		return errors.Errorf("only 'name := reg' is supported, got %q", line)
	}
	r, err := in.eng.Reg()
	if err != nil {
		return err
	}
	in.vars[name] = r
	return nil
}

// runCompoundAssign handles `name += expr`, `name -= expr`, `name *= expr`.
func (in *Interp) runCompoundAssign(op string, args []string) error {
	if len(args) > 0 && (args[0] == "+=" || args[0] == "-=" || args[0] == "*=") {
		op, args = op+args[0], args[1:]
	}
	if !strings.HasSuffix(op, "+=") && !strings.HasSuffix(op, "-=") && !strings.HasSuffix(op, "*=") {
		return errors.Errorf("unknown statement %q", op)
	}
	name := strings.TrimSuffix(strings.TrimSuffix(strings.TrimSuffix(op, "+="), "-="), "*=")
	suffix := op[len(name):]
	r, err := in.lookup(name)
	if err != nil {
		return err
	}
	if len(args) != 1 {
		return errors.Errorf("usage: <name>%s <expr>", suffix)
	}
	e, err := in.expr(args[0])
	if err != nil {
		return err
	}
	switch suffix {
	case "+=":
		return r.AddAssign(e)
	case "-=":
		return r.SubAssign(e)
	case "*=":
		return r.MulAssign(e)
	}
	return errors.Errorf("unknown compound assignment %q", op)
}

func (in *Interp) lookup(name string) (*reg.Register, error) {
	r, ok := in.vars[name]
	if !ok {
		return nil, errors.Errorf("undefined register %q", name)
	}
	return r, nil
}

func (in *Interp) exprList(toks []string) ([]expr.Expression, error) {
	out := make([]expr.Expression, len(toks))
	for i, t := range toks {
		e, err := in.expr(t)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

// expr parses one token as either an integer literal, a named register's
// value, or a `name[bit]` indexing expression — the small subset of
// spec.md §4.2's expression grammar this line format exposes textually.
func (in *Interp) expr(tok string) (expr.Expression, error) {
	if strings.Contains(tok, "[") && strings.HasSuffix(tok, "]") {
		open := strings.Index(tok, "[")
		name := tok[:open]
		bitTok := tok[open+1 : len(tok)-1]
		r, err := in.lookup(name)
		if err != nil {
			return expr.Expression{}, err
		}
		bit, err := in.expr(bitTok)
		if err != nil {
			return expr.Expression{}, err
		}
		return expr.Index(r.Expr(), bit)
	}
	if r, ok := in.vars[tok]; ok {
		return r.Expr(), nil
	}
	if v, err := strconv.ParseInt(tok, 10, 64); err == nil {
		return expr.Lit(v), nil
	}
	if f, err := strconv.ParseFloat(tok, 64); err == nil {
		return expr.LitFloat(f), nil
	}
	return expr.Expression{}, errors.Errorf("cannot parse expression token %q", tok)
}

// FormatOutcomes renders each outcome as one display line: its values
// joined by ", " (floats with 10 digits) followed by "  p=" and the
// probability with 5 digits. It formats only; it does not measure.
func FormatOutcomes(outcomes []observe.Outcome) []string {
	lines := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		parts := make([]string, len(o.Values))
		for i, v := range o.Values {
			if v.Float {
				parts[i] = strconv.FormatFloat(v.F, 'f', 10, 64)
			} else {
				parts[i] = strconv.FormatInt(v.I.Signed(), 10)
			}
		}
		lines = append(lines, strings.Join(parts, ", ")+"  p="+strconv.FormatFloat(o.Prob, 'f', 5, 64))
	}
	return lines
}
