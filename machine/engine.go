// Package machine binds the branch store, control stack and garbage
// stack into one object exposing the full host-embedded surface: key
// allocation, the reversible operators, the unitary primitives, scope
// entry, observation and diagnostics. Grounded on the teacher's
// quantum.QuantumRISCVMachine — the single struct every repl/commands
// handler operates through — generalized from a fixed-width RISC-V
// register file to the branch-enumeration model (spec.md §9's "module
// object -> first-class object, threaded explicitly" design note).
package machine

import (
	"math/rand"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/sammylord/qbranch/branch"
	"github.com/sammylord/qbranch/ctrl"
	"github.com/sammylord/qbranch/diag"
	"github.com/sammylord/qbranch/expr"
	"github.com/sammylord/qbranch/garbage"
	"github.com/sammylord/qbranch/gate"
	"github.com/sammylord/qbranch/observe"
	"github.com/sammylord/qbranch/prep"
	"github.com/sammylord/qbranch/qberr"
	"github.com/sammylord/qbranch/reg"
	"github.com/sammylord/qbranch/smint"
)

// Config holds the engine's numeric tunables. The encoding/json field tags
// let it be loaded from JSON; cmd/qbranch sets its fields from flags by
// hand — a full config framework is unjustified scope for two numbers.
type Config struct {
	Epsilon float64 `json:"epsilon"`
	// QubitWarn is the register count above which the engine logs a
	// warning (branch enumeration is exponential in entangled registers;
	// this is advisory, not a hard cap).
	QubitWarn int `json:"qubit_warn"`
}

// DefaultConfig returns the engine's default tunables.
func DefaultConfig() Config {
	return Config{Epsilon: branch.DefaultEpsilon, QubitWarn: 24}
}

// Engine is the top-level facade: every host-DSL call in a qbranch
// program goes through one Engine. Not safe for concurrent use from
// multiple goroutines (SPEC_FULL.md §5) — the teacher's
// QuantumRISCVMachine makes the identical single-owner assumption.
type Engine struct {
	ID     string
	cfg    Config
	log    zerolog.Logger
	store  *branch.Store
	ctrl   *ctrl.Stack
	garb   *garbage.Stack
	rng    *rand.Rand
	nextID int

	poisoned bool
	poisonOn error
}

// New creates an engine with a fresh, single-branch, zero-register state.
func New(cfg Config, log zerolog.Logger, rng *rand.Rand) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	cs := ctrl.New()
	st := branch.New(cfg.Epsilon, log)
	return &Engine{
		ID:    uuid.New().String(),
		cfg:   cfg,
		log:   log,
		store: st,
		ctrl:  cs,
		garb:  garbage.New(cs, st),
		rng:   rng,
	}
}

// poison marks the engine unusable after err, the way a `panic` mid
// expression-evaluation would in a raise-based host (SPEC_FULL.md §10):
// once set it is never cleared, and every subsequent mutating call fails
// fast instead of operating on a state that may have been left
// half-mutated.
func (e *Engine) poison(err error) error {
	if !e.poisoned {
		e.poisoned = true
		e.poisonOn = err
		e.log.Error().Err(err).Msg("machine: engine poisoned")
	}
	return err
}

func (e *Engine) checkAlive() error {
	if e.poisoned {
		return errors.Wrapf(e.poisonOn, "machine: engine is poisoned by a prior error")
	}
	return nil
}

// Store exposes the underlying branch store for diagnostics callers
// (diag.Snap) and tests that need to inspect raw branch state.
func (e *Engine) Store() *branch.Store { return e.store }

// Reg allocates a fresh key and wraps it as a Register — the `reg()`
// primitive of spec.md §6, routed through the garbage stack so an
// allocation made inside an active garbage scope is tracked by its pile.
func (e *Engine) Reg() (*reg.Register, error) {
	if err := e.checkAlive(); err != nil {
		return nil, err
	}
	id := e.nextID
	e.nextID++
	k, err := e.garb.Alloc(id)
	if err != nil {
		return nil, e.poison(err)
	}
	if n := len(e.store.RegisterIDs()); e.cfg.QubitWarn > 0 && n > e.cfg.QubitWarn {
		e.log.Warn().Int("registers", n).Int("threshold", e.cfg.QubitWarn).Msg("machine: register count above warning threshold")
	}
	return reg.New(k), nil
}

// Init sets r to val (must evaluate to an integer) via prep.InitExpr.
func (e *Engine) Init(r *reg.Register, val expr.Expression) error {
	return e.do(func() error { return prep.InitExpr(r.Key, val) })
}

// InitInv is Init's exact inverse.
func (e *Engine) InitInv(r *reg.Register, val expr.Expression) error {
	return e.do(func() error { return prep.InitInvExpr(r.Key, val) })
}

// InitList puts r into a uniform superposition over vals.
func (e *Engine) InitList(r *reg.Register, vals []smint.Int) error {
	return e.do(func() error { return prep.InitList(r.Key, vals) })
}

// InitListInv is InitList's exact inverse.
func (e *Engine) InitListInv(r *reg.Register, vals []smint.Int) error {
	return e.do(func() error { return prep.InitInvList(r.Key, vals) })
}

// InitDict puts r into a QRAM-weighted superposition over entries.
func (e *Engine) InitDict(r *reg.Register, entries []prep.DictEntry) error {
	return e.do(func() error { return prep.InitDict(r.Key, entries) })
}

// InitDictInv is InitDict's exact inverse.
func (e *Engine) InitDictInv(r *reg.Register, entries []prep.DictEntry) error {
	return e.do(func() error { return prep.InitInvDict(r.Key, entries) })
}

// Had applies a Hadamard to bit `bit` of r's register.
func (e *Engine) Had(r *reg.Register, bit expr.Expression) error {
	return e.do(func() error { return gate.Hadamard(r.Key, bit) })
}

// HadInv is Had's exact inverse (Hadamard is self-inverse).
func (e *Engine) HadInv(r *reg.Register, bit expr.Expression) error {
	return e.do(func() error { return gate.HadamardInv(r.Key, bit) })
}

// QFT applies the d-ary quantum Fourier transform to r's register.
func (e *Engine) QFT(r *reg.Register, d expr.Expression) error {
	return e.do(func() error { return gate.QFT(r.Key, d, false) })
}

// QFTInv is QFT's exact inverse.
func (e *Engine) QFTInv(r *reg.Register, d expr.Expression) error {
	return e.do(func() error { return gate.QFTInv(r.Key, d, false) })
}

// Phase multiplies every controlled branch's amplitude by e^{i*theta}.
func (e *Engine) Phase(theta expr.Expression) error {
	return e.do(func() error { return gate.Phase(e.ctrl, e.store, theta) })
}

// PhasePi is Phase(theta*pi).
func (e *Engine) PhasePi(theta expr.Expression) error {
	return e.do(func() error { return gate.PhasePi(e.ctrl, e.store, theta) })
}

// CNOT flips bit idx2 of r's register when bit idx1 reads 1.
func (e *Engine) CNOT(r *reg.Register, idx1, idx2 expr.Expression) error {
	return e.do(func() error { return gate.CNOT(r.Key, idx1, idx2) })
}

// CNOTInv is CNOT's exact inverse (self-inverse).
func (e *Engine) CNOTInv(r *reg.Register, idx1, idx2 expr.Expression) error {
	return e.do(func() error { return gate.CNOTInv(r.Key, idx1, idx2) })
}

// Swap exchanges the values held by r1 and r2.
func (e *Engine) Swap(r1, r2 *reg.Register) error {
	return e.do(func() error { return gate.Swap(r1, r2) })
}

// RotY applies a Y-axis rotation to bit i of r.
func (e *Engine) RotY(r *reg.Register, i, theta expr.Expression) error {
	return e.do(func() error { return gate.RotY(r, i, theta) })
}

// Inv runs body inside an inversion scope: nothing body performs touches
// the store until the scope closes and replays it reversed.
func (e *Engine) Inv(body func() error) error {
	if err := e.checkAlive(); err != nil {
		return err
	}
	sc := e.ctrl.BeginInv()
	if err := body(); err != nil {
		_ = sc.End()
		return e.poison(err)
	}
	return e.guard(sc.End())
}

// If runs body guarded by guard: every primitive inside only acts on
// branches where guard currently evaluates nonzero.
func (e *Engine) If(guard expr.Expression, body func() error) error {
	if err := e.checkAlive(); err != nil {
		return err
	}
	sc := e.ctrl.BeginIf(guard)
	if err := body(); err != nil {
		_ = sc.End()
		return e.poison(err)
	}
	return e.guard(sc.End())
}

// Garbage runs body inside a named garbage scope (empty name generates a
// fresh uuid); body's operations replay forward against the enclosing
// scope once this one closes.
func (e *Engine) Garbage(name string, body func() error) error {
	if err := e.checkAlive(); err != nil {
		return err
	}
	sc, err := e.garb.Begin(name)
	if err != nil {
		return e.guard(err)
	}
	if err := body(); err != nil {
		_ = sc.End()
		return e.poison(err)
	}
	return e.guard(sc.End())
}

// GarbageKeyless runs body inside an anonymous garbage scope whose pile
// must be empty again once body returns.
func (e *Engine) GarbageKeyless(body func() error) error {
	if err := e.checkAlive(); err != nil {
		return err
	}
	sc := e.garb.BeginKeyless()
	if err := body(); err != nil {
		_ = sc.End()
		return e.poison(err)
	}
	return e.guard(sc.End())
}

// Clean uninitializes r against val and deallocates it. Only meaningful
// inside a garbage scope (the caller is responsible for that context,
// matching original_source/qumquat/keys.py's clean()).
func (e *Engine) Clean(r *reg.Register, val expr.Expression) error {
	return e.do(func() error { return e.garb.Clean(r.Key, val) })
}

// Assign implements the garbage-scope-only `r = value` rewrite.
func (e *Engine) Assign(r *reg.Register, value expr.Expression) error {
	return e.do(func() error { return garbage.Assign(e.garb, e.allocKeyID, r, value) })
}

func (e *Engine) allocKeyID() int {
	id := e.nextID
	e.nextID++
	return id
}

// AssertClean reports a usage error if the named pile is not empty.
func (e *Engine) AssertClean(name string) error {
	return e.do(func() error { return e.garb.AssertClean(name) })
}

// While records body without running it, then replays it under a growing
// q_if guard once per round for as long as any controlled branch still has
// pred nonzero — the data-dependent loop original_source/qumquat/
// control.py's do_while implements: q_if(pred) increments counter every
// round a branch is still looping, then the body itself only runs on
// branches whose counter has climbed past that round's number, so a
// branch that stopped looping earlier is left untouched by later rounds.
// Nesting While inside Inv runs its documented inverse (spec.md:114,
// do_while_inv): the recorded Action's Undo decrements counter back down
// from its per-branch maximum, replaying the body inverted one round at a
// time, exactly mirroring how Inv already inverts If and Garbage.
func (e *Engine) While(pred expr.Expression, counter *reg.Register, body func() error) error {
	if err := e.checkAlive(); err != nil {
		return err
	}
	e.ctrl.PushFrame()
	if err := body(); err != nil {
		e.ctrl.PopFrame()
		return e.poison(err)
	}
	actions := e.ctrl.PopFrame()
	action := ctrl.Action{
		Name: "while",
		Do:   func() error { return e.doWhile(actions, pred, counter) },
		Undo: func() error { return e.doWhileInv(actions, pred, counter) },
	}
	return e.guard(e.ctrl.Perform(action))
}

// doWhile is original_source/qumquat/control.py's do_while, generalized
// off a fixed key-expression pair onto this engine's register/expression
// types.
func (e *Engine) doWhile(actions []ctrl.Action, pred expr.Expression, counter *reg.Register) error {
	if pred.DependsOn(counter.Key.ID()) {
		return qberr.Usagef("while: loop expression cannot depend on loop variable")
	}
	idx, err := ctrl.ControlledIndices(e.ctrl, e.store)
	if err != nil {
		return err
	}
	for _, i := range idx {
		v, err := counter.Expr().Eval(e.store.Branch(i))
		if err != nil {
			return err
		}
		if v.AsFloat() != 0 {
			return qberr.Usagef("while: loop variable must be initialized to 0 on every controlled branch")
		}
	}

	count := int64(0)
	for {
		active, err := e.predicateActive(pred)
		if err != nil {
			return err
		}
		if !active {
			break
		}

		if err := e.If(pred, func() error { return counter.AddAssign(expr.Lit(1)) }); err != nil {
			return err
		}

		bound := count
		if err := e.If(expr.Gt(counter.Expr(), expr.Lit(bound)), func() error {
			return e.ctrl.ReplayForward(actions)
		}); err != nil {
			return err
		}

		count++
	}
	return nil
}

// doWhileInv is original_source/qumquat/control.py's do_while_inv: it
// starts from the largest value counter holds across every controlled
// branch and counts back down to 0, running the body's inverse one round
// at a time before undoing that round's counter increment.
func (e *Engine) doWhileInv(actions []ctrl.Action, pred expr.Expression, counter *reg.Register) error {
	if pred.DependsOn(counter.Key.ID()) {
		return qberr.Usagef("while: loop expression cannot depend on loop variable")
	}
	idx, err := ctrl.ControlledIndices(e.ctrl, e.store)
	if err != nil {
		return err
	}
	var count int64
	for _, i := range idx {
		v, err := counter.Expr().Eval(e.store.Branch(i))
		if err != nil {
			return err
		}
		if n := int64(v.AsFloat()); n > count {
			count = n
		}
	}

	for count > 0 {
		count--
		bound := count
		actionsToRun := actions
		if err := e.If(expr.Gt(counter.Expr(), expr.Lit(bound)), func() error {
			return e.ctrl.InvertReplay(actionsToRun)
		}); err != nil {
			return err
		}
		if err := e.If(pred, func() error { return counter.SubAssign(expr.Lit(1)) }); err != nil {
			return err
		}
	}
	return nil
}

// predicateActive reports whether pred evaluates nonzero on at least one
// currently controlled branch.
func (e *Engine) predicateActive(pred expr.Expression) (bool, error) {
	idx, err := ctrl.ControlledIndices(e.ctrl, e.store)
	if err != nil {
		return false, err
	}
	for _, i := range idx {
		v, err := pred.Eval(e.store.Branch(i))
		if err != nil {
			return false, err
		}
		if v.AsFloat() != 0 {
			return true, nil
		}
	}
	return false, nil
}

// Measure performs a top-level weighted-random measurement of exprs.
func (e *Engine) Measure(exprs ...expr.Expression) ([]expr.Value, error) {
	if err := e.checkAlive(); err != nil {
		return nil, err
	}
	vals, err := observe.Measure(e.ctrl, e.store, e.rng, exprs)
	if err != nil {
		return nil, e.guard(err)
	}
	return vals, nil
}

// Postselect filters the store to branches where guard is nonzero.
func (e *Engine) Postselect(guard expr.Expression) (float64, error) {
	if err := e.checkAlive(); err != nil {
		return 0, err
	}
	p, err := observe.Postselect(e.ctrl, e.store, guard)
	if err != nil {
		return 0, e.guard(err)
	}
	return p, nil
}

// Dist returns the classical probability distribution of exprs.
func (e *Engine) Dist(exprs ...expr.Expression) ([]observe.Outcome, error) {
	if err := e.checkAlive(); err != nil {
		return nil, err
	}
	if err := e.ctrl.RequireTopLevel("dist"); err != nil {
		return nil, e.guard(err)
	}
	out, err := observe.Dist(e.store, exprs)
	if err != nil {
		return nil, e.guard(err)
	}
	return out, nil
}

// Snap builds a reduced density matrix snapshot over regs.
func (e *Engine) Snap(regs ...*reg.Register) (*diag.Snapshot, error) {
	if err := e.checkAlive(); err != nil {
		return nil, err
	}
	keys := make([]*reg.Key, len(regs))
	for i, r := range regs {
		keys[i] = r.Key
	}
	snap, err := diag.Snap(e.store, keys)
	if err != nil {
		return nil, e.guard(err)
	}
	return snap, nil
}

// guard poisons the engine if err is non-nil.
func (e *Engine) guard(err error) error {
	if err != nil {
		return e.poison(err)
	}
	return nil
}

// do checks liveness, then runs fn and poisons the engine on error — the
// wrapper every mutating method below routes through, so a poisoned
// engine rejects new work instead of operating on possibly half-mutated
// state (SPEC_FULL.md §10).
func (e *Engine) do(fn func() error) error {
	if err := e.checkAlive(); err != nil {
		return err
	}
	return e.guard(fn())
}

// TopLevel reports whether the engine is at top level (no active scope).
func (e *Engine) TopLevel() bool { return e.ctrl.TopLevel() }

// Poisoned reports whether a prior error has disabled the engine.
func (e *Engine) Poisoned() bool { return e.poisoned }
