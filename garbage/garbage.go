// Package garbage implements the uncomputation pile: named pools that
// track registers allocated inside a garbage scope, the scope itself
// (which defers its body exactly like an inversion scope but replays it
// forward rather than inverted on exit), and the explicit clean/assign
// operations the surface language only allows inside such a scope.
// Grounded on original_source/qumquat/garbage.py and the irreversible
// operator definitions in qumquat/qvars.py (spec.md §4.6).
package garbage

import (
	"github.com/google/uuid"

	"github.com/sammylord/qbranch/branch"
	"github.com/sammylord/qbranch/ctrl"
	"github.com/sammylord/qbranch/expr"
	"github.com/sammylord/qbranch/prep"
	"github.com/sammylord/qbranch/qberr"
	"github.com/sammylord/qbranch/reg"
)

// reservedKeylessName is the pile name the "no argument" form of a
// garbage scope implicitly uses and that a named scope may not claim.
const reservedKeylessName = "keyless"

// Pile is the persistent set of keys currently allocated under one name.
// A keyless pile is private to a single scope invocation instead.
type Pile struct {
	Name string
	Keys []*reg.Key
}

func (p *Pile) remove(k *reg.Key) {
	for i, kk := range p.Keys {
		if kk == k {
			p.Keys = append(p.Keys[:i], p.Keys[i+1:]...)
			return
		}
	}
}

// Stack owns every named pile plus the nesting of piles currently active
// (the innermost of which receives newly allocated keys).
type Stack struct {
	cs     *ctrl.Stack
	store  *branch.Store
	piles  map[string]*Pile
	active []*Pile
}

// New creates an empty garbage stack over cs/store.
func New(cs *ctrl.Stack, store *branch.Store) *Stack {
	return &Stack{cs: cs, store: store, piles: map[string]*Pile{}}
}

// Scope is the RAII guard returned by Begin/BeginKeyless.
type Scope struct {
	s       *Stack
	pile    *Pile
	keyless bool
}

// Begin enters a named garbage scope. An empty name generates a fresh
// uuid, matching the "no positional argument" convenience form except
// that it still gets a real, addressable name rather than aliasing
// "keyless" (spec.md §4.6's resolution of the keyless-vs-named open
// question).
func (s *Stack) Begin(name string) (*Scope, error) {
	if name == reservedKeylessName {
		return nil, qberr.Usagef("garbage: %q is a reserved pile name", reservedKeylessName)
	}
	if name == "" {
		name = uuid.New().String()
	}
	pile, ok := s.piles[name]
	if !ok {
		pile = &Pile{Name: name}
		s.piles[name] = pile
	}
	s.active = append(s.active, pile)
	s.cs.PushFrame()
	return &Scope{s: s, pile: pile}, nil
}

// BeginKeyless enters an anonymous garbage scope whose pile must be empty
// again by the time the scope closes.
func (s *Stack) BeginKeyless() *Scope {
	pile := &Pile{Name: reservedKeylessName}
	s.active = append(s.active, pile)
	s.cs.PushFrame()
	return &Scope{s: s, pile: pile, keyless: true}
}

// End pops the scope's queue frame and replays it forward — for real,
// in original order — against whatever frame is now on top (top level,
// or a still-active enclosing scope). The pile stays active (reachable by
// findPile/partner resolution) for the full replay, the same order
// original_source/qumquat/garbage.py's do_garbage keeps pile_stack pushed
// across its `for tup in queue: self.call(tup)`, and is only popped once
// the replay finishes — a proxy key deallocated mid-replay still needs to
// resolve its partner against this pile. A keyless scope additionally
// requires its pile be empty once the replay completes.
func (sc *Scope) End() error {
	actions := sc.s.cs.PopFrame()
	err := sc.s.cs.ReplayForward(actions)
	sc.s.active = sc.s.active[:len(sc.s.active)-1]
	if err != nil {
		return err
	}
	if sc.keyless && len(sc.pile.Keys) > 0 {
		return qberr.Irreversiblef("garbage: keyless pile terminated non-empty (%d register(s) left)", len(sc.pile.Keys))
	}
	return nil
}

// Alloc allocates a fresh register and, if a garbage scope is currently
// active, appends it to the innermost pile (original_source/qumquat/
// keys.py's reg() appending to pile_stack_py). The key is also wired with
// a partner resolver and a deallocation hook so that, if it is later
// deallocated while it never itself held a register (it was declared only
// inside an Inv scope, as a stand-in for whatever allocated key its pile
// matches it to), the real uncomputation lands on the right register and
// both keys drop out of the pile (original_source/qumquat/keys.py's
// alloc_inv, qvars.py's Key.partner()).
func (s *Stack) Alloc(keyID int) (*reg.Key, error) {
	k, err := reg.Alloc(s.store, s.cs, keyID)
	if err != nil {
		return nil, err
	}
	if len(s.active) > 0 {
		top := s.active[len(s.active)-1]
		top.Keys = append(top.Keys, k)
	}
	k.SetResolver(func(key *reg.Key) (*reg.Key, bool) {
		p := s.findPile(key)
		if p == nil {
			return nil, false
		}
		partner, err := partnerOf(p, key)
		if err != nil {
			return nil, false
		}
		return partner, true
	})
	k.SetDeallocHook(func(proxy, target *reg.Key) {
		s.removeFromPiles(proxy, target)
	})
	return k, nil
}

// findPile returns the currently active pile containing k, if any
// (original_source/qumquat/qvars.py's Key.pile(), searching
// pile_stack_qq).
func (s *Stack) findPile(k *reg.Key) *Pile {
	for i := len(s.active) - 1; i >= 0; i-- {
		for _, kk := range s.active[i].Keys {
			if kk == k {
				return s.active[i]
			}
		}
	}
	return nil
}

// partnerOf finds the key pile's uncomputation assigns to k, mirroring
// original_source/qumquat/qvars.py's Key.partner(): walk the pile in
// order, counting the unallocated keys seen before reaching k (allocated
// keys are skipped without counting); the partner is the key at that
// count, which must itself be allocated.
func partnerOf(p *Pile, k *reg.Key) (*reg.Key, error) {
	count := 0
	for _, kk := range p.Keys {
		if kk == k {
			if count >= len(p.Keys) {
				return nil, qberr.Usagef("garbage: no partner available for key %d", k.ID())
			}
			cand := p.Keys[count]
			if !cand.Allocated() {
				return nil, qberr.Usagef("garbage: partner for key %d is not allocated", k.ID())
			}
			return cand, nil
		}
		if !kk.Allocated() {
			count++
		}
	}
	return nil, qberr.Usagef("garbage: key %d not found in its pile", k.ID())
}

// removeFromPiles drops keys from every pile that currently holds them —
// used once a deallocation (direct or via a partner) lands for real, so a
// proxy key and the target it uncomputed both leave the pile together.
// Keyless piles live only on the active stack, not in s.piles, so both are
// swept.
func (s *Stack) removeFromPiles(keys ...*reg.Key) {
	seen := map[*Pile]bool{}
	sweep := func(p *Pile) {
		if seen[p] {
			return
		}
		seen[p] = true
		for _, k := range keys {
			p.remove(k)
		}
	}
	for _, p := range s.piles {
		sweep(p)
	}
	for _, p := range s.active {
		sweep(p)
	}
}

// Clean uninitializes k against the expected value val and deallocates
// it, removing it from whichever pile it belongs to. This is the
// surface language's `clean(key, val)` — init_inv followed by
// deallocation (original_source/qumquat/keys.py's clean()).
func (s *Stack) Clean(k *reg.Key, val expr.Expression) error {
	if err := prep.InitInvExpr(k, val); err != nil {
		return err
	}
	do := func() error {
		regID, ok := k.ResolveRegisterID()
		if !ok {
			return qberr.Usagef("garbage: key %d deallocated twice", k.ID())
		}
		idx, err := ctrl.ControlledIndices(s.cs, s.store)
		if err != nil {
			return err
		}
		if err := s.store.Dealloc(regID, idx); err != nil {
			return err
		}
		k.Deallocate()
		return nil
	}
	undo := func() error {
		k.Reallocate(s.store.Alloc())
		return prep.InitExpr(k, val)
	}
	if err := s.cs.Perform(ctrl.Action{Name: "clean", Do: do, Undo: undo}); err != nil {
		return err
	}
	s.removeFromPiles(k)
	return nil
}

// AssertClean reports a usage error if the named pile is not currently
// empty.
func (s *Stack) AssertClean(name string) error {
	p, ok := s.piles[name]
	if !ok {
		return nil
	}
	if len(p.Keys) > 0 {
		return qberr.Usagef("garbage: pile %q is not clean (%d register(s) remain)", name, len(p.Keys))
	}
	return nil
}

// Assign implements the garbage-scope-only rewrite `r = value`: allocate
// a fresh register holding (value - r), then fold it in with +=, so the
// visible effect is a plain assignment while every underlying step stays
// reversible (original_source/qumquat/qvars.py's assign()).
func Assign(s *Stack, keyID func() int, r *reg.Register, value expr.Expression) error {
	if len(s.active) == 0 {
		return qberr.Usagef("assign: only allowed inside a garbage scope")
	}
	diffKey, err := s.Alloc(keyID())
	if err != nil {
		return err
	}
	diffReg := reg.New(diffKey)
	if err := prep.InitExpr(diffKey, expr.Sub(value, r.Expr())); err != nil {
		return err
	}
	return r.AddAssign(diffReg.Expr())
}
