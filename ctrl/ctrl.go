// Package ctrl implements the control stack: scoped modes (inversion,
// quantum conditional, garbage, while), a queue-frame stack that defers
// actions performed inside an active scope, and the list of active
// control-expression guards every primitive consults before mutating a
// branch. spec.md §4.5.
//
// Every scope (inv, garbage, q_while) works the same way at the queue
// layer: entering one pushes a frame, and nothing performed while that
// frame is innermost actually touches the store — it is only recorded.
// What differs is what each scope's own Close does with the recorded
// list once it has it: inv replays it in reverse, inverted; garbage and
// q_while replay it forward, in its original order, because their whole
// point is to materialize a sequence of real operations that was merely
// being assembled during recording, not to undo one (grounded on
// original_source/qumquat/control.py and garbage.py, where `alloc`,
// `oper`, `had` and friends are *all* gated behind the same
// `queue_action` check regardless of which scope queued them).
package ctrl

import (
	"github.com/sammylord/qbranch/branch"
	"github.com/sammylord/qbranch/expr"
	"github.com/sammylord/qbranch/qberr"
)

// Action is one invertible unit of work. Do applies it; Undo applies its
// exact inverse.
type Action struct {
	Name string
	Do   func() error
	Undo func() error
}

func (a Action) inverse() Action {
	return Action{Name: a.Name + "_inv", Do: a.Undo, Undo: a.Do}
}

// Stack is the control stack: active control guards plus a stack of queue
// frames.
type Stack struct {
	controls []expr.Expression
	frames   [][]Action
}

// New creates an empty control stack (top level: no controls, no frames).
func New() *Stack { return &Stack{} }

// ActiveControls returns the currently active guard expressions, outermost
// first.
func (s *Stack) ActiveControls() []expr.Expression {
	out := make([]expr.Expression, len(s.controls))
	copy(out, s.controls)
	return out
}

// InQueue reports whether any queue frame is active.
func (s *Stack) InQueue() bool { return len(s.frames) > 0 }

// TopLevel reports whether neither a control guard nor a queue frame is
// active — the only state in which measurement/postselection/dist are
// legal (spec.md §4.7).
func (s *Stack) TopLevel() bool { return len(s.controls) == 0 && len(s.frames) == 0 }

// RequireTopLevel returns a usage error unless the stack is at top level.
func (s *Stack) RequireTopLevel(what string) error {
	if !s.TopLevel() {
		return qberr.Usagef("%s: only allowed at top level (no active scope)", what)
	}
	return nil
}

// PushControl pushes a q_if guard.
func (s *Stack) PushControl(e expr.Expression) { s.controls = append(s.controls, e) }

// PopControl pops the most recently pushed q_if guard.
func (s *Stack) PopControl() {
	if len(s.controls) == 0 {
		return
	}
	s.controls = s.controls[:len(s.controls)-1]
}

// ControlOverlap reports whether id is a free key of any active control
// guard — mutating such a register is the anti-control ambiguity spec.md
// §4.2 forbids.
func (s *Stack) ControlOverlap(id int) bool {
	for _, c := range s.controls {
		if c.DependsOn(id) {
			return true
		}
	}
	return false
}

// Perform records a into the innermost queue frame, if any, instead of
// running it; at top level (no active frame) it runs a.Do immediately.
func (s *Stack) Perform(a Action) error {
	n := len(s.frames)
	if n == 0 {
		return a.Do()
	}
	s.frames[n-1] = append(s.frames[n-1], a)
	return nil
}

// PushFrame starts a new queue frame: every Perform call made while it is
// innermost is recorded, not executed.
func (s *Stack) PushFrame() { s.frames = append(s.frames, nil) }

// PopFrame pops the innermost frame and returns its recorded actions in
// program order.
func (s *Stack) PopFrame() []Action {
	n := len(s.frames)
	f := s.frames[n-1]
	s.frames = s.frames[:n-1]
	return f
}

// ReplayForward performs actions, in order, through Perform — so they run
// for real if no frame is active afterward, or get folded into a
// still-active outer frame otherwise.
func (s *Stack) ReplayForward(actions []Action) error {
	for _, a := range actions {
		if err := s.Perform(a); err != nil {
			return err
		}
	}
	return nil
}

// InvertReplay performs the group inverse of actions (reverse order, each
// inverted) through Perform.
func (s *Stack) InvertReplay(actions []Action) error {
	for i := len(actions) - 1; i >= 0; i-- {
		if err := s.Perform(actions[i].inverse()); err != nil {
			return err
		}
	}
	return nil
}

// ControlledIndices returns the indices of st's branches on which every
// active control guard evaluates nonzero.
func ControlledIndices(s *Stack, st *branch.Store) ([]int, error) {
	if len(s.controls) == 0 {
		idx := make([]int, st.Len())
		for i := range idx {
			idx[i] = i
		}
		return idx, nil
	}
	var idx []int
	for i := 0; i < st.Len(); i++ {
		b := st.Branch(i)
		ok := true
		for _, c := range s.controls {
			v, err := c.Eval(b)
			if err != nil {
				return nil, err
			}
			if v.AsFloat() == 0 {
				ok = false
				break
			}
		}
		if ok {
			idx = append(idx, i)
		}
	}
	return idx, nil
}

// Scope is the RAII-style guard returned by inversion/conditional scopes:
// defer scope.End().
type Scope interface {
	End() error
}

// invScope replays its recorded actions in reverse, inverted, on exit.
type invScope struct{ s *Stack }

// BeginInv enters an inversion scope: nothing performed inside it touches
// the store until End runs the group inverse.
func (s *Stack) BeginInv() Scope {
	s.PushFrame()
	return &invScope{s: s}
}

func (sc *invScope) End() error { return sc.s.InvertReplay(sc.s.PopFrame()) }

// ifScope is the q_if guard scope: push/pop one control expression,
// itself gated behind Perform so that entering/leaving a q_if nested
// inside an outer inv/garbage/q_while scope is recorded rather than
// applied immediately, and composes correctly when that outer scope
// replays (original_source/qumquat/control.py gates do_if/do_if_inv
// behind the same queue_action check as every other primitive).
type ifScope struct {
	s      *Stack
	action Action
}

// BeginIf enters a quantum-conditional scope guarded by guard.
func (s *Stack) BeginIf(guard expr.Expression) Scope {
	action := Action{
		Name: "do_if",
		Do:   func() error { s.PushControl(guard); return nil },
		Undo: func() error { s.PopControl(); return nil },
	}
	s.Perform(action)
	return &ifScope{s: s, action: action}
}

func (sc *ifScope) End() error {
	return sc.s.Perform(sc.action.inverse())
}
