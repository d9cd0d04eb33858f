package branch

import (
	"math"
	"math/cmplx"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/sammylord/qbranch/smint"
)

// DefaultEpsilon is the amplitude prune threshold from spec.md §6.
const DefaultEpsilon = 1e-10

// Store owns the vector of branches and the invariants that keep it a unit
// vector: normalization, schema uniformity (every branch shares the same
// register id set) and pruning (no branch at or below epsilon amplitude).
type Store struct {
	branches []Branch
	nextID   int
	epsilon  float64
	log      zerolog.Logger
}

// New creates a store with a single branch of amplitude 1 and no
// registers allocated.
func New(epsilon float64, log zerolog.Logger) *Store {
	if epsilon <= 0 {
		epsilon = DefaultEpsilon
	}
	return &Store{
		branches: []Branch{{Values: map[int]smint.Int{}, Amp: 1}},
		epsilon:  epsilon,
		log:      log,
	}
}

// Epsilon returns the configured prune threshold.
func (s *Store) Epsilon() float64 { return s.epsilon }

// Len returns the number of branches.
func (s *Store) Len() int { return len(s.branches) }

// Branches returns the live branch slice. Callers must not retain it
// across a mutating call.
func (s *Store) Branches() []Branch { return s.branches }

// Branch returns branch i.
func (s *Store) Branch(i int) Branch { return s.branches[i] }

// Replace overwrites the branch list wholesale (used by primitives that
// rebuild it from scratch, e.g. Hadamard/QFT fan-out).
func (s *Store) Replace(branches []Branch) { s.branches = branches }

// Set assigns register id on branch i.
func (s *Store) Set(branchIdx, id int, v smint.Int) {
	s.branches[branchIdx].Values[id] = v
}

// Alloc allocates a fresh, dense register id and sets it to +0 in every
// branch, including branches outside any active control filter — schema
// uniformity requires every branch share the same register id set
// regardless of control scoping (spec.md §4.1).
func (s *Store) Alloc() int {
	id := s.nextID
	s.nextID++
	for i := range s.branches {
		s.branches[i].Values[id] = smint.Zero
	}
	s.log.Debug().Int("register", id).Msg("branch: allocate")
	return id
}

// Dealloc removes register id's column from every branch, after verifying
// it reads +0 on every branch index in controlledIdx (the active-control
// filtered subset). Verification is scoped to controlled branches, but
// removal is universal, per spec.md §4.1.
func (s *Store) Dealloc(id int, controlledIdx []int) error {
	controlled := make(map[int]bool, len(controlledIdx))
	for _, i := range controlledIdx {
		controlled[i] = true
	}
	for i, b := range s.branches {
		if !controlled[i] {
			continue
		}
		v, ok := b.Values[id]
		if ok && !(v.Magnitude() == 0) {
			return errors.Errorf("branch: deallocate register %d: branch %d holds nonzero value %d", id, i, v.Signed())
		}
	}
	for i := range s.branches {
		delete(s.branches[i].Values, id)
	}
	s.log.Debug().Int("register", id).Msg("branch: deallocate")
	return nil
}

// RegisterIDs returns the register id set of the first branch, which by
// the schema-uniformity invariant is shared by every branch.
func (s *Store) RegisterIDs() []int {
	if len(s.branches) == 0 {
		return nil
	}
	ids := make([]int, 0, len(s.branches[0].Values))
	for id := range s.branches[0].Values {
		ids = append(ids, id)
	}
	return ids
}

// Prune merges configuration-equal branches by summing amplitudes, drops
// any branch at or below epsilon, and renormalizes so probabilities sum to
// 1. Must run after any primitive that can produce duplicate
// configurations (Hadamard, QFT, init) — a pure append-then-prune
// implementation without merging silently loses interference.
func (s *Store) Prune() {
	merged := make([]Branch, 0, len(s.branches))
	for _, b := range s.branches {
		found := false
		for i := range merged {
			if sameConfiguration(merged[i], b) {
				merged[i].Amp += b.Amp
				found = true
				break
			}
		}
		if !found {
			merged = append(merged, b.clone())
		}
	}

	kept := merged[:0]
	for _, b := range merged {
		if cmplx.Abs(b.Amp) > s.epsilon {
			kept = append(kept, b)
		}
	}
	merged = kept

	var sum float64
	for _, b := range merged {
		sum += real(b.Amp * cmplx.Conj(b.Amp))
	}
	if sum > 0 {
		norm := complex(1/math.Sqrt(sum), 0)
		for i := range merged {
			merged[i].Amp *= norm
		}
	}

	s.log.Debug().Int("before", len(s.branches)).Int("after", len(merged)).Msg("branch: prune")
	s.branches = merged
}

// NormSquared returns the current sum of |amp|^2, which Prune keeps at 1
// within floating tolerance (spec.md §8's normalization invariant).
func (s *Store) NormSquared() float64 {
	var sum float64
	for _, b := range s.branches {
		sum += real(b.Amp * cmplx.Conj(b.Amp))
	}
	return sum
}

// Clone deep-copies the store, used by diagnostics and by tests that check
// round-trip/double-inverse properties without mutating the original.
func (s *Store) Clone() *Store {
	cp := &Store{
		branches: make([]Branch, len(s.branches)),
		nextID:   s.nextID,
		epsilon:  s.epsilon,
		log:      s.log,
	}
	for i, b := range s.branches {
		cp.branches[i] = b.clone()
	}
	return cp
}
