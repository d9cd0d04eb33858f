// Package branch owns the explicit sum-of-configurations representation of
// the simulated state: an ordered list of Branches, each a register-id to
// signed-magnitude-integer configuration plus a complex amplitude, together
// with the store operations (allocate, deallocate, prune) that keep the
// list a valid unit vector.
package branch

import "github.com/sammylord/qbranch/smint"

// Branch is one classical configuration of every currently-allocated
// register, together with its complex amplitude.
type Branch struct {
	Values map[int]smint.Int
	Amp    complex128
}

// clone deep-copies a branch's register map; the amplitude is a value type.
func (b Branch) clone() Branch {
	cp := make(map[int]smint.Int, len(b.Values))
	for k, v := range b.Values {
		cp[k] = v
	}
	return Branch{Values: cp, Amp: b.Amp}
}

// Get reads register id, defaulting to +0 when the branch predates the
// register's allocation (should not happen under schema uniformity, but
// keeps Get total).
func (b Branch) Get(id int) smint.Int {
	if v, ok := b.Values[id]; ok {
		return v
	}
	return smint.Zero
}

// sameConfiguration reports whether two branches assign equal values to
// every register id (amplitude excluded).
func sameConfiguration(a, b Branch) bool {
	if len(a.Values) != len(b.Values) {
		return false
	}
	for id, av := range a.Values {
		bv, ok := b.Values[id]
		if !ok || !av.Equal(bv) {
			return false
		}
	}
	return true
}
