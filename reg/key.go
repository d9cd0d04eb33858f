// Package reg implements the Key/Register handle layer: a stable key id
// distinct from the underlying register id, the allocated/unallocated
// states a key can be in, and the reversible in-place operators a register
// supports. spec.md §3 ("Key"), §4.2.
package reg

import (
	"github.com/sammylord/qbranch/branch"
	"github.com/sammylord/qbranch/ctrl"
)

// Key is a stable handle: a key id that never changes, plus whichever
// register id it currently resolves to (or none, if its register has been
// deallocated and it is acting only as an uncomputation proxy via its
// pile partner).
type Key struct {
	id        int
	store     *branch.Store
	ctrl      *ctrl.Stack
	regID     int // -1 when unallocated
	partner   *Key
	resolve   func(*Key) (*Key, bool)
	onDealloc func(proxy, target *Key)
}

// NewKey binds register id regID under a fresh stable key id; regID -1
// makes a key that is not yet bound to any register.
func NewKey(id int, store *branch.Store, cs *ctrl.Stack, regID int) *Key {
	return &Key{id: id, store: store, ctrl: cs, regID: regID}
}

// ID returns the stable key id.
func (k *Key) ID() int { return k.id }

// Store returns the owning branch store.
func (k *Key) Store() *branch.Store { return k.store }

// Ctrl returns the owning control stack.
func (k *Key) Ctrl() *ctrl.Stack { return k.ctrl }

// Allocated reports whether the key currently resolves to a live register.
func (k *Key) Allocated() bool { return k.regID >= 0 }

// RegisterID returns the live register id. Only valid when Allocated.
func (k *Key) RegisterID() int { return k.regID }

// Deallocate marks the key unallocated; its register column has already
// been removed from the store by the caller.
func (k *Key) Deallocate() { k.regID = -1 }

// Reallocate rebinds the key to a (new) register id.
func (k *Key) Reallocate(regID int) { k.regID = regID }

// Partner returns the key that will take over uncomputing this key's
// register once it is deallocated, if any.
func (k *Key) Partner() *Key { return k.partner }

// SetPartner assigns the uncomputation partner.
func (k *Key) SetPartner(p *Key) { k.partner = p }

// SetResolver installs the fallback used to compute a partner lazily the
// first time one is needed: a pile lookup when the key itself never got a
// register (e.g. it was declared only inside an Inv scope, as a proxy for
// whatever allocated key its enclosing pile matches it to). The result is
// cached via SetPartner, mirroring original_source/qumquat/qvars.py's
// Key.partner() caching into self.partner_cache.
func (k *Key) SetResolver(fn func(*Key) (*Key, bool)) { k.resolve = fn }

// SetDeallocHook installs the callback run once a deallocation this key
// triggered actually lands on a live register — which may be k itself
// (the ordinary case) or a partner k merely proxies for. proxy is always
// k; target is whichever key actually held the register.
func (k *Key) SetDeallocHook(fn func(proxy, target *Key)) { k.onDealloc = fn }

// Target resolves the key that actually holds k's live register, walking
// (and lazily completing, via SetResolver) the partner chain as needed.
func (k *Key) Target() (*Key, bool) {
	cur := k
	for {
		if cur.Allocated() {
			return cur, true
		}
		if cur.partner == nil && cur.resolve != nil {
			p, ok := cur.resolve(cur)
			if !ok {
				return nil, false
			}
			cur.partner = p
		}
		if cur.partner == nil {
			return nil, false
		}
		cur = cur.partner
	}
}

// ResolveRegisterID follows the partner chain until it finds a live
// register, as an unallocated key does when used as a proxy (spec.md §3).
func (k *Key) ResolveRegisterID() (int, bool) {
	t, ok := k.Target()
	if !ok {
		return 0, false
	}
	return t.regID, true
}
