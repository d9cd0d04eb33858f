package reg

import (
	"github.com/sammylord/qbranch/branch"
	"github.com/sammylord/qbranch/ctrl"
	"github.com/sammylord/qbranch/qberr"
)

// Alloc creates a fresh Key bound to keyID and performs (or, while any
// queue frame is active, queues) the register allocation itself as an
// Action whose inverse is deallocation. This is what lets an allocation
// recorded inside an inversion scope unwind automatically when that
// scope's recorded actions are replayed in reverse (spec.md §4.6).
func Alloc(store *branch.Store, cs *ctrl.Stack, keyID int) (*Key, error) {
	k := NewKey(keyID, store, cs, -1)
	action := ctrl.Action{
		Name: "alloc",
		Do: func() error {
			k.Reallocate(store.Alloc())
			return nil
		},
		Undo: func() error {
			target, ok := k.Target()
			if !ok {
				return qberr.Usagef("key %d: deallocated twice", k.ID())
			}
			idx, err := ctrl.ControlledIndices(cs, store)
			if err != nil {
				return err
			}
			if err := store.Dealloc(target.RegisterID(), idx); err != nil {
				return err
			}
			target.Deallocate()
			if k.onDealloc != nil {
				k.onDealloc(k, target)
			}
			return nil
		},
	}
	if err := cs.Perform(action); err != nil {
		return nil, err
	}
	return k, nil
}
