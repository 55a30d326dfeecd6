package ring

import (
	"sync/atomic"
)

// Ring is the replaceable handle over the current membership snapshot.
// Writers swap in a complete View; readers load whichever View is current and
// keep using it undisturbed by later swaps.
type Ring struct {
	hasher Hasher
	view   atomic.Pointer[View]
}

// NewRing creates a ring with an empty view.
func NewRing(hasher Hasher) *Ring {
	r := &Ring{hasher: hasher}
	r.view.Store(emptyView)
	return r
}

// Hasher returns the key-space hasher shared by node and data positions.
func (r *Ring) Hasher() Hasher {
	return r.hasher
}

// Position hashes data onto the ring.
func (r *Ring) Position(data []byte) int {
	return r.hasher.Position(data)
}

// Snapshot returns the current view.
func (r *Ring) Snapshot() *View {
	return r.view.Load()
}

// Replace atomically installs v and returns the previous view.
func (r *Ring) Replace(v *View) *View {
	if v == nil {
		v = emptyView
	}
	return r.view.Swap(v)
}

// Locate hashes key and resolves its owner against the current view.
func (r *Ring) Locate(key []byte) (Node, int, error) {
	target := r.Position(key)
	owner, err := r.Snapshot().Successor(target)
	return owner, target, err
}
