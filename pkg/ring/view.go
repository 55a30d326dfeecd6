package ring

import (
	"sort"
)

// View is an immutable membership snapshot sorted ascending by ring key.
// A View is never modified after construction; a membership change produces
// a new View.
type View struct {
	nodes []Node
}

var emptyView = &View{}

// NewView copies and sorts nodes. Nodes sharing a ring key are ordered by name
// so that every process derives the same order from the same listing.
func NewView(nodes []Node) *View {
	sorted := make([]Node, len(nodes))
	copy(sorted, nodes)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Key != sorted[j].Key {
			return sorted[i].Key < sorted[j].Key
		}
		return sorted[i].Name < sorted[j].Name
	})
	return &View{nodes: sorted}
}

// Len returns the number of members.
func (v *View) Len() int {
	return len(v.nodes)
}

// Nodes returns a copy of the members in ring order.
func (v *View) Nodes() []Node {
	out := make([]Node, len(v.nodes))
	copy(out, v.nodes)
	return out
}

// Contains reports whether a member with the given name is present.
func (v *View) Contains(name string) bool {
	for _, n := range v.nodes {
		if n.Name == name {
			return true
		}
	}
	return false
}

// Successor returns the owner of target: the first member whose ring key is
// strictly greater than target, wrapping to the lowest-keyed member when no
// key exceeds it. A target equal to a member's key belongs to the next member.
func (v *View) Successor(target int) (Node, error) {
	if len(v.nodes) == 0 {
		return Node{}, ErrNoOwner
	}

	idx := sort.Search(len(v.nodes), func(i int) bool {
		return v.nodes[i].Key > target
	})
	if idx == len(v.nodes) {
		idx = 0
	}
	return v.nodes[idx], nil
}
