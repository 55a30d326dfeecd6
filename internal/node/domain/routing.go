package domain

import "github.com/anthanhphan/go-shard-ring/pkg/ring"

// RoutingDecision names the node owning a key's ring position.
type RoutingDecision struct {
	Owner    ring.Node
	Position int
	IsLocal  bool
}

// RingStatus is the node's current view of the cluster, for introspection.
type RingStatus struct {
	Self       ring.Node   `json:"self"`
	RingSize   int         `json:"ring_size"`
	Ready      bool        `json:"ready"`
	Registered bool        `json:"registered"`
	WatchState string      `json:"watch_state"`
	Members    []ring.Node `json:"members"`
}
