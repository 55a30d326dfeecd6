package service

import (
	"github.com/anthanhphan/go-shard-ring/internal/node/domain"
	"github.com/anthanhphan/go-shard-ring/internal/node/port"
	"github.com/anthanhphan/go-shard-ring/pkg/ring"
)

// Router resolves the owner of a key against whichever view is current when
// it is called. Two calls for the same key may disagree if membership changed
// in between.
type Router struct {
	ring    *ring.Ring
	self    ring.Node
	metrics port.Metrics
}

// NewRouter creates a router for the node described by self.
func NewRouter(r *ring.Ring, self ring.Node, metrics port.Metrics) *Router {
	if metrics == nil {
		metrics = port.NopMetrics()
	}
	return &Router{ring: r, self: self, metrics: metrics}
}

// Route hashes key and returns its owner. The owner is the member with the
// smallest ring key strictly greater than the key's position, wrapping to the
// lowest member. It returns ring.ErrNoOwner while the view is empty.
func (rt *Router) Route(key []byte) (domain.RoutingDecision, error) {
	owner, position, err := rt.ring.Locate(key)
	if err != nil {
		rt.metrics.ObserveRoute(port.RouteNoOwner)
		return domain.RoutingDecision{Position: position}, err
	}

	decision := domain.RoutingDecision{
		Owner:    owner,
		Position: position,
		IsLocal:  owner.Key == rt.self.Key,
	}
	if decision.IsLocal {
		rt.metrics.ObserveRoute(port.RouteLocal)
	} else {
		rt.metrics.ObserveRoute(port.RouteRemote)
	}
	return decision, nil
}
