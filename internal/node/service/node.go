package service

import (
	"context"

	"github.com/anthanhphan/go-shard-ring/internal/node/domain"
	"github.com/anthanhphan/go-shard-ring/internal/node/port"
	"github.com/anthanhphan/go-shard-ring/pkg/ring"
)

// NodeServiceImpl is the facade that wires the routing and record use cases.
type NodeServiceImpl struct {
	ring      *ring.Ring
	self      ring.Node
	router    *Router
	repo      port.RecordRepository
	forwarder port.Forwarder
	watcher   *MembershipWatcher
	registrar *SelfRegistrar

	records *recordService
}

// Ensure NodeServiceImpl implements port.NodeService.
var _ port.NodeService = (*NodeServiceImpl)(nil)

// NewNodeService builds the facade. watcher and registrar may be nil when
// only routing and storage are exercised.
func NewNodeService(r *ring.Ring, self ring.Node, router *Router, repo port.RecordRepository, forwarder port.Forwarder, watcher *MembershipWatcher, registrar *SelfRegistrar) *NodeServiceImpl {
	svc := &NodeServiceImpl{
		ring:      r,
		self:      self,
		router:    router,
		repo:      repo,
		forwarder: forwarder,
		watcher:   watcher,
		registrar: registrar,
	}
	svc.records = newRecordService(svc)
	return svc
}

// StoreRecord delegates a client write to the record use case.
func (s *NodeServiceImpl) StoreRecord(ctx context.Context, body []byte, requestID string) (*port.WriteOutcome, error) {
	return s.records.storeRecord(ctx, body, requestID)
}

// StoreLocal delegates a peer write to the record use case.
func (s *NodeServiceImpl) StoreLocal(ctx context.Context, record domain.Record) error {
	return s.records.storeLocal(ctx, record)
}

// ListRecords returns all locally stored records.
func (s *NodeServiceImpl) ListRecords(ctx context.Context) ([]domain.Record, error) {
	return s.records.listRecords(ctx)
}

// Route resolves a key's owner without side effects.
func (s *NodeServiceImpl) Route(key []byte) (domain.RoutingDecision, error) {
	return s.router.Route(key)
}

// Self returns this node's descriptor.
func (s *NodeServiceImpl) Self() ring.Node {
	return s.self
}

// Status snapshots readiness, registration and the current view.
func (s *NodeServiceImpl) Status() domain.RingStatus {
	status := domain.RingStatus{
		Self:       s.self,
		RingSize:   s.ring.Hasher().Size(),
		WatchState: string(WatchIdle),
		Members:    s.ring.Snapshot().Nodes(),
	}
	if s.watcher != nil {
		status.Ready = s.watcher.IsReady()
		status.WatchState = string(s.watcher.State())
	}
	if s.registrar != nil {
		status.Registered = s.registrar.Registered()
	}
	return status
}
