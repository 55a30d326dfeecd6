package port

import (
	"context"
	"errors"

	"github.com/anthanhphan/go-shard-ring/internal/node/domain"
	"github.com/anthanhphan/go-shard-ring/pkg/ring"
)

//go:generate mockgen -destination=../service/mocks/service_mock.go -package=mocks -source=service.go

var ErrInvalidPayload = errors.New("invalid payload")

// WriteOutcome reports where a client write ended up. Forwarded is nil when
// the record was stored locally.
type WriteOutcome struct {
	Decision  domain.RoutingDecision
	Record    domain.Record
	Forwarded *ForwardResult
}

// NodeService defines the business logic exposed over HTTP.
type NodeService interface {
	// StoreRecord resolves the owner of a client JSON body and stores or
	// forwards it.
	StoreRecord(ctx context.Context, body []byte, requestID string) (*WriteOutcome, error)

	// StoreLocal stores a record forwarded by a peer.
	StoreLocal(ctx context.Context, record domain.Record) error

	// ListRecords returns every locally stored record.
	ListRecords(ctx context.Context) ([]domain.Record, error)

	// Route resolves the owner of a raw key without storing anything.
	Route(key []byte) (domain.RoutingDecision, error)

	// Status returns the node's view of the ring.
	Status() domain.RingStatus

	// Self returns this node's descriptor.
	Self() ring.Node
}
