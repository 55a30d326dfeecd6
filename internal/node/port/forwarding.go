package port

import (
	"context"
	"errors"

	"github.com/anthanhphan/go-shard-ring/internal/node/domain"
	"github.com/anthanhphan/go-shard-ring/pkg/ring"
)

//go:generate mockgen -destination=../service/mocks/forwarding_mock.go -package=mocks -source=forwarding.go

// ErrForwardFailed covers both transport errors and non-success answers from
// the owning peer.
var ErrForwardFailed = errors.New("forwarding to owner failed")

// ForwardResult is the owner's answer, relayed verbatim to the caller.
type ForwardResult struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Forwarder delivers a record to the peer that owns it.
type Forwarder interface {
	Forward(ctx context.Context, owner ring.Node, record domain.Record, requestID string) (*ForwardResult, error)
}
