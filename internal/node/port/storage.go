package port

import (
	"context"
	"errors"

	"github.com/anthanhphan/go-shard-ring/internal/node/domain"
)

//go:generate mockgen -destination=../service/mocks/storage_mock.go -package=mocks -source=storage.go

var ErrStorage = errors.New("record storage failure")

// RecordRepository is the local record store.
type RecordRepository interface {
	// Insert appends a record.
	Insert(ctx context.Context, record domain.Record) error

	// List returns every stored record in insertion order.
	List(ctx context.Context) ([]domain.Record, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend connection.
	Close(ctx context.Context) error
}
