package memstore

import (
	"context"
	"sync"

	"github.com/anthanhphan/go-shard-ring/internal/node/domain"
	"github.com/anthanhphan/go-shard-ring/internal/node/port"
)

// Store keeps records in process memory. Records are lost on restart.
type Store struct {
	mu      sync.RWMutex
	records []domain.Record
}

// Ensure Store implements port.RecordRepository.
var _ port.RecordRepository = (*Store)(nil)

func New() *Store {
	return &Store{}
}

func (s *Store) Insert(_ context.Context, record domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

func (s *Store) List(_ context.Context) ([]domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Record, len(s.records))
	copy(out, s.records)
	return out, nil
}

func (s *Store) Ping(context.Context) error  { return nil }
func (s *Store) Close(context.Context) error { return nil }
