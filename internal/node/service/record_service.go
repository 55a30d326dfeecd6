package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/anthanhphan/go-shard-ring/internal/node/domain"
	"github.com/anthanhphan/go-shard-ring/internal/node/port"
	"github.com/anthanhphan/gosdk/logger"
)

// recordService stores client writes locally or hands them to their owner.
type recordService struct {
	core *NodeServiceImpl
}

var emptyObject = []byte("{}")

func newRecordService(core *NodeServiceImpl) *recordService {
	return &recordService{core: core}
}

// storeRecord compacts the JSON body; the compact form is both the hash input
// and the stored value. An empty body is stored as an empty object.
func (s *recordService) storeRecord(ctx context.Context, body []byte, requestID string) (*port.WriteOutcome, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		body = emptyObject
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, body); err != nil {
		return nil, fmt.Errorf("%w: %w", port.ErrInvalidPayload, err)
	}

	decision, err := s.core.router.Route(compact.Bytes())
	if err != nil {
		return nil, err
	}

	record := domain.Record{Key: decision.Position, Value: compact.String()}
	outcome := &port.WriteOutcome{Decision: decision, Record: record}

	if decision.IsLocal {
		if err := s.insert(ctx, record); err != nil {
			return nil, err
		}
		logger.Debugw("Stored record locally", "request_id", requestID, "key", record.Key)
		return outcome, nil
	}

	result, err := s.core.forwarder.Forward(ctx, decision.Owner, record, requestID)
	if err != nil {
		if !errors.Is(err, port.ErrForwardFailed) {
			err = fmt.Errorf("%w: %w", port.ErrForwardFailed, err)
		}
		logger.Warnw("Forwarding record failed",
			"request_id", requestID, "key", record.Key, "owner", decision.Owner.String(), "error", err.Error())
		return nil, err
	}
	logger.Debugw("Forwarded record", "request_id", requestID, "key", record.Key, "owner", decision.Owner.String(), "status", result.StatusCode)

	outcome.Forwarded = result
	return outcome, nil
}

// storeLocal stores a record a peer already routed to this node. Ownership is
// not re-checked: views may legitimately differ between peers.
func (s *recordService) storeLocal(ctx context.Context, record domain.Record) error {
	if err := record.Validate(s.core.ring.Hasher().Size()); err != nil {
		return fmt.Errorf("%w: %w", port.ErrInvalidPayload, err)
	}
	return s.insert(ctx, record)
}

func (s *recordService) listRecords(ctx context.Context) ([]domain.Record, error) {
	records, err := s.core.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", port.ErrStorage, err)
	}
	return records, nil
}

func (s *recordService) insert(ctx context.Context, record domain.Record) error {
	if err := s.core.repo.Insert(ctx, record); err != nil {
		return fmt.Errorf("%w: %w", port.ErrStorage, err)
	}
	return nil
}
