package port

import (
	"context"
	"errors"
)

//go:generate mockgen -destination=../service/mocks/coordination_mock.go -package=mocks -source=coordination.go

var (
	ErrNodeNotFound = errors.New("coordination node not found")
	ErrNodeExists   = errors.New("coordination node already exists")
	ErrNotConnected = errors.New("coordination service not connected")
	ErrUnsupported  = errors.New("operation not supported by coordination driver")
)

// WatchEventType classifies a watch notification.
type WatchEventType string

const (
	WatchChildrenChanged WatchEventType = "children_changed"
	WatchNodeChanged     WatchEventType = "node_changed"
	WatchSessionLost     WatchEventType = "session_lost"
)

// WatchEvent is delivered at most once per armed watch.
type WatchEvent struct {
	Type WatchEventType
	Path string
}

// CoordinationGateway is the subset of coordination-service primitives the
// node relies on. Membership is tracked through ephemeral entries: an entry
// lives exactly as long as the session that created it, so membership
// reflects session liveness, not data consistency.
type CoordinationGateway interface {
	// ChildrenW lists the child names of path and arms a one-shot watch on
	// them. ctx bounds the listing only; watchCtx bounds the watch. The
	// returned channel yields at most one event and is closed after it fires
	// or when watchCtx ends; a new watch must be armed with another call.
	ChildrenW(ctx, watchCtx context.Context, path string) ([]string, <-chan WatchEvent, error)

	// Get returns the payload stored at path, or ErrNodeNotFound.
	Get(ctx context.Context, path string) ([]byte, error)

	// Exists reports whether path is present.
	Exists(ctx context.Context, path string) (bool, error)

	// CreateEphemeral creates path bound to this session, or fails with
	// ErrNodeExists.
	CreateEphemeral(ctx context.Context, path string, data []byte) error

	// Delete removes path, or fails with ErrNodeNotFound.
	Delete(ctx context.Context, path string) error

	// Close ends the session; ephemeral entries created by it disappear.
	Close() error
}
