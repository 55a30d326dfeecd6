package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sync"
	"sync/atomic"
	"time"

	"github.com/anthanhphan/go-shard-ring/internal/node/port"
	"github.com/anthanhphan/go-shard-ring/pkg/resilience"
	"github.com/anthanhphan/go-shard-ring/pkg/ring"
	"github.com/anthanhphan/gosdk/logger"
)

// MembershipSource is what the registrar needs from the watcher.
type MembershipSource interface {
	Ready() <-chan struct{}
	Subscribe() <-chan struct{}
}

// RegistrarConfig tunes self-registration.
type RegistrarConfig struct {
	Directory        string
	OperationTimeout time.Duration
	Retry            resilience.RetryPolicy
}

// SelfRegistrar publishes this node's descriptor as an ephemeral entry once
// the first membership view is known.
type SelfRegistrar struct {
	gateway    port.CoordinationGateway
	membership MembershipSource
	ring       *ring.Ring
	self       ring.Node
	path       string
	cfg        RegistrarConfig
	metrics    port.Metrics

	registered atomic.Bool

	listenersMu sync.Mutex
	listeners   []func(registered bool)
}

// NewSelfRegistrar creates a registrar for self under cfg.Directory.
func NewSelfRegistrar(gateway port.CoordinationGateway, membership MembershipSource, r *ring.Ring, self ring.Node, cfg RegistrarConfig, metrics port.Metrics) *SelfRegistrar {
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = 5 * time.Second
	}
	if metrics == nil {
		metrics = port.NopMetrics()
	}
	return &SelfRegistrar{
		gateway:    gateway,
		membership: membership,
		ring:       r,
		self:       self,
		path:       path.Join(cfg.Directory, self.Name),
		cfg:        cfg,
		metrics:    metrics,
	}
}

// Path returns the coordination path of this node's entry.
func (r *SelfRegistrar) Path() string {
	return r.path
}

// Registered reports whether the entry is currently believed to exist.
func (r *SelfRegistrar) Registered() bool {
	return r.registered.Load()
}

// OnChange registers fn to observe registration state changes.
func (r *SelfRegistrar) OnChange(fn func(registered bool)) {
	r.listenersMu.Lock()
	defer r.listenersMu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// Run registers once the first view is ready, then re-registers whenever a
// completed view shows this node's entry is gone (for example after the
// session that owned it expired).
func (r *SelfRegistrar) Run(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-r.membership.Ready():
	}

	changes := r.membership.Subscribe()
	if err := r.Register(ctx); err != nil && ctx.Err() == nil {
		logger.Errorw("Self-registration failed, node is not visible to peers",
			"path", r.path, "error", err.Error())
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changes:
			if r.ring.Snapshot().Contains(r.self.Name) {
				continue
			}
			if err := r.recover(ctx); err != nil && ctx.Err() == nil {
				logger.Errorw("Re-registration failed", "path", r.path, "error", err.Error())
			}
		}
	}
}

// recover re-publishes the entry when the coordination service no longer has
// it. A view that simply predates our own creation is ignored.
func (r *SelfRegistrar) recover(ctx context.Context) error {
	opCtx, cancel := context.WithTimeout(ctx, r.cfg.OperationTimeout)
	exists, err := r.gateway.Exists(opCtx, r.path)
	cancel()
	if err != nil {
		return fmt.Errorf("check own entry: %w", err)
	}
	if exists {
		return nil
	}

	if r.registered.Load() {
		logger.Warnw("Own membership entry disappeared, re-registering", "path", r.path)
		r.setRegistered(false)
	}
	return r.Register(ctx)
}

// Register publishes the descriptor, replacing any stale entry at the same
// path. It never runs before the first membership view is complete.
func (r *SelfRegistrar) Register(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-r.membership.Ready():
	}

	payload, err := r.self.Encode()
	if err != nil {
		return fmt.Errorf("encode descriptor: %w", err)
	}

	err = resilience.Retry(ctx, r.cfg.Retry, func(ctx context.Context) error {
		return r.publish(ctx, payload)
	}, func(attempt int, err error) {
		logger.Warnw("Self-registration attempt failed", "path", r.path, "attempt", attempt, "error", err.Error())
	})
	if err != nil {
		r.setRegistered(false)
		return err
	}

	r.setRegistered(true)
	logger.Infow("Node registered", "path", r.path, "name", r.self.Name, "key", r.self.Key, "addr", r.self.Addr())
	return nil
}

// Deregister removes the entry ahead of session close.
func (r *SelfRegistrar) Deregister(ctx context.Context) error {
	opCtx, cancel := context.WithTimeout(ctx, r.cfg.OperationTimeout)
	defer cancel()

	r.setRegistered(false)
	if err := r.gateway.Delete(opCtx, r.path); err != nil && !errors.Is(err, port.ErrNodeNotFound) {
		return fmt.Errorf("delete %s: %w", r.path, err)
	}
	return nil
}

func (r *SelfRegistrar) publish(ctx context.Context, payload []byte) error {
	opCtx, cancel := context.WithTimeout(ctx, r.cfg.OperationTimeout)
	defer cancel()

	exists, err := r.gateway.Exists(opCtx, r.path)
	if err != nil {
		return fmt.Errorf("check %s: %w", r.path, err)
	}
	if exists {
		logger.Infow("Stale entry found, deleting and recreating", "path", r.path)
		if err := r.gateway.Delete(opCtx, r.path); err != nil && !errors.Is(err, port.ErrNodeNotFound) {
			return fmt.Errorf("delete stale %s: %w", r.path, err)
		}
	}

	if err := r.gateway.CreateEphemeral(opCtx, r.path, payload); err != nil {
		return fmt.Errorf("create %s: %w", r.path, err)
	}
	return nil
}

func (r *SelfRegistrar) setRegistered(v bool) {
	if r.registered.Swap(v) == v {
		return
	}
	r.metrics.SetRegistered(v)

	r.listenersMu.Lock()
	listeners := append([]func(bool){}, r.listeners...)
	r.listenersMu.Unlock()
	for _, fn := range listeners {
		fn(v)
	}
}
