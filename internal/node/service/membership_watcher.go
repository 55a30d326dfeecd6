package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/anthanhphan/go-shard-ring/internal/node/port"
	"github.com/anthanhphan/go-shard-ring/pkg/resilience"
	"github.com/anthanhphan/go-shard-ring/pkg/ring"
	"github.com/anthanhphan/gosdk/logger"
)

// WatchState is the membership watcher's position in its listing cycle.
type WatchState string

const (
	WatchIdle     WatchState = "idle"
	WatchListing  WatchState = "listing"
	WatchWatching WatchState = "watching"
)

// WatcherConfig tunes the membership watcher.
type WatcherConfig struct {
	Directory        string
	OperationTimeout time.Duration
	FetchConcurrency int
	// Retry paces re-listing after a failed cycle. MaxAttempts is ignored:
	// the watcher keeps retrying until its context ends.
	Retry resilience.RetryPolicy
}

// MembershipWatcher keeps the ring's view in sync with the children of the
// shard directory. Each cycle lists the children with a one-shot watch,
// fetches every descriptor, and swaps in a complete new view; a fired watch
// starts the next cycle.
type MembershipWatcher struct {
	gateway port.CoordinationGateway
	ring    *ring.Ring
	cfg     WatcherConfig
	metrics port.Metrics
	pool    *resilience.WorkerPool

	mu    sync.RWMutex
	state WatchState

	ready     chan struct{}
	readyOnce sync.Once

	subsMu sync.Mutex
	subs   []chan struct{}
}

// NewMembershipWatcher creates a watcher in the idle state.
func NewMembershipWatcher(gateway port.CoordinationGateway, r *ring.Ring, cfg WatcherConfig, metrics port.Metrics) *MembershipWatcher {
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = 5 * time.Second
	}
	if cfg.FetchConcurrency <= 0 {
		cfg.FetchConcurrency = 8
	}
	if metrics == nil {
		metrics = port.NopMetrics()
	}

	return &MembershipWatcher{
		gateway: gateway,
		ring:    r,
		cfg:     cfg,
		metrics: metrics,
		pool:    resilience.NewWorkerPool(cfg.FetchConcurrency, cfg.FetchConcurrency*4),
		state:   WatchIdle,
		ready:   make(chan struct{}),
	}
}

// Run drives the listing cycle until ctx ends. A failed cycle leaves the
// current view untouched and is retried with backoff, which also re-arms the
// watch.
func (w *MembershipWatcher) Run(ctx context.Context) error {
	defer w.pool.Close()
	defer w.setState(WatchIdle)

	failures := 0
	for {
		w.setState(WatchListing)

		cycleCtx, cancel := context.WithCancel(ctx)
		events, err := w.refresh(cycleCtx)
		if err != nil {
			cancel()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failures++
			delay := w.cfg.Retry.Backoff(failures)
			logger.Warnw("Membership refresh failed, keeping current view",
				"directory", w.cfg.Directory, "attempt", failures, "retry_in", delay.String(), "error", err.Error())
			if !sleepCtx(ctx, delay) {
				return ctx.Err()
			}
			continue
		}

		w.setState(WatchWatching)
		select {
		case <-ctx.Done():
			cancel()
			return ctx.Err()
		case ev, ok := <-events:
			cancel()
			if !ok {
				// The gateway dropped the watch without firing it.
				failures++
				logger.Warnw("Membership watch closed without event, re-listing", "directory", w.cfg.Directory)
				if !sleepCtx(ctx, w.cfg.Retry.Backoff(failures)) {
					return ctx.Err()
				}
				continue
			}
			failures = 0
			logger.Debugw("Membership watch fired", "type", string(ev.Type), "path", ev.Path)
		}
	}
}

// refresh runs one listing cycle and returns the armed watch. The listing is
// bounded by the operation timeout; the watch lives as long as ctx.
func (w *MembershipWatcher) refresh(ctx context.Context) (<-chan port.WatchEvent, error) {
	start := time.Now()

	listCtx, cancel := context.WithTimeout(ctx, w.cfg.OperationTimeout)
	children, events, err := w.gateway.ChildrenW(listCtx, ctx, w.cfg.Directory)
	cancel()
	if err != nil {
		err = fmt.Errorf("list children of %s: %w", w.cfg.Directory, err)
		w.metrics.ObserveRebuild(0, time.Since(start), err)
		return nil, err
	}
	logger.Debugw("Listed shard directory", "directory", w.cfg.Directory, "children", children)

	nodes, err := w.fetchAll(ctx, children)
	if err != nil {
		w.metrics.ObserveRebuild(0, time.Since(start), err)
		return nil, err
	}

	view := ring.NewView(nodes)
	w.ring.Replace(view)

	w.readyOnce.Do(func() {
		close(w.ready)
		logger.Infow("Initial membership view populated", "members", view.Len())
	})
	w.notify()

	w.metrics.ObserveRebuild(view.Len(), time.Since(start), nil)
	logger.Infow("Membership view rebuilt", "members", view.Len(), "nodes", nodeNames(view))
	return events, nil
}

// fetchAll reads every child descriptor. Children that vanished since the
// listing or carry an unusable descriptor are skipped; any other failure
// aborts the cycle.
func (w *MembershipWatcher) fetchAll(ctx context.Context, children []string) ([]ring.Node, error) {
	if len(children) == 0 {
		return nil, nil
	}

	results := make([]*ring.Node, len(children))
	errs := make([]error, len(children))
	ringSize := w.ring.Hasher().Size()

	err := w.pool.Each(ctx, len(children), func(i int) {
		childPath := path.Join(w.cfg.Directory, children[i])

		getCtx, cancel := context.WithTimeout(ctx, w.cfg.OperationTimeout)
		defer cancel()

		data, err := w.gateway.Get(getCtx, childPath)
		if errors.Is(err, port.ErrNodeNotFound) {
			logger.Debugw("Node vanished before its descriptor was read", "path", childPath)
			return
		}
		if err != nil {
			errs[i] = fmt.Errorf("get %s: %w", childPath, err)
			return
		}

		node, err := ring.DecodeNode(data)
		if err != nil {
			logger.Warnw("Skipping malformed node descriptor", "path", childPath, "error", err.Error())
			return
		}
		if node.Key < 0 || node.Key >= ringSize {
			logger.Warnw("Skipping node with ring key outside the key space",
				"path", childPath, "key", node.Key, "ring_size", ringSize)
			return
		}
		results[i] = &node
	})
	if err != nil {
		return nil, fmt.Errorf("schedule descriptor fetch: %w", err)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	nodes := make([]ring.Node, 0, len(children))
	for _, n := range results {
		if n != nil {
			nodes = append(nodes, *n)
		}
	}
	return nodes, nil
}

// Ready is closed once the first complete view has been installed.
func (w *MembershipWatcher) Ready() <-chan struct{} {
	return w.ready
}

// IsReady reports whether the first view has been installed.
func (w *MembershipWatcher) IsReady() bool {
	select {
	case <-w.ready:
		return true
	default:
		return false
	}
}

// State returns the current cycle state.
func (w *MembershipWatcher) State() WatchState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

// Subscribe returns a channel signalled after every installed view. Signals
// coalesce: a slow reader sees one pending signal, not one per rebuild.
func (w *MembershipWatcher) Subscribe() <-chan struct{} {
	ch := make(chan struct{}, 1)
	w.subsMu.Lock()
	w.subs = append(w.subs, ch)
	w.subsMu.Unlock()
	return ch
}

func (w *MembershipWatcher) notify() {
	w.subsMu.Lock()
	defer w.subsMu.Unlock()
	for _, ch := range w.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (w *MembershipWatcher) setState(s WatchState) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = s
}

func nodeNames(v *ring.View) []string {
	nodes := v.Nodes()
	names := make([]string, 0, len(nodes))
	for _, n := range nodes {
		names = append(names, fmt.Sprintf("%s:%d", n.Name, n.Key))
	}
	return names
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
