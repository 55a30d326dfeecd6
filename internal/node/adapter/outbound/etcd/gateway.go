package etcd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/anthanhphan/go-shard-ring/internal/node/port"
	"github.com/anthanhphan/go-shard-ring/pkg/resilience"
	"github.com/anthanhphan/gosdk/logger"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// Config holds the etcd connection settings. The lease TTL plays the role of
// a session timeout.
type Config struct {
	Endpoints   []string
	DialTimeout time.Duration
	LeaseTTL    time.Duration
	Retry       resilience.RetryPolicy
}

// Gateway implements port.CoordinationGateway on etcd. Ephemeral entries are
// keys attached to a lease kept alive for the lifetime of the gateway, and a
// child listing is a prefix read restricted to direct children.
type Gateway struct {
	client *clientv3.Client
	cfg    Config

	mu      sync.RWMutex
	leaseID clientv3.LeaseID

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Ensure Gateway implements port.CoordinationGateway.
var _ port.CoordinationGateway = (*Gateway)(nil)

// Connect dials etcd and grants the session lease.
func Connect(ctx context.Context, cfg Config) (*Gateway, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("etcd: no endpoints configured")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.LeaseTTL < time.Second {
		cfg.LeaseTTL = 10 * time.Second
	}

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("etcd connect: %w", err)
	}

	g := &Gateway{client: client, cfg: cfg}
	g.ctx, g.cancel = context.WithCancel(context.Background())

	keepAlive, err := g.grant(ctx)
	if err != nil {
		g.cancel()
		_ = client.Close()
		return nil, err
	}

	g.wg.Add(1)
	go g.keepAlive(keepAlive)

	logger.Infow("etcd session established", "endpoints", strings.Join(cfg.Endpoints, ","), "lease_id", int64(g.lease()))
	return g, nil
}

func (g *Gateway) grant(ctx context.Context) (<-chan *clientv3.LeaseKeepAliveResponse, error) {
	grantCtx, cancel := context.WithTimeout(ctx, g.cfg.DialTimeout)
	defer cancel()

	resp, err := g.client.Grant(grantCtx, int64(g.cfg.LeaseTTL/time.Second))
	if err != nil {
		return nil, fmt.Errorf("grant lease: %w", err)
	}
	ch, err := g.client.KeepAlive(g.ctx, resp.ID)
	if err != nil {
		return nil, fmt.Errorf("keep lease alive: %w", err)
	}

	g.mu.Lock()
	g.leaseID = resp.ID
	g.mu.Unlock()
	return ch, nil
}

// keepAlive drains keep-alive acknowledgements and replaces the lease when it
// is lost. Entries bound to the old lease expire with it.
func (g *Gateway) keepAlive(ch <-chan *clientv3.LeaseKeepAliveResponse) {
	defer g.wg.Done()
	for {
		select {
		case <-g.ctx.Done():
			return
		case resp, ok := <-ch:
			if ok && resp != nil {
				continue
			}
			if g.ctx.Err() != nil {
				return
			}
			logger.Warnw("etcd lease lost, granting a new one", "lease_id", int64(g.lease()))

			policy := g.cfg.Retry
			policy.MaxAttempts = 0
			err := resilience.Retry(g.ctx, policy, func(ctx context.Context) error {
				next, err := g.grant(ctx)
				if err == nil {
					ch = next
				}
				return err
			}, func(attempt int, err error) {
				logger.Warnw("etcd lease grant failed", "attempt", attempt, "error", err.Error())
			})
			if err != nil {
				return
			}
		}
	}
}

func (g *Gateway) lease() clientv3.LeaseID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.leaseID
}

// ChildrenW lists direct children of dir and watches them from the listed
// revision onwards. The watch fires once, on the first change to a direct
// child.
func (g *Gateway) ChildrenW(ctx, watchCtx context.Context, dir string) ([]string, <-chan port.WatchEvent, error) {
	prefix := childPrefix(dir)

	resp, err := g.client.Get(ctx, prefix, clientv3.WithPrefix(), clientv3.WithKeysOnly())
	if err != nil {
		return nil, nil, fmt.Errorf("list %s: %w", dir, mapError(err))
	}

	children := make([]string, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		if name, ok := directChild(prefix, string(kv.Key)); ok {
			children = append(children, name)
		}
	}

	watchCh := g.client.Watch(clientv3.WithRequireLeader(watchCtx), prefix,
		clientv3.WithPrefix(), clientv3.WithRev(resp.Header.Revision+1))

	out := make(chan port.WatchEvent, 1)
	go func() {
		defer close(out)
		for wr := range watchCh {
			if err := wr.Err(); err != nil {
				if watchCtx.Err() == nil {
					out <- port.WatchEvent{Type: port.WatchSessionLost, Path: dir}
				}
				return
			}
			for _, ev := range wr.Events {
				if _, ok := directChild(prefix, string(ev.Kv.Key)); ok {
					out <- port.WatchEvent{Type: port.WatchChildrenChanged, Path: dir}
					return
				}
			}
		}
	}()
	return children, out, nil
}

func (g *Gateway) Get(ctx context.Context, p string) ([]byte, error) {
	resp, err := g.client.Get(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", p, mapError(err))
	}
	if len(resp.Kvs) == 0 {
		return nil, fmt.Errorf("get %s: %w", p, port.ErrNodeNotFound)
	}
	return resp.Kvs[0].Value, nil
}

func (g *Gateway) Exists(ctx context.Context, p string) (bool, error) {
	resp, err := g.client.Get(ctx, p, clientv3.WithCountOnly())
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", p, mapError(err))
	}
	return resp.Count > 0, nil
}

// CreateEphemeral binds p to the gateway's lease. It fails with
// port.ErrNodeExists when p is already present.
func (g *Gateway) CreateEphemeral(ctx context.Context, p string, data []byte) error {
	resp, err := g.client.Txn(ctx).
		If(clientv3.Compare(clientv3.CreateRevision(p), "=", 0)).
		Then(clientv3.OpPut(p, string(data), clientv3.WithLease(g.lease()))).
		Commit()
	if err != nil {
		return fmt.Errorf("create %s: %w", p, mapError(err))
	}
	if !resp.Succeeded {
		return fmt.Errorf("create %s: %w", p, port.ErrNodeExists)
	}
	return nil
}

func (g *Gateway) Delete(ctx context.Context, p string) error {
	resp, err := g.client.Delete(ctx, p)
	if err != nil {
		return fmt.Errorf("delete %s: %w", p, mapError(err))
	}
	if resp.Deleted == 0 {
		return fmt.Errorf("delete %s: %w", p, port.ErrNodeNotFound)
	}
	return nil
}

// Close revokes the lease, which removes every entry created through this
// gateway, and closes the client.
func (g *Gateway) Close() error {
	g.cancel()
	g.wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), g.cfg.DialTimeout)
	defer cancel()
	if _, err := g.client.Revoke(ctx, g.lease()); err != nil {
		logger.Warnw("etcd lease revoke failed", "error", err.Error())
	}
	return g.client.Close()
}

func childPrefix(dir string) string {
	return strings.TrimSuffix(dir, "/") + "/"
}

// directChild returns the child name of key under prefix, rejecting deeper
// descendants.
func directChild(prefix, key string) (string, bool) {
	if !strings.HasPrefix(key, prefix) {
		return "", false
	}
	name := strings.TrimPrefix(key, prefix)
	if name == "" || strings.Contains(name, "/") {
		return "", false
	}
	return name, true
}

func mapError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, clientv3.ErrNoAvailableEndpoints) {
		return fmt.Errorf("%w: %v", port.ErrNotConnected, err)
	}
	return err
}
