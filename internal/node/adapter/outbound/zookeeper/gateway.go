package zookeeper

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/anthanhphan/go-shard-ring/internal/node/port"
	"github.com/anthanhphan/gosdk/logger"
	"github.com/go-zookeeper/zk"
)

// Config holds the ZooKeeper connection settings.
type Config struct {
	Servers        []string
	SessionTimeout time.Duration
	ConnectTimeout time.Duration
}

// Gateway implements port.CoordinationGateway on a ZooKeeper session.
type Gateway struct {
	conn   *zk.Conn
	events <-chan zk.Event
	done   chan struct{}
}

// Ensure Gateway implements port.CoordinationGateway.
var _ port.CoordinationGateway = (*Gateway)(nil)

// Connect opens a session and waits until the ensemble has granted it.
func Connect(ctx context.Context, cfg Config) (*Gateway, error) {
	if len(cfg.Servers) == 0 {
		return nil, fmt.Errorf("zookeeper: no servers configured")
	}
	if cfg.SessionTimeout <= 0 {
		cfg.SessionTimeout = 10 * time.Second
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 15 * time.Second
	}

	conn, events, err := zk.Connect(cfg.Servers, cfg.SessionTimeout, zk.WithLogger(zkLogger{}))
	if err != nil {
		return nil, fmt.Errorf("zookeeper connect: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	for {
		select {
		case <-waitCtx.Done():
			conn.Close()
			return nil, fmt.Errorf("zookeeper session not established: %w", waitCtx.Err())
		case ev := <-events:
			if ev.Type != zk.EventSession {
				continue
			}
			logger.Debugw("ZooKeeper session event", "state", ev.State.String(), "server", ev.Server)
			if ev.State == zk.StateHasSession {
				g := &Gateway{conn: conn, events: events, done: make(chan struct{})}
				go g.logSessionEvents()
				logger.Infow("ZooKeeper session established",
					"servers", strings.Join(cfg.Servers, ","), "session_id", conn.SessionID())
				return g, nil
			}
		}
	}
}

func (g *Gateway) logSessionEvents() {
	for {
		select {
		case <-g.done:
			return
		case ev, ok := <-g.events:
			if !ok {
				return
			}
			switch ev.State {
			case zk.StateExpired:
				logger.Warnw("ZooKeeper session expired, ephemeral entries are gone", "server", ev.Server)
			case zk.StateDisconnected:
				logger.Warnw("ZooKeeper disconnected", "server", ev.Server)
			case zk.StateHasSession:
				logger.Infow("ZooKeeper session re-established", "server", ev.Server)
			}
		}
	}
}

// ChildrenW lists children of dir, creating dir when it does not exist yet,
// and arms a one-shot watch on them.
func (g *Gateway) ChildrenW(ctx, watchCtx context.Context, dir string) ([]string, <-chan port.WatchEvent, error) {
	if err := g.ensurePath(ctx, dir); err != nil {
		return nil, nil, err
	}

	var (
		children []string
		zkEvents <-chan zk.Event
	)
	err := call(ctx, func() error {
		var err error
		children, _, zkEvents, err = g.conn.ChildrenW(dir)
		return err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("children of %s: %w", dir, err)
	}

	out := make(chan port.WatchEvent, 1)
	go func() {
		defer close(out)
		select {
		case <-watchCtx.Done():
		case ev, ok := <-zkEvents:
			if !ok {
				return
			}
			out <- toWatchEvent(ev, dir)
		}
	}()
	return children, out, nil
}

func (g *Gateway) Get(ctx context.Context, p string) ([]byte, error) {
	var data []byte
	err := call(ctx, func() error {
		var err error
		data, _, err = g.conn.Get(p)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", p, err)
	}
	return data, nil
}

func (g *Gateway) Exists(ctx context.Context, p string) (bool, error) {
	var exists bool
	err := call(ctx, func() error {
		var err error
		exists, _, err = g.conn.Exists(p)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", p, err)
	}
	return exists, nil
}

func (g *Gateway) CreateEphemeral(ctx context.Context, p string, data []byte) error {
	if err := g.ensurePath(ctx, path.Dir(p)); err != nil {
		return err
	}
	err := call(ctx, func() error {
		_, err := g.conn.Create(p, data, zk.FlagEphemeral, zk.WorldACL(zk.PermAll))
		return err
	})
	if err != nil {
		return fmt.Errorf("create %s: %w", p, err)
	}
	return nil
}

func (g *Gateway) Delete(ctx context.Context, p string) error {
	err := call(ctx, func() error {
		return g.conn.Delete(p, -1)
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", p, err)
	}
	return nil
}

// Close ends the session. Every ephemeral entry it created is removed by the
// ensemble.
func (g *Gateway) Close() error {
	select {
	case <-g.done:
	default:
		close(g.done)
	}
	g.conn.Close()
	return nil
}

// ensurePath creates every missing persistent node along dir.
func (g *Gateway) ensurePath(ctx context.Context, dir string) error {
	if dir == "" || dir == "/" {
		return nil
	}

	current := ""
	for _, part := range strings.Split(strings.Trim(dir, "/"), "/") {
		current += "/" + part
		node := current
		err := call(ctx, func() error {
			_, err := g.conn.Create(node, nil, 0, zk.WorldACL(zk.PermAll))
			return err
		})
		if err != nil && !errors.Is(err, port.ErrNodeExists) {
			return fmt.Errorf("ensure %s: %w", node, err)
		}
	}
	return nil
}

// call runs a blocking ZooKeeper request, giving up when ctx ends. The request
// itself is bounded by the session's own timeout.
func call(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- fn() }()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return mapError(err)
	}
}

func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, zk.ErrNoNode):
		return fmt.Errorf("%w: %v", port.ErrNodeNotFound, err)
	case errors.Is(err, zk.ErrNodeExists):
		return fmt.Errorf("%w: %v", port.ErrNodeExists, err)
	case errors.Is(err, zk.ErrNoServer), errors.Is(err, zk.ErrConnectionClosed), errors.Is(err, zk.ErrSessionExpired):
		return fmt.Errorf("%w: %v", port.ErrNotConnected, err)
	default:
		return err
	}
}

func toWatchEvent(ev zk.Event, dir string) port.WatchEvent {
	p := ev.Path
	if p == "" {
		p = dir
	}
	switch ev.Type {
	case zk.EventNodeChildrenChanged:
		return port.WatchEvent{Type: port.WatchChildrenChanged, Path: p}
	case zk.EventNotWatching:
		return port.WatchEvent{Type: port.WatchSessionLost, Path: p}
	default:
		return port.WatchEvent{Type: port.WatchNodeChanged, Path: p}
	}
}

type zkLogger struct{}

func (zkLogger) Printf(format string, args ...any) {
	logger.Debugw("zookeeper: " + fmt.Sprintf(format, args...))
}
