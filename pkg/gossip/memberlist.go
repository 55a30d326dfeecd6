package gossip

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/anthanhphan/go-shard-ring/internal/node/port"
	"github.com/anthanhphan/gosdk/logger"
	"github.com/hashicorp/memberlist"
)

// Config holds the gossip transport settings.
type Config struct {
	NodeName  string
	BindAddr  string
	BindPort  int
	Directory string
}

// GossipAdapter implements port.CoordinationGateway on memberlist. Each
// member that carries metadata is one child of the shard directory, named
// after the member, and its metadata is the node descriptor. A member that
// fails or leaves disappears from the listing, which gives the same liveness
// semantics as an ephemeral entry.
type GossipAdapter struct {
	list *memberlist.Memberlist
	conf *memberlist.Config

	nodeName  string
	directory string

	mu      sync.Mutex
	meta    []byte
	waiters []chan port.WatchEvent
}

// Ensure GossipAdapter implements the memberlist delegates and the gateway.
var (
	_ memberlist.Delegate      = (*GossipAdapter)(nil)
	_ memberlist.EventDelegate = (*GossipAdapter)(nil)
	_ port.CoordinationGateway = (*GossipAdapter)(nil)
)

// NewGossipAdapter creates the local member. It does not publish a descriptor
// until CreateEphemeral is called.
func NewGossipAdapter(cfg Config) (*GossipAdapter, error) {
	config := memberlist.DefaultLANConfig()
	config.Name = cfg.NodeName
	config.BindAddr = cfg.BindAddr
	config.BindPort = cfg.BindPort
	config.AdvertisePort = cfg.BindPort

	// Disable logging for now
	config.LogOutput = io.Discard

	directory := cfg.Directory
	if directory == "" {
		directory = "/data"
	}

	adapter := &GossipAdapter{
		conf:      config,
		nodeName:  cfg.NodeName,
		directory: path.Clean(directory),
	}

	config.Events = adapter   // Handle join/leave events
	config.Delegate = adapter // Handle metadata exchange

	list, err := memberlist.Create(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create memberlist: %w", err)
	}
	adapter.list = list
	return adapter, nil
}

// Join joins the cluster using seed nodes.
func (g *GossipAdapter) Join(seeds []string) error {
	if len(seeds) > 0 {
		_, err := g.list.Join(seeds)
		if err != nil {
			return fmt.Errorf("failed to join cluster: %w", err)
		}
	}
	return nil
}

// ChildrenW lists members carrying a descriptor and arms a one-shot watch
// that fires on the next join, leave or metadata update. The listing is
// local, so ctx is only checked up front.
func (g *GossipAdapter) ChildrenW(ctx, watchCtx context.Context, dir string) ([]string, <-chan port.WatchEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if err := g.checkDir(dir); err != nil {
		return nil, nil, err
	}

	ch := make(chan port.WatchEvent, 1)
	g.mu.Lock()
	g.waiters = append(g.waiters, ch)
	g.mu.Unlock()

	go func() {
		<-watchCtx.Done()
		g.dropWaiter(ch)
	}()

	names := make([]string, 0)
	for _, m := range g.list.Members() {
		if len(g.metaOf(m)) > 0 {
			names = append(names, m.Name)
		}
	}
	sort.Strings(names)
	return names, ch, nil
}

func (g *GossipAdapter) Get(_ context.Context, p string) ([]byte, error) {
	name, err := g.childName(p)
	if err != nil {
		return nil, err
	}
	for _, m := range g.list.Members() {
		if m.Name != name {
			continue
		}
		if meta := g.metaOf(m); len(meta) > 0 {
			return meta, nil
		}
	}
	return nil, fmt.Errorf("get %s: %w", p, port.ErrNodeNotFound)
}

func (g *GossipAdapter) Exists(ctx context.Context, p string) (bool, error) {
	_, err := g.Get(ctx, p)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, port.ErrNodeNotFound) {
		return false, nil
	}
	return false, err
}

// CreateEphemeral publishes data as this member's metadata. Only the local
// member's entry can be created.
func (g *GossipAdapter) CreateEphemeral(ctx context.Context, p string, data []byte) error {
	name, err := g.childName(p)
	if err != nil {
		return err
	}
	if name != g.nodeName {
		return fmt.Errorf("create %s: only %s can be published from this member: %w", p, g.nodeName, port.ErrUnsupported)
	}
	if len(data) > memberlist.MetaMaxSize {
		return fmt.Errorf("create %s: descriptor of %d bytes exceeds gossip metadata limit", p, len(data))
	}

	g.mu.Lock()
	if len(g.meta) > 0 {
		g.mu.Unlock()
		return fmt.Errorf("create %s: %w", p, port.ErrNodeExists)
	}
	g.meta = append([]byte(nil), data...)
	g.mu.Unlock()

	return g.broadcast(ctx, p)
}

// Delete withdraws the local member's descriptor.
func (g *GossipAdapter) Delete(ctx context.Context, p string) error {
	name, err := g.childName(p)
	if err != nil {
		return err
	}
	if name != g.nodeName {
		return fmt.Errorf("delete %s: %w", p, port.ErrUnsupported)
	}

	g.mu.Lock()
	if len(g.meta) == 0 {
		g.mu.Unlock()
		return fmt.Errorf("delete %s: %w", p, port.ErrNodeNotFound)
	}
	g.meta = nil
	g.mu.Unlock()

	return g.broadcast(ctx, p)
}

// Close leaves the cluster gracefully.
func (g *GossipAdapter) Close() error {
	if err := g.list.Leave(time.Second * 5); err != nil {
		return err
	}
	return g.list.Shutdown()
}

// LocalAddr returns the gossip address other members can join through.
func (g *GossipAdapter) LocalAddr() string {
	return g.list.LocalNode().Address()
}

func (g *GossipAdapter) broadcast(ctx context.Context, p string) error {
	timeout := 5 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	g.fire(port.WatchEvent{Type: port.WatchChildrenChanged, Path: g.directory})
	if err := g.list.UpdateNode(timeout); err != nil {
		return fmt.Errorf("broadcast %s: %w", p, err)
	}
	return nil
}

// NodeMeta returns the local node metadata.
func (g *GossipAdapter) NodeMeta(limit int) []byte {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.meta) > limit {
		logger.Warnw("Gossip node meta exceeds limit, withholding it", "size", len(g.meta), "limit", limit)
		return nil
	}
	return g.meta
}

// NotifyMsg, GetBroadcasts, LocalState, MergeRemoteState are not used here but required by Delegate
func (g *GossipAdapter) NotifyMsg([]byte)                           {}
func (g *GossipAdapter) GetBroadcasts(overhead, limit int) [][]byte { return nil }
func (g *GossipAdapter) LocalState(join bool) []byte                { return nil }
func (g *GossipAdapter) MergeRemoteState(buf []byte, join bool)     {}

// NotifyJoin is invoked when a node joins.
func (g *GossipAdapter) NotifyJoin(node *memberlist.Node) {
	logger.Infow("Node joined", "id", node.Name, "addr", node.Address())
	g.fire(port.WatchEvent{Type: port.WatchChildrenChanged, Path: g.directory})
}

// NotifyLeave is invoked when a node leaves.
func (g *GossipAdapter) NotifyLeave(node *memberlist.Node) {
	logger.Infow("Node left", "id", node.Name)
	g.fire(port.WatchEvent{Type: port.WatchChildrenChanged, Path: g.directory})
}

// NotifyUpdate is invoked when a node is updated.
func (g *GossipAdapter) NotifyUpdate(node *memberlist.Node) {
	logger.Debugw("Node metadata updated", "id", node.Name)
	g.fire(port.WatchEvent{Type: port.WatchNodeChanged, Path: path.Join(g.directory, node.Name)})
}

func (g *GossipAdapter) fire(ev port.WatchEvent) {
	g.mu.Lock()
	waiters := g.waiters
	g.waiters = nil
	g.mu.Unlock()

	for _, ch := range waiters {
		ch <- ev
		close(ch)
	}
}

func (g *GossipAdapter) dropWaiter(ch chan port.WatchEvent) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, w := range g.waiters {
		if w == ch {
			g.waiters = append(g.waiters[:i], g.waiters[i+1:]...)
			close(ch)
			return
		}
	}
}

// metaOf returns the descriptor of m, reading the local one directly so it is
// visible before the update has propagated.
func (g *GossipAdapter) metaOf(m *memberlist.Node) []byte {
	if m.Name == g.nodeName {
		g.mu.Lock()
		defer g.mu.Unlock()
		return g.meta
	}
	return m.Meta
}

func (g *GossipAdapter) checkDir(dir string) error {
	if path.Clean(dir) != g.directory {
		return fmt.Errorf("gossip serves only %s, not %s: %w", g.directory, dir, port.ErrUnsupported)
	}
	return nil
}

func (g *GossipAdapter) childName(p string) (string, error) {
	if err := g.checkDir(path.Dir(p)); err != nil {
		return "", err
	}
	return path.Base(p), nil
}
