package service

import (
	"context"
	"path"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/anthanhphan/go-shard-ring/internal/node/port"
)

// fakeGateway is an in-memory coordination tree with one-shot child watches.
type fakeGateway struct {
	mu        sync.Mutex
	entries   map[string][]byte
	getErrs   map[string]error
	watches   []*fakeWatch
	listErrs  []error
	listCalls atomic.Int32
	// hangs is the number of upcoming listings that block until their
	// context ends.
	hangs        int
	hungDeadline atomic.Bool
}

type fakeWatch struct {
	dir  string
	ch   chan port.WatchEvent
	once sync.Once
}

func (w *fakeWatch) fire(ev port.WatchEvent) {
	w.once.Do(func() {
		w.ch <- ev
		close(w.ch)
	})
}

func (w *fakeWatch) cancel() {
	w.once.Do(func() { close(w.ch) })
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		entries: make(map[string][]byte),
		getErrs: make(map[string]error),
	}
}

func (g *fakeGateway) ChildrenW(ctx, watchCtx context.Context, dir string) ([]string, <-chan port.WatchEvent, error) {
	g.listCalls.Add(1)

	g.mu.Lock()
	if g.hangs > 0 {
		g.hangs--
		g.mu.Unlock()
		_, hasDeadline := ctx.Deadline()
		g.hungDeadline.Store(hasDeadline)
		<-ctx.Done()
		return nil, nil, ctx.Err()
	}
	defer g.mu.Unlock()

	if len(g.listErrs) > 0 {
		err := g.listErrs[0]
		g.listErrs = g.listErrs[1:]
		return nil, nil, err
	}

	children := make([]string, 0, len(g.entries))
	for p := range g.entries {
		if path.Dir(p) == dir {
			children = append(children, path.Base(p))
		}
	}
	sort.Strings(children)

	w := &fakeWatch{dir: dir, ch: make(chan port.WatchEvent, 1)}
	g.watches = append(g.watches, w)
	go func() {
		<-watchCtx.Done()
		w.cancel()
	}()
	return children, w.ch, nil
}

func (g *fakeGateway) Get(_ context.Context, p string) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err, ok := g.getErrs[p]; ok {
		return nil, err
	}
	data, ok := g.entries[p]
	if !ok {
		return nil, port.ErrNodeNotFound
	}
	return data, nil
}

func (g *fakeGateway) Exists(_ context.Context, p string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.entries[p]
	return ok, nil
}

func (g *fakeGateway) CreateEphemeral(_ context.Context, p string, data []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.entries[p]; ok {
		return port.ErrNodeExists
	}
	g.entries[p] = data
	g.fireLocked(path.Dir(p))
	return nil
}

func (g *fakeGateway) Delete(_ context.Context, p string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.entries[p]; !ok {
		return port.ErrNodeNotFound
	}
	delete(g.entries, p)
	g.fireLocked(path.Dir(p))
	return nil
}

func (g *fakeGateway) Close() error { return nil }

// put stores an entry without going through the ephemeral create path.
func (g *fakeGateway) put(p string, data []byte) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.entries[p] = data
	g.fireLocked(path.Dir(p))
}

func (g *fakeGateway) failGet(p string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err == nil {
		delete(g.getErrs, p)
		return
	}
	g.getErrs[p] = err
}

func (g *fakeGateway) hangListing(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hangs += n
}

func (g *fakeGateway) failListing(errs ...error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listErrs = append(g.listErrs, errs...)
}

// touch fires pending watches on dir without changing any entry.
func (g *fakeGateway) touch(dir string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fireLocked(dir)
}

func (g *fakeGateway) fireLocked(dir string) {
	kept := g.watches[:0]
	for _, w := range g.watches {
		if w.dir == dir {
			w.fire(port.WatchEvent{Type: port.WatchChildrenChanged, Path: dir})
			continue
		}
		kept = append(kept, w)
	}
	g.watches = kept
}

var _ port.CoordinationGateway = (*fakeGateway)(nil)
