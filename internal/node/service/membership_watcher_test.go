package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/anthanhphan/go-shard-ring/internal/node/port"
	"github.com/anthanhphan/go-shard-ring/pkg/resilience"
	"github.com/anthanhphan/go-shard-ring/pkg/ring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDir = "/data"

func startWatcher(t *testing.T, gw *fakeGateway) (*MembershipWatcher, *ring.Ring) {
	t.Helper()
	return startWatcherWithTimeout(t, gw, time.Second)
}

func startWatcherWithTimeout(t *testing.T, gw *fakeGateway, opTimeout time.Duration) (*MembershipWatcher, *ring.Ring) {
	t.Helper()

	r := ring.NewRing(ring.NewSHA256Hasher(ring.DefaultSize))
	w := NewMembershipWatcher(gw, r, WatcherConfig{
		Directory:        testDir,
		OperationTimeout: opTimeout,
		FetchConcurrency: 2,
		Retry:            resilience.RetryPolicy{InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond},
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("watcher did not stop")
		}
	})
	return w, r
}

func waitReady(t *testing.T, w *MembershipWatcher) {
	t.Helper()
	select {
	case <-w.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("first membership view never became ready")
	}
}

func viewKeys(r *ring.Ring) []int {
	nodes := r.Snapshot().Nodes()
	keys := make([]int, 0, len(nodes))
	for _, n := range nodes {
		keys = append(keys, n.Key)
	}
	return keys
}

func TestMembershipWatcher_InitialView(t *testing.T) {
	gw := newFakeGateway()
	for _, k := range []int{1500, 100, 700} {
		n := testNode(k)
		gw.put(testDir+"/"+n.Name, encodeNode(t, n))
	}
	gw.put("/other/node-9", encodeNode(t, testNode(9)))

	w, r := startWatcher(t, gw)

	waitReady(t, w)
	assert.True(t, w.IsReady())
	assert.Equal(t, []int{100, 700, 1500}, viewKeys(r))
	require.Eventually(t, func() bool { return w.State() == WatchWatching }, time.Second, 5*time.Millisecond)
}

func TestMembershipWatcher_EmptyDirectoryIsReady(t *testing.T) {
	w, r := startWatcher(t, newFakeGateway())

	waitReady(t, w)
	assert.Equal(t, 0, r.Snapshot().Len())
}

func TestMembershipWatcher_RebuildsOnWatchFire(t *testing.T) {
	gw := newFakeGateway()
	gw.put(testDir+"/node-100", encodeNode(t, testNode(100)))

	w, r := startWatcher(t, gw)
	waitReady(t, w)
	changes := w.Subscribe()

	gw.put(testDir+"/node-700", encodeNode(t, testNode(700)))
	require.Eventually(t, func() bool { return r.Snapshot().Contains("node-700") }, 2*time.Second, 5*time.Millisecond)

	select {
	case <-changes:
	case <-time.After(time.Second):
		t.Fatal("subscriber was not signalled")
	}

	require.NoError(t, gw.Delete(context.Background(), testDir+"/node-100"))
	require.Eventually(t, func() bool { return !r.Snapshot().Contains("node-100") }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []int{700}, viewKeys(r))
}

func TestMembershipWatcher_SkipsUnusableChildren(t *testing.T) {
	gw := newFakeGateway()
	gw.put(testDir+"/node-100", encodeNode(t, testNode(100)))
	gw.put(testDir+"/vanished", encodeNode(t, testNode(300)))
	gw.failGet(testDir+"/vanished", port.ErrNodeNotFound)
	gw.put(testDir+"/garbage", []byte("not json"))
	outOfRange := testNode(0)
	outOfRange.Name, outOfRange.Key = "far", 5000
	gw.put(testDir+"/far", encodeNode(t, outOfRange))

	w, r := startWatcher(t, gw)
	waitReady(t, w)

	assert.Equal(t, []int{100}, viewKeys(r))
}

func TestMembershipWatcher_RetriesFailedListing(t *testing.T) {
	gw := newFakeGateway()
	gw.put(testDir+"/node-100", encodeNode(t, testNode(100)))
	gw.failListing(port.ErrNotConnected, port.ErrNotConnected)

	w, r := startWatcher(t, gw)
	waitReady(t, w)

	assert.GreaterOrEqual(t, gw.listCalls.Load(), int32(3))
	assert.Equal(t, []int{100}, viewKeys(r))
}

func TestMembershipWatcher_HungListingTimesOutAndRetries(t *testing.T) {
	gw := newFakeGateway()
	gw.put(testDir+"/node-100", encodeNode(t, testNode(100)))
	gw.hangListing(1)

	w, r := startWatcherWithTimeout(t, gw, 50*time.Millisecond)
	waitReady(t, w)

	assert.True(t, gw.hungDeadline.Load(), "listing context carries no deadline")
	assert.GreaterOrEqual(t, gw.listCalls.Load(), int32(2))
	assert.Equal(t, []int{100}, viewKeys(r))

	// The watch armed after the timed-out listing still delivers changes.
	gw.put(testDir+"/node-700", encodeNode(t, testNode(700)))
	require.Eventually(t, func() bool { return r.Snapshot().Len() == 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestMembershipWatcher_FetchErrorKeepsPreviousView(t *testing.T) {
	gw := newFakeGateway()
	gw.put(testDir+"/node-100", encodeNode(t, testNode(100)))

	w, r := startWatcher(t, gw)
	waitReady(t, w)
	previous := r.Snapshot()

	gw.failGet(testDir+"/node-700", errors.New("connection reset"))
	calls := gw.listCalls.Load()
	gw.put(testDir+"/node-700", encodeNode(t, testNode(700)))

	// Let a few failing cycles go by.
	require.Eventually(t, func() bool { return gw.listCalls.Load() >= calls+3 }, 2*time.Second, time.Millisecond)
	assert.Same(t, previous, r.Snapshot())

	gw.failGet(testDir+"/node-700", nil)
	require.Eventually(t, func() bool { return r.Snapshot().Len() == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []int{100, 700}, viewKeys(r))
}

func TestMembershipWatcher_RefiredWatchWithoutChange(t *testing.T) {
	gw := newFakeGateway()
	gw.put(testDir+"/node-100", encodeNode(t, testNode(100)))

	w, r := startWatcher(t, gw)
	waitReady(t, w)

	calls := gw.listCalls.Load()
	require.Eventually(t, func() bool { return w.State() == WatchWatching }, time.Second, time.Millisecond)
	gw.touch(testDir)

	require.Eventually(t, func() bool { return gw.listCalls.Load() > calls }, time.Second, time.Millisecond)
	assert.Equal(t, []int{100}, viewKeys(r))
}
