package service

import (
	"errors"
	"testing"
	"time"

	"github.com/anthanhphan/go-shard-ring/pkg/ring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingMetrics struct {
	routes     []string
	registered []bool
}

func (m *recordingMetrics) ObserveRebuild(int, time.Duration, error)    {}
func (m *recordingMetrics) ObserveForward(string, time.Duration, error) {}
func (m *recordingMetrics) ObserveRoute(outcome string)                 { m.routes = append(m.routes, outcome) }
func (m *recordingMetrics) SetRegistered(v bool)                        { m.registered = append(m.registered, v) }

func TestRouter_Route(t *testing.T) {
	// Keys below hash (SHA-256 mod 2000) to the positions noted.
	tests := []struct {
		name      string
		selfKey   int
		key       string
		wantPos   int
		wantOwner int
		wantLocal bool
	}{
		{name: "SuccessorOwns", selfKey: 100, key: "key-978", wantPos: 250, wantOwner: 700},
		{name: "Wraparound", selfKey: 100, key: "key-1386", wantPos: 1800, wantOwner: 100, wantLocal: true},
		{name: "EqualKeyBelongsToNext", selfKey: 700, key: "key-6259", wantPos: 700, wantOwner: 1500},
		{name: "EqualKeyOnNextNodeIsLocal", selfKey: 1500, key: "key-6259", wantPos: 700, wantOwner: 1500, wantLocal: true},
		{name: "LowestKeyBoundaryWraps", selfKey: 1500, key: "key-6158", wantPos: 1500, wantOwner: 100},
		{name: "MinimumKeyGoesToNext", selfKey: 100, key: "key-4344", wantPos: 100, wantOwner: 700},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRing(t, 100, 700, 1500)
			router := NewRouter(r, testNode(tt.selfKey), nil)

			decision, err := router.Route([]byte(tt.key))
			require.NoError(t, err)
			assert.Equal(t, tt.wantPos, decision.Position)
			assert.Equal(t, tt.wantOwner, decision.Owner.Key)
			assert.Equal(t, tt.wantLocal, decision.IsLocal)
		})
	}
}

func TestRouter_EmptyViewHasNoOwner(t *testing.T) {
	metrics := &recordingMetrics{}
	router := NewRouter(newTestRing(t), testNode(100), metrics)

	_, err := router.Route([]byte("key-978"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ring.ErrNoOwner))
	assert.Equal(t, []string{"no_owner"}, metrics.routes)
}

func TestRouter_NeverNamesVanishedNode(t *testing.T) {
	r := newTestRing(t, 100, 700, 1500)
	router := NewRouter(r, testNode(100), nil)

	before, err := router.Route([]byte("key-978"))
	require.NoError(t, err)
	require.Equal(t, 700, before.Owner.Key)

	r.Replace(ring.NewView([]ring.Node{testNode(100), testNode(1500)}))

	for _, key := range []string{"key-978", "key-1386", "key-6259", "key-4344", "key-6158"} {
		decision, err := router.Route([]byte(key))
		require.NoError(t, err)
		assert.NotEqual(t, 700, decision.Owner.Key, "key %s", key)
	}
	after, _ := router.Route([]byte("key-978"))
	assert.Equal(t, 1500, after.Owner.Key)
}

func TestRouter_ReportsRouteOutcome(t *testing.T) {
	metrics := &recordingMetrics{}
	router := NewRouter(newTestRing(t, 100, 700, 1500), testNode(100), metrics)

	_, _ = router.Route([]byte("key-1386"))
	_, _ = router.Route([]byte("key-978"))

	assert.Equal(t, []string{"local", "remote"}, metrics.routes)
}
