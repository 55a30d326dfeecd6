package ring

import (
	"fmt"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threeNodeView() *View {
	return NewView([]Node{
		{Name: "c", Host: "localhost", Port: 3003, Key: 1500},
		{Name: "a", Host: "localhost", Port: 3001, Key: 100},
		{Name: "b", Host: "localhost", Port: 3002, Key: 700},
	})
}

func TestSHA256Hasher_KnownPositions(t *testing.T) {
	h := NewSHA256Hasher(DefaultSize)

	cases := map[string]int{
		"hello":               1620,
		"":                    549,
		"node-1localhost3001": 1778,
		`{"a":1}`:             1794,
		"key-978":             250,
		"key-1386":            1800,
		"key-6259":            700,
	}
	for in, want := range cases {
		assert.Equal(t, want, h.Position([]byte(in)), "position of %q", in)
	}
}

func TestHasher_Deterministic(t *testing.T) {
	for _, algo := range []string{HashSHA256, HashMurmur3} {
		h1, err := NewHasher(algo, DefaultSize)
		require.NoError(t, err)
		h2, err := NewHasher(algo, DefaultSize)
		require.NoError(t, err)

		for i := 0; i < 500; i++ {
			data := []byte(fmt.Sprintf("record-%d", i))
			p := h1.Position(data)
			assert.Equal(t, p, h1.Position(data))
			assert.Equal(t, p, h2.Position(data))
			assert.GreaterOrEqual(t, p, 0)
			assert.Less(t, p, DefaultSize)
		}
	}
}

func TestNewHasher_Invalid(t *testing.T) {
	_, err := NewHasher("md5", DefaultSize)
	assert.ErrorIs(t, err, ErrUnknownHash)

	_, err = NewHasher(HashSHA256, 0)
	assert.ErrorIs(t, err, ErrInvalidSize)
}

func TestView_Successor(t *testing.T) {
	v := threeNodeView()

	cases := []struct {
		name   string
		target int
		owner  string
	}{
		{name: "between first and second", target: 250, owner: "b"},
		{name: "wraps past highest key", target: 1800, owner: "a"},
		{name: "equal key belongs to next node", target: 700, owner: "c"},
		{name: "equal to highest key wraps", target: 1500, owner: "a"},
		{name: "below lowest key", target: 0, owner: "a"},
		{name: "equal to lowest key", target: 100, owner: "b"},
		{name: "last position", target: DefaultSize - 1, owner: "a"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			owner, err := v.Successor(tc.target)
			require.NoError(t, err)
			assert.Equal(t, tc.owner, owner.Name)
		})
	}
}

func TestView_RingTotality(t *testing.T) {
	v := threeNodeView()
	nodes := v.Nodes()

	for target := 0; target < DefaultSize; target++ {
		owner, err := v.Successor(target)
		require.NoError(t, err)

		// Expected: smallest key greater than target, else smallest key overall.
		want := nodes[0]
		for _, n := range nodes {
			if n.Key > target {
				want = n
				break
			}
		}
		require.Equal(t, want, owner, "target %d", target)
	}
}

func TestView_EmptyHasNoOwner(t *testing.T) {
	_, err := NewView(nil).Successor(42)
	assert.ErrorIs(t, err, ErrNoOwner)

	r := NewRing(NewSHA256Hasher(DefaultSize))
	_, _, err = r.Locate([]byte("anything"))
	assert.ErrorIs(t, err, ErrNoOwner)
}

func TestNewView_SortsAndCopies(t *testing.T) {
	in := []Node{
		{Name: "z", Key: 5},
		{Name: "b", Key: 1},
		{Name: "a", Key: 5},
	}
	v := NewView(in)
	in[0].Key = 999

	names := []string{}
	for _, n := range v.Nodes() {
		names = append(names, n.Name)
	}
	assert.Equal(t, []string{"b", "a", "z"}, names)
	assert.True(t, v.Contains("z"))
	assert.False(t, v.Contains("missing"))

	out := v.Nodes()
	out[0].Name = "mutated"
	assert.Equal(t, "b", v.Nodes()[0].Name)
}

func TestRing_LocateUsesSharedHasher(t *testing.T) {
	r := NewRing(NewSHA256Hasher(DefaultSize))
	r.Replace(threeNodeView())

	owner, pos, err := r.Locate([]byte("key-978"))
	require.NoError(t, err)
	assert.Equal(t, 250, pos)
	assert.Equal(t, "b", owner.Name)

	owner, pos, err = r.Locate([]byte("key-1386"))
	require.NoError(t, err)
	assert.Equal(t, 1800, pos)
	assert.Equal(t, "a", owner.Name)
}

func TestRing_ReplaceDropsVanishedNode(t *testing.T) {
	r := NewRing(NewSHA256Hasher(DefaultSize))
	r.Replace(threeNodeView())

	r.Replace(NewView([]Node{
		{Name: "a", Key: 100},
		{Name: "c", Key: 1500},
	}))

	for target := 0; target < DefaultSize; target++ {
		owner, err := r.Snapshot().Successor(target)
		require.NoError(t, err)
		require.NotEqual(t, "b", owner.Name)
	}
}

func TestRing_ReadersSeeWholeViews(t *testing.T) {
	r := NewRing(NewSHA256Hasher(DefaultSize))
	small := NewView([]Node{{Name: "a", Key: 1}})
	large := NewView([]Node{{Name: "a", Key: 1}, {Name: "b", Key: 2}, {Name: "c", Key: 3}, {Name: "d", Key: 4}})
	r.Replace(small)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 2000; i++ {
			if i%2 == 0 {
				r.Replace(large)
			} else {
				r.Replace(small)
			}
		}
		close(stop)
	}()

	for {
		select {
		case <-stop:
			wg.Wait()
			return
		default:
			n := r.Snapshot().Len()
			if n != 1 && n != 4 {
				t.Fatalf("observed partial view of size %d", n)
			}
		}
	}
}

func TestDecodeNode(t *testing.T) {
	n, err := DecodeNode([]byte(`{"host":"localhost","port":3001,"name":"node-1","key":1778}`))
	require.NoError(t, err)
	assert.Equal(t, Node{Host: "localhost", Port: 3001, Name: "node-1", Key: 1778}, n)
	assert.Equal(t, "localhost:3001", n.Addr())

	n, err = DecodeNode([]byte(`{"host":"localhost","port":"3002","name":"node-2","key":12}`))
	require.NoError(t, err)
	assert.Equal(t, 3002, n.Port)

	_, err = DecodeNode([]byte(`{"host":"localhost","port":3001,"key":1}`))
	assert.ErrorIs(t, err, ErrInvalidDescriptor)

	_, err = DecodeNode([]byte(`not json`))
	assert.ErrorIs(t, err, ErrInvalidDescriptor)

	_, err = DecodeNode([]byte(`{"name":"x","port":"abc","key":1}`))
	assert.ErrorIs(t, err, ErrInvalidDescriptor)
	assert.ErrorIs(t, err, strconv.ErrSyntax)
}

func TestNode_EncodeRoundTrip(t *testing.T) {
	in := Node{Host: "10.0.0.1", Port: 8080, Name: "n", Key: 7}
	data, err := in.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"host":"10.0.0.1","port":8080,"name":"n","key":7}`, string(data))

	out, err := DecodeNode(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
