package service

import (
	"fmt"
	"testing"

	"github.com/anthanhphan/go-shard-ring/pkg/ring"
)

func testNode(key int) ring.Node {
	return ring.Node{Host: "localhost", Port: 3000 + key, Name: fmt.Sprintf("node-%d", key), Key: key}
}

func newTestRing(t *testing.T, keys ...int) *ring.Ring {
	t.Helper()
	r := ring.NewRing(ring.NewSHA256Hasher(ring.DefaultSize))
	nodes := make([]ring.Node, 0, len(keys))
	for _, k := range keys {
		nodes = append(nodes, testNode(k))
	}
	r.Replace(ring.NewView(nodes))
	return r
}

func encodeNode(t *testing.T, n ring.Node) []byte {
	t.Helper()
	data, err := n.Encode()
	if err != nil {
		t.Fatalf("encode %s: %v", n.Name, err)
	}
	return data
}
