package ring

import (
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Node describes one peer and its position on the ring.
// Nodes are values: a stale descriptor is replaced wholesale, never patched.
type Node struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	Name string `json:"name"`
	Key  int    `json:"key"`
}

func (n Node) String() string {
	return fmt.Sprintf("%s@%s[%d]", n.Name, n.Addr(), n.Key)
}

// Addr returns the host:port the node serves HTTP on.
func (n Node) Addr() string {
	return net.JoinHostPort(n.Host, strconv.Itoa(n.Port))
}

// Encode returns the descriptor payload published to the coordination service.
func (n Node) Encode() ([]byte, error) {
	return json.Marshal(n)
}

// DecodeNode parses a descriptor payload. Port and key are accepted either as
// JSON numbers or as numeric strings, since older peers published the port as
// a string.
func DecodeNode(data []byte) (Node, error) {
	var raw struct {
		Host string          `json:"host"`
		Port json.RawMessage `json:"port"`
		Name string          `json:"name"`
		Key  json.RawMessage `json:"key"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Node{}, fmt.Errorf("%w: %w", ErrInvalidDescriptor, err)
	}
	if raw.Name == "" {
		return Node{}, fmt.Errorf("%w: missing name", ErrInvalidDescriptor)
	}

	port, err := flexInt(raw.Port)
	if err != nil {
		return Node{}, fmt.Errorf("%w: port: %w", ErrInvalidDescriptor, err)
	}
	key, err := flexInt(raw.Key)
	if err != nil {
		return Node{}, fmt.Errorf("%w: key: %w", ErrInvalidDescriptor, err)
	}

	return Node{Host: raw.Host, Port: port, Name: raw.Name, Key: key}, nil
}

func flexInt(raw json.RawMessage) (int, error) {
	if len(raw) == 0 {
		return 0, fmt.Errorf("missing")
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("not a number: %s", string(raw))
	}
	return strconv.Atoi(strings.TrimSpace(s))
}
