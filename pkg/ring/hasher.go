package ring

import (
	"crypto/sha256"
	"fmt"
	"math/big"

	"github.com/spaolacci/murmur3"
)

const (
	// DefaultSize is the number of positions on the ring. Every participant
	// must use the same size or ownership resolution will disagree.
	DefaultSize = 2000

	HashSHA256  = "sha256"
	HashMurmur3 = "murmur3"
)

// Hasher maps an arbitrary byte string to a position in [0, Size()).
type Hasher interface {
	Position(data []byte) int
	Size() int
}

// NewHasher returns the hasher for the named algorithm.
func NewHasher(algorithm string, size int) (Hasher, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	switch algorithm {
	case "", HashSHA256:
		return NewSHA256Hasher(size), nil
	case HashMurmur3:
		return &Murmur3Hasher{size: uint64(size)}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownHash, algorithm)
	}
}

// SHA256Hasher reads the SHA-256 digest as an unsigned big-endian integer and
// reduces it modulo the ring size.
type SHA256Hasher struct {
	size *big.Int
}

func NewSHA256Hasher(size int) *SHA256Hasher {
	return &SHA256Hasher{size: big.NewInt(int64(size))}
}

func (h *SHA256Hasher) Position(data []byte) int {
	sum := sha256.Sum256(data)
	n := new(big.Int).SetBytes(sum[:])
	return int(n.Mod(n, h.size).Int64())
}

func (h *SHA256Hasher) Size() int {
	return int(h.size.Int64())
}

// Murmur3Hasher is a faster, non-cryptographic alternative.
type Murmur3Hasher struct {
	size uint64
}

func (h *Murmur3Hasher) Position(data []byte) int {
	return int(murmur3.Sum64(data) % h.size)
}

func (h *Murmur3Hasher) Size() int {
	return int(h.size)
}
