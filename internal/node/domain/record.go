package domain

import (
	"errors"
	"fmt"
)

var ErrKeyOutOfRange = errors.New("record key outside the ring")

// Record is one stored key/value pair. Key is the ring position the value
// hashed to, not a caller-chosen identifier.
type Record struct {
	Key   int    `json:"key" bson:"key"`
	Value string `json:"value" bson:"value"`
}

// Validate checks that the key is a position on a ring of the given size.
func (r Record) Validate(ringSize int) error {
	if r.Key < 0 || r.Key >= ringSize {
		return fmt.Errorf("%w: key=%d size=%d", ErrKeyOutOfRange, r.Key, ringSize)
	}
	return nil
}
