// Package random provides seed generation and seeded generator helpers.
//
// Crypto seeds come from crypto/rand. Generators built from a seed are
// math/rand sources, so a recorded seed replays the same sequence.
package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
)

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}

	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// New returns a deterministic generator for seed.
func New(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// FromOptional returns a generator for seed, or one seeded from crypto/rand
// when seed is nil.
func FromOptional(seed *int64) (*rand.Rand, error) {
	if seed != nil {
		return New(*seed), nil
	}
	fresh, err := NewSeed()
	if err != nil {
		return nil, err
	}
	return New(fresh), nil
}
