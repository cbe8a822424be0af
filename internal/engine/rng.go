// Package engine implements the procedural narrative progression rules:
// scenario-type selection, outcome resolution, and the pure player-stat
// tracker. All randomness flows through an injected *rand.Rand so tests can
// assert distributions deterministically.
package engine

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
)

// Seed generates a high-entropy seed using crypto/rand, suitable for
// initializing the selector's pseudo-random source.
func Seed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// NewRand returns a rand.Rand seeded with the given value.
func NewRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}
