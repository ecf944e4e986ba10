// Package random provides cryptographic seed generation helpers.
//
// Seeds initialise the deterministic die sources used by the rules core, so a
// recorded seed can replay an action exactly.
package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
)

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (int64, error) {
	return SeedFrom(crand.Reader)
}

// SeedFrom reads eight bytes from r and decodes them as a little-endian seed.
func SeedFrom(r io.Reader) (int64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}

	return int64(binary.LittleEndian.Uint64(b[:])), nil
}
