package dice

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/louisbranch/dicecore/internal/random"
)

// Source is the randomness provider for dice rolls.
type Source interface {
	// Intn returns a non-negative random int in [0, n).
	Intn(n int) int
}

// lockedSource guards a math/rand generator so one source can back several
// callers.
type lockedSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func (s *lockedSource) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}

// NewSource returns a deterministic source for the given seed. Two sources
// built from the same seed produce the same sequence.
func NewSource(seed int64) Source {
	return &lockedSource{rng: rand.New(rand.NewSource(seed))}
}

// NewRandomSource returns a source seeded from crypto/rand.
func NewRandomSource() (Source, error) {
	seed, err := random.NewSeed()
	if err != nil {
		return nil, fmt.Errorf("seed dice source: %w", err)
	}
	return NewSource(seed), nil
}

// FixedSource replays a fixed sequence of d20 faces. It backs the debug roll
// path and deterministic tests.
type FixedSource struct {
	mu    sync.Mutex
	faces []int
	next  int
}

// Fixed returns a source that yields the given faces in order, wrapping
// around when exhausted.
func Fixed(faces ...int) *FixedSource {
	cloned := make([]int, len(faces))
	copy(cloned, faces)
	return &FixedSource{faces: cloned}
}

// Intn returns face-1 for the next configured face, capped to n-1.
func (s *FixedSource) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.faces) == 0 {
		return 0
	}
	face := s.faces[s.next%len(s.faces)]
	s.next++
	v := face - 1
	if v < 0 {
		v = 0
	}
	if v >= n {
		v = n - 1
	}
	return v
}
