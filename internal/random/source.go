// Package random provides a seedable, concurrency-safe random source.
// Handlers and middleware take it as a dependency so tests can pin
// synthetic latency and failure outcomes with a fixed seed.
package random

import (
	"math/rand/v2"
	"sync"
	"time"
)

type Source struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewSource builds a source from the given seed. Seed 0 means
// time-seeded, non-reproducible.
func NewSource(seed uint64) *Source {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Source{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (s *Source) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.IntN(n)
}

func (s *Source) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Float64()
}

// IntBetween returns a uniform value in [min, max] inclusive.
func (s *Source) IntBetween(min, max int) int {
	if max <= min {
		return min
	}
	return min + s.IntN(max-min+1)
}
