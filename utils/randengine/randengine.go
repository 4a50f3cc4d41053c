// Package randengine wraps golang.org/x/exp/rand in the single seeded
// stream every random choice in the simulation core draws from, in the
// fixed order documented in spec.md §4.8/§9: spawn location, speed,
// length, next-way, next-lane, lane-to-switch, traffic-light initial
// offset. Because the event kernel is single-threaded and cooperative
// (only one task runs at a time), the engine needs no internal locking.
package randengine

import (
	"golang.org/x/exp/rand"
)

// Engine is the single deterministic source of randomness for one
// simulation run.
type Engine struct {
	*rand.Rand
}

// New creates an engine seeded from the run's seed parameter.
func New(seed uint64) *Engine {
	return &Engine{Rand: rand.New(rand.NewSource(seed))}
}

// UniformFloat draws a float64 uniformly from [lo, hi).
func (e *Engine) UniformFloat(lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + e.Float64()*(hi-lo)
}

// PTrue returns true with probability p.
func (e *Engine) PTrue(p float64) bool {
	return e.Float64() < p
}

// Pick returns a uniformly random element of items. Panics on an empty
// slice: callers are expected to check for "no feasible options" (§4.6)
// before calling.
func Pick[T any](e *Engine, items []T) T {
	return items[e.Intn(len(items))]
}

// DiscreteDistribution draws an index with probability proportional to
// weight[i]. Nothing in the simulation core calls it.
func (e *Engine) DiscreteDistribution(weight []float64) int {
	total := 0.0
	for _, w := range weight {
		total += w
	}
	r := e.Float64() * total
	sum := 0.0
	for i, w := range weight {
		sum += w
		if sum > r {
			return i
		}
	}
	return len(weight) - 1
}
