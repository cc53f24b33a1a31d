package logic

import "math/rand"

// Selector maps a uniform random draw to one of N sample indices under a
// weighting that favors index 0. The weight table is derived from a single
// main-sample probability P (percent, 50..100): weight[0] = P, every later
// slot takes P percent of the mass still unassigned, and the last slot
// absorbs the remainder, so the table always sums to exactly 100.
type Selector struct {
	samples  int
	mainProb int
	weights  []int

	// rand returns a uniform int in [0, n). Tests inject a deterministic
	// source; nil falls back to math/rand.
	rand func(n int) int
}

// NewSelector creates a selector for the given sample count and main
// probability. The weight table is built immediately.
func NewSelector(samples, mainProb int, random func(n int) int) *Selector {
	if random == nil {
		random = rand.Intn
	}
	s := &Selector{samples: samples, mainProb: mainProb, rand: random}
	s.init()
	return s
}

func (s *Selector) init() {
	s.weights = make([]int, s.samples)
	if s.samples == 1 {
		s.weights[0] = 100
		return
	}
	s.weights[0] = s.mainProb
	remaining := 100 - s.mainProb
	for i := 1; i < s.samples-1; i++ {
		w := remaining * s.mainProb / 100
		s.weights[i] = w
		remaining -= w
	}
	s.weights[s.samples-1] = remaining
}

// Pick draws a uniform integer in [0,100) and walks the cumulative weight
// sum, returning the first index whose cumulative weight exceeds the draw.
// A zero first weight means the table was never built (or was wiped) and
// triggers a rebuild. The second return is false when the walk exhausted
// the table (corrupted weights) and the pick fell back to index 0.
func (s *Selector) Pick() (int, bool) {
	if s.weights[0] == 0 {
		s.init()
	}
	draw := s.rand(100)
	cum := 0
	for i, w := range s.weights {
		cum += w
		if draw < cum {
			return i, true
		}
	}
	return 0, false
}

// Weights returns a copy of the weight table.
func (s *Selector) Weights() []int {
	out := make([]int, len(s.weights))
	copy(out, s.weights)
	return out
}
