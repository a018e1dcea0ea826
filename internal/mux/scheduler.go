package mux

import "github.com/obscurcore/obscurcore/internal/prng"

// Scheduler drives next_source() selection (spec.md §4.8 MUX-3): draw a
// uniformly distributed candidate index from the shared prng.Source, then
// linearly scan forward (wrapping at n) for the nearest not-yet-completed
// item. Every writer and reader built from the same seed and completion
// history reproduces the identical sequence of selections.
type Scheduler struct {
	src *prng.Source
	n   int
}

// NewScheduler builds a Scheduler over n items, drawing candidate indices
// from src.
func NewScheduler(src *prng.Source, n int) *Scheduler {
	return &Scheduler{src: src, n: n}
}

// NextSource returns the index of the next item to service, given the
// current completion state, or -1 if every item is already complete.
func (s *Scheduler) NextSource(completed []bool) int {
	if s.n == 0 {
		return -1
	}
	start := s.src.NextInt(0, s.n)
	i := start
	for {
		if !completed[i] {
			return i
		}
		i++
		if i >= s.n {
			i = 0
		}
		if i == start {
			return -1
		}
	}
}
