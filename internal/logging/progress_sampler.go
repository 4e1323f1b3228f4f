package logging

import "sync"

// ProgressSampler rate-limits progress logs per stream: a stream is logged
// the first time it reports and then each time it enters a higher percent
// bucket. Streams synced in parallel keep separate buckets.
type ProgressSampler struct {
	step float64

	mu   sync.Mutex
	last map[string]int
}

// NewProgressSampler uses step percent wide buckets, 5 when step <= 0.
func NewProgressSampler(step float64) *ProgressSampler {
	if step <= 0 {
		step = 5
	}
	return &ProgressSampler{step: step, last: make(map[string]int)}
}

// ShouldLog reports whether stream's progress at percent is worth a line.
// Negative percent means unknown and only counts as a first report.
// A nil sampler logs everything.
func (s *ProgressSampler) ShouldLog(percent float64, stream string) bool {
	if s == nil {
		return true
	}
	bucket := -1
	if percent >= 0 {
		bucket = int(min(percent, 100) / s.step)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, seen := s.last[stream]
	if seen && bucket <= prev {
		return false
	}
	s.last[stream] = bucket
	return true
}

// Reset forgets all streams.
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.mu.Lock()
	clear(s.last)
	s.mu.Unlock()
}
