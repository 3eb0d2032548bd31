package series

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultRetention bounds the in-memory history span.
const DefaultRetention = 24 * time.Hour

// PriceSample is a single observed price at millisecond resolution.
// Immutable once created.
type PriceSample struct {
	Time  time.Time       `json:"t"`
	Price decimal.Decimal `json:"p"`
}

// Store holds the rolling, time-bounded price series. Samples are kept
// in arrival order; the retention window slides with the newest
// appended sample rather than wall clock, so a burst of late ticks
// still prunes relative to feed time.
type Store struct {
	mu        sync.RWMutex
	retention time.Duration
	samples   []PriceSample
}

// NewStore constructs a Store with the given retention window.
func NewStore(retention time.Duration) *Store {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Store{retention: retention}
}

// Append inserts the sample at the end without re-sorting, then prunes
// every sample older than the just-appended time minus the retention
// window. Out-of-order arrivals are kept as delivered; correcting feed
// jitter would change trend and alert semantics downstream.
func (s *Store) Append(sample PriceSample) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.samples = append(s.samples, sample)

	cutoff := sample.Time.Add(-s.retention)
	kept := s.samples[:0]
	for _, p := range s.samples {
		if !p.Time.Before(cutoff) {
			kept = append(kept, p)
		}
	}
	s.samples = kept
}

// Snapshot returns a copy of the retained series, safe for read-only
// iteration without further synchronization.
func (s *Store) Snapshot() []PriceSample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]PriceSample, len(s.samples))
	copy(out, s.samples)
	return out
}

// Latest returns the most recent sample, if any.
func (s *Store) Latest() (PriceSample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.samples) == 0 {
		return PriceSample{}, false
	}
	return s.samples[len(s.samples)-1], true
}

// Len reports the number of retained samples.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.samples)
}

// Since returns the suffix of samples with time at or after the given
// instant, preserving order.
func Since(samples []PriceSample, cutoff time.Time) []PriceSample {
	idx := len(samples)
	for idx > 0 && !samples[idx-1].Time.Before(cutoff) {
		idx--
	}
	return samples[idx:]
}
