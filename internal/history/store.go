// Package history keeps the in-memory record of check observations.
package history

import (
	"sort"
	"sync"
	"time"

	"github.com/sweeney/network-status/internal/logic"
)

// Retention is the longest lookback window answered by the store.
const Retention = logic.Week

// Store is a thread-safe, append-only observation history.
// Observations are kept sorted by timestamp.
type Store struct {
	mu           sync.RWMutex
	observations []logic.Observation
	failures     []time.Time // timestamps of failed observations, sorted
	retention    time.Duration

	cycles      int
	lastCycleAt time.Time
	lastFailed  bool
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{retention: Retention}
}

// Record appends one observation.
func (s *Store) Record(obs logic.Observation) {
	s.mu.Lock()
	s.insert(obs)
	s.mu.Unlock()
}

// RecordCycle appends every observation of a completed cycle, sets the
// last-cycle outcome and prunes observations older than the retention window
// relative to at.
func (s *Store) RecordCycle(at time.Time, obs []logic.Observation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	failed := false
	for _, o := range obs {
		s.insert(o)
		if o.Failed() {
			failed = true
		}
	}
	s.cycles++
	s.lastCycleAt = at
	s.lastFailed = failed

	s.prune(at.Add(-s.retention))
}

// HasFailureSince reports whether any stored observation failed at or after t.
func (s *Store) HasFailureSince(t time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.failures)
	return n > 0 && !s.failures[n-1].Before(t)
}

// FailuresSince returns the number of stored failures at or after t.
func (s *Store) FailuresSince(t time.Time) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := sort.Search(len(s.failures), func(i int) bool {
		return !s.failures[i].Before(t)
	})
	return len(s.failures) - idx
}

// LastCycleOutcome returns the outcome of the most recently completed cycle.
// Before the first cycle completes it reports a pass.
func (s *Store) LastCycleOutcome() logic.Outcome {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return logic.OutcomeOf(!s.lastFailed)
}

// LastCycle returns when the last cycle completed and whether any cycle has.
func (s *Store) LastCycle() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastCycleAt, s.cycles > 0
}

// Cycles returns the number of completed cycles recorded.
func (s *Store) Cycles() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cycles
}

// Len returns the number of stored observations.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.observations)
}

// Observations returns a copy of the stored observations recorded at or after t.
func (s *Store) Observations(since time.Time) []logic.Observation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := sort.Search(len(s.observations), func(i int) bool {
		return !s.observations[i].Timestamp.Before(since)
	})
	if idx >= len(s.observations) {
		return nil
	}
	out := make([]logic.Observation, len(s.observations)-idx)
	copy(out, s.observations[idx:])
	return out
}

// insert keeps both slices sorted; the common case is an append at the end.
// Caller must hold the write lock.
func (s *Store) insert(obs logic.Observation) {
	idx := sort.Search(len(s.observations), func(i int) bool {
		return s.observations[i].Timestamp.After(obs.Timestamp)
	})
	s.observations = append(s.observations, logic.Observation{})
	copy(s.observations[idx+1:], s.observations[idx:])
	s.observations[idx] = obs

	if !obs.Failed() {
		return
	}
	fidx := sort.Search(len(s.failures), func(i int) bool {
		return s.failures[i].After(obs.Timestamp)
	})
	s.failures = append(s.failures, time.Time{})
	copy(s.failures[fidx+1:], s.failures[fidx:])
	s.failures[fidx] = obs.Timestamp
}

// prune drops observations strictly older than cutoff.
// Caller must hold the write lock.
func (s *Store) prune(cutoff time.Time) {
	idx := sort.Search(len(s.observations), func(i int) bool {
		return !s.observations[i].Timestamp.Before(cutoff)
	})
	if idx > 0 {
		s.observations = append(s.observations[:0:0], s.observations[idx:]...)
	}

	fidx := sort.Search(len(s.failures), func(i int) bool {
		return !s.failures[i].Before(cutoff)
	})
	if fidx > 0 {
		s.failures = append(s.failures[:0:0], s.failures[fidx:]...)
	}
}
