// Package metrics holds the per-instance request counters shared by every
// connection handler of a server process.
package metrics

import (
	"sync"
	"time"
)

// Register accumulates request statistics for one server instance. All
// methods are safe for concurrent use from any number of handlers.
type Register struct {
	mu       sync.Mutex
	requests uint64
	failures uint64
	total    time.Duration
}

// Snapshot is a consistent view of the register at one point in time.
type Snapshot struct {
	Requests uint64
	Failures uint64
	// AvgTime is TotalTime/Requests, 0 by convention when Requests is 0.
	AvgTime   time.Duration
	TotalTime time.Duration
}

func NewRegister() *Register {
	return &Register{}
}

// Record counts one completed request and its handling time. Failed requests
// still count toward the total; their time is part of total elapsed time.
func (r *Register) Record(elapsed time.Duration, success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.requests++
	r.total += elapsed
	if !success {
		r.failures++
	}
}

func (r *Register) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Snapshot{
		Requests:  r.requests,
		Failures:  r.failures,
		TotalTime: r.total,
	}
	if r.requests > 0 {
		s.AvgTime = r.total / time.Duration(r.requests)
	}
	return s
}

// Reset zeroes all counters.
func (r *Register) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.requests = 0
	r.failures = 0
	r.total = 0
}
