// Package bench drives controlled client load against running server
// instances and aggregates comparative statistics.
package bench

import "math"

type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
)

// RunConfig describes one benchmark run.
type RunConfig struct {
	// File is the request path fetched from every target.
	File string `json:"file"`
	// Requests is the number of requests issued per target.
	Requests int `json:"requests"`
	// Parallel fans requests out over the worker pool; otherwise they run
	// strictly one at a time.
	Parallel bool `json:"parallel"`
	// Process asks the targets to run the content transform hook.
	Process bool `json:"process"`
}

// TargetResult aggregates one target's run, measured entirely from the
// client side. Every issued request lands in exactly one of Successful or
// Failed. Latency fields are seconds; AvgTime is 0 by convention when no
// request succeeded.
type TargetResult struct {
	TotalRequests     int            `json:"total_requests"`
	Successful        int            `json:"successful"`
	Failed            int            `json:"failed"`
	TotalTime         float64        `json:"total_time"`
	AvgTime           float64        `json:"avg_time"`
	MinTime           float64        `json:"min_time"`
	MaxTime           float64        `json:"max_time"`
	P50Time           float64        `json:"p50_time"`
	P95Time           float64        `json:"p95_time"`
	P99Time           float64        `json:"p99_time"`
	RequestsPerSecond float64        `json:"requests_per_second"`
	Errors            map[string]int `json:"errors,omitempty"`
}

func (t *TargetResult) valid() bool {
	return t != nil && t.Successful > 0
}

// Comparison is derived from the two target results once both are final.
type Comparison struct {
	Winner            string  `json:"winner,omitempty"`
	DifferencePercent float64 `json:"difference_percent"`
	ThreadingRPS      float64 `json:"threading_rps"`
	ForkingRPS        float64 `json:"forking_rps"`
	// Incomparable is set when neither side produced a successful request.
	Incomparable bool `json:"incomparable,omitempty"`
}

// Results is the full state of the current (or last) run.
type Results struct {
	Status     Status        `json:"status"`
	RunID      string        `json:"run_id,omitempty"`
	File       string        `json:"file,omitempty"`
	Requests   int           `json:"requests,omitempty"`
	Parallel   bool          `json:"parallel"`
	Process    bool          `json:"process"`
	Timestamp  string        `json:"timestamp,omitempty"`
	Threading  *TargetResult `json:"threading,omitempty"`
	Forking    *TargetResult `json:"forking,omitempty"`
	Comparison *Comparison   `json:"comparison,omitempty"`
}

// Compare picks the winner by lower average latency. With only one valid
// side that side wins outright; with none the comparison is flagged
// incomparable rather than inventing numbers.
func Compare(threading, forking *TargetResult) *Comparison {
	c := &Comparison{}
	if threading.valid() {
		c.ThreadingRPS = threading.RequestsPerSecond
	}
	if forking.valid() {
		c.ForkingRPS = forking.RequestsPerSecond
	}

	switch {
	case threading.valid() && forking.valid():
		winner, loser := threading, forking
		c.Winner = "threading"
		if forking.AvgTime < threading.AvgTime {
			winner, loser = forking, threading
			c.Winner = "forking"
		}
		if loser.AvgTime > 0 {
			c.DifferencePercent = round2((loser.AvgTime - winner.AvgTime) / loser.AvgTime * 100)
		}
	case threading.valid():
		c.Winner = "threading"
	case forking.valid():
		c.Winner = "forking"
	default:
		c.Incomparable = true
	}
	return c
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
