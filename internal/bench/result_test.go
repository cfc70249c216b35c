package bench

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCompareBothValid(t *testing.T) {
	threading := &TargetResult{Successful: 10, AvgTime: 0.02, RequestsPerSecond: 500}
	forking := &TargetResult{Successful: 10, AvgTime: 0.04, RequestsPerSecond: 250}

	c := Compare(threading, forking)
	assert.Equal(t, "threading", c.Winner)
	assert.InDelta(t, 50.0, c.DifferencePercent, 0.01)
	assert.Equal(t, 500.0, c.ThreadingRPS)
	assert.Equal(t, 250.0, c.ForkingRPS)
	assert.False(t, c.Incomparable)
}

func TestCompareForkingWins(t *testing.T) {
	threading := &TargetResult{Successful: 5, AvgTime: 0.1, RequestsPerSecond: 50}
	forking := &TargetResult{Successful: 5, AvgTime: 0.075, RequestsPerSecond: 66.6}

	c := Compare(threading, forking)
	assert.Equal(t, "forking", c.Winner)
	assert.InDelta(t, 25.0, c.DifferencePercent, 0.01)
}

func TestCompareOneSideEmpty(t *testing.T) {
	threading := &TargetResult{Successful: 10, AvgTime: 0.02, RequestsPerSecond: 500}
	forking := &TargetResult{TotalRequests: 10, Failed: 10}

	c := Compare(threading, forking)
	assert.Equal(t, "threading", c.Winner)
	assert.Zero(t, c.DifferencePercent)
	assert.Zero(t, c.ForkingRPS)
	assert.False(t, c.Incomparable)

	c = Compare(nil, &TargetResult{Successful: 3, AvgTime: 0.5, RequestsPerSecond: 6})
	assert.Equal(t, "forking", c.Winner)
}

func TestCompareBothEmptyIsIncomparable(t *testing.T) {
	c := Compare(&TargetResult{TotalRequests: 10, Failed: 10}, nil)
	assert.True(t, c.Incomparable)
	assert.Empty(t, c.Winner)
}

func TestAggregateInvariants(t *testing.T) {
	outcomes := []requestResult{
		{ok: true, elapsed: 10 * time.Millisecond},
		{ok: true, elapsed: 30 * time.Millisecond},
		{elapsed: 5 * time.Millisecond, reason: "connection refused"},
		{elapsed: 60 * time.Second, reason: "timeout"},
	}

	res := aggregate(4, outcomes, 100*time.Millisecond)

	assert.Equal(t, 4, res.TotalRequests)
	assert.Equal(t, 2, res.Successful)
	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, res.TotalRequests, res.Successful+res.Failed)
	assert.Equal(t, map[string]int{"connection refused": 1, "timeout": 1}, res.Errors)

	assert.InDelta(t, 0.02, res.AvgTime, 0.0001)
	assert.InDelta(t, 0.01, res.MinTime, 0.001)
	assert.InDelta(t, 0.03, res.MaxTime, 0.001)
	assert.InDelta(t, 0.1, res.TotalTime, 0.0001)
	assert.InDelta(t, 20.0, res.RequestsPerSecond, 0.01)
}

func TestAggregateAllFailed(t *testing.T) {
	outcomes := []requestResult{
		{elapsed: time.Millisecond, reason: "connection refused"},
		{elapsed: time.Millisecond, reason: "connection refused"},
	}

	res := aggregate(2, outcomes, 10*time.Millisecond)

	assert.Equal(t, 2, res.Failed)
	assert.Zero(t, res.Successful)
	// Zero by convention, never NaN.
	assert.Zero(t, res.AvgTime)
	assert.Zero(t, res.RequestsPerSecond)
}
