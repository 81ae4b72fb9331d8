package feature

import (
	"strconv"
	"sync"
	"sync/atomic"
)

// Counters tracks how many feature evaluations ran, in total and per kind.
// Counts are monotonic and exist for performance diagnostics only; they never
// influence evaluation outcomes. Safe for concurrent use. A nil *Counters
// records nothing.
type Counters struct {
	total atomic.Int64
	kinds [kindCount]atomic.Int64

	mu       sync.Mutex
	bytesLen map[int]int64 // bytes evaluations by pattern length
}

// NewCounters creates an empty counter set.
func NewCounters() *Counters {
	return &Counters{}
}

func (c *Counters) record(f Feature) {
	if c == nil {
		return
	}
	c.total.Add(1)
	if f.key.kind < kindCount {
		c.kinds[f.key.kind].Add(1)
	}
	if f.key.kind == KindBytes {
		c.mu.Lock()
		if c.bytesLen == nil {
			c.bytesLen = make(map[int]int64)
		}
		c.bytesLen[len(f.key.s)]++
		c.mu.Unlock()
	}
}

// Total returns the number of evaluations recorded.
func (c *Counters) Total() int64 {
	if c == nil {
		return 0
	}
	return c.total.Load()
}

// Kind returns the number of evaluations recorded for one kind.
func (c *Counters) Kind(k Kind) int64 {
	if c == nil || k >= kindCount {
		return 0
	}
	return c.kinds[k].Load()
}

// Snapshot returns the non-zero counters keyed the way profilers expect:
// "evaluate.feature", "evaluate.feature.<kind>" and
// "evaluate.feature.bytes.<length>".
func (c *Counters) Snapshot() map[string]int64 {
	out := make(map[string]int64)
	if c == nil {
		return out
	}
	if n := c.total.Load(); n > 0 {
		out["evaluate.feature"] = n
	}
	for k := KindMatchedRule; k < kindCount; k++ {
		if n := c.kinds[k].Load(); n > 0 {
			out["evaluate.feature."+k.String()] = n
		}
	}
	c.mu.Lock()
	for length, n := range c.bytesLen {
		out["evaluate.feature.bytes."+strconv.Itoa(length)] = n
	}
	c.mu.Unlock()
	return out
}
