package circuitbreaker

import (
	"sync/atomic"

	"github.com/KOMKZ/go-aegis/stat"
)

// Counter is one breaker bucket: total completions and the subset marked
// as failure signals (errors or slow calls, per the owning strategy).
type Counter struct {
	total  atomic.Int64
	marked atomic.Int64
}

func newCounter() *Counter {
	return &Counter{}
}

// counterLeapArray is the breaker's own sliding window, layered on the
// same ring implementation the resource statistics use.
type counterLeapArray struct {
	data *stat.LeapArray[Counter]
}

func newCounterLeapArray(rule *Rule) (*counterLeapArray, error) {
	la, err := stat.NewLeapArray(rule.bucketCount(), rule.statIntervalMs(), newCounter)
	if err != nil {
		return nil, err
	}
	return &counterLeapArray{data: la}, nil
}

// add records one completion, marked when it is a failure signal
func (c *counterLeapArray) add(marked bool) error {
	b, err := c.data.CurrentBucket()
	if err != nil {
		return err
	}
	b.total.Add(1)
	if marked {
		b.marked.Add(1)
	}
	return nil
}

// sums returns the window totals valid right now
func (c *counterLeapArray) sums(nowMs uint64) (total, marked int64) {
	for _, b := range c.data.Values(nowMs) {
		total += b.total.Load()
		marked += b.marked.Load()
	}
	return total, marked
}

// reset clears the window, used when the breaker closes again
func (c *counterLeapArray) reset() {
	c.data.Reset()
}
