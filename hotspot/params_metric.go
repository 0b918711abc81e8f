package hotspot

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ParamsMetric holds the per-value counters of one rule, bounded by an
// LRU so an unbounded key space cannot exhaust memory. Values evicted by
// the LRU simply start over on their next appearance.
type ParamsMetric struct {
	// lastRefillMs last token refill timestamp per value
	lastRefillMs *lru.Cache[interface{}, *atomic.Int64]
	// tokens remaining token budget per value
	tokens *lru.Cache[interface{}, *atomic.Int64]
	// concurrency in-flight calls per value
	concurrency *lru.Cache[interface{}, *atomic.Int64]
}

func newParamsMetric(capacity int) (*ParamsMetric, error) {
	lastRefill, err := lru.New[interface{}, *atomic.Int64](capacity)
	if err != nil {
		return nil, err
	}
	tokens, err := lru.New[interface{}, *atomic.Int64](capacity)
	if err != nil {
		return nil, err
	}
	concurrency, err := lru.New[interface{}, *atomic.Int64](capacity)
	if err != nil {
		return nil, err
	}
	return &ParamsMetric{
		lastRefillMs: lastRefill,
		tokens:       tokens,
		concurrency:  concurrency,
	}, nil
}

// counterFor returns the counter of arg in cache, inserting init on first
// sight. The bool reports whether the counter already existed.
func counterFor(cache *lru.Cache[interface{}, *atomic.Int64], arg interface{}, init int64) (*atomic.Int64, bool) {
	fresh := &atomic.Int64{}
	fresh.Store(init)
	if previous, existed, _ := cache.PeekOrAdd(arg, fresh); existed {
		return previous, true
	}
	return fresh, false
}

// ConcurrencyFor returns the live in-flight counter of arg
func (m *ParamsMetric) ConcurrencyFor(arg interface{}) *atomic.Int64 {
	c, _ := counterFor(m.concurrency, arg, 0)
	return c
}
