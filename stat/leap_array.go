package stat

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/KOMKZ/go-aegis/base"
)

var (
	// ErrTimeBackwards the wall clock moved behind the newest bucket
	ErrTimeBackwards = errors.New("stat: current time is behind the newest bucket")
)

// BucketWrap pairs a bucket with the start stamp of the span it covers.
// The stamp is the bucket's generation: a reader that loads a stamp and
// then the value either sees the matching generation or a fully reset
// newer one, never a mix.
type BucketWrap[T any] struct {
	bucketStart atomic.Uint64
	value       atomic.Pointer[T]
}

// BucketStart returns the start stamp in unix milliseconds
func (bw *BucketWrap[T]) BucketStart() uint64 {
	return bw.bucketStart.Load()
}

// Value returns the bucket payload
func (bw *BucketWrap[T]) Value() *T {
	return bw.value.Load()
}

// LeapArray is a fixed ring of time buckets covering a trailing window of
// intervalInMs, split into sampleCount spans of bucketLengthInMs each.
// Rotation is lazy: a stale bucket is claimed and cleared by the writer
// that first routes into its new span.
type LeapArray[T any] struct {
	bucketLengthInMs uint32
	sampleCount      uint32
	intervalInMs     uint32

	array     []*BucketWrap[T]
	newBucket func() *T

	// serializes claim-and-clear of deprecated buckets; writers that lose
	// the TryLock race spin until the winner has installed the new span
	updateMu sync.Mutex
}

// NewLeapArray builds a ring of sampleCount buckets covering intervalInMs.
// newBucket produces an empty payload and is called once per slot up front
// and once per rotation.
func NewLeapArray[T any](sampleCount, intervalInMs uint32, newBucket func() *T) (*LeapArray[T], error) {
	if sampleCount == 0 {
		return nil, fmt.Errorf("stat: sampleCount must be positive, got %d", sampleCount)
	}
	if intervalInMs == 0 || intervalInMs%sampleCount != 0 {
		return nil, fmt.Errorf("stat: intervalInMs %d is not divisible by sampleCount %d", intervalInMs, sampleCount)
	}
	if newBucket == nil {
		return nil, errors.New("stat: newBucket must not be nil")
	}
	la := &LeapArray[T]{
		bucketLengthInMs: intervalInMs / sampleCount,
		sampleCount:      sampleCount,
		intervalInMs:     intervalInMs,
		array:            make([]*BucketWrap[T], sampleCount),
		newBucket:        newBucket,
	}
	for i := range la.array {
		bw := &BucketWrap[T]{}
		bw.value.Store(newBucket())
		la.array[i] = bw
	}
	return la, nil
}

func (la *LeapArray[T]) SampleCount() uint32      { return la.sampleCount }
func (la *LeapArray[T]) IntervalInMs() uint32     { return la.intervalInMs }
func (la *LeapArray[T]) BucketLengthInMs() uint32 { return la.bucketLengthInMs }

func (la *LeapArray[T]) timeIdx(timeMs uint64) int {
	return int((timeMs / uint64(la.bucketLengthInMs)) % uint64(la.sampleCount))
}

func (la *LeapArray[T]) calculateStartStamp(timeMs uint64) uint64 {
	return timeMs - timeMs%uint64(la.bucketLengthInMs)
}

func (la *LeapArray[T]) isBucketDeprecated(nowMs uint64, startMs uint64) bool {
	return nowMs > startMs && nowMs-startMs > uint64(la.intervalInMs)
}

// CurrentBucket returns the bucket whose span contains the current time,
// rotating it first if the slot still holds an elapsed span.
func (la *LeapArray[T]) CurrentBucket() (*T, error) {
	return la.BucketOfTime(base.CurrentTimeMillis())
}

// BucketOfTime returns the bucket whose span contains timeMs
func (la *LeapArray[T]) BucketOfTime(timeMs uint64) (*T, error) {
	idx := la.timeIdx(timeMs)
	startStamp := la.calculateStartStamp(timeMs)
	bw := la.array[idx]
	for {
		old := bw.bucketStart.Load()
		switch {
		case old == 0:
			// unclaimed slot, first writer stamps it
			if bw.bucketStart.CompareAndSwap(0, startStamp) {
				return bw.value.Load(), nil
			}
		case old == startStamp:
			return bw.value.Load(), nil
		case old < startStamp:
			// the slot holds an elapsed span: claim and clear as one step
			if la.updateMu.TryLock() {
				bw.value.Store(la.newBucket())
				bw.bucketStart.Store(startStamp)
				la.updateMu.Unlock()
				return bw.value.Load(), nil
			}
			runtime.Gosched()
		default:
			return nil, ErrTimeBackwards
		}
	}
}

// Reset clears every bucket back to the unclaimed state
func (la *LeapArray[T]) Reset() {
	la.updateMu.Lock()
	defer la.updateMu.Unlock()
	for _, bw := range la.array {
		bw.value.Store(la.newBucket())
		bw.bucketStart.Store(0)
	}
}

// Values returns the payloads of all buckets still valid at nowMs
func (la *LeapArray[T]) Values(nowMs uint64) []*T {
	return la.ValuesConditional(nowMs, func(uint64) bool { return true })
}

// ValuesConditional returns the payloads of valid buckets whose start
// stamp satisfies the predicate.
func (la *LeapArray[T]) ValuesConditional(nowMs uint64, predicate func(startMs uint64) bool) []*T {
	ret := make([]*T, 0, la.sampleCount)
	for _, bw := range la.array {
		start := bw.bucketStart.Load()
		if start == 0 || la.isBucketDeprecated(nowMs, start) || start > nowMs {
			continue
		}
		if !predicate(start) {
			continue
		}
		ret = append(ret, bw.value.Load())
	}
	return ret
}
