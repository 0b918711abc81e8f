package circuitbreaker

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Strategy selects what a breaker counts as a failure signal
type Strategy int32

const (
	// ErrorRatio trips when errors/total over the window reaches Threshold
	ErrorRatio Strategy = iota
	// ErrorCount trips when the error count over the window reaches Threshold
	ErrorCount
	// SlowRequestRatio trips when slow calls/total reaches Threshold; a call
	// is slow when its round trip exceeds MaxAllowedRtMs
	SlowRequestRatio
)

func (s Strategy) String() string {
	switch s {
	case ErrorRatio:
		return "ErrorRatio"
	case ErrorCount:
		return "ErrorCount"
	case SlowRequestRatio:
		return "SlowRequestRatio"
	default:
		return fmt.Sprintf("Strategy(%d)", int32(s))
	}
}

// Rule is one circuit breaking policy for a resource. Several rules may
// target the same resource; each gets its own breaker and all must pass.
type Rule struct {
	// Resource the rule targets
	Resource string `json:"resource" yaml:"resource"`
	// Strategy failure signal counted by the breaker
	Strategy Strategy `json:"strategy" yaml:"strategy"`
	// Threshold trip level; a ratio in (0,1] or an absolute error count
	Threshold float64 `json:"threshold" yaml:"threshold"`
	// RetryTimeoutMs how long an open breaker rejects before probing
	RetryTimeoutMs uint32 `json:"retryTimeoutMs" yaml:"retryTimeoutMs"`
	// MinRequestAmount completions required in the window before tripping
	MinRequestAmount uint64 `json:"minRequestAmount" yaml:"minRequestAmount"`
	// StatIntervalMs statistic window length, default 1000
	StatIntervalMs uint32 `json:"statIntervalMs" yaml:"statIntervalMs"`
	// StatSlidingWindowBucketCount buckets in the window, default 1
	StatSlidingWindowBucketCount uint32 `json:"statSlidingWindowBucketCount" yaml:"statSlidingWindowBucketCount"`
	// MaxAllowedRtMs slow-call bound for SlowRequestRatio
	MaxAllowedRtMs uint64 `json:"maxAllowedRtMs" yaml:"maxAllowedRtMs"`
	// ProbeNum half-open probe quota, default 1
	ProbeNum uint32 `json:"probeNum" yaml:"probeNum"`
}

func (r *Rule) ResourceName() string {
	return r.Resource
}

func (r *Rule) String() string {
	return fmt.Sprintf("circuitbreaker.Rule{resource=%s, strategy=%s, threshold=%.4f, retryTimeoutMs=%d, minRequestAmount=%d}",
		r.Resource, r.Strategy, r.Threshold, r.RetryTimeoutMs, r.MinRequestAmount)
}

// Validate reports whether the rule is well formed
func (r *Rule) Validate() error {
	err := validation.ValidateStruct(r,
		validation.Field(&r.Resource, validation.Required),
		validation.Field(&r.Strategy, validation.In(ErrorRatio, ErrorCount, SlowRequestRatio)),
		validation.Field(&r.RetryTimeoutMs, validation.Required),
		validation.Field(&r.Threshold, validation.Required, validation.Min(float64(0)).Exclusive()),
	)
	if err != nil {
		return err
	}
	if (r.Strategy == ErrorRatio || r.Strategy == SlowRequestRatio) && r.Threshold > 1.0 {
		return fmt.Errorf("circuitbreaker: ratio threshold must be in (0, 1], got %v", r.Threshold)
	}
	if r.Strategy == SlowRequestRatio && r.MaxAllowedRtMs == 0 {
		return fmt.Errorf("circuitbreaker: SlowRequestRatio requires a positive maxAllowedRtMs")
	}
	if interval := r.statIntervalMs(); interval%r.bucketCount() != 0 {
		return fmt.Errorf("circuitbreaker: statIntervalMs %d is not divisible by bucket count %d",
			interval, r.bucketCount())
	}
	return nil
}

// isStatReusable reports whether a breaker built for other can keep its
// accumulated window when this rule replaces it.
func (r *Rule) isStatReusable(other *Rule) bool {
	if other == nil {
		return false
	}
	return r.Resource == other.Resource &&
		r.Strategy == other.Strategy &&
		r.statIntervalMs() == other.statIntervalMs() &&
		r.bucketCount() == other.bucketCount()
}

func (r *Rule) statIntervalMs() uint32 {
	if r.StatIntervalMs == 0 {
		return 1000
	}
	return r.StatIntervalMs
}

func (r *Rule) bucketCount() uint32 {
	if r.StatSlidingWindowBucketCount == 0 {
		return 1
	}
	return r.StatSlidingWindowBucketCount
}

func (r *Rule) probeNum() uint32 {
	if r.ProbeNum == 0 {
		return 1
	}
	return r.ProbeNum
}
