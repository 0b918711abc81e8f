package flow

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// MetricType selects the statistic a flow rule compares against
type MetricType int32

const (
	// Concurrency limits in-flight calls
	Concurrency MetricType = iota
	// QPS limits the per-second admission rate
	QPS
)

func (t MetricType) String() string {
	switch t {
	case Concurrency:
		return "Concurrency"
	case QPS:
		return "QPS"
	default:
		return fmt.Sprintf("MetricType(%d)", int32(t))
	}
}

// ControlStrategy selects what happens when the threshold is reached
type ControlStrategy int32

const (
	// Reject blocks immediately once the threshold is reached
	Reject ControlStrategy = iota
	// Throttling spaces admissions evenly, queueing up to a bounded wait
	Throttling
	// WarmUp ramps the effective threshold up from a cold value after idle
	WarmUp
)

func (s ControlStrategy) String() string {
	switch s {
	case Reject:
		return "Reject"
	case Throttling:
		return "Throttling"
	case WarmUp:
		return "WarmUp"
	default:
		return fmt.Sprintf("ControlStrategy(%d)", int32(s))
	}
}

// Rule is one flow control policy for a resource
type Rule struct {
	// Resource the rule targets
	Resource string `json:"resource" yaml:"resource"`
	// MetricType statistic compared against Threshold
	MetricType MetricType `json:"metricType" yaml:"metricType"`
	// ControlStrategy behavior at the threshold
	ControlStrategy ControlStrategy `json:"controlStrategy" yaml:"controlStrategy"`
	// Threshold limit value; QPS per second or max in-flight calls
	Threshold float64 `json:"threshold" yaml:"threshold"`
	// WarmUpPeriodSec ramp duration for the WarmUp strategy
	WarmUpPeriodSec uint32 `json:"warmUpPeriodSec" yaml:"warmUpPeriodSec"`
	// WarmUpColdFactor divisor of Threshold at the cold end, default 3
	WarmUpColdFactor uint32 `json:"warmUpColdFactor" yaml:"warmUpColdFactor"`
	// MaxQueueingTimeMs wait bound for the Throttling strategy
	MaxQueueingTimeMs uint32 `json:"maxQueueingTimeMs" yaml:"maxQueueingTimeMs"`
	// StatIntervalMs statistic window consulted, default 1000
	StatIntervalMs uint32 `json:"statIntervalMs" yaml:"statIntervalMs"`
}

func (r *Rule) ResourceName() string {
	return r.Resource
}

func (r *Rule) String() string {
	return fmt.Sprintf("flow.Rule{resource=%s, metricType=%s, strategy=%s, threshold=%.2f}",
		r.Resource, r.MetricType, r.ControlStrategy, r.Threshold)
}

// Validate reports whether the rule is well formed
func (r *Rule) Validate() error {
	err := validation.ValidateStruct(r,
		validation.Field(&r.Resource, validation.Required),
		validation.Field(&r.MetricType, validation.In(Concurrency, QPS)),
		validation.Field(&r.ControlStrategy, validation.In(Reject, Throttling, WarmUp)),
		validation.Field(&r.Threshold, validation.Min(float64(0))),
	)
	if err != nil {
		return err
	}
	if r.ControlStrategy != Reject && r.MetricType != QPS {
		return fmt.Errorf("flow: strategy %s requires the QPS metric", r.ControlStrategy)
	}
	if r.ControlStrategy == WarmUp && r.WarmUpPeriodSec == 0 {
		return fmt.Errorf("flow: WarmUp requires a positive warmUpPeriodSec")
	}
	return nil
}

// statIntervalMs returns the effective statistic window
func (r *Rule) statIntervalMs() uint32 {
	if r.StatIntervalMs == 0 {
		return 1000
	}
	return r.StatIntervalMs
}

func (r *Rule) warmUpColdFactor() uint32 {
	if r.WarmUpColdFactor <= 1 {
		return 3
	}
	return r.WarmUpColdFactor
}
