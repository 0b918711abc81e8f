package hotspot

import (
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// MetricType selects the statistic a hotspot rule compares against
type MetricType int32

const (
	// Concurrency caps in-flight calls per parameter value
	Concurrency MetricType = iota
	// QPS limits the admission rate per parameter value
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

// ControlStrategy selects what happens at the per-value threshold
type ControlStrategy int32

const (
	// Reject blocks immediately once the value's tokens are exhausted
	Reject ControlStrategy = iota
	// Throttling spaces admissions per value, queueing up to a bound
	Throttling
)

func (s ControlStrategy) String() string {
	switch s {
	case Reject:
		return "Reject"
	case Throttling:
		return "Throttling"
	default:
		return fmt.Sprintf("ControlStrategy(%d)", int32(s))
	}
}

// ParamsMaxCapacityDefault bound on tracked values per rule
const ParamsMaxCapacityDefault = 20000

// Rule rate-limits a resource per value of one call argument, so one hot
// key cannot exhaust the whole resource budget.
type Rule struct {
	// Resource the rule targets
	Resource string `json:"resource" yaml:"resource"`
	// MetricType statistic compared against Threshold
	MetricType MetricType `json:"metricType" yaml:"metricType"`
	// ControlStrategy behavior at the threshold
	ControlStrategy ControlStrategy `json:"controlStrategy" yaml:"controlStrategy"`
	// ParamIndex position of the watched argument; negative counts from the end
	ParamIndex int `json:"paramIndex" yaml:"paramIndex"`
	// Threshold tokens granted per value per DurationInSec
	Threshold int64 `json:"threshold" yaml:"threshold"`
	// MaxQueueingTimeMs wait bound for the Throttling strategy
	MaxQueueingTimeMs int64 `json:"maxQueueingTimeMs" yaml:"maxQueueingTimeMs"`
	// BurstCount extra tokens a value may accumulate beyond Threshold
	BurstCount int64 `json:"burstCount" yaml:"burstCount"`
	// DurationInSec token refill period, default 1
	DurationInSec int64 `json:"durationInSec" yaml:"durationInSec"`
	// ParamsMaxCapacity bound on tracked values, LRU-evicted beyond it
	ParamsMaxCapacity int `json:"paramsMaxCapacity" yaml:"paramsMaxCapacity"`
	// SpecificItems per-value threshold overrides
	SpecificItems map[interface{}]int64 `json:"-" yaml:"-"`
}

func (r *Rule) ResourceName() string {
	return r.Resource
}

func (r *Rule) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "hotspot.Rule{resource=%s, metricType=%s, strategy=%s, paramIndex=%d, threshold=%d",
		r.Resource, r.MetricType, r.ControlStrategy, r.ParamIndex, r.Threshold)
	if len(r.SpecificItems) > 0 {
		fmt.Fprintf(&sb, ", specificItems=%d", len(r.SpecificItems))
	}
	sb.WriteString("}")
	return sb.String()
}

// Validate reports whether the rule is well formed
func (r *Rule) Validate() error {
	err := validation.ValidateStruct(r,
		validation.Field(&r.Resource, validation.Required),
		validation.Field(&r.MetricType, validation.In(Concurrency, QPS)),
		validation.Field(&r.ControlStrategy, validation.In(Reject, Throttling)),
		validation.Field(&r.Threshold, validation.Min(int64(0))),
		validation.Field(&r.BurstCount, validation.Min(int64(0))),
	)
	if err != nil {
		return err
	}
	if r.ControlStrategy == Throttling && r.MetricType != QPS {
		return fmt.Errorf("hotspot: Throttling requires the QPS metric")
	}
	return nil
}

func (r *Rule) durationInSec() int64 {
	if r.DurationInSec <= 0 {
		return 1
	}
	return r.DurationInSec
}

func (r *Rule) paramsMaxCapacity() int {
	if r.ParamsMaxCapacity <= 0 {
		return ParamsMaxCapacityDefault
	}
	return r.ParamsMaxCapacity
}

// thresholdFor returns the token budget of one value, honoring overrides
func (r *Rule) thresholdFor(arg interface{}) int64 {
	if specific, ok := r.SpecificItems[arg]; ok {
		return specific
	}
	return r.Threshold
}
