package system

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// MetricType names the process-wide indicator a system rule watches
type MetricType int32

const (
	// Load one-minute load average of the host
	Load MetricType = iota
	// AvgRt average response time of inbound traffic, milliseconds
	AvgRt
	// Concurrency in-flight inbound calls
	Concurrency
	// InboundQPS admission rate of inbound traffic
	InboundQPS
	// CpuUsage host CPU usage ratio in [0, 1]
	CpuUsage
	// MetricTypeSize number of metric types
	MetricTypeSize
)

func (t MetricType) String() string {
	switch t {
	case Load:
		return "Load"
	case AvgRt:
		return "AvgRt"
	case Concurrency:
		return "Concurrency"
	case InboundQPS:
		return "InboundQPS"
	case CpuUsage:
		return "CpuUsage"
	default:
		return fmt.Sprintf("MetricType(%d)", int32(t))
	}
}

// AdaptiveStrategy selects how a Load or CpuUsage rule decides
type AdaptiveStrategy int32

const (
	// NoAdaptive blocks whenever the indicator exceeds the trigger count
	NoAdaptive AdaptiveStrategy = iota
	// BBR blocks only when the indicator is high and the current
	// concurrency exceeds what the recent throughput can sustain
	BBR
)

func (s AdaptiveStrategy) String() string {
	switch s {
	case NoAdaptive:
		return "NoAdaptive"
	case BBR:
		return "BBR"
	default:
		return fmt.Sprintf("AdaptiveStrategy(%d)", int32(s))
	}
}

// Rule is one process-wide protection policy. System rules are global,
// they guard all inbound traffic rather than a single resource.
type Rule struct {
	// MetricType watched indicator
	MetricType MetricType `json:"metricType" yaml:"metricType"`
	// TriggerCount ceiling of the indicator
	TriggerCount float64 `json:"triggerCount" yaml:"triggerCount"`
	// Strategy adaptive behavior for Load and CpuUsage
	Strategy AdaptiveStrategy `json:"strategy" yaml:"strategy"`
}

func (r *Rule) ResourceName() string {
	return "__system__"
}

func (r *Rule) String() string {
	return fmt.Sprintf("system.Rule{metricType=%s, triggerCount=%.2f, strategy=%s}",
		r.MetricType, r.TriggerCount, r.Strategy)
}

// Validate reports whether the rule is well formed
func (r *Rule) Validate() error {
	if r.MetricType < 0 || r.MetricType >= MetricTypeSize {
		return fmt.Errorf("system: unknown metric type %d", int32(r.MetricType))
	}
	if err := validation.Validate(r.TriggerCount, validation.Min(float64(0))); err != nil {
		return fmt.Errorf("system: invalid triggerCount: %w", err)
	}
	if r.Strategy == BBR && r.MetricType != Load && r.MetricType != CpuUsage {
		return fmt.Errorf("system: BBR applies to Load and CpuUsage only, got %s", r.MetricType)
	}
	return nil
}
