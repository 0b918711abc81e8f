package isolation

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// MetricType of an isolation rule; only concurrency is defined
type MetricType int32

const (
	// Concurrency caps in-flight calls on the resource
	Concurrency MetricType = iota
)

func (t MetricType) String() string {
	if t == Concurrency {
		return "Concurrency"
	}
	return fmt.Sprintf("MetricType(%d)", int32(t))
}

// Rule caps the number of concurrent calls on a resource, isolating the
// rest of the process from a slow dependency.
type Rule struct {
	// Resource the rule targets
	Resource string `json:"resource" yaml:"resource"`
	// MetricType measured statistic, Concurrency only
	MetricType MetricType `json:"metricType" yaml:"metricType"`
	// Threshold max in-flight calls
	Threshold uint32 `json:"threshold" yaml:"threshold"`
}

func (r *Rule) ResourceName() string {
	return r.Resource
}

func (r *Rule) String() string {
	return fmt.Sprintf("isolation.Rule{resource=%s, metricType=%s, threshold=%d}",
		r.Resource, r.MetricType, r.Threshold)
}

// Validate reports whether the rule is well formed
func (r *Rule) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Resource, validation.Required),
		validation.Field(&r.MetricType, validation.In(Concurrency)),
		validation.Field(&r.Threshold, validation.Required),
	)
}
