package event

import "time"

// Event is anything the engine announces to subscribers
type Event interface {
	// Name event name, such as "breaker.state_changed"
	Name() string
}

// BaseEvent carries the fields shared by every event, embed it in
// concrete event structs.
type BaseEvent struct {
	name       string
	occurredAt time.Time
}

// NewEvent creates a base event stamped with the current time
func NewEvent(name string) BaseEvent {
	return BaseEvent{
		name:       name,
		occurredAt: time.Now(),
	}
}

// Name returns the event name
func (e BaseEvent) Name() string {
	return e.name
}

// OccurredAt returns when the event happened
func (e BaseEvent) OccurredAt() time.Time {
	return e.occurredAt
}

// Engine event names
const (
	// NameBreakerStateChanged a circuit breaker moved between states
	NameBreakerStateChanged = "breaker.state_changed"
	// NameRulesUpdated a rule manager swapped in a new rule set
	NameRulesUpdated = "rules.updated"
)

// BreakerStateChangedEvent announces one breaker state transition
type BreakerStateChangedEvent struct {
	BaseEvent

	// Resource the breaker protects
	Resource string
	// PrevState the state left, by name
	PrevState string
	// NextState the state entered, by name
	NextState string
	// Rule string form of the rule driving the breaker
	Rule string
}

// NewBreakerStateChangedEvent creates a breaker transition event
func NewBreakerStateChangedEvent(resource, prevState, nextState, rule string) *BreakerStateChangedEvent {
	return &BreakerStateChangedEvent{
		BaseEvent: NewEvent(NameBreakerStateChanged),
		Resource:  resource,
		PrevState: prevState,
		NextState: nextState,
		Rule:      rule,
	}
}

// RulesUpdatedEvent announces a rule set replacement
type RulesUpdatedEvent struct {
	BaseEvent

	// Kind rule kind that was reloaded: flow, circuitbreaker, system,
	// hotspot or isolation
	Kind string
	// Count size of the new rule set
	Count int
}

// NewRulesUpdatedEvent creates a rule reload event
func NewRulesUpdatedEvent(kind string, count int) *RulesUpdatedEvent {
	return &RulesUpdatedEvent{
		BaseEvent: NewEvent(NameRulesUpdated),
		Kind:      kind,
		Count:     count,
	}
}
