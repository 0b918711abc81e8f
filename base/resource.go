package base

import "fmt"

// ResourceType classifies the kind of protected resource
type ResourceType int32

const (
	// ResTypeCommon generic resource
	ResTypeCommon ResourceType = iota
	// ResTypeWeb HTTP endpoint
	ResTypeWeb
	// ResTypeRPC RPC method
	ResTypeRPC
	// ResTypeAPIGateway gateway route
	ResTypeAPIGateway
	// ResTypeDBSQL database statement
	ResTypeDBSQL
	// ResTypeCache cache operation
	ResTypeCache
	// ResTypeMQ message queue operation
	ResTypeMQ
)

// TrafficType describes the direction of the traffic for a resource
type TrafficType int32

const (
	// Inbound traffic entering the process (counted into the global inbound node)
	Inbound TrafficType = iota
	// Outbound traffic leaving the process
	Outbound
)

func (t TrafficType) String() string {
	switch t {
	case Inbound:
		return "Inbound"
	case Outbound:
		return "Outbound"
	default:
		return fmt.Sprintf("TrafficType(%d)", int32(t))
	}
}

// ResourceWrapper identifies one unit of governance: a named resource with
// its classification and traffic direction.
type ResourceWrapper struct {
	name         string
	resourceType ResourceType
	trafficType  TrafficType
}

// NewResourceWrapper creates a resource wrapper
func NewResourceWrapper(name string, resourceType ResourceType, trafficType TrafficType) *ResourceWrapper {
	return &ResourceWrapper{name: name, resourceType: resourceType, trafficType: trafficType}
}

// Name returns the unique resource name
func (r *ResourceWrapper) Name() string {
	return r.name
}

// Type returns the resource classification
func (r *ResourceWrapper) Type() ResourceType {
	return r.resourceType
}

// TrafficType returns the traffic direction
func (r *ResourceWrapper) TrafficType() TrafficType {
	return r.trafficType
}

func (r *ResourceWrapper) String() string {
	return fmt.Sprintf("ResourceWrapper{name=%s, type=%d, trafficType=%s}", r.name, r.resourceType, r.trafficType)
}
