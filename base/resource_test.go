package base

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrafficTypeNames(t *testing.T) {
	assert.Equal(t, "Inbound", Inbound.String())
	assert.Equal(t, "Outbound", Outbound.String())
	assert.Equal(t, "TrafficType(7)", TrafficType(7).String())
}

func TestResourceWrapperAccessors(t *testing.T) {
	r := NewResourceWrapper("GET:/orders", ResTypeWeb, Inbound)
	assert.Equal(t, "GET:/orders", r.Name())
	assert.Equal(t, ResTypeWeb, r.Type())
	assert.Equal(t, Inbound, r.TrafficType())
	assert.Contains(t, r.String(), "GET:/orders")
}
