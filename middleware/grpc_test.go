package middleware

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/KOMKZ/go-aegis/flow"
)

func TestUnaryServerInterceptorPass(t *testing.T) {
	engine := newTestEngine(t)
	interceptor := UnaryServerInterceptor(engine)

	resp, err := interceptor(context.Background(), "req",
		&grpc.UnaryServerInfo{FullMethod: "/orders.Orders/Get"},
		func(context.Context, interface{}) (interface{}, error) {
			return "resp", nil
		})
	require.NoError(t, err)
	assert.Equal(t, "resp", resp)

	snap := engine.Snapshot("/orders.Orders/Get")
	assert.Equal(t, int64(1), snap.TotalPass)
	assert.Equal(t, int64(1), snap.TotalComplete)
}

func TestUnaryServerInterceptorBlocks(t *testing.T) {
	engine := newTestEngine(t)
	require.NoError(t, engine.LoadFlowRules([]*flow.Rule{{
		Resource:        "/orders.Orders/Get",
		MetricType:      flow.QPS,
		ControlStrategy: flow.Reject,
		Threshold:       1,
	}}))
	interceptor := UnaryServerInterceptor(engine)
	handler := func(context.Context, interface{}) (interface{}, error) {
		return "resp", nil
	}
	info := &grpc.UnaryServerInfo{FullMethod: "/orders.Orders/Get"}

	_, err := interceptor(context.Background(), "req", info, handler)
	require.NoError(t, err)

	_, err = interceptor(context.Background(), "req", info, handler)
	require.Error(t, err)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))
}

func TestUnaryServerInterceptorRecordsHandlerError(t *testing.T) {
	engine := newTestEngine(t)
	interceptor := UnaryServerInterceptor(engine)

	boom := errors.New("boom")
	_, err := interceptor(context.Background(), "req",
		&grpc.UnaryServerInfo{FullMethod: "/orders.Orders/Get"},
		func(context.Context, interface{}) (interface{}, error) {
			return nil, boom
		})
	assert.ErrorIs(t, err, boom)

	snap := engine.Snapshot("/orders.Orders/Get")
	assert.Equal(t, int64(1), snap.TotalError)
}

func TestUnaryClientInterceptor(t *testing.T) {
	engine := newTestEngine(t)
	interceptor := UnaryClientInterceptor(engine)

	err := interceptor(context.Background(), "/billing.Billing/Charge", "req", "reply", nil,
		func(context.Context, string, interface{}, interface{}, *grpc.ClientConn, ...grpc.CallOption) error {
			return nil
		})
	require.NoError(t, err)

	snap := engine.Snapshot("/billing.Billing/Charge")
	assert.Equal(t, int64(1), snap.TotalPass)
}
