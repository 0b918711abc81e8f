package middleware

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	aegis "github.com/KOMKZ/go-aegis"
	"github.com/KOMKZ/go-aegis/base"
)

// UnaryServerInterceptor guards unary RPCs with the engine. The full
// method name is the resource; rejections map to ResourceExhausted.
func UnaryServerInterceptor(engine *aegis.Engine) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		entry, blockErr := engine.Entry(info.FullMethod,
			aegis.WithResourceType(base.ResTypeRPC),
			aegis.WithTrafficType(base.Inbound),
		)
		if blockErr != nil {
			return nil, status.Error(codes.ResourceExhausted, blockErr.Error())
		}

		resp, err := handler(ctx, req)
		entry.Exit(base.WithError(err))
		return resp, err
	}
}

// StreamServerInterceptor guards streaming RPCs with the engine
func StreamServerInterceptor(engine *aegis.Engine) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		entry, blockErr := engine.Entry(info.FullMethod,
			aegis.WithResourceType(base.ResTypeRPC),
			aegis.WithTrafficType(base.Inbound),
		)
		if blockErr != nil {
			return status.Error(codes.ResourceExhausted, blockErr.Error())
		}

		err := handler(srv, ss)
		entry.Exit(base.WithError(err))
		return err
	}
}

// UnaryClientInterceptor guards outbound unary RPCs, protecting the
// process from a degraded downstream via circuit breaker rules.
func UnaryClientInterceptor(engine *aegis.Engine) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		entry, blockErr := engine.Entry(method,
			aegis.WithResourceType(base.ResTypeRPC),
			aegis.WithTrafficType(base.Outbound),
		)
		if blockErr != nil {
			return status.Error(codes.ResourceExhausted, blockErr.Error())
		}

		err := invoker(ctx, method, req, reply, cc, opts...)
		entry.Exit(base.WithError(err))
		return err
	}
}
