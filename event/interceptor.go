package event

import "context"

// Next continues the dispatch chain
type Next func(ctx context.Context, event Event) error

// Interceptor wraps every synchronous dispatch, outermost first. It may
// inspect the event, short-circuit by not calling next, or decorate the
// context.
type Interceptor func(ctx context.Context, event Event, next Next) error
