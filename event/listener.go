package event

import "context"

// Listener handles dispatched events.
// Returning an error from a synchronous listener stops further listeners;
// returning ErrStopPropagation stops them without counting as a failure.
type Listener interface {
	Handle(ctx context.Context, event Event) error
}

// ListenerFunc adapts a function to the Listener interface
type ListenerFunc func(ctx context.Context, event Event) error

func (f ListenerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}
