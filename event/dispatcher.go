package event

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/KOMKZ/go-aegis/logger"
)

// UnsubscribeFunc removes a subscription
type UnsubscribeFunc func()

// Dispatcher decouples the engine from whoever wants to observe it:
// breaker transitions, rule reloads and custom events flow through here.
type Dispatcher interface {
	// Subscribe registers a listener for the event name and returns the
	// unsubscribe function.
	Subscribe(eventName string, listener Listener, opts ...SubscribeOption) UnsubscribeFunc

	// Dispatch delivers the event to its listeners, synchronously unless
	// WithDispatchAsync is given.
	Dispatch(ctx context.Context, event Event, opts ...DispatchOption) error

	// DispatchAsync is shorthand for Dispatch with WithDispatchAsync
	DispatchAsync(ctx context.Context, event Event)

	// Use registers a global interceptor around synchronous dispatches
	Use(interceptor Interceptor)
}

type dispatcher struct {
	mu           sync.RWMutex
	listeners    map[string][]listenerEntry
	interceptors []Interceptor
	nextID       uint64
	pool         *ants.Pool
	poolSize     int
	log          *logger.CtxZapLogger
	closed       int32
	setAllSync   bool
}

// NewDispatcher creates a dispatcher with its async worker pool
func NewDispatcher(opts ...DispatcherOption) *dispatcher {
	d := &dispatcher{
		listeners: make(map[string][]listenerEntry),
		poolSize:  100,
		log:       logger.GetLogger("aegis"),
	}

	for _, opt := range opts {
		opt(d)
	}

	var err error
	d.pool, err = ants.NewPool(d.poolSize)
	if err != nil {
		d.log.Error("event pool creation failed, falling back to default size", zap.Error(err))
		d.pool, _ = ants.NewPool(100)
	}

	return d
}

func (d *dispatcher) Subscribe(eventName string, listener Listener, opts ...SubscribeOption) UnsubscribeFunc {
	if eventName == "" || listener == nil {
		return func() {}
	}

	entry := listenerEntry{
		id:       atomic.AddUint64(&d.nextID, 1),
		listener: listener,
	}

	for _, opt := range opts {
		opt(&entry)
		if d.setAllSync {
			entry.async = false
		}
	}

	d.mu.Lock()
	d.listeners[eventName] = append(d.listeners[eventName], entry)
	sort.SliceStable(d.listeners[eventName], func(i, j int) bool {
		return d.listeners[eventName][i].priority < d.listeners[eventName][j].priority
	})
	d.mu.Unlock()

	return func() {
		d.unsubscribe(eventName, entry.id)
	}
}

func (d *dispatcher) unsubscribe(eventName string, id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	entries := d.listeners[eventName]
	for i, e := range entries {
		if e.id == id {
			d.listeners[eventName] = append(entries[:i], entries[i+1:]...)
			return
		}
	}
}

func (d *dispatcher) Use(interceptor Interceptor) {
	d.mu.Lock()
	d.interceptors = append(d.interceptors, interceptor)
	d.mu.Unlock()
}

func (d *dispatcher) Dispatch(ctx context.Context, event Event, opts ...DispatchOption) error {
	if event == nil {
		return nil
	}

	options := &dispatchOptions{}
	for _, opt := range opts {
		opt(options)
	}

	if options.async && !d.setAllSync {
		d.dispatchAsync(ctx, event)
		return nil
	}
	return d.dispatchSync(ctx, event)
}

func (d *dispatcher) DispatchAsync(ctx context.Context, event Event) {
	_ = d.Dispatch(ctx, event, WithDispatchAsync())
}

func (d *dispatcher) dispatchSync(ctx context.Context, event Event) error {
	d.mu.RLock()
	interceptors := make([]Interceptor, len(d.interceptors))
	copy(interceptors, d.interceptors)
	entries := make([]listenerEntry, len(d.listeners[event.Name()]))
	copy(entries, d.listeners[event.Name()])
	d.mu.RUnlock()

	handler := d.buildHandlerChain(entries, interceptors)

	err := handler(ctx, event)

	d.cleanupOnceListeners(event.Name(), entries)

	// stopping propagation is a listener decision, not a failure
	if errors.Is(err, ErrStopPropagation) {
		return nil
	}

	return err
}

func (d *dispatcher) dispatchAsync(ctx context.Context, event Event) {
	if atomic.LoadInt32(&d.closed) == 1 {
		return
	}

	// carry the trace over, the request context may die before the
	// listeners run
	asyncCtx := context.Background()
	if traceID := ctx.Value("trace_id"); traceID != nil {
		asyncCtx = context.WithValue(asyncCtx, "trace_id", traceID)
	}

	eventName := event.Name()

	err := d.pool.Submit(func() {
		if err := d.dispatchSync(asyncCtx, event); err != nil {
			d.log.ErrorCtx(asyncCtx, "async event handling failed",
				zap.String("event", eventName),
				zap.Error(err))
		}
	})

	if err != nil {
		d.log.ErrorCtx(ctx, "async event submit failed",
			zap.String("event", eventName),
			zap.Error(err))
	}
}

func (d *dispatcher) buildHandlerChain(entries []listenerEntry, interceptors []Interceptor) Next {
	handler := func(ctx context.Context, event Event) error {
		return d.executeListeners(ctx, event, entries)
	}

	for i := len(interceptors) - 1; i >= 0; i-- {
		interceptor := interceptors[i]
		next := handler
		handler = func(ctx context.Context, event Event) error {
			return interceptor(ctx, event, next)
		}
	}

	return handler
}

func (d *dispatcher) executeListeners(ctx context.Context, event Event, entries []listenerEntry) error {
	for _, entry := range entries {
		if entry.async {
			listener := entry.listener
			eventName := event.Name()
			_ = d.pool.Submit(func() {
				if err := listener.Handle(ctx, event); err != nil && !errors.Is(err, ErrStopPropagation) {
					d.log.ErrorCtx(ctx, "async listener failed",
						zap.String("event", eventName),
						zap.Error(err))
				}
			})
			continue
		}

		if err := entry.listener.Handle(ctx, event); err != nil {
			return err
		}
	}

	return nil
}

func (d *dispatcher) cleanupOnceListeners(eventName string, executed []listenerEntry) {
	var onceIDs []uint64
	for _, e := range executed {
		if e.once {
			onceIDs = append(onceIDs, e.id)
		}
	}

	if len(onceIDs) == 0 {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	entries := d.listeners[eventName]
	filtered := entries[:0]
	for _, e := range entries {
		remove := false
		for _, id := range onceIDs {
			if e.id == id {
				remove = true
				break
			}
		}
		if !remove {
			filtered = append(filtered, e)
		}
	}
	d.listeners[eventName] = filtered
}

// Close stops accepting async work and releases the pool
func (d *dispatcher) Close() {
	atomic.StoreInt32(&d.closed, 1)
	if d.pool != nil {
		d.pool.Release()
	}
}

// ListenerCount returns the number of listeners of one event
func (d *dispatcher) ListenerCount(eventName string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.listeners[eventName])
}
