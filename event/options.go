package event

// listenerEntry one subscription
type listenerEntry struct {
	id       uint64
	listener Listener
	priority int
	async    bool
	once     bool
}

// SubscribeOption customizes one subscription
type SubscribeOption func(*listenerEntry)

// WithPriority orders listeners of one event, smaller runs first.
// Default priority is 0.
func WithPriority(priority int) SubscribeOption {
	return func(e *listenerEntry) {
		e.priority = priority
	}
}

// WithAsync runs the listener on the worker pool even for synchronous
// dispatches. Errors of async listeners never affect propagation.
func WithAsync() SubscribeOption {
	return func(e *listenerEntry) {
		e.async = true
	}
}

// WithOnce unsubscribes the listener after its first execution
func WithOnce() SubscribeOption {
	return func(e *listenerEntry) {
		e.once = true
	}
}

// DispatcherOption customizes the dispatcher
type DispatcherOption func(*dispatcher)

// WithPoolSize sets the size of the async worker pool
func WithPoolSize(size int) DispatcherOption {
	return func(d *dispatcher) {
		d.poolSize = size
	}
}

// WithSetAllSync forces every dispatch and listener to run synchronously,
// useful in tests.
func WithSetAllSync(v bool) DispatcherOption {
	return func(d *dispatcher) {
		d.setAllSync = v
	}
}

// dispatchOptions per-dispatch behavior
type dispatchOptions struct {
	async bool
}

// DispatchOption customizes one dispatch
type DispatchOption func(*dispatchOptions)

// WithDispatchAsync submits the dispatch to the worker pool and returns
// immediately.
func WithDispatchAsync() DispatchOption {
	return func(o *dispatchOptions) {
		o.async = true
	}
}
