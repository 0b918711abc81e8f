package base

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/KOMKZ/go-aegis/logger"
)

// ExitHandler runs during Entry.Exit, before the stat slots unwind.
// Handlers registered by rule slots observe the final call outcome.
type ExitHandler func(entry *Entry, ctx *EntryContext) error

// ExitOption mutates the context right before exit bookkeeping runs
type ExitOption func(ctx *EntryContext)

// WithError reports the business error of the completed call
func WithError(err error) ExitOption {
	return func(ctx *EntryContext) {
		ctx.SetErr(err)
	}
}

// Entry is the per-call handle returned to admitted callers. It must be
// completed exactly once; repeated Exit calls are ignored.
type Entry struct {
	id  string
	ctx *EntryContext
	sc  *SlotChain

	exitHandlers []ExitHandler
	handlerMu    sync.Mutex

	exited int32
}

// NewEntry creates an entry bound to the given context and chain
func NewEntry(ctx *EntryContext, sc *SlotChain) *Entry {
	e := &Entry{
		id:  uuid.New().String(),
		ctx: ctx,
		sc:  sc,
	}
	ctx.SetEntry(e)
	return e
}

// ID returns the unique entry identifier, used for logging correlation
func (e *Entry) ID() string {
	return e.id
}

// Context returns the per-call context
func (e *Entry) Context() *EntryContext {
	return e.ctx
}

// WhenExit appends a handler invoked on completion, LIFO order
func (e *Entry) WhenExit(handler ExitHandler) {
	e.handlerMu.Lock()
	e.exitHandlers = append(e.exitHandlers, handler)
	e.handlerMu.Unlock()
}

// SetError records the business error without completing the entry
func (e *Entry) SetError(err error) {
	e.ctx.SetErr(err)
}

// Exit completes the call and unwinds the stat slots in reverse order.
// Exactly-once: only the first invocation takes effect, so deferred Exit
// on every code path is safe.
func (e *Entry) Exit(opts ...ExitOption) {
	if !atomic.CompareAndSwapInt32(&e.exited, 0, 1) {
		return
	}
	for _, opt := range opts {
		opt(e.ctx)
	}
	if !e.ctx.IsBlocked() && e.ctx.Rt() == 0 {
		e.ctx.SetRt(CurrentTimeMillis() - e.ctx.StartTime())
	}

	e.handlerMu.Lock()
	handlers := e.exitHandlers
	e.exitHandlers = nil
	e.handlerMu.Unlock()

	// LIFO: the most recently entered slot observes the outcome first
	for i := len(handlers) - 1; i >= 0; i-- {
		if err := handlers[i](e, e.ctx); err != nil {
			logger.GetLogger("aegis").Warn("Entry exit handler failed",
				zap.String("resource", e.ctx.Resource().Name()),
				zap.String("entry_id", e.id),
				zap.Error(err))
		}
	}

	if e.sc != nil {
		e.sc.Exit(e.ctx)
	}
}
