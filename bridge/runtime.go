package bridge

import (
	"sync"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/DrewBradfordXYZ/cbmgmt-go/core"
)

// UnhandledErrorFunc receives failures raised by a callback. A callback runs
// on a foreign goroutine, so its failure cannot be returned to anyone.
type UnhandledErrorFunc func(op string, err error)

// Runtime owns the host guard and the unhandled-error channel.
//
// Every completion acquires the guard before touching caller-owned values and
// releases it on every exit path. Callers holding the guard must release it
// with Unlocked before blocking on a future.
type Runtime struct {
	guard     sync.Locker
	logger    *core.Logger
	unhandled UnhandledErrorFunc
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithGuard replaces the default guard.
func WithGuard(g sync.Locker) RuntimeOption {
	return func(r *Runtime) {
		r.guard = g
	}
}

// WithLogger sets the logger used for promise misuse and the default unhandled-error channel.
func WithLogger(l *core.Logger) RuntimeOption {
	return func(r *Runtime) {
		r.logger = l
	}
}

// WithUnhandledErrorFunc sets the unhandled-error channel.
func WithUnhandledErrorFunc(fn UnhandledErrorFunc) RuntimeOption {
	return func(r *Runtime) {
		r.unhandled = fn
	}
}

// NewRuntime creates a runtime with a mutex guard and a logging unhandled-error channel.
func NewRuntime(opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		guard:  &sync.Mutex{},
		logger: core.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.unhandled == nil {
		logger := r.logger
		r.unhandled = func(op string, err error) {
			logger.Error("unhandled error in completion callback", core.FieldOp(op), zap.Error(err))
		}
	}
	return r
}

// Locked runs fn while holding the guard.
func (r *Runtime) Locked(fn func()) {
	r.guard.Lock()
	defer r.guard.Unlock()
	fn()
}

// Unlocked releases the guard for the duration of fn. It must only be called
// while the guard is held, for example from inside a callback.
func (r *Runtime) Unlocked(fn func()) {
	r.guard.Unlock()
	defer r.guard.Lock()
	fn()
}

// call invokes fn and reports any panic through the unhandled-error channel.
func (r *Runtime) call(op string, fn func()) {
	defer func() {
		if x := recover(); x != nil {
			err, ok := x.(error)
			if !ok {
				err = errors.Newf("panicked with error: %v", x)
			}
			r.unhandled(op, err)
		}
	}()
	fn()
}

// Logger returns the logger callback panics and delivery failures are reported to.
func (r *Runtime) Logger() *core.Logger {
	return r.logger
}
