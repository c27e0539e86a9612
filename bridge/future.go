package bridge

import (
	"github.com/cockroachdb/errors"
	"go.uber.org/atomic"
)

// ErrPromiseSatisfied is returned when a promise is assigned a second time.
var ErrPromiseSatisfied = errors.New("promise already satisfied")

// Future is the read side of a single-assignment value.
type Future[T any] struct {
	ch    chan struct{}
	value T
	err   error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{ch: make(chan struct{})}
}

// Await blocks until the value is assigned and returns it.
func (f *Future[T]) Await() (T, error) {
	<-f.ch
	return f.value, f.err
}

// Value blocks and returns the assigned value.
func (f *Future[T]) Value() T {
	<-f.ch
	return f.value
}

// Err blocks and returns the assigned error.
func (f *Future[T]) Err() error {
	<-f.ch
	return f.err
}

// OK blocks and reports whether the future completed without error.
func (f *Future[T]) OK() bool {
	<-f.ch
	return f.err == nil
}

// Done reports whether the future has been assigned, without blocking.
func (f *Future[T]) Done() bool {
	select {
	case <-f.ch:
		return true
	default:
		return false
	}
}

// Inner returns a channel closed on assignment.
func (f *Future[T]) Inner() <-chan struct{} {
	return f.ch
}

// Promise is the write side of a Future. It may be assigned once.
type Promise[T any] struct {
	future *Future[T]
	set    atomic.Bool
}

// NewPromise creates an unassigned promise and its future.
func NewPromise[T any]() *Promise[T] {
	return &Promise[T]{future: newFuture[T]()}
}

// Future returns the read side of the promise. Every call returns the same future.
func (p *Promise[T]) Future() *Future[T] {
	return p.future
}

// SetValue assigns a value. It returns ErrPromiseSatisfied if already assigned.
func (p *Promise[T]) SetValue(v T) error {
	if !p.set.CompareAndSwap(false, true) {
		return ErrPromiseSatisfied
	}
	p.future.value = v
	close(p.future.ch)
	return nil
}

// SetError assigns an error. It returns ErrPromiseSatisfied if already assigned.
func (p *Promise[T]) SetError(err error) error {
	if !p.set.CompareAndSwap(false, true) {
		return ErrPromiseSatisfied
	}
	p.future.err = err
	close(p.future.ch)
	return nil
}
