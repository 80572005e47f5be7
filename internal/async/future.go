// Package async provides a pollable future for work that completes off the
// render loop.
package async

import (
	"context"
	"fmt"
	"sync"
)

// State is the observable state of a Future.
type State int

const (
	Pending State = iota
	Resolved
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Resolved:
		return "resolved"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Future holds the eventual result of an asynchronous operation. Producers
// call Resolve or Reject once; consumers Poll without blocking.
type Future[T any] struct {
	mu    sync.Mutex
	state State
	value T
	err   error
	done  chan struct{}
}

// New returns a pending future.
func New[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Go runs fn on its own goroutine and settles the returned future with its
// result. A panic in fn rejects the future.
func Go[T any](ctx context.Context, fn func(context.Context) (T, error)) *Future[T] {
	f := New[T]()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				f.Reject(fmt.Errorf("panic: %v", r))
			}
		}()
		v, err := fn(ctx)
		if err != nil {
			f.Reject(err)
			return
		}
		f.Resolve(v)
	}()
	return f
}

// ResolvedWith returns a future already settled with v.
func ResolvedWith[T any](v T) *Future[T] {
	f := New[T]()
	f.Resolve(v)
	return f
}

// FailedWith returns a future already rejected with err.
func FailedWith[T any](err error) *Future[T] {
	f := New[T]()
	f.Reject(err)
	return f
}

// Resolve settles the future with v. Later calls are ignored.
func (f *Future[T]) Resolve(v T) {
	f.settle(Resolved, v, nil)
}

// Reject settles the future with err. Later calls are ignored.
func (f *Future[T]) Reject(err error) {
	var zero T
	f.settle(Failed, zero, err)
}

func (f *Future[T]) settle(s State, v T, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != Pending {
		return
	}
	f.state, f.value, f.err = s, v, err
	close(f.done)
}

// Poll reports the current state with the value or error once settled.
func (f *Future[T]) Poll() (State, T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state, f.value, f.err
}

// State returns the current state.
func (f *Future[T]) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Done is closed once the future settles.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the future settles or ctx ends. Only tools and tests
// wait; render loops Poll.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		_, v, err := f.Poll()
		return v, err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
