// Package future provides values that can be resolved or rejected from
// outside their creation site. They bridge request/response protocol
// exchanges where the response arrives on a different code path than the
// request was sent from.
package future

import (
	"context"
	"sync"
)

// Value is a one-shot container that is eventually resolved with a T or
// rejected with an error. The zero value is not usable; call New.
type Value[T any] struct {
	mu   sync.Mutex
	done chan struct{}
	val  T
	err  error
}

// New returns a pending Value.
func New[T any]() *Value[T] {
	return &Value[T]{done: make(chan struct{})}
}

// Resolve settles the value with v. If the value is already settled this is
// a no-op; the first settle wins.
func (v *Value[T]) Resolve(val T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	select {
	case <-v.done:
	default:
		v.val = val
		close(v.done)
	}
}

// Reject settles the value with an error. If the value is already settled
// this is a no-op.
func (v *Value[T]) Reject(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	select {
	case <-v.done:
	default:
		v.err = err
		close(v.done)
	}
}

// Done returns a channel that is closed when the value settles.
func (v *Value[T]) Done() <-chan struct{} { return v.done }

// Settled reports whether the value has been resolved or rejected.
func (v *Value[T]) Settled() bool {
	select {
	case <-v.done:
		return true
	default:
		return false
	}
}

// Get blocks until the value settles or ctx is done, and returns the
// resolved value or the rejection error.
func (v *Value[T]) Get(ctx context.Context) (T, error) {
	select {
	case <-v.done:
		v.mu.Lock()
		defer v.mu.Unlock()
		return v.val, v.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// MustGet returns the settled value and rejection error without blocking.
// It panics if the value is still pending; it is intended for callers that
// have already waited on Done.
func (v *Value[T]) MustGet() (T, error) {
	if !v.Settled() {
		panic("future: MustGet on pending value")
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.val, v.err
}
