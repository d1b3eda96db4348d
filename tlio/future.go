// SPDX-License-Identifier: GPL-3.0-or-later

package tlio

import (
	"context"
	"sync"
)

// Future is a single-resolution async result, the Go shape of the
// future<T> return values spec.md §4.C describes for Reader methods.
// A Reader resolves a Future from a goroutine it spawns internally, the
// same fire-and-forget dispatch shape media_loader.go used for staged
// background loads; Future adds the synchronization that pattern lacked.
type Future[T any] struct {
	done chan struct{}
	once sync.Once
	val  T
	err  error
}

// NewFuture returns an unresolved Future.
func NewFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolve sets the result. Only the first call takes effect; later calls
// are silently ignored, matching the generation-counter discipline
// Readers use to suppress stale completions after cancel().
func (f *Future[T]) Resolve(val T, err error) {
	f.once.Do(func() {
		f.val, f.err = val, err
		close(f.done)
	})
}

// Wait blocks until the Future resolves or ctx is done, whichever first.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done reports whether the Future has resolved, without blocking.
func (f *Future[T]) Done() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}
