// Package callgroup deduplicates concurrent calls by key.
//
// While a call for a key is in flight, later callers for the same key wait
// for it and share its value and error. Once it returns the key is
// forgotten, so the next caller triggers a fresh execution. Nothing is
// cached beyond the lifetime of one call.
package callgroup

import (
	"context"
	"sync"
)

// Result is the outcome of one deduplicated call.
type Result[V any] struct {
	Val    V
	Err    error
	Shared bool // true when the caller joined a call started by someone else
}

// Group deduplicates concurrent calls by key. The zero value is ready to use.
type Group[K comparable, V any] struct {
	mu    sync.Mutex
	calls map[K]*call[V]
}

type call[V any] struct {
	done chan struct{}
	val  V
	err  error
}

// DoChan runs fn unless a call for key is already in flight, in which case
// the returned channel receives that call's result. The channel receives
// exactly one value and is never closed.
func (g *Group[K, V]) DoChan(key K, fn func() (V, error)) <-chan Result[V] {
	g.mu.Lock()
	if g.calls == nil {
		g.calls = make(map[K]*call[V])
	}
	c, shared := g.calls[key]
	if !shared {
		c = &call[V]{done: make(chan struct{})}
		g.calls[key] = c
	}
	g.mu.Unlock()

	if !shared {
		go func() {
			c.val, c.err = fn()
			g.mu.Lock()
			delete(g.calls, key)
			g.mu.Unlock()
			close(c.done)
		}()
	}

	ch := make(chan Result[V], 1)
	go func() {
		<-c.done
		ch <- Result[V]{Val: c.val, Err: c.err, Shared: shared}
	}()
	return ch
}

// Do is the blocking form of DoChan. If ctx ends first, Do returns
// ctx.Err(); the underlying call keeps running for the other waiters.
func (g *Group[K, V]) Do(ctx context.Context, key K, fn func() (V, error)) (V, error) {
	select {
	case r := <-g.DoChan(key, fn):
		return r.Val, r.Err
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}
