package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"chessmate/internal/obslog"
)

// ErrPoolDisposed is returned by Acquire after DisposeAll, and to
// waiters that were still queued when the pool went down.
var ErrPoolDisposed = errors.New("engine: pool disposed")

// AdapterFactory builds one adapter. The pool initializes what the
// factory returns.
type AdapterFactory func() (Adapter, error)

// PoolStats is a point-in-time snapshot for logging and health checks.
type PoolStats struct {
	Size    int
	Idle    int
	Waiting int
}

// Pool holds a fixed set of ready adapters. Acquire hands out an idle
// adapter or parks the caller; Release hands the adapter straight to
// the longest-waiting caller, so waiters are served strictly in arrival
// order.
type Pool struct {
	mu       sync.Mutex
	idle     []Adapter
	all      []Adapter
	waiters  []chan Adapter
	disposed bool
}

// NewPool creates and initializes size adapters up front. If any
// adapter fails to initialize, the ones already built are disposed and
// the error is returned.
func NewPool(ctx context.Context, size int, factory AdapterFactory) (*Pool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("engine: pool size must be positive, got %d", size)
	}

	p := &Pool{
		idle: make([]Adapter, 0, size),
		all:  make([]Adapter, 0, size),
	}
	for i := 0; i < size; i++ {
		a, err := factory()
		if err == nil {
			err = a.Initialize(ctx)
			if err != nil {
				_ = a.Dispose()
			}
		}
		if err != nil {
			for _, built := range p.all {
				_ = built.Dispose()
			}
			return nil, fmt.Errorf("engine: initialize adapter %d/%d: %w", i+1, size, err)
		}
		p.all = append(p.all, a)
		p.idle = append(p.idle, a)
	}
	obslog.L().Info("engine pool ready", zap.Int("size", size))
	return p, nil
}

// Acquire returns an idle adapter, blocking in FIFO order when none is
// available. Cancellation of ctx abandons the wait.
func (p *Pool) Acquire(ctx context.Context) (Adapter, error) {
	p.mu.Lock()
	if p.disposed {
		p.mu.Unlock()
		return nil, ErrPoolDisposed
	}
	if n := len(p.idle); n > 0 {
		a := p.idle[0]
		p.idle = p.idle[1:]
		p.mu.Unlock()
		return a, nil
	}
	w := make(chan Adapter, 1)
	p.waiters = append(p.waiters, w)
	p.mu.Unlock()

	select {
	case a := <-w:
		if a == nil {
			return nil, ErrPoolDisposed
		}
		return a, nil
	case <-ctx.Done():
		p.mu.Lock()
		removed := false
		for i, queued := range p.waiters {
			if queued == w {
				p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
				removed = true
				break
			}
		}
		p.mu.Unlock()
		if !removed {
			// A release already picked this waiter; put the adapter back.
			if a := <-w; a != nil {
				p.Release(a)
			}
		}
		return nil, ctx.Err()
	}
}

// Release returns an adapter to the pool. If callers are waiting, the
// adapter goes to the one that has waited longest.
func (p *Pool) Release(a Adapter) {
	if a == nil {
		return
	}
	p.mu.Lock()
	if p.disposed {
		p.mu.Unlock()
		_ = a.Dispose()
		return
	}
	if len(p.waiters) > 0 {
		w := p.waiters[0]
		p.waiters = p.waiters[1:]
		p.mu.Unlock()
		w <- a
		return
	}
	p.idle = append(p.idle, a)
	p.mu.Unlock()
}

// DisposeAll shuts down every adapter and fails all queued waiters.
// Subsequent calls are no-ops.
func (p *Pool) DisposeAll() error {
	p.mu.Lock()
	if p.disposed {
		p.mu.Unlock()
		return nil
	}
	p.disposed = true
	adapters := p.all
	waiters := p.waiters
	p.all = nil
	p.idle = nil
	p.waiters = nil
	p.mu.Unlock()

	for _, w := range waiters {
		w <- nil
	}
	var firstErr error
	for _, a := range adapters {
		if err := a.Dispose(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	obslog.L().Info("engine pool disposed", zap.Int("adapters", len(adapters)))
	return firstErr
}

// Stats reports current pool occupancy.
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PoolStats{
		Size:    len(p.all),
		Idle:    len(p.idle),
		Waiting: len(p.waiters),
	}
}
