// Package syncx provides a FIFO exclusive lock used to serialize access
// to a single stateful engine process.
package syncx

import "sync"

// Mutex is an exclusive lock that grants ownership in strict arrival
// order. The standard sync.Mutex makes no fairness promise; engine
// adapters need one so that queued analysis requests are answered in
// the order they were issued.
//
// There is no timeout or cancellation: callers bound their work with
// upstream deadlines. Unlocking a mutex that is not held is caller
// error and panics, same as sync.Mutex.
type Mutex struct {
	mu      sync.Mutex
	locked  bool
	waiters []chan struct{}
}

// Lock blocks until the lock is held. Waiters are woken in FIFO order.
func (m *Mutex) Lock() {
	m.mu.Lock()
	if !m.locked {
		m.locked = true
		m.mu.Unlock()
		return
	}
	ready := make(chan struct{})
	m.waiters = append(m.waiters, ready)
	m.mu.Unlock()
	<-ready
}

// Unlock releases the lock, handing it directly to the longest-waiting
// caller if one exists.
func (m *Mutex) Unlock() {
	m.mu.Lock()
	if !m.locked {
		m.mu.Unlock()
		panic("syncx: unlock of unlocked Mutex")
	}
	if len(m.waiters) > 0 {
		next := m.waiters[0]
		m.waiters = m.waiters[1:]
		m.mu.Unlock()
		close(next)
		return
	}
	m.locked = false
	m.mu.Unlock()
}

// TryLock acquires the lock only if it is free and no one is waiting.
func (m *Mutex) TryLock() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locked {
		return false
	}
	m.locked = true
	return true
}
