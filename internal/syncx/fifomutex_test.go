package syncx

import (
	"sync"
	"testing"
	"time"
)

func TestMutexExcludes(t *testing.T) {
	var m Mutex
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Lock()
			counter++
			m.Unlock()
		}()
	}
	wg.Wait()
	if counter != 50 {
		t.Fatalf("expected 50 increments, got %d", counter)
	}
}

func TestMutexFIFOOrder(t *testing.T) {
	var m Mutex
	m.Lock()

	const waiters = 8
	order := make(chan int, waiters)
	started := make(chan struct{}, waiters)
	var wg sync.WaitGroup
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			started <- struct{}{}
			m.Lock()
			order <- id
			m.Unlock()
		}(i)
		// Let goroutine i enqueue before i+1 starts.
		<-started
		time.Sleep(5 * time.Millisecond)
	}

	m.Unlock()
	wg.Wait()
	close(order)

	want := 0
	for got := range order {
		if got != want {
			t.Fatalf("waiter woke out of order: got %d, want %d", got, want)
		}
		want++
	}
	if want != waiters {
		t.Fatalf("expected %d waiters to run, got %d", waiters, want)
	}
}

func TestMutexTryLock(t *testing.T) {
	var m Mutex
	if !m.TryLock() {
		t.Fatal("TryLock on free mutex should succeed")
	}
	if m.TryLock() {
		t.Fatal("TryLock on held mutex should fail")
	}
	m.Unlock()
	if !m.TryLock() {
		t.Fatal("TryLock after Unlock should succeed")
	}
	m.Unlock()
}

func TestUnlockUnheldPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on unlocking an unheld mutex")
		}
	}()
	var m Mutex
	m.Unlock()
}
