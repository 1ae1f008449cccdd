package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"chessmate/internal/domain"
	"chessmate/internal/engine/openingbook"
)

type fakeProvider struct {
	name    string
	move    string
	created int32
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) NewAdapter() (Adapter, error) {
	atomic.AddInt32(&p.created, 1)
	return &fakeAdapter{move: p.move}, nil
}

func newTestOrchestrator(t *testing.T, style PlayStyle) (*Orchestrator, *fakeProvider) {
	t.Helper()
	o := NewOrchestrator(OrchestratorConfig{PoolSize: 2, MoveTime: 50 * time.Millisecond, Style: style})
	p := &fakeProvider{name: "stockfish", move: "e7e5"}
	o.RegisterProvider(p)
	t.Cleanup(func() { _ = o.Dispose() })
	return o, p
}

func TestGetEngineMoveSearch(t *testing.T) {
	o, p := newTestOrchestrator(t, nil)

	mv, err := o.GetEngineMove(context.Background(), domain.StartFEN, 3, []string{"e2e4"})
	if err != nil {
		t.Fatalf("GetEngineMove: %v", err)
	}
	if mv.UCI != "e7e5" || mv.Book {
		t.Fatalf("unexpected move: %+v", mv)
	}
	if mv.Depth != depthByDifficulty[3] {
		t.Fatalf("difficulty 3 should search depth %d, got %d", depthByDifficulty[3], mv.Depth)
	}
	if p.created != 2 {
		t.Fatalf("expected eager pool of 2 adapters, got %d", p.created)
	}
}

func TestGetEngineMoveRejectsBadDifficulty(t *testing.T) {
	o, _ := newTestOrchestrator(t, nil)
	for _, d := range []int{0, 6, -1} {
		if _, err := o.GetEngineMove(context.Background(), domain.StartFEN, d, nil); err == nil {
			t.Fatalf("difficulty %d must be rejected", d)
		}
	}
}

func TestBookStyleShortCircuitsPool(t *testing.T) {
	style, err := NewStyle("book", openingbook.Default())
	if err != nil {
		t.Fatalf("NewStyle: %v", err)
	}
	o, p := newTestOrchestrator(t, style)

	mv, err := o.GetEngineMove(context.Background(), domain.StartFEN, 5, []string{"e2e4"})
	if err != nil {
		t.Fatalf("GetEngineMove: %v", err)
	}
	if !mv.Book || mv.Depth != 0 {
		t.Fatalf("expected book move at depth 0, got %+v", mv)
	}
	if p.created != 0 {
		t.Fatalf("book hit must not build the pool, created=%d", p.created)
	}
}

func TestConcurrentFirstRequestsShareOneInit(t *testing.T) {
	o, p := newTestOrchestrator(t, nil)

	const callers = 8
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := o.GetEngineMove(context.Background(), domain.StartFEN, 2, []string{"e2e4"}); err != nil {
				t.Errorf("GetEngineMove: %v", err)
			}
		}()
	}
	wg.Wait()

	if p.created != 2 {
		t.Fatalf("duplicate pool built under concurrency: %d adapters created", p.created)
	}
}

func TestSwitchProvider(t *testing.T) {
	o, p1 := newTestOrchestrator(t, nil)
	p2 := &fakeProvider{name: "other", move: "d7d5"}
	o.RegisterProvider(p2)

	if _, err := o.GetEngineMove(context.Background(), domain.StartFEN, 1, []string{"e2e4"}); err != nil {
		t.Fatalf("GetEngineMove: %v", err)
	}
	if err := o.SwitchProvider("other"); err != nil {
		t.Fatalf("SwitchProvider: %v", err)
	}

	mv, err := o.GetEngineMove(context.Background(), domain.StartFEN, 1, []string{"e2e4"})
	if err != nil {
		t.Fatalf("GetEngineMove after switch: %v", err)
	}
	if mv.UCI != "d7d5" {
		t.Fatalf("expected move from new provider, got %s", mv.UCI)
	}
	if p1.created != 2 || p2.created != 2 {
		t.Fatalf("pool churn mismatch: p1=%d p2=%d", p1.created, p2.created)
	}

	if err := o.SwitchProvider("missing"); !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("expected ErrUnknownProvider, got %v", err)
	}
}

// gatedProvider blocks adapter construction until released, so a test
// can hold a pool build in flight.
type gatedProvider struct {
	name string
	move string

	started chan struct{}
	release chan struct{}
	once    sync.Once

	mu       sync.Mutex
	adapters []*fakeAdapter
}

func (p *gatedProvider) Name() string { return p.name }

func (p *gatedProvider) NewAdapter() (Adapter, error) {
	p.once.Do(func() { close(p.started) })
	<-p.release
	a := &fakeAdapter{move: p.move}
	p.mu.Lock()
	p.adapters = append(p.adapters, a)
	p.mu.Unlock()
	return a, nil
}

// A provider switch that lands while the first request is still building
// the old provider's pool must win: the stale pool is torn down instead
// of installed, and the blocked request is served by the new provider.
func TestSwitchProviderDuringPoolBuild(t *testing.T) {
	slow := &gatedProvider{
		name:    "stockfish",
		move:    "a7a5",
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	fast := &fakeProvider{name: "other", move: "d7d5"}
	o := NewOrchestrator(OrchestratorConfig{PoolSize: 2, MoveTime: 50 * time.Millisecond})
	o.RegisterProvider(slow)
	o.RegisterProvider(fast)
	t.Cleanup(func() { _ = o.Dispose() })

	type outcome struct {
		mv  Move
		err error
	}
	resCh := make(chan outcome, 1)
	go func() {
		mv, err := o.GetEngineMove(context.Background(), domain.StartFEN, 1, []string{"e2e4"})
		resCh <- outcome{mv: mv, err: err}
	}()

	<-slow.started
	if err := o.SwitchProvider("other"); err != nil {
		t.Fatalf("SwitchProvider: %v", err)
	}
	close(slow.release)

	res := <-resCh
	if res.err != nil {
		t.Fatalf("GetEngineMove: %v", res.err)
	}
	if res.mv.UCI != "d7d5" {
		t.Fatalf("move served from superseded provider: %s", res.mv.UCI)
	}
	if fast.created != 2 {
		t.Fatalf("new provider should back the pool, created=%d", fast.created)
	}

	slow.mu.Lock()
	defer slow.mu.Unlock()
	if len(slow.adapters) == 0 {
		t.Fatal("superseded build never completed")
	}
	for _, a := range slow.adapters {
		if atomic.LoadInt32(&a.disposed) == 0 {
			t.Fatal("superseded pool's adapters must be disposed")
		}
	}
}

func TestDisposeIdempotent(t *testing.T) {
	o, _ := newTestOrchestrator(t, nil)
	if _, err := o.GetEngineMove(context.Background(), domain.StartFEN, 1, []string{"e2e4"}); err != nil {
		t.Fatalf("GetEngineMove: %v", err)
	}
	if err := o.Dispose(); err != nil {
		t.Fatalf("Dispose: %v", err)
	}
	if err := o.Dispose(); err != nil {
		t.Fatalf("second Dispose: %v", err)
	}
	if _, err := o.GetEngineMove(context.Background(), domain.StartFEN, 1, []string{"e2e4"}); !errors.Is(err, ErrPoolDisposed) {
		t.Fatalf("expected ErrPoolDisposed after Dispose, got %v", err)
	}
}

func TestAggressiveStyleDeepens(t *testing.T) {
	style, err := NewStyle("aggressive", nil)
	if err != nil {
		t.Fatalf("NewStyle: %v", err)
	}
	cfg := style.ModifyConfig(SearchConfig{Depth: 9, MoveTime: time.Second}, 3)
	if cfg.Depth != 11 {
		t.Fatalf("expected depth 11, got %d", cfg.Depth)
	}
	if cfg.MoveTime != 1500*time.Millisecond {
		t.Fatalf("expected 1.5s move time, got %s", cfg.MoveTime)
	}
}

func TestNewStyleUnknown(t *testing.T) {
	if _, err := NewStyle("bogus", nil); err == nil {
		t.Fatal("expected error for unknown style")
	}
}
