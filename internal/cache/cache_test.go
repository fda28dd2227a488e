package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestGetOrLoad_hitWithinTTL(t *testing.T) {
	s := NewStore()
	calls := 0
	loader := func(ctx context.Context) (any, error) {
		calls++
		return "v1", nil
	}
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		v, err := s.GetOrLoad(ctx, "categories", time.Minute, loader)
		if err != nil {
			t.Fatal(err)
		}
		if v != "v1" {
			t.Fatalf("got %v", v)
		}
	}
	if calls != 1 {
		t.Errorf("loader calls = %d, want 1", calls)
	}
}

func TestGetOrLoad_expiredRefetches(t *testing.T) {
	s := NewStore()
	clock := time.Now()
	s.now = func() time.Time { return clock }
	calls := 0
	loader := func(ctx context.Context) (any, error) {
		calls++
		return calls, nil
	}
	ctx := context.Background()
	if v, _ := s.GetOrLoad(ctx, "k", time.Minute, loader); v != 1 {
		t.Fatalf("first load: %v", v)
	}
	clock = clock.Add(61 * time.Second)
	if v, _ := s.GetOrLoad(ctx, "k", time.Minute, loader); v != 2 {
		t.Fatalf("stale entry should refetch, got %v", v)
	}
	if calls != 2 {
		t.Errorf("loader calls = %d", calls)
	}
}

func TestInvalidate_forcesReload(t *testing.T) {
	s := NewStore()
	calls := 0
	loader := func(ctx context.Context) (any, error) {
		calls++
		return calls, nil
	}
	ctx := context.Background()
	s.GetOrLoad(ctx, "k", time.Hour, loader)
	s.Invalidate("k")
	if v, _ := s.GetOrLoad(ctx, "k", time.Hour, loader); v != 2 {
		t.Fatalf("invalidate should force loader, got %v", v)
	}
}

func TestGetOrLoad_loaderFailureNotStored(t *testing.T) {
	s := NewStore()
	boom := errors.New("upstream down")
	calls := 0
	ctx := context.Background()
	_, err := s.GetOrLoad(ctx, "k", time.Hour, func(ctx context.Context) (any, error) {
		calls++
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	// Failure must not be cached: the next call hits the loader again.
	v, err := s.GetOrLoad(ctx, "k", time.Hour, func(ctx context.Context) (any, error) {
		calls++
		return "ok", nil
	})
	if err != nil || v != "ok" {
		t.Fatalf("v=%v err=%v", v, err)
	}
	if calls != 2 {
		t.Errorf("loader calls = %d", calls)
	}
}

func TestGetOrLoad_singleFlight(t *testing.T) {
	s := NewStore()
	var calls int32
	started := make(chan struct{})
	release := make(chan struct{})
	loader := func(ctx context.Context) (any, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(started)
		}
		<-release
		return "shared", nil
	}
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := s.GetOrLoad(ctx, "k", time.Hour, loader)
			if err != nil || v != "shared" {
				t.Errorf("v=%v err=%v", v, err)
			}
		}()
	}
	<-started
	// Give the remaining goroutines time to queue behind the in-flight loader.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("loader calls = %d, want 1 (single-flight)", n)
	}
}

func TestGetOrLoad_independentKeys(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	s.GetOrLoad(ctx, "a", time.Hour, func(ctx context.Context) (any, error) { return 1, nil })
	s.GetOrLoad(ctx, "b", time.Hour, func(ctx context.Context) (any, error) { return 2, nil })
	s.Invalidate("a")
	v, _ := s.GetOrLoad(ctx, "b", time.Hour, func(ctx context.Context) (any, error) { return 3, nil })
	if v != 2 {
		t.Errorf("invalidating a must not touch b, got %v", v)
	}
}
