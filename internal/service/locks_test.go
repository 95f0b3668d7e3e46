package service

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestEventLocks_MutualExclusion(t *testing.T) {
	locks := newEventLocks()
	ctx := context.Background()

	var counter, max int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locks.Acquire(ctx, "event:a")
			if err != nil {
				t.Errorf("Acquire failed: %v", err)
				return
			}
			mu.Lock()
			counter++
			if counter > max {
				max = counter
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			counter--
			mu.Unlock()
			release()
		}()
	}
	wg.Wait()

	if max != 1 {
		t.Errorf("critical section entered by %d goroutines at once", max)
	}
}

func TestEventLocks_DifferentKeysDoNotContend(t *testing.T) {
	locks := newEventLocks()
	ctx := context.Background()

	releaseA, err := locks.Acquire(ctx, "event:a")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer releaseA()

	done := make(chan struct{})
	go func() {
		releaseB, err := locks.Acquire(ctx, "event:b")
		if err == nil {
			releaseB()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("independent key blocked behind a held lock")
	}
}

func TestEventLocks_AcquireCancelled(t *testing.T) {
	locks := newEventLocks()

	release, err := locks.Acquire(context.Background(), "event:a")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = locks.Acquire(ctx, "event:a")
	if err != context.DeadlineExceeded {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}

	release()

	// The lock is still usable after an abandoned wait
	release2, err := locks.Acquire(context.Background(), "event:a")
	if err != nil {
		t.Fatalf("Acquire after cancelled wait failed: %v", err)
	}
	release2()
}

func TestEventLocks_EntriesCleanedUp(t *testing.T) {
	locks := newEventLocks()
	ctx := context.Background()

	for _, key := range []string{"event:a", "event:b", "event:c"} {
		release, err := locks.Acquire(ctx, key)
		if err != nil {
			t.Fatalf("Acquire failed: %v", err)
		}
		release()
	}

	locks.mu.Lock()
	remaining := len(locks.entries)
	locks.mu.Unlock()

	if remaining != 0 {
		t.Errorf("expected empty lock table, %d entries remain", remaining)
	}
}
