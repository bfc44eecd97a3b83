package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestKeyLocks_ForgetsReleasedKeys(t *testing.T) {
	l := newKeyLocks()
	ctx := context.Background()
	for i := 0; i < 1000; i++ {
		key := fmt.Sprintf("stock:%d", i)
		if err := l.acquire(ctx, key); err != nil {
			t.Fatalf("Failed to acquire %s: %v", key, err)
		}
		l.release(key)
	}
	if n := l.size(); n != 0 {
		t.Errorf("expected no lock entries after release, got %d", n)
	}
}

func TestKeyLocks_ContendedKey(t *testing.T) {
	l := newKeyLocks()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		holders int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.acquire(ctx, "stock:1:1"); err != nil {
				t.Errorf("Failed to acquire: %v", err)
				return
			}
			mu.Lock()
			holders++
			if holders > 1 {
				t.Errorf("expected exclusive hold, got %d holders", holders)
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			holders--
			mu.Unlock()
			l.release("stock:1:1")
		}()
	}
	wg.Wait()
	if n := l.size(); n != 0 {
		t.Errorf("expected no lock entries after release, got %d", n)
	}
}

func TestKeyLocks_CancelledWaiterDropsReference(t *testing.T) {
	l := newKeyLocks()
	if err := l.acquire(context.Background(), "k"); err != nil {
		t.Fatalf("Failed to acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := l.acquire(ctx, "k"); err == nil {
		t.Fatal("expected acquire on a held key to time out")
	}

	l.release("k")
	if n := l.size(); n != 0 {
		t.Errorf("expected no lock entries after release, got %d", n)
	}
	if err := l.acquire(context.Background(), "k"); err != nil {
		t.Fatalf("Failed to reacquire: %v", err)
	}
	l.release("k")
}
