package cache

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemorySetGet(t *testing.T) {
	c := NewMemory("t")
	ctx := context.Background()

	if err := c.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, err := c.Get(ctx, "k")
	if err != nil || v != "v" {
		t.Fatalf("get = %q, %v", v, err)
	}

	if _, err := c.Get(ctx, "missing"); !IsNotFound(err) {
		t.Fatalf("want not found, got %v", err)
	}
}

func TestMemoryGetDelIsSingleShot(t *testing.T) {
	c := NewMemory("t")
	ctx := context.Background()

	if err := c.Set(ctx, "state", "payload", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	v, err := c.GetDel(ctx, "state")
	if err != nil || v != "payload" {
		t.Fatalf("getdel = %q, %v", v, err)
	}
	if _, err := c.GetDel(ctx, "state"); !IsNotFound(err) {
		t.Fatalf("second getdel must miss, got %v", err)
	}
}

func TestMemoryGetDelConcurrentWinnersAreExclusive(t *testing.T) {
	c := NewMemory("t")
	ctx := context.Background()

	if err := c.Set(ctx, "state", "payload", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	const n = 16
	var wg sync.WaitGroup
	wins := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if v, err := c.GetDel(ctx, "state"); err == nil {
				wins <- v
			}
		}()
	}
	wg.Wait()
	close(wins)

	got := 0
	for range wins {
		got++
	}
	if got != 1 {
		t.Fatalf("want exactly one winner, got %d", got)
	}
}

func TestMemoryExpiry(t *testing.T) {
	c := NewMemory("t")
	ctx := context.Background()

	if err := c.Set(ctx, "k", "v", 10*time.Millisecond); err != nil {
		t.Fatalf("set: %v", err)
	}
	time.Sleep(30 * time.Millisecond)

	if _, err := c.Get(ctx, "k"); !IsNotFound(err) {
		t.Fatalf("want not found after expiry, got %v", err)
	}
	if _, err := c.GetDel(ctx, "k"); !IsNotFound(err) {
		t.Fatalf("getdel on expired must miss, got %v", err)
	}
}

func TestMemoryDelete(t *testing.T) {
	c := NewMemory("t")
	ctx := context.Background()

	if err := c.Set(ctx, "k", "v", 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := c.Get(ctx, "k"); !IsNotFound(err) {
		t.Fatalf("want not found, got %v", err)
	}
	// Deleting an absent key is a no-op.
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}
