package cache

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type listing struct {
	Server string
	IDs    []string
}

func TestGetCachesAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	var calls atomic.Int32
	fetch := func(context.Context) (listing, error) {
		calls.Add(1)
		return listing{Server: "ioos", IDs: []string{"a", "b"}}, nil
	}

	got, err := Get(ctx, New(dir, time.Hour, nil), "ioos/search", fetch)
	if err != nil || len(got.IDs) != 2 {
		t.Fatalf("first Get = %+v, %v", got, err)
	}
	got, err = Get(ctx, New(dir, time.Hour, nil), "ioos/search", fetch)
	if err != nil || got.Server != "ioos" {
		t.Fatalf("second Get = %+v, %v", got, err)
	}
	if calls.Load() != 1 {
		t.Errorf("fetch called %d times, want 1", calls.Load())
	}
}

func TestGetExpires(t *testing.T) {
	c := New(t.TempDir(), time.Minute, nil)
	now := time.Date(2021, 4, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	n := 0
	fetch := func(context.Context) (int, error) { n++; return n, nil }

	v, _ := Get(context.Background(), c, "k", fetch)
	now = now.Add(30 * time.Second)
	v2, _ := Get(context.Background(), c, "k", fetch)
	if v != 1 || v2 != 1 {
		t.Errorf("within ttl: %d, %d", v, v2)
	}
	now = now.Add(2 * time.Minute)
	v3, _ := Get(context.Background(), c, "k", fetch)
	if v3 != 2 {
		t.Errorf("after ttl got %d, want refetch", v3)
	}
}

func TestGetErrorNotCached(t *testing.T) {
	c := New(t.TempDir(), 0, nil)
	boom := errors.New("boom")
	if _, err := Get(context.Background(), c, "k", func(context.Context) (string, error) { return "", boom }); !errors.Is(err, boom) {
		t.Fatalf("error = %v", err)
	}
	v, err := Get(context.Background(), c, "k", func(context.Context) (string, error) { return "ok", nil })
	if err != nil || v != "ok" {
		t.Errorf("after failure: %q, %v", v, err)
	}
}

func TestGetDeduplicatesConcurrentMisses(t *testing.T) {
	c := New(t.TempDir(), 0, nil)
	release := make(chan struct{})
	var calls atomic.Int32
	fetch := func(context.Context) ([]string, error) {
		calls.Add(1)
		<-release
		return []string{"x"}, nil
	}

	var wg sync.WaitGroup
	for range 5 {
		wg.Go(func() {
			if v, err := Get(context.Background(), c, "same", fetch); err != nil || len(v) != 1 {
				t.Errorf("Get = %v, %v", v, err)
			}
		})
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	if n := calls.Load(); n < 1 || n > 5 {
		t.Errorf("fetch calls = %d", n)
	}
}

func TestNilCachePassesThrough(t *testing.T) {
	var c *Cache
	v, err := Get(context.Background(), c, "k", func(context.Context) (int, error) { return 7, nil })
	if err != nil || v != 7 {
		t.Errorf("Get = %d, %v", v, err)
	}
	if n, err := c.Clear(); n != 0 || err != nil {
		t.Errorf("Clear = %d, %v", n, err)
	}
}

func TestClear(t *testing.T) {
	dir := t.TempDir()
	c := New(dir, 0, nil)
	ctx := context.Background()
	for _, k := range []string{"a", "b"} {
		if _, err := Get(ctx, c, k, func(context.Context) (string, error) { return k, nil }); err != nil {
			t.Fatal(err)
		}
	}
	n, err := c.Clear()
	if err != nil || n != 2 {
		t.Fatalf("Clear = %d, %v", n, err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("%d entries left after Clear", len(entries))
	}
	if _, ok := c.load("a"); ok {
		t.Error("a should be gone")
	}
}

func TestGetSurvivesStarterCancel(t *testing.T) {
	c := New(t.TempDir(), 0, nil)
	started := make(chan struct{})
	release := make(chan struct{})
	fetch := func(ctx context.Context) (string, error) {
		close(started)
		<-release
		return "listing", ctx.Err()
	}

	starterCtx, cancel := context.WithCancel(context.Background())
	starterErr := make(chan error, 1)
	go func() {
		_, err := Get(starterCtx, c, "k", fetch)
		starterErr <- err
	}()
	<-started

	joined := make(chan string, 1)
	go func() {
		v, err := Get(context.Background(), c, "k", func(context.Context) (string, error) {
			return "", errors.New("second fetch should join the first")
		})
		if err != nil {
			t.Errorf("joined Get: %v", err)
		}
		joined <- v
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	if err := <-starterErr; !errors.Is(err, context.Canceled) {
		t.Errorf("starter error = %v, want canceled", err)
	}
	close(release)
	select {
	case v := <-joined:
		if v != "listing" {
			t.Errorf("joined value = %q", v)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("joined caller never returned")
	}
}
