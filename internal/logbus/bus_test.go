package logbus

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestPublishIsOrderedPerSubscriber(t *testing.T) {
	b := New(10)
	sub := b.Subscribe("web")
	defer sub.Close()

	for i := 0; i < 5; i++ {
		b.Publish("web", "line")
	}

	var last uint64
	for i := 0; i < 5; i++ {
		select {
		case e := <-sub.C():
			if e.ID <= last {
				t.Fatalf("ids not strictly increasing: prev=%d got=%d", last, e.ID)
			}
			last = e.ID
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for entry")
		}
	}
}

func TestSubscribeFiltersByService(t *testing.T) {
	b := New(10)
	sub := b.Subscribe("api")
	defer sub.Close()

	b.Publish("db", "ignored")
	b.Publish("api", "kept")

	select {
	case e := <-sub.C():
		if e.Service != "api" || e.Line != "kept" {
			t.Fatalf("unexpected entry: %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for filtered entry")
	}

	select {
	case e := <-sub.C():
		t.Fatalf("did not expect a second entry, got %+v", e)
	default:
	}
}

func TestWildcardSubscriptionSeesEveryService(t *testing.T) {
	b := New(10)
	sub := b.Subscribe("")
	defer sub.Close()

	b.Publish("db", "a")
	b.Publish("api", "b")

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case e := <-sub.C():
			seen[e.Service] = true
		case <-time.After(time.Second):
			t.Fatal("timed out")
		}
	}
	if !seen["db"] || !seen["api"] {
		t.Fatalf("expected both services, got %+v", seen)
	}
}

func TestHistoryReturnsRingOldestFirst(t *testing.T) {
	b := New(3)
	for i := 0; i < 5; i++ {
		b.Publish("db", string(rune('a'+i)))
	}
	hist := b.History("db")
	if len(hist) != 3 {
		t.Fatalf("expected ring bounded to 3, got %d", len(hist))
	}
	if hist[0].Line != "c" || hist[2].Line != "e" {
		t.Fatalf("expected oldest-first eviction, got %+v", hist)
	}
}

func TestSlowSubscriberIsDroppedNotBlocking(t *testing.T) {
	b := New(10)
	sub := b.Subscribe("db")

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBacklog+50; i++ {
			b.Publish("db", "line")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}

	if !sub.Lagged() {
		t.Fatal("expected the slow subscriber to be marked lagged")
	}
	sub.Close()
}

func TestServeClosesSubscriptionsOnShutdown(t *testing.T) {
	b := New(10)
	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = b.Serve(ctx)
	}()

	sub := b.Subscribe("db")
	cancel()
	wg.Wait()

	select {
	case _, ok := <-sub.C():
		if ok {
			t.Fatal("expected channel to be closed, got a value")
		}
	case <-time.After(time.Second):
		t.Fatal("subscription channel was not closed after shutdown")
	}
}

func TestConcurrentPublishProducesUniqueIDs(t *testing.T) {
	b := New(1000)
	sub := b.Subscribe("")
	defer sub.Close()

	const n = 100
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Publish("svc", "x")
		}()
	}
	wg.Wait()

	seen := make(map[uint64]bool)
	for i := 0; i < n; i++ {
		select {
		case e := <-sub.C():
			if seen[e.ID] {
				t.Fatalf("duplicate id %d", e.ID)
			}
			seen[e.ID] = true
		case <-time.After(time.Second):
			t.Fatal("timed out collecting concurrent publishes")
		}
	}
}
