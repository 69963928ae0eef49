package health

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/a3s-lab/dev/internal/config"
)

func TestProberWithNoSpecEmitsHealthyImmediately(t *testing.T) {
	p := New("svc", 0, nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	go p.Run(ctx)

	select {
	case e, ok := <-p.Events():
		if !ok || e.Verdict != Healthy {
			t.Fatalf("expected Healthy, got %+v ok=%v", e, ok)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}

	if _, ok := <-p.Events(); ok {
		t.Fatal("expected channel to be closed after the no-spec shortcut")
	}
}

func portOf(t *testing.T, addr string) int {
	t.Helper()
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split host port: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}
	return port
}

func TestProberHTTPHealthyAfterServerStartsResponding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	port := portOf(t, srv.Listener.Addr().String())
	spec := &config.HealthSpec{Kind: config.HealthHTTP, Path: "/health", Interval: 20 * time.Millisecond, Timeout: 50 * time.Millisecond, Retries: 3}
	p := New("web", port, spec)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go p.Run(ctx)

	select {
	case e := <-p.Events():
		if e.Verdict != Healthy {
			t.Fatalf("expected Healthy, got %+v", e)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for healthy verdict")
	}
}

func TestProberGivesUpAfterRetryBudget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	port := portOf(t, srv.Listener.Addr().String())
	spec := &config.HealthSpec{Kind: config.HealthHTTP, Path: "/health", Interval: 10 * time.Millisecond, Timeout: 50 * time.Millisecond, Retries: 3}
	p := New("web", port, spec)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go p.Run(ctx)

	var unhealthyCount int
	for {
		select {
		case e, ok := <-p.Events():
			if !ok {
				if unhealthyCount < 2 {
					t.Fatalf("expected at least 2 unhealthy events before gave_up, got %d", unhealthyCount)
				}
				return
			}
			switch e.Verdict {
			case Unhealthy:
				unhealthyCount++
			case GaveUp:
				// channel closes right after; loop will observe !ok next.
			case Healthy:
				t.Fatal("did not expect a healthy verdict from a failing server")
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for gave_up")
		}
	}
}

func TestProberTCPProbe(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	spec := &config.HealthSpec{Kind: config.HealthTCP, Interval: 20 * time.Millisecond, Timeout: 50 * time.Millisecond, Retries: 3}
	p := New("tcpsvc", port, spec)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go p.Run(ctx)

	select {
	case e := <-p.Events():
		if e.Verdict != Healthy {
			t.Fatalf("expected Healthy, got %+v", e)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for healthy verdict")
	}
}
