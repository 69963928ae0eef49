package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherEmitsOneChangedSignalPerBurst(t *testing.T) {
	dir := t.TempDir()

	w := New("api", []string{dir}, nil, 50*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// give fsnotify a moment to register the root watch.
	time.Sleep(50 * time.Millisecond)

	for i := 0; i < 10; i++ {
		path := filepath.Join(dir, "file"+string(rune('a'+i))+".txt")
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write file: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case <-w.Changed():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for changed signal")
	}

	select {
	case <-w.Changed():
		t.Fatal("expected exactly one changed signal for the burst")
	case <-time.After(200 * time.Millisecond):
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestWatcherIgnoresPathPrefix(t *testing.T) {
	dir := t.TempDir()
	ignored := filepath.Join(dir, "node_modules")
	if err := os.MkdirAll(ignored, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	w := New("api", []string{dir}, []string{ignored}, 50*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go w.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(ignored, "x.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	select {
	case <-w.Changed():
		t.Fatal("did not expect a changed signal for an ignored path")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherIgnoresGlobPattern(t *testing.T) {
	dir := t.TempDir()

	w := New("api", []string{dir}, []string{"**/*.log"}, 50*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go w.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(dir, "debug.log"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	select {
	case <-w.Changed():
		t.Fatal("did not expect a changed signal for a glob-ignored file")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherStopsOnContextCancel(t *testing.T) {
	dir := t.TempDir()
	w := New("api", []string{dir}, nil, 50*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean return on cancel, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
