package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"
)

// TestResilienceTreeIntegration tests the complete tree behavior with
// multiple services across both layers, simulating the real process.
func TestResilienceTreeIntegration(t *testing.T) {
	t.Run("full tree with services in both layers", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

		tree, err := NewResilienceTree(logger, TreeConfig{
			FailureThreshold: 5,
			FailureBackoff:   50 * time.Millisecond,
			ShutdownTimeout:  500 * time.Millisecond,
		})
		if err != nil {
			t.Fatalf("failed to create tree: %v", err)
		}

		loopSvc := NewMockService("supervisor-loop")
		busSvc := NewMockService("log-bus")
		proxySvc := NewMockService("proxy-listener")
		apiSvc := NewMockService("control-api")

		tree.AddCoreService(loopSvc)
		tree.AddCoreService(busSvc)
		tree.AddEdgeService(proxySvc)
		tree.AddEdgeService(apiSvc)

		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()

		errCh := tree.ServeBackground(ctx)

		var allStarted bool
		for i := 0; i < 10; i++ {
			time.Sleep(20 * time.Millisecond)
			if loopSvc.StartCount() >= 1 && busSvc.StartCount() >= 1 &&
				proxySvc.StartCount() >= 1 && apiSvc.StartCount() >= 1 {
				allStarted = true
				break
			}
		}

		if !allStarted {
			if loopSvc.StartCount() < 1 {
				t.Error("supervisor loop was not started")
			}
			if busSvc.StartCount() < 1 {
				t.Error("log bus was not started")
			}
			if proxySvc.StartCount() < 1 {
				t.Error("proxy listener was not started")
			}
			if apiSvc.StartCount() < 1 {
				t.Error("control API was not started")
			}
		}

		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				t.Errorf("unexpected error: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Error("tree did not shut down")
		}
	})

	t.Run("cascade failure isolation", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

		tree, _ := NewResilienceTree(logger, TreeConfig{
			FailureThreshold: 10,
			FailureBackoff:   10 * time.Millisecond,
			ShutdownTimeout:  500 * time.Millisecond,
		})

		failingSvc := NewMockService("failing-edge")
		failingSvc.SetFailCount(3) // fails 3 times then succeeds

		stableCore := NewMockService("stable-core")
		stableEdge := NewMockService("stable-edge")

		tree.AddCoreService(stableCore)
		tree.AddEdgeService(failingSvc)
		tree.AddEdgeService(stableEdge)

		ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
		defer cancel()

		errCh := tree.ServeBackground(ctx)

		time.Sleep(150 * time.Millisecond)

		if failingSvc.StartCount() < 3 {
			t.Errorf("failing service should have been restarted at least 3 times, got %d", failingSvc.StartCount())
		}
		if stableCore.StartCount() < 1 {
			t.Error("stable core service should have started")
		}
		if stableEdge.StartCount() < 1 {
			t.Error("stable edge service should have started")
		}

		select {
		case <-errCh:
		case <-time.After(2 * time.Second):
			t.Error("tree did not shut down")
		}
	})
}

// TestResilienceTreeConcurrency tests concurrent operations on the tree.
func TestResilienceTreeConcurrency(t *testing.T) {
	t.Run("concurrent service additions are safe", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

		tree, _ := NewResilienceTree(logger, TreeConfig{
			ShutdownTimeout: 500 * time.Millisecond,
		})

		done := make(chan struct{})
		for i := 0; i < 10; i++ {
			go func(idx int) {
				svc := NewMockService("concurrent-svc")
				if idx%2 == 0 {
					tree.AddCoreService(svc)
				} else {
					tree.AddEdgeService(svc)
				}
			}(i)
		}

		time.Sleep(100 * time.Millisecond)
		close(done)

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		errCh := tree.ServeBackground(ctx)

		select {
		case <-errCh:
		case <-time.After(2 * time.Second):
			t.Error("tree did not shut down")
		}
	})
}

// TestResilienceTreeEdgeCases tests edge cases and error conditions.
func TestResilienceTreeEdgeCases(t *testing.T) {
	t.Run("empty tree starts and stops gracefully", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

		tree, _ := NewResilienceTree(logger, TreeConfig{
			ShutdownTimeout: 500 * time.Millisecond,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		errCh := tree.ServeBackground(ctx)

		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, context.DeadlineExceeded) {
				t.Errorf("unexpected error: %v", err)
			}
		case <-time.After(500 * time.Millisecond):
			t.Error("tree did not shut down")
		}
	})

	t.Run("root accessor returns non-nil", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

		tree, _ := NewResilienceTree(logger, TreeConfig{})

		if tree.Root() == nil {
			t.Error("Root() should return non-nil supervisor")
		}
	})
}
