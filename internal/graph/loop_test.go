package graph

import (
	"context"
	"testing"
	"time"
)

func TestLoop(t *testing.T) {
	t.Run("step advances synchronously", func(t *testing.T) {
		l := NewLoop(NewSimulation(800, 500, seeded()), 0, nil)
		l.Reconcile(tracks("a", "b"))
		l.Step(10)
		if got := l.Snapshot().Time; !approx(got, 0.16) {
			t.Errorf("expected time 0.16, got %f", got)
		}
	})

	t.Run("start and stop", func(t *testing.T) {
		l := NewLoop(NewSimulation(800, 500, seeded()), 200, nil)
		l.Reconcile(tracks("a"))

		l.Start(context.Background())
		if !l.Running() {
			t.Fatal("expected loop to be running")
		}
		l.Start(context.Background())

		deadline := time.Now().Add(2 * time.Second)
		for l.Snapshot().Time == 0 && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		l.Stop()

		if l.Running() {
			t.Error("expected loop to be stopped")
		}
		if l.Snapshot().Time == 0 {
			t.Error("expected at least one tick")
		}

		frozen := l.Snapshot().Time
		time.Sleep(20 * time.Millisecond)
		if got := l.Snapshot().Time; got != frozen {
			t.Errorf("expected no ticks after stop, got %f then %f", frozen, got)
		}
		l.Stop()
	})

	t.Run("context cancellation stops ticking", func(t *testing.T) {
		l := NewLoop(NewSimulation(800, 500, seeded()), 200, nil)
		ctx, cancel := context.WithCancel(context.Background())
		l.Start(ctx)
		cancel()
		l.Stop()
		if l.Running() {
			t.Error("expected loop to be stopped")
		}
	})

	t.Run("serve runs until cancelled", func(t *testing.T) {
		l := NewLoop(NewSimulation(800, 500, seeded()), 200, nil)
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- l.Serve(ctx) }()

		deadline := time.Now().Add(2 * time.Second)
		for !l.Running() && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
		cancel()

		select {
		case err := <-done:
			if err != context.Canceled {
				t.Errorf("expected context.Canceled, got %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Serve did not return after cancel")
		}
		if l.Running() {
			t.Error("expected loop to be stopped")
		}
	})

	t.Run("node lookup returns a copy", func(t *testing.T) {
		l := NewLoop(NewSimulation(800, 500, seeded()), 0, nil)
		l.Reconcile(tracks("a"))
		pos := l.Snapshot().Nodes[0].Pos

		n, ok := l.NodeAt(pos)
		if !ok || n.ID != "a" {
			t.Fatalf("expected node a, got %v %v", n.ID, ok)
		}
		n.Pos.X += 1000
		if l.Snapshot().Nodes[0].Pos != pos {
			t.Error("expected internal state to be unaffected")
		}
	})
}
