package graph

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/tastemixer/internal/models"
)

// DefaultFPS is the tick rate used when a Loop is created with a non-positive rate.
const DefaultFPS = 60

// Loop drives a [Simulation] from a single goroutine. All access goes through a mutex so that a tick never
// overlaps a reconcile or a read.
type Loop struct {
	mu     sync.Mutex
	sim    *Simulation
	fps    int
	logger *log.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewLoop wraps sim. fps ≤ 0 uses [DefaultFPS].
func NewLoop(sim *Simulation, fps int, logger *log.Logger) *Loop {
	if fps <= 0 {
		fps = DefaultFPS
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Loop{sim: sim, fps: fps, logger: logger}
}

// Start begins ticking until ctx is cancelled or Stop is called. Starting a running loop is a no-op.
func (l *Loop) Start(ctx context.Context) {
	l.mu.Lock()
	if l.done != nil {
		l.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	done := make(chan struct{})
	l.done = done
	l.mu.Unlock()

	interval := time.Second / time.Duration(l.fps)
	l.logger.Debug("graph loop started", "fps", l.fps)

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				l.logger.Debug("graph loop stopped")
				return
			case <-ticker.C:
				l.mu.Lock()
				l.sim.Tick()
				l.mu.Unlock()
			}
		}
	}()
}

// Stop halts the ticker and waits for the goroutine to exit.
func (l *Loop) Stop() {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel, l.done = nil, nil
	l.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Serve runs the ticker until ctx is cancelled, so a supervisor can own the loop.
func (l *Loop) Serve(ctx context.Context) error {
	l.Start(ctx)
	<-ctx.Done()
	l.Stop()
	return ctx.Err()
}

func (l *Loop) String() string { return "graph-loop" }

// Running reports whether the ticker goroutine is active.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.done != nil
}

func (l *Loop) Reconcile(favorites []models.Track) Delta {
	l.mu.Lock()
	defer l.mu.Unlock()
	d := l.sim.Reconcile(favorites)
	if d.Changed() {
		l.logger.Debug("graph reconciled", "added", len(d.Added), "removed", len(d.Removed), "edges", len(l.sim.edges))
	}
	return d
}

// Step advances the simulation n frames synchronously.
func (l *Loop) Step(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for range n {
		l.sim.Tick()
	}
}

func (l *Loop) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sim.Snapshot()
}

// NodeAt returns a copy of the node under p.
func (l *Loop) NodeAt(p Vec) (Node, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n, ok := l.sim.NodeAt(p)
	if !ok {
		return Node{}, false
	}
	return *n, true
}

func (l *Loop) Resize(width, height float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sim.Resize(width, height)
}
