//go:build !windows

package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/xpathnode/internal/cleanup"
	"github.com/smazurov/xpathnode/internal/events"
	"github.com/smazurov/xpathnode/internal/locator"
	"github.com/smazurov/xpathnode/internal/process"
)

func TestEmergencyShutdownExitsOnce(t *testing.T) {
	bus := events.New()
	stopped := make(chan events.CaptureStoppedEvent, 1)
	bus.Subscribe(func(ev events.CaptureStoppedEvent) {
		select {
		case stopped <- ev:
		default:
		}
	})

	f := newFixture(t, sleeper, false, Deps{Bus: bus}, Options{EmergencyStaleDrivers: true})
	if _, err := f.manager.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.manager.EmergencyShutdown()
		}()
	}
	wg.Wait()

	if got := f.exits.Load(); got != 1 {
		t.Fatalf("exit called %d times, want 1", got)
	}
	if got := f.exitCode.Load(); got != 0 {
		t.Errorf("exit code = %d, want 0", got)
	}
	if req := f.sweeper.last(t); !req.IncludeStaleDrivers {
		t.Error("emergency sweep should include stale drivers when configured")
	}
	if f.manager.Status(context.Background()).Active {
		t.Error("session still active after emergency shutdown")
	}

	select {
	case ev := <-stopped:
		if ev.Reason != ReasonEmergency {
			t.Errorf("stop reason = %q, want %q", ev.Reason, ReasonEmergency)
		}
	case <-time.After(time.Second):
		t.Error("no CaptureStoppedEvent published")
	}

	if _, err := f.manager.Start(context.Background()); !errors.Is(err, ErrTerminating) {
		t.Errorf("Start() after emergency error = %v, want ErrTerminating", err)
	}
	if _, err := f.manager.Stop(context.Background()); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("Stop() after emergency error = %v, want ErrNoActiveSession", err)
	}
}

func TestEmergencyShutdownWhenIdle(t *testing.T) {
	f := newFixture(t, sleeper, false, Deps{}, Options{})
	f.manager.EmergencyShutdown()

	if f.exits.Load() != 1 || f.exitCode.Load() != 0 {
		t.Errorf("exits = %d code = %d, want one exit with 0", f.exits.Load(), f.exitCode.Load())
	}
	if len(f.sweeper.requests) != 0 {
		t.Error("idle emergency shutdown should not sweep")
	}
}

// blockingSweeper stalls until released, simulating a wedged normal stop.
type blockingSweeper struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingSweeper) Sweep(ctx context.Context, _ cleanup.Request) cleanup.Result {
	b.once.Do(func() { close(b.entered) })
	select {
	case <-b.release:
	case <-ctx.Done():
	}
	return cleanup.Result{}
}

func TestEmergencyShutdownDoesNotWaitOnStalledStop(t *testing.T) {
	f := newFixture(t, sleeper, false, Deps{}, Options{EmergencyGrace: 100 * time.Millisecond})
	blocker := &blockingSweeper{entered: make(chan struct{}), release: make(chan struct{})}
	f.manager.deps.Sweeper = blocker
	defer close(blocker.release)

	if _, err := f.manager.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	go f.manager.Stop(context.Background())
	select {
	case <-blocker.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("stop never reached the sweep")
	}

	done := make(chan struct{})
	go func() {
		f.manager.EmergencyShutdown()
		close(done)
	}()

	// The emergency sweep blocks too, but only until its context expires
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("emergency shutdown blocked on stalled stop")
	}
	if f.exits.Load() != 1 {
		t.Errorf("exit called %d times, want 1", f.exits.Load())
	}
}

// gatedLauncher holds Launch until released, simulating a slow spawn.
type gatedLauncher struct {
	inner   Launcher
	entered chan struct{}
	release chan struct{}
	handle  chan *process.Handle
}

func (g *gatedLauncher) Launch(ctx context.Context, art locator.Artifacts) (*process.Handle, error) {
	close(g.entered)
	<-g.release
	h, err := g.inner.Launch(ctx, art)
	if h != nil {
		g.handle <- h
	}
	return h, err
}

func TestStartDuringEmergencyKillsItsProcess(t *testing.T) {
	f := newFixture(t, sleeper, false, Deps{}, Options{EmergencyGrace: 50 * time.Millisecond})
	gate := &gatedLauncher{
		inner:   f.launcher,
		entered: make(chan struct{}),
		release: make(chan struct{}),
		handle:  make(chan *process.Handle, 1),
	}
	f.manager.deps.Launcher = gate

	startErr := make(chan error, 1)
	go func() {
		_, err := f.manager.Start(context.Background())
		startErr <- err
	}()
	select {
	case <-gate.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("start never reached launch")
	}

	f.manager.EmergencyShutdown()
	if f.exits.Load() != 1 {
		t.Fatalf("exit called %d times, want 1", f.exits.Load())
	}

	// The spawn completes after the emergency snapshot
	close(gate.release)
	select {
	case err := <-startErr:
		if !errors.Is(err, ErrTerminating) {
			t.Errorf("Start() error = %v, want ErrTerminating", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("start did not return")
	}

	h := <-gate.handle
	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("capture process %d left running", h.PID())
	}
	if f.manager.Status(context.Background()).Active {
		t.Error("session became active after emergency shutdown")
	}
}
