package lifecycle

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// State is the process-wide lifecycle phase. Transitions are one-directional:
// running → draining → closing-dependencies → terminated.
type State int32

const (
	StateRunning State = iota
	StateDraining
	StateClosingDependencies
	StateTerminated
)

// String returns the state name for logs.
func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateClosingDependencies:
		return "closing-dependencies"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Default timeouts for the two shutdown phases.
const (
	DefaultGracePeriod  = 10 * time.Second
	DefaultCloseTimeout = 5 * time.Second
)

type drainer struct {
	name string
	fn   func(ctx context.Context) error
}

type dependency struct {
	name    string
	closeFn func(ctx context.Context) error
}

// Sequencer owns graceful shutdown. On the first Shutdown call it stops
// accepting new work, lets in-flight work finish within a grace period,
// force-closes whatever remains, then closes dependencies in registration
// order, each bounded by its own timeout. Subsequent Shutdown calls are
// no-ops, so a second termination signal can never double-close resources.
type Sequencer struct {
	state        atomic.Int32
	log          *slog.Logger
	grace        time.Duration
	closeTimeout time.Duration

	onDrain      []func()
	drainers     []drainer
	forceClosers []func()
	dependencies []dependency
}

// New returns a Sequencer. Non-positive durations fall back to the defaults.
func New(log *slog.Logger, grace, closeTimeout time.Duration) *Sequencer {
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	if closeTimeout <= 0 {
		closeTimeout = DefaultCloseTimeout
	}
	return &Sequencer{
		log:          log,
		grace:        grace,
		closeTimeout: closeTimeout,
	}
}

// OnDrain registers a hook run synchronously the moment draining begins,
// before any work is stopped. Used to flip readiness to not-ready so load
// balancers deregister the instance.
func (s *Sequencer) OnDrain(fn func()) {
	s.onDrain = append(s.onDrain, fn)
}

// AddDrainer registers a drain step (e.g. http.Server.Shutdown) run during
// the grace period. The context carries the grace deadline.
func (s *Sequencer) AddDrainer(name string, fn func(ctx context.Context) error) {
	s.drainers = append(s.drainers, drainer{name: name, fn: fn})
}

// AddForceCloser registers a step run after the grace period expires to tear
// down whatever did not close voluntarily (e.g. remaining websockets).
func (s *Sequencer) AddForceCloser(fn func()) {
	s.forceClosers = append(s.forceClosers, fn)
}

// AddDependency registers an external dependency closed during the final
// phase. Dependencies are closed in registration order, each bounded by the
// sequencer's close timeout; only the Lifecycle Sequencer may close them.
func (s *Sequencer) AddDependency(name string, closeFn func(ctx context.Context) error) {
	s.dependencies = append(s.dependencies, dependency{name: name, closeFn: closeFn})
}

// State returns the current lifecycle state.
func (s *Sequencer) State() State {
	return State(s.state.Load())
}

// Shutdown runs the full shutdown sequence and returns the process exit code:
// 0 when every step completed cleanly, 1 when any step failed. If shutdown is
// already in progress the call is ignored and returns immediately with 0.
func (s *Sequencer) Shutdown() int {
	if !s.state.CompareAndSwap(int32(StateRunning), int32(StateDraining)) {
		s.log.Info("shutdown already in progress, signal ignored",
			"state", s.State().String())
		return 0
	}

	failed := false

	s.log.Info("draining", "grace", s.grace.String())
	for _, fn := range s.onDrain {
		fn()
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.grace)
	for _, d := range s.drainers {
		if err := d.fn(ctx); err != nil {
			s.log.Error("drain step failed", "step", d.name, "error", err)
			failed = true
		}
	}
	cancel()

	s.state.Store(int32(StateClosingDependencies))
	s.log.Info("closing dependencies", "count", len(s.dependencies))

	for _, fn := range s.forceClosers {
		fn()
	}

	for _, dep := range s.dependencies {
		ctx, cancel := context.WithTimeout(context.Background(), s.closeTimeout)
		if err := closeWithTimeout(ctx, dep.closeFn); err != nil {
			// Force-closed by the timeout; log and keep going so one stuck
			// dependency never blocks the rest of the sequence.
			s.log.Error("dependency close failed", "dependency", dep.name, "error", err)
			failed = true
		} else {
			s.log.Info("dependency closed", "dependency", dep.name)
		}
		cancel()
	}

	s.state.Store(int32(StateTerminated))
	if failed {
		s.log.Error("shutdown finished with errors")
		return 1
	}
	s.log.Info("shutdown complete")
	return 0
}

// closeWithTimeout runs close, abandoning it if the context expires first. A
// close that ignores its context still cannot hang the sequence.
func closeWithTimeout(ctx context.Context, closeFn func(ctx context.Context) error) error {
	done := make(chan error, 1)
	go func() { done <- closeFn(ctx) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
