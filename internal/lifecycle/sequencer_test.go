package lifecycle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSequencer_OrderAndExitCode(t *testing.T) {
	seq := New(discardLogger(), 100*time.Millisecond, 100*time.Millisecond)

	var order []string
	seq.OnDrain(func() { order = append(order, "readiness") })
	seq.AddDrainer("server", func(ctx context.Context) error {
		order = append(order, "drain")
		return nil
	})
	seq.AddForceCloser(func() { order = append(order, "force") })
	seq.AddDependency("cache", func(ctx context.Context) error {
		order = append(order, "cache")
		return nil
	})
	seq.AddDependency("store", func(ctx context.Context) error {
		order = append(order, "store")
		return nil
	})

	code := seq.Shutdown()

	if code != 0 {
		t.Errorf("expected exit code 0, got %d", code)
	}
	want := []string{"readiness", "drain", "force", "cache", "store"}
	if len(order) != len(want) {
		t.Fatalf("expected steps %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("step %d: expected %s, got %s (full order %v)", i, want[i], order[i], order)
		}
	}
	if seq.State() != StateTerminated {
		t.Errorf("expected terminated, got %s", seq.State())
	}
}

func TestSequencer_SecondSignalIgnored(t *testing.T) {
	seq := New(discardLogger(), 50*time.Millisecond, 50*time.Millisecond)

	var closes atomic.Int32
	seq.AddDependency("cache", func(ctx context.Context) error {
		closes.Add(1)
		return nil
	})

	seq.Shutdown()
	seq.Shutdown()

	if got := closes.Load(); got != 1 {
		t.Errorf("duplicate shutdown must not re-close dependencies, got %d closes", got)
	}
}

func TestSequencer_FailedCloseDoesNotBlockSequence(t *testing.T) {
	seq := New(discardLogger(), 50*time.Millisecond, 50*time.Millisecond)

	var storeClosed atomic.Bool
	seq.AddDependency("cache", func(ctx context.Context) error {
		return errors.New("close failed")
	})
	seq.AddDependency("store", func(ctx context.Context) error {
		storeClosed.Store(true)
		return nil
	})

	code := seq.Shutdown()

	if code != 1 {
		t.Errorf("expected non-zero exit code after a failed step, got %d", code)
	}
	if !storeClosed.Load() {
		t.Error("a failing dependency must not block later closes")
	}
}

func TestSequencer_StuckCloseIsForceAbandoned(t *testing.T) {
	seq := New(discardLogger(), 10*time.Millisecond, 30*time.Millisecond)

	seq.AddDependency("cache", func(ctx context.Context) error {
		// Ignores its context entirely.
		time.Sleep(5 * time.Second)
		return nil
	})

	start := time.Now()
	code := seq.Shutdown()
	elapsed := time.Since(start)

	if code != 1 {
		t.Errorf("expected non-zero exit code for a timed-out close, got %d", code)
	}
	if elapsed > time.Second {
		t.Errorf("stuck dependency must not hang the sequence, took %v", elapsed)
	}
}

func TestSequencer_DrainErrorReported(t *testing.T) {
	seq := New(discardLogger(), 20*time.Millisecond, 20*time.Millisecond)

	seq.AddDrainer("server", func(ctx context.Context) error {
		return context.DeadlineExceeded
	})

	if code := seq.Shutdown(); code != 1 {
		t.Errorf("expected non-zero exit code after drain failure, got %d", code)
	}
}

func TestSequencer_StateProgression(t *testing.T) {
	seq := New(discardLogger(), 20*time.Millisecond, 20*time.Millisecond)

	if seq.State() != StateRunning {
		t.Fatalf("expected running before shutdown, got %s", seq.State())
	}

	var during State
	seq.AddDependency("cache", func(ctx context.Context) error {
		during = seq.State()
		return nil
	})
	seq.Shutdown()

	if during != StateClosingDependencies {
		t.Errorf("dependencies must close in the closing-dependencies state, got %s", during)
	}
	if seq.State() != StateTerminated {
		t.Errorf("expected terminated, got %s", seq.State())
	}
}
