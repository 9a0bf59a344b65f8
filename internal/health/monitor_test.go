package health

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

type fakePinger struct {
	name   string
	err    error
	delay  time.Duration
	called atomic.Int32
}

func (f *fakePinger) Name() string { return f.name }

func (f *fakePinger) Ping(ctx context.Context) error {
	f.called.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMonitor_AllHealthy(t *testing.T) {
	store := &fakePinger{name: "store"}
	cache := &fakePinger{name: "cache"}
	m := NewMonitor(discardLogger(), time.Second, store, cache)

	r := m.CheckReadiness(context.Background())

	if !r.Ready {
		t.Errorf("expected ready, failing=%v", r.Failing)
	}
	if len(r.Dependencies) != 2 {
		t.Errorf("expected 2 dependency statuses, got %d", len(r.Dependencies))
	}
	for _, st := range r.Dependencies {
		if st.Status != StatusHealthy {
			t.Errorf("%s: expected healthy, got %s", st.Name, st.Status)
		}
		if st.LastChecked.IsZero() {
			t.Errorf("%s: last_checked not set", st.Name)
		}
	}
}

func TestMonitor_StoreFailure(t *testing.T) {
	store := &fakePinger{name: "store", err: errors.New("connection refused")}
	cache := &fakePinger{name: "cache"}
	m := NewMonitor(discardLogger(), time.Second, store, cache)

	r := m.CheckReadiness(context.Background())

	if r.Ready {
		t.Error("expected not ready when store fails")
	}
	if len(r.Failing) != 1 || r.Failing[0] != "store" {
		t.Errorf("expected failing=[store], got %v", r.Failing)
	}
}

func TestMonitor_ProbeTimeoutCountsAsFailure(t *testing.T) {
	store := &fakePinger{name: "store", delay: time.Second}
	cache := &fakePinger{name: "cache"}
	m := NewMonitor(discardLogger(), 20*time.Millisecond, store, cache)

	start := time.Now()
	r := m.CheckReadiness(context.Background())
	elapsed := time.Since(start)

	if r.Ready {
		t.Error("expected not ready when store probe times out")
	}
	if len(r.Failing) != 1 || r.Failing[0] != "store" {
		t.Errorf("expected failing=[store], got %v", r.Failing)
	}
	if elapsed > 500*time.Millisecond {
		t.Errorf("probe should be bounded by its timeout, took %v", elapsed)
	}
}

func TestMonitor_DrainingShortCircuits(t *testing.T) {
	store := &fakePinger{name: "store"}
	cache := &fakePinger{name: "cache"}
	m := NewMonitor(discardLogger(), time.Second, store, cache)

	m.StartDraining()
	r := m.CheckReadiness(context.Background())

	if r.Ready {
		t.Error("expected not ready while draining, even with healthy dependencies")
	}
	if !r.Draining {
		t.Error("expected draining flag set")
	}
	if store.called.Load() != 0 || cache.called.Load() != 0 {
		t.Error("dependencies must not be probed while draining")
	}
}

func TestMonitor_StatusesUpdated(t *testing.T) {
	store := &fakePinger{name: "store", err: errors.New("down")}
	m := NewMonitor(discardLogger(), time.Second, store)

	before := m.Statuses()
	if len(before) != 1 || before[0].Status != StatusUnknown {
		t.Fatalf("expected initial unknown status, got %+v", before)
	}

	m.CheckReadiness(context.Background())

	after := m.Statuses()
	if after[0].Status != StatusUnhealthy || after[0].Error == "" {
		t.Errorf("expected recorded unhealthy status with error, got %+v", after[0])
	}
}
