package health

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Dependency status values.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusUnknown   = "unknown"
)

// DefaultProbeTimeout bounds each dependency probe.
const DefaultProbeTimeout = 3 * time.Second

// DependencyStatus is the last-known state of one probed dependency.
type DependencyStatus struct {
	Name        string    `json:"name"`
	Status      string    `json:"status"`
	LatencyMS   int64     `json:"latency_ms"`
	Error       string    `json:"error,omitempty"`
	LastChecked time.Time `json:"last_checked"`
}

// Readiness is the aggregated verdict of one readiness check.
type Readiness struct {
	Ready        bool               `json:"ready"`
	Draining     bool               `json:"draining,omitempty"`
	Failing      []string           `json:"failing,omitempty"`
	Dependencies []DependencyStatus `json:"dependencies,omitempty"`
}

// Monitor probes registered dependencies on demand and keeps their last-known
// status. Once StartDraining has been called every check reports not ready
// without touching the dependencies, so load balancers stop routing traffic
// immediately and a slow probe can never race shutdown.
type Monitor struct {
	mu       sync.RWMutex
	statuses map[string]DependencyStatus
	pingers  []Pinger
	timeout  time.Duration
	draining atomic.Bool
	log      *slog.Logger
}

// NewMonitor returns a Monitor over the given dependencies. A timeout <= 0
// falls back to DefaultProbeTimeout.
func NewMonitor(log *slog.Logger, timeout time.Duration, pingers ...Pinger) *Monitor {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	m := &Monitor{
		statuses: make(map[string]DependencyStatus, len(pingers)),
		pingers:  pingers,
		timeout:  timeout,
		log:      log,
	}
	for _, p := range pingers {
		m.statuses[p.Name()] = DependencyStatus{Name: p.Name(), Status: StatusUnknown}
	}
	return m
}

// StartDraining flips the monitor into its terminal draining state.
func (m *Monitor) StartDraining() {
	m.draining.Store(true)
}

// CheckReadiness probes every dependency concurrently, each bounded by the
// monitor's timeout, and returns the aggregated verdict: ready only if all
// dependencies are healthy. Probe failures are logged and reported, never
// returned as errors; a readiness check must not be able to crash the
// process.
func (m *Monitor) CheckReadiness(ctx context.Context) Readiness {
	if m.draining.Load() {
		return Readiness{Ready: false, Draining: true}
	}

	results := make([]DependencyStatus, len(m.pingers))
	var wg sync.WaitGroup
	for i, p := range m.pingers {
		wg.Add(1)
		go func(i int, p Pinger) {
			defer wg.Done()
			results[i] = m.probe(ctx, p)
		}(i, p)
	}
	wg.Wait()

	m.mu.Lock()
	for _, st := range results {
		m.statuses[st.Name] = st
	}
	m.mu.Unlock()

	ready := true
	var failing []string
	for _, st := range results {
		if st.Status != StatusHealthy {
			ready = false
			failing = append(failing, st.Name)
		}
	}
	sort.Strings(failing)

	return Readiness{Ready: ready, Failing: failing, Dependencies: results}
}

func (m *Monitor) probe(ctx context.Context, p Pinger) DependencyStatus {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	start := time.Now()
	err := p.Ping(ctx)
	latency := time.Since(start)

	st := DependencyStatus{
		Name:        p.Name(),
		Status:      StatusHealthy,
		LatencyMS:   latency.Milliseconds(),
		LastChecked: time.Now().UTC(),
	}
	if err != nil {
		st.Status = StatusUnhealthy
		st.Error = err.Error()
		m.log.Warn("dependency probe failed",
			"dependency", p.Name(),
			"latency_ms", latency.Milliseconds(),
			"error", err)
	}
	return st
}

// Statuses returns a copy of the last-known status of every dependency.
func (m *Monitor) Statuses() []DependencyStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]DependencyStatus, 0, len(m.statuses))
	for _, st := range m.statuses {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
