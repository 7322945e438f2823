package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/fedihealth/internal/domain"
	"github.com/hamed0406/fedihealth/internal/probe"
	"github.com/hamed0406/fedihealth/internal/repo/memory"
)

// --- fakes ---

type countingRunner struct {
	mu      sync.Mutex
	n       int
	reports []*domain.Report
	failed  bool
}

func (r *countingRunner) Run(ctx context.Context, inst domain.Instance) *domain.Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.n++
	rep := domain.NewReport("run-"+time.Now().Format(time.RFC3339Nano), inst, time.Now().UTC())
	if r.failed {
		rep.Failed = true
		rep.Set(probe.NameReachability, probe.Result{Status: probe.StatusError, Message: probe.MsgTimeout})
	} else {
		rep.Set(probe.NameReachability, probe.Result{Status: probe.StatusOK, Latency: 600 * time.Millisecond})
		rep.Set(probe.NameAPI, probe.Result{Status: probe.StatusOK})
	}
	rep.FinishedAt = time.Now().UTC()
	r.reports = append(r.reports, rep)
	return rep
}

func (r *countingRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}

// --- tests ---

func TestMonitor_ImmediatePassThenTicks(t *testing.T) {
	runner := &countingRunner{}
	store := memory.New(10)
	inst := domain.MustInstance("example.org")

	var mu sync.Mutex
	var passes []domain.RunRecord
	m := NewMonitor(zap.NewNop(), runner, inst, 5*time.Millisecond)
	m.Runs = store
	m.OnPass = func(rec domain.RunRecord) {
		mu.Lock()
		defer mu.Unlock()
		passes = append(passes, rec)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for runner.count() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run should stop cleanly, got %v", err)
	}
	if runner.count() < 3 {
		t.Fatalf("want at least 3 passes, got %d", runner.count())
	}

	// Every pass got its own report.
	seen := map[*domain.Report]bool{}
	for _, rep := range runner.reports {
		if seen[rep] {
			t.Fatal("report reused across passes")
		}
		seen[rep] = true
	}

	hist, _ := store.History(context.Background(), inst, 0)
	mu.Lock()
	defer mu.Unlock()
	if len(hist) != len(passes) || len(passes) == 0 {
		t.Fatalf("store and OnPass disagree: %d vs %d", len(hist), len(passes))
	}
	if passes[0].Score != 35 || passes[0].Label != "Problems detected" {
		t.Fatalf("unexpected first pass %+v", passes[0])
	}
}

func TestMonitor_RunOnceFeedsAlerter(t *testing.T) {
	runner := &countingRunner{failed: true}
	nt := &memNotifier{}
	al := NewAlerter(nil, memory.New(1), nt, AlerterConfig{Threshold: 40})

	m := NewMonitor(nil, runner, domain.MustInstance("down.example"), time.Minute)
	m.Alerter = al

	rec, ok := m.RunOnce(context.Background())
	if !ok {
		t.Fatal("pass should complete")
	}
	if !rec.Failed || rec.Score != 0 || rec.Label != "" {
		t.Fatalf("failed run should carry no score: %+v", rec)
	}
	if len(nt.msgs) != 1 {
		t.Fatalf("want a down alert, got %d", len(nt.msgs))
	}
}

func TestMonitor_CancelledPassIsDiscarded(t *testing.T) {
	runner := &countingRunner{}
	called := false
	m := NewMonitor(nil, runner, domain.MustInstance("example.org"), time.Minute)
	m.OnPass = func(domain.RunRecord) { called = true }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, ok := m.RunOnce(ctx); ok {
		t.Fatal("cancelled pass should be discarded")
	}
	if called {
		t.Fatal("OnPass must not see a cancelled pass")
	}
}

func TestMonitor_SetInterval(t *testing.T) {
	runner := &countingRunner{}
	m := NewMonitor(nil, runner, domain.MustInstance("example.org"), time.Hour)
	if m.Interval() != time.Hour {
		t.Fatalf("want 1h, got %v", m.Interval())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.Run(ctx) }()

	// Only the immediate pass happens with a 1h interval.
	deadline := time.Now().Add(2 * time.Second)
	for runner.count() < 1 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	m.SetInterval(5 * time.Millisecond)
	m.SetInterval(-1) // ignored
	if m.Interval() != 5*time.Millisecond {
		t.Fatalf("want 5ms, got %v", m.Interval())
	}

	deadline = time.Now().Add(2 * time.Second)
	for runner.count() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if runner.count() < 3 {
		t.Fatalf("new interval not picked up, %d passes", runner.count())
	}
}

func TestNewMonitor_DefaultInterval(t *testing.T) {
	m := NewMonitor(nil, &countingRunner{}, domain.MustInstance("example.org"), 0)
	if m.Interval() != DefaultInterval {
		t.Fatalf("want %v, got %v", DefaultInterval, m.Interval())
	}
}

type slowRunner struct {
	countingRunner
	delay time.Duration

	mu     sync.Mutex
	starts []time.Time
	ends   []time.Time
}

func (r *slowRunner) Run(ctx context.Context, inst domain.Instance) *domain.Report {
	r.mu.Lock()
	r.starts = append(r.starts, time.Now())
	r.mu.Unlock()

	time.Sleep(r.delay)
	rep := r.countingRunner.Run(ctx, inst)

	r.mu.Lock()
	r.ends = append(r.ends, time.Now())
	r.mu.Unlock()
	return rep
}

func TestMonitor_IntervalCountsFromPassEnd(t *testing.T) {
	const interval = 40 * time.Millisecond
	runner := &slowRunner{delay: 60 * time.Millisecond}
	m := NewMonitor(zap.NewNop(), runner, domain.MustInstance("example.org"), interval)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	deadline := time.Now().Add(3 * time.Second)
	for runner.count() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	runner.mu.Lock()
	defer runner.mu.Unlock()
	if len(runner.starts) < 3 {
		t.Fatalf("want at least 3 passes, got %d", len(runner.starts))
	}
	for i := 1; i < len(runner.starts) && i < len(runner.ends); i++ {
		if gap := runner.starts[i].Sub(runner.ends[i-1]); gap < interval-5*time.Millisecond {
			t.Fatalf("pass %d started %v after the previous ended, want at least %v", i, gap, interval)
		}
	}
}
