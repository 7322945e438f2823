package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/fedihealth/internal/domain"
	"github.com/hamed0406/fedihealth/internal/health"
	"github.com/hamed0406/fedihealth/internal/probe"
	"github.com/hamed0406/fedihealth/internal/repo"
)

// DefaultInterval is the pause between monitor passes.
const DefaultInterval = 300 * time.Second

// Monitor checks one instance repeatedly. Every pass builds a fresh report
// and hands its summary to the run store, the alerter and OnPass, in that
// order.
type Monitor struct {
	Logger   *zap.Logger
	Runner   health.Runner
	Instance domain.Instance
	Runs     repo.RunStore
	Alerter  *Alerter
	// OnPass is called after every completed pass.
	OnPass func(domain.RunRecord)

	mu       sync.Mutex
	interval time.Duration
	reset    chan struct{}
}

func NewMonitor(
	logger *zap.Logger,
	runner health.Runner,
	inst domain.Instance,
	interval time.Duration,
) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Monitor{
		Logger:   logger,
		Runner:   runner,
		Instance: inst,
		interval: interval,
		reset:    make(chan struct{}, 1),
	}
}

// Interval returns the current pause between passes.
func (m *Monitor) Interval() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.interval
}

// SetInterval changes the pause between passes. A running loop picks it up
// without waiting for the current tick.
func (m *Monitor) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	m.mu.Lock()
	m.interval = d
	m.mu.Unlock()
	select {
	case m.reset <- struct{}{}:
	default:
	}
}

// Run starts the loop. It does an immediate pass, then waits the interval
// after each pass ends before starting the next one. Stops when ctx is
// cancelled; that is a clean stop and returns nil.
func (m *Monitor) Run(ctx context.Context) error {
	// immediate pass
	m.RunOnce(ctx)

	t := time.NewTicker(m.Interval())
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			m.Logger.Info("monitor_stopped", zap.String("instance", m.Instance.Host()))
			return nil
		case <-m.reset:
			d := m.Interval()
			t.Reset(d)
			m.Logger.Info("monitor_interval_changed", zap.Duration("interval", d))
		case <-t.C:
			m.RunOnce(ctx)
			t.Reset(m.Interval())
		}
	}
}

// RunOnce performs a single pass. A pass interrupted by ctx is discarded
// and reported as not ok.
func (m *Monitor) RunOnce(ctx context.Context) (domain.RunRecord, bool) {
	rep := m.Runner.Run(ctx, m.Instance)
	if ctx.Err() != nil {
		return domain.RunRecord{}, false
	}
	rec := Summarize(rep)

	m.Logger.Info("monitor_tick",
		zap.String("run_id", rec.RunID),
		zap.String("instance", rec.Instance.Host()),
		zap.Bool("failed", rec.Failed),
		zap.Int("score", rec.Score),
	)

	if m.Runs != nil {
		if err := m.Runs.Append(ctx, &rec); err != nil {
			m.Logger.Warn("monitor_append_error", zap.String("run_id", rec.RunID), zap.Error(err))
		}
	}
	if m.Alerter != nil {
		if err := m.Alerter.Observe(ctx, rec); err != nil {
			m.Logger.Warn("monitor_alert_error", zap.String("run_id", rec.RunID), zap.Error(err))
		}
	}
	if m.OnPass != nil {
		m.OnPass(rec)
	}
	return rec, true
}

// Summarize reduces a report to its stored record.
func Summarize(rep *domain.Report) domain.RunRecord {
	rec := domain.RunRecord{
		RunID:     rep.RunID,
		Instance:  rep.Instance,
		Failed:    rep.Failed,
		CheckedAt: rep.FinishedAt,
		Report:    rep,
	}
	if gate, ok := rep.Result(probe.NameReachability); ok && gate.Status != probe.StatusError {
		rec.LatencyMS = gate.LatencyMS()
	}
	if !rep.Failed {
		rec.Score = health.Score(rep)
		rec.Label = health.Label(rec.Score)
	}
	return rec
}
