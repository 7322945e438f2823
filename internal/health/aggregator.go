package health

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hamed0406/fedihealth/internal/domain"
	"github.com/hamed0406/fedihealth/internal/probe"
)

// Observer is told about a run as it progresses. Callbacks for one run are
// never concurrent and CheckFinished always fires in suite order.
type Observer interface {
	RunStarted(inst domain.Instance)
	CheckFinished(inst domain.Instance, name string, res probe.Result)
	RunFinished(r *domain.Report)
}

// Diagnoser explains why a host failed the gate.
type Diagnoser interface {
	Check(ctx context.Context, host string) probe.DNSStatus
}

// Runner produces one report per call.
type Runner interface {
	Run(ctx context.Context, inst domain.Instance) *domain.Report
}

// Aggregator runs a probe suite against an instance and collects the
// results into a report.
type Aggregator struct {
	Logger    *zap.Logger
	Suite     probe.Suite
	Parallel  bool
	Observer  Observer
	Diagnoser Diagnoser

	now   func() time.Time
	newID func() string
	mu    sync.RWMutex
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithParallel runs the checks after the gate concurrently.
func WithParallel(on bool) Option {
	return func(a *Aggregator) { a.Parallel = on }
}

// WithObserver reports progress to o.
func WithObserver(o Observer) Option {
	return func(a *Aggregator) { a.Observer = o }
}

// WithDiagnoser attaches a DNS diagnosis to failed runs.
func WithDiagnoser(d Diagnoser) Option {
	return func(a *Aggregator) { a.Diagnoser = d }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

func NewAggregator(logger *zap.Logger, suite probe.Suite, opts ...Option) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Aggregator{
		Logger: logger,
		Suite:  suite,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SetSuite replaces the suite used by subsequent runs. Runs in flight keep
// the suite they started with.
func (a *Aggregator) SetSuite(s probe.Suite) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Suite = s
}

func (a *Aggregator) suite() probe.Suite {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.Suite
}

// Run checks inst once. The gate runs first; if it errors the run is marked
// failed and nothing else runs. Otherwise every other check runs exactly
// once and the report holds all of them.
func (a *Aggregator) Run(ctx context.Context, inst domain.Instance) *domain.Report {
	rep := domain.NewReport(a.newID(), inst, a.now().UTC())
	log := a.Logger.With(
		zap.String("run_id", rep.RunID),
		zap.String("instance", inst.Host()),
	)
	log.Info("run_started", zap.Bool("parallel", a.Parallel))
	if a.Observer != nil {
		a.Observer.RunStarted(inst)
	}

	base := inst.BaseURL()
	suite := a.suite()

	gate := suite.Gate.Checker.Check(ctx, base)
	a.record(log, rep, suite.Gate.Name, gate)

	if gate.Status == probe.StatusError {
		rep.Failed = true
		log.Warn("gate_failed", zap.String("reason", gate.Message))
		if a.Diagnoser != nil {
			st := a.Diagnoser.Check(ctx, inst.Host())
			rep.DNS = &st
		}
		return a.finish(log, rep)
	}

	if a.Parallel {
		results := make([]probe.Result, len(suite.Checks))
		var g errgroup.Group
		for i, e := range suite.Checks {
			i, e := i, e
			g.Go(func() error {
				results[i] = e.Checker.Check(ctx, base)
				return nil
			})
		}
		_ = g.Wait()
		for i, e := range suite.Checks {
			a.record(log, rep, e.Name, results[i])
		}
	} else {
		for _, e := range suite.Checks {
			a.record(log, rep, e.Name, e.Checker.Check(ctx, base))
		}
	}

	return a.finish(log, rep)
}

func (a *Aggregator) record(log *zap.Logger, rep *domain.Report, name string, res probe.Result) {
	rep.Set(name, res)
	log.Debug("check_finished",
		zap.String("check", name),
		zap.String("status", string(res.Status)),
		zap.Int("http_status", res.StatusCode),
		zap.Int64("latency_ms", res.LatencyMS()),
		zap.String("message", res.Message),
	)
	if a.Observer != nil {
		a.Observer.CheckFinished(rep.Instance, name, res)
	}
}

func (a *Aggregator) finish(log *zap.Logger, rep *domain.Report) *domain.Report {
	rep.FinishedAt = a.now().UTC()
	fields := []zap.Field{
		zap.Bool("failed", rep.Failed),
		zap.Duration("duration", rep.Duration()),
	}
	if !rep.Failed {
		fields = append(fields, zap.Int("score", Score(rep)))
	}
	if rep.DNS != nil {
		fields = append(fields, zap.String("dns_class", rep.DNS.Class))
	}
	log.Info("run_finished", fields...)
	if a.Observer != nil {
		a.Observer.RunFinished(rep)
	}
	return rep
}
