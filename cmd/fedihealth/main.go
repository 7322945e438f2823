package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hamed0406/fedihealth/internal/config"
	"github.com/hamed0406/fedihealth/internal/domain"
	"github.com/hamed0406/fedihealth/internal/health"
	"github.com/hamed0406/fedihealth/internal/httpapi"
	apimw "github.com/hamed0406/fedihealth/internal/httpapi/middleware"
	"github.com/hamed0406/fedihealth/internal/logging"
	"github.com/hamed0406/fedihealth/internal/notify"
	"github.com/hamed0406/fedihealth/internal/probe"
	"github.com/hamed0406/fedihealth/internal/render"
	"github.com/hamed0406/fedihealth/internal/repo/memory"
	"github.com/hamed0406/fedihealth/internal/scheduler"
)

var (
	// errRunFailed ends the process with status 1 after the failure was
	// already printed.
	errRunFailed = errors.New("instance not reachable")
	errUsage     = errors.New("usage")
)

type options struct {
	compare    bool
	export     string
	monitor    bool
	interval   int
	parallel   bool
	workers    int
	configPath string
	listen     string
	logDir     string
	logLevel   string

	// changed reports whether a flag was set on the command line.
	changed func(name string) bool
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	o := &options{}
	cmd := &cobra.Command{
		Use:   "fedihealth [flags] <instance>...",
		Short: "Check the technical health of Mastodon instances",
		Example: `  fedihealth mastodon.social
  fedihealth chaos.social --export health.csv
  fedihealth mastodon.social chaos.social fosstodon.org --compare
  fedihealth mastodon.social --monitor --interval 300`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			o.changed = cmd.Flags().Changed
			cfg, instances, err := resolve(o, args)
			if err != nil {
				return err
			}
			return run(cmd.Context(), o, cfg, instances, stdout)
		},
	}

	f := cmd.Flags()
	f.BoolVar(&o.compare, "compare", false, "rank the instances even when only one is given")
	f.StringVar(&o.export, "export", "", "write the result of a single check to this CSV file")
	f.BoolVar(&o.monitor, "monitor", false, "check one instance repeatedly")
	f.IntVar(&o.interval, "interval", int(config.DefaultInterval/time.Second), "seconds between monitor passes")
	f.BoolVar(&o.parallel, "parallel", false, "run the checks after reachability concurrently")
	f.IntVar(&o.workers, "workers", config.DefaultWorkers, "instances compared at the same time")
	f.StringVar(&o.configPath, "config", "", "YAML configuration file, reloaded while monitoring")
	f.StringVar(&o.listen, "listen", "", "serve the status API on this address while monitoring")
	f.StringVar(&o.logDir, "log-dir", "", "write JSON logs to this directory instead of stderr")
	f.StringVar(&o.logLevel, "log-level", "", "debug, info, warn or error")
	return cmd
}

// resolve merges defaults, config file, environment and flags, in that
// order of precedence from lowest to highest.
func resolve(o *options, args []string) (config.Config, []domain.Instance, error) {
	cfg, err := loadConfig(o.configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	applyFlags(&cfg, o)
	if err := cfg.Validate(); err != nil {
		return config.Config{}, nil, fmt.Errorf("%w: %v", errUsage, err)
	}

	raw := args
	if len(raw) == 0 {
		raw = cfg.Instances
	}
	if len(raw) == 0 {
		return config.Config{}, nil, fmt.Errorf("%w: at least one instance is required", errUsage)
	}
	instances := make([]domain.Instance, 0, len(raw))
	for _, r := range raw {
		inst, err := domain.NewInstance(r)
		if err != nil {
			return config.Config{}, nil, fmt.Errorf("%w: instance %q: %v", errUsage, r, err)
		}
		instances = append(instances, inst)
	}
	if o.monitor && len(instances) > 1 {
		return config.Config{}, nil, fmt.Errorf("%w: monitor mode works with a single instance only", errUsage)
	}
	return cfg, instances, nil
}

func loadConfig(path string) (config.Config, error) {
	if path != "" {
		return config.Read(path)
	}
	cfg := config.Default()
	if err := config.ApplyEnv(&cfg); err != nil {
		return config.Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func applyFlags(cfg *config.Config, o *options) {
	changed := o.changed
	if changed == nil {
		return
	}
	if changed("interval") {
		cfg.Interval = time.Duration(o.interval) * time.Second
	}
	if changed("parallel") {
		cfg.Parallel = o.parallel
	}
	if changed("workers") {
		cfg.Workers = o.workers
	}
	if changed("listen") {
		cfg.Status.Addr = o.listen
	}
	if changed("log-dir") {
		cfg.Log.Dir = o.logDir
	}
	if changed("log-level") {
		cfg.Log.Level = o.logLevel
	}
}

func suiteOf(h *probe.HTTPChecker, cfg config.Config) probe.Suite {
	t := probe.Timeouts{Default: cfg.Timeouts.Default, Timeline: cfg.Timeouts.Timeline}
	return probe.NewSuite(h, t)
}

func alerterConfigOf(cfg config.Config) scheduler.AlerterConfig {
	return scheduler.AlerterConfig{
		Threshold:       cfg.Alerts.Threshold,
		AlertOnRecovery: cfg.Alerts.OnRecovery,
		Cooldown:        cfg.Alerts.Cooldown,
	}
}

// notifierOf returns nil when no alert channel is configured.
func notifierOf(cfg config.Config) notify.Notifier {
	var notifiers notify.Multi
	if s := notify.NewSlack(cfg.Alerts.SlackWebhook); s != nil {
		notifiers = append(notifiers, s)
	}
	if len(notifiers) == 0 {
		return nil
	}
	return notifiers
}

func run(ctx context.Context, o *options, cfg config.Config, instances []domain.Instance, stdout io.Writer) error {
	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := render.Banner(stdout); err != nil {
		return err
	}

	httpChecker := probe.NewHTTPChecker(cfg.UserAgent)
	compare := o.compare || len(instances) > 1
	agg := health.NewAggregator(logger, suiteOf(httpChecker, cfg),
		health.WithParallel(cfg.Parallel),
		health.WithObserver(render.NewProgress(stdout, compare && !o.monitor)),
		health.WithDiagnoser(probe.NewDNSChecker("", 0)),
	)

	switch {
	case o.monitor:
		return runMonitor(ctx, logger, o, cfg, agg, httpChecker, instances[0], stdout)
	case compare:
		if err := render.CompareHeader(stdout); err != nil {
			return err
		}
		return render.Ranking(stdout, health.Compare(ctx, agg, instances, cfg.Workers))
	}

	rep := agg.Run(ctx, instances[0])
	if rep.Failed {
		return errRunFailed
	}
	if err := render.Report(stdout, rep); err != nil {
		return err
	}
	if o.export == "" {
		return nil
	}
	if err := render.ExportCSV(o.export, rep); err != nil {
		return err
	}
	return render.Exported(stdout, o.export)
}

func runMonitor(
	ctx context.Context,
	logger *zap.Logger,
	o *options,
	cfg config.Config,
	agg *health.Aggregator,
	httpChecker *probe.HTTPChecker,
	inst domain.Instance,
	stdout io.Writer,
) error {
	store := memory.New(cfg.HistorySize)

	alerter := scheduler.NewAlerter(logger, store, notifierOf(cfg), alerterConfigOf(cfg))

	mon := scheduler.NewMonitor(logger, agg, inst, cfg.Interval)
	mon.Runs = store
	mon.Alerter = alerter
	mon.OnPass = func(rec domain.RunRecord) {
		_ = render.MonitorPass(stdout, rec)
	}

	if err := render.MonitorHeader(stdout, inst, mon.Interval()); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return mon.Run(ctx) })

	if addr := cfg.Status.Addr; addr != "" {
		srv := httpapi.NewServer(logger, store,
			apimw.Keys{Public: cfg.Status.APIKeys, Admin: cfg.Status.AdminKeys},
			cfg.Status.RPM, cfg.Status.Burst,
		)
		srv.Trigger = mon.RunOnce
		g.Go(func() error {
			if err := srv.ListenAndServe(ctx, addr); err != nil {
				return fmt.Errorf("status api: %w", err)
			}
			return nil
		})
	}

	if o.configPath != "" {
		g.Go(func() error {
			err := config.Watch(ctx, logger, o.configPath, func(next config.Config) {
				mon.SetInterval(next.Interval)
				alerter.SetConfig(alerterConfigOf(next))
				agg.SetSuite(suiteOf(httpChecker, next))
			}, config.WithOverride(func(next *config.Config) { applyFlags(next, o) }))
			if err != nil {
				logger.Warn("config_watch_error", zap.String("path", o.configPath), zap.Error(err))
			}
			return nil
		})
	}

	err := g.Wait()
	_ = render.MonitorStopped(stdout)
	return err
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(os.Stdout).ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, errRunFailed) {
			fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		}
		os.Exit(1)
	}
}
