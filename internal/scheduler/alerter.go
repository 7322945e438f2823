package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/fedihealth/internal/domain"
	"github.com/hamed0406/fedihealth/internal/health"
	"github.com/hamed0406/fedihealth/internal/notify"
	"github.com/hamed0406/fedihealth/internal/probe"
	"github.com/hamed0406/fedihealth/internal/repo"
)

// DefaultAlertThreshold is the lowest score still considered up.
const DefaultAlertThreshold = 40

type AlerterConfig struct {
	// Threshold is the lowest score that counts as up.
	Threshold       int
	AlertOnRecovery bool
	Cooldown        time.Duration
}

// Alerter turns monitor passes into up/down notifications. An instance is up
// when its run did not fail and scored at least Threshold. A nil notifier
// tracks state without sending anything.
type Alerter struct {
	logger   *zap.Logger
	alertDB  repo.AlertStore
	notifier notify.Notifier
	now      func() time.Time

	// observeMu serialises Observe so concurrent passes see one transition.
	observeMu sync.Mutex

	mu  sync.RWMutex
	cfg AlerterConfig
}

func NewAlerter(
	logger *zap.Logger,
	alertDB repo.AlertStore,
	notifier notify.Notifier,
	cfg AlerterConfig,
) *Alerter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Alerter{
		logger:   logger,
		alertDB:  alertDB,
		notifier: notifier,
		now:      time.Now,
		cfg:      cfg,
	}
}

// SetConfig replaces the configuration for subsequent passes.
func (a *Alerter) SetConfig(cfg AlerterConfig) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cfg = cfg
}

func (a *Alerter) config() AlerterConfig {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg
}

// Up reports whether rec counts as up under the current threshold.
func (a *Alerter) Up(rec domain.RunRecord) bool {
	return !rec.Failed && rec.Score >= a.config().Threshold
}

// Observe records the state of one pass and notifies on a state change.
func (a *Alerter) Observe(ctx context.Context, rec domain.RunRecord) error {
	a.observeMu.Lock()
	defer a.observeMu.Unlock()

	cfg := a.config()
	key := rec.Instance.Host()
	up := a.Up(rec)
	now := a.now()

	prev, err := a.alertDB.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("get alert state: %w", err)
	}

	// A first pass that is up only establishes the baseline.
	if prev == nil && up {
		return a.alertDB.Set(ctx, key, up, time.Time{})
	}
	stateChanged := prev == nil || prev.LastUp != up

	// Cooldown only matters for DOWN alerts (suppresses noisy repeats).
	cooled := true
	if prev != nil && prev.LastSentAt != nil {
		cooled = now.Sub(*prev.LastSentAt) >= cfg.Cooldown
	}

	downAlert := stateChanged && !up && cooled
	recoveryAlert := stateChanged && up && cfg.AlertOnRecovery
	if a.notifier == nil {
		downAlert, recoveryAlert = false, false
	}

	if downAlert || recoveryAlert {
		title, text := alertMessage(rec, up, cfg.Threshold)
		if err := a.notifier.Send(ctx, title, text); err != nil {
			a.logger.Warn("alert_send_error", zap.String("instance", key), zap.Error(err))
		} else {
			a.logger.Info("alert_sent", zap.String("instance", key), zap.Bool("up", up), zap.Int("score", rec.Score))
		}
		return a.alertDB.Set(ctx, key, up, now)
	}

	// If state changed but we did not send (DOWN within cooldown, recovery
	// alerts disabled or no notifier), still record the new state. The last send
	// time is kept so the cooldown survives a flap.
	if stateChanged {
		var sentAt time.Time
		if prev != nil && prev.LastSentAt != nil {
			sentAt = *prev.LastSentAt
		}
		return a.alertDB.Set(ctx, key, up, sentAt)
	}
	return nil
}

func alertMessage(rec domain.RunRecord, up bool, threshold int) (string, string) {
	title := "🔴 Instance DOWN: " + rec.Instance.Host()
	if up {
		title = "🟢 Instance RECOVERED: " + rec.Instance.Host()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Instance: %s\n", rec.Instance.BaseURL())
	if rec.Failed {
		reason := "not reachable"
		if rec.Report != nil {
			if gate, ok := rec.Report.Result(probe.NameReachability); ok && gate.Message != "" {
				reason = gate.Message
			}
			if rec.Report.DNS != nil {
				reason += " (DNS: " + rec.Report.DNS.Class + ")"
			}
		}
		fmt.Fprintf(&b, "Reason: %s\n", reason)
	} else {
		fmt.Fprintf(&b, "Score: %d/%d (%s), threshold %d\n", rec.Score, health.MaxScore, rec.Label, threshold)
		fmt.Fprintf(&b, "Latency: %d ms\n", rec.LatencyMS)
	}
	fmt.Fprintf(&b, "Checked: %s", rec.CheckedAt.Format(time.RFC3339))
	return title, b.String()
}
