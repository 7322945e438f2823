package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hamed0406/fedihealth/internal/domain"
	"github.com/hamed0406/fedihealth/internal/probe"
	"github.com/hamed0406/fedihealth/internal/repo/memory"
)

// ---- shared helpers ----

type sent struct{ title, text string }

type memNotifier struct {
	msgs []sent
	err  error
}

func (m *memNotifier) Send(ctx context.Context, title, text string) error {
	m.msgs = append(m.msgs, sent{title, text})
	return m.err
}

func pass(host string, score int, failed bool) domain.RunRecord {
	return domain.RunRecord{
		RunID:     "r",
		Instance:  domain.MustInstance(host),
		Score:     score,
		Label:     "x",
		Failed:    failed,
		CheckedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestAlerter(cfg AlerterConfig) (*Alerter, *memNotifier, *fakeClock) {
	nt := &memNotifier{}
	clk := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	al := NewAlerter(nil, memory.New(1), nt, cfg)
	al.now = clk.now
	return al, nt, clk
}

// ---- tests ----

func TestAlerter_SendsOnDown_RespectsCooldown(t *testing.T) {
	al, nt, clk := newTestAlerter(AlerterConfig{
		Threshold:       40,
		AlertOnRecovery: true,
		Cooldown:        time.Minute,
	})
	ctx := context.Background()

	// first pass down -> should alert
	if err := al.Observe(ctx, pass("a.example", 0, true)); err != nil {
		t.Fatal(err)
	}
	if len(nt.msgs) != 1 {
		t.Fatalf("want 1 alert, got %d", len(nt.msgs))
	}
	if !strings.Contains(nt.msgs[0].title, "DOWN") {
		t.Fatalf("unexpected title %q", nt.msgs[0].title)
	}

	// still down -> no new alert
	clk.t = clk.t.Add(10 * time.Second)
	if err := al.Observe(ctx, pass("a.example", 0, true)); err != nil {
		t.Fatal(err)
	}
	if len(nt.msgs) != 1 {
		t.Fatalf("want no repeat while down, got %d", len(nt.msgs))
	}

	// recovery ignores cooldown
	clk.t = clk.t.Add(10 * time.Second)
	if err := al.Observe(ctx, pass("a.example", 80, false)); err != nil {
		t.Fatal(err)
	}
	if len(nt.msgs) != 2 || !strings.Contains(nt.msgs[1].title, "RECOVERED") {
		t.Fatalf("want recovery alert, got %+v", nt.msgs)
	}

	// flap back down within cooldown of the recovery send -> suppressed
	clk.t = clk.t.Add(10 * time.Second)
	if err := al.Observe(ctx, pass("a.example", 10, false)); err != nil {
		t.Fatal(err)
	}
	if len(nt.msgs) != 2 {
		t.Fatalf("want cooldown to suppress, got %d", len(nt.msgs))
	}

	// recover and go down again after the cooldown -> alert
	clk.t = clk.t.Add(2 * time.Minute)
	_ = al.Observe(ctx, pass("a.example", 90, false))
	clk.t = clk.t.Add(2 * time.Minute)
	_ = al.Observe(ctx, pass("a.example", 0, true))
	if len(nt.msgs) != 4 {
		t.Fatalf("want recovery and down alerts, got %d", len(nt.msgs))
	}
}

func TestAlerter_NoRecoveryIfDisabled(t *testing.T) {
	al, nt, _ := newTestAlerter(AlerterConfig{Threshold: 40})
	ctx := context.Background()

	// first time UP (no previous) -> baseline only
	if err := al.Observe(ctx, pass("b.example", 90, false)); err != nil {
		t.Fatal(err)
	}
	if len(nt.msgs) != 0 {
		t.Fatalf("unexpected alert: %d", len(nt.msgs))
	}

	// score below threshold -> down alert
	if err := al.Observe(ctx, pass("b.example", 39, false)); err != nil {
		t.Fatal(err)
	}
	if len(nt.msgs) != 1 {
		t.Fatalf("want one down alert, got %d", len(nt.msgs))
	}
	if !strings.Contains(nt.msgs[0].text, "Score: 39/100") {
		t.Fatalf("down alert should carry the score: %q", nt.msgs[0].text)
	}

	// back up -> recovery disabled
	if err := al.Observe(ctx, pass("b.example", 40, false)); err != nil {
		t.Fatal(err)
	}
	if len(nt.msgs) != 1 {
		t.Fatalf("recovery alerts are disabled, got %d", len(nt.msgs))
	}
}

func TestAlerter_ThresholdChangesLive(t *testing.T) {
	al, nt, _ := newTestAlerter(AlerterConfig{Threshold: 40})
	ctx := context.Background()

	_ = al.Observe(ctx, pass("c.example", 60, false))
	al.SetConfig(AlerterConfig{Threshold: 75})
	if al.Up(pass("c.example", 60, false)) {
		t.Fatal("60 should be down with threshold 75")
	}
	_ = al.Observe(ctx, pass("c.example", 60, false))
	if len(nt.msgs) != 1 {
		t.Fatalf("want down alert after raising threshold, got %d", len(nt.msgs))
	}
}

func TestAlerter_FailedRunMessageNamesReason(t *testing.T) {
	al, nt, _ := newTestAlerter(AlerterConfig{Threshold: 40})

	rec := pass("d.example", 0, true)
	rep := domain.NewReport("r", rec.Instance, rec.CheckedAt)
	rep.Failed = true
	rep.Set(probe.NameReachability, probe.Result{Status: probe.StatusError, Message: probe.MsgTLSError})
	rep.DNS = &probe.DNSStatus{Class: probe.DNSResolves}
	rec.Report = rep

	if err := al.Observe(context.Background(), rec); err != nil {
		t.Fatal(err)
	}
	if len(nt.msgs) != 1 {
		t.Fatalf("want 1 alert, got %d", len(nt.msgs))
	}
	if !strings.Contains(nt.msgs[0].text, "Reason: TLS handshake failed (DNS: RESOLVES)") {
		t.Fatalf("unexpected text %q", nt.msgs[0].text)
	}
}

func TestAlerter_SendErrorStillRecordsState(t *testing.T) {
	al, nt, _ := newTestAlerter(AlerterConfig{Threshold: 40})
	nt.err = errors.New("webhook down")
	ctx := context.Background()

	if err := al.Observe(ctx, pass("e.example", 0, true)); err != nil {
		t.Fatalf("send failures are logged, not returned: %v", err)
	}
	rec, _ := al.alertDB.Get(ctx, "e.example")
	if rec == nil || rec.LastUp || rec.LastSentAt == nil {
		t.Fatalf("unexpected alert state %+v", rec)
	}
}

type slowNotifier struct{ downs atomic.Int32 }

func (s *slowNotifier) Send(ctx context.Context, title, text string) error {
	time.Sleep(50 * time.Millisecond)
	if strings.Contains(title, "DOWN") {
		s.downs.Add(1)
	}
	return nil
}

func TestAlerter_ConcurrentPassesAlertOnce(t *testing.T) {
	nt := &slowNotifier{}
	al := NewAlerter(nil, memory.New(1), nt, AlerterConfig{Threshold: 40, Cooldown: time.Hour})
	ctx := context.Background()

	if err := al.Observe(ctx, pass("a.example", 90, false)); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := al.Observe(ctx, pass("a.example", 0, true)); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if got := nt.downs.Load(); got != 1 {
		t.Fatalf("want 1 down alert for one transition, got %d", got)
	}
}

func TestAlerter_NilNotifierTracksStateOnly(t *testing.T) {
	store := memory.New(1)
	al := NewAlerter(nil, store, nil, AlerterConfig{Threshold: 40, AlertOnRecovery: true})
	ctx := context.Background()

	if err := al.Observe(ctx, pass("a.example", 90, false)); err != nil {
		t.Fatal(err)
	}
	if err := al.Observe(ctx, pass("a.example", 0, true)); err != nil {
		t.Fatal(err)
	}

	rec, err := store.Get(ctx, "a.example")
	if err != nil {
		t.Fatal(err)
	}
	if rec == nil || rec.LastUp {
		t.Fatalf("want down state recorded, got %+v", rec)
	}
	if rec.LastSentAt != nil && !rec.LastSentAt.IsZero() {
		t.Fatalf("nothing was sent, got send time %v", rec.LastSentAt)
	}
}
