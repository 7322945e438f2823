package memory

import (
	"context"
	"testing"
	"time"

	"github.com/hamed0406/fedihealth/internal/domain"
)

func rec(host string, score int, at time.Time) *domain.RunRecord {
	return &domain.RunRecord{
		RunID:     host + "-" + at.Format(time.RFC3339Nano),
		Instance:  domain.MustInstance(host),
		Score:     score,
		CheckedAt: at,
	}
}

func TestMemoryStore_LatestPerInstance(t *testing.T) {
	ctx := context.Background()
	s := New(10)
	t0 := time.Now().UTC()

	for i, r := range []*domain.RunRecord{
		rec("b.example", 10, t0),
		rec("a.example", 20, t0.Add(time.Second)),
		rec("b.example", 30, t0.Add(2*time.Second)),
	} {
		if err := s.Append(ctx, r); err != nil {
			t.Fatalf("Append #%d: %v", i, err)
		}
	}

	latest, err := s.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if len(latest) != 2 {
		t.Fatalf("want 2 instances, got %d", len(latest))
	}
	if latest[0].Instance.Host() != "a.example" || latest[1].Instance.Host() != "b.example" {
		t.Fatalf("want host order, got %s, %s", latest[0].Instance, latest[1].Instance)
	}
	if latest[1].Score != 30 {
		t.Fatalf("want newest b record (30), got %d", latest[1].Score)
	}

	got, err := s.LatestFor(ctx, domain.MustInstance("a.example"))
	if err != nil || got == nil || got.Score != 20 {
		t.Fatalf("LatestFor a: %+v, %v", got, err)
	}
	missing, err := s.LatestFor(ctx, domain.MustInstance("c.example"))
	if err != nil || missing != nil {
		t.Fatalf("LatestFor unknown: want nil, nil; got %+v, %v", missing, err)
	}
}

func TestMemoryStore_HistoryRingOverwritesOldest(t *testing.T) {
	ctx := context.Background()
	s := New(3)
	inst := domain.MustInstance("a.example")
	t0 := time.Now().UTC()

	for i := 1; i <= 5; i++ {
		_ = s.Append(ctx, rec("a.example", i, t0.Add(time.Duration(i)*time.Second)))
	}

	all, err := s.History(ctx, inst, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("want 3 kept, got %d", len(all))
	}
	for i, want := range []int{5, 4, 3} {
		if all[i].Score != want {
			t.Fatalf("history[%d]: want score %d, got %d", i, want, all[i].Score)
		}
	}

	two, _ := s.History(ctx, inst, 2)
	if len(two) != 2 || two[0].Score != 5 || two[1].Score != 4 {
		t.Fatalf("limit 2: unexpected %+v", two)
	}

	none, _ := s.History(ctx, domain.MustInstance("other.example"), 5)
	if none == nil || len(none) != 0 {
		t.Fatalf("unknown instance: want empty slice, got %#v", none)
	}
}

func TestMemoryStore_DefaultSize(t *testing.T) {
	s := New(0)
	if s.size != DefaultHistorySize {
		t.Fatalf("want default size %d, got %d", DefaultHistorySize, s.size)
	}
}

func TestMemoryStore_Alerts(t *testing.T) {
	ctx := context.Background()
	s := New(1)

	got, err := s.Get(ctx, "a.example")
	if err != nil || got != nil {
		t.Fatalf("want nil, nil before first Set; got %+v, %v", got, err)
	}

	if err := s.Set(ctx, "a.example", false, time.Time{}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, _ = s.Get(ctx, "a.example")
	if got == nil || got.LastUp || got.LastSentAt != nil {
		t.Fatalf("unexpected record without send time: %+v", got)
	}

	sent := time.Now().UTC()
	_ = s.Set(ctx, "a.example", true, sent)
	got, _ = s.Get(ctx, "a.example")
	if got == nil || !got.LastUp || got.LastSentAt == nil || !got.LastSentAt.Equal(sent) {
		t.Fatalf("unexpected record with send time: %+v", got)
	}
}
