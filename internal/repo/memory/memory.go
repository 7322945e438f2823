package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hamed0406/fedihealth/internal/domain"
	"github.com/hamed0406/fedihealth/internal/repo"
)

// DefaultHistorySize is the number of passes kept per instance.
const DefaultHistorySize = 60

// Store keeps runs and alert state in process memory. Nothing survives a
// restart.
type Store struct {
	mu     sync.RWMutex
	size   int
	runs   map[string]*ring
	alerts map[string]repo.AlertRecord
}

func New(historySize int) *Store {
	if historySize < 1 {
		historySize = DefaultHistorySize
	}
	return &Store{
		size:   historySize,
		runs:   make(map[string]*ring),
		alerts: make(map[string]repo.AlertRecord),
	}
}

func (m *Store) Append(ctx context.Context, rec *domain.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := rec.Instance.Host()
	r := m.runs[key]
	if r == nil {
		r = newRing(m.size)
		m.runs[key] = r
	}
	r.push(*rec)
	return nil
}

func (m *Store) Latest(ctx context.Context) ([]domain.RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.RunRecord, 0, len(m.runs))
	for _, r := range m.runs {
		if last, ok := r.last(); ok {
			out = append(out, last)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Instance.Host() < out[j].Instance.Host() })
	return out, nil
}

func (m *Store) LatestFor(ctx context.Context, inst domain.Instance) (*domain.RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r := m.runs[inst.Host()]
	if r == nil {
		return nil, nil
	}
	last, ok := r.last()
	if !ok {
		return nil, nil
	}
	return &last, nil
}

func (m *Store) History(ctx context.Context, inst domain.Instance, limit int) ([]domain.RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r := m.runs[inst.Host()]
	if r == nil {
		return []domain.RunRecord{}, nil
	}
	return r.newestFirst(limit), nil
}

func (m *Store) Get(ctx context.Context, instance string) (*repo.AlertRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.alerts[instance]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *Store) Set(ctx context.Context, instance string, up bool, sentAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ts *time.Time
	if !sentAt.IsZero() {
		ts = &sentAt
	}
	m.alerts[instance] = repo.AlertRecord{Instance: instance, LastUp: up, LastSentAt: ts}
	return nil
}

// ring is a fixed-size buffer of run records, oldest overwritten first.
type ring struct {
	buf  []domain.RunRecord
	head int // next write position
	n    int
}

func newRing(size int) *ring {
	return &ring{buf: make([]domain.RunRecord, size)}
}

func (r *ring) push(rec domain.RunRecord) {
	r.buf[r.head] = rec
	r.head = (r.head + 1) % len(r.buf)
	if r.n < len(r.buf) {
		r.n++
	}
}

func (r *ring) last() (domain.RunRecord, bool) {
	if r.n == 0 {
		return domain.RunRecord{}, false
	}
	return r.buf[(r.head-1+len(r.buf))%len(r.buf)], true
}

func (r *ring) newestFirst(limit int) []domain.RunRecord {
	if limit < 1 || limit > r.n {
		limit = r.n
	}
	out := make([]domain.RunRecord, 0, limit)
	for i := 1; i <= limit; i++ {
		out = append(out, r.buf[(r.head-i+len(r.buf))%len(r.buf)])
	}
	return out
}
