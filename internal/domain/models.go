package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/hamed0406/fedihealth/internal/probe"
)

// ErrEmptyInstance is returned for an instance name that is empty after
// normalization.
var ErrEmptyInstance = errors.New("empty instance name")

// Instance is the normalized bare host of a federated server,
// e.g. "mastodon.social". The zero value is not a valid instance.
type Instance struct {
	host string
}

// NewInstance normalizes raw: surrounding whitespace, an http:// or https://
// prefix and leading/trailing slashes are removed and the host lower-cased.
// "https://Host/", "http://host" and "host" all yield the same Instance.
func NewInstance(raw string) (Instance, error) {
	h := strings.ToLower(strings.TrimSpace(raw))
	for _, prefix := range []string{"https://", "http://"} {
		if strings.HasPrefix(h, prefix) {
			h = strings.TrimPrefix(h, prefix)
			break
		}
	}
	h = strings.TrimSpace(strings.Trim(h, "/"))
	if h == "" {
		return Instance{}, ErrEmptyInstance
	}
	return Instance{host: h}, nil
}

// MustInstance is NewInstance for literals known to be valid.
func MustInstance(raw string) Instance {
	i, err := NewInstance(raw)
	if err != nil {
		panic(err)
	}
	return i
}

// Host returns the bare host.
func (i Instance) Host() string { return i.host }

// BaseURL returns the https URL every check is issued against.
func (i Instance) BaseURL() string { return "https://" + i.host }

func (i Instance) String() string { return i.host }

// IsZero reports whether i was never set.
func (i Instance) IsZero() bool { return i.host == "" }

// MarshalText encodes the instance as its host.
func (i Instance) MarshalText() ([]byte, error) { return []byte(i.host), nil }

// UnmarshalText normalizes b like NewInstance.
func (i *Instance) UnmarshalText(b []byte) error {
	v, err := NewInstance(string(b))
	if err != nil {
		return err
	}
	*i = v
	return nil
}

// Report is the outcome of one run against one instance. A Report belongs to
// exactly one run; monitor passes build a fresh one each time.
type Report struct {
	RunID      string                  `json:"run_id"`
	Instance   Instance                `json:"instance"`
	StartedAt  time.Time               `json:"started_at"`
	FinishedAt time.Time               `json:"finished_at"`
	Results    map[string]probe.Result `json:"results"`
	// Failed is set when the gate check errored; no other check ran.
	Failed bool `json:"failed"`
	// DNS is only diagnosed for failed runs.
	DNS *probe.DNSStatus `json:"dns,omitempty"`
}

// NewReport starts an empty report.
func NewReport(runID string, inst Instance, startedAt time.Time) *Report {
	return &Report{
		RunID:     runID,
		Instance:  inst,
		StartedAt: startedAt,
		Results:   make(map[string]probe.Result),
	}
}

// Set records the result of the named check.
func (r *Report) Set(name string, res probe.Result) {
	r.Results[name] = res
}

// Result returns the result of the named check.
func (r *Report) Result(name string) (probe.Result, bool) {
	res, ok := r.Results[name]
	return res, ok
}

// OK reports whether the named check ran and succeeded.
func (r *Report) OK(name string) bool {
	res, ok := r.Results[name]
	return ok && res.OK()
}

// Duration is the wall-clock length of the run.
func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// RunRecord is the stored summary of one monitor pass.
type RunRecord struct {
	RunID     string    `json:"run_id"`
	Instance  Instance  `json:"instance"`
	Score     int       `json:"score"`
	Label     string    `json:"label"`
	Failed    bool      `json:"failed"`
	LatencyMS int64     `json:"latency_ms"`
	CheckedAt time.Time `json:"checked_at"`
	Report    *Report   `json:"-"`
}
