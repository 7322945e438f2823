package probe

import "time"

// Entry is a named Checker.
type Entry struct {
	Name    string
	Checker Checker
}

// Suite is the fixed set of instance checks: the gate, then the rest in the
// order they run and are reported.
type Suite struct {
	Gate   Entry
	Checks []Entry
}

// Timeouts bounds every request a suite makes.
type Timeouts struct {
	Default  time.Duration
	Timeline time.Duration
}

// DefaultTimeouts returns 10s per request and 15s for the timeline.
func DefaultTimeouts() Timeouts {
	return Timeouts{Default: 10 * time.Second, Timeline: 15 * time.Second}
}

// NewSuite wires the eight instance checks onto one HTTP transport.
func NewSuite(h *HTTPChecker, t Timeouts) Suite {
	if t.Default <= 0 {
		t.Default = defaultTimeout
	}
	if t.Timeline <= 0 {
		t.Timeline = t.Default
	}
	return Suite{
		Gate: Entry{NameReachability, &Reachability{HTTP: h, Timeout: t.Default}},
		Checks: []Entry{
			{NameAPI, &API{HTTP: h, Timeout: t.Default}},
			{NameNodeInfo, &NodeInfoCheck{HTTP: h, Timeout: t.Default}},
			{NameTimeline, &Timeline{HTTP: h, Timeout: t.Timeline}},
			{NameStreaming, &Streaming{HTTP: h, Timeout: t.Default}},
			{NameMedia, &Media{HTTP: h, Timeout: t.Default}},
			{NameSecurity, &Security{HTTP: h, Timeout: t.Default}},
			{NameRateLimiting, &RateLimit{HTTP: h, Timeout: t.Default}},
		},
	}
}

// Names lists every check name in run order, gate first.
func (s Suite) Names() []string {
	out := make([]string, 0, len(s.Checks)+1)
	out = append(out, s.Gate.Name)
	for _, e := range s.Checks {
		out = append(out, e.Name)
	}
	return out
}
