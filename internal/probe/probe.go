package probe

import (
	"context"
	"fmt"
	"time"
)

//go:generate mockgen -destination=mocks/checker.go -package=mocks github.com/hamed0406/fedihealth/internal/probe Checker

// Status is the tri-state severity of a single check.
//
//   - ok:      the check's success criterion was met
//   - warning: the check completed but found a suboptimal condition
//   - error:   nothing meaningful could be determined (transport failure)
type Status string

const (
	StatusOK      Status = "ok"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
)

// Check names, also the keys of a report's result map.
const (
	NameReachability = "reachability"
	NameAPI          = "api"
	NameNodeInfo     = "nodeinfo"
	NameTimeline     = "timeline"
	NameStreaming    = "streaming"
	NameMedia        = "media"
	NameSecurity     = "security"
	NameRateLimiting = "rate_limiting"
)

// Result is the unified outcome of a single instance check.
//
// Only Status is always set. Message is present whenever Status is not ok.
// The remaining fields are payload; each check fills the ones it owns.
type Result struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`

	// Latency is the wall-clock round trip (reachability, timeline).
	Latency    time.Duration `json:"latency,omitempty"`
	StatusCode int           `json:"status_code,omitempty"`
	// HTTPS reports whether the final URL after redirects used https.
	HTTPS bool `json:"https,omitempty"`

	// API
	Version  string        `json:"version,omitempty"`
	Instance *InstanceInfo `json:"instance,omitempty"`

	// NodeInfo
	NodeInfo *NodeInfo `json:"nodeinfo,omitempty"`

	// Timeline
	PostsCount int `json:"posts_count,omitempty"`

	// Streaming, media
	Available bool `json:"available,omitempty"`

	// Security headers
	Security *SecurityChecks `json:"checks,omitempty"`
	Score    int             `json:"score,omitempty"`
	MaxScore int             `json:"max_score,omitempty"`

	// Rate limiting
	Active           bool              `json:"active,omitempty"`
	RateLimitHeaders map[string]string `json:"headers,omitempty"`
}

// OK reports whether the check met its success criterion.
func (r Result) OK() bool {
	return r.Status == StatusOK
}

// LatencyMS returns the measured latency in whole milliseconds.
func (r Result) LatencyMS() int64 {
	return r.Latency.Milliseconds()
}

// Checker performs a single check against an instance base URL
// (e.g. "https://mastodon.social"). Implementations never panic and never
// return an error: every fault is folded into the Result.
type Checker interface {
	Check(ctx context.Context, base string) Result
}

func warnf(format string, args ...any) Result {
	return Result{Status: StatusWarning, Message: fmt.Sprintf(format, args...)}
}

func failf(format string, args ...any) Result {
	return Result{Status: StatusError, Message: fmt.Sprintf(format, args...)}
}
