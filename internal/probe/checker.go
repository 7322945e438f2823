package probe

import (
	"context"
	"net/http"
	"time"
)

// Reachability GETs the instance root and measures the round trip. It is the
// gate of a suite: only an error here aborts a run. A host that answers with
// anything but 200 is reachable but degraded, so it is a warning.
type Reachability struct {
	HTTP    *HTTPChecker
	Timeout time.Duration
}

func (c *Reachability) Check(ctx context.Context, base string) Result {
	resp, err := c.HTTP.Get(ctx, base, c.Timeout)
	if err != nil {
		return failf("%s", describe(err))
	}

	res := Result{
		Status:     StatusOK,
		Latency:    resp.Latency,
		StatusCode: resp.StatusCode,
		HTTPS:      resp.HTTPS(),
	}
	if resp.StatusCode != http.StatusOK {
		res.Status = StatusWarning
		res.Message = statusMessage(resp.StatusCode)
	}
	return res
}

// Security GETs the instance root and inspects the response headers.
type Security struct {
	HTTP    *HTTPChecker
	Timeout time.Duration
}

func (c *Security) Check(ctx context.Context, base string) Result {
	resp, err := c.HTTP.Get(ctx, base, c.Timeout)
	if err != nil {
		return failf("%s", describe(err))
	}

	checks := SecurityChecks{
		HTTPS:               resp.HTTPS(),
		HSTS:                hasHeader(resp.Header, "Strict-Transport-Security"),
		CSP:                 hasHeader(resp.Header, "Content-Security-Policy"),
		XFrameOptions:       hasHeader(resp.Header, "X-Frame-Options"),
		XContentTypeOptions: hasHeader(resp.Header, "X-Content-Type-Options"),
	}
	score := checks.Score()

	res := Result{
		Status:     StatusOK,
		StatusCode: resp.StatusCode,
		Security:   &checks,
		Score:      score,
		MaxScore:   SecurityMaxScore,
	}
	if score < 4 {
		res.Status = StatusWarning
		res.Message = "missing security headers"
	}
	return res
}

// hasHeader reports presence, not value: an empty header still counts.
func hasHeader(h http.Header, key string) bool {
	_, ok := h[http.CanonicalHeaderKey(key)]
	return ok
}
