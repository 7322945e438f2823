package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	pathInstanceV2     = "/api/v2/instance"
	pathInstanceV1     = "/api/v1/instance"
	pathPublicTimeline = "/api/v1/timelines/public"
	pathStreamHealth   = "/api/v1/streaming/health"
	pathMedia          = "/api/v2/media"

	rateLimitPrefix = "x-ratelimit"
	timelineLimit   = 20
)

func statusMessage(code int) string {
	return fmt.Sprintf("unexpected status %d", code)
}

// API fetches the instance document, preferring v2 and falling back to v1.
type API struct {
	HTTP    *HTTPChecker
	Timeout time.Duration
}

func (c *API) Check(ctx context.Context, base string) Result {
	versions := []struct {
		name string
		path string
	}{
		{"v2", pathInstanceV2},
		{"v1", pathInstanceV1},
	}

	last := 0
	for _, v := range versions {
		resp, err := c.HTTP.Get(ctx, base+v.path, c.Timeout)
		if err != nil {
			return failf("%s", describe(err))
		}
		if resp.StatusCode != http.StatusOK {
			last = resp.StatusCode
			continue
		}

		if !resp.ValidJSON() {
			return failf("%s instance: invalid JSON body", v.name)
		}
		res := Result{
			Status:     StatusOK,
			StatusCode: resp.StatusCode,
			Version:    v.name,
		}
		// Instance stays nil when the document does not fit InstanceInfo.
		var info InstanceInfo
		if resp.DecodeJSON(&info) == nil {
			res.Instance = &info
		}
		return res
	}
	return failf("%s", statusMessage(last))
}

// Timeline fetches the first page of the local public timeline and measures
// how long the server takes to render it.
type Timeline struct {
	HTTP    *HTTPChecker
	Timeout time.Duration
}

func (c *Timeline) Check(ctx context.Context, base string) Result {
	q := url.Values{}
	q.Set("limit", fmt.Sprint(timelineLimit))
	q.Set("local", "true")

	resp, err := c.HTTP.Get(ctx, base+pathPublicTimeline+"?"+q.Encode(), c.Timeout)
	if err != nil {
		return failf("%s", describe(err))
	}
	if resp.StatusCode != http.StatusOK {
		res := warnf("%s", statusMessage(resp.StatusCode))
		res.StatusCode = resp.StatusCode
		return res
	}

	var posts []json.RawMessage
	if err := resp.DecodeJSON(&posts); err != nil {
		return failf("timeline: %v", err)
	}
	return Result{
		Status:     StatusOK,
		StatusCode: resp.StatusCode,
		Latency:    resp.Latency,
		PostsCount: len(posts),
	}
}

// Streaming asks the streaming server for its health endpoint. It never
// reports an error: a missing streaming API only degrades the instance.
type Streaming struct {
	HTTP    *HTTPChecker
	Timeout time.Duration
}

func (c *Streaming) Check(ctx context.Context, base string) Result {
	resp, err := c.HTTP.Get(ctx, base+pathStreamHealth, c.Timeout)
	if err != nil {
		return warnf("streaming not reachable: %s", describe(err))
	}
	if resp.StatusCode != http.StatusOK {
		res := warnf("%s", statusMessage(resp.StatusCode))
		res.StatusCode = resp.StatusCode
		return res
	}
	return Result{Status: StatusOK, StatusCode: resp.StatusCode, Available: true}
}

// Media posts an empty, unauthenticated upload. A healthy server refuses it
// with 401 or 403; that refusal is the success criterion.
type Media struct {
	HTTP    *HTTPChecker
	Timeout time.Duration
}

func (c *Media) Check(ctx context.Context, base string) Result {
	resp, err := c.HTTP.Do(ctx, http.MethodPost, base+pathMedia, c.Timeout)
	if err != nil {
		return warnf("%s", describe(err))
	}
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return Result{Status: StatusOK, StatusCode: resp.StatusCode, Available: true}
	default:
		res := warnf("%s", statusMessage(resp.StatusCode))
		res.StatusCode = resp.StatusCode
		return res
	}
}

// RateLimit looks for X-RateLimit-* headers on an anonymous API call.
type RateLimit struct {
	HTTP    *HTTPChecker
	Timeout time.Duration
}

func (c *RateLimit) Check(ctx context.Context, base string) Result {
	resp, err := c.HTTP.Get(ctx, base+pathPublicTimeline, c.Timeout)
	if err != nil {
		return warnf("%s", describe(err))
	}

	headers := rateLimitHeaders(resp.Header)
	if len(headers) == 0 {
		res := warnf("no rate limit headers")
		res.StatusCode = resp.StatusCode
		return res
	}
	return Result{
		Status:           StatusOK,
		StatusCode:       resp.StatusCode,
		Active:           true,
		RateLimitHeaders: headers,
	}
}

// rateLimitHeaders matches case-insensitively: net/http canonicalizes
// X-RateLimit-Limit to X-Ratelimit-Limit.
func rateLimitHeaders(h http.Header) map[string]string {
	out := make(map[string]string)
	for k := range h {
		if strings.HasPrefix(strings.ToLower(k), rateLimitPrefix) {
			out[k] = h.Get(k)
		}
	}
	return out
}
