package probe

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
)

// Messages used for the two transport faults the report names explicitly.
const (
	MsgTLSError = "TLS handshake failed"
	MsgTimeout  = "timeout"
)

const (
	defaultTimeout   = 10 * time.Second
	maxResponseBytes = 8 * 1024 * 1024
)

// HTTPChecker is the transport shared by every check of a suite. Each call
// gets its own deadline; the underlying client carries no global timeout.
type HTTPChecker struct {
	Client    *http.Client
	UserAgent string
}

// NewHTTPChecker returns an HTTPChecker on a clone of the default transport.
func NewHTTPChecker(userAgent string) *HTTPChecker {
	return &HTTPChecker{
		Client:    &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()},
		UserAgent: userAgent,
	}
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// URL is the final request URL after redirects.
	URL     *url.URL
	Latency time.Duration
}

// HTTPS reports whether the final URL used the https scheme.
func (r *Response) HTTPS() bool {
	return r.URL != nil && r.URL.Scheme == "https"
}

// DecodeJSON unmarshals the body into v.
func (r *Response) DecodeJSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

// ValidJSON reports whether the body is a well-formed JSON document.
func (r *Response) ValidJSON() bool {
	return json.Valid(r.Body)
}

// Do issues a single request with no body and reads the response. Latency
// covers the round trip including the body read.
func (h *HTTPChecker) Do(ctx context.Context, method, target string, timeout time.Duration) (*Response, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if h.UserAgent != "" {
		req.Header.Set("User-Agent", h.UserAgent)
	}

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	latency := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		URL:        resp.Request.URL,
		Latency:    latency,
	}, nil
}

// Get is Do with GET.
func (h *HTTPChecker) Get(ctx context.Context, target string, timeout time.Duration) (*Response, error) {
	return h.Do(ctx, http.MethodGet, target, timeout)
}

// describe turns a transport error into a report message. TLS failures are
// tested first: a TLS handshake timeout reads as a TLS failure.
func describe(err error) string {
	switch {
	case isTLSError(err):
		return MsgTLSError
	case isTimeout(err):
		return MsgTimeout
	default:
		return err.Error()
	}
}

func isTLSError(err error) bool {
	var (
		verifyErr *tls.CertificateVerificationError
		recordErr tls.RecordHeaderError
		alertErr  tls.AlertError
		authErr   x509.UnknownAuthorityError
		hostErr   x509.HostnameError
		certErr   x509.CertificateInvalidError
	)
	return errors.As(err, &verifyErr) ||
		errors.As(err, &recordErr) ||
		errors.As(err, &alertErr) ||
		errors.As(err, &authErr) ||
		errors.As(err, &hostErr) ||
		errors.As(err, &certErr)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
