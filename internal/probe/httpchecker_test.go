package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// newTLSChecker starts a TLS test server and returns an HTTPChecker that
// trusts its certificate.
func newTLSChecker(t *testing.T, h http.Handler) (*httptest.Server, *HTTPChecker) {
	t.Helper()
	srv := httptest.NewTLSServer(h)
	t.Cleanup(srv.Close)
	return srv, &HTTPChecker{Client: srv.Client(), UserAgent: "fedihealth-test"}
}

func TestHTTPChecker_FollowsRedirectAndReadsBody(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/about", http.StatusFound)
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello"))
	})
	srv, h := newTLSChecker(t, mux)

	resp, err := h.Get(context.Background(), srv.URL+"/", time.Second)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("want 200, got %d", resp.StatusCode)
	}
	if resp.URL.Path != "/about" {
		t.Fatalf("want final path /about, got %q", resp.URL.Path)
	}
	if !resp.HTTPS() {
		t.Fatalf("want https final URL, got %s", resp.URL)
	}
	if string(resp.Body) != "hello" {
		t.Fatalf("unexpected body %q", resp.Body)
	}
	if resp.Latency < 0 {
		t.Fatalf("latency should be >= 0, got %v", resp.Latency)
	}
}

func TestHTTPChecker_SetsUserAgent(t *testing.T) {
	var got string
	srv, h := newTLSChecker(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
	}))

	if _, err := h.Get(context.Background(), srv.URL, time.Second); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "fedihealth-test" {
		t.Fatalf("want user agent fedihealth-test, got %q", got)
	}
}

func TestDescribe_Timeout(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer s.Close()

	_, err := NewHTTPChecker("").Get(context.Background(), s.URL, 50*time.Millisecond)
	if err == nil {
		t.Fatal("want timeout error")
	}
	if got := describe(err); got != MsgTimeout {
		t.Fatalf("want %q, got %q", MsgTimeout, got)
	}
}

func TestDescribe_UntrustedCertificate(t *testing.T) {
	s := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer s.Close()

	_, err := NewHTTPChecker("").Get(context.Background(), s.URL, time.Second)
	if err == nil {
		t.Fatal("want certificate error")
	}
	if got := describe(err); got != MsgTLSError {
		t.Fatalf("want %q, got %q (%v)", MsgTLSError, got, err)
	}
}

func TestDescribe_Unreachable(t *testing.T) {
	_, err := NewHTTPChecker("").Get(context.Background(), "http://127.0.0.1:1", time.Second)
	if err == nil {
		t.Fatal("want connection error")
	}
	got := describe(err)
	if got == MsgTLSError || got == MsgTimeout || got == "" {
		t.Fatalf("want raw transport message, got %q", got)
	}
}
