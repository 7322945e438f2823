package probe

import (
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/miekg/dns"
)

const (
	resolvConf       = "/etc/resolv.conf"
	fallbackResolver = "127.0.0.1:53"
)

// DNSChecker diagnoses why a host could not be reached by asking a resolver
// directly. It complements the reachability gate and never affects a score.
type DNSChecker struct {
	Client  *dns.Client
	Server  string // host:port of the resolver
	Timeout time.Duration
}

// NewDNSChecker queries server, or the first nameserver of
// /etc/resolv.conf when server is empty.
func NewDNSChecker(server string, timeout time.Duration) *DNSChecker {
	if server == "" {
		server = systemResolver()
	}
	if timeout <= 0 {
		timeout = dnsTimeout
	}
	return &DNSChecker{
		Client:  &dns.Client{Net: "udp", Timeout: timeout},
		Server:  server,
		Timeout: timeout,
	}
}

func systemResolver() string {
	cfg, err := dns.ClientConfigFromFile(resolvConf)
	if err != nil || len(cfg.Servers) == 0 {
		return fallbackResolver
	}
	return net.JoinHostPort(cfg.Servers[0], cfg.Port)
}

// extractHost strips scheme, path and port from raw.
func extractHost(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.Contains(raw, "://") {
		if u, err := url.Parse(raw); err == nil && u.Hostname() != "" {
			return u.Hostname()
		}
	}
	if host, _, err := net.SplitHostPort(raw); err == nil {
		return host
	}
	return raw
}
