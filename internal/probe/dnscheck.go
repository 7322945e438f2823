package probe

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// DNS classes, from most to least healthy.
const (
	DNSResolves          = "RESOLVES"
	DNSNoARecord         = "NO_A_RECORD"
	DNSNXDomain          = "NXDOMAIN"
	DNSServfailOrTimeout = "SERVFAIL_or_TIMEOUT"
	DNSInvalidName       = "INVALID_NAME"
)

var dnsTimeout = 3 * time.Second

// DNSStatus is the outcome of a DNS diagnosis.
type DNSStatus struct {
	Domain        string   `json:"domain"`
	HasAOrAAAA    bool     `json:"has_a_or_aaaa"`
	IPs           []string `json:"ips,omitempty"`
	CNAME         string   `json:"cname,omitempty"`
	HasNS         bool     `json:"has_ns"`
	Nameservers   []string `json:"nameservers,omitempty"`
	Class         string   `json:"class"`
	ResolverError string   `json:"resolver_error,omitempty"`
}

// Check classifies host (which may carry a scheme or port).
func (d *DNSChecker) Check(ctx context.Context, host string) DNSStatus {
	s := DNSStatus{Domain: extractHost(host)}
	if s.Domain == "" {
		s.Class = DNSInvalidName
		return s
	}
	if ip := net.ParseIP(s.Domain); ip != nil {
		s.HasAOrAAAA = true
		s.IPs = []string{ip.String()}
		s.Class = DNSResolves
		return s
	}
	if _, ok := dns.IsDomainName(s.Domain); !ok {
		s.Class = DNSInvalidName
		return s
	}

	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		in, err := d.query(ctx, s.Domain, qtype)
		if err != nil {
			s.ResolverError = err.Error()
			continue
		}
		switch in.Rcode {
		case dns.RcodeSuccess:
		case dns.RcodeNameError:
			s.Class = DNSNXDomain
			continue
		default:
			s.ResolverError = dns.RcodeToString[in.Rcode]
			continue
		}
		for _, rr := range in.Answer {
			switch v := rr.(type) {
			case *dns.A:
				s.IPs = append(s.IPs, v.A.String())
			case *dns.AAAA:
				s.IPs = append(s.IPs, v.AAAA.String())
			case *dns.CNAME:
				s.CNAME = strings.TrimSuffix(v.Target, ".")
			}
		}
	}
	if len(s.IPs) > 0 {
		s.HasAOrAAAA = true
		s.Class = DNSResolves
	}

	if in, err := d.query(ctx, s.Domain, dns.TypeNS); err == nil && in.Rcode == dns.RcodeSuccess {
		for _, rr := range in.Answer {
			if ns, ok := rr.(*dns.NS); ok {
				s.Nameservers = append(s.Nameservers, strings.TrimSuffix(ns.Ns, "."))
			}
		}
		s.HasNS = len(s.Nameservers) > 0
		if s.HasNS && s.Class == DNSNXDomain {
			s.Class = DNSNoARecord
		}
	}

	if s.Class == "" {
		switch {
		case s.HasNS:
			s.Class = DNSNoARecord
		case s.ResolverError != "":
			s.Class = DNSServfailOrTimeout
		default:
			s.Class = DNSNoARecord
		}
	}
	return s
}

func (d *DNSChecker) query(ctx context.Context, name string, qtype uint16) (*dns.Msg, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), qtype)
	m.RecursionDesired = true

	ctx, cancel := context.WithTimeout(ctx, d.Timeout)
	defer cancel()

	in, _, err := d.Client.ExchangeContext(ctx, m, d.Server)
	return in, err
}
