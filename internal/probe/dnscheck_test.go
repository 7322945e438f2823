package probe

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startResolver runs an in-process DNS server with a fixed zone and returns a
// DNSChecker pointed at it.
func startResolver(t *testing.T) *DNSChecker {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	started := make(chan struct{})
	srv := &dns.Server{
		PacketConn:        pc,
		NotifyStartedFunc: func() { close(started) },
		Handler: dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
			m := new(dns.Msg)
			m.SetReply(r)
			q := r.Question[0]
			switch q.Name {
			case "up.example.":
				switch q.Qtype {
				case dns.TypeA:
					rr, _ := dns.NewRR("up.example. 60 IN A 192.0.2.10")
					m.Answer = append(m.Answer, rr)
				case dns.TypeNS:
					rr, _ := dns.NewRR("up.example. 60 IN NS ns1.example.")
					m.Answer = append(m.Answer, rr)
				}
			case "alias.example.":
				if q.Qtype == dns.TypeA {
					c, _ := dns.NewRR("alias.example. 60 IN CNAME up.example.")
					a, _ := dns.NewRR("up.example. 60 IN A 192.0.2.10")
					m.Answer = append(m.Answer, c, a)
				}
			case "bare.example.":
				if q.Qtype == dns.TypeNS {
					rr, _ := dns.NewRR("bare.example. 60 IN NS ns1.example.")
					m.Answer = append(m.Answer, rr)
				}
			case "broken.example.":
				m.Rcode = dns.RcodeServerFailure
			default:
				m.Rcode = dns.RcodeNameError
			}
			_ = w.WriteMsg(m)
		}),
	}
	go func() { _ = srv.ActivateAndServe() }()
	<-started
	t.Cleanup(func() { _ = srv.Shutdown() })

	return NewDNSChecker(pc.LocalAddr().String(), time.Second)
}

func TestDNSChecker_Classes(t *testing.T) {
	d := startResolver(t)

	tests := []struct {
		name  string
		host  string
		class string
		ips   []string
		cname string
		ns    bool
	}{
		{name: "resolves", host: "https://up.example/", class: DNSResolves, ips: []string{"192.0.2.10"}, ns: true},
		{name: "cname chain", host: "alias.example", class: DNSResolves, ips: []string{"192.0.2.10"}, cname: "up.example"},
		{name: "delegated without address", host: "bare.example", class: DNSNoARecord, ns: true},
		{name: "nxdomain", host: "missing.example", class: DNSNXDomain},
		{name: "servfail", host: "broken.example", class: DNSServfailOrTimeout},
		{name: "ip literal", host: "http://192.0.2.1:8080", class: DNSResolves, ips: []string{"192.0.2.1"}},
		{name: "empty", host: "  ", class: DNSInvalidName},
		{name: "invalid", host: "bad..name", class: DNSInvalidName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.Check(context.Background(), tt.host)
			assert.Equal(t, tt.class, got.Class)
			assert.Equal(t, tt.ips, got.IPs)
			assert.Equal(t, tt.cname, got.CNAME)
			assert.Equal(t, tt.ns, got.HasNS)
			assert.Equal(t, len(tt.ips) > 0, got.HasAOrAAAA)
		})
	}
}

func TestDNSChecker_UnreachableResolver(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer pc.Close()

	// Nobody answers on pc; every query times out.
	d := NewDNSChecker(pc.LocalAddr().String(), 100*time.Millisecond)
	got := d.Check(context.Background(), "up.example")
	assert.Equal(t, DNSServfailOrTimeout, got.Class)
	assert.NotEmpty(t, got.ResolverError)
}

func TestExtractHost(t *testing.T) {
	tests := map[string]string{
		"mastodon.social":                "mastodon.social",
		"https://mastodon.social/":       "mastodon.social",
		"https://mastodon.social:8443/a": "mastodon.social",
		"mastodon.social:443":            "mastodon.social",
		"":                               "",
	}
	for in, want := range tests {
		assert.Equal(t, want, extractHost(in), in)
	}
}
