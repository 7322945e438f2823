package render

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/hamed0406/fedihealth/internal/domain"
	"github.com/hamed0406/fedihealth/internal/probe"
)

var checkTitles = map[string]string{
	probe.NameReachability: "Reachability",
	probe.NameAPI:          "API",
	probe.NameNodeInfo:     "Federation",
	probe.NameTimeline:     "Timeline performance",
	probe.NameStreaming:    "Streaming API",
	probe.NameMedia:        "Media upload",
	probe.NameSecurity:     "Security headers",
	probe.NameRateLimiting: "Rate limiting",
}

// Progress prints one line per finished check. It is safe to share
// between concurrent runs; with PrefixHost set every line names its
// instance so interleaved runs stay readable.
type Progress struct {
	PrefixHost bool

	mu sync.Mutex
	w  io.Writer
}

func NewProgress(w io.Writer, prefixHost bool) *Progress {
	return &Progress{w: w, PrefixHost: prefixHost}
}

func (p *Progress) RunStarted(inst domain.Instance) {
	if p.PrefixHost {
		p.printf("Checking %s...\n", inst.Host())
		return
	}
	p.printf("🏥 Health check: %s\n\n", styleTitle.Render(inst.Host()))
}

func (p *Progress) CheckFinished(inst domain.Instance, name string, res probe.Result) {
	title, ok := checkTitles[name]
	if !ok {
		title = name
	}
	p.printf("%s%s... %s %s\n", p.prefix(inst), title, mark(res.Status), detail(name, res))
}

func (p *Progress) RunFinished(rep *domain.Report) {
	if !rep.Failed {
		p.printf("\n")
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "\n%s%s Instance not reachable!\n", p.prefix(rep.Instance), styleFail.Render(markFail))
	if d := rep.DNS; d != nil {
		fmt.Fprintf(&b, "   DNS: %s", d.Class)
		if len(d.IPs) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(d.IPs, ", "))
		}
		if d.ResolverError != "" {
			fmt.Fprintf(&b, " %s", styleDim.Render(d.ResolverError))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	p.printf("%s", b.String())
}

func (p *Progress) prefix(inst domain.Instance) string {
	if !p.PrefixHost {
		return ""
	}
	return "[" + inst.Host() + "] "
}

func (p *Progress) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, format, args...)
}

// detail is the short outcome text printed after a check's mark.
func detail(name string, res probe.Result) string {
	if res.Status == probe.StatusError {
		return orNA(res.Message)
	}
	switch name {
	case probe.NameReachability:
		if res.OK() {
			return fmt.Sprintf("OK (%s)", formatMS(res.Latency))
		}
		return fmt.Sprintf("%s (%s)", res.Message, formatMS(res.Latency))
	case probe.NameAPI:
		return strings.ToUpper(res.Version)
	case probe.NameTimeline:
		if res.OK() {
			return fmt.Sprintf("%s (%d posts)", formatMS(res.Latency), res.PostsCount)
		}
	case probe.NameNodeInfo:
		if res.OK() {
			return "active"
		}
	case probe.NameStreaming, probe.NameRateLimiting:
		if res.OK() {
			return "active"
		}
		return "inactive"
	case probe.NameMedia:
		if res.OK() {
			return "available"
		}
		return "problem"
	case probe.NameSecurity:
		return fmt.Sprintf("%d/%d", res.Score, res.MaxScore)
	}
	return res.Message
}
