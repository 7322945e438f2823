package render

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hamed0406/fedihealth/internal/domain"
	"github.com/hamed0406/fedihealth/internal/health"
	"github.com/hamed0406/fedihealth/internal/probe"
)

const descriptionLimit = 100

func rule() string { return strings.Repeat("=", ruleWidth) }

// Banner writes the program header.
func Banner(w io.Writer) error {
	_, err := fmt.Fprintf(w, "\n%s\n%s\n   %s\n%s\n\n",
		rule(),
		styleTitle.Render("🏥 Fediverse instance health checker"),
		styleDim.Render("Technical health and performance analysis"),
		rule(),
	)
	return err
}

// Report writes the detailed report of a successful run. Sections whose
// check did not succeed are left out.
func Report(w io.Writer, rep *domain.Report) error {
	var b strings.Builder
	b.WriteString(rule() + "\n")

	if res, ok := rep.Result(probe.NameAPI); ok && res.OK() && res.Instance != nil {
		writeInstance(&b, res.Instance)
	}
	if res, ok := rep.Result(probe.NameNodeInfo); ok && res.OK() && res.NodeInfo != nil {
		writeSoftware(&b, res.NodeInfo)
	}

	b.WriteString("\n⚡ " + styleTitle.Render("Performance:") + "\n")
	if res, found := rep.Result(probe.NameReachability); found {
		if d, ok := latencyOf(res, found); ok {
			fmt.Fprintf(&b, "   Base latency: %s\n", formatMS(d))
		} else {
			fmt.Fprintf(&b, "   Base latency: %s\n", notAvailable)
		}
	}
	if res, ok := rep.Result(probe.NameTimeline); ok && res.OK() {
		fmt.Fprintf(&b, "   Timeline latency: %s\n", formatMS(res.Latency))
	}

	if res, ok := rep.Result(probe.NameSecurity); ok && res.Status != probe.StatusError && res.Security != nil {
		c := res.Security
		b.WriteString("\n🔒 " + styleTitle.Render("Security:") + "\n")
		fmt.Fprintf(&b, "   HTTPS: %s\n", check(c.HTTPS))
		fmt.Fprintf(&b, "   HSTS: %s\n", check(c.HSTS))
		fmt.Fprintf(&b, "   Content-Security-Policy: %s\n", check(c.CSP))
		fmt.Fprintf(&b, "   X-Frame-Options: %s\n", check(c.XFrameOptions))
		fmt.Fprintf(&b, "   X-Content-Type-Options: %s\n", check(c.XContentTypeOptions))
	}

	score := health.Score(rep)
	fmt.Fprintf(&b, "\n💚 Overall score: %s (%s)\n",
		scoreStyle(score).Render(fmt.Sprintf("%d/%d", score, health.MaxScore)),
		health.Label(score),
	)
	b.WriteString("\n" + rule() + "\n\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func writeInstance(b *strings.Builder, info *probe.InstanceInfo) {
	b.WriteString("\n📊 " + styleTitle.Render("Instance information:") + "\n")
	fmt.Fprintf(b, "   Title: %s\n", orNA(info.Title))
	fmt.Fprintf(b, "   Version: %s\n", orNA(info.Version))
	fmt.Fprintf(b, "   Description: %s\n", orNA(truncate(info.Description, descriptionLimit)))

	switch {
	case info.Usage != nil:
		fmt.Fprintf(b, "\n   Active users (month): %s\n", formatNumber(info.Usage.Users.ActiveMonth))
	case info.Stats != nil:
		fmt.Fprintf(b, "\n   Users: %s\n", formatNumber(info.Stats.UserCount))
		fmt.Fprintf(b, "   Posts: %s\n", formatNumber(info.Stats.StatusCount))
		fmt.Fprintf(b, "   Federated instances: %s\n", formatNumber(info.Stats.DomainCount))
	}

	if reg, ok := info.Registrations(); ok {
		status := "closed"
		if reg.Enabled {
			status = "open"
		}
		approval := ""
		if reg.ApprovalRequired {
			approval = " (approval required)"
		}
		fmt.Fprintf(b, "\n   Registrations: %s%s\n", status, approval)
	}

	if cfg := info.Configuration; cfg != nil {
		if cfg.Statuses != nil {
			fmt.Fprintf(b, "\n   Max characters per post: %d\n", cfg.Statuses.MaxCharacters)
		}
		if cfg.MediaAttachments != nil {
			fmt.Fprintf(b, "   Supported media types: %d\n", len(cfg.MediaAttachments.SupportedMimeTypes))
		}
	}
}

func writeSoftware(b *strings.Builder, n *probe.NodeInfo) {
	b.WriteString("\n💻 " + styleTitle.Render("Software:") + "\n")
	fmt.Fprintf(b, "   Name: %s\n", orNA(n.Software.Name))
	fmt.Fprintf(b, "   Version: %s\n", orNA(n.Software.Version))
	if name := n.NodeName(); name != "" {
		fmt.Fprintf(b, "   Node name: %s\n", name)
	}
}

// CompareHeader opens a comparison.
func CompareHeader(w io.Writer) error {
	_, err := fmt.Fprintf(w, "\n%s\n📊 %s\n%s\n\n", rule(), styleTitle.Render("Instance comparison"), rule())
	return err
}

// Ranking writes the ranked comparison, best first.
func Ranking(w io.Writer, rankings []health.Ranking) error {
	var b strings.Builder
	b.WriteString(rule() + "\n")
	b.WriteString("\n🏆 " + styleTitle.Render("Ranking:") + "\n\n")

	if len(rankings) == 0 {
		b.WriteString(styleDim.Render("   No instance passed the reachability check.") + "\n\n")
	}
	for i, r := range rankings {
		latency := notAvailable
		apiOK := false
		if r.Report != nil {
			res, found := r.Report.Result(probe.NameReachability)
			if d, ok := latencyOf(res, found); ok {
				latency = formatMS(d)
			}
			apiOK = r.Report.OK(probe.NameAPI)
		}
		fmt.Fprintf(&b, "   %d. %s\n", i+1, r.Instance.Host())
		fmt.Fprintf(&b, "      Score: %s | Latency: %s | API: %s\n\n",
			scoreStyle(r.Score).Render(fmt.Sprintf("%d/%d", r.Score, health.MaxScore)),
			latency,
			check(apiOK),
		)
	}
	b.WriteString(rule() + "\n\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// MonitorHeader announces a monitor loop.
func MonitorHeader(w io.Writer, inst domain.Instance, interval time.Duration) error {
	_, err := fmt.Fprintf(w, "🔄 Monitoring %s (every %s)\n   %s\n\n",
		inst.Host(), interval, styleDim.Render("Press Ctrl+C to stop"))
	return err
}

// MonitorPass writes the one-line summary of a monitor pass.
func MonitorPass(w io.Writer, rec domain.RunRecord) error {
	ts := rec.CheckedAt.Local().Format("2006-01-02 15:04:05")
	if rec.Failed {
		_, err := fmt.Fprintf(w, "[%s]\n   %s Check failed\n\n", ts, styleFail.Render(markFail))
		return err
	}
	_, err := fmt.Fprintf(w, "[%s]\n   💚 Score: %s (%s)\n\n", ts,
		scoreStyle(rec.Score).Render(fmt.Sprintf("%d/%d", rec.Score, health.MaxScore)),
		rec.Label,
	)
	return err
}

// MonitorStopped closes a monitor loop.
func MonitorStopped(w io.Writer) error {
	_, err := fmt.Fprint(w, "\n✋ Monitoring stopped\n\n")
	return err
}
