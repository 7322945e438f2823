package health

import (
	"time"

	"github.com/hamed0406/fedihealth/internal/domain"
	"github.com/hamed0406/fedihealth/internal/probe"
)

// Bucket weights before latency bonuses. With both bonuses the raw total
// can exceed MaxScore.
const (
	weightReachability = 20
	weightAPI          = 15
	weightNodeInfo     = 10
	weightTimeline     = 10
	weightStreaming    = 10
	weightMedia        = 10
	weightSecurity     = 15
	weightRateLimiting = 5
)

// Latency bonuses. The fast bonus wins when both thresholds are met.
const (
	reachFastBonus    = 5
	reachFastBelow    = 200 * time.Millisecond
	reachSlowBonus    = 3
	reachSlowBelow    = 500 * time.Millisecond
	timelineFastBonus = 5
	timelineFastBelow = 300 * time.Millisecond
	timelineSlowBonus = 3
	timelineSlowBelow = 600 * time.Millisecond
)

// Labels in descending order of health.
const (
	LabelExcellent    = "Excellent"
	LabelVeryGood     = "Very good"
	LabelGood         = "Good"
	LabelSatisfactory = "Satisfactory"
	LabelProblems     = "Problems detected"
)

// MaxScore is the best possible score.
const MaxScore = 100

// Score computes the 0–100 health score of a finished report. It is a pure
// function of r. Checks that are missing, errored or (except security)
// warned contribute nothing.
func Score(r *domain.Report) int {
	if r == nil || r.Failed {
		return 0
	}
	total := 0

	if res, ok := r.Result(probe.NameReachability); ok && res.OK() {
		total += weightReachability + latencyBonus(res.Latency,
			reachFastBelow, reachFastBonus, reachSlowBelow, reachSlowBonus)
	}
	if r.OK(probe.NameAPI) {
		total += weightAPI
	}
	if r.OK(probe.NameNodeInfo) {
		total += weightNodeInfo
	}
	if res, ok := r.Result(probe.NameTimeline); ok && res.OK() {
		total += weightTimeline + latencyBonus(res.Latency,
			timelineFastBelow, timelineFastBonus, timelineSlowBelow, timelineSlowBonus)
	}
	if r.OK(probe.NameStreaming) {
		total += weightStreaming
	}
	if r.OK(probe.NameMedia) {
		total += weightMedia
	}
	if res, ok := r.Result(probe.NameSecurity); ok && res.Status != probe.StatusError && res.MaxScore > 0 {
		total += weightSecurity * res.Score / res.MaxScore
	}
	if r.OK(probe.NameRateLimiting) {
		total += weightRateLimiting
	}

	return clamp(total, 0, MaxScore)
}

func latencyBonus(d, fastBelow time.Duration, fast int, slowBelow time.Duration, slow int) int {
	switch {
	case d < fastBelow:
		return fast
	case d < slowBelow:
		return slow
	default:
		return 0
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Label maps a score to its verbal rating.
func Label(score int) string {
	switch {
	case score >= 90:
		return LabelExcellent
	case score >= 75:
		return LabelVeryGood
	case score >= 60:
		return LabelGood
	case score >= 40:
		return LabelSatisfactory
	default:
		return LabelProblems
	}
}
