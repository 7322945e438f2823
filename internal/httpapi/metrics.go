package httpapi

import (
	"net/http"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"go.uber.org/zap"

	"github.com/hamed0406/fedihealth/internal/domain"
)

const metricPrefix = "fedihealth_"

type gauge struct {
	name, help string
	value      func(domain.RunRecord) float64
}

var gauges = []gauge{
	{"up", "1 if the last check passed the reachability gate.", func(r domain.RunRecord) float64 {
		if r.Failed {
			return 0
		}
		return 1
	}},
	{"score", "Health score of the last check, 0 to 100.", func(r domain.RunRecord) float64 {
		return float64(r.Score)
	}},
	{"latency_seconds", "Reachability latency of the last check.", func(r domain.RunRecord) float64 {
		return float64(r.LatencyMS) / 1000
	}},
	{"last_check_timestamp_seconds", "Unix time of the last check.", func(r domain.RunRecord) float64 {
		return float64(r.CheckedAt.UnixNano()) / 1e9
	}},
}

// metricFamilies renders the newest record of every instance as one gauge
// family per measurement, labelled by instance.
func metricFamilies(recs []domain.RunRecord) []*dto.MetricFamily {
	out := make([]*dto.MetricFamily, 0, len(gauges))
	for _, g := range gauges {
		mf := &dto.MetricFamily{
			Name: ptr(metricPrefix + g.name),
			Help: ptr(g.help),
			Type: dto.MetricType_GAUGE.Enum(),
		}
		for _, rec := range recs {
			mf.Metric = append(mf.Metric, &dto.Metric{
				Label: []*dto.LabelPair{{Name: ptr("instance"), Value: ptr(rec.Instance.Host())}},
				Gauge: &dto.Gauge{Value: ptr(g.value(rec))},
			})
		}
		out = append(out, mf)
	}
	return out
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	recs, err := s.Runs.Latest(r.Context())
	if err != nil {
		s.Logger.Error("metrics", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list error")
		return
	}

	format := expfmt.Negotiate(r.Header)
	w.Header().Set("Content-Type", string(format))
	enc := expfmt.NewEncoder(w, format)
	for _, mf := range metricFamilies(recs) {
		if err := enc.Encode(mf); err != nil {
			s.Logger.Warn("metrics_encode", zap.String("family", mf.GetName()), zap.Error(err))
			return
		}
	}
	if c, ok := enc.(expfmt.Closer); ok {
		_ = c.Close()
	}
}

func ptr[T any](v T) *T { return &v }
