package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/fedihealth/internal/domain"
	apimw "github.com/hamed0406/fedihealth/internal/httpapi/middleware"
	"github.com/hamed0406/fedihealth/internal/repo"
)

const shutdownTimeout = 5 * time.Second

// TriggerFunc runs one immediate check. ok is false when the pass was
// abandoned.
type TriggerFunc func(ctx context.Context) (rec domain.RunRecord, ok bool)

// Server exposes the monitor's run history over HTTP.
type Server struct {
	Logger *zap.Logger
	Runs   repo.RunStore
	Keys   apimw.Keys

	// RequestsPerMin <= 0 disables rate limiting.
	RequestsPerMin int
	Burst          int

	// Trigger backs POST /api/check. The route is not mounted when nil.
	Trigger TriggerFunc
}

func NewServer(l *zap.Logger, runs repo.RunStore, keys apimw.Keys, reqPerMin, burst int) *Server {
	if l == nil {
		l = zap.NewNop()
	}
	return &Server{Logger: l, Runs: runs, Keys: keys, RequestsPerMin: reqPerMin, Burst: burst}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.AllowAll().Handler)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Group(func(r chi.Router) {
		r.Use(apimw.RateLimit(s.RequestsPerMin, s.Burst))
		r.Use(apimw.RequireAny(s.Keys))

		r.Get("/api/instances", s.handleListInstances)
		r.Get("/api/instances/{host}/report", s.handleReport)
		r.Get("/api/instances/{host}/history", s.handleHistory)
		r.Get("/metrics", s.handleMetrics)

		if s.Trigger != nil {
			r.With(apimw.RequireAdmin(s.Keys)).Post("/api/check", s.handleCheck)
		}
	})

	return r
}

// ListenAndServe serves Router on addr until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.Logger.Info("status_listen", zap.String("addr", ln.Addr().String()))

	served := make(chan error, 1)
	go func() { served <- srv.Serve(ln) }()

	select {
	case err := <-served:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	if serveErr := <-served; !errors.Is(serveErr, http.ErrServerClosed) {
		err = multierr.Append(err, serveErr)
	}
	s.Logger.Info("status_stopped", zap.Error(err))
	return err
}

func (s *Server) handleListInstances(w http.ResponseWriter, r *http.Request) {
	recs, err := s.Runs.Latest(r.Context())
	if err != nil {
		s.Logger.Error("list_instances", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list error")
		return
	}
	if recs == nil {
		recs = []domain.RunRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	inst, ok := instanceParam(w, r)
	if !ok {
		return
	}
	rec, err := s.Runs.LatestFor(r.Context(), inst)
	if err != nil {
		s.Logger.Error("latest_report", zap.String("instance", inst.Host()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "lookup error")
		return
	}
	if rec == nil || rec.Report == nil {
		writeError(w, http.StatusNotFound, "no report for "+inst.Host())
		return
	}
	writeJSON(w, http.StatusOK, reportResponse{RunRecord: *rec, Report: rec.Report})
}

// reportResponse is a summary with its full report inlined.
type reportResponse struct {
	domain.RunRecord
	Report *domain.Report `json:"report"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	inst, ok := instanceParam(w, r)
	if !ok {
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	recs, err := s.Runs.History(r.Context(), inst, limit)
	if err != nil {
		s.Logger.Error("history", zap.String("instance", inst.Host()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "history error")
		return
	}
	if recs == nil {
		recs = []domain.RunRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.Trigger(r.Context())
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "check abandoned")
		return
	}
	s.Logger.Info("manual_check",
		zap.String("instance", rec.Instance.Host()),
		zap.Int("score", rec.Score),
		zap.Bool("failed", rec.Failed),
	)
	writeJSON(w, http.StatusOK, rec)
}

func instanceParam(w http.ResponseWriter, r *http.Request) (domain.Instance, bool) {
	inst, err := domain.NewInstance(chi.URLParam(r, "host"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad instance")
		return domain.Instance{}, false
	}
	return inst, true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
