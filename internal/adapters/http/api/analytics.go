package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/okian/contestlens/internal/adapters/upstream"
	"github.com/okian/contestlens/internal/domain/report"
	"github.com/okian/contestlens/internal/domain/session"
	"github.com/okian/contestlens/internal/render"
	"github.com/okian/contestlens/pkg/logger"
	"github.com/okian/contestlens/pkg/metrics"
)

const (
	analyticsPrefix = "/analytics/"
	trendPrefix     = "trend."
)

// AnalyticsDependencies defines the interface for analytics operations.
type AnalyticsDependencies interface {
	Analyze(ctx context.Context, handle string) (report.Report, error)
}

// AnalyticsHandler handles analytics requests.
type AnalyticsHandler struct {
	deps   AnalyticsDependencies
	logger logger.Logger
}

// NewAnalyticsHandler creates a new analytics handler.
func NewAnalyticsHandler(deps AnalyticsDependencies, log logger.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{deps: deps, logger: log}
}

type analyticsResponse struct {
	Report report.Report `json:"report"`
	View   render.View   `json:"view"`
}

// HandleAnalytics handles GET /analytics/{handle} and
// GET /analytics/{handle}/trend.{png,svg} requests.
func (h *AnalyticsHandler) HandleAnalytics(w http.ResponseWriter, r *http.Request) {
	const op = "api.analytics"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	// Extract path parameters after /analytics/
	handle, rest, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, analyticsPrefix), "/")
	handle = strings.TrimSpace(handle)
	if handle == "" {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("missing handle")))
		return
	}

	var format render.ChartFormat
	if rest != "" {
		name, ok := strings.CutPrefix(rest, trendPrefix)
		if !ok {
			http.NotFound(w, r)
			return
		}
		f, err := render.ParseChartFormat(name)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		format = f
	}

	rep, err := h.deps.Analyze(r.Context(), handle)
	if err != nil {
		h.writeAnalyzeError(w, r, op, handle, err)
		return
	}

	if format == "" {
		writeJSON(w, http.StatusOK, analyticsResponse{
			Report: rep,
			View:   render.NewView(session.Ready{Handle: rep.Handle, Report: rep}),
		})
		return
	}

	if rep.Empty() {
		writeError(w, http.StatusNotFound, "no_contests", render.ErrNoContests)
		return
	}
	var buf bytes.Buffer
	if err := render.WriteTrendChart(&buf, rep.Entries, format); err != nil {
		h.logger.Error(r.Context(), "trend chart rendering failed",
			logger.String("handle", handle),
			logger.String("format", string(format)),
			logger.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal_error", WrapKind(op, ErrInternal, err))
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
	metrics.RecordChartRendered(string(format))
}

func (h *AnalyticsHandler) writeAnalyzeError(w http.ResponseWriter, r *http.Request, op, handle string, err error) {
	switch {
	case errors.Is(err, upstream.ErrFetchFailed):
		h.logger.Warn(r.Context(), "analytics fetch failed",
			logger.String("handle", handle),
			logger.Error(err),
		)
		writeError(w, http.StatusBadGateway, "fetch_failed", errors.New(session.FailureMessage))
	default:
		h.logger.Error(r.Context(), "analytics failed",
			logger.String("handle", handle),
			logger.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal_error", WrapKind(op, ErrInternal, err))
	}
}
