package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/databokers/backoffice/internal/kpi"
	"github.com/databokers/backoffice/pkg/logger"
)

// KPIHandler exposes the engine's pull API to the dashboard and
// report collaborators.
type KPIHandler struct {
	engine *kpi.Engine
	logger *logger.Logger
}

// NewKPIHandler creates a new KPI handler
func NewKPIHandler(engine *kpi.Engine, log *logger.Logger) *KPIHandler {
	return &KPIHandler{
		engine: engine,
		logger: log,
	}
}

// ListMetrics returns the metric catalog
// GET /api/kpi
func (h *KPIHandler) ListMetrics(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.engine.Registry().All())
}

// ComputeAll computes every metric for a segment and period on demand
// GET /api/kpi/compute?segment=residential&year=2025&month=3
func (h *KPIHandler) ComputeAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	segment, ok := segmentParam(w, r)
	if !ok {
		return
	}

	period, ok := periodParam(w, r)
	if !ok {
		return
	}

	results := h.engine.ComputeAll(ctx, segment, period)

	// Partial failures surface per metric, never as a failed request.
	type entry struct {
		Code   string     `json:"code"`
		Result kpi.Result `json:"result"`
		Error  string     `json:"error,omitempty"`
	}

	entries := make([]entry, 0, len(results))
	for _, r := range results {
		e := entry{Code: r.Code, Result: r.Result}
		if r.Err != nil {
			e.Error = r.Err.Error()
		}
		entries = append(entries, e)
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"segment": segment,
		"period":  period,
		"results": entries,
	})
}

// Compare relates a metric's snapshot to the previous period
// GET /api/kpi/{code}/compare?segment=residential&year=2025&month=3
func (h *KPIHandler) Compare(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := mux.Vars(r)["code"]

	segment, ok := segmentParam(w, r)
	if !ok {
		return
	}

	period, ok := periodParam(w, r)
	if !ok {
		return
	}

	comparison, err := h.engine.Compare(ctx, code, segment, period)
	if err != nil {
		h.logger.WithError(err).WithField("metric", code).Error("Comparison failed")
		respondError(w, statusFor(err), "Failed to compare periods")
		return
	}

	respondJSON(w, http.StatusOK, comparison)
}

// History returns the snapshot series for trend charts
// GET /api/kpi/{code}/history?segment=residential&from=2025-01-01&to=2025-07-01
func (h *KPIHandler) History(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := mux.Vars(r)["code"]

	segment, ok := segmentParam(w, r)
	if !ok {
		return
	}

	from, to, ok := rangeParams(w, r)
	if !ok {
		return
	}

	snapshots, err := h.engine.History(ctx, code, segment, from, to)
	if err != nil {
		h.logger.WithError(err).WithField("metric", code).Error("History query failed")
		respondError(w, statusFor(err), "Failed to retrieve history")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"metric":    code,
		"segment":   segment,
		"snapshots": snapshots,
	})
}

// segmentParam extracts the required segment query parameter.
func segmentParam(w http.ResponseWriter, r *http.Request) (kpi.Segment, bool) {
	segment := r.URL.Query().Get("segment")
	if segment == "" {
		respondError(w, http.StatusBadRequest, "Missing 'segment' parameter")
		return "", false
	}
	return kpi.Segment(segment), true
}

// periodParam builds the calendar-month period from year/month query
// parameters, defaulting to the current month when absent.
func periodParam(w http.ResponseWriter, r *http.Request) (kpi.Period, bool) {
	yearStr := r.URL.Query().Get("year")
	monthStr := r.URL.Query().Get("month")

	if yearStr == "" && monthStr == "" {
		return kpi.MonthOf(time.Now()), true
	}

	year, err := strconv.Atoi(yearStr)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid 'year' parameter")
		return kpi.Period{}, false
	}

	month, err := strconv.Atoi(monthStr)
	if err != nil || month < 1 || month > 12 {
		respondError(w, http.StatusBadRequest, "Invalid 'month' parameter")
		return kpi.Period{}, false
	}

	return kpi.Month(year, time.Month(month)), true
}

// rangeParams parses from/to dates (YYYY-MM-DD), defaulting to the
// last six months.
func rangeParams(w http.ResponseWriter, r *http.Request) (from, to time.Time, ok bool) {
	now := time.Now()
	from = now.AddDate(0, -6, 0)
	to = now

	if v := r.URL.Query().Get("from"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid 'from' date format (expected YYYY-MM-DD)")
			return from, to, false
		}
		from = parsed
	}

	if v := r.URL.Query().Get("to"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid 'to' date format (expected YYYY-MM-DD)")
			return from, to, false
		}
		to = parsed
	}

	return from, to, true
}

func statusFor(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if errors.Is(err, kpi.ErrUnknownMetric) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
