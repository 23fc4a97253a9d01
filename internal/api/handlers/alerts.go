package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/databokers/backoffice/internal/kpi"
	"github.com/databokers/backoffice/internal/scheduler"
	"github.com/databokers/backoffice/pkg/logger"
)

// AlertHandler exposes alert listing and acknowledgement, plus the
// manual cycle trigger used by operators.
type AlertHandler struct {
	alerts    kpi.AlertStore
	scheduler *scheduler.Scheduler
	logger    *logger.Logger
}

// NewAlertHandler creates a new alert handler
func NewAlertHandler(alerts kpi.AlertStore, sched *scheduler.Scheduler, log *logger.Logger) *AlertHandler {
	return &AlertHandler{
		alerts:    alerts,
		scheduler: sched,
		logger:    log,
	}
}

// List returns alerts for a segment, newest first
// GET /api/alerts?segment=residential&open=true
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	segment, ok := segmentParam(w, r)
	if !ok {
		return
	}

	onlyOpen := r.URL.Query().Get("open") == "true"

	alerts, err := h.alerts.ListAlerts(ctx, segment, onlyOpen)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list alerts")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve alerts")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"segment": segment,
		"alerts":  alerts,
	})
}

// Acknowledge marks an alert as acknowledged
// POST /api/alerts/{id}/ack
func (h *AlertHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid alert id")
		return
	}

	if err := h.alerts.AcknowledgeAlert(ctx, id); err != nil {
		h.logger.WithError(err).WithField("alert_id", id).Error("Failed to acknowledge alert")
		respondError(w, http.StatusNotFound, "Alert not found")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"id":           id,
		"acknowledged": true,
	})
}

// TriggerCycle starts a KPI cycle outside of its schedule. A trigger
// arriving while a cycle is running is dropped, mirroring timer ticks.
// POST /api/kpi/cycle
func (h *AlertHandler) TriggerCycle(w http.ResponseWriter, r *http.Request) {
	if h.scheduler.State("kpi_cycle") == scheduler.StateRunning {
		respondJSON(w, http.StatusConflict, map[string]string{
			"status": "dropped",
			"reason": "cycle already running",
		})
		return
	}

	if err := h.scheduler.RunJob("kpi_cycle"); err != nil {
		h.logger.WithError(err).Error("Failed to trigger cycle")
		respondError(w, http.StatusInternalServerError, "Failed to trigger cycle")
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{
		"status": "started",
	})
}
