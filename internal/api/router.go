package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/databokers/backoffice/internal/api/handlers"
	"github.com/databokers/backoffice/pkg/logger"
)

// NewRouter creates and configures the HTTP router
func NewRouter(kpiHandler *handlers.KPIHandler, alertHandler *handlers.AlertHandler, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// KPI endpoints
	api.HandleFunc("/kpi", kpiHandler.ListMetrics).Methods("GET")
	api.HandleFunc("/kpi/compute", kpiHandler.ComputeAll).Methods("GET")
	api.HandleFunc("/kpi/cycle", alertHandler.TriggerCycle).Methods("POST")
	api.HandleFunc("/kpi/{code}/compare", kpiHandler.Compare).Methods("GET")
	api.HandleFunc("/kpi/{code}/history", kpiHandler.History).Methods("GET")

	// Alert endpoints
	api.HandleFunc("/alerts", alertHandler.List).Methods("GET")
	api.HandleFunc("/alerts/{id}/ack", alertHandler.Acknowledge).Methods("POST")

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "databokers-kpi",
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
