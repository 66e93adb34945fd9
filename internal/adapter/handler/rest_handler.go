package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/hive-corporation/spyglass/internal/adapter/exporter"
	"github.com/hive-corporation/spyglass/internal/core/service"
)

const (
	defaultAdvisoryLimit = 50
	dashboardLimit       = 15
	feedLimit            = 100
)

type RestHandler struct {
	pipeline     *service.Pipeline
	stixExporter *exporter.STIXExporter
}

func NewRestHandler(pipeline *service.Pipeline) *RestHandler {
	return &RestHandler{
		pipeline:     pipeline,
		stixExporter: exporter.NewSTIXExporter(),
	}
}

// Health check endpoint
func (h *RestHandler) Health(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "spyglass-api",
	}
	writeJSON(w, http.StatusOK, response)
}

// Advisories returns the unified advisory set of a fresh pipeline run.
func (h *RestHandler) Advisories(w http.ResponseWriter, r *http.Request) {
	limit := defaultAdvisoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "'limit' must be a positive integer")
			return
		}
		limit = parsed
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	result, err := h.pipeline.Run(ctx, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "pipeline run failed")
		return
	}

	writeJSON(w, http.StatusOK, result.Advisories)
}

// Dashboard returns the full pipeline output: advisories, alerts, summary,
// window stats, histogram, geolocation results and map markers.
func (h *RestHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	result, err := h.pipeline.Run(ctx, dashboardLimit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "pipeline run failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Feed exports the current advisory IOCs for SIEM ingestion.
func (h *RestHandler) Feed(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format != "stix" {
		writeError(w, http.StatusBadRequest, "unsupported format (use 'stix')")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	result, err := h.pipeline.Run(ctx, feedLimit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "pipeline run failed")
		return
	}

	data, err := h.stixExporter.Export(result.Advisories)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to export STIX feed")
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(data)); err != nil {
		log.Printf("Error writing STIX feed response: %v", err)
	}
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
