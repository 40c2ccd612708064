// Package router configures HTTP routes for the analyzer's API.
//
// Routes configured:
//   - GET /snapshot/current?device=<id> - Latest derived analytics snapshot
//   - GET /export/current?device=<id>   - Buffered sample history as CSV
//   - GET /devices                      - Devices currently tracked
//   - GET /healthz                      - Health check endpoint
//   - GET /metrics                      - Prometheus metrics endpoint
//
// Snapshots older than the stale threshold are served with an
// X-Solwatch-Stale header so consumers can surface feed outages.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/HatiCode/solwatch/pkg/analyzer"
	"github.com/HatiCode/solwatch/pkg/export"
	"github.com/HatiCode/solwatch/pkg/httpx"
	"github.com/HatiCode/solwatch/pkg/storage"
)

var deviceNameRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9_-]{0,251}[a-zA-Z0-9])?$`)

// SetupRoutes configures the analyzer's HTTP endpoints.
func SetupRoutes(store storage.Store, manager *analyzer.Manager, staleAfter time.Duration, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("/healthz", httpx.HealthHandler())
	mux.HandleFunc("/snapshot/current", handleGetSnapshot(store, staleAfter, logger))
	mux.HandleFunc("/export/current", handleExport(manager, logger))
	mux.HandleFunc("/devices", handleDevices(manager))
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

// handleGetSnapshot returns a handler for GET /snapshot/current?device=<id>.
func handleGetSnapshot(store storage.Store, staleAfter time.Duration, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		device := r.URL.Query().Get("device")
		if device == "" {
			httpx.WriteErrorMessage(w, http.StatusBadRequest, "device parameter required")
			return
		}

		if !deviceNameRegex.MatchString(device) {
			httpx.WriteErrorMessage(w, http.StatusBadRequest, "invalid device name format")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		snapshot, found, err := store.GetLatest(ctx, device)
		if err != nil {
			logger.Error("failed to get snapshot", "device", device, "error", err)
			httpx.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
			return
		}

		if !found {
			httpx.WriteErrorMessage(w, http.StatusNotFound, fmt.Sprintf("snapshot not found for device %q", device))
			return
		}

		if time.Since(snapshot.GeneratedAt) > staleAfter {
			w.Header().Set("X-Solwatch-Stale", "true")
		}

		if err := httpx.WriteJSON(w, http.StatusOK, snapshot); err != nil {
			logger.Error("failed to write snapshot", "device", device, "error", err)
		}
	}
}

// handleExport returns a handler for GET /export/current?device=<id>,
// serving the full buffered history as CSV.
func handleExport(manager *analyzer.Manager, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		device := r.URL.Query().Get("device")
		if device == "" {
			httpx.WriteErrorMessage(w, http.StatusBadRequest, "device parameter required")
			return
		}

		if !deviceNameRegex.MatchString(device) {
			httpx.WriteErrorMessage(w, http.StatusBadRequest, "invalid device name format")
			return
		}

		a, ok := manager.Get(device)
		if !ok {
			httpx.WriteErrorMessage(w, http.StatusNotFound, fmt.Sprintf("unknown device %q", device))
			return
		}

		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s-telemetry.csv", device))

		if err := export.WriteCSV(w, a.ExportSamples()); err != nil {
			logger.Error("failed to write export", "device", device, "error", err)
		}
	}
}

// handleDevices returns a handler for GET /devices.
func handleDevices(manager *analyzer.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		devices := manager.Devices()
		if devices == nil {
			devices = []string{}
		}
		if err := httpx.WriteJSON(w, http.StatusOK, map[string][]string{"devices": devices}); err != nil {
			slog.Default().Error("failed to write device list", "error", err)
		}
	}
}
