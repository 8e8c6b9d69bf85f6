package handlers

import (
	"net/http"

	"github.com/saty-git24/live-polling-system/internal/services"
)

// HandleMetrics returns engine and WebSocket server metrics
func HandleMetrics(hub *services.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, hub.GetMetrics())
	}
}

// HandleHealth returns server health status
func HandleHealth(hub *services.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot := hub.GetMetrics()

		status := http.StatusOK
		if snapshot.HealthStatus == "critical" {
			status = http.StatusServiceUnavailable
		}

		respondJSON(w, status, map[string]interface{}{
			"status":             snapshot.HealthStatus,
			"active_connections": snapshot.ActiveConnections,
			"uptime_seconds":     snapshot.UptimeSeconds,
		})
	}
}
