package api

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Resinat/Relayview/internal/metrics"
)

const realtimeDefaultWindow = 15 * time.Minute

// HandleGlobalStats handles GET /api/v1/stats.
func HandleGlobalStats(c Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, c.GlobalStats())
	}
}

// HandleDetailedStats handles GET /api/v1/stats/detailed.
func HandleDetailedStats(c Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, c.DetailedStats())
	}
}

// HandleRealtimeStats handles GET /api/v1/stats/realtime.
func HandleRealtimeStats(sampler *metrics.Sampler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		from, to, ok := parseTimeRange(w, r, realtimeDefaultWindow)
		if !ok {
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{
			"step_seconds": int(sampler.Interval() / time.Second),
			"items":        sampler.Ring().Query(from, to),
		})
	}
}

// HandlePrometheus serves the prometheus exposition of g.
func HandlePrometheus(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
