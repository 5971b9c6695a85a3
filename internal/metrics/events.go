// Package metrics exposes session and endpoint statistics to Prometheus and
// keeps a short in-memory ring of realtime samples.
package metrics

import (
	"github.com/Resinat/Relayview/internal/endpoint"
	"github.com/Resinat/Relayview/internal/session"
)

// StatsSource supplies the read-side aggregates sampled on scrape.
type StatsSource interface {
	GlobalStats() session.GlobalStats
	ProxyAnalytics() endpoint.Analytics
	Endpoints() []endpoint.Info
}

const namespace = "relayview"

// Default load-time histogram buckets in seconds. The load timeout is 15s.
var loadTimeBuckets = []float64{0.25, 0.5, 1, 2, 3, 5, 8, 12, 15}
