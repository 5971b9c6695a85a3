package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BridgeStats is the page bridge as seen by the metrics layer.
type BridgeStats interface {
	Len() int
	Dropped() int64
}

// RegisterBridge exposes connected pages and messages dropped on full send
// buffers.
func RegisterBridge(reg prometheus.Registerer, b BridgeStats) {
	f := promauto.With(reg)
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "bridge_pages",
		Help:      "Pages connected to the frame bridge",
	}, func() float64 { return float64(b.Len()) })
	f.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bridge_dropped_messages_total",
		Help:      "Outbound page messages dropped on full send buffers",
	}, func() float64 { return float64(b.Dropped()) })
}
