package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Resinat/Relayview/internal/events"
)

// Collector turns bus events into counters and reads gauges from a
// StatsSource at scrape time.
type Collector struct {
	events   *prometheus.CounterVec
	commands *prometheus.CounterVec
	loads    *prometheus.CounterVec
	loadTime prometheus.Histogram

	source StatsSource

	sessionsActive    *prometheus.Desc
	totalVideos       *prometheus.Desc
	totalViews        *prometheus.Desc
	totalWatchSeconds *prometheus.Desc
	endpointHealth    *prometheus.Desc
	endpointBlocked   *prometheus.Desc
	endpointRequests  *prometheus.Desc
	healthyEndpoints  *prometheus.Desc
	blockedEndpoints  *prometheus.Desc
	successRate       *prometheus.Desc
}

// NewCollector registers the metrics on reg. A nil source disables the
// scrape-time gauges; a nil reg registers nothing.
func NewCollector(reg prometheus.Registerer, source StatsSource) *Collector {
	f := promauto.With(reg)
	c := &Collector{
		events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Published session events by type",
		}, []string{"type"}),
		commands: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_commands_total",
			Help:      "Player commands dispatched to frames",
		}, []string{"command"}),
		loads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "endpoint_loads_total",
			Help:      "Successful frame loads by endpoint",
		}, []string{"endpoint"}),
		loadTime: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_load_seconds",
			Help:      "Time from load attempt start to loaded signal",
			Buckets:   loadTimeBuckets,
		}),
		source: source,

		sessionsActive:    desc("sessions_active", "Sessions currently accruing watch time"),
		totalVideos:       desc("videos", "Sessions currently registered"),
		totalViews:        desc("views", "Views counted since the last clear"),
		totalWatchSeconds: desc("watch_seconds", "Watch seconds accrued since the last clear"),
		endpointHealth:    desc("endpoint_health", "Endpoint health score 0-100", "endpoint"),
		endpointBlocked:   desc("endpoint_blocked", "1 while the endpoint is in cooldown", "endpoint"),
		endpointRequests:  desc("endpoint_requests", "Recorded load outcomes by endpoint", "endpoint", "outcome"),
		healthyEndpoints:  desc("endpoints_healthy", "Endpoints with health above 30 and not blocked"),
		blockedEndpoints:  desc("endpoints_blocked", "Endpoints in cooldown"),
		successRate:       desc("endpoint_success_rate_pct", "Overall load success rate in percent"),
	}
	if source != nil && reg != nil {
		reg.MustRegister(c)
	}
	return c
}

func desc(name, help string, labels ...string) *prometheus.Desc {
	return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil)
}

// Listener returns the bus listener feeding the event counters.
func (c *Collector) Listener() events.Listener {
	return c.OnEvent
}

// OnEvent records one bus event.
func (c *Collector) OnEvent(ev events.Event) {
	c.events.WithLabelValues(string(ev.Type)).Inc()
	switch ev.Type {
	case events.VideoCommand:
		c.commands.WithLabelValues(ev.Command).Inc()
	case events.VideoLoaded:
		if ev.Session == nil {
			return
		}
		c.loads.WithLabelValues(ev.Session.EndpointID).Inc()
		c.loadTime.Observe(ev.Session.Stats.LoadTime.Seconds())
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.sessionsActive
	ch <- c.totalVideos
	ch <- c.totalViews
	ch <- c.totalWatchSeconds
	ch <- c.endpointHealth
	ch <- c.endpointBlocked
	ch <- c.endpointRequests
	ch <- c.healthyEndpoints
	ch <- c.blockedEndpoints
	ch <- c.successRate
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	g := c.source.GlobalStats()
	ch <- prometheus.MustNewConstMetric(c.sessionsActive, prometheus.GaugeValue, float64(g.SessionsActive))
	ch <- prometheus.MustNewConstMetric(c.totalVideos, prometheus.GaugeValue, float64(g.TotalVideos))
	ch <- prometheus.MustNewConstMetric(c.totalViews, prometheus.GaugeValue, float64(g.TotalViews))
	ch <- prometheus.MustNewConstMetric(c.totalWatchSeconds, prometheus.GaugeValue, float64(g.TotalWatchTimeSec))

	a := c.source.ProxyAnalytics()
	ch <- prometheus.MustNewConstMetric(c.healthyEndpoints, prometheus.GaugeValue, float64(a.HealthyCount))
	ch <- prometheus.MustNewConstMetric(c.blockedEndpoints, prometheus.GaugeValue, float64(a.BlockedCount))
	ch <- prometheus.MustNewConstMetric(c.successRate, prometheus.GaugeValue, a.SuccessRatePct)

	for _, info := range c.source.Endpoints() {
		if info.Health == nil {
			continue
		}
		h := info.Health
		blocked := 0.0
		if h.Blocked {
			blocked = 1
		}
		ch <- prometheus.MustNewConstMetric(c.endpointHealth, prometheus.GaugeValue, h.Health, info.ID)
		ch <- prometheus.MustNewConstMetric(c.endpointBlocked, prometheus.GaugeValue, blocked, info.ID)
		ch <- prometheus.MustNewConstMetric(c.endpointRequests, prometheus.GaugeValue, float64(h.SuccessCount), info.ID, "success")
		ch <- prometheus.MustNewConstMetric(c.endpointRequests, prometheus.GaugeValue, float64(h.FailureCount), info.ID, "failure")
	}
}
