package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/Resinat/Relayview/internal/endpoint"
	"github.com/Resinat/Relayview/internal/events"
	"github.com/Resinat/Relayview/internal/session"
)

type staticSource struct {
	global    session.GlobalStats
	analytics endpoint.Analytics
	endpoints []endpoint.Info
}

func (s *staticSource) GlobalStats() session.GlobalStats   { return s.global }
func (s *staticSource) ProxyAnalytics() endpoint.Analytics { return s.analytics }
func (s *staticSource) Endpoints() []endpoint.Info         { return s.endpoints }

func newTestSource() *staticSource {
	return &staticSource{
		global:    session.GlobalStats{TotalViews: 4, TotalWatchTimeSec: 125, TotalVideos: 3, SessionsActive: 2},
		analytics: endpoint.Analytics{TotalRequests: 10, TotalSuccesses: 9, TotalFailures: 1, SuccessRatePct: 90, HealthyCount: 2, BlockedCount: 1},
		endpoints: []endpoint.Info{
			{ID: "auto", Virtual: true},
			{ID: "noproxy", Health: &endpoint.HealthRecord{Health: 97, SuccessCount: 9}},
			{ID: "piped", Health: &endpoint.HealthRecord{Health: 71, FailureCount: 3, Blocked: true}},
		},
	}
}

func TestCollector_EventCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg, nil)
	bus := events.NewBus(zerolog.Nop())
	bus.Subscribe(c.Listener())

	loaded := &session.Session{EndpointID: "noproxy", Stats: session.Stats{LoadTime: 1500 * time.Millisecond}}
	bus.Publish(events.Event{Type: events.VideoCreated, Session: &session.Session{}})
	bus.Publish(events.Event{Type: events.VideoLoaded, Session: loaded})
	bus.Publish(events.Event{Type: events.VideoCommand, Session: loaded, Command: "playVideo"})
	bus.Publish(events.Event{Type: events.VideoCommand, Session: loaded, Command: "playVideo"})
	bus.Publish(events.Event{Type: events.AllCleared})

	if got := testutil.ToFloat64(c.events.WithLabelValues("videoCommand")); got != 2 {
		t.Fatalf("videoCommand events: got %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.events.WithLabelValues("allCleared")); got != 1 {
		t.Fatalf("allCleared events: got %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.commands.WithLabelValues("playVideo")); got != 2 {
		t.Fatalf("playVideo commands: got %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.loads.WithLabelValues("noproxy")); got != 1 {
		t.Fatalf("noproxy loads: got %v, want 1", got)
	}
	if bus.Failures() != 0 {
		t.Fatalf("listener failures: %d", bus.Failures())
	}
}

func TestCollector_ScrapeGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector(reg, newTestSource())

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	values := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			key := mf.GetName()
			for _, lp := range m.GetLabel() {
				key += "|" + lp.GetValue()
			}
			if m.GetGauge() != nil {
				values[key] = m.GetGauge().GetValue()
			}
		}
	}

	want := map[string]float64{
		"relayview_sessions_active":                   2,
		"relayview_videos":                            3,
		"relayview_views":                             4,
		"relayview_watch_seconds":                     125,
		"relayview_endpoints_healthy":                 2,
		"relayview_endpoints_blocked":                 1,
		"relayview_endpoint_success_rate_pct":         90,
		"relayview_endpoint_health|noproxy":           97,
		"relayview_endpoint_health|piped":             71,
		"relayview_endpoint_blocked|piped":            1,
		"relayview_endpoint_blocked|noproxy":          0,
		"relayview_endpoint_requests|noproxy|success": 9,
		"relayview_endpoint_requests|piped|failure":   3,
	}
	for k, v := range want {
		got, ok := values[k]
		if !ok {
			t.Errorf("missing %s", k)
			continue
		}
		if got != v {
			t.Errorf("%s: got %v, want %v", k, got, v)
		}
	}
	if _, ok := values["relayview_endpoint_health|auto"]; ok {
		t.Error("virtual endpoint should not be exported")
	}
}

func TestRealtimeRing_QueryNewestFirst(t *testing.T) {
	r := NewRealtimeRing(3)
	base := time.Unix(1_700_000_000, 0)
	for i := 0; i < 4; i++ {
		r.Push(RealtimeSample{Timestamp: base.Add(time.Duration(i) * time.Second), TotalViews: int64(i)})
	}

	all := r.Query(base, base.Add(time.Hour))
	if len(all) != 3 {
		t.Fatalf("len: got %d, want 3", len(all))
	}
	if all[0].TotalViews != 3 || all[2].TotalViews != 1 {
		t.Fatalf("unexpected order: %+v", all)
	}

	window := r.Query(base.Add(2*time.Second), base.Add(2*time.Second))
	if len(window) != 1 || window[0].TotalViews != 2 {
		t.Fatalf("window: %+v", window)
	}

	latest, ok := r.Latest()
	if !ok || latest.TotalViews != 3 {
		t.Fatalf("latest: %+v %v", latest, ok)
	}
	if _, ok := NewRealtimeRing(1).Latest(); ok {
		t.Fatal("empty ring should have no latest sample")
	}
}

func TestSampler_SampleNow(t *testing.T) {
	ring := NewRealtimeRing(10)
	s := NewSampler(newTestSource(), ring, time.Hour)
	fixed := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return fixed }

	got := s.SampleNow()
	want := RealtimeSample{
		Timestamp:         fixed,
		SessionsActive:    2,
		TotalVideos:       3,
		TotalViews:        4,
		TotalWatchTimeSec: 125,
		HealthyEndpoints:  2,
		BlockedEndpoints:  1,
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	if latest, _ := s.Ring().Latest(); latest != want {
		t.Fatalf("ring latest: %+v", latest)
	}

	s.Start()
	s.Stop()
	s.Stop()
}

type staticBridge struct {
	pages   int
	dropped int64
}

func (b *staticBridge) Len() int       { return b.pages }
func (b *staticBridge) Dropped() int64 { return b.dropped }

func TestRegisterBridge(t *testing.T) {
	reg := prometheus.NewRegistry()
	b := &staticBridge{pages: 2, dropped: 5}
	RegisterBridge(reg, b)

	b.dropped = 7
	want := `
# HELP relayview_bridge_dropped_messages_total Outbound page messages dropped on full send buffers
# TYPE relayview_bridge_dropped_messages_total counter
relayview_bridge_dropped_messages_total 7
# HELP relayview_bridge_pages Pages connected to the frame bridge
# TYPE relayview_bridge_pages gauge
relayview_bridge_pages 2
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(want),
		"relayview_bridge_dropped_messages_total", "relayview_bridge_pages"); err != nil {
		t.Fatal(err)
	}
}
