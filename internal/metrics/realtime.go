package metrics

import (
	"sync"
	"time"
)

// RealtimeSample is a single point in the realtime ring buffer.
type RealtimeSample struct {
	Timestamp         time.Time `json:"ts"`
	SessionsActive    int       `json:"sessions_active"`
	TotalVideos       int       `json:"total_videos"`
	TotalViews        int64     `json:"total_views"`
	TotalWatchTimeSec int64     `json:"total_watch_time_sec"`
	HealthyEndpoints  int       `json:"healthy_endpoints"`
	BlockedEndpoints  int       `json:"blocked_endpoints"`
}

// RealtimeRing is a fixed-size ring buffer for realtime metric samples.
type RealtimeRing struct {
	mu      sync.RWMutex
	samples []RealtimeSample
	head    int
	count   int
	cap     int
}

// NewRealtimeRing creates a ring buffer with the given capacity.
func NewRealtimeRing(capacity int) *RealtimeRing {
	if capacity <= 0 {
		capacity = 720 // 1 hour at 5s interval
	}
	return &RealtimeRing{
		samples: make([]RealtimeSample, capacity),
		cap:     capacity,
	}
}

// Push adds a sample, overwriting the oldest if full.
func (r *RealtimeRing) Push(s RealtimeSample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples[r.head] = s
	r.head = (r.head + 1) % r.cap
	if r.count < r.cap {
		r.count++
	}
}

// Query returns samples within [from, to], newest first.
func (r *RealtimeRing) Query(from, to time.Time) []RealtimeSample {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := []RealtimeSample{}
	for i := 0; i < r.count; i++ {
		idx := (r.head - 1 - i + r.cap) % r.cap
		s := r.samples[idx]
		if s.Timestamp.Before(from) {
			break // chronological; stop early
		}
		if !s.Timestamp.After(to) {
			result = append(result, s)
		}
	}
	return result
}

// Latest returns the most recent sample.
func (r *RealtimeRing) Latest() (RealtimeSample, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.count == 0 {
		return RealtimeSample{}, false
	}
	idx := (r.head - 1 + r.cap) % r.cap
	return r.samples[idx], true
}

// Sampler pushes a StatsSource snapshot into a ring at a fixed interval.
type Sampler struct {
	source   StatsSource
	ring     *RealtimeRing
	interval time.Duration
	now      func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewSampler creates a stopped sampler. A non-positive interval defaults to 5s.
func NewSampler(source StatsSource, ring *RealtimeRing, interval time.Duration) *Sampler {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Sampler{
		source:   source,
		ring:     ring,
		interval: interval,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Ring returns the ring the sampler writes to.
func (s *Sampler) Ring() *RealtimeRing { return s.ring }

// Interval returns the sampling step.
func (s *Sampler) Interval() time.Duration { return s.interval }

// Start launches the sampling loop.
func (s *Sampler) Start() {
	s.wg.Add(1)
	go s.loop()
}

// Stop ends the sampling loop and waits for it.
func (s *Sampler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

func (s *Sampler) loop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.SampleNow()
		}
	}
}

// SampleNow takes one sample immediately.
func (s *Sampler) SampleNow() RealtimeSample {
	g := s.source.GlobalStats()
	a := s.source.ProxyAnalytics()
	sample := RealtimeSample{
		Timestamp:         s.now(),
		SessionsActive:    g.SessionsActive,
		TotalVideos:       g.TotalVideos,
		TotalViews:        g.TotalViews,
		TotalWatchTimeSec: g.TotalWatchTimeSec,
		HealthyEndpoints:  a.HealthyCount,
		BlockedEndpoints:  a.BlockedCount,
	}
	s.ring.Push(sample)
	return sample
}
