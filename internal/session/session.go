// Package session holds the per-video session records and the running
// global counters derived from them.
package session

import "time"

// Status is the lifecycle state of one embedded video session.
type Status string

const (
	StatusLoading  Status = "loading"
	StatusReady    Status = "ready"
	StatusRetrying Status = "retrying"
	StatusError    Status = "error"
)

// Options are the per-session playback and behaviour options.
type Options struct {
	Autoplay      bool `json:"autoplay"`
	Muted         bool `json:"muted"`
	Controls      bool `json:"controls"`
	HumanBehavior bool `json:"human_behavior"`
	StartAtSec    int  `json:"start_at_sec"`
	Loop          bool `json:"loop"`
}

// DefaultOptions returns the options used when a request carries none.
func DefaultOptions() Options {
	return Options{
		Autoplay:      true,
		Muted:         true,
		Controls:      true,
		HumanBehavior: true,
	}
}

// Stats are the per-session engagement counters.
type Stats struct {
	Views        int64         `json:"views"`
	WatchTimeSec int64         `json:"watch_time_sec"`
	Interactions int64         `json:"interactions"`
	Errors       int64         `json:"errors"`
	LoadTime     time.Duration `json:"load_time_ns"`
	IsPlaying    bool          `json:"is_playing"`
}

// Session is one tracked embedded video. The value holds no references, so
// a plain copy is a consistent snapshot.
type Session struct {
	ID              string    `json:"id"`
	FrameID         string    `json:"frame_id"`
	VideoRef        string    `json:"video_ref"`
	EndpointID      string    `json:"endpoint_id"`
	UserAgent       string    `json:"user_agent"`
	EmbedURL        string    `json:"embed_url"`
	Status          Status    `json:"status"`
	RetryCount      int       `json:"retry_count"`
	Stats           Stats     `json:"stats"`
	ViewDurationSec int       `json:"view_duration_sec"`
	Options         Options   `json:"options"`
	CreatedAt       time.Time `json:"created_at"`
}

// GlobalStats are running counters across all live sessions.
type GlobalStats struct {
	TotalViews        int64 `json:"total_views"`
	TotalWatchTimeSec int64 `json:"total_watch_time_sec"`
	TotalVideos       int   `json:"total_videos"`
	SessionsActive    int   `json:"sessions_active"`
}

// DetailedStats is the scan-based breakdown served alongside GlobalStats.
type DetailedStats struct {
	Global              GlobalStats    `json:"global"`
	EndpointUsage       map[string]int `json:"endpoint_usage"`
	StatusCounts        map[Status]int `json:"status_counts"`
	AverageWatchTimeSec int64          `json:"average_watch_time_sec"`
	AverageViews        int64          `json:"average_views"`
}
