// Package buildinfo holds version information injected at build time via ldflags.
package buildinfo

import "time"

// Set via -ldflags at build time:
//
//	go build -ldflags "-X github.com/Resinat/Relayview/internal/buildinfo.Version=1.0.0 ..."
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Info is the build and process identity reported by the API.
type Info struct {
	Version   string    `json:"version"`
	GitCommit string    `json:"git_commit"`
	BuildTime string    `json:"build_time"`
	StartedAt time.Time `json:"started_at"`
}

// Current returns the build info with the given process start time.
func Current(startedAt time.Time) Info {
	return Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildTime: BuildTime,
		StartedAt: startedAt,
	}
}
