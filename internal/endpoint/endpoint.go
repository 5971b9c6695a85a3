// Package endpoint provides the relay endpoint catalog and the per-endpoint
// health registry used to gate and score endpoint selection.
package endpoint

import (
	"time"

	"github.com/Resinat/Relayview/internal/netutil"
)

// AutoID is the conventional id of the virtual "pick for me" endpoint.
const AutoID = "auto"

// Endpoint is a statically configured relay. An empty EmbedPrefix marks a
// virtual selector entry that is never itself selectable.
type Endpoint struct {
	ID          string  `json:"id" yaml:"id"`
	Name        string  `json:"name" yaml:"name"`
	EmbedPrefix string  `json:"embed_prefix" yaml:"embed"`
	BaseHealth  float64 `json:"base_health" yaml:"health"`
	Priority    int     `json:"priority" yaml:"priority"`
}

// IsVirtual reports whether the endpoint is a selector placeholder.
func (e Endpoint) IsVirtual() bool {
	return e.EmbedPrefix == ""
}

// HealthRecord is a point-in-time copy of one endpoint's mutable health state.
type HealthRecord struct {
	Health              float64       `json:"health"`
	LastUsedAt          time.Time     `json:"last_used_at"`
	SuccessCount        int64         `json:"success_count"`
	FailureCount        int64         `json:"failure_count"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	AvgResponseTime     time.Duration `json:"avg_response_time_ns"`
	TotalRequests       int64         `json:"total_requests"`
	Blocked             bool          `json:"blocked"`
	BlockedUntil        time.Time     `json:"blocked_until"`
}

// IsHealthy is the analytics notion of a usable endpoint.
func (h HealthRecord) IsHealthy() bool {
	return h.Health > healthyThreshold && !h.Blocked
}

// Info is the combined static and health view of one endpoint.
type Info struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	EmbedPrefix string        `json:"embed_prefix"`
	Domain      string        `json:"domain"`
	Priority    int           `json:"priority"`
	BaseHealth  float64       `json:"base_health"`
	Virtual     bool          `json:"virtual"`
	Health      *HealthRecord `json:"health,omitempty"` // nil for virtual endpoints
}

func newInfo(ep Endpoint, h *HealthRecord) Info {
	info := Info{
		ID:          ep.ID,
		Name:        ep.Name,
		EmbedPrefix: ep.EmbedPrefix,
		Priority:    ep.Priority,
		BaseHealth:  ep.BaseHealth,
		Virtual:     ep.IsVirtual(),
		Health:      h,
	}
	if !info.Virtual {
		info.Domain = netutil.ExtractDomain(ep.EmbedPrefix)
	}
	return info
}

// Analytics aggregates the registry at read time.
type Analytics struct {
	TotalRequests  int64   `json:"total_requests"`
	TotalSuccesses int64   `json:"total_successes"`
	TotalFailures  int64   `json:"total_failures"`
	SuccessRatePct float64 `json:"success_rate_pct"`
	HealthyCount   int     `json:"healthy_count"`
	BlockedCount   int     `json:"blocked_count"`
}
