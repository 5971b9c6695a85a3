// Package routing chooses the relay endpoint for new and retried sessions.
package routing

import (
	"math"
	"time"

	"github.com/Resinat/Relayview/internal/endpoint"
)

// Score weights. They sum to 1.
const (
	weightHealth         = 0.30
	weightSuccessRate    = 0.25
	weightLoadBalance    = 0.20
	weightFailurePenalty = 0.15
	weightSpeed          = 0.10

	neutralSuccessRate = 0.5
	neutralSpeedFactor = 15.0
	loadBalanceUnit    = 10 * time.Second
	loadBalanceCap     = 50.0
)

// Selection is the outcome of SelectOptimal.
type Selection struct {
	EndpointID string
	Score      float64
	// Degraded is set when no candidate was eligible and the static
	// fallback was returned instead.
	Degraded bool
}

// Selector is a stateless scorer over the health registry.
type Selector struct {
	registry *endpoint.Registry
}

func NewSelector(registry *endpoint.Registry) *Selector {
	return &Selector{registry: registry}
}

// SelectOptimal returns the best scoring endpoint that is selectable, not
// blocked and not excluded. It never fails: with no eligible candidate the
// first configured non-virtual endpoint is returned with Degraded set.
// Equal scores resolve to the lexicographically smallest id.
func (s *Selector) SelectOptimal(exclude ...string) Selection {
	excluded := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		excluded[id] = struct{}{}
	}

	now := s.registry.Now()
	best := Selection{Score: math.Inf(-1)}
	found := false
	s.registry.Range(func(ep endpoint.Endpoint, h endpoint.HealthRecord) bool {
		if _, skip := excluded[ep.ID]; skip || h.Blocked {
			return true
		}
		score := Score(h, now)
		if !found || score > best.Score || (score == best.Score && ep.ID < best.EndpointID) {
			best = Selection{EndpointID: ep.ID, Score: score}
			found = true
		}
		return true
	})
	if found {
		return best
	}

	fallback := s.registry.Fallback()
	return Selection{EndpointID: fallback.ID, Degraded: true}
}

// Score computes the weighted desirability of one endpoint. Higher is better.
func Score(h endpoint.HealthRecord, now time.Time) float64 {
	successRate := neutralSuccessRate
	if h.TotalRequests > 0 {
		successRate = float64(h.SuccessCount) / float64(h.TotalRequests)
	}

	idle := now.Sub(h.LastUsedAt)
	loadBalance := math.Min(float64(idle)/float64(loadBalanceUnit), loadBalanceCap)
	if loadBalance < 0 {
		loadBalance = 0
	}

	failurePenalty := math.Max(0, 20-10*float64(h.ConsecutiveFailures))

	speedFactor := neutralSpeedFactor
	if h.AvgResponseTime > 0 {
		speedFactor = math.Max(0, 30-h.AvgResponseTime.Seconds())
	}

	return weightHealth*h.Health +
		weightSuccessRate*successRate*100 +
		weightLoadBalance*loadBalance +
		weightFailurePenalty*failurePenalty +
		weightSpeed*speedFactor
}
