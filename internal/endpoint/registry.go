package endpoint

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"github.com/rs/zerolog"

	"github.com/Resinat/Relayview/internal/clock"
)

const (
	maxHealth        = 100
	minHealth        = 0
	healthyThreshold = 30

	successHealthGain = 3
	failureHealthLoss = 8
	idleRecoveryGain  = 5
	reliableBonus     = 2

	DefaultBlockThreshold    = 3
	DefaultBlockCooldown     = 60 * time.Second
	DefaultIdleRecoveryAfter = 5 * time.Minute
)

var (
	ErrNoSelectableEndpoint = errors.New("catalog has no selectable endpoint")
	ErrDuplicateEndpoint    = errors.New("duplicate endpoint id")
	ErrEmptyEndpointID      = errors.New("endpoint id must not be empty")
)

// Config configures the Registry. Zero values select the defaults.
type Config struct {
	Clock             clock.Clock
	BlockThreshold    int
	BlockCooldown     time.Duration
	IdleRecoveryAfter time.Duration
	Log               zerolog.Logger
}

// record is the mutable state of one endpoint, serialized by its own mutex.
type record struct {
	mu       sync.Mutex
	endpoint Endpoint
	state    HealthRecord

	// cooldown auto-clears a block; blockSeq invalidates stale callbacks.
	cooldown clock.Timer
	blockSeq uint64
}

func (rec *record) baseline() HealthRecord {
	return HealthRecord{Health: clampHealth(rec.endpoint.BaseHealth)}
}

// Registry owns one health record per non-virtual endpoint. Records are
// created from the catalog and never destroyed. Every operation on an unknown
// id is a silent no-op.
type Registry struct {
	catalog []Endpoint
	byID    map[string]Endpoint
	records *xsync.Map[string, *record]

	clock             clock.Clock
	blockThreshold    int
	blockCooldown     time.Duration
	idleRecoveryAfter time.Duration
	log               zerolog.Logger
}

// NewRegistry creates a Registry from the static catalog. Catalog order is
// preserved and defines the degraded fallback.
func NewRegistry(catalog []Endpoint, cfg Config) (*Registry, error) {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	if cfg.BlockThreshold <= 0 {
		cfg.BlockThreshold = DefaultBlockThreshold
	}
	if cfg.BlockCooldown <= 0 {
		cfg.BlockCooldown = DefaultBlockCooldown
	}
	if cfg.IdleRecoveryAfter <= 0 {
		cfg.IdleRecoveryAfter = DefaultIdleRecoveryAfter
	}

	r := &Registry{
		catalog:           make([]Endpoint, 0, len(catalog)),
		byID:              make(map[string]Endpoint, len(catalog)),
		records:           xsync.NewMap[string, *record](),
		clock:             cfg.Clock,
		blockThreshold:    cfg.BlockThreshold,
		blockCooldown:     cfg.BlockCooldown,
		idleRecoveryAfter: cfg.IdleRecoveryAfter,
		log:               cfg.Log,
	}

	selectable := 0
	for _, ep := range catalog {
		if ep.ID == "" {
			return nil, ErrEmptyEndpointID
		}
		if _, dup := r.byID[ep.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateEndpoint, ep.ID)
		}
		r.catalog = append(r.catalog, ep)
		r.byID[ep.ID] = ep
		if ep.IsVirtual() {
			continue
		}
		rec := &record{endpoint: ep}
		rec.state = rec.baseline()
		r.records.Store(ep.ID, rec)
		selectable++
	}
	if selectable == 0 {
		return nil, ErrNoSelectableEndpoint
	}
	return r, nil
}

// Endpoints returns the catalog in configuration order.
func (r *Registry) Endpoints() []Endpoint {
	out := make([]Endpoint, len(r.catalog))
	copy(out, r.catalog)
	return out
}

// Endpoint looks up a catalog entry, virtual or not.
func (r *Registry) Endpoint(id string) (Endpoint, bool) {
	ep, ok := r.byID[id]
	return ep, ok
}

// Selectable reports whether id names a non-virtual endpoint.
func (r *Registry) Selectable(id string) bool {
	ep, ok := r.byID[id]
	return ok && !ep.IsVirtual()
}

// Fallback returns the first non-virtual endpoint in catalog order.
func (r *Registry) Fallback() Endpoint {
	for _, ep := range r.catalog {
		if !ep.IsVirtual() {
			return ep
		}
	}
	// Unreachable: NewRegistry rejects catalogs without a selectable endpoint.
	return Endpoint{}
}

// Health returns a copy of the endpoint's health record.
func (r *Registry) Health(id string) (HealthRecord, bool) {
	rec, ok := r.records.Load(id)
	if !ok {
		return HealthRecord{}, false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.state, true
}

// Range calls fn for every non-virtual endpoint in catalog order with a copy
// of its health record. Returning false stops iteration.
func (r *Registry) Range(fn func(ep Endpoint, h HealthRecord) bool) {
	for _, ep := range r.catalog {
		if ep.IsVirtual() {
			continue
		}
		h, ok := r.Health(ep.ID)
		if !ok {
			continue
		}
		if !fn(ep, h) {
			return
		}
	}
}

// Now exposes the registry clock to scorers that must agree with it.
func (r *Registry) Now() time.Time {
	return r.clock.Now()
}

// RecordOutcome folds one load attempt into the endpoint's health.
// responseTime is only meaningful for successes; zero leaves the average alone.
func (r *Registry) RecordOutcome(id string, success bool, responseTime time.Duration) {
	rec, ok := r.records.Load(id)
	if !ok {
		return
	}
	now := r.clock.Now()

	rec.mu.Lock()
	defer rec.mu.Unlock()

	st := &rec.state
	st.TotalRequests++
	st.LastUsedAt = now

	if success {
		wasBlocked := st.Blocked
		st.SuccessCount++
		st.ConsecutiveFailures = 0
		st.Health = clampHealth(st.Health + successHealthGain)
		st.Blocked = false
		st.BlockedUntil = time.Time{}
		r.cancelCooldownLocked(rec)
		if responseTime > 0 {
			if st.AvgResponseTime == 0 {
				st.AvgResponseTime = responseTime
			} else {
				st.AvgResponseTime = (st.AvgResponseTime + responseTime) / 2
			}
		}
		if wasBlocked {
			r.log.Info().Str("endpoint", id).Msg("endpoint unblocked by success")
		}
		return
	}

	st.FailureCount++
	st.ConsecutiveFailures++
	st.Health = clampHealth(st.Health - failureHealthLoss)
	if st.ConsecutiveFailures >= r.blockThreshold {
		if !st.Blocked {
			r.log.Warn().
				Str("endpoint", id).
				Int("consecutive_failures", st.ConsecutiveFailures).
				Dur("cooldown", r.blockCooldown).
				Msg("endpoint blocked")
		}
		st.Blocked = true
		r.armCooldownLocked(rec, now)
	}
}

// armCooldownLocked (re)schedules the block expiry. Caller holds rec.mu.
func (r *Registry) armCooldownLocked(rec *record, now time.Time) {
	r.cancelCooldownLocked(rec)
	seq := rec.blockSeq
	rec.state.BlockedUntil = now.Add(r.blockCooldown)
	rec.cooldown = r.clock.AfterFunc(r.blockCooldown, func() {
		r.expireBlock(rec, seq)
	})
}

// cancelCooldownLocked stops any pending expiry. Caller holds rec.mu.
func (r *Registry) cancelCooldownLocked(rec *record) {
	rec.blockSeq++
	if rec.cooldown != nil {
		rec.cooldown.Stop()
		rec.cooldown = nil
	}
}

func (r *Registry) expireBlock(rec *record, seq uint64) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.blockSeq != seq || !rec.state.Blocked {
		return
	}
	rec.state.Blocked = false
	rec.state.BlockedUntil = time.Time{}
	rec.state.ConsecutiveFailures = 0
	rec.cooldown = nil
	r.log.Info().Str("endpoint", rec.endpoint.ID).Msg("endpoint block cooldown elapsed")
}

// Recover applies gradual recovery. It is driven by an external scheduler.
func (r *Registry) Recover() {
	now := r.clock.Now()
	r.records.Range(func(id string, rec *record) bool {
		rec.mu.Lock()
		st := &rec.state
		if now.Sub(st.LastUsedAt) > r.idleRecoveryAfter {
			st.Health = clampHealth(st.Health + idleRecoveryGain)
			floor := 0
			if st.Blocked {
				floor = r.blockThreshold
			}
			if st.ConsecutiveFailures-1 >= floor {
				st.ConsecutiveFailures--
			}
		}
		if st.SuccessCount > 2*st.FailureCount {
			st.Health = clampHealth(st.Health + reliableBonus)
		}
		rec.mu.Unlock()
		return true
	})
}

// Reset restores an endpoint to its catalog baseline.
func (r *Registry) Reset(id string) {
	rec, ok := r.records.Load(id)
	if !ok {
		return
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	r.cancelCooldownLocked(rec)
	rec.state = rec.baseline()
	r.log.Info().Str("endpoint", id).Msg("endpoint reset to baseline")
}

// Info returns the combined view of one endpoint.
func (r *Registry) Info(id string) (Info, bool) {
	ep, ok := r.byID[id]
	if !ok {
		return Info{}, false
	}
	if ep.IsVirtual() {
		return newInfo(ep, nil), true
	}
	h, ok := r.Health(id)
	if !ok {
		return Info{}, false
	}
	return newInfo(ep, &h), true
}

// Infos returns Info for the whole catalog in configuration order.
func (r *Registry) Infos() []Info {
	out := make([]Info, 0, len(r.catalog))
	for _, ep := range r.catalog {
		if info, ok := r.Info(ep.ID); ok {
			out = append(out, info)
		}
	}
	return out
}

// Healthy returns the ids of healthy endpoints, best health first.
func (r *Registry) Healthy() []string {
	type item struct {
		id     string
		health float64
	}
	var items []item
	r.Range(func(ep Endpoint, h HealthRecord) bool {
		if h.IsHealthy() {
			items = append(items, item{id: ep.ID, health: h.Health})
		}
		return true
	})
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].health != items[j].health {
			return items[i].health > items[j].health
		}
		return items[i].id < items[j].id
	})
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.id
	}
	return ids
}

// Analytics sums request counters and classifies endpoints.
func (r *Registry) Analytics() Analytics {
	var a Analytics
	r.Range(func(_ Endpoint, h HealthRecord) bool {
		a.TotalRequests += h.TotalRequests
		a.TotalSuccesses += h.SuccessCount
		a.TotalFailures += h.FailureCount
		if h.IsHealthy() {
			a.HealthyCount++
		}
		if h.Blocked {
			a.BlockedCount++
		}
		return true
	})
	if a.TotalRequests > 0 {
		pct := float64(a.TotalSuccesses) / float64(a.TotalRequests) * 100
		a.SuccessRatePct = math.Round(pct*10) / 10
	}
	return a
}

// Close cancels pending cooldown callbacks.
func (r *Registry) Close() {
	r.records.Range(func(_ string, rec *record) bool {
		rec.mu.Lock()
		r.cancelCooldownLocked(rec)
		rec.mu.Unlock()
		return true
	})
}

func clampHealth(h float64) float64 {
	return math.Max(minHealth, math.Min(maxHealth, h))
}
