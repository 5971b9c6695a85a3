// Package orchestrator drives every embedded video session through its
// load, play, retry and error lifecycle.
//
// The Orchestrator is a single coordinating actor: one mutex serializes
// inbound signals, control commands and every timer callback, so each runs to
// completion against a consistent view of the store. Events produced inside
// the critical section are published after it is left, in production order.
package orchestrator

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/zeebo/xxh3"

	"github.com/Resinat/Relayview/internal/clock"
	"github.com/Resinat/Relayview/internal/endpoint"
	"github.com/Resinat/Relayview/internal/events"
	"github.com/Resinat/Relayview/internal/routing"
	"github.com/Resinat/Relayview/internal/session"
	"github.com/Resinat/Relayview/internal/surface"
)

const (
	DefaultLoadTimeout     = 15 * time.Second
	DefaultMaxRetries      = 3
	DefaultRetryBackoffMin = 2 * time.Second
	DefaultRetryBackoffMax = 5 * time.Second
	DefaultTickInterval    = time.Second
	DefaultViewEverySec    = 30
)

var ErrInvalidDescriptor = errors.New("invalid session descriptor")

// Config configures an Orchestrator. Zero values select the defaults.
type Config struct {
	Clock           clock.Clock
	LoadTimeout     time.Duration
	MaxRetries      int
	RetryBackoffMin time.Duration
	RetryBackoffMax time.Duration
	TickInterval    time.Duration
	ViewEverySec    int64

	// EmbedOrigin is the origin of the page hosting the frames.
	EmbedOrigin string
	// UserAgents is the pool a session's user agent is drawn from.
	UserAgents []string
	// Behavior is the synthetic interaction schedule. Nil selects
	// surface.DefaultBehavior; an empty non-nil slice disables it.
	Behavior []surface.BehaviorStep

	// Rand drives retry jitter and synthetic event parameters.
	Rand *rand.Rand
	Log  zerolog.Logger
}

// Descriptor is a request for a new session.
type Descriptor struct {
	VideoRef string
	// EndpointID names a catalog endpoint. Empty, unknown or virtual ids
	// select automatically.
	EndpointID string
	// ViewDurationSec caps accrued watch time. Non-positive means no cap.
	ViewDurationSec int
	// Options nil selects session.DefaultOptions.
	Options *session.Options
	// FrameID addresses the frame on the surface. Empty derives one from the id.
	FrameID string
}

// Handle identifies a created session.
type Handle struct {
	ID         string `json:"id"`
	FrameID    string `json:"frame_id"`
	EndpointID string `json:"endpoint_id"`
	EmbedURL   string `json:"embed_url"`
	UserAgent  string `json:"user_agent"`
	// Degraded reports that no endpoint was eligible and the static
	// fallback was assigned.
	Degraded bool `json:"degraded"`
}

// runtime is the orchestrator-private state of one live session.
type runtime struct {
	sess *session.Session

	// attempt increments on every load attempt; stale timeouts compare it.
	attempt       uint64
	loadStartedAt time.Time

	loadTimer  clock.Timer
	retryTimer clock.Timer
	tickTimer  clock.Timer
	behavior   []clock.Timer
	ticking    bool
}

type Orchestrator struct {
	mu         sync.Mutex
	live       map[string]*runtime
	pending    []events.Event
	publishing bool

	registry *endpoint.Registry
	selector *routing.Selector
	store    *session.Store
	bus      *events.Bus
	surface  surface.Surface

	clock           clock.Clock
	loadTimeout     time.Duration
	maxRetries      int
	retryBackoffMin time.Duration
	retryBackoffMax time.Duration
	tickInterval    time.Duration
	viewEverySec    int64
	embedOrigin     string
	userAgents      []string
	behavior        []surface.BehaviorStep
	rng             *rand.Rand
	log             zerolog.Logger
}

// New wires an Orchestrator over explicitly constructed collaborators.
func New(
	registry *endpoint.Registry,
	selector *routing.Selector,
	store *session.Store,
	bus *events.Bus,
	surf surface.Surface,
	cfg Config,
) *Orchestrator {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = DefaultLoadTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.RetryBackoffMin <= 0 {
		cfg.RetryBackoffMin = DefaultRetryBackoffMin
	}
	if cfg.RetryBackoffMax < cfg.RetryBackoffMin {
		cfg.RetryBackoffMax = max(DefaultRetryBackoffMax, cfg.RetryBackoffMin)
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.ViewEverySec <= 0 {
		cfg.ViewEverySec = DefaultViewEverySec
	}
	if cfg.Behavior == nil {
		cfg.Behavior = surface.DefaultBehavior
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	return &Orchestrator{
		live:            make(map[string]*runtime),
		registry:        registry,
		selector:        selector,
		store:           store,
		bus:             bus,
		surface:         surf,
		clock:           cfg.Clock,
		loadTimeout:     cfg.LoadTimeout,
		maxRetries:      cfg.MaxRetries,
		retryBackoffMin: cfg.RetryBackoffMin,
		retryBackoffMax: cfg.RetryBackoffMax,
		tickInterval:    cfg.TickInterval,
		viewEverySec:    cfg.ViewEverySec,
		embedOrigin:     cfg.EmbedOrigin,
		userAgents:      cfg.UserAgents,
		behavior:        cfg.Behavior,
		rng:             cfg.Rand,
		log:             cfg.Log,
	}
}

func (o *Orchestrator) lock() {
	o.mu.Lock()
}

// unlock leaves the critical section and publishes pending events. Only one
// goroutine drains at a time, so listeners see events in production order
// across critical sections. Events produced while a drain runs, including by
// listeners calling back in, are published by the draining goroutine.
func (o *Orchestrator) unlock() {
	if o.publishing || len(o.pending) == 0 {
		o.mu.Unlock()
		return
	}
	o.publishing = true
	for len(o.pending) > 0 {
		batch := o.pending
		o.pending = nil
		o.mu.Unlock()
		for _, ev := range batch {
			o.bus.Publish(ev)
		}
		o.mu.Lock()
	}
	o.publishing = false
	o.mu.Unlock()
}

func (o *Orchestrator) emitLocked(typ events.Type, sess *session.Session, cmd surface.Command) {
	ev := events.Event{Type: typ, Command: string(cmd), At: o.clock.Now()}
	if sess != nil {
		snap := *sess
		ev.Session = &snap
	}
	o.pending = append(o.pending, ev)
}

// currentLocked reports whether rt still backs a live session.
func (o *Orchestrator) currentLocked(rt *runtime) bool {
	return o.live[rt.sess.ID] == rt
}

// CreateSession registers a new session in Loading and arms its load timeout.
// The only error is an invalid descriptor; endpoint unavailability degrades
// to the static fallback instead.
func (o *Orchestrator) CreateSession(d Descriptor) (Handle, error) {
	videoRef := strings.TrimSpace(d.VideoRef)
	if videoRef == "" {
		return Handle{}, fmt.Errorf("%w: video ref is required", ErrInvalidDescriptor)
	}
	opts := session.DefaultOptions()
	if d.Options != nil {
		opts = *d.Options
	}
	if opts.StartAtSec < 0 {
		return Handle{}, fmt.Errorf("%w: start offset must not be negative", ErrInvalidDescriptor)
	}

	o.lock()
	defer o.unlock()

	id := uuid.New().String()
	frameID := strings.TrimSpace(d.FrameID)
	if frameID == "" {
		frameID = "frame-" + id
	}
	sel := o.resolveEndpointLocked(d.EndpointID)

	sess := &session.Session{
		ID:              id,
		FrameID:         frameID,
		VideoRef:        videoRef,
		EndpointID:      sel.EndpointID,
		UserAgent:       o.pickUserAgent(id),
		Status:          session.StatusLoading,
		ViewDurationSec: d.ViewDurationSec,
		Options:         opts,
		CreatedAt:       o.clock.Now(),
	}
	sess.EmbedURL = o.embedURL(sess)
	if !o.store.Put(sess) {
		// uuid collision; nothing was registered.
		return Handle{}, fmt.Errorf("session id %s already exists", id)
	}
	rt := &runtime{sess: sess}
	o.live[id] = rt
	o.startAttemptLocked(rt)

	if sel.Degraded {
		o.log.Warn().Str("session", id).Str("endpoint", sel.EndpointID).Msg("no eligible endpoint, using fallback")
	}
	o.log.Debug().Str("session", id).Str("endpoint", sel.EndpointID).Str("video", videoRef).Msg("session created")
	o.emitLocked(events.VideoCreated, sess, "")

	return Handle{
		ID:         id,
		FrameID:    frameID,
		EndpointID: sel.EndpointID,
		EmbedURL:   sess.EmbedURL,
		UserAgent:  sess.UserAgent,
		Degraded:   sel.Degraded,
	}, nil
}

// resolveEndpointLocked honours an explicit selectable endpoint and
// auto-selects otherwise.
func (o *Orchestrator) resolveEndpointLocked(requested string) routing.Selection {
	requested = strings.TrimSpace(requested)
	if requested != "" && o.registry.Selectable(requested) {
		return routing.Selection{EndpointID: requested}
	}
	return o.selector.SelectOptimal()
}

// pickUserAgent maps a session id onto the pool with a stable hash.
func (o *Orchestrator) pickUserAgent(id string) string {
	if len(o.userAgents) == 0 {
		return ""
	}
	return o.userAgents[xxh3.HashString(id)%uint64(len(o.userAgents))]
}

func (o *Orchestrator) embedURL(sess *session.Session) string {
	ep, _ := o.registry.Endpoint(sess.EndpointID)
	return surface.BuildEmbedURL(ep.EmbedPrefix, sess.VideoRef, surface.EmbedParams{
		Autoplay:   sess.Options.Autoplay,
		Muted:      sess.Options.Muted,
		Controls:   sess.Options.Controls,
		StartAtSec: sess.Options.StartAtSec,
		Loop:       sess.Options.Loop,
		Origin:     o.embedOrigin,
	})
}

// Subscribe registers a listener on the event bus.
func (o *Orchestrator) Subscribe(fn events.Listener) (unsubscribe func()) {
	return o.bus.Subscribe(fn)
}

// Close cancels every pending timer. Sessions stay in the store.
func (o *Orchestrator) Close() {
	o.lock()
	for _, rt := range o.live {
		o.cancelTimersLocked(rt)
	}
	o.unlock()
	o.registry.Close()
}
