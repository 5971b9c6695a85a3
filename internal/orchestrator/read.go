package orchestrator

import (
	"github.com/Resinat/Relayview/internal/endpoint"
	"github.com/Resinat/Relayview/internal/session"
)

// GlobalStats returns the running counters.
func (o *Orchestrator) GlobalStats() session.GlobalStats {
	o.lock()
	defer o.unlock()
	return o.store.Global()
}

// ProxyAnalytics aggregates the endpoint registry.
func (o *Orchestrator) ProxyAnalytics() endpoint.Analytics {
	return o.registry.Analytics()
}

// DetailedStats adds per-endpoint usage, per-status counts and averages to
// the global counters.
func (o *Orchestrator) DetailedStats() session.DetailedStats {
	o.lock()
	defer o.unlock()
	return o.store.Detailed()
}

// Session returns a snapshot of a live session.
func (o *Orchestrator) Session(id string) (session.Session, bool) {
	o.lock()
	defer o.unlock()
	rt, ok := o.live[id]
	if !ok {
		return session.Session{}, false
	}
	return *rt.sess, true
}

// Sessions returns snapshots of every live session, oldest first.
func (o *Orchestrator) Sessions() []session.Session {
	o.lock()
	defer o.unlock()
	list := o.store.List()
	out := make([]session.Session, len(list))
	for i, sess := range list {
		out[i] = *sess
	}
	return out
}

// SessionStats returns a copy of one session's counters.
func (o *Orchestrator) SessionStats(id string) (session.Stats, bool) {
	sess, ok := o.Session(id)
	if !ok {
		return session.Stats{}, false
	}
	return sess.Stats, true
}

// History returns the final snapshot of a removed session.
func (o *Orchestrator) History(id string) (session.Session, bool) {
	return o.store.History(id)
}

// Endpoint returns the static and health view of one endpoint.
func (o *Orchestrator) Endpoint(id string) (endpoint.Info, bool) {
	return o.registry.Info(id)
}

// Endpoints returns every catalog endpoint in configuration order.
func (o *Orchestrator) Endpoints() []endpoint.Info {
	return o.registry.Infos()
}

// HealthyEndpoints returns healthy endpoint ids, best first.
func (o *Orchestrator) HealthyEndpoints() []string {
	return o.registry.Healthy()
}
