package orchestrator

import (
	"github.com/Resinat/Relayview/internal/events"
	"github.com/Resinat/Relayview/internal/surface"
)

// ControlSession dispatches cmd to the session's frame. It reports false for
// an unknown session, an unsupported command or a failed dispatch.
func (o *Orchestrator) ControlSession(id string, cmd surface.Command) bool {
	if !cmd.Valid() {
		return false
	}
	o.lock()
	defer o.unlock()

	rt, ok := o.live[id]
	if !ok {
		return false
	}
	return o.controlLocked(rt, cmd)
}

// ControlAll dispatches cmd to every session and returns the number of
// successful dispatches.
func (o *Orchestrator) ControlAll(cmd surface.Command) int {
	if !cmd.Valid() {
		return 0
	}
	o.lock()
	defer o.unlock()

	n := 0
	for _, sess := range o.store.List() {
		rt, ok := o.live[sess.ID]
		if !ok {
			continue
		}
		if o.controlLocked(rt, cmd) {
			n++
		}
	}
	return n
}

func (o *Orchestrator) controlLocked(rt *runtime, cmd surface.Command) bool {
	sess := rt.sess
	if err := o.surface.Dispatch(sess.FrameID, cmd); err != nil {
		o.log.Debug().Err(err).Str("session", sess.ID).Str("command", string(cmd)).Msg("command dispatch failed")
		return false
	}
	sess.Stats.Interactions++
	switch cmd {
	case surface.PlayVideo:
		sess.Stats.IsPlaying = true
	case surface.PauseVideo:
		sess.Stats.IsPlaying = false
	}
	o.emitLocked(events.VideoCommand, sess, cmd)
	return true
}

// RemoveSession cancels every timer of the session and deletes it. It
// reports false for an unknown id.
func (o *Orchestrator) RemoveSession(id string) bool {
	o.lock()
	defer o.unlock()

	rt, ok := o.live[id]
	if !ok {
		return false
	}
	if o.cancelTimersLocked(rt) {
		o.store.TickStopped()
	}
	delete(o.live, id)
	o.store.Delete(id)

	o.log.Debug().Str("session", id).Msg("session removed")
	o.emitLocked(events.VideoRemoved, rt.sess, "")
	return true
}

// ClearAll cancels every timer, removes every session and zeroes the global
// counters in one critical section.
func (o *Orchestrator) ClearAll() {
	o.lock()
	defer o.unlock()

	for _, rt := range o.live {
		o.cancelTimersLocked(rt)
	}
	n := len(o.live)
	o.live = make(map[string]*runtime)
	o.store.Clear()

	o.log.Info().Int("sessions", n).Msg("all sessions cleared")
	o.emitLocked(events.AllCleared, nil, "")
}

// OptimizeAll runs one gradual recovery pass over the endpoint registry.
func (o *Orchestrator) OptimizeAll() {
	o.registry.Recover()
}

// ResetEndpoint restores an endpoint to its catalog baseline. It reports
// false when id does not name a selectable endpoint.
func (o *Orchestrator) ResetEndpoint(id string) bool {
	if !o.registry.Selectable(id) {
		return false
	}
	o.registry.Reset(id)
	return true
}
