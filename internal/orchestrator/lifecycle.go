package orchestrator

import (
	"time"

	"github.com/Resinat/Relayview/internal/clock"
	"github.com/Resinat/Relayview/internal/events"
	"github.com/Resinat/Relayview/internal/session"
	"github.com/Resinat/Relayview/internal/surface"
)

// startAttemptLocked begins a load attempt on the session's current endpoint.
func (o *Orchestrator) startAttemptLocked(rt *runtime) {
	rt.attempt++
	attempt := rt.attempt
	rt.loadStartedAt = o.clock.Now()
	stopTimer(rt.loadTimer)
	rt.loadTimer = o.clock.AfterFunc(o.loadTimeout, func() {
		o.onLoadTimeout(rt, attempt)
	})
}

// Loaded handles the surface's load signal. elapsed <= 0 measures the load
// time from the start of the current attempt. It reports whether the signal
// caused a transition; signals for unknown or non-loading sessions are ignored.
func (o *Orchestrator) Loaded(id string, elapsed time.Duration) bool {
	o.lock()
	defer o.unlock()

	rt, ok := o.live[id]
	if !ok || rt.sess.Status != session.StatusLoading {
		return false
	}
	sess := rt.sess
	if elapsed <= 0 {
		elapsed = o.clock.Now().Sub(rt.loadStartedAt)
	}
	stopTimer(rt.loadTimer)
	rt.loadTimer = nil

	sess.Stats.LoadTime = elapsed
	sess.Status = session.StatusReady
	o.registry.RecordOutcome(sess.EndpointID, true, elapsed)

	o.startTickLocked(rt)
	o.startBehaviorLocked(rt)

	o.log.Debug().
		Str("session", sess.ID).
		Str("endpoint", sess.EndpointID).
		Dur("load_time", elapsed).
		Msg("session loaded")
	o.emitLocked(events.VideoLoaded, sess, "")
	return true
}

// Failed handles the surface's failure signal. It reports whether the signal
// caused a transition.
func (o *Orchestrator) Failed(id string) bool {
	o.lock()
	defer o.unlock()

	rt, ok := o.live[id]
	if !ok || rt.sess.Status != session.StatusLoading {
		return false
	}
	o.failLocked(rt)
	return true
}

func (o *Orchestrator) onLoadTimeout(rt *runtime, attempt uint64) {
	o.lock()
	defer o.unlock()

	if !o.currentLocked(rt) || rt.attempt != attempt || rt.sess.Status != session.StatusLoading {
		return
	}
	rt.loadTimer = nil
	o.log.Debug().
		Str("session", rt.sess.ID).
		Str("endpoint", rt.sess.EndpointID).
		Dur("timeout", o.loadTimeout).
		Msg("session load timed out")
	o.failLocked(rt)
}

// failLocked records a failed attempt and either schedules a retry on another
// endpoint or ends the session in Error.
func (o *Orchestrator) failLocked(rt *runtime) {
	sess := rt.sess
	stopTimer(rt.loadTimer)
	rt.loadTimer = nil

	sess.Stats.Errors++
	sess.Status = session.StatusError
	o.registry.RecordOutcome(sess.EndpointID, false, 0)

	if sess.RetryCount >= o.maxRetries {
		o.log.Warn().
			Str("session", sess.ID).
			Str("endpoint", sess.EndpointID).
			Int("retries", sess.RetryCount).
			Msg("session failed, retries exhausted")
		o.emitLocked(events.VideoError, sess, "")
		return
	}

	failed := sess.EndpointID
	sess.RetryCount++
	sess.Status = session.StatusRetrying
	sel := o.selector.SelectOptimal(failed)
	sess.EndpointID = sel.EndpointID

	backoff := o.retryBackoffLocked()
	rt.retryTimer = o.clock.AfterFunc(backoff, func() {
		o.onRetryDue(rt)
	})
	o.log.Info().
		Str("session", sess.ID).
		Str("failed_endpoint", failed).
		Str("next_endpoint", sel.EndpointID).
		Bool("degraded", sel.Degraded).
		Int("retry", sess.RetryCount).
		Dur("backoff", backoff).
		Msg("session load failed, retrying")
}

// retryBackoffLocked draws a uniform jittered delay at millisecond
// granularity, bounds inclusive.
func (o *Orchestrator) retryBackoffLocked() time.Duration {
	minMs := o.retryBackoffMin.Milliseconds()
	maxMs := o.retryBackoffMax.Milliseconds()
	if maxMs <= minMs {
		return o.retryBackoffMin
	}
	return time.Duration(minMs+o.rng.Int64N(maxMs-minMs+1)) * time.Millisecond
}

func (o *Orchestrator) onRetryDue(rt *runtime) {
	o.lock()
	defer o.unlock()

	if !o.currentLocked(rt) || rt.sess.Status != session.StatusRetrying {
		return
	}
	rt.retryTimer = nil
	sess := rt.sess
	sess.Status = session.StatusLoading
	sess.EmbedURL = o.embedURL(sess)
	o.startAttemptLocked(rt)
	o.emitLocked(events.VideoRetry, sess, "")
}

func (o *Orchestrator) startTickLocked(rt *runtime) {
	if rt.ticking {
		return
	}
	rt.ticking = true
	o.store.TickStarted()
	o.armTickLocked(rt)
}

func (o *Orchestrator) armTickLocked(rt *runtime) {
	rt.tickTimer = o.clock.AfterFunc(o.tickInterval, func() {
		o.onTick(rt)
	})
}

// onTick accrues one second of watch time while playing and derives views.
// Ticking ends once the watch time reaches the view duration.
func (o *Orchestrator) onTick(rt *runtime) {
	o.lock()
	defer o.unlock()

	if !o.currentLocked(rt) || !rt.ticking {
		return
	}
	sess := rt.sess
	if sess.Stats.IsPlaying {
		sess.Stats.WatchTimeSec++
		o.store.AddWatchSecond()
		if sess.Stats.WatchTimeSec%o.viewEverySec == 0 {
			sess.Stats.Views++
			o.store.AddView()
			o.emitLocked(events.ViewIncrement, sess, "")
		}
	}

	if sess.ViewDurationSec > 0 && sess.Stats.WatchTimeSec >= int64(sess.ViewDurationSec) {
		o.stopTickLocked(rt)
		o.log.Debug().
			Str("session", sess.ID).
			Int64("watch_time_sec", sess.Stats.WatchTimeSec).
			Msg("session reached view duration")
		o.emitLocked(events.VideoCompleted, sess, "")
		return
	}
	o.armTickLocked(rt)
}

// stopTickLocked cancels the tick and releases its SessionsActive slot.
func (o *Orchestrator) stopTickLocked(rt *runtime) {
	if !rt.ticking {
		return
	}
	stopTimer(rt.tickTimer)
	rt.tickTimer = nil
	rt.ticking = false
	o.store.TickStopped()
}

// startBehaviorLocked schedules synthetic interaction when the session asks
// for it and the surface can replay it.
func (o *Orchestrator) startBehaviorLocked(rt *runtime) {
	if !rt.sess.Options.HumanBehavior {
		return
	}
	sink, ok := o.surface.(surface.BehaviorSink)
	if !ok {
		return
	}
	viewDuration := time.Duration(rt.sess.ViewDurationSec) * time.Second
	for _, step := range surface.ScheduleFor(o.behavior, viewDuration) {
		kind := step.Kind
		rt.behavior = append(rt.behavior, o.clock.AfterFunc(step.Delay, func() {
			o.onBehaviorStep(rt, sink, kind)
		}))
	}
}

func (o *Orchestrator) onBehaviorStep(rt *runtime, sink surface.BehaviorSink, kind surface.SyntheticKind) {
	o.lock()
	defer o.unlock()

	if !o.currentLocked(rt) {
		return
	}
	ev := surface.NewSyntheticEvent(kind, o.rng)
	if err := sink.Synthesize(rt.sess.FrameID, ev); err != nil {
		o.log.Debug().Err(err).Str("session", rt.sess.ID).Str("kind", string(kind)).Msg("synthetic event not delivered")
	}
}

// cancelTimersLocked stops every timer keyed to the session. It does not
// touch the global counters.
func (o *Orchestrator) cancelTimersLocked(rt *runtime) (wasTicking bool) {
	wasTicking = rt.ticking
	stopTimer(rt.loadTimer)
	stopTimer(rt.retryTimer)
	stopTimer(rt.tickTimer)
	for _, t := range rt.behavior {
		stopTimer(t)
	}
	rt.loadTimer, rt.retryTimer, rt.tickTimer = nil, nil, nil
	rt.behavior = nil
	rt.ticking = false
	return wasTicking
}

func stopTimer(t clock.Timer) {
	if t != nil {
		t.Stop()
	}
}
