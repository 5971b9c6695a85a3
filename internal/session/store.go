package session

import (
	"math"
	"sort"
	"sync"

	"github.com/maypok86/otter"
	"github.com/puzpuzpuz/xsync/v4"
)

// DefaultHistorySize bounds the number of removed sessions kept for lookup.
const DefaultHistorySize = 1024

// Store owns the live session records and the global counters.
//
// Counters are adjusted at the moment of the triggering transition and are
// never recomputed by scanning. The Store does not order transitions itself;
// the single writer is expected to serialize them.
type Store struct {
	sessions *xsync.Map[string, *Session]

	mu     sync.Mutex
	global GlobalStats

	// history keeps the final snapshot of removed sessions, LRU-bounded.
	history otter.Cache[string, Session]
}

// NewStore creates an empty Store keeping at most historySize removed
// sessions. Non-positive sizes select DefaultHistorySize.
func NewStore(historySize int) *Store {
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}
	history, err := otter.MustBuilder[string, Session](historySize).
		Cost(func(_ string, _ Session) uint32 { return 1 }).
		Build()
	if err != nil {
		panic("session: failed to create history cache: " + err.Error())
	}
	return &Store{
		sessions: xsync.NewMap[string, *Session](),
		history:  history,
	}
}

// Put inserts a new session and counts it in TotalVideos. It returns false
// and leaves the store untouched if the id is already present.
func (s *Store) Put(sess *Session) bool {
	if _, loaded := s.sessions.LoadOrStore(sess.ID, sess); loaded {
		return false
	}
	s.mu.Lock()
	s.global.TotalVideos++
	s.mu.Unlock()
	return true
}

// Delete removes the session, decrements TotalVideos (floored at zero) and
// keeps its final snapshot in the history.
func (s *Store) Delete(id string) (*Session, bool) {
	sess, ok := s.sessions.LoadAndDelete(id)
	if !ok {
		return nil, false
	}
	s.mu.Lock()
	s.global.TotalVideos = max(0, s.global.TotalVideos-1)
	s.mu.Unlock()
	s.history.Set(id, *sess)
	return sess, true
}

// Clear removes every session and zeroes the global counters. Removed
// sessions are kept in the history.
func (s *Store) Clear() []*Session {
	var removed []*Session
	s.sessions.Range(func(id string, sess *Session) bool {
		removed = append(removed, sess)
		return true
	})
	for _, sess := range removed {
		s.sessions.Delete(sess.ID)
		s.history.Set(sess.ID, *sess)
	}
	s.mu.Lock()
	s.global = GlobalStats{}
	s.mu.Unlock()
	return removed
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	return s.sessions.Size()
}

// List returns the live records ordered by creation time, then id.
func (s *Store) List() []*Session {
	out := make([]*Session, 0, s.sessions.Size())
	s.sessions.Range(func(_ string, sess *Session) bool {
		out = append(out, sess)
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// History returns the final snapshot of a removed session.
func (s *Store) History(id string) (Session, bool) {
	return s.history.Get(id)
}

// AddWatchSecond counts one second of playback.
func (s *Store) AddWatchSecond() {
	s.mu.Lock()
	s.global.TotalWatchTimeSec++
	s.mu.Unlock()
}

// AddView counts one derived view.
func (s *Store) AddView() {
	s.mu.Lock()
	s.global.TotalViews++
	s.mu.Unlock()
}

// TickStarted counts a session whose tick began running.
func (s *Store) TickStarted() {
	s.mu.Lock()
	s.global.SessionsActive++
	s.mu.Unlock()
}

// TickStopped undoes TickStarted, floored at zero.
func (s *Store) TickStopped() {
	s.mu.Lock()
	s.global.SessionsActive = max(0, s.global.SessionsActive-1)
	s.mu.Unlock()
}

// Global returns a snapshot of the running counters.
func (s *Store) Global() GlobalStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.global
}

// Detailed scans the live sessions for per-endpoint and per-status counts.
// Averages divide the running totals by TotalVideos and are rounded.
// It reads live records and must run on the writer's side.
func (s *Store) Detailed() DetailedStats {
	d := DetailedStats{
		Global:        s.Global(),
		EndpointUsage: make(map[string]int),
		StatusCounts:  make(map[Status]int),
	}
	s.sessions.Range(func(_ string, sess *Session) bool {
		d.EndpointUsage[sess.EndpointID]++
		d.StatusCounts[sess.Status]++
		return true
	})
	if n := d.Global.TotalVideos; n > 0 {
		d.AverageWatchTimeSec = int64(math.Round(float64(d.Global.TotalWatchTimeSec) / float64(n)))
		d.AverageViews = int64(math.Round(float64(d.Global.TotalViews) / float64(n)))
	}
	return d
}

// Close releases the history cache.
func (s *Store) Close() {
	s.history.Close()
}
