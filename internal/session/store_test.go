package session

import (
	"testing"
	"time"
)

func newSession(id, endpointID string, status Status, createdAt time.Time) *Session {
	return &Session{
		ID:         id,
		VideoRef:   "dQw4w9WgXcQ",
		EndpointID: endpointID,
		Status:     status,
		Options:    DefaultOptions(),
		CreatedAt:  createdAt,
	}
}

func TestStore_PutCountsAndRejectsDuplicates(t *testing.T) {
	s := NewStore(8)
	defer s.Close()

	base := time.Unix(1000, 0)
	if !s.Put(newSession("a", "noproxy", StatusLoading, base)) {
		t.Fatal("first Put should succeed")
	}
	if s.Put(newSession("a", "piped", StatusLoading, base)) {
		t.Fatal("duplicate Put should fail")
	}
	if got := s.Global().TotalVideos; got != 1 {
		t.Fatalf("TotalVideos: got %d, want 1", got)
	}
	list := s.List()
	if len(list) != 1 || list[0].EndpointID != "noproxy" {
		t.Fatalf("List: got %+v", list)
	}
}

func TestStore_DeleteFloorsAndKeepsHistory(t *testing.T) {
	s := NewStore(8)
	defer s.Close()

	sess := newSession("a", "noproxy", StatusReady, time.Unix(1000, 0))
	s.Put(sess)
	sess.Stats.Views = 4

	if _, ok := s.Delete("a"); !ok {
		t.Fatal("Delete(a) should succeed")
	}
	if _, ok := s.Delete("a"); ok {
		t.Fatal("second Delete(a) should report missing")
	}
	if got := s.Global().TotalVideos; got != 0 {
		t.Fatalf("TotalVideos: got %d, want 0", got)
	}
	if s.Len() != 0 {
		t.Fatal("deleted session still live")
	}

	h, ok := s.History("a")
	if !ok {
		t.Fatal("expected history entry")
	}
	if h.Stats.Views != 4 || h.Status != StatusReady {
		t.Fatalf("history snapshot: %+v", h)
	}

	// History is a copy: later writes to the old record do not leak in.
	sess.Stats.Views = 99
	h, _ = s.History("a")
	if h.Stats.Views != 4 {
		t.Fatalf("history mutated through record: %d", h.Stats.Views)
	}
}

func TestStore_CountersAndTickFloor(t *testing.T) {
	s := NewStore(0)
	defer s.Close()

	s.TickStarted()
	s.TickStarted()
	s.AddWatchSecond()
	s.AddWatchSecond()
	s.AddView()
	s.TickStopped()
	s.TickStopped()
	s.TickStopped()

	g := s.Global()
	if g.SessionsActive != 0 {
		t.Fatalf("SessionsActive: got %d, want 0", g.SessionsActive)
	}
	if g.TotalWatchTimeSec != 2 || g.TotalViews != 1 {
		t.Fatalf("unexpected counters: %+v", g)
	}
}

func TestStore_ClearZeroesEverything(t *testing.T) {
	s := NewStore(8)
	defer s.Close()

	base := time.Unix(1000, 0)
	s.Put(newSession("a", "noproxy", StatusReady, base))
	s.Put(newSession("b", "piped", StatusLoading, base))
	s.TickStarted()
	s.AddWatchSecond()
	s.AddView()

	removed := s.Clear()
	if len(removed) != 2 {
		t.Fatalf("Clear removed %d, want 2", len(removed))
	}
	if s.Len() != 0 {
		t.Fatalf("Len after Clear: %d", s.Len())
	}
	if g := s.Global(); g != (GlobalStats{}) {
		t.Fatalf("Global after Clear: %+v", g)
	}
	if _, ok := s.History("b"); !ok {
		t.Fatal("cleared session missing from history")
	}
}

func TestStore_ListOrder(t *testing.T) {
	s := NewStore(8)
	defer s.Close()

	base := time.Unix(1000, 0)
	s.Put(newSession("c", "noproxy", StatusLoading, base.Add(time.Second)))
	s.Put(newSession("b", "noproxy", StatusLoading, base))
	s.Put(newSession("a", "noproxy", StatusLoading, base))

	list := s.List()
	want := []string{"a", "b", "c"}
	if len(list) != len(want) {
		t.Fatalf("List len: got %d, want %d", len(list), len(want))
	}
	for i, id := range want {
		if list[i].ID != id {
			t.Fatalf("List[%d]: got %s, want %s", i, list[i].ID, id)
		}
	}
}

func TestStore_Detailed(t *testing.T) {
	s := NewStore(8)
	defer s.Close()

	base := time.Unix(1000, 0)
	s.Put(newSession("a", "noproxy", StatusReady, base))
	s.Put(newSession("b", "noproxy", StatusLoading, base))
	s.Put(newSession("c", "piped", StatusReady, base))
	for i := 0; i < 100; i++ {
		s.AddWatchSecond()
	}
	s.AddView()
	s.AddView()

	d := s.Detailed()
	if d.EndpointUsage["noproxy"] != 2 || d.EndpointUsage["piped"] != 1 {
		t.Fatalf("EndpointUsage: %+v", d.EndpointUsage)
	}
	if d.StatusCounts[StatusReady] != 2 || d.StatusCounts[StatusLoading] != 1 {
		t.Fatalf("StatusCounts: %+v", d.StatusCounts)
	}
	// 100/3 = 33.3 -> 33; 2/3 = 0.67 -> 1
	if d.AverageWatchTimeSec != 33 || d.AverageViews != 1 {
		t.Fatalf("averages: watch=%d views=%d", d.AverageWatchTimeSec, d.AverageViews)
	}
}

func TestStore_DetailedEmpty(t *testing.T) {
	s := NewStore(8)
	defer s.Close()

	d := s.Detailed()
	if d.AverageViews != 0 || d.AverageWatchTimeSec != 0 {
		t.Fatalf("expected zero averages, got %+v", d)
	}
	if d.EndpointUsage == nil || d.StatusCounts == nil {
		t.Fatal("maps should be non-nil for JSON output")
	}
}
