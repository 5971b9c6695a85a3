package bridge

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Resinat/Relayview/internal/events"
	"github.com/Resinat/Relayview/internal/session"
	"github.com/Resinat/Relayview/internal/surface"
)

type recordedSignal struct {
	kind    string
	id      string
	elapsed time.Duration
}

type fakeSignals struct {
	mu       sync.Mutex
	got      []recordedSignal
	ch       chan struct{}
	sessions []session.Session
}

func newFakeSignals() *fakeSignals {
	return &fakeSignals{ch: make(chan struct{}, 16)}
}

func (f *fakeSignals) Loaded(id string, elapsed time.Duration) bool {
	f.mu.Lock()
	f.got = append(f.got, recordedSignal{kind: TypeLoaded, id: id, elapsed: elapsed})
	f.mu.Unlock()
	f.ch <- struct{}{}
	return true
}

func (f *fakeSignals) Failed(id string) bool {
	f.mu.Lock()
	f.got = append(f.got, recordedSignal{kind: TypeFailed, id: id})
	f.mu.Unlock()
	f.ch <- struct{}{}
	return true
}

func (f *fakeSignals) Sessions() []session.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]session.Session(nil), f.sessions...)
}

func (f *fakeSignals) wait(t *testing.T) {
	t.Helper()
	select {
	case <-f.ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for signal")
	}
}

func connect(t *testing.T, h *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for h.Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("page never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(v); err != nil {
		t.Fatalf("read: %v", err)
	}
}

func TestHub_DispatchWithoutPage(t *testing.T) {
	h := NewHub(zerolog.Nop())
	if err := h.Dispatch("frame-1", surface.PlayVideo); !errors.Is(err, surface.ErrNotConnected) {
		t.Fatalf("Dispatch: got %v, want ErrNotConnected", err)
	}
	if err := h.Synthesize("frame-1", surface.SyntheticEvent{Kind: surface.Scroll}); !errors.Is(err, surface.ErrNotConnected) {
		t.Fatalf("Synthesize: got %v, want ErrNotConnected", err)
	}
}

func TestHub_DispatchInvalidCommand(t *testing.T) {
	h := NewHub(zerolog.Nop())
	if err := h.Dispatch("frame-1", surface.Command("seekTo")); !errors.Is(err, surface.ErrUnknownCommand) {
		t.Fatalf("got %v, want ErrUnknownCommand", err)
	}
}

func TestHub_CommandReachesPage(t *testing.T) {
	h := NewHub(zerolog.Nop())
	conn := connect(t, h)

	if err := h.Dispatch("frame-7", surface.PauseVideo); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	var msg CommandMessage
	readJSON(t, conn, &msg)
	if msg.Type != TypeCommand || msg.FrameID != "frame-7" || msg.Func != "pauseVideo" || msg.Args == nil {
		t.Fatalf("unexpected message: %+v", msg)
	}

	if err := h.Synthesize("frame-7", surface.SyntheticEvent{Kind: surface.KeyPress, Key: "Space"}); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	var raw map[string]any
	readJSON(t, conn, &raw)
	if raw["type"] != TypeSynthetic || raw["kind"] != "keypress" || raw["key"] != "Space" {
		t.Fatalf("unexpected synthetic message: %v", raw)
	}
}

func TestHub_LoadRequestsFromBus(t *testing.T) {
	h := NewHub(zerolog.Nop())
	conn := connect(t, h)

	bus := events.NewBus(zerolog.Nop())
	bus.Subscribe(h.Listener())

	bus.Publish(events.Event{Type: events.VideoLoaded, Session: &session.Session{ID: "ignored"}})
	bus.Publish(events.Event{Type: events.VideoRetry, Session: &session.Session{
		ID:        "s-1",
		FrameID:   "frame-s-1",
		EmbedURL:  "https://piped.video/embed/abc?enablejsapi=1",
		UserAgent: "ua-1",
	}})

	var msg LoadMessage
	readJSON(t, conn, &msg)
	want := LoadMessage{
		Type:      TypeLoad,
		SessionID: "s-1",
		FrameID:   "frame-s-1",
		EmbedURL:  "https://piped.video/embed/abc?enablejsapi=1",
		UserAgent: "ua-1",
	}
	if msg != want {
		t.Fatalf("got %+v, want %+v", msg, want)
	}
}

func TestHub_RemovalAndClearFromBus(t *testing.T) {
	h := NewHub(zerolog.Nop())
	conn := connect(t, h)

	bus := events.NewBus(zerolog.Nop())
	bus.Subscribe(h.Listener())

	bus.Publish(events.Event{Type: events.VideoRemoved, Session: &session.Session{ID: "s-1", FrameID: "frame-s-1"}})
	var unload UnloadMessage
	readJSON(t, conn, &unload)
	if want := (UnloadMessage{Type: TypeUnload, SessionID: "s-1", FrameID: "frame-s-1"}); unload != want {
		t.Fatalf("got %+v, want %+v", unload, want)
	}

	bus.Publish(events.Event{Type: events.AllCleared})
	var raw map[string]any
	readJSON(t, conn, &raw)
	if len(raw) != 1 || raw["type"] != TypeClear {
		t.Fatalf("unexpected clear message: %v", raw)
	}
}

func TestHub_ReplaysPendingLoadsOnConnect(t *testing.T) {
	h := NewHub(zerolog.Nop())
	sig := newFakeSignals()
	sig.sessions = []session.Session{
		{ID: "ready", FrameID: "frame-ready", Status: session.StatusReady, EmbedURL: "https://example.test/ready"},
		{ID: "pending", FrameID: "frame-pending", Status: session.StatusLoading, EmbedURL: "https://example.test/pending", UserAgent: "ua"},
	}
	h.Bind(sig)
	conn := connect(t, h)

	var msg LoadMessage
	readJSON(t, conn, &msg)
	want := LoadMessage{
		Type:      TypeLoad,
		SessionID: "pending",
		FrameID:   "frame-pending",
		EmbedURL:  "https://example.test/pending",
		UserAgent: "ua",
	}
	if msg != want {
		t.Fatalf("got %+v, want %+v", msg, want)
	}

	// Nothing else was queued: the next frame is a live command.
	if err := h.Dispatch("frame-pending", surface.Mute); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	var cmd CommandMessage
	readJSON(t, conn, &cmd)
	if cmd.Type != TypeCommand {
		t.Fatalf("expected command after replay, got %+v", cmd)
	}
}

func TestHub_InboundSignals(t *testing.T) {
	h := NewHub(zerolog.Nop())
	sig := newFakeSignals()
	h.Bind(sig)
	conn := connect(t, h)

	for _, m := range []string{
		`{"type":"heartbeat"}`,
		`not json`,
		`{"type":"loaded","session_id":"s-1","elapsed_ms":1500}`,
		`{"type":"failed","session_id":"s-2"}`,
	} {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(m)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	sig.wait(t)
	sig.wait(t)

	sig.mu.Lock()
	defer sig.mu.Unlock()
	want := []recordedSignal{
		{kind: TypeLoaded, id: "s-1", elapsed: 1500 * time.Millisecond},
		{kind: TypeFailed, id: "s-2"},
	}
	if len(sig.got) != len(want) {
		t.Fatalf("got %+v", sig.got)
	}
	for i := range want {
		if sig.got[i] != want[i] {
			t.Fatalf("signal %d: got %+v, want %+v", i, sig.got[i], want[i])
		}
	}
}

func TestHub_Disconnect(t *testing.T) {
	h := NewHub(zerolog.Nop())
	conn := connect(t, h)
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for h.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("page never unregistered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err := h.Dispatch("frame-1", surface.Mute); !errors.Is(err, surface.ErrNotConnected) {
		t.Fatalf("got %v, want ErrNotConnected", err)
	}
}

func TestMessages_JSONShape(t *testing.T) {
	data, err := json.Marshal(CommandMessage{Type: TypeCommand, FrameID: "f", Func: "mute", Args: []any{}})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"type":"command","frame_id":"f","func":"mute","args":[]}` {
		t.Fatalf("unexpected JSON: %s", data)
	}
}
