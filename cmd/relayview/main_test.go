package main

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Resinat/Relayview/internal/bridge"
	"github.com/Resinat/Relayview/internal/config"
	"github.com/Resinat/Relayview/internal/orchestrator"
	"github.com/Resinat/Relayview/internal/session"
)

func newTestApp(t *testing.T) (*relayviewApp, string) {
	t.Helper()
	envCfg, err := config.LoadEnvConfig()
	if err != nil {
		t.Fatalf("LoadEnvConfig: %v", err)
	}
	envCfg.ListenAddress = "127.0.0.1"
	envCfg.Port = 0

	app, err := newRelayviewApp(envCfg, config.DefaultCatalog(), zerolog.Nop())
	if err != nil {
		t.Fatalf("newRelayviewApp: %v", err)
	}
	app.startServers()
	t.Cleanup(func() { app.shutdown(shutdownTimeout) })
	return app, app.ln.Addr().String()
}

func getBody(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRelayviewApp_ServesHealthAndMetrics(t *testing.T) {
	_, addr := newTestApp(t)

	code, body := getBody(t, "http://"+addr+"/healthz")
	if code != http.StatusOK || !strings.Contains(body, `"ok"`) {
		t.Fatalf("healthz: %d %s", code, body)
	}

	code, body = getBody(t, "http://"+addr+"/")
	if code != http.StatusOK || !strings.Contains(body, "/ws") {
		t.Fatalf("host page: %d", code)
	}

	code, body = getBody(t, "http://"+addr+"/api/v1/endpoints")
	if code != http.StatusOK || !strings.Contains(body, `"noproxy"`) {
		t.Fatalf("endpoints: %d %s", code, body)
	}

	code, body = getBody(t, "http://"+addr+"/metrics")
	if code != http.StatusOK {
		t.Fatalf("metrics status: %d", code)
	}
	for _, name := range []string{"relayview_sessions_active", "relayview_endpoint_health", "relayview_bridge_dropped_messages_total", "go_goroutines"} {
		if !strings.Contains(body, name) {
			t.Fatalf("metrics missing %s", name)
		}
	}
}

func TestRelayviewApp_BridgeRoundTrip(t *testing.T) {
	app, addr := newTestApp(t)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	waitFor(t, "page registration", func() bool { return app.hub.Len() == 1 })

	resp, err := http.Post("http://"+addr+"/api/v1/sessions", "application/json",
		strings.NewReader(`{"video_ref":"dQw4w9WgXcQ","endpoint":"nocookie"}`))
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	var h orchestrator.Handle
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		t.Fatalf("decode handle: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status: %d", resp.StatusCode)
	}

	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var load bridge.LoadMessage
	if err := conn.ReadJSON(&load); err != nil {
		t.Fatalf("read load message: %v", err)
	}
	if load.Type != bridge.TypeLoad || load.SessionID != h.ID || load.EmbedURL != h.EmbedURL {
		t.Fatalf("unexpected load message: %+v, handle %+v", load, h)
	}

	if err := conn.WriteJSON(bridge.Inbound{Type: bridge.TypeLoaded, SessionID: h.ID, ElapsedMs: 800}); err != nil {
		t.Fatalf("write loaded: %v", err)
	}
	waitFor(t, "session ready", func() bool {
		s, ok := app.orch.Session(h.ID)
		return ok && s.Status == session.StatusReady
	})
}
