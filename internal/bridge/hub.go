// Package bridge connects the orchestrator to a browser page hosting the video
// frames over a websocket. The page receives frame lifecycle, command and
// synthetic input messages; it reports load outcomes back.
package bridge

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/puzpuzpuz/xsync/v4"
	"github.com/rs/zerolog"

	"github.com/Resinat/Relayview/internal/events"
	"github.com/Resinat/Relayview/internal/session"
	"github.com/Resinat/Relayview/internal/surface"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 256
)

// Signals receives load outcomes reported by the page and lists the sessions
// a newly connected page must load.
type Signals interface {
	Loaded(id string, elapsed time.Duration) bool
	Failed(id string) bool
	Sessions() []session.Session
}

// Hub tracks connected pages and implements surface.Surface and
// surface.BehaviorSink. Outbound messages are broadcast to every page;
// delivery never blocks the caller.
type Hub struct {
	log      zerolog.Logger
	upgrader websocket.Upgrader
	clients  *xsync.Map[string, *client]

	mu      sync.RWMutex
	signals Signals

	dropped atomic.Int64
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

var (
	_ surface.Surface      = (*Hub)(nil)
	_ surface.BehaviorSink = (*Hub)(nil)
)

// NewHub creates an empty hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: xsync.NewMap[string, *client](),
	}
}

// Bind sets the receiver of inbound load signals.
func (h *Hub) Bind(s Signals) {
	h.mu.Lock()
	h.signals = s
	h.mu.Unlock()
}

// Len returns the number of connected pages.
func (h *Hub) Len() int { return h.clients.Size() }

// Dropped returns how many outbound messages were discarded on full buffers.
func (h *Hub) Dropped() int64 { return h.dropped.Load() }

// Dispatch implements surface.Surface.
func (h *Hub) Dispatch(frameID string, cmd surface.Command) error {
	if !cmd.Valid() {
		return surface.ErrUnknownCommand
	}
	return h.broadcast(CommandMessage{Type: TypeCommand, FrameID: frameID, Func: string(cmd), Args: []any{}})
}

// Synthesize implements surface.BehaviorSink.
func (h *Hub) Synthesize(frameID string, ev surface.SyntheticEvent) error {
	return h.broadcast(SyntheticMessage{Type: TypeSynthetic, FrameID: frameID, SyntheticEvent: ev})
}

// Listener mirrors the session set onto the pages: creation and retry push a
// load, removal an unload and a clear drops every frame.
func (h *Hub) Listener() events.Listener {
	return func(ev events.Event) {
		var msg any
		switch ev.Type {
		case events.VideoCreated, events.VideoRetry:
			if ev.Session == nil {
				return
			}
			msg = loadMessage(*ev.Session)
		case events.VideoRemoved:
			if ev.Session == nil {
				return
			}
			msg = UnloadMessage{Type: TypeUnload, SessionID: ev.Session.ID, FrameID: ev.Session.FrameID}
		case events.AllCleared:
			msg = ClearMessage{Type: TypeClear}
		default:
			return
		}
		if err := h.broadcast(msg); err != nil {
			h.log.Debug().Err(err).Str("event", string(ev.Type)).Msg("page update not delivered")
		}
	}
}

func loadMessage(s session.Session) LoadMessage {
	return LoadMessage{
		Type:      TypeLoad,
		SessionID: s.ID,
		FrameID:   s.FrameID,
		EmbedURL:  s.EmbedURL,
		UserAgent: s.UserAgent,
	}
}

// broadcast enqueues msg on every connected page. It fails only when no page
// accepted the message.
func (h *Hub) broadcast(msg any) error {
	if h.clients.Size() == 0 {
		return surface.ErrNotConnected
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	delivered := 0
	h.clients.Range(func(_ string, c *client) bool {
		select {
		case c.send <- data:
			delivered++
		case <-c.done:
		default:
			h.dropped.Add(1)
			h.log.Warn().Str("client_id", c.id).Msg("send buffer full, message dropped")
		}
		return true
	})
	if delivered == 0 {
		return surface.ErrNotConnected
	}
	return nil
}

// ServeHTTP upgrades the request and serves the page until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	c := &client{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
	h.clients.Store(c.id, c)
	h.log.Info().Str("client_id", c.id).Str("remote", r.RemoteAddr).Msg("page connected")
	h.replay(c)

	go h.writePump(c)
	h.readPump(c)

	h.clients.Delete(c.id)
	c.close()
	h.log.Info().Str("client_id", c.id).Msg("page disconnected")
}

// replay queues a load for every session still waiting on a frame, so a page
// that connects late does not leave them to time out.
func (h *Hub) replay(c *client) {
	h.mu.RLock()
	s := h.signals
	h.mu.RUnlock()
	if s == nil {
		return
	}
	n := 0
	for _, sess := range s.Sessions() {
		if sess.Status != session.StatusLoading {
			continue
		}
		data, err := json.Marshal(loadMessage(sess))
		if err != nil {
			continue
		}
		select {
		case c.send <- data:
			n++
		default:
			h.dropped.Add(1)
		}
	}
	if n > 0 {
		h.log.Info().Str("client_id", c.id).Int("sessions", n).Msg("replayed pending loads")
	}
}

// Close disconnects every page.
func (h *Hub) Close() {
	h.clients.Range(func(id string, c *client) bool {
		c.close()
		h.clients.Delete(id)
		return true
	})
}

func (h *Hub) readPump(c *client) {
	defer c.conn.Close()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn().Err(err).Str("client_id", c.id).Msg("websocket read failed")
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var in Inbound
		if err := json.Unmarshal(raw, &in); err != nil {
			h.log.Warn().Err(err).Str("client_id", c.id).Msg("invalid inbound message")
			continue
		}
		h.handle(c, in)
	}
}

func (h *Hub) handle(c *client, in Inbound) {
	h.mu.RLock()
	s := h.signals
	h.mu.RUnlock()

	switch in.Type {
	case TypeHeartbeat:
		return
	case TypeLoaded, TypeFailed:
		if s == nil {
			h.log.Warn().Str("type", in.Type).Msg("no signal receiver bound")
			return
		}
		var ok bool
		if in.Type == TypeLoaded {
			ok = s.Loaded(in.SessionID, time.Duration(in.ElapsedMs)*time.Millisecond)
		} else {
			ok = s.Failed(in.SessionID)
		}
		if !ok {
			h.log.Debug().Str("type", in.Type).Str("session_id", in.SessionID).Msg("signal ignored")
		}
	default:
		h.log.Warn().Str("client_id", c.id).Str("type", in.Type).Msg("unknown inbound message type")
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.log.Warn().Err(err).Str("client_id", c.id).Msg("websocket write failed")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
