package bridge

import (
	"github.com/Resinat/Relayview/internal/surface"
)

// Message types exchanged with the page hosting the frames.
const (
	TypeLoaded    = "loaded"
	TypeFailed    = "failed"
	TypeCommand   = "command"
	TypeSynthetic = "synthetic"
	TypeLoad      = "load"
	TypeUnload    = "unload"
	TypeClear     = "clear"
	TypeHeartbeat = "heartbeat"
)

// Inbound is a message sent by the page.
type Inbound struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	ElapsedMs int64  `json:"elapsed_ms,omitempty"`
}

// CommandMessage asks the page to post a player command to a frame.
type CommandMessage struct {
	Type    string `json:"type"`
	FrameID string `json:"frame_id"`
	Func    string `json:"func"`
	Args    []any  `json:"args"`
}

// SyntheticMessage asks the page to replay an input event on a frame.
type SyntheticMessage struct {
	Type    string `json:"type"`
	FrameID string `json:"frame_id"`
	surface.SyntheticEvent
}

// LoadMessage asks the page to (re)load a frame.
type LoadMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	FrameID   string `json:"frame_id"`
	EmbedURL  string `json:"embed_url"`
	UserAgent string `json:"user_agent"`
}

// UnloadMessage asks the page to drop a frame.
type UnloadMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	FrameID   string `json:"frame_id"`
}

// ClearMessage asks the page to drop every frame.
type ClearMessage struct {
	Type string `json:"type"`
}
