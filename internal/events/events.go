// Package events fans session state changes out to in-process listeners.
package events

import (
	"time"

	"github.com/Resinat/Relayview/internal/session"
)

// Type names one kind of session state change.
type Type string

const (
	VideoCreated   Type = "videoCreated"
	VideoLoaded    Type = "videoLoaded"
	VideoRetry     Type = "videoRetry"
	VideoError     Type = "videoError"
	ViewIncrement  Type = "viewIncrement"
	VideoCommand   Type = "videoCommand"
	VideoCompleted Type = "videoCompleted"
	VideoRemoved   Type = "videoRemoved"
	AllCleared     Type = "allCleared"
)

// Event is one published state change.
type Event struct {
	Type Type
	// Session is a snapshot taken when the event was produced. Nil for AllCleared.
	Session *session.Session
	// Command is set for VideoCommand.
	Command string
	At      time.Time
}

// Listener is invoked synchronously by Publish. Keep listeners lightweight
// and non-blocking; push heavy work to async queues.
type Listener func(Event)
