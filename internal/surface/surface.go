// Package surface defines the contract with the embedding surface that hosts
// the video frames: a fire-and-forget command sink addressed by frame id.
package surface

import (
	"errors"
	"fmt"
)

// Command is a player command understood by the embedded frame.
type Command string

const (
	PlayVideo  Command = "playVideo"
	PauseVideo Command = "pauseVideo"
	Mute       Command = "mute"
	UnMute     Command = "unMute"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrNotConnected   = errors.New("embedding surface not connected")
	ErrUnknownFrame   = errors.New("unknown frame")
)

// Commands lists every supported command.
var Commands = []Command{PlayVideo, PauseVideo, Mute, UnMute}

// Valid reports whether c is a supported command.
func (c Command) Valid() bool {
	switch c {
	case PlayVideo, PauseVideo, Mute, UnMute:
		return true
	}
	return false
}

// ParseCommand validates a command name.
func ParseCommand(s string) (Command, error) {
	c := Command(s)
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownCommand, s)
	}
	return c, nil
}

// Surface delivers commands to frames. Delivery is best effort and carries no
// acknowledgment; an error only means the command could not be handed off.
type Surface interface {
	Dispatch(frameID string, cmd Command) error
}

// BehaviorSink is optionally implemented by a Surface that can replay
// synthetic input events on a frame.
type BehaviorSink interface {
	Synthesize(frameID string, ev SyntheticEvent) error
}

// DispatchFunc adapts a function to Surface.
type DispatchFunc func(frameID string, cmd Command) error

func (f DispatchFunc) Dispatch(frameID string, cmd Command) error {
	return f(frameID, cmd)
}
