package surface

import (
	"math/rand/v2"
	"time"
)

// SyntheticKind is the kind of a synthetic input event.
type SyntheticKind string

const (
	MouseMove SyntheticKind = "mousemove"
	Scroll    SyntheticKind = "scroll"
	KeyPress  SyntheticKind = "keypress"
)

// SyntheticEvent is one synthetic input event. X and Y are fractions of the
// frame size.
type SyntheticEvent struct {
	Kind   SyntheticKind `json:"kind"`
	X      float64       `json:"x,omitempty"`
	Y      float64       `json:"y,omitempty"`
	DeltaY float64       `json:"delta_y,omitempty"`
	Key    string        `json:"key,omitempty"`
}

// BehaviorStep fires one synthetic event Delay after playback starts.
type BehaviorStep struct {
	Delay time.Duration
	Kind  SyntheticKind
}

// DefaultBehavior is the static interaction schedule.
var DefaultBehavior = []BehaviorStep{
	{Delay: 2 * time.Second, Kind: MouseMove},
	{Delay: 5 * time.Second, Kind: Scroll},
	{Delay: 8 * time.Second, Kind: MouseMove},
	{Delay: 12 * time.Second, Kind: KeyPress},
}

var syntheticKeys = []string{"Space", "ArrowUp", "ArrowDown", "ArrowLeft", "ArrowRight"}

// ScheduleFor keeps the steps that fall strictly inside the view duration.
// A non-positive duration yields no steps.
func ScheduleFor(steps []BehaviorStep, viewDuration time.Duration) []BehaviorStep {
	if viewDuration <= 0 {
		return nil
	}
	out := make([]BehaviorStep, 0, len(steps))
	for _, st := range steps {
		if st.Delay < viewDuration {
			out = append(out, st)
		}
	}
	return out
}

// NewSyntheticEvent fills in randomized parameters for kind.
func NewSyntheticEvent(kind SyntheticKind, rng *rand.Rand) SyntheticEvent {
	ev := SyntheticEvent{Kind: kind}
	switch kind {
	case MouseMove:
		ev.X = rng.Float64()
		ev.Y = rng.Float64()
	case Scroll:
		ev.DeltaY = rng.Float64()*100 - 50
	case KeyPress:
		ev.Key = syntheticKeys[rng.IntN(len(syntheticKeys))]
	}
	return ev
}
