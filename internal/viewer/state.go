package viewer

import (
	"fmt"
	"time"

	"github.com/Faultbox/wavefront-viewer/internal/descriptor"
)

// State is the lifecycle state of a session.
type State int

const (
	// StateLoading: bootstrapped, the render loop runs while assets load.
	StateLoading State = iota
	// StateReady: the model is in the scene.
	StateReady
	// StateError: configuration, capability or asset failure.
	StateError
	// StateClosed: torn down.
	StateClosed
)

var stateNames = [...]string{
	StateLoading: "loading",
	StateReady:   "ready",
	StateError:   "error",
	StateClosed:  "closed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	i, err := lookupName(stateNames[:], text, "state")
	*s = State(i)
	return err
}

// HitTestState is the state of the AR hit-test protocol.
type HitTestState int

const (
	HitTestIdle HitTestState = iota
	HitTestRequesting
	HitTestSourced
	HitTestEnded
)

var hitTestNames = [...]string{
	HitTestIdle:       "idle",
	HitTestRequesting: "requesting",
	HitTestSourced:    "sourced",
	HitTestEnded:      "ended",
}

func (h HitTestState) String() string {
	if h >= 0 && int(h) < len(hitTestNames) {
		return hitTestNames[h]
	}
	return fmt.Sprintf("HitTestState(%d)", int(h))
}

// MarshalText implements encoding.TextMarshaler.
func (h HitTestState) MarshalText() ([]byte, error) { return []byte(h.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *HitTestState) UnmarshalText(text []byte) error {
	i, err := lookupName(hitTestNames[:], text, "hit-test state")
	*h = HitTestState(i)
	return err
}

func lookupName(names []string, text []byte, what string) (int, error) {
	for i, n := range names {
		if n == string(text) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown %s %q", what, text)
}

// Status is a snapshot of a session, safe to read from any goroutine.
type Status struct {
	MountID   string          `json:"mountId"`
	Kind      descriptor.Kind `json:"kind"`
	Title     string          `json:"title,omitempty"`
	State     State           `json:"state"`
	Error     string          `json:"error,omitempty"`
	HitTest   HitTestState    `json:"hitTest,omitempty"`
	InXR      bool            `json:"inXr,omitempty"`
	Placed    int             `json:"placedObjects"`
	Lighting  bool            `json:"lighting,omitempty"`
	Frames    uint64          `json:"frames"`
	Faults    uint64          `json:"faults"`
	Triangles int             `json:"triangles"`
	Started   time.Time       `json:"started"`
}
