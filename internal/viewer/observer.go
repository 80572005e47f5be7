package viewer

import (
	"fmt"
	"time"
)

// EventKind classifies session events.
type EventKind int

const (
	EventStateChanged EventKind = iota
	EventAssetLoaded
	EventObjectPlaced
	EventLightingToggled
	EventXRStarted
	EventXREnded
	EventFrameFault
	EventTornDown
)

var eventKindNames = [...]string{
	EventStateChanged:    "state",
	EventAssetLoaded:     "loaded",
	EventObjectPlaced:    "placed",
	EventLightingToggled: "lighting",
	EventXRStarted:       "xr-started",
	EventXREnded:         "xr-ended",
	EventFrameFault:      "fault",
	EventTornDown:        "torn-down",
}

func (k EventKind) String() string {
	if k >= 0 && int(k) < len(eventKindNames) {
		return eventKindNames[k]
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k EventKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *EventKind) UnmarshalText(text []byte) error {
	i, err := lookupName(eventKindNames[:], text, "event kind")
	*k = EventKind(i)
	return err
}

// Event is published by a session as its lifecycle advances.
type Event struct {
	Kind    EventKind `json:"kind"`
	MountID string    `json:"mountId"`
	State   State     `json:"state"`
	Error   string    `json:"error,omitempty"`
	Placed  int       `json:"placedObjects,omitempty"`
	Time    time.Time `json:"time"`
}

// Observer receives session events on the host's event loop. It must not
// block.
type Observer interface {
	Notify(e Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(e Event)

// Notify implements Observer.
func (f ObserverFunc) Notify(e Event) { f(e) }

// Observers fans events out to several observers.
type Observers []Observer

// Notify implements Observer.
func (o Observers) Notify(e Event) {
	for _, obs := range o {
		if obs != nil {
			obs.Notify(e)
		}
	}
}
