// Package input defines the host-neutral event model and a listener
// registry. Hosts translate native events into Events and dispatch them.
package input

import (
	"fmt"
	"sync"
)

// EventType classifies an Event.
type EventType int

const (
	EventNone EventType = iota
	EventQuit
	EventResize
	EventKeyDown
	EventKeyUp
	EventPointerDown
	EventPointerMove
	EventPointerUp
	EventWheel
	EventSelect
	EventXREnd
)

var eventNames = [...]string{
	EventNone:        "none",
	EventQuit:        "quit",
	EventResize:      "resize",
	EventKeyDown:     "keydown",
	EventKeyUp:       "keyup",
	EventPointerDown: "pointerdown",
	EventPointerMove: "pointermove",
	EventPointerUp:   "pointerup",
	EventWheel:       "wheel",
	EventSelect:      "select",
	EventXREnd:       "end",
}

func (t EventType) String() string {
	if t >= 0 && int(t) < len(eventNames) {
		return eventNames[t]
	}
	return fmt.Sprintf("EventType(%d)", int(t))
}

// Key codes, spelled as layout-independent physical key names.
const (
	KeyL      = "KeyL"
	KeyEscape = "Escape"
	KeySpace  = "Space"
	KeyShift  = "ShiftLeft"
)

// Pointer buttons.
const (
	ButtonLeft   = 0
	ButtonMiddle = 1
	ButtonRight  = 2
)

// Event is a processed input event.
type Event struct {
	Type EventType

	// Key is set for key events.
	Key string

	// Width and Height are set for resize events.
	Width  int
	Height int

	// X and Y are pointer coordinates relative to the target.
	X, Y   float32
	Button int
	Shift  bool

	// DeltaY is the wheel movement; positive zooms out.
	DeltaY float32
}

// Listener receives dispatched events.
type Listener func(Event)

// ListenerID identifies a registration for removal.
type ListenerID uint64

type registration struct {
	id  ListenerID
	typ EventType
	fn  Listener
}

// Dispatcher is an event target: listeners register per event type and
// are called in registration order.
type Dispatcher struct {
	mu     sync.Mutex
	nextID ListenerID
	regs   []registration
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// On registers fn for events of type t.
func (d *Dispatcher) On(t EventType, fn Listener) ListenerID {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	d.regs = append(d.regs, registration{id: d.nextID, typ: t, fn: fn})
	return d.nextID
}

// Off removes a registration. It reports whether the id was registered.
func (d *Dispatcher) Off(id ListenerID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, r := range d.regs {
		if r.id == id {
			d.regs = append(d.regs[:i], d.regs[i+1:]...)
			return true
		}
	}
	return false
}

// Dispatch delivers e to every listener of its type and returns how many
// were called. Listeners may register or remove listeners while running.
func (d *Dispatcher) Dispatch(e Event) int {
	d.mu.Lock()
	var fns []Listener
	for _, r := range d.regs {
		if r.typ == e.Type {
			fns = append(fns, r.fn)
		}
	}
	d.mu.Unlock()

	for _, fn := range fns {
		fn(e)
	}
	return len(fns)
}

// Len returns the number of registered listeners.
func (d *Dispatcher) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.regs)
}

// LenOf returns the number of listeners registered for t.
func (d *Dispatcher) LenOf(t EventType) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, r := range d.regs {
		if r.typ == t {
			n++
		}
	}
	return n
}
