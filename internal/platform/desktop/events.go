package desktop

import (
	"github.com/veandco/go-sdl2/sdl"

	"github.com/Faultbox/wavefront-viewer/internal/engine/input"
)

var scancodeKeys = map[sdl.Scancode]string{
	sdl.SCANCODE_ESCAPE: input.KeyEscape,
	sdl.SCANCODE_SPACE:  input.KeySpace,
	sdl.SCANCODE_LSHIFT: input.KeyShift,
	sdl.SCANCODE_RSHIFT: "ShiftRight",
	sdl.SCANCODE_RETURN: "Enter",
	sdl.SCANCODE_TAB:    "Tab",
}

// KeyCode converts an SDL scancode to a key code such as "KeyL".
func KeyCode(sc sdl.Scancode) string {
	if k, ok := scancodeKeys[sc]; ok {
		return k
	}
	if sc >= sdl.SCANCODE_A && sc <= sdl.SCANCODE_Z {
		return "Key" + string(rune('A'+int(sc-sdl.SCANCODE_A)))
	}
	if sc >= sdl.SCANCODE_1 && sc <= sdl.SCANCODE_0 {
		d := int(sc-sdl.SCANCODE_1) + 1
		if sc == sdl.SCANCODE_0 {
			d = 0
		}
		return "Digit" + string(rune('0'+d))
	}
	return sdl.GetScancodeName(sc)
}

func sdlButton(b uint8) int {
	switch b {
	case sdl.BUTTON_MIDDLE:
		return input.ButtonMiddle
	case sdl.BUTTON_RIGHT:
		return input.ButtonRight
	default:
		return input.ButtonLeft
	}
}

// FromSDL converts an SDL event. Events with no neutral equivalent return
// false. Pointer coordinates are window coordinates.
func FromSDL(event sdl.Event) (input.Event, bool) {
	shift := sdl.GetModState()&sdl.KMOD_SHIFT != 0

	switch e := event.(type) {
	case *sdl.QuitEvent:
		return input.Event{Type: input.EventQuit}, true

	case *sdl.WindowEvent:
		if e.Event == sdl.WINDOWEVENT_RESIZED || e.Event == sdl.WINDOWEVENT_SIZE_CHANGED {
			return input.Event{Type: input.EventResize, Width: int(e.Data1), Height: int(e.Data2)}, true
		}

	case *sdl.KeyboardEvent:
		if e.Repeat != 0 {
			return input.Event{}, false
		}
		t := input.EventKeyDown
		if e.Type == sdl.KEYUP {
			t = input.EventKeyUp
		}
		return input.Event{Type: t, Key: KeyCode(e.Keysym.Scancode), Shift: shift}, true

	case *sdl.MouseMotionEvent:
		return input.Event{Type: input.EventPointerMove, X: float32(e.X), Y: float32(e.Y), Shift: shift}, true

	case *sdl.MouseButtonEvent:
		t := input.EventPointerDown
		if e.Type == sdl.MOUSEBUTTONUP {
			t = input.EventPointerUp
		}
		return input.Event{Type: t, X: float32(e.X), Y: float32(e.Y), Button: sdlButton(e.Button), Shift: shift}, true

	case *sdl.MouseWheelEvent:
		dy := float32(e.Y)
		if e.Direction == sdl.MOUSEWHEEL_FLIPPED {
			dy = -dy
		}
		// SDL reports positive Y away from the user; DOM wheel is the opposite.
		return input.Event{Type: input.EventWheel, DeltaY: -dy}, true
	}
	return input.Event{}, false
}
