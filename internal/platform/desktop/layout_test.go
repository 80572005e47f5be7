package desktop

import (
	"testing"

	"github.com/veandco/go-sdl2/sdl"
)

func TestColumns(t *testing.T) {
	tests := []struct {
		name  string
		n, w  int
		wantW []int
	}{
		{"single", 1, 800, []int{800}},
		{"even", 2, 800, []int{400, 400}},
		{"remainder", 3, 800, []int{266, 266, 268}},
		{"none", 0, 800, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cols := Columns(tt.n, tt.w, 600)
			if len(cols) != len(tt.wantW) {
				t.Fatalf("got %d columns", len(cols))
			}
			x := 0
			for i, c := range cols {
				if c.W != tt.wantW[i] || c.X != x || c.H != 600 {
					t.Errorf("column %d = %+v", i, c)
				}
				x += c.W
			}
		})
	}
}

func TestPlace(t *testing.T) {
	col := Rect{X: 400, Y: 0, W: 400, H: 600}
	if got := Place(col, 200, 100); got != (Rect{X: 500, Y: 250, W: 200, H: 100}) {
		t.Errorf("centered = %+v", got)
	}
	if got := Place(col, 1000, 0); got != col {
		t.Errorf("clipped = %+v", got)
	}
}

func TestRectConversions(t *testing.T) {
	r := Rect{X: 100, Y: 50, W: 200, H: 100}
	if !r.Contains(100, 50) || r.Contains(300, 50) || r.Contains(99, 60) {
		t.Error("Contains is not half-open")
	}
	if x, y := r.Local(150, 75); x != 50 || y != 25 {
		t.Errorf("Local = %v,%v", x, y)
	}
	x, y, w, h := r.GLViewport(600, 2)
	if x != 200 || y != 900 || w != 400 || h != 200 {
		t.Errorf("GLViewport = %d %d %d %d", x, y, w, h)
	}
}

func TestKeyCode(t *testing.T) {
	tests := map[sdl.Scancode]string{
		sdl.SCANCODE_L:      "KeyL",
		sdl.SCANCODE_A:      "KeyA",
		sdl.SCANCODE_0:      "Digit0",
		sdl.SCANCODE_5:      "Digit5",
		sdl.SCANCODE_ESCAPE: "Escape",
		sdl.SCANCODE_RETURN: KeyPress,
	}
	for sc, want := range tests {
		if got := KeyCode(sc); got != want {
			t.Errorf("KeyCode(%d) = %q, want %q", sc, got, want)
		}
	}
}
