package desktop

// Rect is a window region in screen coordinates, origin top-left.
type Rect struct {
	X, Y, W, H int
}

// Contains reports whether the point lies inside r.
func (r Rect) Contains(x, y float32) bool {
	return x >= float32(r.X) && y >= float32(r.Y) &&
		x < float32(r.X+r.W) && y < float32(r.Y+r.H)
}

// Local converts window coordinates to coordinates relative to r.
func (r Rect) Local(x, y float32) (float32, float32) {
	return x - float32(r.X), y - float32(r.Y)
}

// GLViewport converts r to a bottom-left origin viewport in framebuffer
// pixels.
func (r Rect) GLViewport(windowHeight int, ratio float32) (x, y, w, h int32) {
	return int32(float32(r.X) * ratio),
		int32(float32(windowHeight-r.Y-r.H) * ratio),
		int32(float32(r.W) * ratio),
		int32(float32(r.H) * ratio)
}

// Columns splits a window into n equal columns. The last column takes the
// rounding remainder.
func Columns(n, width, height int) []Rect {
	if n <= 0 {
		return nil
	}
	out := make([]Rect, n)
	w := width / n
	for i := range out {
		out[i] = Rect{X: i * w, Y: 0, W: w, H: height}
	}
	out[n-1].W = width - (n-1)*w
	return out
}

// Place positions a surface of the given size inside a column, centered
// and clipped to it.
func Place(col Rect, width, height int) Rect {
	if width <= 0 || width > col.W {
		width = col.W
	}
	if height <= 0 || height > col.H {
		height = col.H
	}
	return Rect{
		X: col.X + (col.W-width)/2,
		Y: col.Y + (col.H-height)/2,
		W: width,
		H: height,
	}
}
