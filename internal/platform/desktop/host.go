package desktop

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/zap"

	"github.com/Faultbox/wavefront-viewer/internal/engine/input"
	"github.com/Faultbox/wavefront-viewer/internal/viewer"
)

// KeyPress activates the first button of the mount under the pointer.
const KeyPress = "Enter"

// Host is a window split into one column per mount. SDL events are routed
// to the element under the pointer; frame callbacks run once per buffer
// swap.
type Host struct {
	win *Window
	log *zap.Logger

	mu     sync.Mutex
	mounts []*Mount
	byID   map[string]*Mount
	events *input.Dispatcher

	next   viewer.FrameHandle
	frames map[viewer.FrameHandle]viewer.FrameCallback
	posted []func()
	start  time.Time

	capture *Element
	pointer [2]float32
	quit    bool
	status  string

	shots *Screenshots
	shoot bool
}

// NewHost creates a host drawing into win.
func NewHost(win *Window, log *zap.Logger) *Host {
	if log == nil {
		log = zap.NewNop()
	}
	return &Host{
		win:    win,
		log:    log,
		byID:   make(map[string]*Mount),
		events: input.NewDispatcher(),
		frames: make(map[viewer.FrameHandle]viewer.FrameCallback),
		start:  time.Now(),
		shots:  NewScreenshots("", "wavefront"),
	}
}

// SetScreenshotDir sets where KeyScreenshot captures are written.
func (h *Host) SetScreenshotDir(dir string) { h.shots.Dir = dir }

// AddMount appends a mount column to the window.
func (h *Host) AddMount(id string, attrs map[string]string) *Mount {
	m := &Mount{id: id, attrs: attrs, host: h}
	h.mu.Lock()
	if old, ok := h.byID[id]; ok {
		for i, x := range h.mounts {
			if x == old {
				h.mounts = append(h.mounts[:i], h.mounts[i+1:]...)
				break
			}
		}
	}
	h.mounts = append(h.mounts, m)
	h.byID[id] = m
	h.mu.Unlock()
	h.layout()
	return m
}

// MountIDs returns the mount ids in column order.
func (h *Host) MountIDs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]string, len(h.mounts))
	for i, m := range h.mounts {
		ids[i] = m.id
	}
	return ids
}

// Mount implements viewer.Host.
func (h *Host) Mount(id string) (viewer.Mount, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.byID[id]
	if !ok {
		return nil, false
	}
	return m, true
}

// ViewportSize implements viewer.Host.
func (h *Host) ViewportSize() viewer.Size {
	w, ht := h.win.Size()
	return viewer.Size{Width: w, Height: ht}
}

// PixelRatio implements viewer.Host.
func (h *Host) PixelRatio() float32 { return h.win.PixelRatio() }

// Events implements viewer.Host.
func (h *Host) Events() *input.Dispatcher { return h.events }

// RequestAnimationFrame implements viewer.Host.
func (h *Host) RequestAnimationFrame(fn viewer.FrameCallback) viewer.FrameHandle {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	h.frames[h.next] = fn
	return h.next
}

// CancelAnimationFrame implements viewer.Host.
func (h *Host) CancelAnimationFrame(id viewer.FrameHandle) {
	h.mu.Lock()
	delete(h.frames, id)
	h.mu.Unlock()
}

// Post queues fn to run on the loop goroutine before the next frame.
func (h *Host) Post(fn func()) {
	h.mu.Lock()
	h.posted = append(h.posted, fn)
	h.mu.Unlock()
}

// Quit asks Run to return after the current frame.
func (h *Host) Quit() {
	h.mu.Lock()
	h.quit = true
	h.mu.Unlock()
}

func (h *Host) quitting() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.quit
}

// Run pumps events and draws frames until the window closes, Escape is
// pressed or ctx is done. Without vsync frames are paced to interval.
func (h *Host) Run(ctx context.Context, interval time.Duration) error {
	for !h.quitting() {
		if err := ctx.Err(); err != nil {
			return err
		}
		begin := time.Now()
		h.Step()
		if !h.win.cfg.VSync && interval > 0 {
			if d := interval - time.Since(begin); d > 0 {
				time.Sleep(d)
			}
		}
	}
	return nil
}

// Step pumps pending SDL events, runs posted functions and the scheduled
// frame callbacks, then presents.
func (h *Host) Step() {
	for ev := sdl.PollEvent(); ev != nil; ev = sdl.PollEvent() {
		if e, ok := FromSDL(ev); ok {
			h.route(e)
		}
	}

	h.mu.Lock()
	posted := h.posted
	h.posted = nil
	pending := h.frames
	h.frames = make(map[viewer.FrameHandle]viewer.FrameCallback)
	h.mu.Unlock()
	for _, fn := range posted {
		fn()
	}

	w, ht := h.win.DrawableSize()
	clearWindow(w, ht)

	ids := make([]viewer.FrameHandle, 0, len(pending))
	for id := range pending {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	t := time.Since(h.start)
	for _, id := range ids {
		pending[id](t)
	}
	if h.shoot {
		h.shoot = false
		h.screenshot(w, ht)
	}
	h.win.SwapBuffers()
	h.updateStatus()
}

func (h *Host) route(e input.Event) {
	switch e.Type {
	case input.EventQuit:
		h.Quit()
		h.events.Dispatch(e)

	case input.EventResize:
		h.layout()
		h.events.Dispatch(e)

	case input.EventKeyDown:
		switch e.Key {
		case input.KeyEscape:
			h.Quit()
		case KeyPress:
			if m := h.mountAt(h.pointer[0], h.pointer[1]); m != nil {
				m.press()
			}
		}
		h.events.Dispatch(e)

	case input.EventKeyUp:
		h.events.Dispatch(e)

	case input.EventPointerDown, input.EventPointerMove, input.EventPointerUp:
		h.pointer = [2]float32{e.X, e.Y}
		el := h.capture
		if el == nil {
			el = h.elementAt(e.X, e.Y)
		}
		switch e.Type {
		case input.EventPointerDown:
			h.capture = el
		case input.EventPointerUp:
			h.capture = nil
		}
		if el != nil {
			r, _ := el.Bounds()
			e.X, e.Y = r.Local(e.X, e.Y)
			el.events.Dispatch(e)
		}

	case input.EventWheel:
		if el := h.elementAt(h.pointer[0], h.pointer[1]); el != nil {
			el.events.Dispatch(e)
		}
	}
}

func (h *Host) screenshot(w, ht int) {
	pixels := readPixels(w, ht)
	if pixels == nil {
		return
	}
	name, err := h.shots.Save(pixels, w, ht)
	if err != nil {
		h.log.Error("screenshot failed", zap.Error(err))
		return
	}
	h.log.Info("screenshot saved", zap.String("file", name))
}

// layout assigns each mount an equal column of the window.
func (h *Host) layout() {
	w, ht := h.win.Size()
	h.mu.Lock()
	defer h.mu.Unlock()
	cols := Columns(len(h.mounts), w, ht)
	for i, m := range h.mounts {
		m.setColumn(cols[i], ht)
	}
}

func (h *Host) mountAt(x, y float32) *Mount {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, m := range h.mounts {
		if c, _ := m.column(); c.Contains(x, y) {
			return m
		}
	}
	if len(h.mounts) == 1 {
		return h.mounts[0]
	}
	return nil
}

func (h *Host) elementAt(x, y float32) *Element {
	m := h.mountAt(x, y)
	if m == nil {
		return nil
	}
	for _, el := range m.elements() {
		if r, _ := el.Bounds(); r.Contains(x, y) {
			return el
		}
	}
	return nil
}

// updateStatus mirrors mount errors and buttons into the window title.
func (h *Host) updateStatus() {
	h.mu.Lock()
	var parts []string
	for _, m := range h.mounts {
		if s := m.status(); s != "" {
			parts = append(parts, m.id+": "+s)
		}
	}
	status := strings.Join(parts, "  ")
	changed := status != h.status
	h.status = status
	h.mu.Unlock()
	if changed {
		h.win.SetStatus(status)
	}
}

// Mount is a window column.
type Mount struct {
	id    string
	attrs map[string]string
	host  *Host

	mu       sync.Mutex
	col      Rect
	winH     int
	children []*Element
	heading  string
	buttons  []*Button
}

// ID implements viewer.Mount.
func (m *Mount) ID() string { return m.id }

// Attributes implements viewer.Mount.
func (m *Mount) Attributes() map[string]string { return m.attrs }

// AppendChild implements viewer.Mount. Only elements created by this
// package's platform can be attached.
func (m *Mount) AppendChild(el viewer.Element) {
	e, ok := el.(*Element)
	if !ok {
		m.host.log.Warn("foreign element ignored", zap.String("mount", m.id))
		return
	}
	e.attach(m)
	m.mu.Lock()
	m.children = append(m.children, e)
	m.mu.Unlock()
}

// RemoveChild implements viewer.Mount.
func (m *Mount) RemoveChild(el viewer.Element) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, c := range m.children {
		if viewer.Element(c) == el {
			m.children = append(m.children[:i], m.children[i+1:]...)
			c.attach(nil)
			return
		}
	}
}

// ShowError implements viewer.Mount. The heading is shown in the window
// title.
func (m *Mount) ShowError(heading string) {
	m.mu.Lock()
	m.heading = heading
	m.mu.Unlock()
	m.host.log.Warn("viewer unavailable", zap.String("mount", m.id), zap.String("heading", heading))
}

// AddButton implements viewer.Mount. Buttons are pressed with KeyPress.
func (m *Mount) AddButton(label string, onClick func()) viewer.Button {
	b := &Button{label: label, onClick: onClick}
	m.mu.Lock()
	m.buttons = append(m.buttons, b)
	m.mu.Unlock()
	return b
}

func (m *Mount) setColumn(col Rect, winH int) {
	m.mu.Lock()
	m.col, m.winH = col, winH
	m.mu.Unlock()
}

func (m *Mount) column() (Rect, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.col, m.winH
}

func (m *Mount) elements() []*Element {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Element(nil), m.children...)
}

func (m *Mount) press() {
	m.mu.Lock()
	var b *Button
	for _, x := range m.buttons {
		if !x.removed {
			b = x
			break
		}
	}
	m.mu.Unlock()
	if b != nil && b.onClick != nil {
		b.onClick()
	}
}

func (m *Mount) status() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.heading != "" {
		return m.heading
	}
	for _, b := range m.buttons {
		if !b.removed {
			return "[" + KeyPress + "] " + b.label
		}
	}
	return ""
}

// Button is a keyboard-activated button.
type Button struct {
	label   string
	onClick func()
	removed bool
}

// SetLabel implements viewer.Button.
func (b *Button) SetLabel(label string) { b.label = label }

// Remove implements viewer.Button.
func (b *Button) Remove() { b.removed = true }

// Element is a drawing surface placed in a mount's column.
type Element struct {
	events *input.Dispatcher

	mu    sync.Mutex
	size  viewer.Size
	mount *Mount
}

// NewElement creates a detached element.
func NewElement() *Element { return &Element{events: input.NewDispatcher()} }

// SetSize implements viewer.Element.
func (e *Element) SetSize(width, height int) {
	e.mu.Lock()
	e.size = viewer.Size{Width: width, Height: height}
	e.mu.Unlock()
}

// Size implements viewer.Element.
func (e *Element) Size() viewer.Size {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.size
}

// Events implements viewer.Element.
func (e *Element) Events() *input.Dispatcher { return e.events }

// Bounds returns the element's window region and the window height. A
// detached element has an empty region.
func (e *Element) Bounds() (Rect, int) {
	e.mu.Lock()
	m, size := e.mount, e.size
	e.mu.Unlock()
	if m == nil {
		return Rect{}, 0
	}
	col, winH := m.column()
	return Place(col, size.Width, size.Height), winH
}

func (e *Element) attach(m *Mount) {
	e.mu.Lock()
	e.mount = m
	e.mu.Unlock()
}
