// Package headless provides a host and platform that run viewer sessions
// without a window or GPU. Models are loaded and scenes traversed for
// real; drawing is reduced to per-frame statistics.
package headless

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Faultbox/wavefront-viewer/internal/engine/input"
	"github.com/Faultbox/wavefront-viewer/internal/viewer"
)

// Host is an in-memory page. Frame callbacks run when Step is called, or
// on every tick of Run.
type Host struct {
	mu       sync.Mutex
	mounts   map[string]*Mount
	viewport viewer.Size
	ratio    float32
	events   *input.Dispatcher

	next   viewer.FrameHandle
	frames map[viewer.FrameHandle]viewer.FrameCallback
	posted []func()
	start  time.Time
}

// NewHost creates a host with the given viewport.
func NewHost(viewport viewer.Size) *Host {
	return &Host{
		mounts:   make(map[string]*Mount),
		viewport: viewport,
		ratio:    1,
		events:   input.NewDispatcher(),
		frames:   make(map[viewer.FrameHandle]viewer.FrameCallback),
		start:    time.Now(),
	}
}

// AddMount creates a mount point. An existing mount with the same id is
// replaced.
func (h *Host) AddMount(id string, attrs map[string]string) *Mount {
	m := &Mount{id: id, attrs: attrs}
	h.mu.Lock()
	h.mounts[id] = m
	h.mu.Unlock()
	return m
}

// MountIDs returns the mount ids in order.
func (h *Host) MountIDs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]string, 0, len(h.mounts))
	for id := range h.mounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Mount implements viewer.Host.
func (h *Host) Mount(id string) (viewer.Mount, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.mounts[id]
	if !ok {
		return nil, false
	}
	return m, true
}

// ViewportSize implements viewer.Host.
func (h *Host) ViewportSize() viewer.Size {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.viewport
}

// PixelRatio implements viewer.Host.
func (h *Host) PixelRatio() float32 { return h.ratio }

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

// Pending returns the number of scheduled frame callbacks.
func (h *Host) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.frames)
}

// Resize changes the viewport and dispatches a resize event.
func (h *Host) Resize(width, height int) {
	h.mu.Lock()
	h.viewport = viewer.Size{Width: width, Height: height}
	h.mu.Unlock()
	h.events.Dispatch(input.Event{Type: input.EventResize, Width: width, Height: height})
}

// Post queues fn to run on the loop before the next frame. It is safe to
// call from any goroutine.
func (h *Host) Post(fn func()) {
	h.mu.Lock()
	h.posted = append(h.posted, fn)
	h.mu.Unlock()
}

// Step runs posted functions, then the frame callbacks pending at call
// time. It returns how many frames ran.
func (h *Host) Step() int {
	h.mu.Lock()
	posted := h.posted
	h.posted = nil
	h.mu.Unlock()
	for _, fn := range posted {
		fn()
	}

	h.mu.Lock()
	pending := h.frames
	h.frames = make(map[viewer.FrameHandle]viewer.FrameCallback)
	h.mu.Unlock()

	ids := make([]viewer.FrameHandle, 0, len(pending))
	for id := range pending {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	t := time.Since(h.start)
	for _, id := range ids {
		pending[id](t)
	}
	return len(ids)
}

// Run steps the host every interval until ctx is done.
func (h *Host) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			h.Step()
		}
	}
}

// Mount is a headless mount point.
type Mount struct {
	mu       sync.Mutex
	id       string
	attrs    map[string]string
	children []viewer.Element
	heading  string
	buttons  []*Button
}

// ID implements viewer.Mount.
func (m *Mount) ID() string { return m.id }

// Attributes implements viewer.Mount.
func (m *Mount) Attributes() map[string]string { return m.attrs }

// AppendChild implements viewer.Mount.
func (m *Mount) AppendChild(el viewer.Element) {
	m.mu.Lock()
	m.children = append(m.children, el)
	m.mu.Unlock()
}

// RemoveChild implements viewer.Mount.
func (m *Mount) RemoveChild(el viewer.Element) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, c := range m.children {
		if c == el {
			m.children = append(m.children[:i], m.children[i+1:]...)
			return
		}
	}
}

// ShowError implements viewer.Mount.
func (m *Mount) ShowError(heading string) {
	m.mu.Lock()
	m.heading = heading
	m.mu.Unlock()
}

// AddButton implements viewer.Mount.
func (m *Mount) AddButton(label string, onClick func()) viewer.Button {
	b := &Button{label: label, onClick: onClick}
	m.mu.Lock()
	m.buttons = append(m.buttons, b)
	m.mu.Unlock()
	return b
}

// Children returns the attached drawing surfaces.
func (m *Mount) Children() []viewer.Element {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]viewer.Element(nil), m.children...)
}

// Heading returns the error heading shown in the mount, if any.
func (m *Mount) Heading() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.heading
}

// Buttons returns the buttons that have not been removed.
func (m *Mount) Buttons() []*Button {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Button
	for _, b := range m.buttons {
		if !b.removed {
			out = append(out, b)
		}
	}
	return out
}

// Button is a headless on-page button.
type Button struct {
	label   string
	onClick func()
	removed bool
}

// SetLabel implements viewer.Button.
func (b *Button) SetLabel(label string) { b.label = label }

// Remove implements viewer.Button.
func (b *Button) Remove() { b.removed = true }

// Label returns the current label.
func (b *Button) Label() string { return b.label }

// Click presses the button.
func (b *Button) Click() {
	if !b.removed && b.onClick != nil {
		b.onClick()
	}
}
