package viewer

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/Faultbox/wavefront-viewer/internal/async"
	"github.com/Faultbox/wavefront-viewer/internal/engine/camera"
	"github.com/Faultbox/wavefront-viewer/internal/engine/input"
	"github.com/Faultbox/wavefront-viewer/internal/engine/model"
	"github.com/Faultbox/wavefront-viewer/internal/engine/scene"
	"github.com/Faultbox/wavefront-viewer/pkg/math"
)

// fakeHost queues animation frames until the test runs them.
type fakeHost struct {
	mounts   map[string]*fakeMount
	viewport Size
	events   *input.Dispatcher
	next     FrameHandle
	frames   map[FrameHandle]FrameCallback
	now      time.Duration
}

func newFakeHost(mountIDs ...string) *fakeHost {
	h := &fakeHost{
		mounts:   make(map[string]*fakeMount),
		viewport: Size{Width: 1280, Height: 720},
		events:   input.NewDispatcher(),
		frames:   make(map[FrameHandle]FrameCallback),
	}
	for _, id := range mountIDs {
		h.mounts[id] = &fakeMount{id: id, attrs: map[string]string{}}
	}
	return h
}

func (h *fakeHost) Mount(id string) (Mount, bool) {
	m, ok := h.mounts[id]
	if !ok {
		return nil, false
	}
	return m, true
}

func (h *fakeHost) ViewportSize() Size                  { return h.viewport }
func (h *fakeHost) PixelRatio() float32                 { return 2 }
func (h *fakeHost) Events() *input.Dispatcher           { return h.events }
func (h *fakeHost) CancelAnimationFrame(id FrameHandle) { delete(h.frames, id) }

func (h *fakeHost) RequestAnimationFrame(fn FrameCallback) FrameHandle {
	h.next++
	h.frames[h.next] = fn
	return h.next
}

// step runs the frames pending at call time and returns how many ran.
func (h *fakeHost) step() int {
	pending := h.frames
	h.frames = make(map[FrameHandle]FrameCallback)
	ids := make([]FrameHandle, 0, len(pending))
	for id := range pending {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	h.now += 16 * time.Millisecond
	for _, id := range ids {
		pending[id](h.now)
	}
	return len(ids)
}

func (h *fakeHost) stepN(n int) {
	for i := 0; i < n; i++ {
		h.step()
	}
}

type fakeMount struct {
	id       string
	attrs    map[string]string
	children []Element
	errors   []string
	buttons  []*fakeButton
}

func (m *fakeMount) ID() string                    { return m.id }
func (m *fakeMount) Attributes() map[string]string { return m.attrs }
func (m *fakeMount) AppendChild(el Element)        { m.children = append(m.children, el) }
func (m *fakeMount) ShowError(heading string)      { m.errors = append(m.errors, heading) }

func (m *fakeMount) RemoveChild(el Element) {
	for i, c := range m.children {
		if c == el {
			m.children = append(m.children[:i], m.children[i+1:]...)
			return
		}
	}
}

func (m *fakeMount) AddButton(label string, onClick func()) Button {
	b := &fakeButton{label: label, onClick: onClick}
	m.buttons = append(m.buttons, b)
	return b
}

type fakeButton struct {
	label   string
	onClick func()
	removed bool
}

func (b *fakeButton) SetLabel(label string) { b.label = label }
func (b *fakeButton) Remove()               { b.removed = true }
func (b *fakeButton) click()                { b.onClick() }

type fakeElement struct {
	size   Size
	events *input.Dispatcher
}

func (e *fakeElement) SetSize(w, h int)          { e.size = Size{Width: w, Height: h} }
func (e *fakeElement) Size() Size                { return e.size }
func (e *fakeElement) Events() *input.Dispatcher { return e.events }

type fakeRenderer struct {
	el         *fakeElement
	opts       RendererOptions
	pixelRatio float32
	clear      [3]float32
	alpha      float32
	renders    int
	disposed   bool
	// fault makes Render panic on the given render count.
	fault int
}

func (r *fakeRenderer) Element() Element            { return r.el }
func (r *fakeRenderer) SetPixelRatio(ratio float32) { r.pixelRatio = ratio }
func (r *fakeRenderer) SetSize(w, h int)            { r.el.SetSize(w, h) }
func (r *fakeRenderer) Dispose()                    { r.disposed = true }

func (r *fakeRenderer) SetClearColor(rgb [3]float32, alpha float32) {
	r.clear, r.alpha = rgb, alpha
}

func (r *fakeRenderer) Render(*scene.Scene, *camera.Perspective) error {
	r.renders++
	if r.fault != 0 && r.renders == r.fault {
		panic("lost context")
	}
	return nil
}

type fakeControls struct {
	updates  int
	disposed bool
}

func (c *fakeControls) Update() bool { c.updates++; return false }
func (c *fakeControls) Dispose()     { c.disposed = true }

// fakePlatform hands out fake renderers and serves one model per load.
type fakePlatform struct {
	renderers   []*fakeRenderer
	controls    []*fakeControls
	rendererErr error
	immersive   bool
	xr          *fakeXRSession
	xrRequests  int

	model   *model.Model
	loadErr error
	gate    chan struct{}
	fault   int
}

func (p *fakePlatform) CreateRenderer(opts RendererOptions) (Renderer, error) {
	if p.rendererErr != nil {
		return nil, p.rendererErr
	}
	r := &fakeRenderer{el: &fakeElement{events: input.NewDispatcher()}, opts: opts, fault: p.fault}
	p.renderers = append(p.renderers, r)
	return r, nil
}

func (p *fakePlatform) LoadGeometry(ctx context.Context, _ GeometryRequest) (*model.Model, error) {
	if p.gate != nil {
		select {
		case <-p.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.loadErr != nil {
		return nil, p.loadErr
	}
	return p.model, nil
}

func (p *fakePlatform) CreateOrbitControls(*camera.Perspective, Element, OrbitOptions) Controls {
	c := &fakeControls{}
	p.controls = append(p.controls, c)
	return c
}

func (p *fakePlatform) ImmersiveSupported() bool { return p.immersive }

func (p *fakePlatform) RequestImmersiveSession(context.Context, XRSessionOptions) *async.Future[XRSession] {
	p.xrRequests++
	if p.xr == nil {
		return async.FailedWith[XRSession](errors.New("no xr"))
	}
	return async.ResolvedWith[XRSession](p.xr)
}

type fakeXRSession struct {
	events  *input.Dispatcher
	next    FrameHandle
	frames  map[FrameHandle]XRFrameCallback
	source  *async.Future[HitTestSource]
	hitReqs int
	ended   int
}

func newFakeXRSession() *fakeXRSession {
	return &fakeXRSession{
		events: input.NewDispatcher(),
		frames: make(map[FrameHandle]XRFrameCallback),
		source: async.New[HitTestSource](),
	}
}

func (x *fakeXRSession) Events() *input.Dispatcher { return x.events }

func (x *fakeXRSession) RequestAnimationFrame(fn XRFrameCallback) FrameHandle {
	x.next++
	x.frames[x.next] = fn
	return x.next
}

func (x *fakeXRSession) CancelAnimationFrame(id FrameHandle) { delete(x.frames, id) }

func (x *fakeXRSession) RequestHitTestSource() *async.Future[HitTestSource] {
	x.hitReqs++
	return x.source
}

func (x *fakeXRSession) End() error {
	x.ended++
	x.events.Dispatch(input.Event{Type: input.EventXREnd})
	return nil
}

func (x *fakeXRSession) step(frame XRFrame) int {
	pending := x.frames
	x.frames = make(map[FrameHandle]XRFrameCallback)
	for _, fn := range pending {
		fn(0, frame)
	}
	return len(pending)
}

type fakeXRFrame struct {
	pose    math.Mat4
	results []HitResult
}

func (f *fakeXRFrame) ViewerPose() (math.Mat4, bool) { return f.pose, true }

func (f *fakeXRFrame) HitTestResults(HitTestSource) []HitResult { return f.results }

type fakeSource struct{ cancelled int }

func (s *fakeSource) Cancel() { s.cancelled++ }

// vaseModel is a one-mesh model.
func vaseModel() *model.Model {
	root := scene.NewGroup("vase")
	geo := scene.ConeGeometry(1, 2, 8)
	root.Add(scene.NewMesh("glaze", geo, scene.NewMaterial("glaze", [3]float32{1, 1, 1})))
	return &model.Model{Root: root, Triangles: geo.TriangleCount(), Meshes: 1}
}

// waitLoad blocks until the session's pending load settles.
func waitLoad(t *testing.T, s *Session) {
	t.Helper()
	if s.load == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	select {
	case <-s.load.Done():
	case <-ctx.Done():
		t.Fatal("load did not settle")
	}
}

// recorder collects observer events.
type recorder struct{ events []Event }

func (r *recorder) Notify(e Event) { r.events = append(r.events, e) }

func (r *recorder) count(k EventKind) int {
	n := 0
	for _, e := range r.events {
		if e.Kind == k {
			n++
		}
	}
	return n
}
