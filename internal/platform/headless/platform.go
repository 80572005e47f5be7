package headless

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/Faultbox/wavefront-viewer/internal/async"
	"github.com/Faultbox/wavefront-viewer/internal/engine/camera"
	"github.com/Faultbox/wavefront-viewer/internal/engine/input"
	"github.com/Faultbox/wavefront-viewer/internal/engine/model"
	"github.com/Faultbox/wavefront-viewer/internal/engine/scene"
	"github.com/Faultbox/wavefront-viewer/internal/viewer"
	"github.com/Faultbox/wavefront-viewer/pkg/math"
)

// Platform loads models through a model.Loader and hands out renderers
// that only count what they would draw.
type Platform struct {
	loader *model.Loader
	log    *zap.Logger

	// Unavailable makes CreateRenderer fail, as on a machine without
	// graphics support.
	Unavailable bool

	mu        sync.Mutex
	renderers []*Renderer
}

// New creates a headless platform.
func New(loader *model.Loader, log *zap.Logger) *Platform {
	if log == nil {
		log = zap.NewNop()
	}
	return &Platform{loader: loader, log: log}
}

// CreateRenderer implements viewer.Platform.
func (p *Platform) CreateRenderer(opts viewer.RendererOptions) (viewer.Renderer, error) {
	if p.Unavailable {
		return nil, viewer.ErrRenderingUnavailable
	}
	r := &Renderer{el: NewElement(), opts: opts, ratio: 1}
	p.mu.Lock()
	p.renderers = append(p.renderers, r)
	p.mu.Unlock()
	return r, nil
}

// Renderers returns every renderer created so far.
func (p *Platform) Renderers() []*Renderer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Renderer(nil), p.renderers...)
}

// LoadGeometry implements viewer.Platform.
func (p *Platform) LoadGeometry(ctx context.Context, req viewer.GeometryRequest) (*model.Model, error) {
	p.log.Debug("loading geometry",
		zap.String("kind", string(req.Kind)),
		zap.String("geometry", req.GeometryURL))
	return p.loader.Load(ctx, req.GeometryURL, req.MaterialURL, req.BaseURL)
}

// CreateOrbitControls implements viewer.Platform.
func (p *Platform) CreateOrbitControls(cam *camera.Perspective, el viewer.Element, opts viewer.OrbitOptions) viewer.Controls {
	return viewer.NewOrbitControls(cam, el, opts)
}

// ImmersiveSupported implements viewer.Platform.
func (p *Platform) ImmersiveSupported() bool { return false }

// RequestImmersiveSession implements viewer.Platform.
func (p *Platform) RequestImmersiveSession(context.Context, viewer.XRSessionOptions) *async.Future[viewer.XRSession] {
	return async.FailedWith[viewer.XRSession](viewer.ErrARUnsupported)
}

// Element is a drawing surface with no pixels.
type Element struct {
	mu     sync.Mutex
	size   viewer.Size
	events *input.Dispatcher
}

// NewElement creates an empty element.
func NewElement() *Element {
	return &Element{events: input.NewDispatcher()}
}

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

// Renderer records what each frame would draw.
type Renderer struct {
	el   *Element
	opts viewer.RendererOptions

	mu       sync.Mutex
	ratio    float32
	clear    [3]float32
	alpha    float32
	frames   uint64
	last     scene.Stats
	viewProj math.Mat4
	disposed bool
}

// Element implements viewer.Renderer.
func (r *Renderer) Element() viewer.Element { return r.el }

// Options returns the options the renderer was created with.
func (r *Renderer) Options() viewer.RendererOptions { return r.opts }

// SetPixelRatio implements viewer.Renderer.
func (r *Renderer) SetPixelRatio(ratio float32) {
	r.mu.Lock()
	r.ratio = ratio
	r.mu.Unlock()
}

// SetSize implements viewer.Renderer.
func (r *Renderer) SetSize(width, height int) { r.el.SetSize(width, height) }

// SetClearColor implements viewer.Renderer.
func (r *Renderer) SetClearColor(rgb [3]float32, alpha float32) {
	r.mu.Lock()
	r.clear, r.alpha = rgb, alpha
	r.mu.Unlock()
}

// Render implements viewer.Renderer.
func (r *Renderer) Render(s *scene.Scene, cam *camera.Perspective) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disposed {
		return viewer.ErrSessionClosed
	}
	r.frames++
	r.last = s.Stats()
	r.viewProj = cam.ViewProjection()
	return nil
}

// Dispose implements viewer.Renderer.
func (r *Renderer) Dispose() {
	r.mu.Lock()
	r.disposed = true
	r.mu.Unlock()
}

// Frames returns the number of frames rendered.
func (r *Renderer) Frames() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// LastStats returns the statistics of the last rendered scene.
func (r *Renderer) LastStats() scene.Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// ViewProjection returns the camera matrix of the last frame.
func (r *Renderer) ViewProjection() math.Mat4 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.viewProj
}

// Disposed reports whether Dispose was called.
func (r *Renderer) Disposed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.disposed
}
