package desktop

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/Faultbox/wavefront-viewer/internal/async"
	"github.com/Faultbox/wavefront-viewer/internal/engine/camera"
	"github.com/Faultbox/wavefront-viewer/internal/engine/model"
	"github.com/Faultbox/wavefront-viewer/internal/viewer"
)

// Platform renders with OpenGL into a window. It has no immersive runtime
// of its own.
type Platform struct {
	loader *model.Loader
	log    *zap.Logger

	mu   sync.Mutex
	prog *program
	err  error
}

// NewPlatform loads GL and compiles the scene shader. The window's context
// must be current. A GL failure is reported by CreateRenderer so sessions
// can show their fallback.
func NewPlatform(loader *model.Loader, log *zap.Logger) *Platform {
	if log == nil {
		log = zap.NewNop()
	}
	p := &Platform{loader: loader, log: log}
	p.prog, p.err = newProgram(log)
	if p.err != nil {
		log.Error("OpenGL unavailable", zap.Error(p.err))
	}
	return p
}

// Close releases the shared shader.
func (p *Platform) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.prog != nil {
		p.prog.destroy()
		p.prog = nil
	}
}

// CreateRenderer implements viewer.Platform.
func (p *Platform) CreateRenderer(opts viewer.RendererOptions) (viewer.Renderer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, errors.Join(viewer.ErrRenderingUnavailable, p.err)
	}
	if p.prog == nil {
		return nil, viewer.ErrRenderingUnavailable
	}
	return newRenderer(p.prog, NewElement(), opts, p.log), nil
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
