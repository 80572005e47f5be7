package viewer

import (
	"context"
	"time"

	"github.com/Faultbox/wavefront-viewer/internal/async"
	"github.com/Faultbox/wavefront-viewer/internal/descriptor"
	"github.com/Faultbox/wavefront-viewer/internal/engine/camera"
	"github.com/Faultbox/wavefront-viewer/internal/engine/input"
	"github.com/Faultbox/wavefront-viewer/internal/engine/model"
	"github.com/Faultbox/wavefront-viewer/internal/engine/scene"
	"github.com/Faultbox/wavefront-viewer/pkg/math"
)

// Size is a width and height in CSS pixels.
type Size struct {
	Width, Height int
}

// Aspect returns Width / Height, or 1 for an empty size.
func (s Size) Aspect() float32 {
	if s.Width <= 0 || s.Height <= 0 {
		return 1
	}
	return float32(s.Width) / float32(s.Height)
}

// FrameHandle identifies a scheduled animation-frame callback.
type FrameHandle uint64

// FrameCallback runs once per display refresh with the frame timestamp.
type FrameCallback func(t time.Duration)

// Host is the page a viewer lives in. All callbacks, listeners and frame
// callbacks run on the host's event-loop goroutine.
type Host interface {
	// Mount finds a mount point by its unique id.
	Mount(id string) (Mount, bool)
	// ViewportSize is the size of the whole viewport.
	ViewportSize() Size
	// PixelRatio is the device pixel ratio.
	PixelRatio() float32
	// Events is the window-level event target (resize, keydown).
	Events() *input.Dispatcher
	RequestAnimationFrame(fn FrameCallback) FrameHandle
	CancelAnimationFrame(h FrameHandle)
}

// Mount is a container the page provides for one viewer.
type Mount interface {
	ID() string
	// Attributes are the server-rendered data-* attributes.
	Attributes() map[string]string
	AppendChild(el Element)
	RemoveChild(el Element)
	// ShowError replaces the viewer with a fallback heading.
	ShowError(heading string)
	AddButton(label string, onClick func()) Button
}

// Button is an on-page affordance such as the AR entry button.
type Button interface {
	SetLabel(label string)
	Remove()
}

// Element is a drawing surface.
type Element interface {
	SetSize(width, height int)
	Size() Size
	// Events is the element's event target (pointer, wheel).
	Events() *input.Dispatcher
}

// RendererOptions configures CreateRenderer.
type RendererOptions struct {
	Antialias bool
	// Alpha keeps the drawing buffer transparent where nothing is drawn.
	Alpha bool
	// XR enables presentation to an immersive session.
	XR bool
}

// Renderer draws a scene into its element.
type Renderer interface {
	Element() Element
	SetPixelRatio(ratio float32)
	SetSize(width, height int)
	SetClearColor(rgb [3]float32, alpha float32)
	Render(s *scene.Scene, cam *camera.Perspective) error
	Dispose()
}

// Controls is an interaction rig that moves the camera.
type Controls interface {
	// Update integrates pending input; it reports whether the camera moved.
	Update() bool
	Dispose()
}

// OrbitOptions configures CreateOrbitControls.
type OrbitOptions struct {
	EnableDamping bool
	DampingFactor float32
	Target        math.Vec3
}

// NewOrbitControls wires orbit controls to an element's pointer events.
// Platforms use it to implement CreateOrbitControls.
func NewOrbitControls(cam *camera.Perspective, el Element, opts OrbitOptions) *camera.OrbitControls {
	c := camera.NewOrbitControls(cam, func() (int, int) {
		s := el.Size()
		return s.Width, s.Height
	})
	c.EnableDamping = opts.EnableDamping
	if opts.DampingFactor > 0 {
		c.DampingFactor = opts.DampingFactor
	}
	c.Target = opts.Target
	c.Connect(el.Events())
	return c
}

// GeometryRequest names the assets of one model.
type GeometryRequest struct {
	Kind        descriptor.Kind
	GeometryURL string
	MaterialURL string
	BaseURL     string
}

// XRSessionOptions configures RequestImmersiveSession.
type XRSessionOptions struct {
	RequiredFeatures []string
}

// Platform is the graphics capability a session is built on.
type Platform interface {
	// CreateRenderer fails when rendering is unavailable.
	CreateRenderer(opts RendererOptions) (Renderer, error)
	// LoadGeometry blocks; sessions call it off the event loop.
	LoadGeometry(ctx context.Context, req GeometryRequest) (*model.Model, error)
	CreateOrbitControls(cam *camera.Perspective, el Element, opts OrbitOptions) Controls
	// ImmersiveSupported reports whether immersive AR sessions exist.
	ImmersiveSupported() bool
	RequestImmersiveSession(ctx context.Context, opts XRSessionOptions) *async.Future[XRSession]
}

// XRSession is an active immersive-AR session. Its event target carries
// input.EventSelect and input.EventXREnd.
type XRSession interface {
	Events() *input.Dispatcher
	RequestAnimationFrame(fn XRFrameCallback) FrameHandle
	CancelAnimationFrame(h FrameHandle)
	// RequestHitTestSource asks for a viewer-space hit-test source.
	RequestHitTestSource() *async.Future[HitTestSource]
	End() error
}

// XRFrameCallback runs once per immersive frame.
type XRFrameCallback func(t time.Duration, frame XRFrame)

// XRFrame is the state of one immersive frame.
type XRFrame interface {
	// ViewerPose is the camera-to-world transform of the viewer.
	ViewerPose() (math.Mat4, bool)
	// HitTestResults are ordered nearest first.
	HitTestResults(src HitTestSource) []HitResult
}

// HitTestSource reports surface hits along the viewer ray each frame.
type HitTestSource interface {
	Cancel()
}

// HitResult is one surface hit.
type HitResult struct {
	Pose math.Mat4
}
