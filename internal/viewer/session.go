// Package viewer implements the viewer session: one instance per mounted
// model, owning its scene, camera, renderer, controls and render loop.
package viewer

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/wavefront-viewer/internal/async"
	"github.com/Faultbox/wavefront-viewer/internal/descriptor"
	"github.com/Faultbox/wavefront-viewer/internal/engine/animation"
	"github.com/Faultbox/wavefront-viewer/internal/engine/camera"
	"github.com/Faultbox/wavefront-viewer/internal/engine/input"
	"github.com/Faultbox/wavefront-viewer/internal/engine/model"
	"github.com/Faultbox/wavefront-viewer/internal/engine/scene"
	"github.com/Faultbox/wavefront-viewer/internal/logger"
	"github.com/Faultbox/wavefront-viewer/pkg/math"
)

// Camera and renderer constants.
const (
	DefaultNear = 0.1

	ARFieldOfView = 70
	ARNear        = 0.01
	ARFar         = 20
)

// ClearColor is the renderer clear color of non-AR viewers, hsl(0, 0%, 10%).
var ClearColor = [3]float32{0.1, 0.1, 0.1}

// Options tunes a session. The zero value is usable.
type Options struct {
	// Context is passed to asset loads. Loads are not cancelled on teardown.
	Context  context.Context
	Logger   *zap.Logger
	Observer Observer
	// Now is the wall clock used for animation deltas.
	Now func() time.Time
	// Random returns values in [0, 1) for placed marker colors.
	Random func() float64
	// DampingFactor overrides the orbit damping factor.
	DampingFactor float32
	// LightingOn starts static viewers with the directional rig enabled.
	LightingOn bool
}

func (o Options) withDefaults() Options {
	if o.Context == nil {
		o.Context = context.Background()
	}
	if o.Logger == nil {
		o.Logger = logger.Named("viewer")
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Random == nil {
		o.Random = rand.Float64
	}
	if o.DampingFactor <= 0 {
		o.DampingFactor = camera.DefaultDampingFactor
	}
	return o
}

type listenerRef struct {
	target *input.Dispatcher
	id     input.ListenerID
}

// Session is one viewer instance bound to a mount point.
type Session struct {
	id       string
	desc     descriptor.ModelDescriptor
	host     Host
	platform Platform
	mount    Mount
	opts     Options
	log      *zap.Logger

	scene      *scene.Scene
	camera     *camera.Perspective
	cameraNode *scene.Node
	renderer   Renderer
	controls   Controls
	lighting   *lightingRig

	load  *async.Future[*model.Model]
	model *model.Model

	clock   *animation.Clock
	mixers  []*animation.Mixer
	actions []*animation.Action

	ar *arState

	listeners []listenerRef
	frame     FrameHandle
	alive     bool

	mu     sync.Mutex
	status Status
	err    error
}

// InitSession creates a session for the model described by desc inside the
// mount point mountID, and starts its render loop.
//
// Configuration and capability failures return the session in StateError
// together with the error; nothing is rendered and the mount shows a
// fallback heading. A missing mount returns ErrMountNotFound and no
// session.
func InitSession(host Host, platform Platform, mountID string, desc descriptor.ModelDescriptor, opts Options) (*Session, error) {
	mount, ok := host.Mount(mountID)
	if !ok {
		return nil, ErrMountNotFound
	}
	opts = opts.withDefaults()
	desc = desc.WithDefaults()

	s := &Session{
		id:       mountID,
		desc:     desc,
		host:     host,
		platform: platform,
		mount:    mount,
		opts:     opts,
		log:      opts.Logger.With(zap.String("mount", mountID), zap.String("kind", string(desc.Kind))),
		status: Status{
			MountID: mountID,
			Kind:    desc.Kind,
			Title:   desc.Title,
			State:   StateLoading,
			Started: opts.Now(),
		},
	}

	if err := desc.Validate(); err != nil {
		s.fail(err, HeadingModelUnavailable)
		return s, err
	}
	if desc.Kind == descriptor.KindAR && !platform.ImmersiveSupported() {
		err := &CapabilityError{Capability: "immersive-ar", Err: ErrARUnsupported}
		s.fail(err, HeadingARUnsupported)
		return s, err
	}
	if err := s.bootstrap(); err != nil {
		s.fail(err, HeadingModelUnavailable)
		return s, err
	}

	s.alive = true
	s.startLoad()
	s.schedule()
	s.log.Info("session started",
		zap.String("geometry", desc.GeometryURL),
		zap.Int("children", s.scene.ChildCount()))
	return s, nil
}

// bootstrap builds the renderer, camera, scene, lights and controls.
func (s *Session) bootstrap() error {
	d := s.desc
	ar := d.Kind == descriptor.KindAR

	r, err := s.platform.CreateRenderer(RendererOptions{Antialias: true, Alpha: ar, XR: ar})
	if err != nil {
		return &CapabilityError{Capability: "renderer", Err: errors.Join(ErrRenderingUnavailable, err)}
	}
	s.renderer = r

	size := Size{Width: d.StageWidth, Height: d.StageHeight}
	if ar {
		size = s.host.ViewportSize()
	}
	r.SetPixelRatio(s.host.PixelRatio())
	r.SetSize(size.Width, size.Height)

	s.scene = scene.New()
	if ar {
		r.SetClearColor([3]float32{}, 0)
		s.camera = camera.NewPerspective(ARFieldOfView, size.Aspect(), ARNear, ARFar)
	} else {
		r.SetClearColor(ClearColor, 1)
		s.scene.SetBackground(d.Background().Floats())
		s.camera = camera.NewPerspective(d.Camera.FieldOfViewDegrees, d.Aspect(), DefaultNear, d.Camera.FarPlane)
		p := d.CameraPosition()
		s.camera.Position = math.V3(p.X, p.Y, p.Z)
		s.camera.LookAt(math.Vec3{})
		s.cameraNode = scene.NewNode(scene.KindCamera, "camera")
		s.scene.Add(s.cameraNode)
		s.syncCameraNode()
	}

	switch d.Kind {
	case descriptor.KindStatic:
		s.lighting = newLightingRig(s.scene)
		if s.opts.LightingOn {
			s.lighting.toggle(s.scene)
		}
		s.listen(s.host.Events(), input.EventKeyDown, s.onKeyDown)
	case descriptor.KindAnimated:
		s.scene.Add(scene.NewAmbientLight([3]float32{1, 1, 1}, 0.2))
		s.cameraNode.Add(scene.NewPointLight([3]float32{1, 1, 1}, 0.8))
		s.clock = animation.NewClock(s.opts.Now)
	case descriptor.KindAR:
		s.scene.Add(scene.NewHemisphereLight([3]float32{1, 1, 1}, [3]float32{0xbb / 255.0, 0xbb / 255.0, 1}, 1, math.V3(0.5, 1, 0.25)))
		s.ar = newARState(s)
	}

	s.mount.AppendChild(r.Element())

	if !ar {
		s.controls = s.platform.CreateOrbitControls(s.camera, r.Element(), OrbitOptions{
			EnableDamping: true,
			DampingFactor: s.opts.DampingFactor,
		})
	} else {
		s.ar.addButton()
	}

	s.listen(s.host.Events(), input.EventResize, s.onResize)
	return nil
}

func (s *Session) listen(target *input.Dispatcher, t input.EventType, fn input.Listener) {
	s.listeners = append(s.listeners, listenerRef{target: target, id: target.On(t, fn)})
}

func (s *Session) unlistenAll() {
	for _, l := range s.listeners {
		l.target.Off(l.id)
	}
	s.listeners = nil
}

func (s *Session) startLoad() {
	req := GeometryRequest{
		Kind:        s.desc.Kind,
		GeometryURL: s.desc.GeometryURL,
		MaterialURL: s.desc.MaterialURL,
		BaseURL:     s.desc.BaseAssetURL,
	}
	platform := s.platform
	s.load = async.Go(s.opts.Context, func(ctx context.Context) (*model.Model, error) {
		return platform.LoadGeometry(ctx, req)
	})
}

// pollAssets checks the pending load. It never blocks.
func (s *Session) pollAssets() {
	if s.load == nil {
		return
	}
	st, m, err := s.load.Poll()
	switch st {
	case async.Pending:
		return
	case async.Failed:
		s.load = nil
		s.fail(&AssetError{URL: s.desc.GeometryURL, Err: err}, HeadingModelUnavailable)
	case async.Resolved:
		s.load = nil
		s.attachModel(m)
	}
}

// attachModel adds a loaded model to the scene. It is a no-op on a dead
// session and after the first model.
func (s *Session) attachModel(m *model.Model) {
	if !s.alive || s.model != nil || m == nil {
		return
	}
	s.model = m

	if s.desc.Kind == descriptor.KindAnimated {
		m.Root.Traverse(func(n *scene.Node) {
			if n.Kind == scene.KindSkinnedMesh {
				n.FrustumCulled = false
			}
		})
		mixer := animation.NewMixer(m.Root)
		s.mixers = append(s.mixers, mixer)
		if len(m.Clips) > 0 {
			s.actions = append(s.actions, mixer.ClipAction(m.Clips[0]).Play())
		}
	}
	s.scene.Add(m.Root)

	s.mu.Lock()
	s.status.Triangles = m.Triangles
	s.mu.Unlock()
	s.setState(StateReady, nil)
	s.log.Info("model loaded",
		zap.Int("meshes", m.Meshes),
		zap.Int("triangles", m.Triangles),
		zap.Int("clips", len(m.Clips)))
	s.notify(Event{Kind: EventAssetLoaded})
}

func (s *Session) onResize(e input.Event) {
	if e.Width <= 0 || e.Height <= 0 {
		return
	}
	s.Resize(e.Width, e.Height)
}

// Resize applies new viewport dimensions: camera aspect, projection and
// drawing surface.
func (s *Session) Resize(width, height int) {
	if !s.alive || width <= 0 || height <= 0 {
		return
	}
	s.camera.Aspect = float32(width) / float32(height)
	s.camera.UpdateProjectionMatrix()
	s.renderer.SetSize(width, height)
	s.log.Debug("resized", zap.Int("width", width), zap.Int("height", height))
}

func (s *Session) onKeyDown(e input.Event) {
	if e.Key == input.KeyL && s.lighting != nil && s.alive {
		on := s.lighting.toggle(s.scene)
		s.mu.Lock()
		s.status.Lighting = on
		s.mu.Unlock()
		s.log.Debug("lighting toggled", zap.Bool("on", on))
		s.notify(Event{Kind: EventLightingToggled})
	}
}

func (s *Session) syncCameraNode() {
	if s.cameraNode != nil {
		s.cameraNode.Transform = s.camera.WorldMatrix()
	}
}

// fail moves the session to StateError and shows heading in the mount.
func (s *Session) fail(err error, heading string) {
	s.log.Error("session failed", zap.Error(err))
	s.setState(StateError, err)
	s.mount.ShowError(heading)
}

func (s *Session) setState(st State, err error) {
	s.mu.Lock()
	s.status.State = st
	if err != nil {
		s.status.Error = err.Error()
		s.err = err
	}
	s.mu.Unlock()
	s.notify(Event{Kind: EventStateChanged, State: st})
}

func (s *Session) notify(e Event) {
	if s.opts.Observer == nil {
		return
	}
	e.MountID = s.id
	s.mu.Lock()
	if e.Kind != EventStateChanged {
		e.State = s.status.State
	}
	if e.Error == "" {
		e.Error = s.status.Error
	}
	e.Placed = s.status.Placed
	s.mu.Unlock()
	e.Time = s.opts.Now()
	s.opts.Observer.Notify(e)
}

// Teardown stops the render loop, releases the hit-test source, detaches
// the drawing surface and removes every listener. Loads still in flight
// are ignored when they complete. Teardown is idempotent.
func (s *Session) Teardown() {
	s.teardown(true)
}

func (s *Session) teardown(endXR bool) {
	if !s.alive {
		return
	}
	s.alive = false

	if s.frame != 0 {
		s.host.CancelAnimationFrame(s.frame)
		s.frame = 0
	}
	if s.ar != nil {
		s.ar.release(endXR)
	}

	s.unlistenAll()
	if s.controls != nil {
		s.controls.Dispose()
	}
	for _, m := range s.mixers {
		m.StopAll()
	}
	if s.renderer != nil {
		s.mount.RemoveChild(s.renderer.Element())
		s.renderer.Dispose()
	}

	s.setState(StateClosed, nil)
	s.log.Info("session torn down")
	s.notify(Event{Kind: EventTornDown})
}

// ID returns the mount id.
func (s *Session) ID() string { return s.id }

// Descriptor returns the descriptor the session was built from, with
// defaults applied.
func (s *Session) Descriptor() descriptor.ModelDescriptor { return s.desc }

// Alive reports whether the session has been bootstrapped and not torn
// down.
func (s *Session) Alive() bool { return s.alive }

// State returns the lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status.State
}

// Err returns the error that moved the session to StateError.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Status returns a snapshot for presentation layers.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Scene returns the session's scene. Nil when bootstrap failed.
func (s *Session) Scene() *scene.Scene { return s.scene }

// Camera returns the session's camera. Nil when bootstrap failed.
func (s *Session) Camera() *camera.Perspective { return s.camera }

// Model returns the loaded model, or nil.
func (s *Session) Model() *model.Model { return s.model }

// Actions returns the animation states of an animated session.
func (s *Session) Actions() []*animation.Action { return s.actions }

// LightingOn reports whether the static directional rig is enabled.
func (s *Session) LightingOn() bool { return s.lighting != nil && s.lighting.on }
