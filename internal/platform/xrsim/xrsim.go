// Package xrsim simulates an immersive-AR runtime on top of another
// platform. The viewer stands at eye height above horizontal planes;
// hit tests cast the viewer's forward ray against those planes.
package xrsim

import (
	"context"
	"errors"
	gomath "math"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/wavefront-viewer/internal/async"
	"github.com/Faultbox/wavefront-viewer/internal/engine/input"
	"github.com/Faultbox/wavefront-viewer/internal/engine/picking"
	"github.com/Faultbox/wavefront-viewer/internal/viewer"
	"github.com/Faultbox/wavefront-viewer/pkg/math"
)

// Defaults for Config.
const (
	DefaultEyeHeight = 1.6
	DefaultPitch     = -0.5 // radians, looking down at the floor
)

// ErrMissingFeature is returned when a session asks for a feature the
// simulator does not offer.
var ErrMissingFeature = errors.New("required feature not supported")

// Features the simulator offers.
var supportedFeatures = map[string]bool{viewer.FeatureHitTest: true}

// Config describes the simulated room.
type Config struct {
	// Planes are the heights of detected horizontal surfaces.
	Planes []float32
	// EyeHeight is the viewer's height above y = 0.
	EyeHeight float32
	// Pitch is the initial downward look angle in radians.
	Pitch float32
}

// Platform wraps a platform and adds immersive-AR support.
type Platform struct {
	viewer.Platform
	host viewer.Host
	cfg  Config
	log  *zap.Logger

	mu      sync.Mutex
	current *Session
}

// New creates a simulator. Immersive frames are scheduled on host.
func New(inner viewer.Platform, host viewer.Host, cfg Config, log *zap.Logger) *Platform {
	if len(cfg.Planes) == 0 {
		cfg.Planes = []float32{0}
	}
	if cfg.EyeHeight == 0 {
		cfg.EyeHeight = DefaultEyeHeight
	}
	if cfg.Pitch == 0 {
		cfg.Pitch = DefaultPitch
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Platform{Platform: inner, host: host, cfg: cfg, log: log}
}

// ImmersiveSupported implements viewer.Platform.
func (p *Platform) ImmersiveSupported() bool { return true }

// RequestImmersiveSession implements viewer.Platform.
func (p *Platform) RequestImmersiveSession(_ context.Context, opts viewer.XRSessionOptions) *async.Future[viewer.XRSession] {
	for _, f := range opts.RequiredFeatures {
		if !supportedFeatures[f] {
			return async.FailedWith[viewer.XRSession](errors.Join(ErrMissingFeature, errors.New(f)))
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != nil && !p.current.Ended() {
		return async.FailedWith[viewer.XRSession](errors.New("an immersive session is already running"))
	}
	s := newSession(p.host, p.cfg, p.log)
	p.current = s
	p.log.Info("simulated immersive session started", zap.Int("planes", len(p.cfg.Planes)))
	return async.ResolvedWith[viewer.XRSession](s)
}

// Current returns the running session, or nil.
func (p *Platform) Current() *Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil || p.current.Ended() {
		return nil
	}
	return p.current
}

// Session is a simulated immersive session.
type Session struct {
	host   viewer.Host
	planes []float32
	eye    float32
	log    *zap.Logger
	events *input.Dispatcher

	mu      sync.Mutex
	yaw     float32
	pitch   float32
	pose    math.Mat4
	sources []*source
	ended   bool
}

func newSession(host viewer.Host, cfg Config, log *zap.Logger) *Session {
	s := &Session{
		host:   host,
		planes: append([]float32(nil), cfg.Planes...),
		eye:    cfg.EyeHeight,
		log:    log,
		events: input.NewDispatcher(),
		pitch:  cfg.Pitch,
	}
	s.updatePose()
	return s
}

// Events implements viewer.XRSession.
func (s *Session) Events() *input.Dispatcher { return s.events }

// RequestAnimationFrame implements viewer.XRSession. Frames ride on the
// host's scheduler.
func (s *Session) RequestAnimationFrame(fn viewer.XRFrameCallback) viewer.FrameHandle {
	return s.host.RequestAnimationFrame(func(t time.Duration) {
		if s.Ended() {
			return
		}
		fn(t, s.snapshot())
	})
}

// CancelAnimationFrame implements viewer.XRSession.
func (s *Session) CancelAnimationFrame(h viewer.FrameHandle) { s.host.CancelAnimationFrame(h) }

// RequestHitTestSource implements viewer.XRSession. The source resolves
// asynchronously.
func (s *Session) RequestHitTestSource() *async.Future[viewer.HitTestSource] {
	return async.Go(context.Background(), func(context.Context) (viewer.HitTestSource, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.ended {
			return nil, viewer.ErrSessionClosed
		}
		src := &source{}
		s.sources = append(s.sources, src)
		return src, nil
	})
}

// End implements viewer.XRSession. The end event is dispatched once.
func (s *Session) End() error {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return viewer.ErrSessionClosed
	}
	s.ended = true
	s.mu.Unlock()
	s.log.Info("simulated immersive session ended")
	s.events.Dispatch(input.Event{Type: input.EventXREnd})
	return nil
}

// Ended reports whether End was called.
func (s *Session) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

// Select dispatches a select event, as a screen tap would.
func (s *Session) Select() {
	if !s.Ended() {
		s.events.Dispatch(input.Event{Type: input.EventSelect})
	}
}

// Look turns the viewer by the given yaw and pitch deltas in radians.
// Pitch is clamped short of straight up and down.
func (s *Session) Look(dyaw, dpitch float32) {
	s.mu.Lock()
	s.yaw += dyaw
	s.pitch = math.Clamp(s.pitch+dpitch, -gomath.Pi/2+0.01, gomath.Pi/2-0.01)
	s.updatePose()
	s.mu.Unlock()
}

// SetPose replaces the viewer pose.
func (s *Session) SetPose(pose math.Mat4) {
	s.mu.Lock()
	s.pose = pose
	s.mu.Unlock()
}

// Pose returns the viewer pose.
func (s *Session) Pose() math.Mat4 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pose
}

// ActiveSources returns the number of hit-test sources not cancelled.
func (s *Session) ActiveSources() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, src := range s.sources {
		if !src.isCancelled() {
			n++
		}
	}
	return n
}

func (s *Session) updatePose() {
	rot := math.RotationY(s.yaw).Mul(math.RotationX(s.pitch))
	s.pose = math.Translation(math.Vec3{Y: s.eye}).Mul(rot)
}

func (s *Session) snapshot() *Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &Frame{pose: s.pose, planes: s.planes}
}

// Frame is the state of one simulated frame.
type Frame struct {
	pose   math.Mat4
	planes []float32
}

// ViewerPose implements viewer.XRFrame.
func (f *Frame) ViewerPose() (math.Mat4, bool) { return f.pose, true }

// HitTestResults implements viewer.XRFrame. Hits are sorted nearest first.
func (f *Frame) HitTestResults(src viewer.HitTestSource) []viewer.HitResult {
	s, ok := src.(*source)
	if !ok || s.isCancelled() {
		return nil
	}
	ray := picking.FromPose(f.pose)
	type hit struct {
		point math.Vec3
		dist  float32
	}
	var hits []hit
	for _, y := range f.planes {
		if p, d, ok := ray.IntersectPlaneY(y); ok {
			hits = append(hits, hit{p, d})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].dist < hits[j].dist })

	out := make([]viewer.HitResult, len(hits))
	for i, h := range hits {
		out[i] = viewer.HitResult{Pose: picking.HitPose(h.point, math.Vec3{Y: 1})}
	}
	return out
}

type source struct {
	mu        sync.Mutex
	cancelled bool
}

func (s *source) Cancel() {
	s.mu.Lock()
	s.cancelled = true
	s.mu.Unlock()
}

func (s *source) isCancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}
