package viewer

import (
	gomath "math"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/wavefront-viewer/internal/async"
	"github.com/Faultbox/wavefront-viewer/internal/engine/input"
	"github.com/Faultbox/wavefront-viewer/internal/engine/scene"
	"github.com/Faultbox/wavefront-viewer/pkg/math"
)

// AR entry button labels.
const (
	LabelStartAR = "START AR"
	LabelStopAR  = "STOP AR"
)

// FeatureHitTest is the immersive session feature the AR viewer requires.
const FeatureHitTest = "hit-test"

// Placed marker and reticle dimensions, in meters.
const (
	markerRadius   = 0.05
	markerHeight   = 0.2
	markerSegments = 32

	reticleInner    = 0.15
	reticleOuter    = 0.2
	reticleSegments = 32
)

// arState is the immersive half of an AR session: the entry button, the
// XR session, the hit-test protocol, the reticle and placed markers.
type arState struct {
	s *Session

	button  Button
	request *async.Future[XRSession]
	session XRSession
	xrFrame FrameHandle
	ending  bool

	hitTest   HitTestState
	requested bool
	sourceReq *async.Future[HitTestSource]
	source    HitTestSource

	reticle *scene.Node
	marker  *scene.Geometry
	placed  []*scene.Node
}

func newARState(s *Session) *arState {
	a := &arState{s: s, marker: markerGeometry()}
	a.reticle = scene.NewMesh("reticle", scene.RingGeometry(reticleInner, reticleOuter, reticleSegments), scene.NewMaterial("reticle", white))
	a.reticle.Kind = scene.KindReticle
	a.reticle.MatrixAutoUpdate = false
	a.reticle.Visible = false
	s.scene.Add(a.reticle)
	return a
}

// markerGeometry is the placed cone, turned so its apex points along +Z.
func markerGeometry() *scene.Geometry {
	g := scene.ConeGeometry(markerRadius, markerHeight, markerSegments)
	rot := math.RotationX(gomath.Pi / 2)
	for i := range g.Vertices {
		v := &g.Vertices[i]
		v.Position = rot.TransformPoint(math.Vec3{X: v.Position[0], Y: v.Position[1], Z: v.Position[2]}).Array()
		v.Normal = rot.TransformDirection(math.Vec3{X: v.Normal[0], Y: v.Normal[1], Z: v.Normal[2]}).Array()
	}
	g.ComputeBounds()
	return g
}

func (a *arState) addButton() {
	a.button = a.s.mount.AddButton(LabelStartAR, a.onButton)
}

func (a *arState) inXR() bool { return a.session != nil }

// onButton starts an immersive session, or ends the running one.
func (a *arState) onButton() {
	s := a.s
	if !s.alive {
		return
	}
	if a.session != nil {
		a.endSession()
		return
	}
	if a.request != nil {
		return
	}
	a.request = s.platform.RequestImmersiveSession(s.opts.Context, XRSessionOptions{
		RequiredFeatures: []string{FeatureHitTest},
	})
	s.log.Debug("immersive session requested")
}

// pollSession checks a pending immersive session request.
func (a *arState) pollSession() {
	if a.request == nil {
		return
	}
	st, sess, err := a.request.Poll()
	switch st {
	case async.Pending:
		return
	case async.Failed:
		a.request = nil
		a.s.log.Warn("immersive session refused", zap.Error(err))
	case async.Resolved:
		a.request = nil
		a.start(sess)
	}
}

// start switches the loop from the host scheduler to the session's.
func (a *arState) start(sess XRSession) {
	s := a.s
	if !s.alive || sess == nil {
		return
	}
	a.session = sess
	s.listen(sess.Events(), input.EventSelect, a.onSelect)
	s.listen(sess.Events(), input.EventXREnd, a.onEnd)

	if s.frame != 0 {
		s.host.CancelAnimationFrame(s.frame)
		s.frame = 0
	}
	a.xrFrame = sess.RequestAnimationFrame(a.tick)
	if a.button != nil {
		a.button.SetLabel(LabelStopAR)
	}

	s.mu.Lock()
	s.status.InXR = true
	s.mu.Unlock()
	s.log.Info("immersive session started")
	s.notify(Event{Kind: EventXRStarted})
}

// tick is the session-driven frame callback.
func (a *arState) tick(_ time.Duration, frame XRFrame) {
	a.xrFrame = 0
	s := a.s
	if !s.alive || a.session == nil {
		return
	}
	s.runFrame(func() error { return s.step(frame) })
	if s.alive && a.session != nil {
		a.xrFrame = a.session.RequestAnimationFrame(a.tick)
	}
}

// updateHitTest drives the hit-test protocol for one frame. The source is
// requested at most once per session; the reticle follows the first hit.
func (a *arState) updateHitTest(frame XRFrame) {
	if a.hitTest == HitTestEnded || a.session == nil {
		return
	}
	if !a.requested {
		a.requested = true
		a.sourceReq = a.session.RequestHitTestSource()
		a.setHitTest(HitTestRequesting)
	}
	if a.sourceReq != nil {
		st, src, err := a.sourceReq.Poll()
		switch st {
		case async.Resolved:
			a.sourceReq = nil
			a.source = src
			a.setHitTest(HitTestSourced)
		case async.Failed:
			a.sourceReq = nil
			a.s.log.Warn("hit-test source unavailable", zap.Error(err))
		}
	}
	if a.source == nil {
		return
	}

	results := frame.HitTestResults(a.source)
	if len(results) == 0 {
		a.reticle.Visible = false
		return
	}
	a.reticle.Visible = true
	a.reticle.Transform = results[0].Pose
}

func (a *arState) setHitTest(h HitTestState) {
	a.hitTest = h
	a.s.mu.Lock()
	a.s.status.HitTest = h
	a.s.mu.Unlock()
}

// endHitTest cancels the source and resets the request guard.
func (a *arState) endHitTest() {
	if a.source != nil {
		a.source.Cancel()
	}
	a.source = nil
	a.sourceReq = nil
	a.requested = false
	a.reticle.Visible = false
	a.setHitTest(HitTestEnded)
}

// onSelect places a marker at the reticle. Without a visible reticle it
// does nothing.
func (a *arState) onSelect(input.Event) {
	s := a.s
	if !s.alive || !a.reticle.Visible {
		return
	}
	m := scene.NewMesh("marker", a.marker, scene.NewMaterial("marker", randomColor(s.opts.Random())))
	m.Kind = scene.KindMarker
	m.Transform = a.reticle.Transform
	s.scene.Add(m)
	a.placed = append(a.placed, m)

	s.mu.Lock()
	s.status.Placed = len(a.placed)
	s.mu.Unlock()
	s.log.Debug("object placed", zap.Int("placed", len(a.placed)))
	s.notify(Event{Kind: EventObjectPlaced})
}

// randomColor scales r in [0, 1) to a 24-bit color.
func randomColor(r float64) [3]float32 {
	hex := uint32(r * 0xffffff)
	return [3]float32{
		float32(hex>>16&0xff) / 255,
		float32(hex>>8&0xff) / 255,
		float32(hex&0xff) / 255,
	}
}

// onEnd handles the session ending, whoever ended it.
func (a *arState) onEnd(input.Event) {
	s := a.s
	a.ending = true
	a.endHitTest()
	s.mu.Lock()
	s.status.InXR = false
	s.mu.Unlock()
	s.log.Info("immersive session ended")
	s.notify(Event{Kind: EventXREnded})
	s.teardown(false)
}

func (a *arState) endSession() {
	if a.session == nil || a.ending {
		return
	}
	a.ending = true
	if err := a.session.End(); err != nil {
		a.s.log.Warn("ending immersive session", zap.Error(err))
	}
}

// release stops the immersive loop and frees XR resources. endXR also ends
// the session when it is still running.
func (a *arState) release(endXR bool) {
	if a.session != nil {
		if a.xrFrame != 0 {
			a.session.CancelAnimationFrame(a.xrFrame)
			a.xrFrame = 0
		}
		a.endHitTest()
		if endXR {
			a.endSession()
		}
	}
	if a.button != nil {
		a.button.Remove()
		a.button = nil
	}
}

// Placed returns the markers placed so far, oldest first.
func (s *Session) Placed() []*scene.Node {
	if s.ar == nil {
		return nil
	}
	return append([]*scene.Node(nil), s.ar.placed...)
}

// Reticle returns the AR reticle, or nil for other kinds.
func (s *Session) Reticle() *scene.Node {
	if s.ar == nil {
		return nil
	}
	return s.ar.reticle
}

// HitTest returns the hit-test protocol state.
func (s *Session) HitTest() HitTestState {
	if s.ar == nil {
		return HitTestIdle
	}
	return s.ar.hitTest
}

// InXR reports whether an immersive session is running.
func (s *Session) InXR() bool { return s.ar != nil && s.ar.inXR() }

// ClickARButton presses the AR entry button, as a user would.
func (s *Session) ClickARButton() {
	if s.ar != nil {
		s.ar.onButton()
	}
}
