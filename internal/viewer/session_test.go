package viewer

import (
	"errors"
	gomath "math"
	"strings"
	"testing"
	"time"

	"github.com/Faultbox/wavefront-viewer/internal/descriptor"
	"github.com/Faultbox/wavefront-viewer/internal/engine/animation"
	"github.com/Faultbox/wavefront-viewer/internal/engine/input"
	"github.com/Faultbox/wavefront-viewer/internal/engine/model"
	"github.com/Faultbox/wavefront-viewer/internal/engine/scene"
	"github.com/Faultbox/wavefront-viewer/pkg/math"
)

func vaseDescriptor() descriptor.ModelDescriptor {
	return descriptor.ModelDescriptor{
		Kind:        descriptor.KindStatic,
		GeometryURL: "https://example.com/vase.obj",
		MaterialURL: "https://example.com/vase.mtl",
	}
}

func arDescriptor() descriptor.ModelDescriptor {
	return descriptor.ModelDescriptor{
		Kind:        descriptor.KindAR,
		GeometryURL: "https://example.com/vase.obj",
		MaterialURL: "https://example.com/vase.mtl",
	}
}

func near(a, b float32) bool {
	return gomath.Abs(float64(a-b)) < 1e-4
}

func TestInitSessionMountNotFound(t *testing.T) {
	host := newFakeHost()
	s, err := InitSession(host, &fakePlatform{}, "missing", vaseDescriptor(), Options{})
	if !errors.Is(err, ErrMountNotFound) {
		t.Fatalf("err = %v, want ErrMountNotFound", err)
	}
	if s != nil {
		t.Error("session returned for a missing mount")
	}
}

func TestInitSessionConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		desc    descriptor.ModelDescriptor
		wantErr error
	}{
		{
			name:    "static without material",
			desc:    descriptor.ModelDescriptor{Kind: descriptor.KindStatic, GeometryURL: "vase.obj"},
			wantErr: descriptor.ErrMissingMaterial,
		},
		{
			name:    "no geometry",
			desc:    descriptor.ModelDescriptor{Kind: descriptor.KindAnimated},
			wantErr: descriptor.ErrMissingGeometry,
		},
		{
			name: "bad field of view",
			desc: descriptor.ModelDescriptor{
				Kind:        descriptor.KindAnimated,
				GeometryURL: "avatar.dae",
				Camera:      descriptor.Camera{FieldOfViewDegrees: 200},
			},
			wantErr: descriptor.ErrInvalidValue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host := newFakeHost("m")
			p := &fakePlatform{model: vaseModel()}
			s, err := InitSession(host, p, "m", tt.desc, Options{})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			var cfg *descriptor.ConfigError
			if !errors.As(err, &cfg) {
				t.Errorf("err = %T, want *descriptor.ConfigError", err)
			}
			if s.State() != StateError {
				t.Errorf("state = %v, want error", s.State())
			}
			if len(p.renderers) != 0 {
				t.Errorf("renderers created = %d, want 0", len(p.renderers))
			}
			if got := host.mounts["m"].errors; len(got) != 1 || got[0] != HeadingModelUnavailable {
				t.Errorf("mount errors = %v", got)
			}
			if len(host.frames) != 0 {
				t.Error("render loop scheduled for an invalid descriptor")
			}
		})
	}
}

func TestInitSessionCapabilityErrors(t *testing.T) {
	t.Run("ar unsupported", func(t *testing.T) {
		host := newFakeHost("m")
		p := &fakePlatform{}
		s, err := InitSession(host, p, "m", arDescriptor(), Options{})
		if !errors.Is(err, ErrARUnsupported) {
			t.Fatalf("err = %v", err)
		}
		var capErr *CapabilityError
		if !errors.As(err, &capErr) {
			t.Errorf("err = %T, want *CapabilityError", err)
		}
		if s.State() != StateError || len(p.renderers) != 0 {
			t.Errorf("state = %v, renderers = %d", s.State(), len(p.renderers))
		}
		if got := host.mounts["m"].errors; len(got) != 1 || got[0] != HeadingARUnsupported {
			t.Errorf("mount errors = %v", got)
		}
	})

	t.Run("no renderer", func(t *testing.T) {
		host := newFakeHost("m")
		p := &fakePlatform{rendererErr: errors.New("no GL context")}
		s, err := InitSession(host, p, "m", vaseDescriptor(), Options{})
		if !errors.Is(err, ErrRenderingUnavailable) {
			t.Fatalf("err = %v", err)
		}
		if s.State() != StateError {
			t.Errorf("state = %v", s.State())
		}
		if len(host.frames) != 0 {
			t.Error("render loop scheduled without a renderer")
		}
	})
}

func TestStaticSessionEndToEnd(t *testing.T) {
	host := newFakeHost("vase")
	p := &fakePlatform{model: vaseModel()}
	rec := &recorder{}
	s, err := InitSession(host, p, "vase", vaseDescriptor(), Options{Observer: rec})
	if err != nil {
		t.Fatalf("InitSession: %v", err)
	}

	cam := s.Camera()
	if cam.Aspect != 1 || cam.FOV != 45 {
		t.Errorf("camera aspect=%v fov=%v, want 1 and 45", cam.Aspect, cam.FOV)
	}
	if !cam.Position.ApproxEqual(math.V3(0, 1, 200)) {
		t.Errorf("camera position = %v", cam.Position)
	}
	r := p.renderers[0]
	if r.el.size != (Size{Width: 400, Height: 400}) {
		t.Errorf("surface size = %v", r.el.size)
	}
	if r.clear != ClearColor || r.alpha != 1 {
		t.Errorf("clear = %v alpha %v", r.clear, r.alpha)
	}
	if bg, ok := s.Scene().Background(); !ok || bg != descriptor.DefaultBackground.Floats() {
		t.Errorf("background = %v, %v", bg, ok)
	}
	if len(host.mounts["vase"].children) != 1 {
		t.Error("drawing surface not attached")
	}
	if len(p.controls) != 1 {
		t.Fatal("orbit controls not created")
	}

	before := s.Scene().ChildCount()
	waitLoad(t, s)
	host.stepN(5)

	if got := s.Scene().ChildCount(); got != before+1 {
		t.Errorf("children = %d, want %d", got, before+1)
	}
	if s.State() != StateReady {
		t.Errorf("state = %v, want ready", s.State())
	}
	if s.Model() == nil || s.Model().Root.Parent() != s.Scene().Root() {
		t.Error("model root not attached to the scene")
	}
	if r.renders != 5 || p.controls[0].updates != 5 {
		t.Errorf("renders = %d updates = %d, want 5", r.renders, p.controls[0].updates)
	}
	if rec.count(EventAssetLoaded) != 1 {
		t.Errorf("loaded events = %d", rec.count(EventAssetLoaded))
	}
	st := s.Status()
	if st.Frames != 5 || st.Triangles != s.Model().Triangles {
		t.Errorf("status = %+v", st)
	}
}

func TestAssetFailure(t *testing.T) {
	host := newFakeHost("m")
	p := &fakePlatform{loadErr: errors.New("404 Not Found")}
	s, err := InitSession(host, p, "m", vaseDescriptor(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	waitLoad(t, s)
	host.step()

	if s.State() != StateError {
		t.Fatalf("state = %v, want error", s.State())
	}
	var assetErr *AssetError
	if !errors.As(s.Err(), &assetErr) || assetErr.URL != vaseDescriptor().GeometryURL {
		t.Errorf("err = %v", s.Err())
	}
	if got := host.mounts["m"].errors; len(got) != 1 || got[0] != HeadingModelUnavailable {
		t.Errorf("mount errors = %v", got)
	}
}

func TestResize(t *testing.T) {
	for _, kind := range []descriptor.Kind{descriptor.KindStatic, descriptor.KindAR} {
		t.Run(string(kind), func(t *testing.T) {
			host := newFakeHost("m")
			p := &fakePlatform{model: vaseModel(), immersive: true}
			desc := vaseDescriptor()
			desc.Kind = kind
			s, err := InitSession(host, p, "m", desc, Options{})
			if err != nil {
				t.Fatal(err)
			}
			proj := s.Camera().ProjectionMatrix()

			host.events.Dispatch(input.Event{Type: input.EventResize, Width: 800, Height: 400})

			if s.Camera().Aspect != 2 {
				t.Errorf("aspect = %v, want 2", s.Camera().Aspect)
			}
			if s.Camera().ProjectionMatrix() == proj {
				t.Error("projection not updated")
			}
			if got := p.renderers[0].el.size; got != (Size{Width: 800, Height: 400}) {
				t.Errorf("surface = %v", got)
			}
		})
	}
}

func TestLightingToggle(t *testing.T) {
	host := newFakeHost("m")
	s, err := InitSession(host, &fakePlatform{model: vaseModel()}, "m", vaseDescriptor(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	ambient := s.Scene().Find("ambient")
	if ambient.Light.Intensity != AmbientFull || s.Scene().Find("key") == nil || s.LightingOn() {
		t.Fatal("rig should start in the scene, toggled off, with full ambient")
	}

	host.events.Dispatch(input.Event{Type: input.EventKeyDown, Key: "KeyK"})
	if s.LightingOn() {
		t.Fatal("non-L key toggled lighting")
	}

	host.events.Dispatch(input.Event{Type: input.EventKeyDown, Key: input.KeyL})
	if !s.LightingOn() || ambient.Light.Intensity != AmbientDimmed {
		t.Errorf("after L: on=%v ambient=%v", s.LightingOn(), ambient.Light.Intensity)
	}
	for _, name := range []string{"key", "fill", "back"} {
		if s.Scene().Find(name) == nil {
			t.Errorf("%s light missing", name)
		}
	}
	key := s.Scene().Find("key")
	if key.Light.Color != warmLight || !key.Position().ApproxEqual(math.V3(-100, 0, 100)) {
		t.Errorf("key light = %+v at %v", key.Light, key.Position())
	}

	host.events.Dispatch(input.Event{Type: input.EventKeyDown, Key: input.KeyL})
	if s.LightingOn() || ambient.Light.Intensity != AmbientFull || s.Scene().Find("key") != nil {
		t.Error("second L did not restore ambient-only lighting")
	}
	if s.Status().Lighting != s.LightingOn() {
		t.Error("status lighting out of sync")
	}
}

func TestAnimatedSession(t *testing.T) {
	root := scene.NewGroup("rig")
	joint := scene.NewNode(scene.KindSkinnedMesh, "joint")
	root.Add(joint)
	clip := animation.NewClip("wave", []animation.Track{{
		Target: "joint",
		Times:  []float32{0, 1},
		Values: []math.Mat4{math.Identity(), math.Translation(math.V3(1, 0, 0))},
	}})

	now := time.Unix(1000, 0)
	host := newFakeHost("m")
	p := &fakePlatform{model: &model.Model{Root: root, Clips: []*animation.Clip{clip}, Skinned: 1}}
	desc := descriptor.ModelDescriptor{Kind: descriptor.KindAnimated, GeometryURL: "avatar.dae"}
	s, err := InitSession(host, p, "m", desc, Options{Now: func() time.Time { return now }})
	if err != nil {
		t.Fatal(err)
	}

	cam := s.Scene().Find("camera")
	if cam == nil || cam.Find("point") == nil {
		t.Fatal("point light should ride on the camera")
	}
	if s.Scene().Find("ambient").Light.Intensity != 0.2 {
		t.Error("ambient intensity")
	}

	waitLoad(t, s)
	host.step()
	if joint.FrustumCulled {
		t.Error("skinned mesh still frustum culled")
	}
	if len(s.Actions()) != 1 || !s.Actions()[0].IsRunning() {
		t.Fatal("first clip not playing")
	}

	now = now.Add(500 * time.Millisecond)
	host.step()
	if x := joint.Position().X; !near(x, 0.5) {
		t.Errorf("joint x = %v, want 0.5", x)
	}
}

func TestFrameFaultRecovery(t *testing.T) {
	host := newFakeHost("m")
	p := &fakePlatform{model: vaseModel(), fault: 2}
	rec := &recorder{}
	s, err := InitSession(host, p, "m", vaseDescriptor(), Options{Observer: rec})
	if err != nil {
		t.Fatal(err)
	}
	host.stepN(5)

	st := s.Status()
	if st.Frames != 5 || st.Faults != 1 {
		t.Errorf("frames = %d faults = %d, want 5 and 1", st.Frames, st.Faults)
	}
	if p.renderers[0].renders != 5 {
		t.Errorf("renders = %d", p.renderers[0].renders)
	}
	if s.State() == StateError || s.State() == StateClosed {
		t.Errorf("state = %v after a recovered fault", s.State())
	}
	if rec.count(EventFrameFault) != 1 {
		t.Errorf("fault events = %d", rec.count(EventFrameFault))
	}
	for _, e := range rec.events {
		if e.Kind != EventFrameFault {
			continue
		}
		if !strings.Contains(e.Error, "frame 2") || !strings.Contains(e.Error, "lost context") {
			t.Errorf("fault event error = %q, want the recovered panic", e.Error)
		}
	}
	if len(host.frames) != 1 {
		t.Error("loop stopped after a fault")
	}
}

func TestTeardown(t *testing.T) {
	host := newFakeHost("m")
	p := &fakePlatform{model: vaseModel()}
	rec := &recorder{}
	s, err := InitSession(host, p, "m", vaseDescriptor(), Options{Observer: rec})
	if err != nil {
		t.Fatal(err)
	}
	host.step()
	if host.events.Len() == 0 {
		t.Fatal("no window listeners registered")
	}

	s.Teardown()
	s.Teardown()

	if s.State() != StateClosed || s.Alive() {
		t.Errorf("state = %v alive = %v", s.State(), s.Alive())
	}
	if host.events.Len() != 0 {
		t.Errorf("window listeners left = %d", host.events.Len())
	}
	if len(host.frames) != 0 {
		t.Error("frame still scheduled")
	}
	if !p.renderers[0].disposed || !p.controls[0].disposed {
		t.Error("renderer or controls not disposed")
	}
	if len(host.mounts["m"].children) != 0 {
		t.Error("drawing surface still attached")
	}
	if rec.count(EventTornDown) != 1 {
		t.Errorf("torn down events = %d", rec.count(EventTornDown))
	}

	// Events after teardown are ignored.
	host.events.Dispatch(input.Event{Type: input.EventResize, Width: 10, Height: 10})
	if s.Camera().Aspect != 1 {
		t.Error("resize applied after teardown")
	}
}

func TestLateLoadAfterTeardown(t *testing.T) {
	host := newFakeHost("m")
	p := &fakePlatform{model: vaseModel(), gate: make(chan struct{})}
	s, err := InitSession(host, p, "m", vaseDescriptor(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	host.step()
	before := s.Scene().ChildCount()

	s.Teardown()
	close(p.gate)
	waitLoad(t, s)
	s.pollAssets()

	if got := s.Scene().ChildCount(); got != before {
		t.Errorf("children = %d, want %d", got, before)
	}
	if s.Model() != nil {
		t.Error("late model attached")
	}
	if s.State() != StateClosed {
		t.Errorf("state = %v", s.State())
	}
}

// startAR boots an AR session and enters the immersive session.
func startAR(t *testing.T) (*fakeHost, *fakePlatform, *Session) {
	t.Helper()
	host := newFakeHost("ar")
	p := &fakePlatform{model: vaseModel(), immersive: true, xr: newFakeXRSession()}
	s, err := InitSession(host, p, "ar", arDescriptor(), Options{Random: func() float64 { return 0.5 }})
	if err != nil {
		t.Fatal(err)
	}
	r := p.renderers[0]
	if !r.opts.XR || !r.opts.Alpha || r.alpha != 0 {
		t.Errorf("renderer options = %+v alpha %v", r.opts, r.alpha)
	}
	if _, ok := s.Scene().Background(); ok {
		t.Error("AR scene should have no background")
	}
	cam := s.Camera()
	if cam.FOV != ARFieldOfView || cam.Near != ARNear || cam.Far != ARFar || !near(cam.Aspect, 1280.0/720) {
		t.Errorf("AR camera = %+v", cam)
	}

	mount := host.mounts["ar"]
	if len(mount.buttons) != 1 || mount.buttons[0].label != LabelStartAR {
		t.Fatalf("buttons = %+v", mount.buttons)
	}
	mount.buttons[0].click()
	host.step()
	if !s.InXR() {
		t.Fatal("immersive session not started")
	}
	if len(host.frames) != 0 {
		t.Error("host loop still scheduled in XR")
	}
	if mount.buttons[0].label != LabelStopAR {
		t.Errorf("button label = %q", mount.buttons[0].label)
	}
	return host, p, s
}

func TestARHitTestAndPlacement(t *testing.T) {
	_, p, s := startAR(t)
	xr := p.xr
	empty := &fakeXRFrame{pose: math.Identity()}

	xr.step(empty)
	if xr.hitReqs != 1 || s.HitTest() != HitTestRequesting {
		t.Fatalf("hitReqs = %d state = %v", xr.hitReqs, s.HitTest())
	}
	for i := 0; i < 1000; i++ {
		xr.step(empty)
	}
	if xr.hitReqs != 1 {
		t.Fatalf("hit-test source requested %d times", xr.hitReqs)
	}

	src := &fakeSource{}
	xr.source.Resolve(src)
	xr.step(empty)
	if s.HitTest() != HitTestSourced {
		t.Fatalf("state = %v, want sourced", s.HitTest())
	}
	if s.Reticle().Visible {
		t.Error("reticle visible without results")
	}

	children := s.Scene().ChildCount()
	xr.events.Dispatch(input.Event{Type: input.EventSelect})
	if len(s.Placed()) != 0 || s.Scene().ChildCount() != children {
		t.Error("select with a hidden reticle placed an object")
	}

	pose := math.Translation(math.V3(0.3, -1, -2)).Mul(math.RotationX(-gomath.Pi / 2))
	hit := &fakeXRFrame{pose: math.Identity(), results: []HitResult{{Pose: pose}, {Pose: math.Identity()}}}
	xr.step(hit)
	if !s.Reticle().Visible || s.Reticle().Transform != pose {
		t.Fatal("reticle does not follow the first hit")
	}
	if s.Reticle().MatrixAutoUpdate {
		t.Error("reticle matrix should be written directly")
	}

	xr.events.Dispatch(input.Event{Type: input.EventSelect})
	xr.events.Dispatch(input.Event{Type: input.EventSelect})
	placed := s.Placed()
	if len(placed) != 2 || s.Status().Placed != 2 {
		t.Fatalf("placed = %d", len(placed))
	}
	m := placed[0]
	if m.Transform != pose || m.Kind != scene.KindMarker || m.Parent() != s.Scene().Root() {
		t.Errorf("marker = %+v", m)
	}
	if m.Material.Color != randomColor(0.5) {
		t.Errorf("marker color = %v", m.Material.Color)
	}

	xr.step(empty)
	if s.Reticle().Visible {
		t.Error("reticle still visible after results cleared")
	}
	if len(s.Placed()) != 2 {
		t.Error("placed objects evicted")
	}
}

func TestARSessionEndTearsDown(t *testing.T) {
	host, p, s := startAR(t)
	xr := p.xr
	src := &fakeSource{}
	xr.source.Resolve(src)
	xr.step(&fakeXRFrame{pose: math.Identity()})

	host.mounts["ar"].buttons[0].click()

	if xr.ended != 1 || src.cancelled != 1 {
		t.Errorf("ended = %d cancelled = %d", xr.ended, src.cancelled)
	}
	if s.HitTest() != HitTestEnded {
		t.Errorf("hit test = %v", s.HitTest())
	}
	if s.State() != StateClosed {
		t.Errorf("state = %v", s.State())
	}
	if xr.events.Len() != 0 || host.events.Len() != 0 {
		t.Errorf("listeners left: xr %d window %d", xr.events.Len(), host.events.Len())
	}
	if len(xr.frames) != 0 {
		t.Error("xr frame still scheduled")
	}
	if !host.mounts["ar"].buttons[0].removed {
		t.Error("AR button not removed")
	}
}

func TestTeardownEndsXRSession(t *testing.T) {
	_, p, s := startAR(t)
	xr := p.xr
	src := &fakeSource{}
	xr.source.Resolve(src)
	xr.step(&fakeXRFrame{pose: math.Identity()})

	s.Teardown()

	if xr.ended != 1 {
		t.Errorf("session ended %d times, want 1", xr.ended)
	}
	if src.cancelled != 1 {
		t.Errorf("source cancelled %d times, want 1", src.cancelled)
	}
	if s.HitTest() != HitTestEnded || s.State() != StateClosed {
		t.Errorf("hit test = %v state = %v", s.HitTest(), s.State())
	}
	if xr.step(&fakeXRFrame{}) != 0 {
		t.Error("xr frames still scheduled")
	}
}

func TestRandomColor(t *testing.T) {
	if got := randomColor(0); got != [3]float32{} {
		t.Errorf("randomColor(0) = %v", got)
	}
	got := randomColor(0.5)
	want := [3]float32{127.0 / 255, 1, 1}
	if got != want {
		t.Errorf("randomColor(0.5) = %v, want %v", got, want)
	}
}

func TestMarkerGeometryAlongZ(t *testing.T) {
	g := markerGeometry()
	if !near(g.Bounds.Min.Z, -markerHeight/2) || !near(g.Bounds.Max.Z, markerHeight/2) {
		t.Errorf("bounds = %+v", g.Bounds)
	}
	if g.TriangleCount() != 2*markerSegments {
		t.Errorf("triangles = %d", g.TriangleCount())
	}
}
