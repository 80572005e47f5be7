package xrsim

import (
	"context"
	"errors"
	gomath "math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Faultbox/wavefront-viewer/internal/assets"
	"github.com/Faultbox/wavefront-viewer/internal/descriptor"
	"github.com/Faultbox/wavefront-viewer/internal/engine/model"
	"github.com/Faultbox/wavefront-viewer/internal/platform/headless"
	"github.com/Faultbox/wavefront-viewer/internal/viewer"
	"github.com/Faultbox/wavefront-viewer/pkg/math"
)

func setup(t *testing.T, cfg Config) (*headless.Host, *headless.Mount, *Platform) {
	t.Helper()
	dir := t.TempDir()
	obj := "o tri\nv 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\n"
	if err := os.WriteFile(filepath.Join(dir, "tri.obj"), []byte(obj), 0o644); err != nil {
		t.Fatal(err)
	}
	host := headless.NewHost(viewer.Size{Width: 360, Height: 640})
	mount := host.AddMount("ar", nil)
	inner := headless.New(model.NewLoader(assets.NewFetcher(assets.Options{Root: dir}, nil), nil), nil)
	return host, mount, New(inner, host, cfg, nil)
}

func stepUntil(t *testing.T, h *headless.Host, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached")
		}
		h.Step()
		time.Sleep(time.Millisecond)
	}
}

func TestSimulatedPlacement(t *testing.T) {
	host, mount, p := setup(t, Config{Planes: []float32{-1, 0}})
	desc := descriptor.ModelDescriptor{Kind: descriptor.KindAR, GeometryURL: "tri.obj"}
	s, err := viewer.InitSession(host, p, "ar", desc, viewer.Options{})
	if err != nil {
		t.Fatalf("InitSession: %v", err)
	}

	buttons := mount.Buttons()
	if len(buttons) != 1 || buttons[0].Label() != viewer.LabelStartAR {
		t.Fatalf("buttons = %v", buttons)
	}
	buttons[0].Click()
	host.Step()
	sess := p.Current()
	if sess == nil || !s.InXR() {
		t.Fatal("immersive session not running")
	}

	stepUntil(t, host, func() bool { return s.HitTest() == viewer.HitTestSourced && s.Reticle().Visible })

	// Eye at 1.6 looking down 0.5 rad hits the floor, the nearer plane.
	dist := DefaultEyeHeight / float32(gomath.Sin(0.5))
	want := math.V3(0, 0, -dist*float32(gomath.Cos(0.5)))
	if got := s.Reticle().Transform.Position(); !got.ApproxEqual(want) {
		t.Errorf("reticle at %v, want %v", got, want)
	}

	sess.Select()
	placed := s.Placed()
	if len(placed) != 1 || !placed[0].Transform.Position().ApproxEqual(want) {
		t.Fatalf("placed = %d", len(placed))
	}

	sess.Look(0, 1.2)
	host.Step()
	if s.Reticle().Visible {
		t.Error("reticle visible while looking at the ceiling")
	}
	sess.Select()
	if len(s.Placed()) != 1 {
		t.Error("select placed an object without a hit")
	}

	if err := sess.End(); err != nil {
		t.Fatal(err)
	}
	if s.State() != viewer.StateClosed {
		t.Errorf("state = %v after session end", s.State())
	}
	if sess.ActiveSources() != 0 {
		t.Errorf("active sources = %d", sess.ActiveSources())
	}
	if host.Pending() != 0 {
		t.Error("frames still scheduled")
	}
	if err := sess.End(); !errors.Is(err, viewer.ErrSessionClosed) {
		t.Errorf("second End = %v", err)
	}
}

func TestRequiredFeatures(t *testing.T) {
	_, _, p := setup(t, Config{})
	f := p.RequestImmersiveSession(context.Background(), viewer.XRSessionOptions{RequiredFeatures: []string{"dom-overlay"}})
	if _, err := f.Wait(context.Background()); !errors.Is(err, ErrMissingFeature) {
		t.Errorf("err = %v", err)
	}

	f = p.RequestImmersiveSession(context.Background(), viewer.XRSessionOptions{RequiredFeatures: []string{viewer.FeatureHitTest}})
	if _, err := f.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	f = p.RequestImmersiveSession(context.Background(), viewer.XRSessionOptions{})
	if _, err := f.Wait(context.Background()); err == nil {
		t.Error("second concurrent session allowed")
	}
}

func TestFrameHitResults(t *testing.T) {
	f := &Frame{pose: math.Translation(math.V3(0, 2, 0)).Mul(math.RotationX(-gomath.Pi / 2)), planes: []float32{0, 1, 3}}
	src := &source{}

	results := f.HitTestResults(src)
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2 (plane above the eye is behind the ray)", len(results))
	}
	if y := results[0].Pose.Position().Y; gomath.Abs(float64(y-1)) > 1e-5 {
		t.Errorf("nearest hit y = %v, want 1", y)
	}

	if got := f.HitTestResults(nil); got != nil {
		t.Error("results for a foreign source")
	}
	src.Cancel()
	if got := f.HitTestResults(src); got != nil {
		t.Error("results for a cancelled source")
	}
}
