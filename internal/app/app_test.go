package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/wavefront-viewer/internal/config"
	"github.com/Faultbox/wavefront-viewer/internal/descriptor"
	"github.com/Faultbox/wavefront-viewer/internal/engine/input"
	"github.com/Faultbox/wavefront-viewer/internal/platform/headless"
	"github.com/Faultbox/wavefront-viewer/internal/viewer"
)

const planeOBJ = `mtllib plane.mtl
v -1 0 -1
v 1 0 -1
v 1 0 1
v -1 0 1
usemtl grey
f 1 2 3 4
`

const planeMTL = `newmtl grey
Kd 0.5 0.5 0.5
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"plane.obj": planeOBJ,
		"plane.mtl": planeMTL,
		"bare.obj":  "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\n",
		"catalogue.yaml": `activities:
  "7":
    kind: static
    geometry_url: plane.obj
    material_url: plane.mtl
`,
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	cfg := config.Default()
	cfg.Graphics.Headless = true
	cfg.Assets.Root = dir
	return cfg
}

func newApp(t *testing.T, cfg *config.Config, args ...string) (*App, *headless.Host) {
	t.Helper()
	log := zap.NewNop()
	d := HeadlessDisplay(cfg, NewLoader(cfg, log), log)
	a, err := New(cfg, d, args, log)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(a.Close)
	return a, d.Host.(*headless.Host)
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

func TestMountsFromArgs(t *testing.T) {
	exists := func(p string) bool { return p == "models/vase.mtl" }
	got := MountsFromArgs([]string{"models/vase.obj", "walk.DAE", "ar:chair.obj"}, exists)
	if len(got) != 3 {
		t.Fatalf("mounts = %+v", got)
	}

	tests := []struct {
		i     int
		id    string
		key   string
		value string
	}{
		{0, "model-1", descriptor.AttrOBJ, "models/vase.obj"},
		{0, "model-1", descriptor.AttrMTL, "models/vase.mtl"},
		{1, "model-2", descriptor.AttrDAE, "walk.DAE"},
		{2, "model-3", descriptor.AttrKind, "ar"},
		{2, "model-3", descriptor.AttrOBJ, "chair.obj"},
	}
	for _, tt := range tests {
		m := got[tt.i]
		if m.ID != tt.id || m.Attributes[tt.key] != tt.value {
			t.Errorf("mount %d: id=%s %s=%q, want %q", tt.i, m.ID, tt.key, m.Attributes[tt.key], tt.value)
		}
	}
	if _, ok := got[2].Attributes[descriptor.AttrMTL]; ok {
		t.Error("material added for a missing file")
	}
}

func TestNewWithoutModels(t *testing.T) {
	cfg := testConfig(t)
	log := zap.NewNop()
	if _, err := New(cfg, HeadlessDisplay(cfg, NewLoader(cfg, log), log), nil, log); err == nil {
		t.Error("expected an error with nothing to show")
	}
}

func TestSessionsFromArgsAndCatalogue(t *testing.T) {
	cfg := testConfig(t)
	cfg.Catalogue.File = filepath.Join(cfg.Assets.Root, "catalogue.yaml")
	cfg.Catalogue.Mounts = []config.MountConfig{
		{ID: "lesson", Activity: "7"},
		{ID: "missing", Activity: "99"},
	}
	a, host := newApp(t, cfg, "plane.obj", "bare.obj")
	a.Start(context.Background())

	page := a.Page()
	stepUntil(t, host, func() bool {
		s, ok := page.Session("model-1")
		return ok && s.State() == viewer.StateReady
	})
	stepUntil(t, host, func() bool {
		s, ok := page.Session("lesson")
		return ok && s.State() == viewer.StateReady
	})

	// A static OBJ without a material is a configuration error.
	if s, ok := page.Session("model-2"); !ok || s.State() != viewer.StateError {
		t.Error("bare model did not fail")
	}
	if _, ok := page.Session("missing"); ok {
		t.Error("session created for an unknown activity")
	}
	m, _ := host.Mount("missing")
	if m.(*headless.Mount).Heading() != viewer.HeadingModelUnavailable {
		t.Error("unknown activity did not show the fallback")
	}
	if n := len(page.Sessions()); n != 3 {
		t.Errorf("sessions = %d", n)
	}
}

func TestEmulatedAR(t *testing.T) {
	cfg := testConfig(t)
	cfg.AR.Emulate = true
	a, host := newApp(t, cfg, "ar:plane.obj")
	a.Start(context.Background())

	s, ok := a.Page().Session("model-1")
	if !ok {
		t.Fatal("no AR session")
	}
	if s.State() == viewer.StateError {
		t.Fatalf("AR session failed: %v", s.Err())
	}
	s.ClickARButton()
	stepUntil(t, host, func() bool { return s.InXR() && s.Reticle().Visible })

	host.Events().Dispatch(input.Event{Type: input.EventKeyDown, Key: input.KeySpace})
	if len(s.Placed()) != 1 {
		t.Fatalf("placed = %d after Space", len(s.Placed()))
	}

	before := a.XR().Current().Pose()
	host.Events().Dispatch(input.Event{Type: input.EventKeyDown, Key: "KeyA"})
	if a.XR().Current().Pose().ApproxEqual(before) {
		t.Error("KeyA did not turn the simulated viewer")
	}
}

func TestRunStopsWithContext(t *testing.T) {
	cfg := testConfig(t)
	cfg.Graphics.FPSLimit = 200
	a, _ := newApp(t, cfg, "plane.obj")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := a.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	s, ok := a.Page().Session("model-1")
	if !ok || s.Status().Frames == 0 {
		t.Error("no frames rendered while running")
	}
}
