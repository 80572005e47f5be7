package headless

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Faultbox/wavefront-viewer/internal/assets"
	"github.com/Faultbox/wavefront-viewer/internal/descriptor"
	"github.com/Faultbox/wavefront-viewer/internal/engine/input"
	"github.com/Faultbox/wavefront-viewer/internal/engine/model"
	"github.com/Faultbox/wavefront-viewer/internal/viewer"
)

const cubeOBJ = `mtllib cube.mtl
o cube
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
usemtl red
f 1 2 3 4
`

const cubeMTL = `newmtl red
Kd 1 0 0
`

func newPlatform(t *testing.T) *Platform {
	t.Helper()
	dir := t.TempDir()
	for name, body := range map[string]string{"cube.obj": cubeOBJ, "cube.mtl": cubeMTL} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	fetcher := assets.NewFetcher(assets.Options{Root: dir}, nil)
	return New(model.NewLoader(fetcher, nil), nil)
}

// stepUntil steps the host until cond holds.
func stepUntil(t *testing.T, h *Host, cond func() bool) {
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

func TestHeadlessStaticSession(t *testing.T) {
	host := NewHost(viewer.Size{Width: 1024, Height: 768})
	mount := host.AddMount("cube", map[string]string{
		descriptor.AttrOBJ:         "cube.obj",
		descriptor.AttrMTL:         "cube.mtl",
		descriptor.AttrStageWidth:  "640",
		descriptor.AttrStageHeight: "480",
	})
	p := newPlatform(t)
	page := viewer.NewPage(host, p, viewer.Options{})

	s, err := page.InitFromAttributes("cube")
	if err != nil {
		t.Fatalf("InitFromAttributes: %v", err)
	}
	stepUntil(t, host, func() bool { return s.State() == viewer.StateReady })
	host.Step()

	r := p.Renderers()[0]
	if r.Frames() == 0 {
		t.Fatal("nothing rendered")
	}
	if st := r.LastStats(); st.Meshes != 1 || st.Triangles != 2 {
		t.Errorf("stats = %+v, want 1 mesh and 2 triangles", st)
	}
	if got := r.Element().Size(); got != (viewer.Size{Width: 640, Height: 480}) {
		t.Errorf("surface = %v", got)
	}
	if len(mount.Children()) != 1 {
		t.Error("surface not attached")
	}

	// Dragging on the surface orbits the camera.
	before := s.Camera().Position
	el := r.Element().Events()
	el.Dispatch(input.Event{Type: input.EventPointerDown, Button: input.ButtonLeft, X: 100, Y: 100})
	el.Dispatch(input.Event{Type: input.EventPointerMove, X: 200, Y: 100})
	el.Dispatch(input.Event{Type: input.EventPointerUp, Button: input.ButtonLeft, X: 200, Y: 100})
	host.Step()
	if s.Camera().Position.ApproxEqual(before) {
		t.Error("camera did not orbit")
	}

	host.Resize(800, 400)
	if s.Camera().Aspect != 2 {
		t.Errorf("aspect = %v", s.Camera().Aspect)
	}

	page.TeardownAll()
	if !r.Disposed() || len(mount.Children()) != 0 || host.Pending() != 0 {
		t.Error("teardown left resources behind")
	}
	if el.Len() != 0 {
		t.Errorf("orbit listeners left = %d", el.Len())
	}
}

func TestHeadlessAssetFailure(t *testing.T) {
	host := NewHost(viewer.Size{Width: 100, Height: 100})
	mount := host.AddMount("m", nil)
	p := newPlatform(t)
	desc := descriptor.ModelDescriptor{GeometryURL: "nope.obj", MaterialURL: "cube.mtl"}

	s, err := viewer.InitSession(host, p, "m", desc, viewer.Options{})
	if err != nil {
		t.Fatal(err)
	}
	stepUntil(t, host, func() bool { return s.State() == viewer.StateError })
	if !errors.Is(s.Err(), assets.ErrNotFound) {
		t.Errorf("err = %v", s.Err())
	}
	if mount.Heading() != viewer.HeadingModelUnavailable {
		t.Errorf("heading = %q", mount.Heading())
	}
}

func TestHeadlessRejectsAR(t *testing.T) {
	host := NewHost(viewer.Size{Width: 100, Height: 100})
	mount := host.AddMount("m", nil)
	desc := descriptor.ModelDescriptor{Kind: descriptor.KindAR, GeometryURL: "cube.obj"}

	_, err := viewer.InitSession(host, newPlatform(t), "m", desc, viewer.Options{})
	if !errors.Is(err, viewer.ErrARUnsupported) {
		t.Fatalf("err = %v", err)
	}
	if mount.Heading() != viewer.HeadingARUnsupported {
		t.Errorf("heading = %q", mount.Heading())
	}
}

func TestHeadlessRendererUnavailable(t *testing.T) {
	host := NewHost(viewer.Size{Width: 100, Height: 100})
	host.AddMount("m", nil)
	p := newPlatform(t)
	p.Unavailable = true
	desc := descriptor.ModelDescriptor{GeometryURL: "cube.obj", MaterialURL: "cube.mtl"}

	if _, err := viewer.InitSession(host, p, "m", desc, viewer.Options{}); !errors.Is(err, viewer.ErrRenderingUnavailable) {
		t.Errorf("err = %v", err)
	}
}

func TestHostPost(t *testing.T) {
	host := NewHost(viewer.Size{Width: 1, Height: 1})
	ran := make(chan struct{})
	go host.Post(func() { close(ran) })
	stepUntil(t, host, func() bool {
		select {
		case <-ran:
			return true
		default:
			return false
		}
	})
	if ids := host.MountIDs(); len(ids) != 0 {
		t.Errorf("mounts = %v", ids)
	}
}
