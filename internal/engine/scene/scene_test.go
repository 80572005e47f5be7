package scene

import (
	"testing"

	"github.com/Faultbox/wavefront-viewer/pkg/math"
)

func TestAddIsIdempotent(t *testing.T) {
	s := New()
	mesh := NewMesh("vase", ConeGeometry(1, 2, 8), NewMaterial("clay", [3]float32{1, 0.5, 0}))

	s.Add(mesh)
	s.Add(mesh)
	if got := s.ChildCount(); got != 1 {
		t.Fatalf("ChildCount after double Add = %d, want 1", got)
	}
	if mesh.Parent() != &s.Node {
		t.Error("parent not set to scene root")
	}

	// Re-parenting moves the node.
	g := NewGroup("rig")
	s.Add(g)
	g.Add(mesh)
	if s.ChildCount() != 1 || g.ChildCount() != 1 {
		t.Errorf("after reparent: scene=%d group=%d", s.ChildCount(), g.ChildCount())
	}

	s.Remove(mesh) // not a direct child, ignored
	if g.ChildCount() != 1 {
		t.Error("Remove of a grandchild must be ignored")
	}
	mesh.RemoveFromParent()
	if g.ChildCount() != 0 || mesh.Parent() != nil {
		t.Error("RemoveFromParent did not detach")
	}

	s.Add(s.Root())
	if s.ChildCount() != 1 {
		t.Error("adding a node to itself must be ignored")
	}
}

func TestTraverse(t *testing.T) {
	s := New()
	a := NewGroup("a")
	b := NewGroup("b")
	c := NewGroup("c")
	a.Add(b)
	s.Add(a, c)

	var names []string
	s.Traverse(func(n *Node) { names = append(names, n.Name) })
	want := []string{"scene", "a", "b", "c"}
	if len(names) != len(want) {
		t.Fatalf("Traverse = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("Traverse = %v, want %v", names, want)
		}
	}

	a.Visible = false
	names = names[:0]
	s.TraverseVisible(func(n *Node) { names = append(names, n.Name) })
	if len(names) != 2 || names[1] != "c" {
		t.Errorf("TraverseVisible = %v", names)
	}

	if s.Find("b") != b || s.Find("missing") != nil {
		t.Error("Find returned the wrong node")
	}
}

func TestWorldMatrix(t *testing.T) {
	s := New()
	parent := NewGroup("parent")
	parent.SetPosition(math.V3(1, 2, 3))
	child := NewGroup("child")
	child.SetPosition(math.V3(0, 0, -5))
	parent.Add(child)
	s.Add(parent)

	got := child.WorldMatrix().Position()
	if !got.ApproxEqual(math.V3(1, 2, -2)) {
		t.Errorf("world position = %v", got)
	}
}

func TestBackgroundAndStats(t *testing.T) {
	s := New()
	if _, ok := s.Background(); ok {
		t.Error("new scene should have no background")
	}
	s.SetBackground([3]float32{0.5, 0.5, 0.5})
	if c, ok := s.Background(); !ok || c[0] != 0.5 {
		t.Errorf("Background = %v, %v", c, ok)
	}
	s.ClearBackground()
	if _, ok := s.Background(); ok {
		t.Error("ClearBackground did not clear")
	}

	cone := ConeGeometry(0.05, 0.2, 32)
	s.Add(NewAmbientLight([3]float32{1, 1, 1}, 1))
	s.Add(NewMesh("marker", cone, NewMaterial("m", [3]float32{1, 0, 0})))
	hidden := NewMesh("reticle", RingGeometry(0.15, 0.2, 32), NewMaterial("r", [3]float32{1, 1, 1}))
	hidden.Visible = false
	s.Add(hidden)

	st := s.Stats()
	if st.Lights != 1 || st.Meshes != 1 || st.Triangles != cone.TriangleCount() {
		t.Errorf("Stats = %+v", st)
	}
}

func TestConeGeometry(t *testing.T) {
	g := ConeGeometry(0.05, 0.2, 32)
	if g.TriangleCount() != 64 {
		t.Errorf("triangles = %d, want 64", g.TriangleCount())
	}
	if !g.Bounds.Max.ApproxEqual(math.V3(0.05, 0.1, 0.05)) || g.Bounds.Min.Y != -0.1 {
		t.Errorf("bounds = %+v", g.Bounds)
	}
	for _, i := range g.Indices {
		if int(i) >= len(g.Vertices) {
			t.Fatalf("index %d out of range", i)
		}
	}
}

func TestKindString(t *testing.T) {
	if KindSkinnedMesh.String() != "skinned-mesh" || Kind(99).String() != "Kind(99)" {
		t.Error("Kind.String mismatch")
	}
	if !KindPointLight.IsLight() || KindMesh.IsLight() {
		t.Error("IsLight mismatch")
	}
}

func TestCollectLights(t *testing.T) {
	s := New()
	white := [3]float32{1, 1, 1}
	s.Add(NewAmbientLight(white, 0.25), NewAmbientLight(white, 0.25))
	s.Add(NewDirectionalLight("key", [3]float32{1, 0.5, 0}, 2, math.V3(0, 10, 0)))
	hidden := NewDirectionalLight("off", white, 1, math.V3(1, 0, 0))
	hidden.Visible = false
	s.Add(hidden)

	rig := NewGroup("rig")
	rig.SetPosition(math.V3(0, 0, 5))
	rig.Add(NewPointLight(white, 0.8))
	s.Add(rig)

	for i := 0; i < MaxLights+2; i++ {
		s.Add(NewDirectionalLight("extra", white, 1, math.V3(0, 0, 1)))
	}

	l := s.CollectLights()
	if l.Ambient != [3]float32{0.5, 0.5, 0.5} {
		t.Errorf("ambient = %v", l.Ambient)
	}
	if len(l.Directional) != MaxLights {
		t.Fatalf("directional = %d, want %d", len(l.Directional), MaxLights)
	}
	if d := l.Directional[0]; !d.Direction.ApproxEqual(math.V3(0, 1, 0)) || d.Color != [3]float32{2, 1, 0} {
		t.Errorf("key = %+v", d)
	}
	if len(l.Points) != 1 || !l.Points[0].Position.ApproxEqual(math.V3(0, 0, 5)) {
		t.Errorf("points = %+v", l.Points)
	}
	if l.Hemisphere {
		t.Error("hemisphere reported without a hemisphere light")
	}

	s2 := New()
	s2.Add(NewHemisphereLight(white, [3]float32{0, 0, 1}, 1, math.V3(0, 2, 0)))
	if l := s2.CollectLights(); !l.Hemisphere || !l.HemiUp.ApproxEqual(math.V3(0, 1, 0)) || l.Ground != [3]float32{0, 0, 1} {
		t.Errorf("hemisphere = %+v", l)
	}
}
