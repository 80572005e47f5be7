// Package scene provides the scene graph shared by every viewer variant.
// It is plain data: renderers walk it, loaders build it and the session
// owns it.
package scene

import (
	"fmt"

	"github.com/Faultbox/wavefront-viewer/pkg/math"
)

// Kind identifies what a node represents.
type Kind int

const (
	KindGroup Kind = iota
	KindMesh
	KindSkinnedMesh
	KindAmbientLight
	KindHemisphereLight
	KindDirectionalLight
	KindPointLight
	KindCamera
	KindReticle
	KindMarker
)

var kindNames = [...]string{
	KindGroup:            "group",
	KindMesh:             "mesh",
	KindSkinnedMesh:      "skinned-mesh",
	KindAmbientLight:     "ambient-light",
	KindHemisphereLight:  "hemisphere-light",
	KindDirectionalLight: "directional-light",
	KindPointLight:       "point-light",
	KindCamera:           "camera",
	KindReticle:          "reticle",
	KindMarker:           "marker",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// IsLight reports whether the kind is one of the light kinds.
func (k Kind) IsLight() bool {
	return k >= KindAmbientLight && k <= KindPointLight
}

// Light holds the parameters of a light node. GroundColor is only used by
// hemisphere lights.
type Light struct {
	Color       [3]float32
	GroundColor [3]float32
	Intensity   float32
}

// Node is an element of the scene graph. Transform is relative to the
// parent node.
type Node struct {
	Name          string
	Kind          Kind
	Transform     math.Mat4
	Visible       bool
	FrustumCulled bool

	// MatrixAutoUpdate is cleared for nodes whose transform is written
	// directly every frame (the AR reticle).
	MatrixAutoUpdate bool

	Geometry *Geometry
	Material *Material
	Light    *Light
	Skin     *Skin

	parent   *Node
	children []*Node
}

// NewNode creates a visible node with an identity transform.
func NewNode(kind Kind, name string) *Node {
	return &Node{
		Name:             name,
		Kind:             kind,
		Transform:        math.Identity(),
		Visible:          true,
		FrustumCulled:    true,
		MatrixAutoUpdate: true,
	}
}

// NewGroup creates an empty group node.
func NewGroup(name string) *Node {
	return NewNode(KindGroup, name)
}

// NewMesh creates a mesh node.
func NewMesh(name string, geo *Geometry, mat *Material) *Node {
	n := NewNode(KindMesh, name)
	n.Geometry = geo
	n.Material = mat
	return n
}

// NewAmbientLight creates an ambient light.
func NewAmbientLight(color [3]float32, intensity float32) *Node {
	n := NewNode(KindAmbientLight, "ambient")
	n.Light = &Light{Color: color, Intensity: intensity}
	return n
}

// NewHemisphereLight creates a sky/ground light placed at pos.
func NewHemisphereLight(sky, ground [3]float32, intensity float32, pos math.Vec3) *Node {
	n := NewNode(KindHemisphereLight, "hemisphere")
	n.Light = &Light{Color: sky, GroundColor: ground, Intensity: intensity}
	n.SetPosition(pos)
	return n
}

// NewDirectionalLight creates a light shining from pos towards the origin.
func NewDirectionalLight(name string, color [3]float32, intensity float32, pos math.Vec3) *Node {
	n := NewNode(KindDirectionalLight, name)
	n.Light = &Light{Color: color, Intensity: intensity}
	n.SetPosition(pos)
	return n
}

// NewPointLight creates a point light at the parent's origin.
func NewPointLight(color [3]float32, intensity float32) *Node {
	n := NewNode(KindPointLight, "point")
	n.Light = &Light{Color: color, Intensity: intensity}
	return n
}

// Parent returns the node's parent, or nil.
func (n *Node) Parent() *Node { return n.parent }

// Add attaches children to n. A child that already has a parent is moved,
// so adding the same node twice leaves a single entry.
func (n *Node) Add(children ...*Node) {
	for _, c := range children {
		if c == nil || c == n {
			continue
		}
		if c.parent != nil {
			c.parent.detach(c)
		}
		c.parent = n
		n.children = append(n.children, c)
	}
}

// Remove detaches the given children. Nodes that are not children of n are
// ignored.
func (n *Node) Remove(children ...*Node) {
	for _, c := range children {
		if c != nil && c.parent == n {
			n.detach(c)
		}
	}
}

// RemoveFromParent detaches n from its parent.
func (n *Node) RemoveFromParent() {
	if n.parent != nil {
		n.parent.detach(n)
	}
}

func (n *Node) detach(c *Node) {
	for i, child := range n.children {
		if child == c {
			n.children = append(n.children[:i], n.children[i+1:]...)
			break
		}
	}
	c.parent = nil
}

// Children returns a copy of the direct children.
func (n *Node) Children() []*Node {
	out := make([]*Node, len(n.children))
	copy(out, n.children)
	return out
}

// ChildCount returns the number of direct children.
func (n *Node) ChildCount() int { return len(n.children) }

// Traverse calls fn for n and every descendant, parents first.
func (n *Node) Traverse(fn func(*Node)) {
	fn(n)
	for _, c := range n.children {
		c.Traverse(fn)
	}
}

// TraverseVisible is Traverse restricted to visible subtrees.
func (n *Node) TraverseVisible(fn func(*Node)) {
	if !n.Visible {
		return
	}
	fn(n)
	for _, c := range n.children {
		c.TraverseVisible(fn)
	}
}

// Find returns the first node named name in n's subtree.
func (n *Node) Find(name string) *Node {
	if n.Name == name {
		return n
	}
	for _, c := range n.children {
		if f := c.Find(name); f != nil {
			return f
		}
	}
	return nil
}

// WorldMatrix returns the node's transform in scene space.
func (n *Node) WorldMatrix() math.Mat4 {
	m := n.Transform
	for p := n.parent; p != nil; p = p.parent {
		m = p.Transform.Mul(m)
	}
	return m
}

// Position returns the translation part of the local transform.
func (n *Node) Position() math.Vec3 { return n.Transform.Position() }

// SetPosition replaces the translation part of the local transform.
func (n *Node) SetPosition(p math.Vec3) {
	n.Transform[12], n.Transform[13], n.Transform[14] = p.X, p.Y, p.Z
}

// Scene is the root of a graph. It carries the clear background; a nil
// background leaves the renderer's clear color in place (transparent for AR).
type Scene struct {
	Node
	background *[3]float32
}

// New creates an empty scene.
func New() *Scene {
	s := &Scene{}
	s.Node = *NewGroup("scene")
	return s
}

// Root returns the scene's root node.
func (s *Scene) Root() *Node { return &s.Node }

// SetBackground sets the background color.
func (s *Scene) SetBackground(c [3]float32) { s.background = &c }

// ClearBackground removes the background color.
func (s *Scene) ClearBackground() { s.background = nil }

// Background returns the background color and whether one is set.
func (s *Scene) Background() ([3]float32, bool) {
	if s.background == nil {
		return [3]float32{}, false
	}
	return *s.background, true
}

// Stats summarises the visible content of a scene.
type Stats struct {
	Nodes     int
	Meshes    int
	Triangles int
	Lights    int
}

// Stats walks the visible graph.
func (s *Scene) Stats() Stats {
	var st Stats
	s.TraverseVisible(func(n *Node) {
		st.Nodes++
		switch {
		case n.Kind.IsLight():
			st.Lights++
		case n.Geometry != nil:
			st.Meshes++
			st.Triangles += n.Geometry.TriangleCount()
		}
	})
	return st
}
