package scene

import (
	"image"
	gomath "math"

	"github.com/Faultbox/wavefront-viewer/pkg/math"
)

// Vertex is an interleaved mesh vertex as uploaded to the GPU.
type Vertex struct {
	Position [3]float32
	Normal   [3]float32
	TexCoord [2]float32
}

// Bounds is an axis-aligned bounding box.
type Bounds struct {
	Min math.Vec3
	Max math.Vec3
}

// Center returns the middle of the box.
func (b Bounds) Center() math.Vec3 { return b.Min.Add(b.Max).Scale(0.5) }

// Size returns the box extents.
func (b Bounds) Size() math.Vec3 { return b.Max.Sub(b.Min) }

// Geometry holds indexed triangles.
type Geometry struct {
	Vertices []Vertex
	Indices  []uint32
	Bounds   Bounds
	// Version is bumped whenever Vertices are rewritten in place.
	Version uint64
}

// NewGeometry creates a geometry and computes its bounds.
func NewGeometry(vertices []Vertex, indices []uint32) *Geometry {
	g := &Geometry{Vertices: vertices, Indices: indices}
	g.ComputeBounds()
	return g
}

// TriangleCount returns the number of indexed triangles.
func (g *Geometry) TriangleCount() int { return len(g.Indices) / 3 }

// ComputeBounds recomputes Bounds from the vertices.
func (g *Geometry) ComputeBounds() {
	if len(g.Vertices) == 0 {
		g.Bounds = Bounds{}
		return
	}
	p := g.Vertices[0].Position
	lo := math.Vec3{X: p[0], Y: p[1], Z: p[2]}
	hi := lo
	for _, v := range g.Vertices[1:] {
		q := math.Vec3{X: v.Position[0], Y: v.Position[1], Z: v.Position[2]}
		lo, hi = lo.Min(q), hi.Max(q)
	}
	g.Bounds = Bounds{Min: lo, Max: hi}
}

// Material describes surface shading. Colors are linear RGB in [0, 1].
type Material struct {
	Name        string
	Color       [3]float32
	Specular    [3]float32
	Shininess   float32
	Opacity     float32
	DoubleSided bool

	// Texture is the decoded diffuse map, TextureURL where it came from.
	Texture    *image.RGBA
	TextureURL string
}

// NewMaterial creates an opaque material of the given color.
func NewMaterial(name string, color [3]float32) *Material {
	return &Material{Name: name, Color: color, Opacity: 1, Shininess: 30}
}

// Transparent reports whether the material needs blending.
func (m *Material) Transparent() bool { return m.Opacity < 1 }

// ConeGeometry builds a cone along +Y with the apex at height/2 and the
// base of the given radius at -height/2. The base is capped.
func ConeGeometry(radius, height float32, segments int) *Geometry {
	if segments < 3 {
		segments = 3
	}
	half := height / 2
	slope := radius / height
	var verts []Vertex
	var idx []uint32

	// Side: one apex vertex per segment so normals stay per-face smooth.
	for i := 0; i <= segments; i++ {
		a := 2 * gomath.Pi * float64(i) / float64(segments)
		s, c := float32(gomath.Sin(a)), float32(gomath.Cos(a))
		n := math.Vec3{X: s, Y: slope, Z: c}.Normalize().Array()
		u := float32(i) / float32(segments)
		verts = append(verts,
			Vertex{Position: [3]float32{0, half, 0}, Normal: n, TexCoord: [2]float32{u, 0}},
			Vertex{Position: [3]float32{radius * s, -half, radius * c}, Normal: n, TexCoord: [2]float32{u, 1}},
		)
	}
	for i := 0; i < segments; i++ {
		a := uint32(2 * i)
		idx = append(idx, a, a+1, a+3)
	}

	// Base cap.
	center := uint32(len(verts))
	verts = append(verts, Vertex{Position: [3]float32{0, -half, 0}, Normal: [3]float32{0, -1, 0}})
	for i := 0; i <= segments; i++ {
		a := 2 * gomath.Pi * float64(i) / float64(segments)
		s, c := float32(gomath.Sin(a)), float32(gomath.Cos(a))
		verts = append(verts, Vertex{Position: [3]float32{radius * s, -half, radius * c}, Normal: [3]float32{0, -1, 0}})
	}
	for i := 0; i < segments; i++ {
		a := center + 1 + uint32(i)
		idx = append(idx, center, a+1, a)
	}
	return NewGeometry(verts, idx)
}

// RingGeometry builds a flat ring in the XZ plane facing +Y.
func RingGeometry(inner, outer float32, segments int) *Geometry {
	if segments < 3 {
		segments = 3
	}
	var verts []Vertex
	var idx []uint32
	up := [3]float32{0, 1, 0}
	for i := 0; i <= segments; i++ {
		a := 2 * gomath.Pi * float64(i) / float64(segments)
		s, c := float32(gomath.Sin(a)), float32(gomath.Cos(a))
		u := float32(i) / float32(segments)
		verts = append(verts,
			Vertex{Position: [3]float32{inner * s, 0, inner * c}, Normal: up, TexCoord: [2]float32{u, 0}},
			Vertex{Position: [3]float32{outer * s, 0, outer * c}, Normal: up, TexCoord: [2]float32{u, 1}},
		)
	}
	for i := 0; i < segments; i++ {
		a := uint32(2 * i)
		idx = append(idx, a, a+1, a+3, a, a+3, a+2)
	}
	return NewGeometry(verts, idx)
}
