package model

import (
	"github.com/Faultbox/wavefront-viewer/internal/engine/scene"
	"github.com/Faultbox/wavefront-viewer/pkg/math"
)

// degenerateArea is the cross-product length below which a triangle is
// dropped.
const degenerateArea = 1e-10

// faceNormal returns the unit normal of a counter-clockwise triangle and
// false for degenerate triangles.
func faceNormal(a, b, c math.Vec3) (math.Vec3, bool) {
	n := b.Sub(a).Cross(c.Sub(a))
	if n.Length() < degenerateArea {
		return math.Vec3{}, false
	}
	return n.Normalize(), true
}

// SmoothNormals averages normals of vertices sharing a position, hiding the
// facets of models exported without normals.
func SmoothNormals(vertices []scene.Vertex) {
	const quantum float32 = 0.001

	groups := make(map[[3]int32][]int)
	for i := range vertices {
		p := vertices[i].Position
		key := [3]int32{int32(p[0] / quantum), int32(p[1] / quantum), int32(p[2] / quantum)}
		groups[key] = append(groups[key], i)
	}

	for _, idxs := range groups {
		if len(idxs) < 2 {
			continue
		}
		var sum math.Vec3
		for _, i := range idxs {
			n := vertices[i].Normal
			sum = sum.Add(math.Vec3{X: n[0], Y: n[1], Z: n[2]})
		}
		avg := sum.Normalize()
		if avg == (math.Vec3{}) {
			continue
		}
		for _, i := range idxs {
			vertices[i].Normal = avg.Array()
		}
	}
}

// unionBounds grows b to include o. An empty b takes o.
func unionBounds(b *scene.Bounds, o scene.Bounds, empty bool) {
	if empty {
		*b = o
		return
	}
	b.Min = b.Min.Min(o.Min)
	b.Max = b.Max.Max(o.Max)
}

// transformBounds returns the box enclosing b's corners under m.
func transformBounds(b scene.Bounds, m math.Mat4) scene.Bounds {
	var out scene.Bounds
	for i := 0; i < 8; i++ {
		p := b.Min
		if i&1 != 0 {
			p.X = b.Max.X
		}
		if i&2 != 0 {
			p.Y = b.Max.Y
		}
		if i&4 != 0 {
			p.Z = b.Max.Z
		}
		q := m.TransformPoint(p)
		if i == 0 {
			out = scene.Bounds{Min: q, Max: q}
			continue
		}
		out.Min, out.Max = out.Min.Min(q), out.Max.Max(q)
	}
	return out
}

// measure fills the model's triangle, mesh and bounds totals from its
// graph.
func (m *Model) measure() {
	m.Triangles, m.Meshes, m.Skinned = 0, 0, 0
	empty := true
	m.Root.Traverse(func(n *scene.Node) {
		if n.Geometry == nil {
			return
		}
		m.Meshes++
		if n.Kind == scene.KindSkinnedMesh {
			m.Skinned++
		}
		m.Triangles += n.Geometry.TriangleCount()
		if len(n.Geometry.Vertices) == 0 {
			return
		}
		unionBounds(&m.Bounds, transformBounds(n.Geometry.Bounds, n.WorldMatrix()), empty)
		empty = false
	})
}
