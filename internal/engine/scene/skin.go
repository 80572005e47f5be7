package scene

import (
	"slices"

	"github.com/Faultbox/wavefront-viewer/pkg/math"
)

// MaxInfluences is the number of joints that may move one vertex.
const MaxInfluences = 4

// VertexWeights binds a vertex to up to MaxInfluences joints. A vertex
// whose weights are all zero keeps its rest position.
type VertexWeights struct {
	Joints  [MaxInfluences]uint16
	Weights [MaxInfluences]float32
}

// Skin deforms a mesh from the world matrices of its joints. Vertices are
// blended on the CPU and written back into the mesh geometry.
type Skin struct {
	Joints      []*Node // nil entries never move their vertices
	InverseBind []math.Mat4
	BindShape   math.Mat4
	Weights     []VertexWeights // one per geometry vertex

	rest    []Vertex
	palette []math.Mat4
}

// NewSkinnedMesh creates a skinned mesh node. It renders its rest pose
// until a skin is bound.
func NewSkinnedMesh(name string, geo *Geometry, mat *Material) *Node {
	n := NewMesh(name, geo, mat)
	n.Kind = KindSkinnedMesh
	return n
}

// Bind attaches s to mesh. The mesh's current vertices become the rest
// pose.
func (s *Skin) Bind(mesh *Node) {
	mesh.Kind = KindSkinnedMesh
	mesh.Skin = s
	if mesh.Geometry != nil {
		s.rest = slices.Clone(mesh.Geometry.Vertices)
	}
}

// Update recomputes mesh's vertices in its local space:
//
//	v = inverse(meshWorld) * sum(w * jointWorld * inverseBind * bindShape) * rest
func (s *Skin) Update(mesh *Node) {
	g := mesh.Geometry
	if g == nil || len(s.rest) == 0 {
		return
	}
	toLocal, ok := mesh.WorldMatrix().Inverse()
	if !ok {
		return
	}
	if cap(s.palette) < len(s.Joints) {
		s.palette = make([]math.Mat4, len(s.Joints))
	}
	s.palette = s.palette[:len(s.Joints)]
	for i, j := range s.Joints {
		if j == nil || i >= len(s.InverseBind) {
			s.palette[i] = math.Identity()
			continue
		}
		s.palette[i] = toLocal.Mul(j.WorldMatrix()).Mul(s.InverseBind[i]).Mul(s.BindShape)
	}

	n := min(len(g.Vertices), len(s.rest), len(s.Weights))
	for i := 0; i < n; i++ {
		rest := s.rest[i]
		m, ok := s.blend(s.Weights[i])
		if !ok {
			g.Vertices[i] = rest
			continue
		}
		p := m.TransformPoint(math.V3(rest.Position[0], rest.Position[1], rest.Position[2]))
		nrm := m.TransformDirection(math.V3(rest.Normal[0], rest.Normal[1], rest.Normal[2])).Normalize()
		g.Vertices[i] = Vertex{Position: p.Array(), Normal: nrm.Array(), TexCoord: rest.TexCoord}
	}
	g.ComputeBounds()
	g.Version++
}

func (s *Skin) blend(w VertexWeights) (math.Mat4, bool) {
	var m math.Mat4
	var total float32
	for k, weight := range w.Weights {
		j := int(w.Joints[k])
		if weight == 0 || j >= len(s.palette) {
			continue
		}
		p := &s.palette[j]
		for e := range m {
			m[e] += weight * p[e]
		}
		total += weight
	}
	if total == 0 {
		return m, false
	}
	if total != 1 {
		for e := range m {
			m[e] /= total
		}
	}
	return m, true
}

// UpdateSkins updates every skinned mesh below root.
func UpdateSkins(root *Node) {
	root.Traverse(func(n *Node) {
		if n.Skin != nil {
			n.Skin.Update(n)
		}
	})
}
