package model

import (
	"cmp"
	"image"
	gomath "math"
	"slices"
	"strings"

	"github.com/Faultbox/wavefront-viewer/internal/engine/animation"
	"github.com/Faultbox/wavefront-viewer/internal/engine/scene"
	"github.com/Faultbox/wavefront-viewer/pkg/formats"
	"github.com/Faultbox/wavefront-viewer/pkg/math"
)

// DefaultDAEColor is the diffuse color of primitives whose material symbol
// resolves to no library material.
var DefaultDAEColor = [3]float32{0.8, 0.8, 0.8}

// BuildDAE creates the avatar graph of a Collada document. Scene nodes are
// named by their DAE id so animation tracks can find them; geometry
// reached through a skin controller becomes a skinned mesh bound to its
// joints. Z-up documents are rotated to Y-up. textures maps image paths,
// as written in the document, to decoded images.
func BuildDAE(name string, d *formats.DAE, textures map[string]*image.RGBA) *Model {
	root := scene.NewGroup(name)
	if strings.EqualFold(d.UpAxis, "Z_UP") {
		root.Transform = math.RotationX(-gomath.Pi / 2)
	}

	materials := make(map[string]*scene.Material)
	material := func(symbol string, bindings map[string]string) *scene.Material {
		id := symbol
		if target, ok := bindings[symbol]; ok {
			id = target
		}
		if m, ok := materials[id]; ok {
			return m
		}
		m := convertDAEMaterial(id, d.Materials[id], textures)
		materials[id] = m
		return m
	}

	nodes := make(map[*formats.DAENode]*scene.Node)
	type pendingSkin struct {
		mesh    *scene.Node
		skin    *formats.DAESkin
		inst    formats.DAEInstance
		weights []scene.VertexWeights
	}
	var pending []pendingSkin

	var build func(n *formats.DAENode) *scene.Node
	build = func(n *formats.DAENode) *scene.Node {
		id := n.ID
		if id == "" {
			id = n.Name
		}
		node := scene.NewGroup(id)
		node.Transform = n.Transform
		nodes[n] = node

		for _, in := range n.Geometries {
			geo, ok := d.Geometries[in.URL]
			if !ok {
				continue
			}
			for _, p := range geo.Primitives {
				if g, _ := primitiveGeometry(p); g != nil {
					node.Add(scene.NewMesh(in.URL, g, material(p.Material, in.Materials)))
				}
			}
		}
		for _, in := range n.Skins {
			skin, ok := d.Skins[in.URL]
			if !ok {
				continue
			}
			geo, ok := d.Geometries[skin.Geometry]
			if !ok {
				continue
			}
			for _, p := range geo.Primitives {
				g, corners := primitiveGeometry(p)
				if g == nil {
					continue
				}
				mesh := scene.NewSkinnedMesh(skin.Geometry, g, material(p.Material, in.Materials))
				node.Add(mesh)
				pending = append(pending, pendingSkin{
					mesh:    mesh,
					skin:    skin,
					inst:    in,
					weights: vertexWeights(skin, p, corners),
				})
			}
		}

		for _, c := range n.Children {
			node.Add(build(c))
		}
		return node
	}
	for _, r := range d.Roots {
		root.Add(build(r))
	}

	// Joints may appear anywhere in the document, so skins bind last.
	for _, ps := range pending {
		joints := make([]*scene.Node, len(ps.skin.Joints))
		for i, j := range ps.skin.Joints {
			joints[i] = nodes[findJoint(d, j, ps.inst.Skeletons)]
		}
		skin := &scene.Skin{
			Joints:      joints,
			InverseBind: ps.skin.InverseBind,
			BindShape:   ps.skin.BindShape,
			Weights:     ps.weights,
		}
		skin.Bind(ps.mesh)
	}
	scene.UpdateSkins(root)

	m := &Model{Root: root, Clips: convertClips(d)}
	m.measure()
	return m
}

func convertDAEMaterial(id string, src *formats.DAEMaterial, textures map[string]*image.RGBA) *scene.Material {
	if src == nil {
		return scene.NewMaterial(id, DefaultDAEColor)
	}
	name := src.Name
	if name == "" {
		name = src.ID
	}
	mat := scene.NewMaterial(name, src.Diffuse)
	mat.Specular = src.Specular
	mat.Shininess = src.Shininess
	mat.Opacity = math.Clamp(src.Opacity, 0, 1)
	if src.Texture != "" {
		mat.TextureURL = src.Texture
		mat.Texture = textures[src.Texture]
	}
	return mat
}

// findJoint resolves a skin joint name to a scene node: by sid below the
// instance's skeleton roots first, then by sid, id and name anywhere.
func findJoint(d *formats.DAE, name string, skeletons []string) *formats.DAENode {
	var found *formats.DAENode
	search := func(match func(n *formats.DAENode) bool, under map[*formats.DAENode]bool) {
		if found != nil {
			return
		}
		d.Walk(func(n, _ *formats.DAENode) {
			if found == nil && (under == nil || under[n]) && match(n) {
				found = n
			}
		})
	}

	if len(skeletons) > 0 {
		under := make(map[*formats.DAENode]bool)
		roots := make(map[string]bool, len(skeletons))
		for _, s := range skeletons {
			roots[s] = true
		}
		var mark func(n *formats.DAENode)
		mark = func(n *formats.DAENode) {
			under[n] = true
			for _, c := range n.Children {
				mark(c)
			}
		}
		d.Walk(func(n, _ *formats.DAENode) {
			if roots[n.ID] && !under[n] {
				mark(n)
			}
		})
		search(func(n *formats.DAENode) bool { return n.SID == name }, under)
	}
	search(func(n *formats.DAENode) bool { return n.SID == name }, nil)
	search(func(n *formats.DAENode) bool { return n.ID == name }, nil)
	search(func(n *formats.DAENode) bool { return n.Name == name }, nil)
	return found
}

// vertexWeights gathers the strongest influences of each kept vertex and
// normalizes them to sum to one.
func vertexWeights(skin *formats.DAESkin, p *formats.DAEPrimitive, corners []int) []scene.VertexWeights {
	out := make([]scene.VertexWeights, len(corners))
	for i, c := range corners {
		if c >= len(p.Indices) {
			continue
		}
		pos := p.Indices[c]
		if pos < 0 || pos >= len(skin.Influences) {
			continue
		}
		infl := slices.Clone(skin.Influences[pos])
		slices.SortStableFunc(infl, func(a, b formats.DAEInfluence) int {
			return cmp.Compare(b.Weight, a.Weight)
		})
		if len(infl) > scene.MaxInfluences {
			infl = infl[:scene.MaxInfluences]
		}
		var total float32
		for _, in := range infl {
			total += in.Weight
		}
		if total <= 0 {
			continue
		}
		for k, in := range infl {
			out[i].Joints[k] = uint16(in.Joint)
			out[i].Weights[k] = in.Weight / total
		}
	}
	return out
}

// primitiveGeometry builds indexed triangles from p, dropping degenerate
// faces. corners maps each vertex back to its corner in p.
func primitiveGeometry(p *formats.DAEPrimitive) (g *scene.Geometry, corners []int) {
	n := len(p.Positions) / 3 * 3
	if n == 0 {
		return nil, nil
	}
	hasNormals := len(p.Normals) >= n
	hasUV := len(p.TexCoords) >= n

	verts := make([]scene.Vertex, 0, n)
	indices := make([]uint32, 0, n)
	corners = make([]int, 0, n)
	for i := 0; i < n; i += 3 {
		face, ok := faceNormal(p.Positions[i], p.Positions[i+1], p.Positions[i+2])
		if !ok {
			continue
		}
		for k := i; k < i+3; k++ {
			v := scene.Vertex{Position: p.Positions[k].Array(), Normal: face.Array()}
			if hasNormals {
				v.Normal = p.Normals[k].Array()
			}
			if hasUV {
				v.TexCoord = [2]float32{p.TexCoords[k].X, p.TexCoords[k].Y}
			}
			indices = append(indices, uint32(len(verts)))
			verts = append(verts, v)
			corners = append(corners, k)
		}
	}
	if len(verts) == 0 {
		return nil, nil
	}
	return scene.NewGeometry(verts, indices), corners
}

// convertClips turns DAE clips into animation clips. Key times are shifted
// so each clip starts at zero.
func convertClips(d *formats.DAE) []*animation.Clip {
	var clips []*animation.Clip
	for _, c := range d.Clips {
		var tracks []animation.Track
		for _, idx := range c.Channels {
			if idx < 0 || idx >= len(d.Channels) {
				continue
			}
			ch := d.Channels[idx]
			tr := animation.Track{Target: ch.Target}
			for k, t := range ch.Times {
				if t < c.Start || (c.End > c.Start && t > c.End) {
					continue
				}
				tr.Times = append(tr.Times, t-c.Start)
				tr.Values = append(tr.Values, ch.Matrices[k])
			}
			if len(tr.Times) > 0 {
				tracks = append(tracks, tr)
			}
		}
		if len(tracks) > 0 {
			clips = append(clips, animation.NewClip(c.Name, tracks))
		}
	}
	return clips
}
