package model

import (
	"image"

	"github.com/Faultbox/wavefront-viewer/internal/engine/scene"
	"github.com/Faultbox/wavefront-viewer/pkg/formats"
	"github.com/Faultbox/wavefront-viewer/pkg/math"
)

// DefaultColor is used for faces without a material.
var DefaultColor = [3]float32{1, 1, 1}

// BuildOBJ creates a group with one mesh per OBJ face group. mtl may be nil.
// textures maps an MTL map path to its decoded image; missing entries
// leave the material untextured.
func BuildOBJ(name string, obj *formats.OBJ, mtl *formats.MTL, textures map[string]*image.RGBA) *Model {
	root := scene.NewGroup(name)
	materials := make(map[string]*scene.Material)

	for _, g := range obj.Groups {
		geo := buildGroupGeometry(obj, g)
		if geo == nil {
			continue
		}
		mat, ok := materials[g.Material]
		if !ok {
			mat = convertMaterial(g.Material, mtl, textures)
			materials[g.Material] = mat
		}
		meshName := g.Name
		if meshName == "" {
			meshName = name
		}
		root.Add(scene.NewMesh(meshName, geo, mat))
	}

	m := &Model{Root: root}
	m.measure()
	return m
}

func buildGroupGeometry(obj *formats.OBJ, g *formats.OBJGroup) *scene.Geometry {
	verts := make([]scene.Vertex, 0, len(g.Triangles)*3)
	indices := make([]uint32, 0, len(g.Triangles)*3)
	needSmooth := false

	for _, tri := range g.Triangles {
		p0 := obj.Positions[tri[0].Position]
		p1 := obj.Positions[tri[1].Position]
		p2 := obj.Positions[tri[2].Position]
		normal, ok := faceNormal(p0, p1, p2)
		if !ok {
			continue
		}
		for _, c := range tri {
			v := scene.Vertex{Position: obj.Positions[c.Position].Array()}
			if c.Normal >= 0 {
				v.Normal = obj.Normals[c.Normal].Array()
			} else {
				v.Normal = normal.Array()
				needSmooth = true
			}
			if c.TexCoord >= 0 {
				uv := obj.TexCoords[c.TexCoord]
				v.TexCoord = [2]float32{uv.X, uv.Y}
			}
			indices = append(indices, uint32(len(verts)))
			verts = append(verts, v)
		}
	}
	if len(verts) == 0 {
		return nil
	}
	if needSmooth {
		SmoothNormals(verts)
	}
	return scene.NewGeometry(verts, indices)
}

func convertMaterial(name string, mtl *formats.MTL, textures map[string]*image.RGBA) *scene.Material {
	if mtl == nil {
		return scene.NewMaterial(name, DefaultColor)
	}
	src, ok := mtl.Lookup(name)
	if !ok {
		return scene.NewMaterial(name, DefaultColor)
	}
	mat := scene.NewMaterial(src.Name, src.Diffuse)
	mat.Specular = src.Specular
	mat.Shininess = src.Shininess
	mat.Opacity = math.Clamp(src.Opacity, 0, 1)
	if src.DiffuseMap != "" {
		mat.TextureURL = src.DiffuseMap
		mat.Texture = textures[src.DiffuseMap]
	}
	return mat
}
