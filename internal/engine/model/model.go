// Package model turns parsed OBJ/MTL and DAE files into scene graphs ready
// for a session to add to its scene.
package model

import (
	"github.com/Faultbox/wavefront-viewer/internal/engine/animation"
	"github.com/Faultbox/wavefront-viewer/internal/engine/scene"
)

// Model is a loaded asset: a root node plus the clips that animate it.
type Model struct {
	Root  *scene.Node
	Clips []*animation.Clip

	// Totals over the graph, in the root's parent space.
	Bounds    scene.Bounds
	Triangles int
	Meshes    int
	Skinned   int
}

// SkinnedMeshes returns the skinned mesh nodes of the model.
func (m *Model) SkinnedMeshes() []*scene.Node {
	var out []*scene.Node
	m.Root.Traverse(func(n *scene.Node) {
		if n.Kind == scene.KindSkinnedMesh {
			out = append(out, n)
		}
	})
	return out
}

// Clip returns the clip with the given name.
func (m *Model) Clip(name string) *animation.Clip {
	for _, c := range m.Clips {
		if c.Name == name {
			return c
		}
	}
	return nil
}
