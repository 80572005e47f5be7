package viewer

import (
	"github.com/Faultbox/wavefront-viewer/internal/engine/scene"
	"github.com/Faultbox/wavefront-viewer/pkg/math"
)

// Static viewer light rig.
const (
	AmbientFull   = 1.0
	AmbientDimmed = 0.25
)

var (
	white     = [3]float32{1, 1, 1}
	warmLight = [3]float32{1, 0.75, 0.5} // hsl(30, 100%, 75%)
	coolLight = [3]float32{0.5, 0.5, 1}  // hsl(240, 100%, 75%)
)

// lightingRig is the key/fill/back rig of the static viewer. The rig starts
// in the scene with full ambient and the toggle off; the first toggle dims
// the ambient, the second removes the directional lights.
type lightingRig struct {
	ambient *scene.Node
	lights  []*scene.Node
	on      bool
}

func newLightingRig(s *scene.Scene) *lightingRig {
	r := &lightingRig{
		ambient: scene.NewAmbientLight(white, AmbientFull),
		lights: []*scene.Node{
			scene.NewDirectionalLight("key", warmLight, 1.0, math.V3(-100, 0, 100)),
			scene.NewDirectionalLight("fill", coolLight, 0.75, math.V3(100, 0, 100)),
			scene.NewDirectionalLight("back", white, 1.0, math.V3(100, 0, -100).Normalize()),
		},
	}
	s.Add(r.ambient)
	s.Add(r.lights...)
	return r
}

// toggle flips the rig and returns the new setting.
func (r *lightingRig) toggle(s *scene.Scene) bool {
	r.on = !r.on
	if r.on {
		r.ambient.Light.Intensity = AmbientDimmed
		s.Add(r.lights...)
	} else {
		r.ambient.Light.Intensity = AmbientFull
		s.Remove(r.lights...)
	}
	return r.on
}
