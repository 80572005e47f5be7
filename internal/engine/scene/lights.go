package scene

import "github.com/Faultbox/wavefront-viewer/pkg/math"

// MaxLights bounds the directional and point lights a renderer shades with.
const MaxLights = 4

// DirLight is a directional light in world space. Direction points from the
// surface towards the light.
type DirLight struct {
	Direction math.Vec3
	Color     [3]float32
}

// PointLight is a point light in world space.
type PointLight struct {
	Position math.Vec3
	Color    [3]float32
}

// Lighting is the flattened light set of a scene, colors premultiplied by
// intensity.
type Lighting struct {
	Ambient [3]float32

	Hemisphere  bool
	Sky, Ground [3]float32
	HemiUp      math.Vec3

	Directional []DirLight
	Points      []PointLight
}

func scaled(c [3]float32, k float32) [3]float32 {
	return [3]float32{c[0] * k, c[1] * k, c[2] * k}
}

// CollectLights gathers the visible lights of s. Ambient and hemisphere
// contributions add up; directional and point lights beyond MaxLights are
// dropped in traversal order.
func (s *Scene) CollectLights() Lighting {
	var l Lighting
	s.TraverseVisible(func(n *Node) {
		if n.Light == nil || !n.Kind.IsLight() {
			return
		}
		c := scaled(n.Light.Color, n.Light.Intensity)
		switch n.Kind {
		case KindAmbientLight:
			for i := range c {
				l.Ambient[i] += c[i]
			}
		case KindHemisphereLight:
			g := scaled(n.Light.GroundColor, n.Light.Intensity)
			for i := range c {
				l.Sky[i] += c[i]
				l.Ground[i] += g[i]
			}
			l.Hemisphere = true
			l.HemiUp = n.WorldMatrix().Position().Normalize()
			if l.HemiUp == (math.Vec3{}) {
				l.HemiUp = math.Vec3{Y: 1}
			}
		case KindDirectionalLight:
			if len(l.Directional) < MaxLights {
				l.Directional = append(l.Directional, DirLight{
					Direction: n.WorldMatrix().Position().Normalize(),
					Color:     c,
				})
			}
		case KindPointLight:
			if len(l.Points) < MaxLights {
				l.Points = append(l.Points, PointLight{
					Position: n.WorldMatrix().Position(),
					Color:    c,
				})
			}
		}
	})
	return l
}
