// Package camera provides the perspective camera and orbit controls used by
// the viewer.
package camera

import (
	"github.com/Faultbox/wavefront-viewer/pkg/math"
)

// Perspective is a perspective camera looking from Position at Target.
// Changes to FOV, Aspect, Near or Far take effect after
// UpdateProjectionMatrix.
type Perspective struct {
	FOV    float32 // vertical, degrees
	Aspect float32
	Near   float32
	Far    float32

	Position math.Vec3
	Target   math.Vec3
	Up       math.Vec3

	projection math.Mat4
}

// NewPerspective creates a camera at the origin looking down -Z.
func NewPerspective(fov, aspect, near, far float32) *Perspective {
	c := &Perspective{
		FOV:    fov,
		Aspect: aspect,
		Near:   near,
		Far:    far,
		Target: math.Vec3{Z: -1},
		Up:     math.Vec3{Y: 1},
	}
	c.UpdateProjectionMatrix()
	return c
}

// UpdateProjectionMatrix recomputes the projection from the lens fields.
func (c *Perspective) UpdateProjectionMatrix() {
	aspect := c.Aspect
	if aspect <= 0 {
		aspect = 1
	}
	c.projection = math.Perspective(math.Radians(c.FOV), aspect, c.Near, c.Far)
}

// ProjectionMatrix returns the projection computed by the last
// UpdateProjectionMatrix.
func (c *Perspective) ProjectionMatrix() math.Mat4 { return c.projection }

// ViewMatrix returns the world-to-camera transform.
func (c *Perspective) ViewMatrix() math.Mat4 {
	if c.Position.ApproxEqual(c.Target) {
		return math.Translation(c.Position.Scale(-1))
	}
	return math.LookAt(c.Position, c.Target, c.Up)
}

// WorldMatrix returns the camera-to-world transform.
func (c *Perspective) WorldMatrix() math.Mat4 {
	m, ok := c.ViewMatrix().Inverse()
	if !ok {
		return math.Translation(c.Position)
	}
	return m
}

// LookAt points the camera at target.
func (c *Perspective) LookAt(target math.Vec3) { c.Target = target }

// Forward returns the unit viewing direction.
func (c *Perspective) Forward() math.Vec3 {
	f := c.Target.Sub(c.Position).Normalize()
	if f == (math.Vec3{}) {
		return math.Vec3{Z: -1}
	}
	return f
}

// SetPose places the camera from a camera-to-world transform, as reported
// by an immersive session's viewer pose.
func (c *Perspective) SetPose(world math.Mat4) {
	c.Position = world.Position()
	c.Target = c.Position.Add(world.TransformDirection(math.Vec3{Z: -1}))
	c.Up = world.TransformDirection(math.Vec3{Y: 1}).Normalize()
}

// ViewProjection returns projection * view.
func (c *Perspective) ViewProjection() math.Mat4 {
	return c.projection.Mul(c.ViewMatrix())
}
