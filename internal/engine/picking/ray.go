// Package picking provides ray casting utilities.
package picking

import (
	gomath "math"

	"github.com/Faultbox/wavefront-viewer/internal/engine/scene"
	"github.com/Faultbox/wavefront-viewer/pkg/math"
)

// parallelEps is the |cos| below which a ray counts as parallel to a plane.
const parallelEps = 1e-3

// Ray is a half-line with a unit direction.
type Ray struct {
	Origin    math.Vec3
	Direction math.Vec3
}

// NewRay creates a ray, normalizing dir.
func NewRay(origin, dir math.Vec3) Ray {
	return Ray{Origin: origin, Direction: dir.Normalize()}
}

// At returns the point at distance t along the ray.
func (r Ray) At(t float32) math.Vec3 {
	return r.Origin.Add(r.Direction.Scale(t))
}

// ScreenToRay converts pixel coordinates to a world-space ray.
// invViewProj is the inverse of projection * view.
func ScreenToRay(screenX, screenY, viewportW, viewportH float32, invViewProj math.Mat4) Ray {
	ndcX := 2*screenX/viewportW - 1
	ndcY := 1 - 2*screenY/viewportH

	near := unproject(invViewProj, math.Vec4{X: ndcX, Y: ndcY, Z: -1, W: 1})
	far := unproject(invViewProj, math.Vec4{X: ndcX, Y: ndcY, Z: 1, W: 1})
	return NewRay(near, far.Sub(near))
}

func unproject(m math.Mat4, p math.Vec4) math.Vec3 {
	w := m.MulVec4(p)
	if w.W != 0 {
		return math.Vec3{X: w.X / w.W, Y: w.Y / w.W, Z: w.Z / w.W}
	}
	return w.XYZ()
}

// FromPose returns the ray a viewer-space hit test casts: from the pose
// origin along its -Z axis.
func FromPose(pose math.Mat4) Ray {
	return NewRay(pose.Position(), pose.TransformDirection(math.Vec3{Z: -1}))
}

// IntersectPlaneY intersects the ray with the horizontal plane y = planeY.
// It returns the hit point and its distance along the ray.
func (r Ray) IntersectPlaneY(planeY float32) (math.Vec3, float32, bool) {
	return r.IntersectPlane(math.Vec3{Y: planeY}, math.Vec3{Y: 1})
}

// IntersectPlane intersects the ray with the plane through point with the
// given normal. Hits behind the origin are rejected.
func (r Ray) IntersectPlane(point, normal math.Vec3) (math.Vec3, float32, bool) {
	denom := normal.Dot(r.Direction)
	if gomath.Abs(float64(denom)) < parallelEps {
		return math.Vec3{}, 0, false
	}
	t := point.Sub(r.Origin).Dot(normal) / denom
	if t < 0 {
		return math.Vec3{}, 0, false
	}
	return r.At(t), t, true
}

// IntersectAABB tests the ray against a box and returns the entry
// distance, or the exit distance when the origin is inside.
func (r Ray) IntersectAABB(box scene.Bounds) (float32, bool) {
	tmin := float32(-gomath.MaxFloat32)
	tmax := float32(gomath.MaxFloat32)

	o := r.Origin.Array()
	d := r.Direction.Array()
	lo := box.Min.Array()
	hi := box.Max.Array()
	for i := 0; i < 3; i++ {
		if d[i] == 0 {
			if o[i] < lo[i] || o[i] > hi[i] {
				return 0, false
			}
			continue
		}
		t1 := (lo[i] - o[i]) / d[i]
		t2 := (hi[i] - o[i]) / d[i]
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin = max(tmin, t1)
		tmax = min(tmax, t2)
	}

	if tmax < tmin || tmax < 0 {
		return 0, false
	}
	if tmin < 0 {
		return tmax, true
	}
	return tmin, true
}

// HitPose builds the transform of a surface hit: positioned at point with
// its Y axis along the surface normal.
func HitPose(point, normal math.Vec3) math.Mat4 {
	n := normal.Normalize()
	up := math.Vec3{Y: 1}
	var rot math.Quat
	switch c := up.Dot(n); {
	case c > 1-math.Epsilon:
		rot = math.QuatIdentity()
	case c < -1+math.Epsilon:
		rot = math.QuatFromAxisAngle(math.Vec3{X: 1}, gomath.Pi)
	default:
		axis := up.Cross(n).Normalize()
		rot = math.QuatFromAxisAngle(axis, float32(gomath.Acos(float64(c))))
	}
	return math.Compose(point, rot, math.Vec3{X: 1, Y: 1, Z: 1})
}
