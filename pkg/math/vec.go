// Package math provides the vector, matrix and quaternion types used by the
// viewer's scene graph, cameras and AR poses.
package math

import "math"

// Epsilon is the tolerance used by the approximate comparisons in this package.
const Epsilon = 1e-4

// Vec2 is a 2D vector, used for pointer positions and texture coordinates.
type Vec2 struct {
	X, Y float32
}

// Sub returns v - o.
func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{v.X - o.X, v.Y - o.Y} }

// Scale returns v * s.
func (v Vec2) Scale(s float32) Vec2 { return Vec2{v.X * s, v.Y * s} }

// Vec3 is a 3D vector.
type Vec3 struct {
	X, Y, Z float32
}

// V3 is shorthand for Vec3{x, y, z}.
func V3(x, y, z float32) Vec3 { return Vec3{x, y, z} }

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

// Scale returns v * s.
func (v Vec3) Scale(s float32) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }

// Mul multiplies component-wise.
func (v Vec3) Mul(o Vec3) Vec3 { return Vec3{v.X * o.X, v.Y * o.Y, v.Z * o.Z} }

// Dot returns the dot product.
func (v Vec3) Dot(o Vec3) float32 { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }

// Cross returns the cross product.
func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		v.Y*o.Z - v.Z*o.Y,
		v.Z*o.X - v.X*o.Z,
		v.X*o.Y - v.Y*o.X,
	}
}

// Length returns the magnitude.
func (v Vec3) Length() float32 {
	return float32(math.Sqrt(float64(v.Dot(v))))
}

// Normalize returns a unit vector, or the zero vector for a zero input.
func (v Vec3) Normalize() Vec3 {
	l := v.Length()
	if l == 0 {
		return Vec3{}
	}
	return v.Scale(1 / l)
}

// Distance returns the distance between two points.
func (v Vec3) Distance(o Vec3) float32 { return v.Sub(o).Length() }

// Lerp interpolates linearly from v towards o.
func (v Vec3) Lerp(o Vec3, t float32) Vec3 { return v.Add(o.Sub(v).Scale(t)) }

// Min returns the component-wise minimum.
func (v Vec3) Min(o Vec3) Vec3 {
	return Vec3{min(v.X, o.X), min(v.Y, o.Y), min(v.Z, o.Z)}
}

// Max returns the component-wise maximum.
func (v Vec3) Max(o Vec3) Vec3 {
	return Vec3{max(v.X, o.X), max(v.Y, o.Y), max(v.Z, o.Z)}
}

// ApproxEqual reports whether every component differs by less than Epsilon.
func (v Vec3) ApproxEqual(o Vec3) bool {
	return near(v.X, o.X) && near(v.Y, o.Y) && near(v.Z, o.Z)
}

// Array returns the vector as a [3]float32, the layout GL buffers expect.
func (v Vec3) Array() [3]float32 { return [3]float32{v.X, v.Y, v.Z} }

// Vec4 is a homogeneous 4-component vector.
type Vec4 struct {
	X, Y, Z, W float32
}

// XYZ drops the W component, dividing through by it when it is not 0 or 1.
func (v Vec4) XYZ() Vec3 {
	if v.W != 0 && v.W != 1 {
		return Vec3{v.X / v.W, v.Y / v.W, v.Z / v.W}
	}
	return Vec3{v.X, v.Y, v.Z}
}

// Radians converts degrees to radians.
func Radians(deg float32) float32 { return deg * math.Pi / 180 }

// Degrees converts radians to degrees.
func Degrees(rad float32) float32 { return rad * 180 / math.Pi }

// Clamp limits x to [lo, hi].
func Clamp(x, lo, hi float32) float32 {
	return max(lo, min(hi, x))
}

func near(a, b float32) bool {
	d := a - b
	return d < Epsilon && d > -Epsilon
}
