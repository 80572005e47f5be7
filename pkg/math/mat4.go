package math

import "math"

// Mat4 is a 4x4 matrix stored column-major, the layout glUniformMatrix4fv
// takes without transposing. Element (row r, column c) is m[c*4+r].
type Mat4 [16]float32

// Identity returns the identity matrix.
func Identity() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Perspective builds a right-handed projection with a vertical field of view
// in radians, mapping depth to [-1, 1].
func Perspective(fovY, aspect, near, far float32) Mat4 {
	f := float32(1 / math.Tan(float64(fovY)/2))
	depth := near - far
	return Mat4{
		f / aspect, 0, 0, 0,
		0, f, 0, 0,
		0, 0, (far + near) / depth, -1,
		0, 0, 2 * far * near / depth, 0,
	}
}

// LookAt builds a view matrix for an eye looking at target.
func LookAt(eye, target, up Vec3) Mat4 {
	fwd := target.Sub(eye).Normalize()
	side := fwd.Cross(up).Normalize()
	u := side.Cross(fwd)
	return Mat4{
		side.X, u.X, -fwd.X, 0,
		side.Y, u.Y, -fwd.Y, 0,
		side.Z, u.Z, -fwd.Z, 0,
		-side.Dot(eye), -u.Dot(eye), fwd.Dot(eye), 1,
	}
}

// Translation returns a matrix translating by t.
func Translation(t Vec3) Mat4 {
	m := Identity()
	m[12], m[13], m[14] = t.X, t.Y, t.Z
	return m
}

// Scaling returns a matrix scaling by s.
func Scaling(s Vec3) Mat4 {
	m := Identity()
	m[0], m[5], m[10] = s.X, s.Y, s.Z
	return m
}

// RotationX returns a rotation about the X axis by angle radians.
func RotationX(angle float32) Mat4 {
	return QuatFromAxisAngle(Vec3{1, 0, 0}, angle).Mat4()
}

// RotationY returns a rotation about the Y axis by angle radians.
func RotationY(angle float32) Mat4 {
	return QuatFromAxisAngle(Vec3{0, 1, 0}, angle).Mat4()
}

// Compose builds a TRS matrix: translate * rotate * scale.
func Compose(pos Vec3, rot Quat, scale Vec3) Mat4 {
	m := rot.Mat4()
	for i := 0; i < 4; i++ {
		m[i] *= scale.X
		m[4+i] *= scale.Y
		m[8+i] *= scale.Z
	}
	m[12], m[13], m[14] = pos.X, pos.Y, pos.Z
	return m
}

// Decompose splits an affine matrix into translation, rotation and scale.
// Shear is not represented.
func (m Mat4) Decompose() (pos Vec3, rot Quat, scale Vec3) {
	pos = m.Position()
	scale = Vec3{
		Vec3{m[0], m[1], m[2]}.Length(),
		Vec3{m[4], m[5], m[6]}.Length(),
		Vec3{m[8], m[9], m[10]}.Length(),
	}
	if m.Determinant() < 0 {
		scale.X = -scale.X
	}
	r := m
	for i := 0; i < 3; i++ {
		if scale.X != 0 {
			r[i] /= scale.X
		}
		if scale.Y != 0 {
			r[4+i] /= scale.Y
		}
		if scale.Z != 0 {
			r[8+i] /= scale.Z
		}
	}
	rot = QuatFromMat4(r)
	return pos, rot, scale
}

// Position returns the translation column.
func (m Mat4) Position() Vec3 { return Vec3{m[12], m[13], m[14]} }

// At returns the element at row r, column c.
func (m Mat4) At(r, c int) float32 { return m[c*4+r] }

// Mul returns m * o.
func (m Mat4) Mul(o Mat4) Mat4 {
	var out Mat4
	for c := 0; c < 4; c++ {
		for r := 0; r < 4; r++ {
			var sum float32
			for k := 0; k < 4; k++ {
				sum += m[k*4+r] * o[c*4+k]
			}
			out[c*4+r] = sum
		}
	}
	return out
}

// MulVec4 returns m * v.
func (m Mat4) MulVec4(v Vec4) Vec4 {
	return Vec4{
		m[0]*v.X + m[4]*v.Y + m[8]*v.Z + m[12]*v.W,
		m[1]*v.X + m[5]*v.Y + m[9]*v.Z + m[13]*v.W,
		m[2]*v.X + m[6]*v.Y + m[10]*v.Z + m[14]*v.W,
		m[3]*v.X + m[7]*v.Y + m[11]*v.Z + m[15]*v.W,
	}
}

// TransformPoint applies m to a point (w = 1).
func (m Mat4) TransformPoint(p Vec3) Vec3 {
	return m.MulVec4(Vec4{p.X, p.Y, p.Z, 1}).XYZ()
}

// TransformDirection applies the linear part of m to a direction (w = 0).
func (m Mat4) TransformDirection(d Vec3) Vec3 {
	v := m.MulVec4(Vec4{d.X, d.Y, d.Z, 0})
	return Vec3{v.X, v.Y, v.Z}
}

// Transpose swaps rows and columns.
func (m Mat4) Transpose() Mat4 {
	var out Mat4
	for c := 0; c < 4; c++ {
		for r := 0; r < 4; r++ {
			out[r*4+c] = m[c*4+r]
		}
	}
	return out
}

// Determinant returns the determinant of m.
func (m Mat4) Determinant() float32 {
	s, c := m.minors()
	return s[0]*c[5] - s[1]*c[4] + s[2]*c[3] + s[3]*c[2] - s[4]*c[1] + s[5]*c[0]
}

// Inverse returns the inverse of m and false when m is singular.
func (m Mat4) Inverse() (Mat4, bool) {
	s, c := m.minors()
	det := s[0]*c[5] - s[1]*c[4] + s[2]*c[3] + s[3]*c[2] - s[4]*c[1] + s[5]*c[0]
	if det == 0 {
		return Identity(), false
	}
	inv := 1 / det

	a := func(r, col int) float32 { return m[col*4+r] }
	var out Mat4
	set := func(r, col int, v float32) { out[col*4+r] = v * inv }

	set(0, 0, a(1, 1)*c[5]-a(1, 2)*c[4]+a(1, 3)*c[3])
	set(0, 1, -a(0, 1)*c[5]+a(0, 2)*c[4]-a(0, 3)*c[3])
	set(0, 2, a(3, 1)*s[5]-a(3, 2)*s[4]+a(3, 3)*s[3])
	set(0, 3, -a(2, 1)*s[5]+a(2, 2)*s[4]-a(2, 3)*s[3])

	set(1, 0, -a(1, 0)*c[5]+a(1, 2)*c[2]-a(1, 3)*c[1])
	set(1, 1, a(0, 0)*c[5]-a(0, 2)*c[2]+a(0, 3)*c[1])
	set(1, 2, -a(3, 0)*s[5]+a(3, 2)*s[2]-a(3, 3)*s[1])
	set(1, 3, a(2, 0)*s[5]-a(2, 2)*s[2]+a(2, 3)*s[1])

	set(2, 0, a(1, 0)*c[4]-a(1, 1)*c[2]+a(1, 3)*c[0])
	set(2, 1, -a(0, 0)*c[4]+a(0, 1)*c[2]-a(0, 3)*c[0])
	set(2, 2, a(3, 0)*s[4]-a(3, 1)*s[2]+a(3, 3)*s[0])
	set(2, 3, -a(2, 0)*s[4]+a(2, 1)*s[2]-a(2, 3)*s[0])

	set(3, 0, -a(1, 0)*c[3]+a(1, 1)*c[1]-a(1, 2)*c[0])
	set(3, 1, a(0, 0)*c[3]-a(0, 1)*c[1]+a(0, 2)*c[0])
	set(3, 2, -a(3, 0)*s[3]+a(3, 1)*s[1]-a(3, 2)*s[0])
	set(3, 3, a(2, 0)*s[3]-a(2, 1)*s[1]+a(2, 2)*s[0])
	return out, true
}

// minors returns the 2x2 sub-determinants of the top two rows (s) and the
// bottom two rows (c), in the order used by the Laplace expansion.
func (m Mat4) minors() (s, c [6]float32) {
	a := func(r, col int) float32 { return m[col*4+r] }
	s[0] = a(0, 0)*a(1, 1) - a(1, 0)*a(0, 1)
	s[1] = a(0, 0)*a(1, 2) - a(1, 0)*a(0, 2)
	s[2] = a(0, 0)*a(1, 3) - a(1, 0)*a(0, 3)
	s[3] = a(0, 1)*a(1, 2) - a(1, 1)*a(0, 2)
	s[4] = a(0, 1)*a(1, 3) - a(1, 1)*a(0, 3)
	s[5] = a(0, 2)*a(1, 3) - a(1, 2)*a(0, 3)

	c[5] = a(2, 2)*a(3, 3) - a(3, 2)*a(2, 3)
	c[4] = a(2, 1)*a(3, 3) - a(3, 1)*a(2, 3)
	c[3] = a(2, 1)*a(3, 2) - a(3, 1)*a(2, 2)
	c[2] = a(2, 0)*a(3, 3) - a(3, 0)*a(2, 3)
	c[1] = a(2, 0)*a(3, 2) - a(3, 0)*a(2, 2)
	c[0] = a(2, 0)*a(3, 1) - a(3, 0)*a(2, 1)
	return s, c
}

// Lerp interpolates two matrices element-wise. Used between animation
// keyframes that are close enough for the rotation error not to show.
func (m Mat4) Lerp(o Mat4, t float32) Mat4 {
	var out Mat4
	for i := range m {
		out[i] = m[i] + (o[i]-m[i])*t
	}
	return out
}

// ApproxEqual reports whether every element differs by less than Epsilon.
func (m Mat4) ApproxEqual(o Mat4) bool {
	for i := range m {
		if !near(m[i], o[i]) {
			return false
		}
	}
	return true
}

// Ptr returns a pointer to the first element for GL uniform uploads.
func (m *Mat4) Ptr() *float32 { return &m[0] }
