package common

import (
	"encoding/binary"
	"math"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// DisplayGamma is the exponent used to convert display-encoded colors to linear.
const DisplayGamma = 2.2

// SRGBToLinear converts a display-encoded RGB color to linear encoding.
//
// Parameters:
//   - c: the display-encoded color
//
// Returns:
//   - mgl32.Vec3: the linear color
func SRGBToLinear(c mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{
		math32.Pow(c[0], DisplayGamma),
		math32.Pow(c[1], DisplayGamma),
		math32.Pow(c[2], DisplayGamma),
	}
}

// DecomposeAffine splits a matrix into translation, rotation and scale.
// Only the affine part is read: the projective row is ignored and any shear is
// removed by orthogonalizing the basis, so the result is lossy for sheared input.
// A degenerate axis yields zero scale on that axis and an identity contribution
// to the rotation.
//
// Parameters:
//   - m: the matrix to decompose
//
// Returns:
//   - mgl32.Vec3: translation
//   - mgl32.Quat: rotation
//   - mgl32.Vec3: scale
func DecomposeAffine(m mgl32.Mat4) (mgl32.Vec3, mgl32.Quat, mgl32.Vec3) {
	translation := m.Col(3).Vec3()

	c0 := m.Col(0).Vec3()
	c1 := m.Col(1).Vec3()
	c2 := m.Col(2).Vec3()

	var scale mgl32.Vec3
	x, sx := normalizeOr(c0, mgl32.Vec3{1, 0, 0})
	c1 = c1.Sub(x.Mul(x.Dot(c1)))
	y, sy := normalizeOr(c1, perpendicular(x))
	c2 = c2.Sub(x.Mul(x.Dot(c2)))
	c2 = c2.Sub(y.Mul(y.Dot(c2)))
	z, sz := normalizeOr(c2, x.Cross(y))
	scale = mgl32.Vec3{sx, sy, sz}

	// A mirrored basis is folded into negative scale so the rotation stays proper.
	if x.Cross(y).Dot(z) < 0 {
		scale = scale.Mul(-1)
		x, y, z = x.Mul(-1), y.Mul(-1), z.Mul(-1)
	}

	rotation := mgl32.Mat4ToQuat(mgl32.Mat3FromCols(x, y, z).Mat4()).Normalize()
	return translation, rotation, scale
}

func normalizeOr(v, fallback mgl32.Vec3) (mgl32.Vec3, float32) {
	l := v.Len()
	if l <= 1e-8 {
		return fallback, 0
	}
	return v.Mul(1 / l), l
}

// perpendicular returns a unit vector orthogonal to v.
func perpendicular(v mgl32.Vec3) mgl32.Vec3 {
	axis := mgl32.Vec3{0, 1, 0}
	if math32.Abs(v.Dot(axis)) > 0.9 {
		axis = mgl32.Vec3{0, 0, 1}
	}
	return v.Cross(axis).Normalize()
}

// ComposeTRS builds translation * rotation * scale.
//
// Parameters:
//   - t: translation
//   - r: rotation
//   - s: scale
//
// Returns:
//   - mgl32.Mat4: the composed matrix
func ComposeTRS(t mgl32.Vec3, r mgl32.Quat, s mgl32.Vec3) mgl32.Mat4 {
	return mgl32.Translate3D(t[0], t[1], t[2]).Mul4(r.Mat4()).Mul4(mgl32.Scale3D(s[0], s[1], s[2]))
}

// EulerYXZ returns the rotation yaw(Y) * pitch(X) * roll(Z).
// The angles are read from euler as (x: pitch, y: yaw, z: roll) in radians.
//
// Parameters:
//   - euler: the angles in radians
//
// Returns:
//   - mgl32.Quat: the rotation
func EulerYXZ(euler mgl32.Vec3) mgl32.Quat {
	yaw := mgl32.QuatRotate(euler[1], mgl32.Vec3{0, 1, 0})
	pitch := mgl32.QuatRotate(euler[0], mgl32.Vec3{1, 0, 0})
	roll := mgl32.QuatRotate(euler[2], mgl32.Vec3{0, 0, 1})
	return yaw.Mul(pitch).Mul(roll)
}

// EulerXYZ returns the rotation X * Y * Z for the angles in euler, in radians.
//
// Parameters:
//   - euler: the angles in radians
//
// Returns:
//   - mgl32.Quat: the rotation
func EulerXYZ(euler mgl32.Vec3) mgl32.Quat {
	rx := mgl32.QuatRotate(euler[0], mgl32.Vec3{1, 0, 0})
	ry := mgl32.QuatRotate(euler[1], mgl32.Vec3{0, 1, 0})
	rz := mgl32.QuatRotate(euler[2], mgl32.Vec3{0, 0, 1})
	return rx.Mul(ry).Mul(rz)
}

// RowMajor3x4 returns the top three rows of m in row-major order, the layout
// ray-tracing instance descriptors expect.
//
// Parameters:
//   - m: the affine matrix
//
// Returns:
//   - [12]float32: rows 0..2, four columns each
func RowMajor3x4(m mgl32.Mat4) [12]float32 {
	var out [12]float32
	for r := range 3 {
		for c := range 4 {
			out[r*4+c] = m.At(r, c)
		}
	}
	return out
}

// PutFloats writes values little endian into buf starting at offset 0.
// buf must hold at least 4*len(values) bytes.
//
// Parameters:
//   - buf: destination
//   - values: float32 values to write
//
// Returns:
//   - int: number of bytes written
func PutFloats(buf []byte, values ...float32) int {
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return len(values) * 4
}

// PutMat4 writes a column-major matrix little endian into buf (64 bytes).
//
// Parameters:
//   - buf: destination
//   - m: the matrix
//
// Returns:
//   - int: number of bytes written
func PutMat4(buf []byte, m mgl32.Mat4) int {
	return PutFloats(buf, m[:]...)
}
