package calibrate

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
	spatial "gonum.org/v1/gonum/spatial/r3"
)

// rotationFromVector turns an axis-angle vector (angle = norm) into a rotation.
func rotationFromVector(v spatial.Vec) spatial.Rotation {
	angle := spatial.Norm(v)
	if angle < 1e-15 {
		return spatial.Rotation{Real: 1}
	}
	return spatial.NewRotation(angle, v)
}

// vectorFromRotationMatrix returns the axis-angle vector of a proper rotation matrix.
func vectorFromRotationMatrix(m mat.Matrix) spatial.Vec {
	m00, m01, m02 := m.At(0, 0), m.At(0, 1), m.At(0, 2)
	m10, m11, m12 := m.At(1, 0), m.At(1, 1), m.At(1, 2)
	m20, m21, m22 := m.At(2, 0), m.At(2, 1), m.At(2, 2)

	var q quat.Number
	switch tr := m00 + m11 + m22; {
	case tr > 0:
		s := 2 * math.Sqrt(tr+1)
		q = quat.Number{Real: s / 4, Imag: (m21 - m12) / s, Jmag: (m02 - m20) / s, Kmag: (m10 - m01) / s}
	case m00 > m11 && m00 > m22:
		s := 2 * math.Sqrt(1+m00-m11-m22)
		q = quat.Number{Real: (m21 - m12) / s, Imag: s / 4, Jmag: (m01 + m10) / s, Kmag: (m02 + m20) / s}
	case m11 > m22:
		s := 2 * math.Sqrt(1+m11-m00-m22)
		q = quat.Number{Real: (m02 - m20) / s, Imag: (m01 + m10) / s, Jmag: s / 4, Kmag: (m12 + m21) / s}
	default:
		s := 2 * math.Sqrt(1+m22-m00-m11)
		q = quat.Number{Real: (m10 - m01) / s, Imag: (m02 + m20) / s, Jmag: (m12 + m21) / s, Kmag: s / 4}
	}
	if q.Real < 0 {
		q = quat.Scale(-1, q)
	}
	axis := spatial.Vec{X: q.Imag, Y: q.Jmag, Z: q.Kmag}
	sinHalf := spatial.Norm(axis)
	if sinHalf < 1e-15 {
		return spatial.Vec{}
	}
	angle := 2 * math.Atan2(sinHalf, q.Real)
	return spatial.Scale(angle/sinHalf, axis)
}
