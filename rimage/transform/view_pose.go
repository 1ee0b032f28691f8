package transform

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/xmaslights/ledmap/utils"
)

const orthonormalTolerance = 1e-6

// ViewPose places one camera viewpoint relative to the shared world origin: a world point X is
// seen in camera coordinates at R*X + T.
type ViewPose struct {
	R *mat.Dense
	T r3.Vector
}

// IdentityPose is the reference viewpoint at the world origin.
func IdentityPose() *ViewPose {
	return &ViewPose{R: eye(3), T: r3.Vector{}}
}

// NewViewPose validates that r is a proper rotation matrix.
func NewViewPose(r mat.Matrix, t r3.Vector) (*ViewPose, error) {
	if rows, cols := r.Dims(); rows != 3 || cols != 3 {
		return nil, errors.Errorf("rotation must be 3x3, got %dx%d", rows, cols)
	}
	rot := mat.DenseCopyOf(r)
	var rtr mat.Dense
	rtr.Mul(rot.T(), rot)
	if !mat.EqualApprox(&rtr, eye(3), orthonormalTolerance) {
		return nil, errors.New("rotation matrix is not orthonormal")
	}
	if det := mat.Det(rot); math.Abs(det-1) > orthonormalTolerance {
		return nil, errors.Errorf("rotation matrix determinant must be 1, got %f", det)
	}
	return &ViewPose{R: rot, T: t}, nil
}

// NewViewPoseFromEuler builds a pose from rotations in degrees about X, then Y, then Z (R = Rz*Ry*Rx).
func NewViewPoseFromEuler(rxDeg, ryDeg, rzDeg float64, t r3.Vector) *ViewPose {
	r := RotationFromEuler(rxDeg, ryDeg, rzDeg)
	return &ViewPose{R: r, T: t}
}

// NewOrbitViewPose returns the pose of a camera that kept looking at center while turning by r about it: center
// stays where the reference view sees it, so t = center - r*center.
func NewOrbitViewPose(r mat.Matrix, center r3.Vector) (*ViewPose, error) {
	vp, err := NewViewPose(r, r3.Vector{})
	if err != nil {
		return nil, err
	}
	vp.T = center.Sub(vp.Apply(center))
	return vp, nil
}

// RotationFromEuler returns Rz*Ry*Rx for angles in degrees.
func RotationFromEuler(rxDeg, ryDeg, rzDeg float64) *mat.Dense {
	sx, cx := math.Sincos(utils.DegToRad(rxDeg))
	sy, cy := math.Sincos(utils.DegToRad(ryDeg))
	sz, cz := math.Sincos(utils.DegToRad(rzDeg))
	rx := mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, cx, -sx,
		0, sx, cx,
	})
	ry := mat.NewDense(3, 3, []float64{
		cy, 0, sy,
		0, 1, 0,
		-sy, 0, cy,
	})
	rz := mat.NewDense(3, 3, []float64{
		cz, -sz, 0,
		sz, cz, 0,
		0, 0, 1,
	})
	var out mat.Dense
	out.Mul(rz, ry)
	out.Mul(&out, rx)
	return &out
}

// Apply maps a world point into this view's camera coordinates.
func (vp *ViewPose) Apply(p r3.Vector) r3.Vector {
	return r3.Vector{
		X: vp.R.At(0, 0)*p.X + vp.R.At(0, 1)*p.Y + vp.R.At(0, 2)*p.Z + vp.T.X,
		Y: vp.R.At(1, 0)*p.X + vp.R.At(1, 1)*p.Y + vp.R.At(1, 2)*p.Z + vp.T.Y,
		Z: vp.R.At(2, 0)*p.X + vp.R.At(2, 1)*p.Y + vp.R.At(2, 2)*p.Z + vp.T.Z,
	}
}

// Depth is the distance of p along this view's optical axis.
func (vp *ViewPose) Depth(p r3.Vector) float64 {
	return vp.Apply(p).Z
}

// Extrinsics returns the 3x4 matrix [R|t].
func (vp *ViewPose) Extrinsics() *mat.Dense {
	t := mat.NewDense(3, 1, []float64{vp.T.X, vp.T.Y, vp.T.Z})
	var rt mat.Dense
	rt.Augment(vp.R, t)
	return &rt
}

// ProjectionMatrix returns K[R|t].
func (vp *ViewPose) ProjectionMatrix(k mat.Matrix) *mat.Dense {
	var p mat.Dense
	p.Mul(k, vp.Extrinsics())
	return &p
}
