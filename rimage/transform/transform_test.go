package transform

import (
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"
)

func testK() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		800, 0, 320,
		0, 810, 240,
		0, 0, 1,
	})
}

func TestIntrinsicsValidation(t *testing.T) {
	var nilIntrinsics *PinholeCameraIntrinsics
	test.That(t, errors.Is(nilIntrinsics.CheckValid(), ErrCalibrationMissing), test.ShouldBeTrue)

	_, err := NewPinholeCameraIntrinsicsFromMatrix(mat.NewDense(2, 2, nil), 640, 480)
	test.That(t, err, test.ShouldNotBeNil)

	bad := mat.NewDense(3, 3, []float64{800, 0, 700, 0, 800, 240, 0, 0, 1})
	_, err = NewPinholeCameraIntrinsicsFromMatrix(bad, 640, 480)
	test.That(t, err, test.ShouldNotBeNil)

	neg := mat.NewDense(3, 3, []float64{-1, 0, 320, 0, 800, 240, 0, 0, 1})
	_, err = NewPinholeCameraIntrinsicsFromMatrix(neg, 640, 480)
	test.That(t, err, test.ShouldNotBeNil)

	params, err := NewPinholeCameraIntrinsicsFromMatrix(testK(), 640, 480)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, mat.Equal(params.GetCameraMatrix(), testK()), test.ShouldBeTrue)
}

func TestCameraModelMissing(t *testing.T) {
	var cm *CameraModel
	_, err := cm.Undistort(r2.Point{X: 1, Y: 1})
	test.That(t, errors.Is(err, ErrCalibrationMissing), test.ShouldBeTrue)

	empty := &CameraModel{}
	_, err = empty.Undistort(r2.Point{X: 1, Y: 1})
	test.That(t, errors.Is(err, ErrCalibrationMissing), test.ShouldBeTrue)
}

func TestUndistortIdentityWithoutDistortion(t *testing.T) {
	cm, err := NewCameraModel(testK(), []float64{0, 0, 0, 0, 0}, 640, 480)
	test.That(t, err, test.ShouldBeNil)
	for _, px := range []r2.Point{{X: 0, Y: 0}, {X: 320, Y: 240}, {X: 639.5, Y: 12.25}, {X: 100, Y: 470}} {
		n, err := cm.Undistort(px)
		test.That(t, err, test.ShouldBeNil)
		back, err := cm.Distort(n)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, back.X, test.ShouldAlmostEqual, px.X, 1e-9)
		test.That(t, back.Y, test.ShouldAlmostEqual, px.Y, 1e-9)
	}
	n, err := cm.Undistort(r2.Point{X: 1120, Y: 240})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, n.X, test.ShouldAlmostEqual, 1.0)
	test.That(t, n.Y, test.ShouldAlmostEqual, 0.0)
}

func TestUndistortInvertsDistortion(t *testing.T) {
	cm, err := NewCameraModel(testK(), []float64{-0.28, 0.07, 0.001, -0.0005, 0.01}, 640, 480)
	test.That(t, err, test.ShouldBeNil)
	for _, n := range []r2.Point{{X: 0, Y: 0}, {X: 0.3, Y: -0.2}, {X: -0.35, Y: 0.25}, {X: 0.1, Y: 0.29}} {
		px, err := cm.Distort(n)
		test.That(t, err, test.ShouldBeNil)
		got, err := cm.Undistort(px)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, got.X, test.ShouldAlmostEqual, n.X, 1e-8)
		test.That(t, got.Y, test.ShouldAlmostEqual, n.Y, 1e-8)
	}
}

func TestBrownConradyCoefficients(t *testing.T) {
	bc, err := NewBrownConrady([]float64{1, 2, 3, 4})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, bc.Parameters(), test.ShouldResemble, []float64{1, 2, 3, 4, 0})
	_, err = NewBrownConrady([]float64{1, 2})
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewBrownConrady(make([]float64, 8))
	test.That(t, err, test.ShouldNotBeNil)
	empty, err := NewBrownConrady(nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, empty.IsZero(), test.ShouldBeTrue)
}

func TestViewPose(t *testing.T) {
	_, err := NewViewPose(mat.NewDense(3, 3, []float64{2, 0, 0, 0, 1, 0, 0, 0, 1}), r3.Vector{})
	test.That(t, err, test.ShouldNotBeNil)
	// a reflection is orthonormal but not a rotation
	_, err = NewViewPose(mat.NewDense(3, 3, []float64{-1, 0, 0, 0, 1, 0, 0, 0, 1}), r3.Vector{})
	test.That(t, err, test.ShouldNotBeNil)

	pose := NewViewPoseFromEuler(0, 90, 0, r3.Vector{X: 1, Y: 2, Z: 3})
	_, err = NewViewPose(pose.R, pose.T)
	test.That(t, err, test.ShouldBeNil)
	got := pose.Apply(r3.Vector{X: 0, Y: 0, Z: 1})
	test.That(t, got.X, test.ShouldAlmostEqual, 2)
	test.That(t, got.Y, test.ShouldAlmostEqual, 2)
	test.That(t, got.Z, test.ShouldAlmostEqual, 3)
	test.That(t, pose.Depth(r3.Vector{X: 1}), test.ShouldAlmostEqual, 2)

	p := IdentityPose().ProjectionMatrix(testK())
	r, c := p.Dims()
	test.That(t, r, test.ShouldEqual, 3)
	test.That(t, c, test.ShouldEqual, 4)
	test.That(t, p.At(0, 2), test.ShouldEqual, 320)
}

func TestOrbitViewPose(t *testing.T) {
	center := r3.Vector{Z: 2000}
	pose, err := NewOrbitViewPose(RotationFromEuler(0, 15, 0), center)
	test.That(t, err, test.ShouldBeNil)
	got := pose.Apply(center)
	test.That(t, got.X, test.ShouldAlmostEqual, 0)
	test.That(t, got.Y, test.ShouldAlmostEqual, 0)
	test.That(t, got.Z, test.ShouldAlmostEqual, 2000)
	test.That(t, pose.T.X, test.ShouldAlmostEqual, -517.638, 1e-3)
	test.That(t, pose.T.Z, test.ShouldAlmostEqual, 68.148, 1e-3)

	_, err = NewOrbitViewPose(mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, -1}), center)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestTriangulateRoundTrip(t *testing.T) {
	cm, err := NewCameraModel(testK(), nil, 640, 480)
	test.That(t, err, test.ShouldBeNil)
	pose1 := IdentityPose()
	pose2 := NewViewPoseFromEuler(0, 15, 0, r3.Vector{X: -500, Y: 0, Z: 50})
	p1, err := cm.ProjectionMatrix(pose1)
	test.That(t, err, test.ShouldBeNil)
	p2, err := cm.ProjectionMatrix(pose2)
	test.That(t, err, test.ShouldBeNil)

	points := []r3.Vector{
		{X: 0, Y: 0, Z: 2000},
		{X: 150, Y: -220, Z: 1800},
		{X: -300, Y: 120, Z: 2500},
		{X: 20, Y: 310, Z: 3200},
	}
	for _, want := range points {
		x1, err := cm.Project(pose1, want)
		test.That(t, err, test.ShouldBeNil)
		x2, err := cm.Project(pose2, want)
		test.That(t, err, test.ShouldBeNil)
		got, err := TriangulateDLT(p1, p2, x1, x2)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, got.Sub(want).Norm()/want.Norm(), test.ShouldBeLessThan, 1e-3)
	}

	_, err = TriangulateDLT(mat.NewDense(3, 3, nil), p2, r2.Point{}, r2.Point{})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestProjectBehindCamera(t *testing.T) {
	cm, err := NewCameraModel(testK(), nil, 640, 480)
	test.That(t, err, test.ShouldBeNil)
	_, err = cm.ProjectCameraPoint(r3.Vector{X: 1, Y: 1, Z: -5})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestEstimateHomography(t *testing.T) {
	want, err := NewHomography([]float64{1.2, 0.1, 30, -0.05, 0.9, 12, 1e-4, 2e-4, 1})
	test.That(t, err, test.ShouldBeNil)
	var src, dst []r2.Point
	for y := 0.; y < 5; y++ {
		for x := 0.; x < 6; x++ {
			p := r2.Point{X: x * 25, Y: y * 25}
			src = append(src, p)
			dst = append(dst, want.Apply(p))
		}
	}
	got, err := EstimateHomography(src, dst)
	test.That(t, err, test.ShouldBeNil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			test.That(t, math.Abs(got.At(i, j)-want.At(i, j)), test.ShouldBeLessThan, 1e-6)
		}
	}
	inv, err := got.Inverse()
	test.That(t, err, test.ShouldBeNil)
	back := inv.Apply(dst[7])
	test.That(t, back.X, test.ShouldAlmostEqual, src[7].X, 1e-6)

	_, err = EstimateHomography(src[:3], dst[:3])
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewHomography([]float64{})
	test.That(t, err, test.ShouldBeError, errors.New("input to NewHomography must have length of 9. Has length of 0"))
}

func TestNullVector(t *testing.T) {
	a := mat.NewDense(2, 3, []float64{
		1, 0, 0,
		0, 2, 0,
	})
	v, err := NullVector(a)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, math.Abs(v[0]), test.ShouldAlmostEqual, 0, 1e-12)
	test.That(t, math.Abs(v[1]), test.ShouldAlmostEqual, 0, 1e-12)
	test.That(t, math.Abs(v[2]), test.ShouldAlmostEqual, 1, 1e-12)

	_, err = NullVector(mat.NewDense(2, 3, nil))
	test.That(t, err, test.ShouldNotBeNil)
}
