package calibrate

import (
	"context"
	"math"
	"testing"

	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"
	spatial "gonum.org/v1/gonum/spatial/r3"

	"github.com/xmaslights/ledmap/rimage/transform"
)

func TestLevenbergMarquardtCurveFit(t *testing.T) {
	// y = a * exp(b * x)
	xs := []float64{0, 0.5, 1, 1.5, 2, 2.5, 3}
	ys := make([]float64, len(xs))
	for i, x := range xs {
		ys[i] = 2.5 * math.Exp(-1.3*x)
	}
	f := func(dst, p []float64) {
		for i, x := range xs {
			dst[i] = p[0]*math.Exp(p[1]*x) - ys[i]
		}
	}
	x, r, err := levenbergMarquardt(context.Background(), f, []float64{1, 0}, len(xs), defaultLMSettings)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, x[0], test.ShouldAlmostEqual, 2.5, 1e-6)
	test.That(t, x[1], test.ShouldAlmostEqual, -1.3, 1e-6)
	for _, v := range r {
		test.That(t, math.Abs(v), test.ShouldBeLessThan, 1e-6)
	}

	_, _, err = levenbergMarquardt(context.Background(), f, make([]float64, 10), len(xs), defaultLMSettings)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestRotationVectorRoundTrip(t *testing.T) {
	for _, euler := range [][3]float64{{0, 0, 0}, {10, -20, 30}, {179, 0, 0}, {0, 90, 0}, {-45, 60, -170}} {
		m := transform.RotationFromEuler(euler[0], euler[1], euler[2])
		v := vectorFromRotationMatrix(m)
		rot := rotationFromVector(v)
		for _, axis := range []spatial.Vec{{X: 1}, {Y: 1}, {Z: 1}} {
			got := rot.Rotate(axis)
			var want mat.VecDense
			want.MulVec(m, mat.NewVecDense(3, []float64{axis.X, axis.Y, axis.Z}))
			test.That(t, got.X, test.ShouldAlmostEqual, want.AtVec(0), 1e-9)
			test.That(t, got.Y, test.ShouldAlmostEqual, want.AtVec(1), 1e-9)
			test.That(t, got.Z, test.ShouldAlmostEqual, want.AtVec(2), 1e-9)
		}
	}
	test.That(t, vectorFromRotationMatrix(transform.RotationFromEuler(0, 0, 0)), test.ShouldResemble, spatial.Vec{})
}
