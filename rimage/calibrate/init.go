package calibrate

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	spatial "gonum.org/v1/gonum/spatial/r3"

	"github.com/xmaslights/ledmap/rimage/transform"
)

// boardHomography maps board plane coordinates (x, y) to pixels.
func boardHomography(o observation) (*transform.Homography, error) {
	plane := make([]r2.Point, len(o.object))
	for i, p := range o.object {
		plane[i] = r2.Point{X: p.X, Y: p.Y}
	}
	return transform.EstimateHomography(plane, o.pixels)
}

// initialFocalLengths estimates fx and fy from the board homographies with the principal point held at
// (cx, cy) and zero skew. With B = diag(1/fx², 1/fy², 1), every homography column pair h1, h2 of the
// centred homography gives h1ᵀ B h2 = 0 and h1ᵀ B h1 = h2ᵀ B h2.
func initialFocalLengths(homographies []*transform.Homography, cx, cy, fallback float64) (float64, float64) {
	shift := mat.NewDense(3, 3, []float64{1, 0, -cx, 0, 1, -cy, 0, 0, 1})
	a := mat.NewDense(2*len(homographies), 3, nil)
	for i, h := range homographies {
		var hc mat.Dense
		hc.Mul(shift, h.Dense())
		h1 := mat.Col(nil, 0, &hc)
		h2 := mat.Col(nil, 1, &hc)
		a.SetRow(2*i, []float64{h1[0] * h2[0], h1[1] * h2[1], h1[2] * h2[2]})
		a.SetRow(2*i+1, []float64{
			h1[0]*h1[0] - h2[0]*h2[0],
			h1[1]*h1[1] - h2[1]*h2[1],
			h1[2]*h1[2] - h2[2]*h2[2],
		})
	}
	b, err := transform.NullVector(a)
	if err != nil || b[2] == 0 {
		return fallback, fallback
	}
	u, v := b[0]/b[2], b[1]/b[2]
	switch {
	case u > 0 && v > 0:
		return math.Sqrt(1 / u), math.Sqrt(1 / v)
	case u > 0:
		f := math.Sqrt(1 / u)
		return f, f
	case v > 0:
		f := math.Sqrt(1 / v)
		return f, f
	default:
		// fronto-parallel boards leave the focal length unobservable
		return fallback, fallback
	}
}

// initialPose recovers the board pose from its homography: H ~ K [r1 r2 t].
func initialPose(k *mat.Dense, h *transform.Homography) (viewPose, error) {
	var kInv mat.Dense
	if err := kInv.Inverse(k); err != nil {
		return viewPose{}, errors.Wrap(err, "camera matrix is singular")
	}
	var m mat.Dense
	m.Mul(&kInv, h.Dense())
	a := mat.Col(nil, 0, &m)
	b := mat.Col(nil, 1, &m)
	c := mat.Col(nil, 2, &m)
	norm := math.Sqrt(a[0]*a[0] + a[1]*a[1] + a[2]*a[2])
	if norm == 0 {
		return viewPose{}, errors.New("degenerate homography")
	}
	lambda := 1 / norm
	// the board must be in front of the camera
	if c[2] < 0 {
		lambda = -lambda
	}
	r1 := spatial.Scale(lambda, spatial.Vec{X: a[0], Y: a[1], Z: a[2]})
	r2v := spatial.Scale(lambda, spatial.Vec{X: b[0], Y: b[1], Z: b[2]})
	t := spatial.Scale(lambda, spatial.Vec{X: c[0], Y: c[1], Z: c[2]})
	r3v := spatial.Cross(r1, r2v)

	approx := mat.NewDense(3, 3, []float64{
		r1.X, r2v.X, r3v.X,
		r1.Y, r2v.Y, r3v.Y,
		r1.Z, r2v.Z, r3v.Z,
	})
	// closest rotation in the Frobenius sense
	var svd mat.SVD
	if ok := svd.Factorize(approx, mat.SVDFull); !ok {
		return viewPose{}, errors.New("failed to factorize rotation estimate")
	}
	var u, v, rot mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	rot.Mul(&u, v.T())
	if mat.Det(&rot) < 0 {
		return viewPose{}, errors.New("board pose estimate is a reflection")
	}
	return viewPose{rotation: vectorFromRotationMatrix(&rot), translation: t}, nil
}
