package transform

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// getCrossProductMatFromPoint returns the cross product with point p matrix.
func getCrossProductMatFromPoint(p r3.Vector) *mat.Dense {
	cross := mat.NewDense(3, 3, nil)
	cross.Set(0, 1, -p.Z)
	cross.Set(0, 2, p.Y)
	cross.Set(1, 0, p.Z)
	cross.Set(1, 2, -p.X)
	cross.Set(2, 0, -p.Y)
	cross.Set(2, 1, p.X)
	return cross
}

// TriangulateDLT solves the two view Direct Linear Transform for the homogeneous point seen at x1 through
// the 3x4 projection p1 and at x2 through p2. The observations must live in the same space as the
// projection matrices (pixels for K[R|t], normalized rays for [R|t]).
func TriangulateDLT(p1, p2 mat.Matrix, x1, x2 r2.Point) (r3.Vector, error) {
	for _, p := range []mat.Matrix{p1, p2} {
		if r, c := p.Dims(); r != 3 || c != 4 {
			return r3.Vector{}, errors.Errorf("projection matrix must be 3x4, got %dx%d", r, c)
		}
	}
	// x cross (P X) = 0 gives three rows per view, two of them independent.
	p1Cross := mat.NewDense(3, 4, nil)
	p1Cross.Mul(getCrossProductMatFromPoint(r3.Vector{X: x1.X, Y: x1.Y, Z: 1}), p1)
	p2Cross := mat.NewDense(3, 4, nil)
	p2Cross.Mul(getCrossProductMatFromPoint(r3.Vector{X: x2.X, Y: x2.Y, Z: 1}), p2)
	var a mat.Dense
	a.Stack(p1Cross, p2Cross)

	// row scaling keeps the system well conditioned when pixel coordinates are large
	rows, _ := a.Dims()
	for i := 0; i < rows; i++ {
		row := a.RawRowView(i)
		if n := mat.Norm(mat.NewVecDense(4, row), 2); n > 0 {
			for j := range row {
				row[j] /= n
			}
		}
	}

	h, err := NullVector(&a)
	if err != nil {
		return r3.Vector{}, err
	}
	if math.Abs(h[3]) < 1e-12 {
		return r3.Vector{}, errors.New("triangulated point is at infinity")
	}
	return r3.Vector{X: h[0] / h[3], Y: h[1] / h[3], Z: h[2] / h[3]}, nil
}
