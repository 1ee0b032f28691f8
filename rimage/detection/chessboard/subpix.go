package chessboard

import (
	"math"

	"github.com/golang/geo/r2"
	"gonum.org/v1/gonum/mat"

	"github.com/xmaslights/ledmap/rimage"
)

// SubPixConfiguration controls the gradient based corner refinement.
type SubPixConfiguration struct {
	WindowHalfSize int     `json:"win_half_size"` // search window is (2*n+1) x (2*n+1)
	MaxIterations  int     `json:"max_iterations"`
	Epsilon        float64 `json:"epsilon"` // stop once the corner moves less than this, in pixels
}

// DefaultSubPixConf is an 11x11 window, 30 iterations, 0.001 px.
var DefaultSubPixConf = SubPixConfiguration{
	WindowHalfSize: 5,
	MaxIterations:  30,
	Epsilon:        0.001,
}

// RefineCorners moves each corner to the point q where every image gradient in the window is orthogonal to
// the vector from q to its sample position: sum_p w(p) g(p) g(p)^T (q - p) = 0.
func RefineCorners(gray *mat.Dense, corners []r2.Point, cfg SubPixConfiguration) []r2.Point {
	gx, gy := rimage.CentralGradients(gray)
	h, w := gray.Dims()
	half := cfg.WindowHalfSize
	sigma := float64(half) / 2
	if sigma <= 0 {
		sigma = 1
	}
	out := make([]r2.Point, len(corners))
	for i, start := range corners {
		q := start
		for it := 0; it < cfg.MaxIterations; it++ {
			var a11, a12, a22, b1, b2 float64
			for dy := -half; dy <= half; dy++ {
				for dx := -half; dx <= half; dx++ {
					p := r2.Point{X: q.X + float64(dx), Y: q.Y + float64(dy)}
					if p.X < 0 || p.Y < 0 || p.X > float64(w-1) || p.Y > float64(h-1) {
						continue
					}
					wt := math.Exp(-float64(dx*dx+dy*dy) / (2 * sigma * sigma))
					ix := rimage.BilinearAt(gx, p.X, p.Y)
					iy := rimage.BilinearAt(gy, p.X, p.Y)
					gxx, gxy, gyy := wt*ix*ix, wt*ix*iy, wt*iy*iy
					a11 += gxx
					a12 += gxy
					a22 += gyy
					b1 += gxx*p.X + gxy*p.Y
					b2 += gxy*p.X + gyy*p.Y
				}
			}
			det := a11*a22 - a12*a12
			if math.Abs(det) < 1e-12 {
				break
			}
			next := r2.Point{
				X: (a22*b1 - a12*b2) / det,
				Y: (a11*b2 - a12*b1) / det,
			}
			// a corner that wanders out of its window was not a corner
			if next.Sub(start).Norm() > float64(half) {
				q = start
				break
			}
			moved := next.Sub(q).Norm()
			q = next
			if moved < cfg.Epsilon {
				break
			}
		}
		out[i] = q
	}
	return out
}
