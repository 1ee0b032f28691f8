package calibrate

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// lmSettings controls the Levenberg-Marquardt refinement.
type lmSettings struct {
	MaxIterations int
	// Tolerance stops the search once a step improves the cost by less than this fraction.
	Tolerance float64
}

var defaultLMSettings = lmSettings{MaxIterations: 100, Tolerance: 1e-12}

// levenbergMarquardt minimizes ½|f(x)|² where f has m outputs. The Jacobian is estimated with central
// differences and damped with Marquardt's diagonal scaling. It returns the solution and its residuals.
func levenbergMarquardt(
	ctx context.Context,
	f func(dst, x []float64),
	x0 []float64,
	m int,
	settings lmSettings,
) ([]float64, []float64, error) {
	n := len(x0)
	if m < n {
		return nil, nil, errors.Errorf("need at least as many residuals (%d) as parameters (%d)", m, n)
	}
	x := append([]float64(nil), x0...)
	r := make([]float64, m)
	f(r, x)
	cost := 0.5 * floats.Dot(r, r)

	jac := mat.NewDense(m, n, nil)
	jacSettings := &fd.JacobianSettings{Formula: fd.Central, Concurrent: true}
	var jtj mat.SymDense
	var grad mat.VecDense
	var damped *mat.SymDense
	var chol mat.Cholesky
	step := mat.NewVecDense(n, nil)
	candidate := make([]float64, n)
	rCandidate := make([]float64, m)
	mu := 1e-3

	for it := 0; it < settings.MaxIterations; it++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		fd.Jacobian(jac, f, x, jacSettings)
		jtj.SymOuterK(1, jac.T())
		grad.MulVec(jac.T(), mat.NewVecDense(m, r))

		improved := false
		for !improved && mu < 1e16 {
			damped = mat.NewSymDense(n, nil)
			damped.CopySym(&jtj)
			for i := 0; i < n; i++ {
				d := jtj.At(i, i)
				damped.SetSym(i, i, d+mu*math.Max(d, 1e-12))
			}
			if ok := chol.Factorize(damped); !ok {
				mu *= 10
				continue
			}
			if err := chol.SolveVecTo(step, &grad); err != nil {
				mu *= 10
				continue
			}
			for i := range candidate {
				candidate[i] = x[i] - step.AtVec(i)
			}
			f(rCandidate, candidate)
			newCost := 0.5 * floats.Dot(rCandidate, rCandidate)
			if math.IsNaN(newCost) || newCost >= cost {
				mu *= 10
				continue
			}
			improved = true
			gain := cost - newCost
			copy(x, candidate)
			copy(r, rCandidate)
			cost = newCost
			mu = math.Max(mu/10, 1e-15)
			if gain <= settings.Tolerance*cost {
				return x, r, nil
			}
		}
		if !improved {
			break
		}
	}
	return x, r, nil
}
