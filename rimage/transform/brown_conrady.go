package transform

import "github.com/pkg/errors"

const (
	undistortMaxIterations = 20
	undistortTolerance     = 1e-10
)

// BrownConrady is the polynomial radial/tangential lens distortion model. Coefficients are kept in the
// order calibration tools write them: k1, k2, p1, p2, k3.
//
//	x_d = x_u * (1 + k1*r² + k2*r⁴ + k3*r⁶) + 2*p1*x_u*y_u + p2*(r² + 2*x_u²)
//	y_d = y_u * (1 + k1*r² + k2*r⁴ + k3*r⁶) + 2*p2*x_u*y_u + p1*(r² + 2*y_u²)
type BrownConrady struct {
	RadialK1     float64 `json:"rk1"`
	RadialK2     float64 `json:"rk2"`
	TangentialP1 float64 `json:"tp1"`
	TangentialP2 float64 `json:"tp2"`
	RadialK3     float64 `json:"rk3"`
}

// NewBrownConrady takes k1, k2, p1, p2 and an optional k3. An empty slice is no distortion.
func NewBrownConrady(coeffs []float64) (*BrownConrady, error) {
	switch len(coeffs) {
	case 0:
		return &BrownConrady{}, nil
	case 4, 5:
	default:
		return nil, errors.Errorf("distortion needs 4 or 5 coefficients (k1, k2, p1, p2[, k3]), got %d", len(coeffs))
	}
	bc := &BrownConrady{coeffs[0], coeffs[1], coeffs[2], coeffs[3], 0}
	if len(coeffs) == 5 {
		bc.RadialK3 = coeffs[4]
	}
	return bc, nil
}

// Parameters returns k1, k2, p1, p2, k3.
func (bc *BrownConrady) Parameters() []float64 {
	if bc == nil {
		return []float64{0, 0, 0, 0, 0}
	}
	return []float64{bc.RadialK1, bc.RadialK2, bc.TangentialP1, bc.TangentialP2, bc.RadialK3}
}

// IsZero reports whether the model is the identity.
func (bc *BrownConrady) IsZero() bool {
	return bc == nil || *bc == BrownConrady{}
}

// Distort maps an undistorted normalized point to its distorted position.
func (bc *BrownConrady) Distort(xu, yu float64) (float64, float64) {
	if bc == nil {
		return xu, yu
	}
	r2 := xu*xu + yu*yu
	radial := 1.0 + bc.RadialK1*r2 + bc.RadialK2*r2*r2 + bc.RadialK3*r2*r2*r2
	xd := xu*radial + 2.0*bc.TangentialP1*xu*yu + bc.TangentialP2*(r2+2.0*xu*xu)
	yd := yu*radial + 2.0*bc.TangentialP2*xu*yu + bc.TangentialP1*(r2+2.0*yu*yu)
	return xd, yd
}

// Undistort inverts Distort with Newton-Raphson, starting from the distorted point.
func (bc *BrownConrady) Undistort(xd, yd float64) (float64, float64) {
	if bc.IsZero() {
		return xd, yd
	}
	xu, yu := xd, yd
	for i := 0; i < undistortMaxIterations; i++ {
		errX, errY := bc.Distort(xu, yu)
		errX -= xd
		errY -= yd
		if errX*errX+errY*errY < undistortTolerance*undistortTolerance {
			break
		}

		r2 := xu*xu + yu*yu
		r4 := r2 * r2
		radial := 1.0 + bc.RadialK1*r2 + bc.RadialK2*r4 + bc.RadialK3*r4*r2
		dRadial := bc.RadialK1 + 2.0*bc.RadialK2*r2 + 3.0*bc.RadialK3*r4
		dRadialDxu := 2.0 * xu * dRadial
		dRadialDyu := 2.0 * yu * dRadial

		dxdDxu := radial + xu*dRadialDxu + 2.0*bc.TangentialP1*yu + 6.0*bc.TangentialP2*xu
		dxdDyu := xu*dRadialDyu + 2.0*bc.TangentialP1*xu + 2.0*bc.TangentialP2*yu
		dydDxu := yu*dRadialDxu + 2.0*bc.TangentialP2*yu + 2.0*bc.TangentialP1*xu
		dydDyu := radial + yu*dRadialDyu + 2.0*bc.TangentialP2*xu + 6.0*bc.TangentialP1*yu

		det := dxdDxu*dydDyu - dxdDyu*dydDxu
		if det == 0 {
			break
		}
		xu -= (dydDyu*errX - dxdDyu*errY) / det
		yu -= (-dydDxu*errX + dxdDxu*errY) / det
	}
	return xu, yu
}
