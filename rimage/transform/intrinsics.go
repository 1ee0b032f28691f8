package transform

import (
	"fmt"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ErrCalibrationMissing is returned when a camera model is used before its intrinsics are loaded.
var ErrCalibrationMissing = errors.New("camera intrinsic parameters are not available")

// NewCalibrationMissingError wraps ErrCalibrationMissing with a reason.
func NewCalibrationMissingError(msg string) error {
	return errors.Wrap(ErrCalibrationMissing, msg)
}

// PinholeCameraIntrinsics holds the parameters necessary to do a perspective projection of a 3D scene to the 2D plane.
type PinholeCameraIntrinsics struct {
	Width  int     `json:"width_px"`
	Height int     `json:"height_px"`
	Fx     float64 `json:"fx"`
	Fy     float64 `json:"fy"`
	Ppx    float64 `json:"ppx"`
	Ppy    float64 `json:"ppy"`
}

// NewPinholeCameraIntrinsicsFromMatrix reads fx, fy, ppx, ppy out of a 3x3 camera matrix.
func NewPinholeCameraIntrinsicsFromMatrix(k mat.Matrix, width, height int) (*PinholeCameraIntrinsics, error) {
	if r, c := k.Dims(); r != 3 || c != 3 {
		return nil, errors.Errorf("camera matrix must be 3x3, got %dx%d", r, c)
	}
	params := &PinholeCameraIntrinsics{
		Width:  width,
		Height: height,
		Fx:     k.At(0, 0),
		Fy:     k.At(1, 1),
		Ppx:    k.At(0, 2),
		Ppy:    k.At(1, 2),
	}
	if err := params.CheckValid(); err != nil {
		return nil, err
	}
	return params, nil
}

// CheckValid checks that focal lengths are positive and that the principal point lies within the image.
func (params *PinholeCameraIntrinsics) CheckValid() error {
	if params == nil {
		return NewCalibrationMissingError("intrinsics do not exist")
	}
	if params.Width <= 0 || params.Height <= 0 {
		return NewCalibrationMissingError(fmt.Sprintf("invalid size (%#v, %#v)", params.Width, params.Height))
	}
	if params.Fx <= 0 {
		return errors.Errorf("invalid focal length Fx = %#v", params.Fx)
	}
	if params.Fy <= 0 {
		return errors.Errorf("invalid focal length Fy = %#v", params.Fy)
	}
	if params.Ppx < 0 || params.Ppx > float64(params.Width) {
		return errors.Errorf("invalid principal X point Ppx = %#v for width %d", params.Ppx, params.Width)
	}
	if params.Ppy < 0 || params.Ppy > float64(params.Height) {
		return errors.Errorf("invalid principal Y point Ppy = %#v for height %d", params.Ppy, params.Height)
	}
	return nil
}

// GetCameraMatrix creates a new camera matrix and returns it.
// Camera matrix:
// [[fx 0 ppx],
//
//	[0 fy ppy],
//	[0 0  1]]
func (params *PinholeCameraIntrinsics) GetCameraMatrix() *mat.Dense {
	if params == nil {
		return nil
	}
	cameraMatrix := mat.NewDense(3, 3, nil)
	cameraMatrix.Set(0, 0, params.Fx)
	cameraMatrix.Set(1, 1, params.Fy)
	cameraMatrix.Set(0, 2, params.Ppx)
	cameraMatrix.Set(1, 2, params.Ppy)
	cameraMatrix.Set(2, 2, 1)
	return cameraMatrix
}

// PixelToNormalized removes the focal length and principal point from a pixel.
func (params *PinholeCameraIntrinsics) PixelToNormalized(px r2.Point) r2.Point {
	return r2.Point{X: (px.X - params.Ppx) / params.Fx, Y: (px.Y - params.Ppy) / params.Fy}
}

// NormalizedToPixel applies the focal length and principal point to a normalized image point.
func (params *PinholeCameraIntrinsics) NormalizedToPixel(n r2.Point) r2.Point {
	return r2.Point{X: n.X*params.Fx + params.Ppx, Y: n.Y*params.Fy + params.Ppy}
}
