// Package transform holds the camera geometry: pinhole intrinsics, lens distortion, view poses,
// projection matrices, homographies and linear triangulation.
package transform

import (
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// CameraModel is a pinhole camera with Brown-Conrady lens distortion. A loaded model is read only and
// safe for concurrent use.
type CameraModel struct {
	*PinholeCameraIntrinsics `json:"intrinsic_parameters"`
	Distortion               *BrownConrady `json:"distortion"`
}

// NewCameraModel builds a model from a 3x3 camera matrix, distortion coefficients (k1, k2, p1, p2[, k3])
// and the resolution of the images it was calibrated on.
func NewCameraModel(k mat.Matrix, distCoeffs []float64, width, height int) (*CameraModel, error) {
	intrinsics, err := NewPinholeCameraIntrinsicsFromMatrix(k, width, height)
	if err != nil {
		return nil, err
	}
	dist, err := NewBrownConrady(distCoeffs)
	if err != nil {
		return nil, err
	}
	return &CameraModel{PinholeCameraIntrinsics: intrinsics, Distortion: dist}, nil
}

// CheckValid returns ErrCalibrationMissing when no intrinsics are loaded.
func (cm *CameraModel) CheckValid() error {
	if cm == nil {
		return NewCalibrationMissingError("camera model is nil")
	}
	return cm.PinholeCameraIntrinsics.CheckValid()
}

// Undistort maps a raw pixel to a distortion free, focal length normalized ray (x, y) with z = 1.
func (cm *CameraModel) Undistort(pixel r2.Point) (r2.Point, error) {
	if err := cm.CheckValid(); err != nil {
		return r2.Point{}, err
	}
	n := cm.PixelToNormalized(pixel)
	x, y := cm.Distortion.Undistort(n.X, n.Y)
	return r2.Point{X: x, Y: y}, nil
}

// UndistortPixel returns the pixel an ideal pinhole camera with the same K would have seen.
func (cm *CameraModel) UndistortPixel(pixel r2.Point) (r2.Point, error) {
	n, err := cm.Undistort(pixel)
	if err != nil {
		return r2.Point{}, err
	}
	return cm.NormalizedToPixel(n), nil
}

// Distort maps a normalized ray to the raw pixel it is imaged at.
func (cm *CameraModel) Distort(n r2.Point) (r2.Point, error) {
	if err := cm.CheckValid(); err != nil {
		return r2.Point{}, err
	}
	x, y := cm.Distortion.Distort(n.X, n.Y)
	return cm.NormalizedToPixel(r2.Point{X: x, Y: y}), nil
}

// ProjectCameraPoint projects a point in camera coordinates to a raw pixel. Points at or behind the
// camera center cannot be projected.
func (cm *CameraModel) ProjectCameraPoint(p r3.Vector) (r2.Point, error) {
	if p.Z <= 0 {
		return r2.Point{}, errors.Errorf("point %v is behind the camera", p)
	}
	return cm.Distort(r2.Point{X: p.X / p.Z, Y: p.Y / p.Z})
}

// Project projects a world point seen from pose to a raw pixel.
func (cm *CameraModel) Project(pose *ViewPose, world r3.Vector) (r2.Point, error) {
	return cm.ProjectCameraPoint(pose.Apply(world))
}

// ProjectionMatrix returns K[R|t] for the given pose.
func (cm *CameraModel) ProjectionMatrix(pose *ViewPose) (*mat.Dense, error) {
	if err := cm.CheckValid(); err != nil {
		return nil, err
	}
	return pose.ProjectionMatrix(cm.GetCameraMatrix()), nil
}
