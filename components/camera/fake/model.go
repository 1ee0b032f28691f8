package fake

import (
	"gonum.org/v1/gonum/mat"

	"github.com/xmaslights/ledmap/rimage/transform"
)

// DefaultCameraModel is a 640x480 camera with a mildly barrel distorted lens, close to a typical webcam.
func DefaultCameraModel() *transform.CameraModel {
	k := mat.NewDense(3, 3, []float64{800, 0, 319.5, 0, 800, 239.5, 0, 0, 1})
	model, err := transform.NewCameraModel(k, []float64{-0.1, 0.02, 0, 0}, 640, 480)
	if err != nil {
		panic(err)
	}
	return model
}
