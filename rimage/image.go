// Package rimage contains the image primitives used by light localization and calibration:
// file IO, HSV conversion, luminance matrices, convolution, binary morphology and blob moments.
package rimage

import (
	"bytes"
	"image"
	"image/draw"

	"github.com/disintegration/imaging"
	_ "github.com/lmittmann/ppm" // register ppm
	"github.com/pkg/errors"
)

// ReadImageFromFile decodes the image at path, applying any EXIF orientation. Netpbm PPM frames,
// as written by most webcam grabbers, are read too.
func ReadImageFromFile(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read image %q", path)
	}
	return img, nil
}

// DecodeImage decodes an encoded image (PNG, JPEG, GIF, TIFF, BMP or PPM), applying any EXIF orientation.
func DecodeImage(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrap(err, "cannot decode image")
	}
	return img, nil
}

// WriteImageToFile encodes img to path; the format is taken from the file extension.
func WriteImageToFile(path string, img image.Image) error {
	if err := imaging.Save(img, path); err != nil {
		return errors.Wrapf(err, "cannot write image %q", path)
	}
	return nil
}

// ConvertToNRGBA returns img as a zero-origin *image.NRGBA, copying only when needed.
func ConvertToNRGBA(img image.Image) *image.NRGBA {
	if nrgba, ok := img.(*image.NRGBA); ok && nrgba.Bounds().Min == (image.Point{}) {
		return nrgba
	}
	return imaging.Clone(img)
}

// CloneToRGBA copies img into a new *image.RGBA that can be drawn on.
func CloneToRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}
