// Package lightstrip defines a string of individually addressable lights.
package lightstrip

import (
	"context"
	"image/color"

	"github.com/pkg/errors"
)

// Named colors used by the scanner.
var (
	Off  = color.NRGBA{A: 255}
	Red  = color.NRGBA{R: 255, A: 255}
	Blue = color.NRGBA{B: 255, A: 255}
)

// A Driver energizes lights by index. Setting a light leaves the others untouched.
type Driver interface {
	// Len is the number of addressable lights.
	Len() int
	Set(ctx context.Context, id int, c color.Color) error
	// Fill sets every light to c.
	Fill(ctx context.Context, c color.Color) error
	AllOff(ctx context.Context) error
	Close(ctx context.Context) error
}

// ToNRGBA converts c to an opaque non premultiplied color.
func ToNRGBA(c color.Color) color.NRGBA {
	n, _ := color.NRGBAModel.Convert(c).(color.NRGBA)
	n.A = 255
	return n
}

// IsOff reports whether c emits no light.
func IsOff(c color.Color) bool {
	n := ToNRGBA(c)
	return n.R == 0 && n.G == 0 && n.B == 0
}

// CheckID returns an error when id is not a light of a strip of length n.
func CheckID(id, n int) error {
	if id < 0 || id >= n {
		return errors.Errorf("light %d out of range [0, %d)", id, n)
	}
	return nil
}
