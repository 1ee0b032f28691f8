package rimage

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

func checkStructuringSize(size int) error {
	if size < 1 || size%2 == 0 {
		return errors.Errorf("structuring element size must be a positive odd number, got %d", size)
	}
	return nil
}

// rankFilterSquare applies a separable min (erode) or max (dilate) over a size x size square.
// Out of bounds pixels are ignored.
func rankFilterSquare(img *mat.Dense, size int, pick func(a, b float64) float64, init float64) *mat.Dense {
	h, w := img.Dims()
	r := size / 2
	tmp := mat.NewDense(h, w, nil)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := init
			for xx := max(0, x-r); xx <= min(w-1, x+r); xx++ {
				v = pick(v, img.At(y, xx))
			}
			tmp.Set(y, x, v)
		}
	}
	out := mat.NewDense(h, w, nil)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := init
			for yy := max(0, y-r); yy <= min(h-1, y+r); yy++ {
				v = pick(v, tmp.At(yy, x))
			}
			out.Set(y, x, v)
		}
	}
	return out
}

// ErodeSquare performs an erosion with a square structuring element of the given odd size.
func ErodeSquare(img *mat.Dense, size int) (*mat.Dense, error) {
	if err := checkStructuringSize(size); err != nil {
		return nil, err
	}
	return rankFilterSquare(img, size, math.Min, math.Inf(1)), nil
}

// DilateSquare performs a dilation with a square structuring element of the given odd size.
func DilateSquare(img *mat.Dense, size int) (*mat.Dense, error) {
	if err := checkStructuringSize(size); err != nil {
		return nil, err
	}
	return rankFilterSquare(img, size, math.Max, math.Inf(-1)), nil
}

// OpenSquare is an erosion followed by a dilation; it removes specks smaller than the element.
func OpenSquare(img *mat.Dense, size int) (*mat.Dense, error) {
	eroded, err := ErodeSquare(img, size)
	if err != nil {
		return nil, err
	}
	return DilateSquare(eroded, size)
}

// CloseSquare is a dilation followed by an erosion; it fills holes smaller than the element.
func CloseSquare(img *mat.Dense, size int) (*mat.Dense, error) {
	dilated, err := DilateSquare(img, size)
	if err != nil {
		return nil, err
	}
	return ErodeSquare(dilated, size)
}
