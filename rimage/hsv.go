package rimage

import (
	"image"

	"github.com/lucasb-eyer/go-colorful"
)

// HSVImage holds the hue (degrees), saturation and value planes of an image, row major.
type HSVImage struct {
	Width, Height int
	H, S, V       []float64
}

// ConvertToHSV converts img to HSV planes. The result has a zero origin.
func ConvertToHSV(img image.Image) *HSVImage {
	nrgba := ConvertToNRGBA(img)
	w, h := nrgba.Rect.Dx(), nrgba.Rect.Dy()
	out := &HSVImage{
		Width:  w,
		Height: h,
		H:      make([]float64, w*h),
		S:      make([]float64, w*h),
		V:      make([]float64, w*h),
	}
	for y := 0; y < h; y++ {
		row := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+4*w]
		for x := 0; x < w; x++ {
			c := colorful.Color{
				R: float64(row[4*x]) / 255,
				G: float64(row[4*x+1]) / 255,
				B: float64(row[4*x+2]) / 255,
			}
			k := y*w + x
			out.H[k], out.S[k], out.V[k] = c.Hsv()
		}
	}
	return out
}

// At returns the HSV triple at (x, y).
func (hsv *HSVImage) At(x, y int) (float64, float64, float64) {
	k := y*hsv.Width + x
	return hsv.H[k], hsv.S[k], hsv.V[k]
}

// Bounds returns the image rectangle.
func (hsv *HSVImage) Bounds() image.Rectangle {
	return image.Rect(0, 0, hsv.Width, hsv.Height)
}
