package rimage

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Kernel is a convolution kernel stored row major.
type Kernel struct {
	Content [][]float64
	Width   int
	Height  int
}

// Size returns the kernel dimensions.
func (k *Kernel) Size() image.Point {
	return image.Point{k.Width, k.Height}
}

// At returns the coefficient at column x, row y.
func (k *Kernel) At(x, y int) float64 {
	return k.Content[y][x]
}

// GetSobelX returns the Kernel corresponding to the Sobel kernel in the x direction.
func GetSobelX() Kernel {
	return Kernel{[][]float64{
		{-1, 0, 1},
		{-2, 0, 2},
		{-1, 0, 1},
	},
		3,
		3,
	}
}

// GetSobelY returns the Kernel corresponding to the Sobel kernel in the y direction.
func GetSobelY() Kernel {
	return Kernel{[][]float64{
		{-1, -2, -1},
		{0, 0, 0},
		{1, 2, 1},
	},
		3,
		3,
	}
}

// ConvertColorImageToLuminanceFloat returns the luminance of img in [0, 255] as a (rows=height, cols=width)
// matrix.
func ConvertColorImageToLuminanceFloat(img image.Image) *mat.Dense {
	gray := imaging.Grayscale(img)
	w, h := gray.Rect.Dx(), gray.Rect.Dy()
	out := mat.NewDense(h, w, nil)
	raw := out.RawMatrix()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			raw.Data[y*raw.Stride+x] = float64(gray.Pix[y*gray.Stride+4*x])
		}
	}
	return out
}

// ConvolveGrayFloat64 convolves m with the kernel, anchored on the kernel center. Borders are replicated
// and there is no clamping of the output.
func ConvolveGrayFloat64(m *mat.Dense, filter *Kernel) (*mat.Dense, error) {
	if filter.Width%2 == 0 || filter.Height%2 == 0 {
		return nil, errors.Errorf("kernel dimensions must be odd, got %dx%d", filter.Width, filter.Height)
	}
	h, w := m.Dims()
	result := mat.NewDense(h, w, nil)
	ax, ay := filter.Width/2, filter.Height/2
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sum := 0.
			for ky := 0; ky < filter.Height; ky++ {
				yy := clampIndex(y+ky-ay, h)
				for kx := 0; kx < filter.Width; kx++ {
					sum += m.At(yy, clampIndex(x+kx-ax, w)) * filter.At(kx, ky)
				}
			}
			result.Set(y, x, sum)
		}
	}
	return result, nil
}

// GaussianKernel1D returns a normalized 1D gaussian of radius ceil(3*sigma).
func GaussianKernel1D(sigma float64) []float64 {
	if sigma <= 0 {
		return []float64{1}
	}
	radius := int(math.Ceil(3 * sigma))
	kernel := make([]float64, 2*radius+1)
	sum := 0.
	for i := range kernel {
		d := float64(i - radius)
		kernel[i] = math.Exp(-0.5 * d * d / (sigma * sigma))
		sum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

// GaussianBlur blurs m with a separable gaussian, replicating borders.
func GaussianBlur(m *mat.Dense, sigma float64) *mat.Dense {
	kernel := GaussianKernel1D(sigma)
	if len(kernel) == 1 {
		return mat.DenseCopyOf(m)
	}
	radius := len(kernel) / 2
	h, w := m.Dims()
	tmp := mat.NewDense(h, w, nil)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sum := 0.
			for i, k := range kernel {
				sum += k * m.At(y, clampIndex(x+i-radius, w))
			}
			tmp.Set(y, x, sum)
		}
	}
	out := mat.NewDense(h, w, nil)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sum := 0.
			for i, k := range kernel {
				sum += k * tmp.At(clampIndex(y+i-radius, h), x)
			}
			out.Set(y, x, sum)
		}
	}
	return out
}

// CentralGradients returns the x and y central-difference derivatives of m.
func CentralGradients(m *mat.Dense) (*mat.Dense, *mat.Dense) {
	h, w := m.Dims()
	gx := mat.NewDense(h, w, nil)
	gy := mat.NewDense(h, w, nil)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			gx.Set(y, x, 0.5*(m.At(y, clampIndex(x+1, w))-m.At(y, clampIndex(x-1, w))))
			gy.Set(y, x, 0.5*(m.At(clampIndex(y+1, h), x)-m.At(clampIndex(y-1, h), x)))
		}
	}
	return gx, gy
}

// BilinearAt samples m at the sub-pixel location (x, y), replicating borders.
func BilinearAt(m *mat.Dense, x, y float64) float64 {
	h, w := m.Dims()
	x0, y0 := int(math.Floor(x)), int(math.Floor(y))
	fx, fy := x-float64(x0), y-float64(y0)
	v00 := m.At(clampIndex(y0, h), clampIndex(x0, w))
	v01 := m.At(clampIndex(y0, h), clampIndex(x0+1, w))
	v10 := m.At(clampIndex(y0+1, h), clampIndex(x0, w))
	v11 := m.At(clampIndex(y0+1, h), clampIndex(x0+1, w))
	return (1-fy)*((1-fx)*v00+fx*v01) + fy*((1-fx)*v10+fx*v11)
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
