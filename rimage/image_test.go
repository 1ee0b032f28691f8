package rimage

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/lmittmann/ppm"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"
)

func TestImageFileRoundTrip(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 3))
	img.Set(1, 2, color.NRGBA{10, 200, 30, 255})
	path := filepath.Join(t.TempDir(), "frame.png")
	test.That(t, WriteImageToFile(path, img), test.ShouldBeNil)

	back, err := ReadImageFromFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, back.Bounds().Dx(), test.ShouldEqual, 4)
	r, g, b, _ := back.At(1, 2).RGBA()
	test.That(t, []uint32{r >> 8, g >> 8, b >> 8}, test.ShouldResemble, []uint32{10, 200, 30})

	_, err = ReadImageFromFile(filepath.Join(t.TempDir(), "missing.png"))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestReadPPMFrame(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 5, 2))
	img.Set(3, 1, color.RGBA{0, 0, 250, 255})
	path := filepath.Join(t.TempDir(), "grab.ppm")
	f, err := os.Create(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ppm.Encode(f, img), test.ShouldBeNil)
	test.That(t, f.Close(), test.ShouldBeNil)

	back, err := ReadImageFromFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, back.Bounds().Dx(), test.ShouldEqual, 5)
	_, _, b, _ := back.At(3, 1).RGBA()
	test.That(t, b>>8, test.ShouldEqual, 250)

	data, err := os.ReadFile(path)
	test.That(t, err, test.ShouldBeNil)
	decoded, err := DecodeImage(data)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, decoded.Bounds().Dy(), test.ShouldEqual, 2)
}

func TestConvertToHSV(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.RGBA{0, 0, 255, 255})
	img.Set(1, 0, color.RGBA{255, 0, 0, 255})
	hsv := ConvertToHSV(img)
	h, s, v := hsv.At(0, 0)
	test.That(t, h, test.ShouldAlmostEqual, 240)
	test.That(t, s, test.ShouldAlmostEqual, 1)
	test.That(t, v, test.ShouldAlmostEqual, 1)
	h, _, _ = hsv.At(1, 0)
	test.That(t, h, test.ShouldAlmostEqual, 0)
	test.That(t, hsv.Bounds(), test.ShouldResemble, image.Rect(0, 0, 2, 1))
}

func TestColor(t *testing.T) {
	c := NewColor(0, 0, 255)
	test.That(t, c.Hex(), test.ShouldEqual, "#0000ff")
	test.That(t, c.H, test.ShouldAlmostEqual, 240)

	parsed, err := NewColorFromHex("#ff0000")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, parsed.R, test.ShouldEqual, uint8(255))
	_, err = NewColorFromHex("nope")
	test.That(t, err, test.ShouldNotBeNil)

	fromHSV := NewColorFromHSV(120, 1, 1)
	test.That(t, fromHSV.G, test.ShouldEqual, uint8(255))
	test.That(t, NewColorFromColor(color.NRGBA{0, 0, 255, 255}).Hex(), test.ShouldEqual, "#0000ff")
}

func TestGaussianBlurPreservesMass(t *testing.T) {
	m := mat.NewDense(15, 15, nil)
	m.Set(7, 7, 100)
	blurred := GaussianBlur(m, 1.5)
	test.That(t, mat.Sum(blurred), test.ShouldAlmostEqual, 100, 1e-9)
	test.That(t, blurred.At(7, 7), test.ShouldBeGreaterThan, blurred.At(7, 9))

	k := GaussianKernel1D(1)
	test.That(t, len(k), test.ShouldEqual, 7)
	test.That(t, GaussianKernel1D(0), test.ShouldResemble, []float64{1})
}

func TestSobelAndGradients(t *testing.T) {
	// horizontal ramp: value = 2x
	m := mat.NewDense(5, 5, nil)
	for y := 0; y < 5; y++ {
		for x := 0; x < 5; x++ {
			m.Set(y, x, float64(2*x))
		}
	}
	gx, gy := CentralGradients(m)
	test.That(t, gx.At(2, 2), test.ShouldAlmostEqual, 2)
	test.That(t, gy.At(2, 2), test.ShouldAlmostEqual, 0)

	sobel := GetSobelX()
	conv, err := ConvolveGrayFloat64(m, &sobel)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, conv.At(2, 2), test.ShouldNotEqual, 0)

	bad := Kernel{Content: [][]float64{{1, 1}}, Width: 2, Height: 1}
	_, err = ConvolveGrayFloat64(m, &bad)
	test.That(t, err, test.ShouldNotBeNil)

	test.That(t, BilinearAt(m, 1.5, 2), test.ShouldAlmostEqual, 3)
}

func TestLuminance(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 3, 2))
	img.SetGray(2, 1, color.Gray{Y: 200})
	lum := ConvertColorImageToLuminanceFloat(img)
	r, c := lum.Dims()
	test.That(t, r, test.ShouldEqual, 2)
	test.That(t, c, test.ShouldEqual, 3)
	test.That(t, lum.At(1, 2), test.ShouldAlmostEqual, 200, 1)
}
