package chessboard

import (
	"errors"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"

	"github.com/xmaslights/ledmap/rimage/transform"
)

const testSquare = 30.

// renderBoard draws a (cols+1) x (rows+1) square board whose board plane coordinates (in pixels of testSquare
// per square) map to the image through h, averaging boardSamples x boardSamples samples per pixel.
func renderBoard(t *testing.T, w, h int, cols, rows int, hom *transform.Homography) *image.Gray {
	t.Helper()
	inv, err := hom.Inverse()
	if err != nil {
		t.Fatal(err)
	}
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sum := 0.
			for sy := 0; sy < boardSamples; sy++ {
				for sx := 0; sx < boardSamples; sx++ {
					ox := (float64(sx) + 0.5) / boardSamples
					oy := (float64(sy) + 0.5) / boardSamples
					b := inv.Apply(r2.Point{X: float64(x) + ox - 0.5, Y: float64(y) + oy - 0.5})
					sum += boardShade(b, cols, rows)
				}
			}
			img.SetGray(x, y, color.Gray{Y: uint8(math.Round(sum / (boardSamples * boardSamples)))})
		}
	}
	return img
}

const boardSamples = 8

// boardShade is the gray level at board plane point b.
func boardShade(b r2.Point, cols, rows int) float64 {
	i, j := math.Floor(b.X/testSquare), math.Floor(b.Y/testSquare)
	switch {
	case i < -1 || j < -1 || i > float64(cols+1) || j > float64(rows+1):
		return 128
	case i < 0 || j < 0 || i > float64(cols) || j > float64(rows):
		return 230
	case int(i+j)%2 == 0:
		return 30
	default:
		return 230
	}
}

func truthCorners(hom *transform.Homography, cols, rows int) []r2.Point {
	var out []r2.Point
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			out = append(out, hom.Apply(r2.Point{X: float64(c+1) * testSquare, Y: float64(r+1) * testSquare}))
		}
	}
	return out
}

// nearestError is the worst distance from each truth corner to its closest detection.
func nearestError(truth, got []r2.Point) float64 {
	worst := 0.
	for _, tr := range truth {
		best := math.Inf(1)
		for _, g := range got {
			best = math.Min(best, g.Sub(tr).Norm())
		}
		worst = math.Max(worst, best)
	}
	return worst
}

func TestFindChessboardFrontal(t *testing.T) {
	hom, err := transform.NewHomography([]float64{1, 0, 100.3, 0, 1, 80.6, 0, 0, 1})
	test.That(t, err, test.ShouldBeNil)
	img := renderBoard(t, 480, 360, 9, 6, hom)

	corners, err := FindChessboard(img, NewDetectionConfiguration(9, 6))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(corners), test.ShouldEqual, 54)
	test.That(t, nearestError(truthCorners(hom, 9, 6), corners), test.ShouldBeLessThan, 0.15)

	// consecutive corners in a row are one square apart
	test.That(t, corners[1].Sub(corners[0]).Norm(), test.ShouldAlmostEqual, testSquare, 0.3)
}

func TestFindChessboardPerspective(t *testing.T) {
	hom, err := transform.NewHomography([]float64{0.95, 0.12, 90, -0.08, 0.9, 70, 2e-4, -1.5e-4, 1})
	test.That(t, err, test.ShouldBeNil)
	img := renderBoard(t, 480, 360, 9, 6, hom)

	corners, err := FindChessboard(img, NewDetectionConfiguration(9, 6))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(corners), test.ShouldEqual, 54)
	test.That(t, nearestError(truthCorners(hom, 9, 6), corners), test.ShouldBeLessThan, 0.2)
}

func TestFindChessboardMissing(t *testing.T) {
	blank := image.NewGray(image.Rect(0, 0, 200, 150))
	for i := range blank.Pix {
		blank.Pix[i] = 128
	}
	_, err := FindChessboard(blank, NewDetectionConfiguration(9, 6))
	test.That(t, errors.Is(err, ErrNotFound), test.ShouldBeTrue)

	// board pushed half out of frame
	hom, err := transform.NewHomography([]float64{1, 0, 250, 0, 1, 60, 0, 0, 1})
	test.That(t, err, test.ShouldBeNil)
	img := renderBoard(t, 400, 300, 9, 6, hom)
	_, err = FindChessboard(img, NewDetectionConfiguration(9, 6))
	test.That(t, errors.Is(err, ErrNotFound), test.ShouldBeTrue)

	_, err = FindChessboard(img, NewDetectionConfiguration(1, 6))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestConvexHullAndQuad(t *testing.T) {
	pts := []r2.Point{{X: 0, Y: 0}, {X: 4, Y: 0}, {X: 4, Y: 3}, {X: 0, Y: 3}, {X: 2, Y: 1}, {X: 2, Y: 0}}
	hull := convexHull(pts)
	test.That(t, len(hull), test.ShouldEqual, 4)
	quad, ok := maxAreaQuad(hull)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, quadArea(quad[0], quad[1], quad[2], quad[3]), test.ShouldAlmostEqual, 12)

	_, ok = maxAreaQuad(hull[:3])
	test.That(t, ok, test.ShouldBeFalse)
}

func TestNonMaxSuppression(t *testing.T) {
	h := 40
	m := renderPeaks(h)
	saddles := NonMaxSuppression(m, 5)
	test.That(t, len(saddles), test.ShouldEqual, 2)
	test.That(t, saddles[0].Point, test.ShouldResemble, image.Point{10, 12})
	test.That(t, saddles[1].Point, test.ShouldResemble, image.Point{30, 25})
}

// renderPeaks returns an h x h map with two gaussian peaks and a plateau of equal maxima next to one of them.
func renderPeaks(h int) *mat.Dense {
	m := mat.NewDense(h, h, nil)
	for y := 0; y < h; y++ {
		for x := 0; x < h; x++ {
			d1 := float64((x-10)*(x-10) + (y-12)*(y-12))
			d2 := float64((x-30)*(x-30) + (y-25)*(y-25))
			m.Set(y, x, 40*math.Exp(-d1/8)+30*math.Exp(-d2/8))
		}
	}
	m.Set(25, 31, m.At(25, 30))
	return m
}
