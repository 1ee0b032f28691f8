// Package chessboard finds the inner corners of a printed checkerboard: saddle points of the image Hessian
// are fitted to the expected lattice and then refined to sub-pixel accuracy.
package chessboard

import (
	"image"
	"image/color"

	"github.com/fogleman/gg"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"github.com/xmaslights/ledmap/rimage"
)

// ErrNotFound is returned when an image does not show the whole board.
var ErrNotFound = errors.New("chessboard not found")

// DetectionConfiguration stores the parameters necessary for chessboard detection in an image.
// Cols and Rows count inner corners, not squares.
type DetectionConfiguration struct {
	Cols   int                 `json:"cols"`
	Rows   int                 `json:"rows"`
	Saddle SaddleConfiguration `json:"saddle"`
	SubPix SubPixConfiguration `json:"subpix"`
}

// NewDetectionConfiguration returns the default configuration for a cols x rows inner corner board.
func NewDetectionConfiguration(cols, rows int) DetectionConfiguration {
	return DetectionConfiguration{
		Cols:   cols,
		Rows:   rows,
		Saddle: DefaultSaddleConf,
		SubPix: DefaultSubPixConf,
	}
}

// FindChessboard returns the refined inner corners in row major order, or an error wrapping ErrNotFound.
func FindChessboard(img image.Image, cfg DetectionConfiguration) ([]r2.Point, error) {
	if cfg.Cols < 2 || cfg.Rows < 2 {
		return nil, errors.Errorf("board must have at least 2x2 inner corners, got %dx%d", cfg.Cols, cfg.Rows)
	}
	gray := rimage.ConvertColorImageToLuminanceFloat(img)
	_, saddles := GetSaddleMapPoints(gray, &cfg.Saddle)
	pts := make([]r2.Point, len(saddles))
	for i, s := range saddles {
		pts[i] = r2.Point{X: float64(s.Point.X), Y: float64(s.Point.Y)}
	}
	corners, err := fitGrid(pts, cfg.Cols, cfg.Rows)
	if err != nil {
		return nil, errors.Wrap(ErrNotFound, err.Error())
	}
	return RefineCorners(gray, corners, cfg.SubPix), nil
}

// DrawChessboard draws the detected corners over img, joined in row major order.
func DrawChessboard(img image.Image, corners []r2.Point) image.Image {
	dc := gg.NewContextForImage(img)
	dc.SetLineWidth(1)
	dc.SetColor(color.RGBA{0, 255, 0, 255})
	for i := 1; i < len(corners); i++ {
		dc.DrawLine(corners[i-1].X, corners[i-1].Y, corners[i].X, corners[i].Y)
	}
	dc.Stroke()
	for i, c := range corners {
		col := color.Color(color.RGBA{255, 0, 0, 255})
		if i == 0 {
			col = color.RGBA{0, 0, 255, 255}
		}
		rimage.DrawMarker(dc, c.X, c.Y, 2.5, col)
	}
	return dc.Image()
}
