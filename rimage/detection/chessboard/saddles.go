package chessboard

import (
	"image"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/xmaslights/ledmap/rimage"
)

// SaddleConfiguration stores the parameters to process the Hessian determinant image into a relevant saddle points map.
type SaddleConfiguration struct {
	BlurSigma         float64 `json:"blur_sigma"`         // gaussian blur applied before differentiation
	RelativeThreshold float64 `json:"relative_threshold"` // fraction of the strongest response a saddle must reach
	MinScore          float64 `json:"min_score"`          // absolute floor so that flat images yield nothing
	NMSWindowSize     int     `json:"win_size"`           // half size of the non-maximum suppression window
}

// DefaultSaddleConf stores the default parameters for saddle detection.
// An X junction answers about four times stronger than the L corners on the board border, so a
// relative threshold of 0.4 keeps only the inner corners.
var DefaultSaddleConf = SaddleConfiguration{
	BlurSigma:         1.5,
	RelativeThreshold: 0.4,
	MinScore:          20,
	NMSWindowSize:     5,
}

// Saddle is a candidate X junction.
type Saddle struct {
	Point image.Point
	Score float64
}

// computePixelWiseHessianDeterminant computes hessian components for each pixel and returns a *mat.Dense containing
// the value of the determinant of the Hessian for each pixel.
// The sign and value of the determinant of the Hessian gives location of saddle points.
func computePixelWiseHessianDeterminant(img *mat.Dense) *mat.Dense {
	nRows, nCols := img.Dims()
	gX, gY := rimage.CentralGradients(img)
	gXX, gXY := rimage.CentralGradients(gX)
	_, gYY := rimage.CentralGradients(gY)
	m1 := mat.NewDense(nRows, nCols, nil)
	m2 := mat.NewDense(nRows, nCols, nil)
	out := mat.NewDense(nRows, nCols, nil)
	m1.MulElem(gXX, gYY)
	m2.MulElem(gXY, gXY)
	out.Sub(m1, m2)
	return out
}

// GetSaddleMap returns the negated Hessian determinant of the blurred image, clamped at zero, so that saddle
// points are the positive peaks.
func GetSaddleMap(img *mat.Dense, conf *SaddleConfiguration) *mat.Dense {
	blurred := rimage.GaussianBlur(img, conf.BlurSigma)
	saddleMap := computePixelWiseHessianDeterminant(blurred)
	saddleMap.Apply(func(_, _ int, v float64) float64 {
		if v > 0 {
			return 0
		}
		return -v
	}, saddleMap)
	return saddleMap
}

// PruneSaddle zeroes every score below max(MinScore, RelativeThreshold * max score).
func PruneSaddle(s *mat.Dense, cfg *SaddleConfiguration) *mat.Dense {
	thresh := cfg.RelativeThreshold * mat.Max(s)
	if thresh < cfg.MinScore {
		thresh = cfg.MinScore
	}
	pruned := mat.DenseCopyOf(s)
	pruned.Apply(func(_, _ int, v float64) float64 {
		if v < thresh {
			return 0
		}
		return v
	}, pruned)
	return pruned
}

// NonMaxSuppression keeps the non-zero pixels that are the maximum of their (2*winSize+1) window. Plateaus keep
// their first pixel in raster order.
func NonMaxSuppression(img *mat.Dense, winSize int) []Saddle {
	h, w := img.Dims()
	var out []Saddle
	for i := 0; i < h; i++ {
		for j := 0; j < w; j++ {
			v := img.At(i, j)
			if v == 0 {
				continue
			}
			isMax := true
			for ii := max(0, i-winSize); ii < min(h, i+winSize+1) && isMax; ii++ {
				for jj := max(0, j-winSize); jj < min(w, j+winSize+1); jj++ {
					n := img.At(ii, jj)
					before := ii < i || (ii == i && jj < j)
					if n > v || (before && n == v) {
						isMax = false
						break
					}
				}
			}
			if isMax {
				out = append(out, Saddle{Point: image.Point{j, i}, Score: v})
			}
		}
	}
	return out
}

// GetSaddleMapPoints gets a saddle point presence map and the relevant saddle points, strongest first.
func GetSaddleMapPoints(img *mat.Dense, conf *SaddleConfiguration) (*mat.Dense, []Saddle) {
	saddleMap := PruneSaddle(GetSaddleMap(img, conf), conf)
	saddles := NonMaxSuppression(saddleMap, conf.NMSWindowSize)
	sort.SliceStable(saddles, func(a, b int) bool { return saddles[a].Score > saddles[b].Score })
	return saddleMap, saddles
}
