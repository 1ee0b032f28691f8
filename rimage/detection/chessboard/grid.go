package chessboard

import (
	"math"
	"sort"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"github.com/xmaslights/ledmap/rimage/transform"
)

// matchRadiusFraction is the share of the local grid spacing within which a saddle is accepted for a
// predicted corner.
const matchRadiusFraction = 0.4

// convexHull returns the hull of pts in counter clockwise order (image coordinates), without collinear points.
func convexHull(pts []r2.Point) []r2.Point {
	if len(pts) < 3 {
		return append([]r2.Point(nil), pts...)
	}
	sorted := append([]r2.Point(nil), pts...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].X == sorted[j].X {
			return sorted[i].Y < sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})
	cross := func(o, a, b r2.Point) float64 {
		return a.Sub(o).Cross(b.Sub(o))
	}
	hull := make([]r2.Point, 0, 2*len(sorted))
	for _, p := range sorted {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(sorted) - 2; i >= 0; i-- {
		p := sorted[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull[:len(hull)-1]
}

func quadArea(a, b, c, d r2.Point) float64 {
	return 0.5 * math.Abs(a.Sub(c).Cross(b.Sub(d)))
}

// maxAreaQuad picks the four hull vertices spanning the largest quadrilateral, in hull order.
func maxAreaQuad(hull []r2.Point) ([4]r2.Point, bool) {
	var best [4]r2.Point
	if len(hull) < 4 {
		return best, false
	}
	bestArea := 0.
	n := len(hull)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			for k := j + 1; k < n; k++ {
				for l := k + 1; l < n; l++ {
					if a := quadArea(hull[i], hull[j], hull[k], hull[l]); a > bestArea {
						bestArea = a
						best = [4]r2.Point{hull[i], hull[j], hull[k], hull[l]}
					}
				}
			}
		}
	}
	return best, bestArea > 0
}

// gridFit is the assignment of saddles to the ideal cols x rows lattice.
type gridFit struct {
	corners []r2.Point // row major, len cols*rows
	matched int
}

// idealGrid returns the lattice coordinates (c, r) in row major order.
func idealGrid(cols, rows int) []r2.Point {
	out := make([]r2.Point, 0, cols*rows)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			out = append(out, r2.Point{X: float64(c), Y: float64(r)})
		}
	}
	return out
}

// matchGrid predicts every lattice point through h and assigns the nearest unused saddle within the match radius.
func matchGrid(h *transform.Homography, cols, rows int, saddles []r2.Point) gridFit {
	ideal := idealGrid(cols, rows)
	fit := gridFit{corners: make([]r2.Point, len(ideal))}
	used := make([]bool, len(saddles))
	for i, g := range ideal {
		pred := h.Apply(g)
		// spacing from the predicted neighbours, whichever exist
		spacing := math.Inf(1)
		for _, d := range []r2.Point{{X: 1}, {X: -1}, {Y: 1}, {Y: -1}} {
			n := g.Add(d)
			if n.X < 0 || n.Y < 0 || n.X >= float64(cols) || n.Y >= float64(rows) {
				continue
			}
			spacing = math.Min(spacing, h.Apply(n).Sub(pred).Norm())
		}
		radius := matchRadiusFraction * spacing
		bestIdx, bestDist := -1, radius
		for k, s := range saddles {
			if used[k] {
				continue
			}
			if d := s.Sub(pred).Norm(); d < bestDist {
				bestIdx, bestDist = k, d
			}
		}
		if bestIdx < 0 {
			fit.corners[i] = r2.Point{X: math.NaN(), Y: math.NaN()}
			continue
		}
		used[bestIdx] = true
		fit.corners[i] = saddles[bestIdx]
		fit.matched++
	}
	return fit
}

// refit estimates a homography from the matched lattice points only.
func (fit gridFit) refit(cols, rows int) (*transform.Homography, error) {
	ideal := idealGrid(cols, rows)
	var src, dst []r2.Point
	for i, c := range fit.corners {
		if math.IsNaN(c.X) {
			continue
		}
		src = append(src, ideal[i])
		dst = append(dst, c)
	}
	return transform.EstimateHomography(src, dst)
}

// fitGrid finds the cols x rows lattice among the saddle points. The outer lattice corners are taken from
// the largest quadrilateral inscribed in the convex hull of the saddles; both assignments of the lattice
// sides to the quadrilateral sides are tried.
func fitGrid(saddles []r2.Point, cols, rows int) ([]r2.Point, error) {
	n := cols * rows
	if len(saddles) < n {
		return nil, errors.Errorf("found %d saddle points, need %d", len(saddles), n)
	}
	quad, ok := maxAreaQuad(convexHull(saddles))
	if !ok {
		return nil, errors.New("saddle points are degenerate")
	}
	c1, r1 := float64(cols-1), float64(rows-1)
	labelings := [][]r2.Point{
		{{X: 0, Y: 0}, {X: c1, Y: 0}, {X: c1, Y: r1}, {X: 0, Y: r1}},
		{{X: 0, Y: 0}, {X: 0, Y: r1}, {X: c1, Y: r1}, {X: c1, Y: 0}},
	}
	var best gridFit
	for _, ideal := range labelings {
		h, err := transform.EstimateHomography(ideal, quad[:])
		if err != nil {
			continue
		}
		fit := matchGrid(h, cols, rows, saddles)
		// lens distortion bends the lattice away from the corner homography; refit on what matched and retry
		for pass := 0; pass < 2 && fit.matched < n && fit.matched >= 4; pass++ {
			refined, err := fit.refit(cols, rows)
			if err != nil {
				break
			}
			next := matchGrid(refined, cols, rows, saddles)
			if next.matched <= fit.matched {
				break
			}
			fit = next
		}
		if fit.matched > best.matched {
			best = fit
		}
	}
	if best.matched < n {
		return nil, errors.Errorf("matched %d of %d chessboard corners", best.matched, n)
	}
	return best.corners, nil
}
