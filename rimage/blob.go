package rimage

import (
	"image"

	"gonum.org/v1/gonum/mat"
)

// Blob is an 8-connected region of non-zero mask pixels together with its area moments.
type Blob struct {
	Label  int
	Area   int
	Bounds image.Rectangle
	// raw area moments; pixel (x, y) contributes x to M10 and y to M01.
	M00, M10, M01 float64
}

// Centroid returns (M10/M00, M01/M00). ok is false when the blob has no mass.
func (b Blob) Centroid() (cx, cy float64, ok bool) {
	if b.M00 == 0 {
		return 0, 0, false
	}
	return b.M10 / b.M00, b.M01 / b.M00, true
}

// ConnectedComponents labels the non-zero pixels of mask into 8-connected blobs, in raster order of
// their first pixel. The returned label image holds label+1 for every foreground pixel and 0 elsewhere.
func ConnectedComponents(mask *mat.Dense) ([]Blob, []int) {
	h, w := mask.Dims()
	labels := make([]int, w*h)
	var blobs []Blob
	stack := make([]int, 0, 64)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if mask.At(y, x) == 0 || labels[y*w+x] != 0 {
				continue
			}
			blob := Blob{Label: len(blobs), Bounds: image.Rect(x, y, x+1, y+1)}
			id := blob.Label + 1
			labels[y*w+x] = id
			stack = append(stack[:0], y*w+x)
			for len(stack) > 0 {
				k := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				px, py := k%w, k/w
				blob.Area++
				blob.M00++
				blob.M10 += float64(px)
				blob.M01 += float64(py)
				blob.Bounds = blob.Bounds.Union(image.Rect(px, py, px+1, py+1))
				for dy := -1; dy <= 1; dy++ {
					ny := py + dy
					if ny < 0 || ny >= h {
						continue
					}
					for dx := -1; dx <= 1; dx++ {
						nx := px + dx
						if nx < 0 || nx >= w || (dx == 0 && dy == 0) {
							continue
						}
						nk := ny*w + nx
						if labels[nk] != 0 || mask.At(ny, nx) == 0 {
							continue
						}
						labels[nk] = id
						stack = append(stack, nk)
					}
				}
			}
			blobs = append(blobs, blob)
		}
	}
	return blobs, labels
}
