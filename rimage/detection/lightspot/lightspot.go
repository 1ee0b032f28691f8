// Package lightspot finds the single lit light in a frame: threshold in HSV space, denoise the mask, keep
// the largest bright blob and take its centroid.
package lightspot

import (
	"image"

	"github.com/golang/geo/r2"
	"gonum.org/v1/gonum/mat"

	"github.com/xmaslights/ledmap/logging"
	"github.com/xmaslights/ledmap/rimage"
)

// Detection is where one light was seen. SupportArea is the blob's pixel count and serves as its confidence.
type Detection struct {
	LightID     int      `json:"light_id"`
	Pixel       r2.Point `json:"pixel"`
	SupportArea float64  `json:"support_area"`
}

// Localization is everything one Localize call saw, for observers.
type Localization struct {
	LightID   int
	Frame     image.Image
	Mask      *mat.Dense
	Blobs     []rimage.Blob
	Chosen    *rimage.Blob
	Detection Detection
	Found     bool
}

// Observer is notified after every localization. Observers must not modify what they are given.
type Observer interface {
	ObserveLocalization(loc *Localization)
}

// ObserverFunc adapts a function to an Observer.
type ObserverFunc func(loc *Localization)

// ObserveLocalization calls f.
func (f ObserverFunc) ObserveLocalization(loc *Localization) {
	f(loc)
}

// Localizer finds lit lights. It holds no per-frame state and is safe for concurrent use once built.
type Localizer struct {
	sig       Signature
	logger    logging.Logger
	observers []Observer
}

// NewLocalizer validates sig and returns a localizer notifying the given observers.
func NewLocalizer(sig Signature, logger logging.Logger, observers ...Observer) (*Localizer, error) {
	if err := sig.Validate(); err != nil {
		return nil, err
	}
	return &Localizer{sig: sig, logger: logger, observers: observers}, nil
}

// Signature returns the signature the localizer was built with.
func (l *Localizer) Signature() Signature {
	return l.sig
}

// Localize looks for light id in img. ok is false when no blob of at least the minimum area survives.
func (l *Localizer) Localize(id int, img image.Image) (Detection, bool) {
	loc := l.localize(id, img)
	for _, o := range l.observers {
		o.ObserveLocalization(loc)
	}
	if loc.Found {
		l.logger.Debugw("light found", "light", id, "x", loc.Detection.Pixel.X, "y", loc.Detection.Pixel.Y,
			"area", loc.Detection.SupportArea, "blobs", len(loc.Blobs))
	} else {
		l.logger.Debugw("light not found", "light", id, "blobs", len(loc.Blobs))
	}
	return loc.Detection, loc.Found
}

func (l *Localizer) localize(id int, img image.Image) *Localization {
	loc := &Localization{LightID: id, Frame: img}
	hsv := rimage.ConvertToHSV(img)
	mask := l.threshold(hsv)
	if l.sig.MorphSize > 1 {
		// both only fail on an invalid size, which Validate rejects
		if opened, err := rimage.OpenSquare(mask, l.sig.MorphSize); err == nil {
			mask = opened
		}
		if closed, err := rimage.CloseSquare(mask, l.sig.MorphSize); err == nil {
			mask = closed
		}
	}
	loc.Mask = mask

	blobs, labels := rimage.ConnectedComponents(mask)
	loc.Blobs = blobs
	var best *rimage.Blob
	bestMean := 0.
	for i := range blobs {
		b := &blobs[i]
		if b.Area < l.sig.MinArea {
			continue
		}
		mean := meanValue(hsv, b.Bounds)
		if best == nil || b.Area > best.Area || (b.Area == best.Area && mean > bestMean) {
			best, bestMean = b, mean
		}
	}
	if best == nil {
		return loc
	}
	cx, cy, ok := best.Centroid()
	if !ok {
		return loc
	}
	if l.sig.Refine {
		cx, cy = l.refine(hsv, labels, best, cx, cy)
	}
	loc.Chosen = best
	loc.Found = true
	loc.Detection = Detection{LightID: id, Pixel: r2.Point{X: cx, Y: cy}, SupportArea: float64(best.Area)}
	return loc
}

func (l *Localizer) threshold(hsv *rimage.HSVImage) *mat.Dense {
	mask := mat.NewDense(hsv.Height, hsv.Width, nil)
	for y := 0; y < hsv.Height; y++ {
		for x := 0; x < hsv.Width; x++ {
			if l.sig.Matches(hsv.At(x, y)) {
				mask.Set(y, x, 1)
			}
		}
	}
	return mask
}

// meanValue is the mean V over r.
func meanValue(hsv *rimage.HSVImage, r image.Rectangle) float64 {
	r = r.Intersect(hsv.Bounds())
	if r.Empty() {
		return 0
	}
	sum := 0.
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			_, _, v := hsv.At(x, y)
			sum += v
		}
	}
	return sum / float64(r.Dx()*r.Dy())
}

// refine re-centers (cx, cy) on the value plane above the threshold, weighting only the pixels of blob b
// so specks and neighbouring blobs cannot pull it. The centroid is kept when the blob holds no weight.
func (l *Localizer) refine(hsv *rimage.HSVImage, labels []int, b *rimage.Blob, cx, cy float64) (float64, float64) {
	id := b.Label + 1
	var sx, sy, sw float64
	for y := b.Bounds.Min.Y; y < b.Bounds.Max.Y; y++ {
		for x := b.Bounds.Min.X; x < b.Bounds.Max.X; x++ {
			if labels[y*hsv.Width+x] != id {
				continue
			}
			h, s, v := hsv.At(x, y)
			if !l.sig.Matches(h, s, v) {
				continue
			}
			w := v - l.sig.ValueMin
			sx += w * float64(x)
			sy += w * float64(y)
			sw += w
		}
	}
	if sw <= 0 {
		return cx, cy
	}
	return sx / sw, sy / sw
}
