package lightspot

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync"

	"github.com/fogleman/gg"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/xmaslights/ledmap/logging"
	"github.com/xmaslights/ledmap/rimage"
)

var (
	debugBlobColor   = color.NRGBA{G: 255, A: 255}
	debugMarkerColor = color.NRGBA{R: 255, A: 255}
	debugLabelColor  = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
)

// DebugImageWriter saves what the localizer saw for one view:
//
//	<dir>/<view>_mask/led_<i>_mask.png         the denoised mask
//	<dir>/<view>_contours/led_<i>_contour.png  the frame with the chosen blob and centroid
//	<dir>/<view>_detections.png                the last frame with every detection, written by Close
type DebugImageWriter struct {
	mu         sync.Mutex
	dir        string
	view       string
	logger     logging.Logger
	last       image.Image
	detections []Detection
	err        error
}

// NewDebugImageWriter creates the output directories.
func NewDebugImageWriter(dir, view string, logger logging.Logger) (*DebugImageWriter, error) {
	w := &DebugImageWriter{dir: dir, view: view, logger: logger}
	for _, sub := range []string{w.maskDir(), w.contourDir()} {
		if err := os.MkdirAll(sub, 0o750); err != nil {
			return nil, errors.Wrapf(err, "creating %s", sub)
		}
	}
	return w, nil
}

func (w *DebugImageWriter) maskDir() string {
	return filepath.Join(w.dir, w.view+"_mask")
}

func (w *DebugImageWriter) contourDir() string {
	return filepath.Join(w.dir, w.view+"_contours")
}

// ObserveLocalization writes the mask and annotated frame of one light. Write failures are logged and
// returned by Close.
func (w *DebugImageWriter) ObserveLocalization(loc *Localization) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.last = loc.Frame
	if loc.Found {
		w.detections = append(w.detections, loc.Detection)
	}

	maskPath := filepath.Join(w.maskDir(), fmt.Sprintf("led_%d_mask.png", loc.LightID))
	err := rimage.WriteImageToFile(maskPath, rimage.MaskToGray(loc.Mask))

	dc := gg.NewContextForRGBA(rimage.CloneToRGBA(loc.Frame))
	if loc.Chosen != nil {
		rimage.DrawRectangleEmpty(dc, loc.Chosen.Bounds, debugBlobColor, 1)
	}
	if loc.Found {
		drawDetection(dc, loc.Detection)
	} else {
		rimage.DrawString(dc, fmt.Sprintf("%d not found", loc.LightID), image.Pt(5, 15), debugLabelColor)
	}
	contourPath := filepath.Join(w.contourDir(), fmt.Sprintf("led_%d_contour.png", loc.LightID))
	err = multierr.Combine(err, rimage.WriteImageToFile(contourPath, dc.Image()))
	if err != nil {
		w.logger.Warnw("cannot write debug images", "light", loc.LightID, "error", err)
		w.err = multierr.Combine(w.err, err)
	}
}

// Close writes the summary frame and reports any earlier write failure.
func (w *DebugImageWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.last == nil {
		return w.err
	}
	dc := gg.NewContextForRGBA(rimage.CloneToRGBA(w.last))
	for _, d := range w.detections {
		drawDetection(dc, d)
	}
	path := filepath.Join(w.dir, w.view+"_detections.png")
	return multierr.Combine(w.err, rimage.WriteImageToFile(path, dc.Image()))
}

func drawDetection(dc *gg.Context, d Detection) {
	// gg pixels span [i, i+1)
	x, y := d.Pixel.X+0.5, d.Pixel.Y+0.5
	rimage.DrawMarker(dc, x, y, 2, debugMarkerColor)
	rimage.DrawString(dc, fmt.Sprintf("%d", d.LightID), image.Pt(int(x)+4, int(y)-4), debugLabelColor)
}
