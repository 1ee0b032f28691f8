// Package calibrate estimates camera intrinsics and lens distortion from checkerboard images.
package calibrate

import (
	"context"
	"fmt"
	"image"
	"math"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/xmaslights/ledmap/logging"
	"github.com/xmaslights/ledmap/rimage"
	"github.com/xmaslights/ledmap/rimage/detection/chessboard"
	"github.com/xmaslights/ledmap/rimage/transform"
)

// ErrInsufficientCalibrationData is returned when no image yielded checkerboard corners.
var ErrInsufficientCalibrationData = errors.New("no calibration image yielded checkerboard corners")

// Config describes the board and the solver.
type Config struct {
	Board chessboard.DetectionConfiguration
	// SquareSize is the board square edge in object units; 1 expresses object points in board squares.
	SquareSize float64
	// Workers bounds the number of images searched for corners at once; 0 uses GOMAXPROCS.
	Workers       int
	MaxIterations int
}

// NewConfig returns the defaults for a cols x rows inner corner board.
func NewConfig(cols, rows int) Config {
	return Config{
		Board:         chessboard.NewDetectionConfiguration(cols, rows),
		SquareSize:    1,
		MaxIterations: defaultLMSettings.MaxIterations,
	}
}

// Frame is one calibration image.
type Frame struct {
	Name  string
	Image image.Image
}

// ImageReport is the per-image outcome of a calibration.
type ImageReport struct {
	Name   string
	Found  bool
	Reason string
	// RMS is the reprojection error in pixels, 0 when not found.
	RMS     float64
	Corners []r2.Point
}

// Result is a calibrated camera model with its diagnostics.
type Result struct {
	Model  *transform.CameraModel
	RMS    float64
	Images []ImageReport
}

// Used lists the images that contributed corners.
func (r *Result) Used() []string {
	var out []string
	for _, im := range r.Images {
		if im.Found {
			out = append(out, im.Name)
		}
	}
	return out
}

// Rejected lists the images without a board.
func (r *Result) Rejected() []string {
	var out []string
	for _, im := range r.Images {
		if !im.Found {
			out = append(out, im.Name)
		}
	}
	return out
}

// Calibrator turns checkerboard images into a CameraModel.
type Calibrator struct {
	cfg    Config
	logger logging.Logger
}

// NewCalibrator returns a calibrator for the given board.
func NewCalibrator(cfg Config, logger logging.Logger) *Calibrator {
	if cfg.SquareSize <= 0 {
		cfg.SquareSize = 1
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = defaultLMSettings.MaxIterations
	}
	return &Calibrator{cfg: cfg, logger: logger}
}

// ReadFrames loads every image matching the glob pattern, sorted by name.
func ReadFrames(pattern string) ([]Frame, error) {
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, errors.Wrapf(err, "bad pattern %q", pattern)
	}
	sort.Strings(paths)
	frames := make([]Frame, 0, len(paths))
	for _, p := range paths {
		img, err := rimage.ReadImageFromFile(p)
		if err != nil {
			return nil, err
		}
		frames = append(frames, Frame{Name: filepath.Base(p), Image: img})
	}
	return frames, nil
}

// objectPoints returns the board corners on the z = 0 plane in row major order.
func (c *Calibrator) objectPoints() []r3.Vector {
	out := make([]r3.Vector, 0, c.cfg.Board.Cols*c.cfg.Board.Rows)
	for r := 0; r < c.cfg.Board.Rows; r++ {
		for col := 0; col < c.cfg.Board.Cols; col++ {
			out = append(out, r3.Vector{X: float64(col) * c.cfg.SquareSize, Y: float64(r) * c.cfg.SquareSize})
		}
	}
	return out
}

// detect searches every frame for the board concurrently. Frames without a board are reported, not retried.
func (c *Calibrator) detect(ctx context.Context, frames []Frame) ([]ImageReport, error) {
	reports := make([]ImageReport, len(frames))
	g, ctx := errgroup.WithContext(ctx)
	workers := c.cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g.SetLimit(workers)
	for i, f := range frames {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			reports[i] = ImageReport{Name: f.Name}
			corners, err := chessboard.FindChessboard(f.Image, c.cfg.Board)
			if err != nil {
				if !errors.Is(err, chessboard.ErrNotFound) {
					return errors.Wrapf(err, "searching %s", f.Name)
				}
				reports[i].Reason = err.Error()
				return nil
			}
			reports[i].Found = true
			reports[i].Corners = corners
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

// Calibrate searches each frame for the board and solves for the intrinsics. All frames must share one
// resolution.
func (c *Calibrator) Calibrate(ctx context.Context, frames []Frame) (*Result, error) {
	if len(frames) == 0 {
		return nil, ErrInsufficientCalibrationData
	}
	size := frames[0].Image.Bounds().Size()
	for _, f := range frames[1:] {
		if s := f.Image.Bounds().Size(); s != size {
			return nil, errors.Errorf("image %s is %v, expected %v like %s", f.Name, s, size, frames[0].Name)
		}
	}

	reports, err := c.detect(ctx, frames)
	if err != nil {
		return nil, err
	}
	object := c.objectPoints()
	var obs []observation
	for _, rep := range reports {
		if !rep.Found {
			c.logger.Warnw("no checkerboard found", "image", rep.Name, "reason", rep.Reason)
			continue
		}
		c.logger.Debugw("checkerboard found", "image", rep.Name, "corners", len(rep.Corners))
		obs = append(obs, observation{name: rep.Name, object: object, pixels: rep.Corners})
	}
	if len(obs) == 0 {
		return nil, ErrInsufficientCalibrationData
	}

	model, perImage, rms, err := c.solve(ctx, obs, size.X, size.Y)
	if err != nil {
		return nil, err
	}
	k := 0
	for i := range reports {
		if reports[i].Found {
			reports[i].RMS = perImage[k]
			k++
		}
	}
	res := &Result{Model: model, RMS: rms, Images: reports}
	c.logSummary(res, perImage)
	return res, nil
}

// CalibrateFromCorrespondences solves for the intrinsics from already detected corners, one slice per image,
// each in the board's row major order.
func (c *Calibrator) CalibrateFromCorrespondences(
	ctx context.Context, corners [][]r2.Point, width, height int,
) (*Result, error) {
	object := c.objectPoints()
	var obs []observation
	reports := make([]ImageReport, 0, len(corners))
	for i, px := range corners {
		name := fmt.Sprintf("view_%d", i)
		if len(px) != len(object) {
			reports = append(reports, ImageReport{Name: name, Reason: "corner count mismatch"})
			continue
		}
		reports = append(reports, ImageReport{Name: name, Found: true, Corners: px})
		obs = append(obs, observation{name: name, object: object, pixels: px})
	}
	if len(obs) == 0 {
		return nil, ErrInsufficientCalibrationData
	}
	model, perImage, rms, err := c.solve(ctx, obs, width, height)
	if err != nil {
		return nil, err
	}
	k := 0
	for i := range reports {
		if reports[i].Found {
			reports[i].RMS = perImage[k]
			k++
		}
	}
	return &Result{Model: model, RMS: rms, Images: reports}, nil
}

// solve seeds the intrinsics and board poses linearly and refines everything by minimizing the reprojection
// error. Board poses are discarded afterwards.
func (c *Calibrator) solve(ctx context.Context, obs []observation, width, height int) (
	*transform.CameraModel, []float64, float64, error,
) {
	homographies := make([]*transform.Homography, len(obs))
	for i, o := range obs {
		h, err := boardHomography(o)
		if err != nil {
			return nil, nil, 0, errors.Wrapf(err, "board homography for %s", o.name)
		}
		homographies[i] = h
	}
	cx, cy := float64(width-1)/2, float64(height-1)/2
	fx, fy := initialFocalLengths(homographies, cx, cy, float64(max(width, height)))
	c.logger.Debugw("initial intrinsics", "fx", fx, "fy", fy, "cx", cx, "cy", cy)

	k := (&transform.PinholeCameraIntrinsics{Width: width, Height: height, Fx: fx, Fy: fy, Ppx: cx, Ppy: cy}).GetCameraMatrix()
	poses := make([]viewPose, len(obs))
	for i, h := range homographies {
		p, err := initialPose(k, h)
		if err != nil {
			return nil, nil, 0, errors.Wrapf(err, "initial pose for %s", obs[i].name)
		}
		poses[i] = p
	}

	x0 := packParams([]float64{fx, fy, cx, cy, 0, 0, 0, 0, 0}, poses)
	x, residuals, err := levenbergMarquardt(ctx, residualFunc(obs), x0, numResiduals(obs), lmSettings{
		MaxIterations: c.cfg.MaxIterations,
		Tolerance:     defaultLMSettings.Tolerance,
	})
	if err != nil {
		return nil, nil, 0, errors.Wrap(err, "refining calibration")
	}

	perImage := make([]float64, len(obs))
	total := 0.
	off := 0
	for i, o := range obs {
		sum := 0.
		for j := 0; j < 2*len(o.pixels); j++ {
			sum += residuals[off+j] * residuals[off+j]
		}
		off += 2 * len(o.pixels)
		total += sum
		perImage[i] = math.Sqrt(sum / float64(len(o.pixels)))
	}
	rms := math.Sqrt(total / float64(off/2))

	model, err := transform.NewCameraModel(
		(&transform.PinholeCameraIntrinsics{Fx: x[0], Fy: x[1], Ppx: x[2], Ppy: x[3]}).GetCameraMatrix(),
		x[4:numIntrinsicParams], width, height,
	)
	if err != nil {
		return nil, nil, 0, errors.Wrap(err, "calibration diverged")
	}
	return model, perImage, rms, nil
}

func (c *Calibrator) logSummary(res *Result, perImage []float64) {
	worst, err := stats.Max(perImage)
	if err != nil {
		worst = math.NaN()
	}
	median, err := stats.Median(perImage)
	if err != nil {
		median = math.NaN()
	}
	c.logger.Infow("calibration done",
		"used", len(res.Used()),
		"rejected", len(res.Rejected()),
		"rms_px", res.RMS,
		"median_image_rms_px", median,
		"worst_image_rms_px", worst,
		"fx", res.Model.Fx, "fy", res.Model.Fy,
		"cx", res.Model.Ppx, "cy", res.Model.Ppy,
		"dist", res.Model.Distortion.Parameters(),
	)
}
