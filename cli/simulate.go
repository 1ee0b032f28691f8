package cli

import (
	"context"
	"fmt"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/golang/geo/r3"
	"github.com/montanaflynn/stats"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"

	"github.com/xmaslights/ledmap/components/camera/fake"
	lightfake "github.com/xmaslights/ledmap/components/lightstrip/fake"
	"github.com/xmaslights/ledmap/reconstruct"
	"github.com/xmaslights/ledmap/rimage/calibrate"
	"github.com/xmaslights/ledmap/rimage/transform"
	"github.com/xmaslights/ledmap/scan"
)

const (
	// simulatedBoardViews is how many checkerboard frames the simulated calibration renders.
	simulatedBoardViews = 10

	errorHistogramBins  = 8
	errorHistogramWidth = 40
)

// SimulateAction runs calibration, both view scans and the reconstruction against a synthetic camera
// looking at a synthetic tree, then reports the error against the true light positions.
func SimulateAction(c *cli.Context) error {
	return run(c, func(s *session) error {
		if out := c.String(simulateFlagOut); out != "" {
			s.cfg.Output.Dir = out
		}
		_, err := s.simulate(c.Context)
		return err
	})
}

type simulation struct {
	truth       []r3.Vector
	calibration *calibrate.Result
	scans       map[string]*scan.ViewScan
	result      *reconstruct.Result
	// errors holds the distance in mm between each reconstructed light and its true position, by ascending id.
	errors []float64
}

func (s *session) simulate(ctx context.Context) (*simulation, error) {
	truthModel := fake.DefaultCameraModel()
	sim := &simulation{scans: map[string]*scan.ViewScan{}}

	calib, err := s.simulateCalibration(ctx, truthModel)
	if err != nil {
		return nil, err
	}
	sim.calibration = calib

	// synthetic frames need no settling
	s.cfg.Scan.AllOffWait = 0
	s.cfg.Scan.SettleTime = 0
	sim.truth = fake.TreeLayout(s.cfg.Lights, fake.DefaultTreeConfig())
	poseA, poseB, err := s.cfg.Poses()
	if err != nil {
		return nil, err
	}
	for i, v := range []struct {
		name     string
		pose     *transform.ViewPose
		occluded []int
	}{
		{viewA, poseA, s.cfg.Simulation.OccludedA},
		{viewB, poseB, s.cfg.Simulation.OccludedB},
	} {
		lightCfg := fake.DefaultLightConfig()
		lightCfg.NoiseStdDev = s.cfg.Simulation.NoiseStdDev
		lightCfg.Seed = s.cfg.Simulation.Seed + uint64(i)
		strip := lightfake.NewStrip(s.cfg.Lights)
		cam, err := fake.NewLightCamera(truthModel, v.pose, sim.truth, strip, lightCfg, fake.WithOccluded(v.occluded...))
		if err != nil {
			return nil, err
		}
		vs, err := s.scanView(ctx, v.name, strip, cam, scanOptions{})
		if err != nil {
			return nil, err
		}
		sim.scans[v.name] = vs
	}

	res, err := s.reconstruct(calib.Model, sim.scans[viewA], sim.scans[viewB])
	if err != nil {
		return nil, err
	}
	sim.result = res
	sim.errors = lo.Map(res.IDs(), func(id, _ int) float64 {
		p := res.Points[id]
		return r3.Vector{X: p.X, Y: p.Y, Z: p.Z}.Sub(sim.truth[id]).Norm()
	})
	if len(sim.errors) > 0 {
		mean, _ := stats.Mean(sim.errors)
		maxErr, _ := stats.Max(sim.errors)
		printf(s.out, "position error against the synthetic tree: mean %.2f mm, max %.2f mm", mean, maxErr)
		hist := histogram.Hist(errorHistogramBins, sim.errors)
		if err := histogram.Fprint(s.out, hist, histogram.Linear(errorHistogramWidth)); err != nil {
			return nil, err
		}
	}
	return sim, nil
}

func (s *session) simulateCalibration(ctx context.Context, truth *transform.CameraModel) (*calibrate.Result, error) {
	board := fake.Board{
		Cols:       s.cfg.Calibration.Cols,
		Rows:       s.cfg.Calibration.Rows,
		SquareSize: s.cfg.Calibration.SquareSize,
	}
	cam, err := fake.NewBoardCamera(truth, board, fake.CalibrationPoses(board, simulatedBoardViews))
	if err != nil {
		return nil, err
	}
	frames := make([]calibrate.Frame, 0, simulatedBoardViews)
	for i := range simulatedBoardViews {
		img, err := cam.Capture(ctx)
		if err != nil {
			return nil, err
		}
		frames = append(frames, calibrate.Frame{Name: fmt.Sprintf("board_%02d.png", i), Image: img})
	}
	infof(s.out, "calibrating from %d synthetic board images", len(frames))
	return s.calibrate(ctx, frames, s.artifactPath())
}
