package cli

import (
	"github.com/urfave/cli/v2"

	"github.com/xmaslights/ledmap/reconstruct"
	"github.com/xmaslights/ledmap/rimage/transform"
	"github.com/xmaslights/ledmap/scan"
)

// ReconstructAction triangulates the saved view scans and writes the report and its JSON form.
func ReconstructAction(c *cli.Context) error {
	return run(c, func(s *session) error {
		model, err := s.cameraModel()
		if err != nil {
			return err
		}
		a, err := scan.Load(s.scanPath(viewA), s.cfg.Lights)
		if err != nil {
			return err
		}
		b, err := scan.Load(s.scanPath(viewB), s.cfg.Lights)
		if err != nil {
			return err
		}
		for _, vs := range []*scan.ViewScan{a, b} {
			if !vs.Complete {
				warningf(s.out, "view %s scan was interrupted, lights it never tried count as missing", vs.View)
			}
		}
		_, err = s.reconstruct(model, a, b)
		return err
	})
}

func (s *session) reconstruct(model *transform.CameraModel, a, b *scan.ViewScan) (*reconstruct.Result, error) {
	poseA, poseB, err := s.cfg.Poses()
	if err != nil {
		return nil, err
	}
	tri, err := reconstruct.NewTriangulator(model, poseA, poseB, s.cfg.DepthBand, s.sublogger(subloggerReconstruct))
	if err != nil {
		return nil, err
	}
	if s.reconstructM == nil {
		s.reconstructM = reconstruct.NewMetrics(s.registry)
	}
	tri.Metrics = s.reconstructM

	res, err := reconstruct.Reconstruct(tri, a, b, s.cfg.Lights)
	if err != nil {
		return nil, err
	}
	if err := s.mkdirOutput(); err != nil {
		return nil, err
	}
	report := s.path(s.cfg.Output.Report)
	if err := reconstruct.SaveReport(report, res); err != nil {
		return nil, err
	}
	if s.cfg.Output.JSON != "" {
		if err := reconstruct.SaveJSON(s.path(s.cfg.Output.JSON), res); err != nil {
			return nil, err
		}
	}

	printf(s.out, "reconstructed %d of %d lights", len(res.Points), res.Count)
	if ids := res.MissingBecause(reconstruct.ReasonNotDetected); len(ids) > 0 {
		warningf(s.out, "not detected in both views: %v", ids)
	}
	if ids := res.MissingBecause(reconstruct.ReasonDepthImplausible); len(ids) > 0 {
		warningf(s.out, "implausible depth: %v", ids)
	}
	infof(s.out, "saved positions to %s", report)
	return res, nil
}
