package cli

import (
	"context"

	"github.com/urfave/cli/v2"

	"github.com/xmaslights/ledmap/rimage/calibrate"
)

// CalibrateAction estimates the camera intrinsics from checkerboard images and saves the artifact.
func CalibrateAction(c *cli.Context) error {
	return run(c, func(s *session) error {
		pattern := c.String(calibrateFlagImages)
		if pattern == "" {
			pattern = s.cfg.Calibration.Images
		}
		out := c.String(calibrateFlagOut)
		if out == "" {
			out = s.artifactPath()
		}
		frames, err := calibrate.ReadFrames(pattern)
		if err != nil {
			return err
		}
		infof(s.out, "calibrating from %d images matching %s", len(frames), pattern)
		_, err = s.calibrate(c.Context, frames, out)
		return err
	})
}

func (s *session) calibrate(ctx context.Context, frames []calibrate.Frame, out string) (*calibrate.Result, error) {
	calibrator := calibrate.NewCalibrator(s.cfg.Calibration.CalibrateConfig(), s.sublogger(subloggerCalibrate))
	res, err := calibrator.Calibrate(ctx, frames)
	if err != nil {
		return nil, err
	}
	if err := s.mkdirOutput(); err != nil {
		return nil, err
	}
	if err := calibrate.Save(out, res); err != nil {
		return nil, err
	}

	intr := res.Model.PinholeCameraIntrinsics
	printf(s.out, "fx=%.2f fy=%.2f cx=%.2f cy=%.2f dist=%v", intr.Fx, intr.Fy, intr.Ppx, intr.Ppy,
		res.Model.Distortion.Parameters())
	printf(s.out, "rms reprojection error %.4f px over %d images", res.RMS, len(res.Used()))
	for _, img := range res.Images {
		if !img.Found {
			warningf(s.out, "%s not used: %s", img.Name, img.Reason)
		}
	}
	if res.RMS > 1 {
		warningf(s.out, "reprojection error above 1 px, check the board images")
	}
	infof(s.out, "saved calibration to %s", out)
	return res, nil
}
