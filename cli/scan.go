package cli

import (
	"bufio"
	"context"
	"io"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"github.com/xmaslights/ledmap/components/camera"
	"github.com/xmaslights/ledmap/components/camera/replay"
	"github.com/xmaslights/ledmap/components/camera/videosource"
	"github.com/xmaslights/ledmap/components/lightstrip"
	"github.com/xmaslights/ledmap/components/lightstrip/serialstrip"
	"github.com/xmaslights/ledmap/rimage/detection/lightspot"
	"github.com/xmaslights/ledmap/scan"
	"github.com/xmaslights/ledmap/serial"
)

// scanOptions are the per invocation knobs of a scan.
type scanOptions struct {
	debugDir  string
	recordDir string
}

// ScanAction scans one or both views and saves each view scan, partial or not.
func ScanAction(c *cli.Context) error {
	return run(c, func(s *session) (err error) {
		views, err := parseViews(c.String(scanFlagView))
		if err != nil {
			return err
		}
		opts := scanOptions{debugDir: c.String(scanFlagDebug), recordDir: c.String(scanFlagRecord)}
		if dir := c.String(scanFlagReplay); dir != "" {
			return s.replayViews(c.Context, dir, views, opts)
		}

		driver, err := s.openLights(c.String(scanFlagDevice))
		if err != nil {
			return err
		}
		cam, err := s.openCamera(c.String(scanFlagCamera))
		if err != nil {
			return multierr.Combine(err, driver.Close(c.Context))
		}
		defer func() {
			ctx := context.WithoutCancel(c.Context)
			err = multierr.Combine(err, cam.Close(ctx), driver.Close(ctx))
		}()

		for i, view := range views {
			if i > 0 && !c.Bool(scanFlagNoWait) {
				if err := s.waitForOperator(c.Context, driver, cam, c.App.Reader); err != nil {
					return err
				}
			}
			if _, err := s.scanView(c.Context, view, driver, cam, opts); err != nil {
				return err
			}
		}
		return nil
	})
}

func parseViews(v string) ([]string, error) {
	switch v {
	case viewA, viewB:
		return []string{v}, nil
	case viewBoth, "":
		return []string{viewA, viewB}, nil
	default:
		return nil, errors.Errorf("unknown view %q, expected a, b or both", v)
	}
}

func (s *session) replayViews(ctx context.Context, dir string, views []string, opts scanOptions) error {
	for _, view := range views {
		src, err := replay.NewSource(filepath.Join(dir, view), s.cfg.Lights, s.sublogger(subloggerReplay))
		if err != nil {
			return err
		}
		if _, err := s.scanView(ctx, view, src.Driver(), src.Camera(), opts); err != nil {
			return err
		}
	}
	return nil
}

func (s *session) openLights(device string) (lightstrip.Driver, error) {
	var cfg serialstrip.Config
	switch {
	case s.cfg.SerialStrip != nil:
		cfg = *s.cfg.SerialStrip
	case device == "":
		return nil, errors.New("no light controller configured: set serial_strip or pass --device")
	default:
		cfg = serialstrip.Config{Count: s.cfg.Lights, Options: serial.DefaultOptions()}
	}
	if device != "" {
		cfg.Path = device
	}
	strip, err := serialstrip.Open(cfg, s.sublogger(subloggerLights))
	if err != nil {
		return nil, err
	}
	return strip, nil
}

func (s *session) openCamera(url string) (camera.Camera, error) {
	var cfg videosource.SnapshotConfig
	if s.cfg.Camera != nil {
		cfg = *s.cfg.Camera
	}
	if url != "" {
		cfg.URL = url
	}
	if cfg.URL == "" {
		return nil, errors.New("no camera configured: set camera.url or pass --camera-url")
	}
	return videosource.NewSnapshotCamera(cfg, s.sublogger(subloggerCamera))
}

func (s *session) scanPath(view string) string {
	if view == viewB {
		return s.path(s.cfg.Output.ScanB)
	}
	return s.path(s.cfg.Output.ScanA)
}

func (s *session) newScanner(
	driver lightstrip.Driver,
	cam camera.Camera,
	observers ...lightspot.Observer,
) (*scan.Scanner, error) {
	loc, err := lightspot.NewLocalizer(s.cfg.Signature, s.sublogger(subloggerLightspot), observers...)
	if err != nil {
		return nil, err
	}
	return scan.NewScanner(s.cfg.Scan.ScanConfig(), driver, cam, loc, s.sublogger(subloggerScan),
		scan.WithMetrics(s.scanMetrics()))
}

func (s *session) scanMetrics() *scan.Metrics {
	if s.scanM == nil {
		s.scanM = scan.NewMetrics(s.registry)
	}
	return s.scanM
}

// scanView scans one view and saves the result even when the scan was interrupted.
func (s *session) scanView(
	ctx context.Context,
	view string,
	driver lightstrip.Driver,
	cam camera.Camera,
	opts scanOptions,
) (vs *scan.ViewScan, err error) {
	var observers []lightspot.Observer
	if opts.debugDir != "" {
		dw, dwErr := lightspot.NewDebugImageWriter(opts.debugDir, view, s.sublogger(subloggerDebug))
		if dwErr != nil {
			return nil, dwErr
		}
		defer func() {
			err = multierr.Combine(err, dw.Close())
		}()
		observers = append(observers, dw)
	}
	if opts.recordDir != "" {
		dir := filepath.Join(opts.recordDir, view)
		observers = append(observers, lightspot.ObserverFunc(func(loc *lightspot.Localization) {
			if err := replay.SaveFrame(dir, loc.LightID, loc.Frame); err != nil {
				s.logger.Warnw("cannot record frame", "light", loc.LightID, "error", err)
			}
		}))
	}
	scanner, err := s.newScanner(driver, cam, observers...)
	if err != nil {
		return nil, err
	}

	infof(s.out, "scanning view %s (%d lights)", view, driver.Len())
	vs, scanErr := scanner.Scan(ctx, view)
	if vs != nil {
		if err := s.mkdirOutput(); err != nil {
			return vs, multierr.Combine(scanErr, err)
		}
		path := s.scanPath(view)
		if err := scan.Save(path, vs); err != nil {
			return vs, multierr.Combine(scanErr, err)
		}
		printf(s.out, "view %s: %d of %d lights found, missing %v", view, vs.Len(), vs.Count, vs.Missing())
		if !vs.Complete {
			warningf(s.out, "view %s scan is partial", view)
		}
		infof(s.out, "saved view %s scan to %s", view, path)
	}
	return vs, scanErr
}

// waitForOperator blinks the lights until a line is read from r.
func (s *session) waitForOperator(ctx context.Context, driver lightstrip.Driver, cam camera.Camera, r io.Reader) error {
	scanner, err := s.newScanner(driver, cam)
	if err != nil {
		return err
	}
	printf(s.out, "move the camera to view b, then press enter")
	return scanner.WaitForOperator(ctx, confirmOnEnter(r))
}

func confirmOnEnter(r io.Reader) <-chan struct{} {
	confirmed := make(chan struct{})
	go func() {
		//nolint:errcheck
		bufio.NewReader(r).ReadString('\n')
		close(confirmed)
	}()
	return confirmed
}
