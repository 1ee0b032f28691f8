// Package scan runs the structured-light acquisition: light one light at a time, capture, localize, turn it
// off, and collect where each light was seen from the current camera pose.
package scan

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"github.com/xmaslights/ledmap/components/camera"
	"github.com/xmaslights/ledmap/components/lightstrip"
	"github.com/xmaslights/ledmap/logging"
	"github.com/xmaslights/ledmap/rimage/detection/lightspot"
)

// ErrAcquisitionInterrupted is returned when a scan or operator wait is cancelled. All lights are off by the
// time it is returned.
var ErrAcquisitionInterrupted = errors.New("acquisition interrupted")

// Config controls the acquisition protocol.
type Config struct {
	// Color is what a light is driven to while it is captured.
	Color color.NRGBA
	// AllOffWait follows the initial all off command, SettleTime follows every light on command.
	AllOffWait time.Duration
	SettleTime time.Duration
	// Attempts is how many captures a light gets before it is recorded as absent.
	Attempts int
	// SignalColor and BlinkInterval drive the operator wait between views.
	SignalColor   color.NRGBA
	BlinkInterval time.Duration
}

// DefaultConfig is blue lights, 200 ms after all off, 300 ms settle, 3 attempts and a red 250 ms blink.
func DefaultConfig() Config {
	return Config{
		Color:         lightstrip.Blue,
		AllOffWait:    200 * time.Millisecond,
		SettleTime:    300 * time.Millisecond,
		Attempts:      3,
		SignalColor:   lightstrip.Red,
		BlinkInterval: 250 * time.Millisecond,
	}
}

// Validate ensures all parts of the config are valid.
func (cfg Config) Validate() error {
	if cfg.Attempts < 1 {
		return errors.Errorf("attempts must be at least 1, got %d", cfg.Attempts)
	}
	if cfg.AllOffWait < 0 || cfg.SettleTime < 0 || cfg.BlinkInterval < 0 {
		return errors.New("waits cannot be negative")
	}
	if lightstrip.IsOff(cfg.Color) {
		return errors.New("scan color cannot be off")
	}
	return nil
}

// A Localizer finds light id in a frame.
type Localizer interface {
	Localize(id int, img image.Image) (lightspot.Detection, bool)
}

// Scanner owns a light driver and a camera for the duration of its scans. Scans on one Scanner must not
// run concurrently.
type Scanner struct {
	cfg       Config
	driver    lightstrip.Driver
	cam       camera.Camera
	localizer Localizer
	clock     clock.Clock
	metrics   *Metrics
	logger    logging.Logger
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithClock replaces the wall clock used for waits and timestamps.
func WithClock(c clock.Clock) Option {
	return func(s *Scanner) {
		s.clock = c
	}
}

// WithMetrics counts attempts and detections.
func WithMetrics(m *Metrics) Option {
	return func(s *Scanner) {
		s.metrics = m
	}
}

// NewScanner returns a scanner over the given hardware.
func NewScanner(
	cfg Config,
	driver lightstrip.Driver,
	cam camera.Camera,
	localizer Localizer,
	logger logging.Logger,
	opts ...Option,
) (*Scanner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if driver == nil || cam == nil || localizer == nil {
		return nil, errors.New("scanner needs a light driver, a camera and a localizer")
	}
	s := &Scanner{cfg: cfg, driver: driver, cam: cam, localizer: localizer, clock: clock.New(), logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Scan tries every light in ascending id order. Lights that are never found are left out of the result.
// On cancellation the lights already found are returned together with ErrAcquisitionInterrupted; every
// light is off whenever Scan returns.
func (s *Scanner) Scan(ctx context.Context, view string) (vs *ViewScan, err error) {
	vs = NewViewScan(view, s.driver.Len())
	vs.Started = s.clock.Now()
	logger := s.logger.Sublogger(view)
	defer func() {
		if offErr := s.driver.AllOff(context.WithoutCancel(ctx)); offErr != nil {
			err = multierr.Combine(err, errors.Wrap(offErr, "turning lights off"))
		}
		vs.Finished = s.clock.Now()
	}()

	if err := s.driver.AllOff(ctx); err != nil {
		return vs, s.checkInterrupted(ctx, errors.Wrap(err, "turning lights off"))
	}
	if !s.wait(ctx, s.cfg.AllOffWait) {
		return vs, interrupted(ctx, "before the first light")
	}
	for id := 0; id < vs.Count; id++ {
		det, found, err := s.scanLight(ctx, logger, id)
		if err != nil {
			logger.Warnw("scan stopped", "light", id, "found", vs.Len(), "error", err)
			return vs, err
		}
		if !found {
			logger.Debugw("light absent", "light", id, "attempts", s.cfg.Attempts)
			continue
		}
		if err := vs.Add(det); err != nil {
			return vs, err
		}
		if s.metrics != nil {
			s.metrics.Detections.WithLabelValues(view).Inc()
		}
	}
	vs.Complete = true
	s.logSummary(logger, vs)
	return vs, nil
}

// scanLight lights id until it is found or the attempts run out. The light is switched off right after each
// capture.
func (s *Scanner) scanLight(ctx context.Context, logger logging.Logger, id int) (lightspot.Detection, bool, error) {
	for attempt := 1; attempt <= s.cfg.Attempts; attempt++ {
		if s.metrics != nil {
			s.metrics.Attempts.Inc()
		}
		if err := s.driver.Set(ctx, id, s.cfg.Color); err != nil {
			return lightspot.Detection{}, false, s.checkInterrupted(ctx, errors.Wrapf(err, "turning light %d on", id))
		}
		if !s.wait(ctx, s.cfg.SettleTime) {
			return lightspot.Detection{}, false, interrupted(ctx, fmt.Sprintf("settling light %d", id))
		}
		img, capErr := s.cam.Capture(ctx)
		offErr := s.driver.Set(context.WithoutCancel(ctx), id, lightstrip.Off)
		if capErr != nil {
			return lightspot.Detection{}, false, s.checkInterrupted(ctx, errors.Wrapf(capErr, "capturing light %d", id))
		}
		if offErr != nil {
			return lightspot.Detection{}, false, errors.Wrapf(offErr, "turning light %d off", id)
		}
		if det, ok := s.localizer.Localize(id, img); ok {
			return det, true, nil
		}
		if s.metrics != nil {
			s.metrics.NotFound.Inc()
		}
		logger.Debugw("light not found", "light", id, "attempt", attempt)
	}
	return lightspot.Detection{}, false, nil
}

// WaitForOperator blinks every light in the signal color until confirm is closed or receives, so the
// operator knows to move the camera. Lights are off when it returns.
func (s *Scanner) WaitForOperator(ctx context.Context, confirm <-chan struct{}) (err error) {
	defer func() {
		if offErr := s.driver.AllOff(context.WithoutCancel(ctx)); offErr != nil {
			err = multierr.Combine(err, errors.Wrap(offErr, "turning lights off"))
		}
	}()
	s.logger.Info("waiting for the camera to be moved to the next view")
	on := true
	for {
		if on {
			err = s.driver.Fill(ctx, s.cfg.SignalColor)
		} else {
			err = s.driver.AllOff(ctx)
		}
		if err != nil {
			return s.checkInterrupted(ctx, errors.Wrap(err, "blinking lights"))
		}
		select {
		case <-ctx.Done():
			return interrupted(ctx, "waiting for the operator")
		case <-confirm:
			s.logger.Info("operator confirmed")
			return nil
		case <-s.clock.After(s.cfg.BlinkInterval):
		}
		on = !on
	}
}

func (s *Scanner) wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 || ctx.Err() != nil {
		return ctx.Err() == nil
	}
	return goutils.SelectContextOrWaitChan(ctx, s.clock.After(d))
}

// checkInterrupted reports hardware errors caused by cancellation as interruptions.
func (s *Scanner) checkInterrupted(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return interrupted(ctx, err.Error())
	}
	return err
}

func interrupted(ctx context.Context, what string) error {
	return errors.Wrapf(ErrAcquisitionInterrupted, "%s: %v", what, context.Cause(ctx))
}

func (s *Scanner) logSummary(logger logging.Logger, vs *ViewScan) {
	areas := make([]float64, 0, vs.Len())
	for _, d := range vs.Detections {
		areas = append(areas, d.SupportArea)
	}
	median, err := stats.Median(areas)
	if err != nil {
		median = 0
	}
	logger.Infow("view scanned",
		"detected", vs.Len(),
		"configured", vs.Count,
		"missing", vs.Missing(),
		"median_area_px", median,
		"duration", s.clock.Since(vs.Started),
	)
}
