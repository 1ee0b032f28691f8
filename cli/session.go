package cli

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"github.com/xmaslights/ledmap/config"
	"github.com/xmaslights/ledmap/logging"
	"github.com/xmaslights/ledmap/reconstruct"
	"github.com/xmaslights/ledmap/rimage/calibrate"
	"github.com/xmaslights/ledmap/rimage/transform"
	"github.com/xmaslights/ledmap/scan"
)

const (
	loggerName     = "ledmap"
	metadataLogger = "logger"
)

// session is what every command shares: the configuration, a logger and the metrics registry.
type session struct {
	cfg      *config.Config
	logger   logging.Logger
	registry *prometheus.Registry
	out      io.Writer

	scanM        *scan.Metrics
	reconstructM *reconstruct.Metrics

	metricsFile string
	logFile     io.Closer
	// levels holds the per sublogger --log-level overrides.
	levels map[string]logging.Level
}

// logFileMaxSizeMB is the size at which --log-file rotates.
const logFileMaxSizeMB = 50

func newSession(c *cli.Context) (*session, error) {
	cfg, err := loadConfig(c.String(generalFlagConfig))
	if err != nil {
		return nil, err
	}
	s := &session{
		cfg:         cfg,
		registry:    prometheus.NewRegistry(),
		out:         c.App.Writer,
		metricsFile: c.String(generalFlagMetricsFile),
	}
	if err := s.setupLogger(c); err != nil {
		return nil, err
	}
	if cfg.ConfigFilePath != "" {
		s.logger.Debugw("loaded config", "path", cfg.ConfigFilePath, "lights", cfg.Lights)
	}
	return s, nil
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg := config.Default()
		return &cfg, nil
	}
	return config.Read(path)
}

func (s *session) setupLogger(c *cli.Context) error {
	if logger, ok := c.App.Metadata[metadataLogger].(logging.Logger); ok {
		s.logger = logger
	} else if c.Bool(generalFlagDebug) {
		s.logger = logging.NewDebugLogger(loggerName)
	} else {
		s.logger = logging.NewLogger(loggerName)
	}
	if err := s.applyLogLevels(c.String(generalFlagLogLevel)); err != nil {
		return err
	}
	if path := c.String(generalFlagLogFile); path != "" {
		appender, closer := logging.NewRotatingFileAppender(path, logFileMaxSizeMB)
		s.logFile = closer
		s.logger.AddAppender(appender)
	}
	return nil
}

// Subloggers handed to components. Each is registered under its name so --log-level can address it.
const (
	subloggerCalibrate   = "calibrate"
	subloggerReconstruct = "reconstruct"
	subloggerReplay      = "replay"
	subloggerLights      = "lights"
	subloggerCamera      = "camera"
	subloggerLightspot   = "lightspot"
	subloggerScan        = "scan"
	subloggerDebug       = "debug"
)

var subloggerNames = []string{
	subloggerCalibrate, subloggerReconstruct, subloggerReplay, subloggerLights,
	subloggerCamera, subloggerLightspot, subloggerScan, subloggerDebug,
}

// applyLogLevels parses a --log-level value such as "warn,scan=debug": a bare level applies to every logger,
// name=level pairs to the named sublogger only.
func (s *session) applyLogLevels(spec string) error {
	logging.RegisterLogger(loggerName, s.logger)
	s.levels = map[string]logging.Level{}
	if spec == "" {
		return nil
	}
	for _, part := range strings.Split(spec, ",") {
		name, lvl, named := strings.Cut(strings.TrimSpace(part), "=")
		if !named {
			name, lvl = loggerName, name
		} else if !slices.Contains(subloggerNames, name) {
			return errors.Errorf("unknown logger %q in --%s, expected one of %v", name, generalFlagLogLevel, subloggerNames)
		}
		level, err := logging.LevelFromString(lvl)
		if err != nil {
			return err
		}
		if !named {
			if err := logging.UpdateLoggerLevel(loggerName, level); err != nil {
				return err
			}
			continue
		}
		s.levels[name] = level
	}
	return nil
}

// sublogger creates the named child logger, registers it and applies its --log-level override.
func (s *session) sublogger(name string) logging.Logger {
	logger := s.logger.Sublogger(name)
	logging.RegisterLogger(name, logger)
	if level, ok := s.levels[name]; ok {
		if err := logging.UpdateLoggerLevel(name, level); err != nil {
			s.logger.Warnw("cannot set log level", "logger", name, "error", err)
		}
	}
	return logger
}

// close writes the metrics file, if any, and flushes the logs.
func (s *session) close() error {
	var err error
	if s.metricsFile != "" {
		err = errors.Wrap(prometheus.WriteToTextfile(s.metricsFile, s.registry), "writing metrics")
	}
	err = multierr.Combine(err, s.logger.Sync())
	if s.logFile != nil {
		err = multierr.Combine(err, s.logFile.Close())
	}
	return err
}

// run builds a session for c, calls fn and closes the session.
func run(c *cli.Context, fn func(s *session) error) (err error) {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, s.close())
	}()
	return fn(s)
}

func (s *session) path(name string) string {
	return s.cfg.Output.Path(name)
}

func (s *session) artifactPath() string {
	return s.path(s.cfg.Calibration.Artifact)
}

// cameraModel loads the calibration artifact.
func (s *session) cameraModel() (*transform.CameraModel, error) {
	model, err := calibrate.Load(s.artifactPath())
	if err != nil {
		return nil, errors.Wrap(err, "run `ledmap calibrate` first")
	}
	return model, nil
}

func (s *session) mkdirOutput() error {
	if s.cfg.Output.Dir == "" {
		return nil
	}
	return os.MkdirAll(s.cfg.Output.Dir, 0o750)
}

func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, format+"\n", a...)
}

func infof(w io.Writer, format string, a ...interface{}) {
	printf(w, "Info: "+format, a...)
}

func warningf(w io.Writer, format string, a ...interface{}) {
	printf(w, "Warning: "+format, a...)
}
