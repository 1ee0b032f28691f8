// Package cli contains the ledmap command line application.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"

	"github.com/xmaslights/ledmap/logging"
)

const (
	// Flags.
	generalFlagConfig      = "config"
	generalFlagDebug       = "debug"
	generalFlagLogLevel    = "log-level"
	generalFlagLogFile     = "log-file"
	generalFlagMetricsFile = "metrics-file"

	calibrateFlagImages = "images"
	calibrateFlagOut    = "out"

	scanFlagView    = "view"
	scanFlagReplay  = "replay"
	scanFlagNoWait  = "no-wait"
	scanFlagDevice  = "device"
	scanFlagDebug   = "debug-dir"
	scanFlagRecord  = "record"
	scanFlagCamera  = "camera-url"
	reportFlagInput = "in"
	reportFlagJSON  = "json"

	simulateFlagOut = "out"

	viewA    = "a"
	viewB    = "b"
	viewBoth = "both"
)

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	return newApp(out, errOut, nil)
}

// newApp builds the app; a non nil logger replaces the one configured from flags.
func newApp(out, errOut io.Writer, logger logging.Logger) *cli.App {
	app := &cli.App{
		Name:            "ledmap",
		Usage:           "map addressable lights to 3D positions with one camera",
		HideHelpCommand: true,
		Writer:          out,
		ErrWriter:       errOut,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    generalFlagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`",
			},
			&cli.BoolFlag{
				Name:    generalFlagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
			&cli.StringFlag{
				Name:  generalFlagLogLevel,
				Usage: "log level (debug, info, warn, error) and logger=level overrides such as scan=debug, comma separated; overrides --debug",
			},
			&cli.StringFlag{
				Name:  generalFlagLogFile,
				Usage: "also append logs to `FILE`, rotated at 50 MB",
			},
			&cli.StringFlag{
				Name:  generalFlagMetricsFile,
				Usage: "write prometheus counters to `FILE` on exit",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "calibrate",
				Usage:     "estimate camera intrinsics from checkerboard images",
				UsageText: "ledmap calibrate [--images GLOB] [--out FILE]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  calibrateFlagImages,
						Usage: "glob of calibration images, defaults to calibration.images",
					},
					&cli.StringFlag{
						Name:  calibrateFlagOut,
						Usage: "calibration artifact to write, defaults to calibration.artifact",
					},
				},
				Action: CalibrateAction,
			},
			{
				Name:      "scan",
				Usage:     "light every light in turn and record where the camera sees it",
				UsageText: "ledmap scan [--view a|b|both] [--replay DIR] [--camera-url URL] [--device PORT]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  scanFlagView,
						Value: viewBoth,
						Usage: "view to scan: a, b or both (waiting for the operator in between)",
					},
					&cli.StringFlag{
						Name:  scanFlagReplay,
						Usage: "re-localize frames recorded in `DIR` instead of driving hardware",
					},
					&cli.StringFlag{
						Name:  scanFlagCamera,
						Usage: "snapshot URL of the camera, overrides camera.url",
					},
					&cli.StringFlag{
						Name:  scanFlagDevice,
						Usage: "serial port of the light controller, overrides serial_strip.path",
					},
					&cli.BoolFlag{
						Name:  scanFlagNoWait,
						Usage: "do not wait for the operator between views",
					},
					&cli.StringFlag{
						Name:  scanFlagDebug,
						Usage: "write mask and contour images to `DIR`",
					},
					&cli.StringFlag{
						Name:  scanFlagRecord,
						Usage: "save every localized frame under `DIR`/<view> for replay",
					},
				},
				Action: ScanAction,
			},
			{
				Name:   "reconstruct",
				Usage:  "triangulate the two view scans into 3D positions",
				Action: ReconstructAction,
			},
			{
				Name:  "simulate",
				Usage: "calibrate, scan and reconstruct a synthetic tree end to end",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  simulateFlagOut,
						Usage: "output directory, overrides output.dir",
					},
				},
				Action: SimulateAction,
			},
			{
				Name:      "report",
				Usage:     "summarize a reconstruction report",
				UsageText: "ledmap report [--in FILE] [--json FILE]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  reportFlagInput,
						Usage: "report to read, defaults to output.report",
					},
					&cli.StringFlag{
						Name:  reportFlagJSON,
						Usage: "also write the positions as JSON to `FILE`",
					},
				},
				Action: ReportAction,
			},
		},
	}
	if logger != nil {
		app.Metadata = map[string]interface{}{metadataLogger: logger}
	}
	return app
}
