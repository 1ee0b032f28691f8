package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"go.viam.com/test"

	"github.com/xmaslights/ledmap/components/camera/fake"
	"github.com/xmaslights/ledmap/components/camera/replay"
	"github.com/xmaslights/ledmap/components/lightstrip"
	lightfake "github.com/xmaslights/ledmap/components/lightstrip/fake"
	"github.com/xmaslights/ledmap/config"
	"github.com/xmaslights/ledmap/logging"
	"github.com/xmaslights/ledmap/reconstruct"
	"github.com/xmaslights/ledmap/rimage/calibrate"
	"github.com/xmaslights/ledmap/rimage/transform"
	"github.com/xmaslights/ledmap/scan"
)

type testRun struct {
	t   *testing.T
	dir string
	cfg string
	out bytes.Buffer
}

// newTestRun writes a config with instant scan timings and all output under a temp dir.
func newTestRun(t *testing.T, extra string) *testRun {
	t.Helper()
	r := &testRun{t: t, dir: t.TempDir()}
	r.cfg = filepath.Join(r.dir, "ledmap.yaml")
	doc := fmt.Sprintf("output:\n  dir: %s\nscan:\n  all_off_wait: 0s\n  settle_time: 0s\n%s", r.dir, extra)
	test.That(t, os.WriteFile(r.cfg, []byte(doc), 0o600), test.ShouldBeNil)
	return r
}

func (r *testRun) run(args ...string) error {
	r.out.Reset()
	var errOut bytes.Buffer
	app := newApp(&r.out, &errOut, logging.NewTestLogger(r.t))
	app.Reader = strings.NewReader("\n")
	return app.RunContext(context.Background(), append([]string{"ledmap", "-c", r.cfg}, args...))
}

func TestSimulateEndToEnd(t *testing.T) {
	r := newTestRun(t, "simulation:\n  occluded_b: [7]\n")
	metrics := filepath.Join(r.dir, "metrics.prom")
	test.That(t, r.run("--metrics-file", metrics, "simulate"), test.ShouldBeNil)
	test.That(t, r.out.String(), test.ShouldContainSubstring, "reconstructed 39 of 40 lights")
	test.That(t, r.out.String(), test.ShouldContainSubstring, "position error against the synthetic tree")

	for _, name := range []string{calibrate.DefaultArtifactName, "scan_a.csv", "scan_b.csv", "positions.csv", "positions.json"} {
		_, err := os.Stat(filepath.Join(r.dir, name))
		test.That(t, err, test.ShouldBeNil)
	}
	data, err := os.ReadFile(metrics)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(data), test.ShouldContainSubstring, `ledmap_scan_detections_total{view="b"} 39`)
	test.That(t, string(data), test.ShouldContainSubstring, `ledmap_reconstruct_points_total{outcome="reconstructed"} 39`)

	rep, err := reconstruct.LoadReport(filepath.Join(r.dir, "positions.csv"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(rep.Positions), test.ShouldEqual, 39)
	test.That(t, rep.Missing, test.ShouldResemble, map[int]reconstruct.MissingReason{7: reconstruct.ReasonNotDetected})
	truth := fake.TreeLayout(40, fake.DefaultTreeConfig())
	for id, p := range rep.Positions {
		test.That(t, p.Sub(truth[id]).Norm(), test.ShouldBeLessThan, 100)
	}

	// the saved artifacts are enough to reconstruct again and to summarize
	test.That(t, r.run("reconstruct"), test.ShouldBeNil)
	test.That(t, r.out.String(), test.ShouldContainSubstring, "not detected in both views: [7]")

	jsonPath := filepath.Join(r.dir, "tree.json")
	test.That(t, r.run("report", "--json", jsonPath), test.ShouldBeNil)
	test.That(t, r.out.String(), test.ShouldContainSubstring, "39 lights positioned, 1 missing")
	test.That(t, r.out.String(), test.ShouldContainSubstring, "MEDIAN (MM)")
	test.That(t, r.out.String(), test.ShouldContainSubstring, "missing (never-detected): [7]")
	data, err = os.ReadFile(jsonPath)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(data), test.ShouldContainSubstring, `"id": 39`)
}

// recordTree renders one frame per lit light for both views, as `scan --record` would save them.
func recordTree(t *testing.T, dir string, n int, poseB *transform.ViewPose) []r3.Vector {
	t.Helper()
	ctx := context.Background()
	model := fake.DefaultCameraModel()
	truth := fake.TreeLayout(n, fake.DefaultTreeConfig())
	for view, pose := range map[string]*transform.ViewPose{viewA: transform.IdentityPose(), viewB: poseB} {
		strip := lightfake.NewStrip(n)
		cam, err := fake.NewLightCamera(model, pose, truth, strip, fake.DefaultLightConfig())
		test.That(t, err, test.ShouldBeNil)
		for id := 0; id < n; id++ {
			test.That(t, strip.AllOff(ctx), test.ShouldBeNil)
			test.That(t, strip.Set(ctx, id, lightstrip.Blue), test.ShouldBeNil)
			img, err := cam.Capture(ctx)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, replay.SaveFrame(filepath.Join(dir, view), id, img), test.ShouldBeNil)
		}
	}
	return truth
}

func TestScanReplay(t *testing.T) {
	const n = 6
	r := newTestRun(t, fmt.Sprintf("lights: %d\n", n))
	def := config.DefaultViews()
	poseB, err := def.B.Pose()
	test.That(t, err, test.ShouldBeNil)
	frames := filepath.Join(r.dir, "frames")
	truth := recordTree(t, frames, n, poseB)
	// frame 3 of view b went missing
	test.That(t, os.Remove(replay.FramePath(filepath.Join(frames, viewB), 3)), test.ShouldBeNil)

	debugDir := filepath.Join(r.dir, "debug")
	recordDir := filepath.Join(r.dir, "rerecorded")
	test.That(t, r.run("scan", "--replay", frames, "--debug-dir", debugDir, "--record", recordDir), test.ShouldBeNil)
	test.That(t, r.out.String(), test.ShouldContainSubstring, "view a: 6 of 6 lights found")
	test.That(t, r.out.String(), test.ShouldContainSubstring, "view b: 5 of 6 lights found, missing [3]")

	for _, p := range []string{
		filepath.Join(debugDir, "a_mask", "led_0_mask.png"),
		filepath.Join(debugDir, "b_contours", "led_5_contour.png"),
		filepath.Join(debugDir, "a_detections.png"),
		replay.FramePath(filepath.Join(recordDir, viewB), 2),
	} {
		_, err := os.Stat(p)
		test.That(t, err, test.ShouldBeNil)
	}

	a, err := scan.Load(filepath.Join(r.dir, "scan_a.csv"), n)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, a.IDs(), test.ShouldResemble, []int{0, 1, 2, 3, 4, 5})

	// reconstruct against the true camera model
	err = r.run("reconstruct")
	test.That(t, errors.Is(err, transform.ErrCalibrationMissing), test.ShouldBeTrue)
	res := &calibrate.Result{Model: fake.DefaultCameraModel()}
	test.That(t, calibrate.Save(filepath.Join(r.dir, calibrate.DefaultArtifactName), res), test.ShouldBeNil)
	test.That(t, r.run("reconstruct"), test.ShouldBeNil)
	test.That(t, r.out.String(), test.ShouldContainSubstring, "reconstructed 5 of 6 lights")
	test.That(t, r.out.String(), test.ShouldNotContainSubstring, "was interrupted")

	rep, err := reconstruct.LoadReport(filepath.Join(r.dir, "positions.csv"))
	test.That(t, err, test.ShouldBeNil)
	for id, p := range rep.Positions {
		test.That(t, p.Sub(truth[id]).Norm(), test.ShouldBeLessThan, 5)
	}

	// an interrupted scan stays marked as such through its artifact
	bPath := filepath.Join(r.dir, "scan_b.csv")
	b, err := scan.Load(bPath, n)
	test.That(t, err, test.ShouldBeNil)
	b.Complete = false
	test.That(t, scan.Save(bPath, b), test.ShouldBeNil)
	test.That(t, r.run("reconstruct"), test.ShouldBeNil)
	test.That(t, r.out.String(), test.ShouldContainSubstring, "view b scan was interrupted")

	// a single view replays only that view
	test.That(t, r.run("scan", "--replay", frames, "--view", "b"), test.ShouldBeNil)
	test.That(t, r.out.String(), test.ShouldNotContainSubstring, "view a:")
}

func TestScanDebugWriteFailure(t *testing.T) {
	const n = 6
	r := newTestRun(t, fmt.Sprintf("lights: %d\n", n))
	def := config.DefaultViews()
	poseB, err := def.B.Pose()
	test.That(t, err, test.ShouldBeNil)
	frames := filepath.Join(r.dir, "frames")
	recordTree(t, frames, n, poseB)

	// the summary image path is taken by a directory
	debugDir := filepath.Join(r.dir, "debug")
	test.That(t, os.MkdirAll(filepath.Join(debugDir, "a_detections.png"), 0o750), test.ShouldBeNil)

	err = r.run("scan", "--replay", frames, "--view", "a", "--debug-dir", debugDir)
	test.That(t, err, test.ShouldNotBeNil)
	// the scan itself is still saved
	a, err := scan.Load(filepath.Join(r.dir, "scan_a.csv"), n)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, a.Len(), test.ShouldEqual, n)
}

func TestScanNeedsHardware(t *testing.T) {
	r := newTestRun(t, "")
	err := r.run("scan")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "no light controller configured")

	err = r.run("scan", "--view", "c")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "unknown view")
}

func TestCalibrateNoImages(t *testing.T) {
	r := newTestRun(t, "")
	err := r.run("calibrate", "--images", filepath.Join(r.dir, "*.png"))
	test.That(t, errors.Is(err, calibrate.ErrInsufficientCalibrationData), test.ShouldBeTrue)
}

func TestBadFlagsAndConfig(t *testing.T) {
	var out, errOut bytes.Buffer
	app := NewApp(&out, &errOut)
	err := app.RunContext(context.Background(), []string{"ledmap", "--log-level", "loud", "report"})
	test.That(t, err, test.ShouldNotBeNil)

	r := newTestRun(t, "lights: -3\n")
	err = r.run("report")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "lights")
}

func TestLogLevelOverrides(t *testing.T) {
	s := &session{logger: logging.NewTestLogger(t)}
	test.That(t, s.applyLogLevels("error, scan=debug"), test.ShouldBeNil)
	test.That(t, s.logger.GetLevel(), test.ShouldEqual, logging.ERROR)

	scanLogger := s.sublogger(subloggerScan)
	test.That(t, scanLogger.GetLevel(), test.ShouldEqual, logging.DEBUG)
	registered, ok := logging.LoggerNamed(subloggerScan)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, registered, test.ShouldEqual, scanLogger)
	// loggers without an override follow the bare level
	test.That(t, s.sublogger(subloggerLightspot).GetLevel(), test.ShouldEqual, logging.ERROR)

	for _, bad := range []string{"loud", "scan=loud", "bogus=debug"} {
		s := &session{logger: logging.NewTestLogger(t)}
		test.That(t, s.applyLogLevels(bad), test.ShouldNotBeNil)
	}
}

func TestLogLevelFlagReachesScanner(t *testing.T) {
	const n = 6
	r := newTestRun(t, fmt.Sprintf("lights: %d\n", n))
	def := config.DefaultViews()
	poseB, err := def.B.Pose()
	test.That(t, err, test.ShouldBeNil)
	frames := filepath.Join(r.dir, "frames")
	recordTree(t, frames, n, poseB)

	logger, logs := logging.NewObservedTestLogger(t)
	var errOut bytes.Buffer
	app := newApp(&r.out, &errOut, logger)
	err = app.RunContext(context.Background(),
		[]string{"ledmap", "-c", r.cfg, "--log-level", "warn,scan=debug", "scan", "--replay", frames, "--view", "a"})
	test.That(t, err, test.ShouldBeNil)

	scanEntries := logs.Filter(func(e observer.LoggedEntry) bool { return strings.HasPrefix(e.LoggerName, subloggerScan) })
	test.That(t, scanEntries.Len(), test.ShouldBeGreaterThan, 0)
	replayInfo := logs.Filter(func(e observer.LoggedEntry) bool {
		return strings.HasPrefix(e.LoggerName, subloggerReplay) && e.Level == zapcore.InfoLevel
	})
	test.That(t, replayInfo.Len(), test.ShouldEqual, 0)
}

func TestConfirmOnEnter(t *testing.T) {
	confirmed := confirmOnEnter(strings.NewReader("ok\n"))
	select {
	case <-confirmed:
	case <-time.After(time.Second):
		t.Fatal("enter was not seen")
	}
}

func TestParseViews(t *testing.T) {
	views, err := parseViews("")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, views, test.ShouldResemble, []string{viewA, viewB})
	views, err = parseViews("b")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, views, test.ShouldResemble, []string{viewB})
}
