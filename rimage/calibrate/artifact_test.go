package calibrate

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"

	"github.com/xmaslights/ledmap/rimage/transform"
)

func TestArtifactRoundTrip(t *testing.T) {
	k := mat.NewDense(3, 3, []float64{810.5, 0, 321.25, 0, 805, 241.75, 0, 0, 1})
	model, err := transform.NewCameraModel(k, []float64{-0.1, 0.02, 0.001, -0.002, 0.005}, 640, 480)
	test.That(t, err, test.ShouldBeNil)
	path := filepath.Join(t.TempDir(), DefaultArtifactName)

	test.That(t, Save(path, &Result{Model: model, RMS: 0.21}), test.ShouldBeNil)
	loaded, err := Load(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, mat.EqualApprox(loaded.GetCameraMatrix(), k, 1e-12), test.ShouldBeTrue)
	test.That(t, loaded.Distortion.Parameters(), test.ShouldResemble, model.Distortion.Parameters())
	test.That(t, loaded.Width, test.ShouldEqual, 640)
	test.That(t, loaded.Height, test.ShouldEqual, 480)

	raw, err := os.ReadFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(raw), test.ShouldContainSubstring, "camera_matrix:")
	test.That(t, string(raw), test.ShouldContainSubstring, "dist_coeff:")
	test.That(t, string(raw), test.ShouldContainSubstring, "rms_error: 0.21")
}

func TestLoadExternalArtifacts(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "nested.yaml")
	test.That(t, os.WriteFile(nested, []byte(`camera_matrix:
- [800.0, 0.0, 320.0]
- [0.0, 800.0, 240.0]
- [0.0, 0.0, 1.0]
dist_coeff:
- [-0.1, 0.01, 0.0, 0.0, 0.0]
`), 0o600), test.ShouldBeNil)
	model, err := Load(nested)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, model.Width, test.ShouldEqual, 640)
	test.That(t, model.Height, test.ShouldEqual, 480)
	test.That(t, model.Distortion.RadialK1, test.ShouldEqual, -0.1)

	flat := filepath.Join(dir, "flat.yaml")
	test.That(t, os.WriteFile(flat, []byte(`camera_matrix: [[700, 0, 300], [0, 700, 200], [0, 0, 1]]
dist_coeff: [0.05, 0, 0, 0]
image_width: 600
image_height: 400
`), 0o600), test.ShouldBeNil)
	model, err = Load(flat)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, model.Fx, test.ShouldEqual, 700.)
	test.That(t, model.Distortion.RadialK1, test.ShouldEqual, 0.05)
	test.That(t, model.Distortion.RadialK3, test.ShouldEqual, 0.)

	bad := filepath.Join(dir, "bad.yaml")
	test.That(t, os.WriteFile(bad, []byte("camera_matrix: [[1, 2], [3, 4]]\ndist_coeff: [0, 0, 0, 0]\n"), 0o600),
		test.ShouldBeNil)
	_, err = Load(bad)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	test.That(t, errors.Is(err, transform.ErrCalibrationMissing), test.ShouldBeTrue)
}
