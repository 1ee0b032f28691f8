package calibrate

import (
	"math"
	"os"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	"github.com/xmaslights/ledmap/rimage/transform"
	"github.com/xmaslights/ledmap/utils"
)

// DefaultArtifactName is the file name calibration results are saved under.
const DefaultArtifactName = "calibration_matrix.yaml"

// coeffRow is the distortion vector. It reads either a flat list or the 1xK nested list calibration tools write.
type coeffRow []float64

// UnmarshalYAML accepts [k1, ...] and [[k1, ...]].
func (c *coeffRow) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.SequenceNode {
		return errors.Errorf("line %d: dist_coeff must be a list", value.Line)
	}
	if len(value.Content) == 1 && value.Content[0].Kind == yaml.SequenceNode {
		value = value.Content[0]
	}
	var flat []float64
	if err := value.Decode(&flat); err != nil {
		return err
	}
	*c = flat
	return nil
}

// MarshalYAML writes the 1xK form.
func (c coeffRow) MarshalYAML() (interface{}, error) {
	return [][]float64{c}, nil
}

// Artifact is the persisted form of a CameraModel.
type Artifact struct {
	CameraMatrix [][]float64 `yaml:"camera_matrix"`
	DistCoeff    coeffRow    `yaml:"dist_coeff"`
	ImageWidth   int         `yaml:"image_width,omitempty"`
	ImageHeight  int         `yaml:"image_height,omitempty"`
	RMSError     float64     `yaml:"rms_error,omitempty"`
}

// NewArtifact captures a calibration result.
func NewArtifact(res *Result) *Artifact {
	k := res.Model.GetCameraMatrix()
	rows := make([][]float64, 3)
	for i := range rows {
		rows[i] = mat.Row(nil, i, k)
	}
	return &Artifact{
		CameraMatrix: rows,
		DistCoeff:    res.Model.Distortion.Parameters(),
		ImageWidth:   res.Model.Width,
		ImageHeight:  res.Model.Height,
		RMSError:     res.RMS,
	}
}

// CameraModel validates the artifact and builds the model. Files without a resolution use twice the
// principal point.
func (a *Artifact) CameraModel() (*transform.CameraModel, error) {
	if len(a.CameraMatrix) != 3 {
		return nil, errors.Errorf("camera_matrix must have 3 rows, got %d", len(a.CameraMatrix))
	}
	data := make([]float64, 0, 9)
	for i, row := range a.CameraMatrix {
		if len(row) != 3 {
			return nil, errors.Errorf("camera_matrix row %d must have 3 values, got %d", i, len(row))
		}
		data = append(data, row...)
	}
	k := mat.NewDense(3, 3, data)
	width, height := a.ImageWidth, a.ImageHeight
	if width == 0 || height == 0 {
		width = int(math.Ceil(2 * k.At(0, 2)))
		height = int(math.Ceil(2 * k.At(1, 2)))
	}
	return transform.NewCameraModel(k, a.DistCoeff, width, height)
}

// Save writes the result as YAML.
func Save(path string, res *Result) error {
	out, err := yaml.Marshal(NewArtifact(res))
	if err != nil {
		return err
	}
	return errors.Wrapf(utils.WriteFileAtomic(path, out, 0o644), "saving calibration to %s", path)
}

// Load reads a calibration artifact. A missing file is reported as transform.ErrCalibrationMissing.
func Load(path string) (*transform.CameraModel, error) {
	//nolint:gosec
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, transform.NewCalibrationMissingError(err.Error())
		}
		return nil, err
	}
	var a Artifact
	if err := yaml.Unmarshal(raw, &a); err != nil {
		return nil, errors.Wrapf(err, "parsing calibration %s", path)
	}
	model, err := a.CameraModel()
	if err != nil {
		return nil, errors.Wrapf(err, "calibration %s", path)
	}
	return model, nil
}
